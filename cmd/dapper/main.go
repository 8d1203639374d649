package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/klipach/dapper/account"
	"github.com/klipach/dapper/backend"
	"github.com/klipach/dapper/config"
	"github.com/klipach/dapper/firebase"
	"github.com/klipach/dapper/log"
	"github.com/klipach/dapper/logger"
)

type contextKey int

const (
	contextKeyConfig contextKey = iota
	contextKeyService
	contextKeyCloseLogger
)

func getConfig(ctx *cli.Context) *config.Config {
	return ctx.Context.Value(contextKeyConfig).(*config.Config)
}

func getService(ctx *cli.Context) *backend.Service {
	return ctx.Context.Value(contextKeyService).(*backend.Service)
}

func getAccounts(ctx *cli.Context) *account.Accounts {
	cfg := getConfig(ctx)
	return account.New(getService(ctx), account.Images{
		DefaultPath: cfg.ProfileImagePath,
		FallbackURL: cfg.FallbackProfileURL,
	})
}

// currentUID returns the signed-in user; requiresAuth guarantees one.
func currentUID(ctx *cli.Context) string {
	uid, _ := getService(ctx).Identity.CurrentUserID()
	return uid
}

func prepareApp(ctx *cli.Context) error {
	cfg, err := config.Load(ctx.Context, ctx.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if key := ctx.String("api-key"); key != "" {
		cfg.APIKey = key
	}

	level := log.ParseLevel(cfg.LogLevel)
	l := slog.New(log.NewCloudLoggingHandlerWithWriter(os.Stderr, level))
	closeLogger := func() error { return nil }
	if cfg.CloudLogging {
		l, closeLogger, err = logger.New(ctx.Context, cfg.ProjectID, cfg.LogName, level)
		if err != nil {
			return err
		}
	}
	newCtx := log.WithLogger(ctx.Context, l)

	svc, err := firebase.NewService(newCtx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to firebase: %w", err)
	}
	newCtx = context.WithValue(newCtx, contextKeyConfig, cfg)
	newCtx = context.WithValue(newCtx, contextKeyService, svc)
	newCtx = context.WithValue(newCtx, contextKeyCloseLogger, closeLogger)
	ctx.Context = newCtx
	return nil
}

func requiresAuth(ctx *cli.Context) error {
	if err := prepareApp(ctx); err != nil {
		return err
	}
	email, password := ctx.String("email"), ctx.String("password")
	if email == "" || password == "" {
		return fmt.Errorf("--email and --password are required")
	}
	if _, err := getAccounts(ctx).SignIn(ctx.Context, email, password); err != nil {
		return err
	}
	return nil
}

func cleanup(ctx *cli.Context) error {
	svc, ok := ctx.Context.Value(contextKeyService).(*backend.Service)
	if !ok {
		return nil
	}
	if err := svc.Identity.SignOut(ctx.Context); err != nil {
		return err
	}
	if err := svc.Close(); err != nil {
		return err
	}
	if closeLogger, ok := ctx.Context.Value(contextKeyCloseLogger).(func() error); ok {
		return closeLogger()
	}
	return nil
}

func main() {
	app := &cli.App{
		Name:  "dapper",
		Usage: "Send daps and watch conversations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Path to config file",
				EnvVars: []string{"DAPPER_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "email",
				EnvVars: []string{"DAPPER_EMAIL"},
			},
			&cli.StringFlag{
				Name:    "password",
				EnvVars: []string{"DAPPER_PASSWORD"},
			},
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "Firebase Web API key for the Identity Toolkit REST API",
				EnvVars: []string{"FIREBASE_API_KEY"},
			},
		},
		Commands: []*cli.Command{
			signupCommand,
			meCommand,
			usersCommand,
			sendCommand,
			recentCommand,
			chatCommand,
			historyCommand,
			tokenCommand,
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
