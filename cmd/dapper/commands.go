package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/klipach/dapper/archive"
	"github.com/klipach/dapper/backend"
	"github.com/klipach/dapper/chat"
	"github.com/klipach/dapper/contract"
	"github.com/klipach/dapper/firebase"
)

var signupCommand = &cli.Command{
	Name:   "signup",
	Usage:  "Create an account with --email and --password",
	Before: prepareApp,
	After:  cleanup,
	Action: cmdSignup,
	Flags: []cli.Flag{
		&cli.PathFlag{
			Name:  "image",
			Usage: "Profile picture to upload",
		},
	},
}

var meCommand = &cli.Command{
	Name:   "me",
	Usage:  "Show the signed-in user",
	Before: requiresAuth,
	After:  cleanup,
	Action: cmdMe,
}

var usersCommand = &cli.Command{
	Name:   "users",
	Usage:  "List users you can message",
	Before: requiresAuth,
	After:  cleanup,
	Action: cmdUsers,
}

var sendCommand = &cli.Command{
	Name:      "send",
	Usage:     "Send a message, the dap image when TEXT is omitted",
	ArgsUsage: "PARTNER_UID [TEXT]",
	Before:    requiresAuth,
	After:     cleanup,
	Action:    cmdSend,
}

var recentCommand = &cli.Command{
	Name:   "recent",
	Usage:  "Watch the conversation list",
	Before: requiresAuth,
	After:  cleanup,
	Action: cmdRecent,
}

var chatCommand = &cli.Command{
	Name:      "chat",
	Usage:     "Watch a conversation",
	ArgsUsage: "PARTNER_UID",
	Before:    requiresAuth,
	After:     cleanup,
	Action:    cmdChat,
}

var historyCommand = &cli.Command{
	Name:      "history",
	Usage:     "Print a conversation once",
	ArgsUsage: "PARTNER_UID",
	Before:    requiresAuth,
	After:     cleanup,
	Action:    cmdHistory,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "archived",
			Usage: "Read the Postgres archive (DATABASE_URL) instead of Firestore",
		},
	},
}

var tokenCommand = &cli.Command{
	Name:   "token",
	Usage:  "Print an ID token for a user (needs service account credentials)",
	Before: prepareApp,
	After:  cleanup,
	Action: cmdToken,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "uid",
			Usage:    "User UID for token generation",
			Required: true,
		},
	},
}

func cmdSignup(ctx *cli.Context) error {
	var image []byte
	if path := ctx.Path("image"); path != "" {
		var err error
		image, err = os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read image: %w", err)
		}
	}
	created, err := getAccounts(ctx).CreateAccount(ctx.Context, ctx.String("email"), ctx.String("password"), image)
	if err != nil {
		return err
	}
	fmt.Println(created.Status())
	return nil
}

func cmdMe(ctx *cli.Context) error {
	user, err := getAccounts(ctx).CurrentUser(ctx.Context)
	if err != nil {
		return err
	}
	fmt.Printf("%s\t%s\t%s\n", user.UID, user.Email, user.ProfileImageURL)
	return nil
}

func cmdUsers(ctx *cli.Context) error {
	users, err := getAccounts(ctx).ListUsers(ctx.Context, currentUID(ctx))
	if err != nil {
		return err
	}
	for _, u := range users {
		fmt.Printf("%s\t%s\n", u.UID, u.Email)
	}
	return nil
}

func partnerArg(ctx *cli.Context) (string, error) {
	if ctx.NArg() == 0 {
		return "", fmt.Errorf("you must specify the partner uid")
	}
	return ctx.Args().Get(0), nil
}

func cmdSend(ctx *cli.Context) error {
	partnerID, err := partnerArg(ctx)
	if err != nil {
		return err
	}
	svc := getService(ctx)
	text := strings.Join(ctx.Args().Tail(), " ")
	if text == "" {
		text = chat.DapText(ctx.Context, svc.Blobs, getConfig(ctx).DapImagePath)
	}
	result, err := chat.NewSender(svc.Documents).Send(ctx.Context, partnerID, currentUID(ctx), text)
	if err != nil {
		return err
	}
	for _, s := range result.Steps {
		state := "ok"
		if !s.OK() {
			state = backend.Status(s.Err)
		}
		fmt.Printf("%-24s %s\n", s.Step, state)
	}
	if !result.OK() {
		return fmt.Errorf("message %s partially sent", result.Message.ID)
	}
	return nil
}

// watch runs feed until interrupted.
func watch[T, S any](ctx *cli.Context, feed *chat.Feed[T, S], print func(S)) error {
	feed.OnChange(print)
	feed.OnError(func(status string) { fmt.Fprintln(os.Stderr, status) })
	if err := feed.Start(ctx.Context); err != nil {
		return err
	}
	defer feed.Close()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)
	select {
	case <-sig:
	case <-feed.Done():
	}
	return nil
}

func cmdRecent(ctx *cli.Context) error {
	feed := chat.NewRecentMessagesFeed(getService(ctx).Documents, currentUID(ctx))
	return watch(ctx, feed, func(list []contract.RecentMessage) {
		fmt.Println("---")
		for _, m := range list {
			fmt.Printf("%s\t%s\t%s\n", m.Timestamp.Format("2006-01-02 15:04"), m.Email, m.Text)
		}
	})
}

func cmdChat(ctx *cli.Context) error {
	partnerID, err := partnerArg(ctx)
	if err != nil {
		return err
	}
	uid := currentUID(ctx)
	var printed int
	feed := chat.NewThreadFeed(getService(ctx).Documents, uid, partnerID)
	return watch(ctx, feed, func(s chat.ThreadSnapshot) {
		for _, m := range s.Messages[printed:] {
			printMessage(uid, m)
		}
		printed = len(s.Messages)
	})
}

func cmdHistory(ctx *cli.Context) error {
	partnerID, err := partnerArg(ctx)
	if err != nil {
		return err
	}
	uid := currentUID(ctx)
	if ctx.Bool("archived") {
		return printArchived(ctx, uid, partnerID)
	}
	messages, err := chat.LoadHistory(ctx.Context, getService(ctx).Documents, uid, partnerID)
	if err != nil {
		return err
	}
	for _, m := range messages {
		printMessage(uid, m)
	}
	return nil
}

func printArchived(ctx *cli.Context, uid, partnerID string) error {
	databaseURL := getConfig(ctx).DatabaseURL
	if databaseURL == "" {
		return fmt.Errorf("DATABASE_URL is not set")
	}
	arch, err := archive.Open(ctx.Context, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer arch.Close()

	rows, err := arch.Conversation(ctx.Context, uid, partnerID)
	if err != nil {
		return err
	}
	for _, row := range rows {
		printMessage(uid, contract.Message{ID: row.ID, FromID: row.FromID, ToID: row.ToID, Text: row.Text, Timestamp: row.SentAt})
		if row.Status != "" {
			fmt.Printf("  ! %s\n", row.Status)
		}
	}
	return nil
}

func printMessage(uid string, m contract.Message) {
	direction := "<"
	if m.FromID == uid {
		direction = ">"
	}
	fmt.Printf("%s %s %s\n", m.Timestamp.Format("15:04:05"), direction, m.Text)
}

func cmdToken(ctx *cli.Context) error {
	identity, ok := getService(ctx).Identity.(*firebase.Identity)
	if !ok {
		return fmt.Errorf("custom tokens need the firebase backend")
	}
	if _, err := identity.SignInWithCustomToken(ctx.Context, ctx.String("uid")); err != nil {
		return err
	}
	fmt.Println(identity.IDToken())
	return nil
}
