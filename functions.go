package dapper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/klipach/dapper/account"
	"github.com/klipach/dapper/archive"
	"github.com/klipach/dapper/auth"
	"github.com/klipach/dapper/backend"
	"github.com/klipach/dapper/chat"
	"github.com/klipach/dapper/config"
	"github.com/klipach/dapper/contract"
	"github.com/klipach/dapper/firebase"
	"github.com/klipach/dapper/log"
	"github.com/klipach/dapper/logger"
	"github.com/klipach/dapper/preview"
)

const (
	ErrorMsgLogField  = "errorMsg"
	bodyLogField      = "body"
	userIDLogField    = "userID"
	partnerIDLogField = "partnerID"
	functionLogField  = "function"

	partnerIDQueryParam = "partner_id"
	configPathEnv       = "DAPPER_CONFIG"
	maxBodyBytes        = 8 << 20
)

var errMissingPartner = errors.New("missing partner_id")

// ServiceFactory connects to the backend for one request.
type ServiceFactory func(ctx context.Context) (*backend.Service, error)

// Archiver keeps a copy of sent messages.
type Archiver interface {
	Store(ctx context.Context, msg contract.Message, status string) error
}

// Gateway exposes the chat core as HTTP functions.
type Gateway struct {
	cfg        *config.Config
	newService ServiceFactory
	archive    Archiver
	previews   *preview.Renderer
	logger     *slog.Logger
}

func NewGateway(cfg *config.Config, newService ServiceFactory, archive Archiver, logger *slog.Logger) *Gateway {
	return &Gateway{
		cfg:        cfg,
		newService: newService,
		archive:    archive,
		previews:   preview.NewRenderer(),
		logger:     logger,
	}
}

func init() {
	gw := defaultGateway()
	functions.HTTP("SignIn", gw.SignIn)
	functions.HTTP("CreateAccount", gw.CreateAccount)
	functions.HTTP("Me", gw.Me)
	functions.HTTP("Users", gw.Users)
	functions.HTTP("Send", gw.Send)
	functions.HTTP("RecentMessages", gw.RecentMessages)
	functions.HTTP("ChatLog", gw.ChatLog)
}

func defaultGateway() *Gateway {
	ctx := context.Background()
	baseLogger := slog.New(log.NewCloudLoggingHandler())
	cfg, err := config.Load(ctx, os.Getenv(configPathEnv))
	if err != nil {
		baseLogger.Error("error while loading config", slog.String(ErrorMsgLogField, err.Error()))
		cfg = config.Default()
	}
	level := log.ParseLevel(cfg.LogLevel)
	baseLogger = slog.New(log.NewCloudLoggingHandlerWithWriter(os.Stdout, level))
	if cfg.CloudLogging {
		// the client lives as long as the function instance
		if l, _, err := logger.New(ctx, cfg.ProjectID, cfg.LogName, level); err != nil {
			baseLogger.Error("error while creating cloud logger", slog.String(ErrorMsgLogField, err.Error()))
		} else {
			baseLogger = l
		}
	}

	var arch Archiver
	if cfg.DatabaseURL != "" {
		arch = newLazyArchive(cfg.DatabaseURL)
	}
	return NewGateway(cfg, func(ctx context.Context) (*backend.Service, error) {
		return firebase.NewService(ctx, cfg)
	}, arch, baseLogger)
}

// lazyArchive connects on first use so instances without traffic never dial
// Postgres. A failed connect is retried on the next message.
type lazyArchive struct {
	databaseURL string
	open        func(ctx context.Context, databaseURL string) (Archiver, error)

	mu      sync.Mutex
	archive Archiver
}

func newLazyArchive(databaseURL string) *lazyArchive {
	return &lazyArchive{
		databaseURL: databaseURL,
		open: func(ctx context.Context, databaseURL string) (Archiver, error) {
			return archive.Open(ctx, databaseURL)
		},
	}
}

func (l *lazyArchive) get(ctx context.Context) (Archiver, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.archive != nil {
		return l.archive, nil
	}
	arch, err := l.open(context.WithoutCancel(ctx), l.databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	l.archive = arch
	return arch, nil
}

func (l *lazyArchive) Store(ctx context.Context, msg contract.Message, status string) error {
	arch, err := l.get(ctx)
	if err != nil {
		return err
	}
	return arch.Store(ctx, msg, status)
}

// request carries what every function needs.
type request struct {
	ctx    context.Context
	logger *slog.Logger
	svc    *backend.Service
	uid    string
}

// begin prepares logging and the backend. When authenticated is set the
// caller's ID token is verified. On failure the response is already written.
func (g *Gateway) begin(w http.ResponseWriter, r *http.Request, function, method string, authenticated bool) (*request, bool) {
	ctx := r.Context()
	if trace := log.TraceFromRequest(r, g.cfg.ProjectID); trace != "" {
		ctx = log.WithTraceID(ctx, trace)
	}
	logger := g.logger.With(slog.String(functionLogField, function))
	logger.InfoContext(ctx, function+" function called")

	if r.Method != method {
		logger.ErrorContext(ctx, "invalid method: "+r.Method)
		http.Error(w, "Method Not Implemented", http.StatusNotImplemented)
		return nil, false
	}

	svc, err := g.newService(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "error while connecting to backend", slog.String(ErrorMsgLogField, err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return nil, false
	}

	req := &request{svc: svc}
	if authenticated {
		uid, err := auth.Authenticate(r, svc.Identity)
		if err != nil {
			logger.ErrorContext(ctx, "error while authenticating", slog.String(ErrorMsgLogField, err.Error()))
			svc.Close()
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return nil, false
		}
		req.uid = uid
		logger = logger.With(slog.String(userIDLogField, uid))
	}
	req.logger = logger
	req.ctx = log.WithLogger(ctx, logger)
	return req, true
}

func (req *request) close() {
	if err := req.svc.Close(); err != nil {
		req.logger.Error("error while closing backend", slog.String(ErrorMsgLogField, err.Error()))
	}
}

func (req *request) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		req.logger.Error("error while reading request body", slog.String(ErrorMsgLogField, err.Error()))
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		req.logger.Error("error while decoding request", slog.String(ErrorMsgLogField, err.Error()))
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return false
	}
	return true
}

// checkPartner rejects partner ids that are not a single document id.
func (req *request) checkPartner(w http.ResponseWriter, partnerID string) bool {
	if partnerID == "" {
		http.Error(w, errMissingPartner.Error(), http.StatusBadRequest)
		return false
	}
	if err := backend.ValidID(partnerID); err != nil {
		req.logger.Warn("rejected partner id", slog.String(ErrorMsgLogField, err.Error()))
		http.Error(w, "invalid partner_id", http.StatusBadRequest)
		return false
	}
	return true
}

func (req *request) respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		req.logger.Error("error while encoding response", slog.String(ErrorMsgLogField, err.Error()))
	}
}

func (g *Gateway) accounts(svc *backend.Service) *account.Accounts {
	return account.New(svc, account.Images{
		DefaultPath: g.cfg.ProfileImagePath,
		FallbackURL: g.cfg.FallbackProfileURL,
	})
}

func (g *Gateway) SignIn(w http.ResponseWriter, r *http.Request) {
	req, ok := g.begin(w, r, "SignIn", http.MethodPost, false)
	if !ok {
		return
	}
	defer req.close()

	var in contract.SignInRequest
	if !req.decode(w, r, &in) {
		return
	}
	uid, err := g.accounts(req.svc).SignIn(req.ctx, in.Email, in.Password)
	if err != nil {
		req.logger.Error("failed to login user", slog.String(ErrorMsgLogField, err.Error()))
		http.Error(w, backend.Status(err), http.StatusUnauthorized)
		return
	}
	req.respond(w, http.StatusOK, contract.SignInResponse{UID: uid, IDToken: req.svc.Identity.IDToken()})
}

func (g *Gateway) CreateAccount(w http.ResponseWriter, r *http.Request) {
	req, ok := g.begin(w, r, "CreateAccount", http.MethodPost, false)
	if !ok {
		return
	}
	defer req.close()

	var in contract.CreateAccountRequest
	if !req.decode(w, r, &in) {
		return
	}
	created, err := g.accounts(req.svc).CreateAccount(req.ctx, in.Email, in.Password, in.ProfileImage)
	var authErr *backend.AuthError
	switch {
	case errors.As(err, &authErr):
		req.logger.Error("failed to create user", slog.String(ErrorMsgLogField, err.Error()))
		http.Error(w, backend.Status(err), http.StatusConflict)
		return
	case err != nil:
		req.logger.Error("failed to store user information", slog.String(ErrorMsgLogField, err.Error()))
		http.Error(w, backend.Status(err), http.StatusBadGateway)
		return
	}
	req.respond(w, http.StatusOK, contract.CreateAccountResponse{UID: created.UID, Status: created.Status()})
}

func (g *Gateway) Me(w http.ResponseWriter, r *http.Request) {
	req, ok := g.begin(w, r, "Me", http.MethodGet, true)
	if !ok {
		return
	}
	defer req.close()

	user, err := g.accounts(req.svc).User(req.ctx, req.uid)
	if errors.Is(err, backend.ErrNotFound) {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	if err != nil {
		req.logger.Error("error while fetching user", slog.String(ErrorMsgLogField, err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	req.respond(w, http.StatusOK, user)
}

func (g *Gateway) Users(w http.ResponseWriter, r *http.Request) {
	req, ok := g.begin(w, r, "Users", http.MethodGet, true)
	if !ok {
		return
	}
	defer req.close()

	users, err := g.accounts(req.svc).ListUsers(req.ctx, req.uid)
	if err != nil {
		req.logger.Error("error while listing users", slog.String(ErrorMsgLogField, err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	req.respond(w, http.StatusOK, users)
}

func (g *Gateway) Send(w http.ResponseWriter, r *http.Request) {
	req, ok := g.begin(w, r, "Send", http.MethodPost, true)
	if !ok {
		return
	}
	defer req.close()

	var in contract.SendRequest
	if !req.decode(w, r, &in) {
		return
	}
	if !req.checkPartner(w, in.PartnerID) {
		return
	}
	logger := req.logger.With(slog.String(partnerIDLogField, in.PartnerID))

	text := in.Text
	if text == "" {
		text = chat.DapText(req.ctx, req.svc.Blobs, g.cfg.DapImagePath)
	}
	result, err := chat.NewSender(req.svc.Documents).Send(req.ctx, in.PartnerID, req.uid, text)
	if err != nil {
		logger.Error("error while sending message", slog.String(ErrorMsgLogField, err.Error()))
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if g.archive != nil {
		if err := g.archive.Store(req.ctx, result.Message, result.Status()); err != nil {
			logger.Error("error while archiving message", slog.String(ErrorMsgLogField, err.Error()))
		}
	}

	resp := contract.SendResponse{Message: result.Message, Status: result.Status()}
	for _, s := range result.Steps {
		resp.Steps = append(resp.Steps, contract.SendStep{
			Step:   s.Step.String(),
			Path:   s.Path,
			OK:     s.OK(),
			Status: backend.Status(s.Err),
		})
	}
	status := http.StatusOK
	if !result.OK() {
		status = http.StatusMultiStatus
	}
	req.respond(w, status, resp)
}

// RecentMessages streams the caller's conversation list as server-sent events.
func (g *Gateway) RecentMessages(w http.ResponseWriter, r *http.Request) {
	req, ok := g.begin(w, r, "RecentMessages", http.MethodGet, true)
	if !ok {
		return
	}
	defer req.close()

	feed := chat.NewRecentMessagesFeed(req.svc.Documents, req.uid)
	streamFeed(w, req, feed, func(list []contract.RecentMessage) any {
		views := make([]contract.ConversationView, 0, len(list))
		for _, m := range list {
			views = append(views, contract.ConversationView{RecentMessage: m, PreviewHTML: g.previews.HTML(m.Text)})
		}
		return contract.RecentMessagesEvent{Conversations: views}
	}, func(status string) any {
		return contract.RecentMessagesEvent{Status: status}
	})
}

// ChatLog streams one conversation of the caller as server-sent events.
func (g *Gateway) ChatLog(w http.ResponseWriter, r *http.Request) {
	req, ok := g.begin(w, r, "ChatLog", http.MethodGet, true)
	if !ok {
		return
	}
	defer req.close()

	partnerID := r.URL.Query().Get(partnerIDQueryParam)
	if !req.checkPartner(w, partnerID) {
		return
	}
	req.logger = req.logger.With(slog.String(partnerIDLogField, partnerID))

	feed := chat.NewThreadFeed(req.svc.Documents, req.uid, partnerID)
	streamFeed(w, req, feed, func(s chat.ThreadSnapshot) any {
		return contract.ChatLogEvent{Messages: s.Messages, Revision: s.Revision}
	}, func(status string) any {
		return contract.ChatLogEvent{Status: status}
	})
}
