package firebase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"firebase.google.com/go/v4/auth"

	"github.com/klipach/dapper/backend"
)

const (
	signInWithPasswordEndpoint    = "accounts:signInWithPassword"
	signUpEndpoint                = "accounts:signUp"
	signInWithCustomTokenEndpoint = "accounts:signInWithCustomToken"
)

var errNoAdmin = errors.New("firebase auth admin client is not configured")

type adminClient interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
	CustomToken(ctx context.Context, uid string) (string, error)
}

// SignInResponse is the Identity Toolkit reply to every sign-in call.
type SignInResponse struct {
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
	LocalID      string `json:"localId"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Identity signs users in with email and password through the Identity
// Toolkit REST API and verifies tokens with the Admin SDK. It holds at most
// one session.
type Identity struct {
	admin   adminClient
	apiKey  string
	baseURL string
	client  *http.Client

	mu      sync.Mutex
	session *SignInResponse
}

var _ backend.Identity = (*Identity)(nil)

func NewIdentity(admin *auth.Client, apiKey, baseURL string, client *http.Client) *Identity {
	i := &Identity{apiKey: apiKey, baseURL: strings.TrimSuffix(baseURL, "/"), client: client}
	if admin != nil {
		i.admin = admin
	}
	return i
}

func (i *Identity) CurrentUserID() (string, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.session == nil {
		return "", false
	}
	return i.session.LocalID, true
}

func (i *Identity) IDToken() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.session == nil {
		return ""
	}
	return i.session.IDToken
}

func (i *Identity) SignIn(ctx context.Context, email, password string) (string, error) {
	return i.signIn(ctx, "login user", signInWithPasswordEndpoint, map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	})
}

func (i *Identity) SignUp(ctx context.Context, email, password string) (string, error) {
	return i.signIn(ctx, "create user", signUpEndpoint, map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	})
}

// SignInWithCustomToken mints a custom token for uid with the Admin SDK and
// exchanges it for an ID token. Meant for development tooling.
func (i *Identity) SignInWithCustomToken(ctx context.Context, uid string) (string, error) {
	if i.admin == nil {
		return "", &backend.AuthError{Op: "create custom token", Err: errNoAdmin}
	}
	customToken, err := i.admin.CustomToken(ctx, uid)
	if err != nil {
		return "", &backend.AuthError{Op: "create custom token", Err: err}
	}
	return i.signIn(ctx, "sign in with custom token", signInWithCustomTokenEndpoint, map[string]any{
		"token":             customToken,
		"returnSecureToken": true,
	})
}

func (i *Identity) SignOut(context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.session = nil
	return nil
}

func (i *Identity) VerifyToken(ctx context.Context, token string) (string, error) {
	if i.admin == nil {
		return "", &backend.AuthError{Op: "verify token", Err: errNoAdmin}
	}
	t, err := i.admin.VerifyIDToken(ctx, token)
	if err != nil {
		return "", &backend.AuthError{Op: "verify token", Err: fmt.Errorf("%w: %v", backend.ErrInvalidToken, err)}
	}
	return t.UID, nil
}

func (i *Identity) signIn(ctx context.Context, op, endpoint string, payload map[string]any) (string, error) {
	resp, err := i.post(ctx, endpoint, payload)
	if err != nil {
		return "", &backend.AuthError{Op: op, Err: err}
	}
	i.mu.Lock()
	i.session = resp
	i.mu.Unlock()
	return resp.LocalID, nil
}

func (i *Identity) post(ctx context.Context, endpoint string, payload map[string]any) (*SignInResponse, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/%s?key=%s", i.baseURL, endpoint, i.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, toolkitError(resp.StatusCode, body)
	}

	var signInResp SignInResponse
	if err := json.Unmarshal(body, &signInResp); err != nil {
		return nil, err
	}
	return &signInResp, nil
}

// toolkitError maps Identity Toolkit error codes, e.g.
// "WEAK_PASSWORD : Password should be at least 6 characters".
func toolkitError(statusCode int, body []byte) error {
	var e errorResponse
	if err := json.Unmarshal(body, &e); err != nil || e.Error.Message == "" {
		return fmt.Errorf("non-OK HTTP status: %d, response: %s", statusCode, string(body))
	}
	code, _, _ := strings.Cut(e.Error.Message, " ")
	switch code {
	case "EMAIL_EXISTS":
		return backend.ErrEmailExists
	case "EMAIL_NOT_FOUND", "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS", "INVALID_EMAIL":
		return fmt.Errorf("%w (%s)", backend.ErrInvalidCredentials, code)
	}
	return errors.New(e.Error.Message)
}
