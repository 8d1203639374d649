package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/klipach/dapper/backend"
)

type account struct {
	uid      string
	password string
}

// Identity keeps accounts in memory. Tokens are opaque random strings.
type Identity struct {
	mu       sync.Mutex
	accounts map[string]account
	tokens   map[string]string
	current  string
	token    string
}

var _ backend.Identity = (*Identity)(nil)

func NewIdentity() *Identity {
	return &Identity{
		accounts: make(map[string]account),
		tokens:   make(map[string]string),
	}
}

func (i *Identity) CurrentUserID() (string, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.current, i.current != ""
}

func (i *Identity) SignUp(_ context.Context, email, password string) (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, ok := i.accounts[email]; ok {
		return "", &backend.AuthError{Op: "create user", Err: backend.ErrEmailExists}
	}
	uid := uuid.NewString()
	i.accounts[email] = account{uid: uid, password: password}
	i.startSession(uid)
	return uid, nil
}

func (i *Identity) SignIn(_ context.Context, email, password string) (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	a, ok := i.accounts[email]
	if !ok || a.password != password {
		return "", &backend.AuthError{Op: "login user", Err: backend.ErrInvalidCredentials}
	}
	i.startSession(a.uid)
	return a.uid, nil
}

func (i *Identity) SignOut(context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.current = ""
	i.token = ""
	return nil
}

func (i *Identity) IDToken() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.token
}

func (i *Identity) VerifyToken(_ context.Context, token string) (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	uid, ok := i.tokens[token]
	if !ok {
		return "", &backend.AuthError{Op: "verify token", Err: backend.ErrInvalidToken}
	}
	return uid, nil
}

// IssueToken returns a valid token for uid without a password.
func (i *Identity) IssueToken(uid string) string {
	i.mu.Lock()
	defer i.mu.Unlock()
	token := fmt.Sprintf("memory-%s", uuid.NewString())
	i.tokens[token] = uid
	return token
}

// startSession must be called with i.mu held.
func (i *Identity) startSession(uid string) {
	i.current = uid
	i.token = fmt.Sprintf("memory-%s", uuid.NewString())
	i.tokens[i.token] = uid
}
