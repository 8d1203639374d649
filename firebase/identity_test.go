package firebase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"firebase.google.com/go/v4/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klipach/dapper/backend"
	"github.com/klipach/dapper/log"
)

type fakeAdmin struct {
	tokens map[string]string
}

func (f fakeAdmin) VerifyIDToken(_ context.Context, idToken string) (*auth.Token, error) {
	uid, ok := f.tokens[idToken]
	if !ok {
		return nil, errors.New("ID token has invalid signature")
	}
	return &auth.Token{UID: uid}, nil
}

func (f fakeAdmin) CustomToken(_ context.Context, uid string) (string, error) {
	return "custom-" + uid, nil
}

// toolkitServer fakes the Identity Toolkit accounts endpoints.
func toolkitServer(t *testing.T) *httptest.Server {
	t.Helper()
	accounts := map[string]string{"a@example.com": "secret"}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req map[string]any
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.Equal(t, true, req["returnSecureToken"])

		fail := func(message string) {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": 400, "message": message}})
		}
		email, _ := req["email"].(string)
		password, _ := req["password"].(string)
		uid := "uid-" + email

		switch r.URL.Path {
		case "/v1/accounts:signInWithPassword":
			if accounts[email] != password {
				fail("INVALID_LOGIN_CREDENTIALS")
				return
			}
		case "/v1/accounts:signUp":
			if _, ok := accounts[email]; ok {
				fail("EMAIL_EXISTS")
				return
			}
			if len(password) < 6 {
				fail("WEAK_PASSWORD : Password should be at least 6 characters")
				return
			}
			accounts[email] = password
		case "/v1/accounts:signInWithCustomToken":
			uid = req["token"].(string)
		default:
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(SignInResponse{
			IDToken:      "token-" + uid,
			RefreshToken: "refresh",
			ExpiresIn:    "3600",
			LocalID:      uid,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestIdentity(t *testing.T) *Identity {
	srv := toolkitServer(t)
	i := NewIdentity(nil, "test-key", srv.URL+"/v1/", srv.Client())
	i.admin = fakeAdmin{tokens: map[string]string{"valid": "A"}}
	return i
}

func TestIdentitySignIn(t *testing.T) {
	ctx := context.Background()
	i := newTestIdentity(t)

	_, ok := i.CurrentUserID()
	assert.False(t, ok)
	assert.Empty(t, i.IDToken())

	uid, err := i.SignIn(ctx, "a@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "uid-a@example.com", uid)
	current, ok := i.CurrentUserID()
	assert.True(t, ok)
	assert.Equal(t, uid, current)
	assert.Equal(t, "token-uid-a@example.com", i.IDToken())

	require.NoError(t, i.SignOut(ctx))
	_, ok = i.CurrentUserID()
	assert.False(t, ok)
}

func TestIdentityErrors(t *testing.T) {
	tests := []struct {
		name     string
		call     func(ctx context.Context, i *Identity) error
		target   error
		expected string
	}{
		{
			name: "wrong password",
			call: func(ctx context.Context, i *Identity) error {
				_, err := i.SignIn(ctx, "a@example.com", "nope")
				return err
			},
			target:   backend.ErrInvalidCredentials,
			expected: "failed to login user: the email address or password is incorrect (INVALID_LOGIN_CREDENTIALS)",
		},
		{
			name: "email exists",
			call: func(ctx context.Context, i *Identity) error {
				_, err := i.SignUp(ctx, "a@example.com", "secret")
				return err
			},
			target:   backend.ErrEmailExists,
			expected: "failed to create user: the email address is already in use by another account",
		},
		{
			name: "weak password",
			call: func(ctx context.Context, i *Identity) error {
				_, err := i.SignUp(ctx, "b@example.com", "123")
				return err
			},
			expected: "failed to create user: WEAK_PASSWORD : Password should be at least 6 characters",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			i := newTestIdentity(t)
			err := tt.call(context.Background(), i)
			var authErr *backend.AuthError
			require.ErrorAs(t, err, &authErr)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
			assert.EqualError(t, err, tt.expected)
			_, ok := i.CurrentUserID()
			assert.False(t, ok)
		})
	}
}

func TestIdentitySignUp(t *testing.T) {
	i := newTestIdentity(t)
	uid, err := i.SignUp(context.Background(), "b@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "uid-b@example.com", uid)
	current, _ := i.CurrentUserID()
	assert.Equal(t, uid, current)
}

func TestIdentityCustomToken(t *testing.T) {
	i := newTestIdentity(t)
	uid, err := i.SignInWithCustomToken(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, "custom-A", uid)
	assert.Equal(t, "token-custom-A", i.IDToken())
}

func TestIdentityVerifyToken(t *testing.T) {
	ctx := context.Background()
	i := newTestIdentity(t)

	uid, err := i.VerifyToken(ctx, "valid")
	require.NoError(t, err)
	assert.Equal(t, "A", uid)

	_, err = i.VerifyToken(ctx, "forged")
	assert.ErrorIs(t, err, backend.ErrInvalidToken)

	noAdmin := NewIdentity(nil, "test-key", "http://localhost", http.DefaultClient)
	_, err = noAdmin.VerifyToken(ctx, "valid")
	assert.ErrorIs(t, err, errNoAdmin)
	_, err = noAdmin.SignInWithCustomToken(ctx, "A")
	assert.ErrorIs(t, err, errNoAdmin)
}

func TestToolkitError(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		target   error
		expected string
	}{
		{
			name:     "email exists",
			status:   http.StatusBadRequest,
			body:     `{"error":{"code":400,"message":"EMAIL_EXISTS"}}`,
			target:   backend.ErrEmailExists,
			expected: "the email address is already in use by another account",
		},
		{
			name:     "email not found",
			status:   http.StatusBadRequest,
			body:     `{"error":{"code":400,"message":"EMAIL_NOT_FOUND"}}`,
			target:   backend.ErrInvalidCredentials,
			expected: "the email address or password is incorrect (EMAIL_NOT_FOUND)",
		},
		{
			name:     "other message",
			status:   http.StatusBadRequest,
			body:     `{"error":{"code":400,"message":"TOO_MANY_ATTEMPTS_TRY_LATER"}}`,
			expected: "TOO_MANY_ATTEMPTS_TRY_LATER",
		},
		{
			name:     "not json",
			status:   http.StatusBadGateway,
			body:     "upstream down",
			expected: "non-OK HTTP status: 502, response: upstream down",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := toolkitError(tt.status, []byte(tt.body))
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
			assert.EqualError(t, err, tt.expected)
		})
	}
}

func TestLoggingRoundTripper(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	var buf bytes.Buffer
	logger := slog.New(log.NewCloudLoggingHandlerWithWriter(&buf, slog.LevelDebug))
	ctx := log.WithLogger(context.Background(), logger)

	client := &http.Client{Transport: &loggingRoundTripper{rt: http.DefaultTransport}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, srv.URL+"/v1/accounts:signUp?key=secret-key", strings.NewReader(`{"password":"hunter2"}`))
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)

	out := buf.String()
	assert.Contains(t, out, "key=REDACTED")
	assert.Contains(t, out, `"status":418`)
	assert.NotContains(t, out, "secret-key")
	assert.NotContains(t, out, "hunter2")
}
