package backend

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrNotSignedIn        = errors.New("not signed in")
	ErrInvalidToken       = errors.New("invalid token")
	ErrEmailExists        = errors.New("the email address is already in use by another account")
	ErrInvalidCredentials = errors.New("the email address or password is incorrect")
)

// AuthError is a sign-in, sign-up or token failure.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// SubscriptionError is a live feed delivery failure.
type SubscriptionError struct {
	Path string
	Err  error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("failed to listen for %s: %v", e.Path, e.Err)
}

func (e *SubscriptionError) Unwrap() error { return e.Err }

// WriteError is a failed document write.
type WriteError struct {
	Op   string
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("failed to write %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// AssetError is a blob upload or URL resolution failure.
type AssetError struct {
	Path string
	Err  error
}

func (e *AssetError) Error() string {
	return fmt.Sprintf("failed to retrieve asset %s: %v", e.Path, e.Err)
}

func (e *AssetError) Unwrap() error { return e.Err }

// Status renders err as the status line shown to the user. A nil error
// renders as the empty string.
func Status(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
