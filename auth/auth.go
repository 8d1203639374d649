package auth

import (
	"context"
	"net/http"
)

// Verifier checks ID tokens. backend.Identity implements it.
type Verifier interface {
	VerifyToken(ctx context.Context, token string) (string, error)
}

// Authenticate returns the uid the request's ID token was issued to.
func Authenticate(req *http.Request, verifier Verifier) (string, error) {
	jwtToken, err := BearerTokenFromRequest(req)
	if err != nil {
		return "", err
	}
	return verifier.VerifyToken(req.Context(), jwtToken)
}
