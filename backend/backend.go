// Package backend describes the hosted services the chat core talks to:
// identity, a document store with live listeners, and blob storage.
package backend

import (
	"context"
	"io"
)

// Identity manages the signed-in user.
type Identity interface {
	// CurrentUserID returns the uid of the signed-in user, if any.
	CurrentUserID() (string, bool)
	SignIn(ctx context.Context, email, password string) (string, error)
	SignUp(ctx context.Context, email, password string) (string, error)
	SignOut(ctx context.Context) error
	// IDToken returns the token of the current session, used by clients of the HTTP gateway.
	IDToken() string
	// VerifyToken checks an ID token and returns the uid it was issued to.
	VerifyToken(ctx context.Context, token string) (string, error)
}

// Document is a stored record.
type Document interface {
	ID() string
	// DataTo decodes the record into v, which must be a pointer.
	DataTo(v any) error
}

// Documents is a hierarchical document store. Paths are slash-separated,
// alternating collection and document ids.
type Documents interface {
	Get(ctx context.Context, path string) (Document, error)
	Set(ctx context.Context, path string, record any) error
	List(ctx context.Context, collectionPath, orderField string) ([]Document, error)
	// Subscribe listens to a collection ordered by orderField. The first
	// update carries every existing document as Added.
	Subscribe(ctx context.Context, collectionPath, orderField string) (Subscription, error)
}

// Blobs stores binary objects and issues download URLs for them.
type Blobs interface {
	Upload(ctx context.Context, path string, data []byte) error
	DownloadURL(ctx context.Context, path string) (string, error)
}

// Service bundles the three collaborators. It is passed explicitly to
// every component that needs it.
type Service struct {
	Identity  Identity
	Documents Documents
	Blobs     Blobs

	closers []io.Closer
}

// NewService wires the collaborators together. closers are released by Close.
func NewService(identity Identity, documents Documents, blobs Blobs, closers ...io.Closer) *Service {
	return &Service{
		Identity:  identity,
		Documents: documents,
		Blobs:     blobs,
		closers:   closers,
	}
}

func (s *Service) Close() error {
	var firstErr error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
