package memory

import "github.com/klipach/dapper/backend"

// Backend groups the in-memory collaborators so tests can reach the fault
// injection helpers.
type Backend struct {
	Identity  *Identity
	Documents *Documents
	Blobs     *Blobs
}

func New() *Backend {
	return &Backend{
		Identity:  NewIdentity(),
		Documents: NewDocuments(),
		Blobs:     NewBlobs(),
	}
}

// Service returns a facade over the in-memory collaborators.
func (b *Backend) Service() *backend.Service {
	return backend.NewService(b.Identity, b.Documents, b.Blobs)
}
