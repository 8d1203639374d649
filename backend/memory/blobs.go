package memory

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/klipach/dapper/backend"
)

const defaultBaseURL = "https://storage.local/"

type blob struct {
	data        []byte
	contentType string
}

// Blobs keeps objects in memory and serves fake download URLs.
type Blobs struct {
	mu      sync.Mutex
	baseURL string
	objects map[string]blob
	faults  map[string]error
}

var _ backend.Blobs = (*Blobs)(nil)

func NewBlobs() *Blobs {
	return &Blobs{
		baseURL: defaultBaseURL,
		objects: make(map[string]blob),
		faults:  make(map[string]error),
	}
}

// Fail makes uploads and URL lookups of path fail with err. A nil err clears it.
func (b *Blobs) Fail(path string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.faults, path)
		return
	}
	b.faults[path] = err
}

func (b *Blobs) Upload(_ context.Context, path string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.faults[path]; err != nil {
		return err
	}
	b.objects[path] = blob{
		data:        append([]byte(nil), data...),
		contentType: mimetype.Detect(data).String(),
	}
	return nil
}

func (b *Blobs) DownloadURL(_ context.Context, path string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.faults[path]; err != nil {
		return "", err
	}
	if _, ok := b.objects[path]; !ok {
		return "", fmt.Errorf("%s: %w", path, backend.ErrNotFound)
	}
	return strings.TrimSuffix(b.baseURL, "/") + "/" + url.PathEscape(path), nil
}

// ContentType returns the detected MIME type of a stored object.
func (b *Blobs) ContentType(path string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.objects[path].contentType
}
