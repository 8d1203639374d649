package firebase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/klipach/dapper/backend"
)

const (
	downloadTokensKey   = "firebaseStorageDownloadTokens"
	firebaseStorageURL  = "https://firebasestorage.googleapis.com"
	signedURLExpiration = 7 * 24 * time.Hour
)

// Blobs stores objects in the Firebase Storage bucket. Download URLs use
// the Firebase download token, like the mobile SDKs do.
type Blobs struct {
	bucket     *storage.BucketHandle
	bucketName string
	baseURL    string
	now        func() time.Time
}

var _ backend.Blobs = (*Blobs)(nil)

func NewBlobs(bucket *storage.BucketHandle, bucketName string) *Blobs {
	return &Blobs{
		bucket:     bucket,
		bucketName: bucketName,
		baseURL:    firebaseStorageURL,
		now:        time.Now,
	}
}

func (b *Blobs) Upload(ctx context.Context, path string, data []byte) error {
	w := b.bucket.Object(path).NewWriter(ctx)
	w.ContentType = mimetype.Detect(data).String()
	w.Metadata = map[string]string{downloadTokensKey: uuid.NewString()}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func (b *Blobs) DownloadURL(ctx context.Context, path string) (string, error) {
	attrs, err := b.bucket.Object(path).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return "", fmt.Errorf("%s: %w", path, backend.ErrNotFound)
	}
	if err != nil {
		return "", err
	}
	if token := downloadToken(attrs.Metadata); token != "" {
		return downloadURL(b.baseURL, b.bucketName, path, token), nil
	}
	// objects uploaded outside Firebase have no token
	return b.bucket.SignedURL(path, &storage.SignedURLOptions{
		Method:  http.MethodGet,
		Expires: b.now().Add(signedURLExpiration),
		Scheme:  storage.SigningSchemeV4,
	})
}

func downloadToken(metadata map[string]string) string {
	token, _, _ := strings.Cut(metadata[downloadTokensKey], ",")
	return strings.TrimSpace(token)
}

func downloadURL(baseURL, bucket, path, token string) string {
	return fmt.Sprintf("%s/v0/b/%s/o/%s?alt=media&token=%s",
		strings.TrimSuffix(baseURL, "/"), bucket, url.PathEscape(path), url.QueryEscape(token))
}
