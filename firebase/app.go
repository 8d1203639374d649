// Package firebase implements the backend services on Firebase: Auth,
// Firestore and Cloud Storage.
package firebase

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"

	"github.com/klipach/dapper/backend"
	"github.com/klipach/dapper/config"
)

// NewService connects to the Firebase project described by cfg. Close the
// returned service to release the Firestore connection.
func NewService(ctx context.Context, cfg *config.Config) (*backend.Service, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{
		ProjectID:     cfg.ProjectID,
		StorageBucket: cfg.Bucket(),
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing app: %w", err)
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting Auth client: %w", err)
	}

	firestoreClient, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting Firestore client: %w", err)
	}

	storageClient, err := app.Storage(ctx)
	if err != nil {
		firestoreClient.Close()
		return nil, fmt.Errorf("error getting Storage client: %w", err)
	}
	bucket, err := storageClient.DefaultBucket()
	if err != nil {
		firestoreClient.Close()
		return nil, fmt.Errorf("error getting default bucket: %w", err)
	}

	identity := NewIdentity(authClient, cfg.APIKey, cfg.IdentityToolkitURL, newToolkitClient())
	return backend.NewService(
		identity,
		NewDocuments(firestoreClient),
		NewBlobs(bucket, cfg.Bucket()),
		firestoreClient,
	), nil
}
