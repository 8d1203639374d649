package firebase

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/cenkalti/backoff/v4"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/klipach/dapper/backend"
)

type snapshotDocument struct {
	snap *firestore.DocumentSnapshot
}

func (d snapshotDocument) ID() string { return d.snap.Ref.ID }

func (d snapshotDocument) DataTo(v any) error { return d.snap.DataTo(v) }

// Documents is the Firestore document store.
type Documents struct {
	client     *firestore.Client
	newBackOff func() backoff.BackOff
}

var _ backend.Documents = (*Documents)(nil)

func NewDocuments(client *firestore.Client) *Documents {
	return &Documents{client: client, newBackOff: listenBackOff}
}

// listenBackOff paces re-listening after a failed snapshot stream. It never
// gives up; closing the subscription is the only way out.
func listenBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = time.Minute
	b.MaxElapsedTime = 0
	return b
}

func (d *Documents) Get(ctx context.Context, path string) (backend.Document, error) {
	ref := d.client.Doc(path)
	if ref == nil {
		return nil, fmt.Errorf("invalid document path %q", path)
	}
	snap, err := ref.Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, fmt.Errorf("%s: %w", path, backend.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return snapshotDocument{snap: snap}, nil
}

func (d *Documents) Set(ctx context.Context, path string, record any) error {
	ref := d.client.Doc(path)
	if ref == nil {
		return fmt.Errorf("invalid document path %q", path)
	}
	_, err := ref.Set(ctx, record)
	return err
}

func (d *Documents) List(ctx context.Context, collectionPath, orderField string) ([]backend.Document, error) {
	q, err := d.query(collectionPath, orderField)
	if err != nil {
		return nil, err
	}
	snaps, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	docs := make([]backend.Document, 0, len(snaps))
	for _, snap := range snaps {
		docs = append(docs, snapshotDocument{snap: snap})
	}
	return docs, nil
}

func (d *Documents) Subscribe(ctx context.Context, collectionPath, orderField string) (backend.Subscription, error) {
	q, err := d.query(collectionPath, orderField)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &subscription{
		path:    collectionPath,
		updates: make(chan backend.Update),
		cancel:  cancel,
	}
	go s.listen(ctx, q, d.newBackOff())
	return s, nil
}

func (d *Documents) query(collectionPath, orderField string) (firestore.Query, error) {
	coll := d.client.Collection(collectionPath)
	if coll == nil {
		return firestore.Query{}, fmt.Errorf("invalid collection path %q", collectionPath)
	}
	if orderField == "" {
		return coll.Query, nil
	}
	return coll.OrderBy(orderField, firestore.Asc), nil
}

type subscription struct {
	path    string
	updates chan backend.Update
	cancel  context.CancelFunc
}

func (s *subscription) Updates() <-chan backend.Update { return s.updates }

func (s *subscription) Close() error {
	s.cancel()
	return nil
}

// listen runs snapshot streams until the context ends. A failed stream is
// reported and re-opened after a backoff; the new stream replays the
// collection in an update marked Reset.
func (s *subscription) listen(ctx context.Context, q firestore.Query, b backoff.BackOff) {
	defer close(s.updates)
	for {
		err := s.stream(ctx, q, b)
		if ctx.Err() != nil {
			return
		}
		if !s.send(ctx, backend.Update{Err: &backend.SubscriptionError{Path: s.path, Err: err}}) {
			return
		}
		wait := b.NextBackOff()
		if wait == backoff.Stop {
			return
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return
		}
	}
}

func (s *subscription) stream(ctx context.Context, q firestore.Query, b backoff.BackOff) error {
	it := q.Snapshots(ctx)
	defer it.Stop()
	// every stream starts with a full snapshot, even an empty one
	first := true
	for {
		snap, err := it.Next()
		if err != nil {
			return err
		}
		b.Reset()
		if len(snap.Changes) == 0 && !first {
			continue
		}
		changes := make([]backend.Change, 0, len(snap.Changes))
		for _, c := range snap.Changes {
			changes = append(changes, backend.Change{
				Kind: changeKind(c.Kind),
				Doc:  snapshotDocument{snap: c.Doc},
			})
		}
		if !s.send(ctx, backend.Update{Changes: changes, Reset: first}) {
			return ctx.Err()
		}
		first = false
	}
}

func (s *subscription) send(ctx context.Context, u backend.Update) bool {
	select {
	case s.updates <- u:
		return true
	case <-ctx.Done():
		return false
	}
}

func changeKind(k firestore.DocumentChangeKind) backend.ChangeKind {
	switch k {
	case firestore.DocumentModified:
		return backend.Modified
	case firestore.DocumentRemoved:
		return backend.Removed
	}
	return backend.Added
}
