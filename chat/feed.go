package chat

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/klipach/dapper/backend"
	"github.com/klipach/dapper/contract"
	"github.com/klipach/dapper/log"
)

var (
	errFeedStarted = errors.New("feed already started")
	errFeedClosed  = errors.New("feed closed")
)

type synchronizer[T, S any] interface {
	Apply(backend.ChangeEvent[T]) bool
	// reset prepares for a replay of the whole collection and reports
	// whether anything was dropped.
	reset() bool
	snapshot() S
}

// Feed drives one synchronizer from one live subscription. A single
// goroutine applies changes in delivery order and publishes a snapshot to
// the observers after the initial backlog, even an empty one, and after
// every later batch that changed the list.
type Feed[T, S any] struct {
	docs       backend.Documents
	path       string
	orderField string
	sync       synchronizer[T, S]
	decode     func(backend.Change) (backend.ChangeEvent[T], error)

	mu        sync.Mutex
	onChange  []func(S)
	onError   []func(status string)
	last      S
	status    string
	sub       backend.Subscription
	started   bool
	closed    bool
	done      chan struct{}
	closeOnce sync.Once
}

// RecentMessagesFeed keeps the conversation list of one user live.
type RecentMessagesFeed = Feed[contract.RecentMessage, []contract.RecentMessage]

// ThreadFeed keeps one conversation's messages live.
type ThreadFeed = Feed[contract.Message, ThreadSnapshot]

// NewRecentMessagesFeed listens on recent_messages/{uid}/messages.
func NewRecentMessagesFeed(docs backend.Documents, uid string) *RecentMessagesFeed {
	return &RecentMessagesFeed{
		docs:       docs,
		path:       backend.RecentMessagesPath(uid),
		orderField: backend.OrderByTimestamp,
		sync:       NewRecentMessages(),
		decode:     decodeRecentMessage,
		done:       make(chan struct{}),
	}
}

// NewThreadFeed listens on messages/{uid}/{partnerUID}.
func NewThreadFeed(docs backend.Documents, uid, partnerUID string) *ThreadFeed {
	return &ThreadFeed{
		docs:       docs,
		path:       backend.MessagesPath(uid, partnerUID),
		orderField: backend.OrderByTimestamp,
		sync:       NewThread(),
		decode:     decodeMessage,
		done:       make(chan struct{}),
	}
}

// OnChange registers fn to receive every published snapshot.
func (f *Feed[T, S]) OnChange(fn func(S)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onChange = append(f.onChange, fn)
}

// OnError registers fn to receive subscription failures as status strings.
func (f *Feed[T, S]) OnError(fn func(status string)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onError = append(f.onError, fn)
}

// Start subscribes and begins applying changes. Register observers first
// to see the initial backlog.
func (f *Feed[T, S]) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return errFeedClosed
	}
	if f.started {
		f.mu.Unlock()
		return errFeedStarted
	}
	f.started = true
	f.mu.Unlock()

	sub, err := f.docs.Subscribe(ctx, f.path, f.orderField)
	if err != nil {
		close(f.done)
		return &backend.SubscriptionError{Path: f.path, Err: err}
	}

	f.mu.Lock()
	f.sub = sub
	closed := f.closed
	f.mu.Unlock()
	if closed {
		// Close ran while subscribing; run drains the closed subscription.
		_ = sub.Close()
	}

	logger := log.LoggerFromContext(ctx).With(slog.String(pathLogField, f.path))
	go f.run(logger, sub)
	return nil
}

func (f *Feed[T, S]) run(logger *slog.Logger, sub backend.Subscription) {
	defer close(f.done)
	first := true
	for u := range sub.Updates() {
		if u.Err != nil {
			logger.Warn("subscription delivery failed", slog.String(errorMsgLogField, u.Err.Error()))
			f.fail(backend.Status(u.Err))
			continue
		}
		changed := first
		if u.Reset && f.sync.reset() {
			changed = true
		}
		first = false
		for _, c := range u.Changes {
			ev, err := f.decode(c)
			if err != nil {
				logger.Error("error while decoding document",
					slog.String(docIDLogField, c.Doc.ID()),
					slog.String(errorMsgLogField, err.Error()),
				)
				continue
			}
			if f.sync.Apply(ev) {
				changed = true
			}
		}
		if changed {
			f.publish(f.sync.snapshot())
		}
	}
}

func (f *Feed[T, S]) publish(s S) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.last = s
	f.status = ""
	observers := append([]func(S){}, f.onChange...)
	f.mu.Unlock()

	for _, fn := range observers {
		fn(s)
	}
}

func (f *Feed[T, S]) fail(status string) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.status = status
	observers := append([]func(string){}, f.onError...)
	f.mu.Unlock()

	for _, fn := range observers {
		fn(status)
	}
}

// Snapshot returns the last published snapshot.
func (f *Feed[T, S]) Snapshot() S {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

// Status returns the last delivery failure, cleared by the next successful update.
func (f *Feed[T, S]) Status() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

// Done is closed once the feed has stopped applying changes.
func (f *Feed[T, S]) Done() <-chan struct{} { return f.done }

// Close cancels the subscription and waits for the feed to stop. No
// observer is called after Close returns. Close must not be called from an
// observer; cancel the Start context instead.
func (f *Feed[T, S]) Close() error {
	var err error
	f.closeOnce.Do(func() {
		f.mu.Lock()
		f.closed = true
		started := f.started
		sub := f.sub
		f.mu.Unlock()

		if sub != nil {
			err = sub.Close()
		}
		if started {
			<-f.done
		}
	})
	return err
}
