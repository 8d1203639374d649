package memory

import (
	"context"
	"sync"

	"github.com/klipach/dapper/backend"
)

// subscription queues updates without bounding them so writers never block
// on a slow listener.
type subscription struct {
	mu     sync.Mutex
	queue  []backend.Update
	signal chan struct{}
	out    chan backend.Update
	done   chan struct{}
	once   sync.Once
}

func newSubscription() *subscription {
	return &subscription{
		signal: make(chan struct{}, 1),
		out:    make(chan backend.Update),
		done:   make(chan struct{}),
	}
}

func (s *subscription) Updates() <-chan backend.Update { return s.out }

func (s *subscription) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

func (s *subscription) push(u backend.Update) {
	s.mu.Lock()
	s.queue = append(s.queue, u)
	s.mu.Unlock()
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *subscription) run(ctx context.Context) {
	defer close(s.out)
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-s.signal:
				continue
			case <-s.done:
				return
			case <-ctx.Done():
				return
			}
		}
		u := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- u:
		case <-s.done:
			return
		case <-ctx.Done():
			return
		}
	}
}
