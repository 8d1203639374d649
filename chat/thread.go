package chat

import (
	"slices"

	"github.com/klipach/dapper/backend"
	"github.com/klipach/dapper/contract"
)

// Thread is the message list of one conversation in arrival order.
// Messages are immutable, so only Added changes have an effect, and a
// message id is appended at most once. It is not safe for concurrent use.
type Thread struct {
	messages []contract.Message
	seen     map[string]struct{}
	revision uint64
}

// ThreadSnapshot is an immutable copy of a Thread.
type ThreadSnapshot struct {
	Messages []contract.Message
	Revision uint64
}

func NewThread() *Thread {
	return &Thread{seen: make(map[string]struct{})}
}

// Apply appends a newly added message and reports whether the thread changed.
func (t *Thread) Apply(ev backend.ChangeEvent[contract.Message]) bool {
	if ev.Kind != backend.Added {
		return false
	}
	if _, ok := t.seen[ev.ID]; ok {
		return false
	}
	t.seen[ev.ID] = struct{}{}
	t.messages = append(t.messages, ev.Payload)
	t.revision++
	return true
}

func (t *Thread) Messages() []contract.Message {
	return slices.Clone(t.messages)
}

// Revision counts applied messages. Consumers compare it to detect new data.
func (t *Thread) Revision() uint64 { return t.revision }

// reset keeps the thread: messages are never deleted, and the replay is
// absorbed by the seen ids.
func (t *Thread) reset() bool { return false }

func (t *Thread) snapshot() ThreadSnapshot {
	return ThreadSnapshot{Messages: t.Messages(), Revision: t.revision}
}
