package chat

import (
	"slices"

	"github.com/klipach/dapper/backend"
	"github.com/klipach/dapper/contract"
)

type recentEntry struct {
	id      string
	message contract.RecentMessage
}

// RecentMessages is the conversation list: one summary per document id,
// most recently touched first. It is not safe for concurrent use.
type RecentMessages struct {
	entries []recentEntry
}

func NewRecentMessages() *RecentMessages {
	return &RecentMessages{}
}

// Apply moves the changed summary to the front, or drops it when removed.
// Order follows arrival, not the summary timestamp.
func (r *RecentMessages) Apply(ev backend.ChangeEvent[contract.RecentMessage]) bool {
	idx := slices.IndexFunc(r.entries, func(e recentEntry) bool { return e.id == ev.ID })
	if idx >= 0 {
		r.entries = slices.Delete(r.entries, idx, idx+1)
	}
	if ev.Kind == backend.Removed {
		return idx >= 0
	}
	r.entries = slices.Insert(r.entries, 0, recentEntry{id: ev.ID, message: ev.Payload})
	return true
}

// List returns a copy of the current list.
func (r *RecentMessages) List() []contract.RecentMessage {
	list := make([]contract.RecentMessage, len(r.entries))
	for i, e := range r.entries {
		list[i] = e.message
	}
	return list
}

func (r *RecentMessages) Len() int { return len(r.entries) }

// reset forgets every summary; a replay re-adds the ones that still exist.
func (r *RecentMessages) reset() bool {
	dropped := len(r.entries) > 0
	r.entries = nil
	return dropped
}

func (r *RecentMessages) snapshot() []contract.RecentMessage { return r.List() }
