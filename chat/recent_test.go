package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/klipach/dapper/backend"
	"github.com/klipach/dapper/contract"
)

func recentEvent(kind backend.ChangeKind, id, text string) backend.ChangeEvent[contract.RecentMessage] {
	return backend.ChangeEvent[contract.RecentMessage]{
		Kind:    kind,
		ID:      id,
		Payload: contract.RecentMessage{ConversationID: id, Text: text},
	}
}

func recentIDs(list []contract.RecentMessage) []string {
	ids := make([]string, 0, len(list))
	for _, m := range list {
		ids = append(ids, m.ConversationID)
	}
	return ids
}

func TestRecentMessagesApply(t *testing.T) {
	tests := []struct {
		name     string
		events   []backend.ChangeEvent[contract.RecentMessage]
		expected []string
		texts    []string
	}{
		{
			name:     "empty",
			expected: []string{},
			texts:    []string{},
		},
		{
			name: "added is inserted at the front",
			events: []backend.ChangeEvent[contract.RecentMessage]{
				recentEvent(backend.Added, "p1", "hi"),
				recentEvent(backend.Added, "p2", "yo"),
			},
			expected: []string{"p2", "p1"},
			texts:    []string{"yo", "hi"},
		},
		{
			name: "modified replaces the old entry and moves it to the front",
			events: []backend.ChangeEvent[contract.RecentMessage]{
				recentEvent(backend.Added, "p1", "hi"),
				recentEvent(backend.Added, "p2", "yo"),
				recentEvent(backend.Modified, "p1", "again"),
			},
			expected: []string{"p1", "p2"},
			texts:    []string{"again", "yo"},
		},
		{
			name: "single conversation updated keeps one entry",
			events: []backend.ChangeEvent[contract.RecentMessage]{
				recentEvent(backend.Added, "p1", "hi"),
				recentEvent(backend.Modified, "p1", "again"),
			},
			expected: []string{"p1"},
			texts:    []string{"again"},
		},
		{
			name: "removed drops the entry",
			events: []backend.ChangeEvent[contract.RecentMessage]{
				recentEvent(backend.Added, "p1", "hi"),
				recentEvent(backend.Added, "p2", "yo"),
				recentEvent(backend.Removed, "p1", ""),
			},
			expected: []string{"p2"},
			texts:    []string{"yo"},
		},
		{
			name: "removed for an unknown id is ignored",
			events: []backend.ChangeEvent[contract.RecentMessage]{
				recentEvent(backend.Added, "p1", "hi"),
				recentEvent(backend.Removed, "p9", ""),
			},
			expected: []string{"p1"},
			texts:    []string{"hi"},
		},
		{
			name: "added twice does not duplicate",
			events: []backend.ChangeEvent[contract.RecentMessage]{
				recentEvent(backend.Added, "p1", "hi"),
				recentEvent(backend.Added, "p1", "hi"),
			},
			expected: []string{"p1"},
			texts:    []string{"hi"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRecentMessages()
			for _, ev := range tt.events {
				r.Apply(ev)
			}
			list := r.List()
			assert.Equal(t, tt.expected, recentIDs(list))
			texts := make([]string, 0, len(list))
			for _, m := range list {
				texts = append(texts, m.Text)
			}
			assert.Equal(t, tt.texts, texts)
			assert.Equal(t, len(tt.expected), r.Len())
		})
	}
}

func TestRecentMessagesApplyReportsChange(t *testing.T) {
	r := NewRecentMessages()
	assert.True(t, r.Apply(recentEvent(backend.Added, "p1", "hi")))
	assert.True(t, r.Apply(recentEvent(backend.Modified, "p1", "again")))
	assert.False(t, r.Apply(recentEvent(backend.Removed, "p2", "")))
	assert.True(t, r.Apply(recentEvent(backend.Removed, "p1", "")))
}

func TestRecentMessagesOrderFollowsArrival(t *testing.T) {
	r := NewRecentMessages()
	older := recentEvent(backend.Added, "p1", "late")
	older.Payload.Timestamp = time.Unix(100, 0)
	newer := recentEvent(backend.Added, "p2", "early")
	newer.Payload.Timestamp = time.Unix(200, 0)

	r.Apply(newer)
	r.Apply(older)
	assert.Equal(t, []string{"p1", "p2"}, recentIDs(r.List()))
}

func TestRecentMessagesListIsACopy(t *testing.T) {
	r := NewRecentMessages()
	r.Apply(recentEvent(backend.Added, "p1", "hi"))
	list := r.List()
	list[0].Text = "changed"
	assert.Equal(t, "hi", r.List()[0].Text)
}
