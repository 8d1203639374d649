package backend

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaths(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected string
	}{
		{name: "user", path: UserPath("A"), expected: "users/A"},
		{name: "thread", path: MessagesPath("A", "B"), expected: "messages/A/B"},
		{name: "message", path: MessagePath("A", "B", "m1"), expected: "messages/A/B/m1"},
		{name: "summaries", path: RecentMessagesPath("A"), expected: "recent_messages/A/messages"},
		{name: "summary", path: RecentMessagePath("A", "B"), expected: "recent_messages/A/messages/B"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.path)
		})
	}
}

func TestPathsAreNotCleaned(t *testing.T) {
	assert.Equal(t, "messages/A/../X/Z", MessagesPath("A", "../X/Z"))
	assert.Equal(t, "recent_messages/A/messages/../../X", RecentMessagePath("A", "../../X"))
}

func TestValidID(t *testing.T) {
	tests := []struct {
		name  string
		id    string
		valid bool
	}{
		{name: "uid", id: "kX3fQ9aZ1", valid: true},
		{name: "uuid", id: "4f1c2a9e-2b7d-4c55-9d0a-6b1f3e8c7a21", valid: true},
		{name: "dots inside", id: "a..b", valid: true},
		{name: "empty", id: ""},
		{name: "dot", id: "."},
		{name: "parent", id: ".."},
		{name: "traversal", id: "../X/Z"},
		{name: "nested", id: "X/messages/forged"},
		{name: "trailing slash", id: "B/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidID(tt.id)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidID)
		})
	}
}

func TestSplit(t *testing.T) {
	collection, id := Split("recent_messages/A/messages/B")
	assert.Equal(t, "recent_messages/A/messages", collection)
	assert.Equal(t, "B", id)

	collection, id = Split("users")
	assert.Empty(t, collection)
	assert.Equal(t, "users", id)
}

func TestErrors(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "auth",
			err:      &AuthError{Op: "login user", Err: cause},
			expected: "failed to login user: boom",
		},
		{
			name:     "subscription",
			err:      &SubscriptionError{Path: "messages/A/B", Err: cause},
			expected: "failed to listen for messages/A/B: boom",
		},
		{
			name:     "write with op",
			err:      &WriteError{Op: "save recent message", Path: "recent_messages/A/messages/B", Err: cause},
			expected: "failed to save recent message: boom",
		},
		{
			name:     "write without op",
			err:      &WriteError{Path: "users/A", Err: cause},
			expected: "failed to write users/A: boom",
		},
		{
			name:     "asset",
			err:      &AssetError{Path: "dapImage.PNG", Err: cause},
			expected: "failed to retrieve asset dapImage.PNG: boom",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Status(tt.err))
			assert.ErrorIs(t, tt.err, cause)
		})
	}
	assert.Empty(t, Status(nil))
}

type stubDocument struct {
	id   string
	text string
	err  error
}

func (d stubDocument) ID() string { return d.id }

func (d stubDocument) DataTo(v any) error {
	if d.err != nil {
		return d.err
	}
	*(v.(*string)) = d.text
	return nil
}

func TestDecode(t *testing.T) {
	ev, err := Decode[string](Change{Kind: Modified, Doc: stubDocument{id: "d1", text: "hi"}})
	assert.NoError(t, err)
	assert.Equal(t, ChangeEvent[string]{Kind: Modified, ID: "d1", Payload: "hi"}, ev)

	cause := errors.New("bad field")
	ev, err = Decode[string](Change{Kind: Added, Doc: stubDocument{id: "d2", err: cause}})
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "d2", ev.ID)
}

func TestChangeKindString(t *testing.T) {
	assert.Equal(t, "added", Added.String())
	assert.Equal(t, "modified", Modified.String())
	assert.Equal(t, "removed", Removed.String())
	assert.Equal(t, "unknown", ChangeKind(7).String())
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestServiceClose(t *testing.T) {
	var closed []string
	first := errors.New("first")
	svc := NewService(nil, nil, nil,
		closerFunc(func() error { closed = append(closed, "a"); return first }),
		closerFunc(func() error { closed = append(closed, "b"); return errors.New("second") }),
	)
	assert.ErrorIs(t, svc.Close(), first)
	assert.Equal(t, []string{"a", "b"}, closed)
}
