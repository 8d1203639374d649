package backend

// ChangeKind is the type of a change delivered by a live subscription.
type ChangeKind int

const (
	Added ChangeKind = iota
	Modified
	Removed
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Removed:
		return "removed"
	}
	return "unknown"
}

// Change is a single document change.
type Change struct {
	Kind ChangeKind
	Doc  Document
}

// Update is one delivery from a subscription: either a batch of changes in
// feed order, or a delivery failure. A failure does not end the subscription.
// Reset marks a full replay of the collection as Added changes: the first
// update of a subscription, and the first one after it re-listened.
type Update struct {
	Changes []Change
	Reset   bool
	Err     error
}

// Subscription is a live listener on a collection.
type Subscription interface {
	// Updates is closed once the subscription is closed.
	Updates() <-chan Update
	Close() error
}

// ChangeEvent is a change decoded into a typed payload.
type ChangeEvent[T any] struct {
	Kind    ChangeKind
	ID      string
	Payload T
}

// Decode turns a raw change into a typed event.
func Decode[T any](c Change) (ChangeEvent[T], error) {
	ev := ChangeEvent[T]{Kind: c.Kind, ID: c.Doc.ID()}
	if err := c.Doc.DataTo(&ev.Payload); err != nil {
		return ev, err
	}
	return ev, nil
}
