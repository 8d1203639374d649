// Package memory is an in-process implementation of the backend services.
// Live subscriptions behave like Firestore snapshot listeners: the first
// update replays the collection, later writes are delivered as they happen.
package memory

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klipach/dapper/backend"
)

type entry struct {
	id    string
	value any
	seq   uint64
}

type document struct {
	id    string
	value any
}

func (d document) ID() string { return d.id }

func (d document) DataTo(v any) error {
	dst := reflect.ValueOf(v)
	if dst.Kind() != reflect.Pointer || dst.IsNil() {
		return fmt.Errorf("memory: DataTo needs a non-nil pointer, got %T", v)
	}
	src := reflect.ValueOf(d.value)
	if !src.IsValid() {
		return fmt.Errorf("memory: document %s has no data", d.id)
	}
	if !src.Type().AssignableTo(dst.Elem().Type()) {
		return fmt.Errorf("memory: cannot decode %s (%T) into %T", d.id, d.value, v)
	}
	dst.Elem().Set(src)
	return nil
}

// Documents is a thread-safe document store.
type Documents struct {
	mu          sync.Mutex
	collections map[string]map[string]*entry
	subs        map[string][]*subscription
	writeFaults map[string]error
	seq         uint64
}

var _ backend.Documents = (*Documents)(nil)

func NewDocuments() *Documents {
	return &Documents{
		collections: make(map[string]map[string]*entry),
		subs:        make(map[string][]*subscription),
		writeFaults: make(map[string]error),
	}
}

// FailWrites makes every Set on a path starting with prefix fail with err.
// A nil err clears the fault.
func (d *Documents) FailWrites(prefix string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.writeFaults, prefix)
		return
	}
	d.writeFaults[prefix] = err
}

// FailDelivery pushes a delivery failure to every listener of collectionPath.
// The listeners stay open.
func (d *Documents) FailDelivery(collectionPath string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range d.subs[collectionPath] {
		s.push(backend.Update{Err: &backend.SubscriptionError{Path: collectionPath, Err: err}})
	}
}

func (d *Documents) Get(_ context.Context, path string) (backend.Document, error) {
	collection, id := backend.Split(path)
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.collections[collection][id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, backend.ErrNotFound)
	}
	return document{id: e.id, value: e.value}, nil
}

func (d *Documents) Set(_ context.Context, path string, record any) error {
	collection, id := backend.Split(path)
	value := deref(record)

	d.mu.Lock()
	defer d.mu.Unlock()
	for prefix, err := range d.writeFaults {
		if strings.HasPrefix(path, prefix) {
			return err
		}
	}

	docs, ok := d.collections[collection]
	if !ok {
		docs = make(map[string]*entry)
		d.collections[collection] = docs
	}
	kind := backend.Modified
	e, ok := docs[id]
	if !ok {
		kind = backend.Added
		d.seq++
		e = &entry{id: id, seq: d.seq}
		docs[id] = e
	}
	e.value = value

	change := backend.Change{Kind: kind, Doc: document{id: id, value: value}}
	for _, s := range d.subs[collection] {
		s.push(backend.Update{Changes: []backend.Change{change}})
	}
	return nil
}

// Delete removes a document and notifies listeners.
func (d *Documents) Delete(_ context.Context, path string) error {
	collection, id := backend.Split(path)
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.collections[collection][id]
	if !ok {
		return fmt.Errorf("%s: %w", path, backend.ErrNotFound)
	}
	delete(d.collections[collection], id)
	change := backend.Change{Kind: backend.Removed, Doc: document{id: id, value: e.value}}
	for _, s := range d.subs[collection] {
		s.push(backend.Update{Changes: []backend.Change{change}})
	}
	return nil
}

func (d *Documents) List(_ context.Context, collectionPath, orderField string) ([]backend.Document, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sorted(collectionPath, orderField), nil
}

func (d *Documents) Subscribe(ctx context.Context, collectionPath, orderField string) (backend.Subscription, error) {
	s := newSubscription()

	d.mu.Lock()
	docs := d.sorted(collectionPath, orderField)
	initial := make([]backend.Change, 0, len(docs))
	for _, doc := range docs {
		initial = append(initial, backend.Change{Kind: backend.Added, Doc: doc})
	}
	s.push(backend.Update{Changes: initial, Reset: true})
	d.subs[collectionPath] = append(d.subs[collectionPath], s)
	d.mu.Unlock()

	go func() {
		s.run(ctx)
		d.unsubscribe(collectionPath, s)
	}()
	return s, nil
}

func (d *Documents) unsubscribe(collectionPath string, s *subscription) {
	d.mu.Lock()
	defer d.mu.Unlock()
	subs := d.subs[collectionPath]
	for i, other := range subs {
		if other == s {
			d.subs[collectionPath] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(d.subs[collectionPath]) == 0 {
		delete(d.subs, collectionPath)
	}
}

// Listeners reports how many live subscriptions watch collectionPath.
func (d *Documents) Listeners(collectionPath string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.subs[collectionPath])
}

// sorted must be called with d.mu held.
func (d *Documents) sorted(collectionPath, orderField string) []backend.Document {
	entries := make([]*entry, 0, len(d.collections[collectionPath]))
	for _, e := range d.collections[collectionPath] {
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if orderField != "" {
			a, b := fieldByTag(entries[i].value, orderField), fieldByTag(entries[j].value, orderField)
			if c := compare(a, b); c != 0 {
				return c < 0
			}
		}
		return entries[i].seq < entries[j].seq
	})
	docs := make([]backend.Document, 0, len(entries))
	for _, e := range entries {
		docs = append(docs, document{id: e.id, value: e.value})
	}
	return docs
}

func deref(v any) any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() {
		return rv.Elem().Interface()
	}
	return v
}

// fieldByTag returns the value of the field named by a firestore tag, or
// the map entry with that key.
func fieldByTag(v any, name string) any {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil
		}
		if mv := rv.MapIndex(reflect.ValueOf(name)); mv.IsValid() {
			return mv.Interface()
		}
	case reflect.Struct:
		t := rv.Type()
		for i := 0; i < t.NumField(); i++ {
			tag, _, _ := strings.Cut(t.Field(i).Tag.Get("firestore"), ",")
			if tag == name {
				return rv.Field(i).Interface()
			}
		}
	}
	return nil
}

func compare(a, b any) int {
	switch av := a.(type) {
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case int64:
		if bv, ok := b.(int64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
		}
	}
	return 0
}
