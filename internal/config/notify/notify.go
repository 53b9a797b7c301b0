// Package notify reports which settings changed between two resolutions of
// the same project.
//
// Diff compares two configuration snapshots. A Notifier fans the resulting
// changes out to observers subscribed to the whole configuration or to a
// settings subtree.
package notify

import (
	"reflect"
	"sort"
	"sync"
)

// ChangeType represents the type of configuration change.
type ChangeType int

const (
	// ChangeSet indicates a value was set or updated.
	ChangeSet ChangeType = iota

	// ChangeDelete indicates a value was deleted.
	ChangeDelete

	// ChangeReload indicates the entire configuration was reloaded.
	ChangeReload
)

// String returns the change type name.
func (c ChangeType) String() string {
	switch c {
	case ChangeSet:
		return "set"
	case ChangeDelete:
		return "delete"
	case ChangeReload:
		return "reload"
	default:
		return "unknown"
	}
}

// Change represents a configuration change event.
type Change struct {
	// Path is the dot-separated path to the changed setting.
	// Empty for reload events.
	Path string

	// Type is the type of change.
	Type ChangeType

	// OldValue is the previous value (nil when the setting is new).
	OldValue any

	// NewValue is the new value (nil for deletes).
	NewValue any

	// Source identifies the file that triggered the change.
	Source string
}

// Diff returns the leaf settings that differ between old and new, sorted by
// path. Nested maps are compared key by key; every other value is compared
// as a whole.
func Diff(source string, old, new map[string]any) []Change {
	var changes []Change
	diffMaps(&changes, source, "", old, new)
	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes
}

func diffMaps(out *[]Change, source, prefix string, old, new map[string]any) {
	for key, oldVal := range old {
		path := join(prefix, key)
		newVal, ok := new[key]
		if !ok {
			*out = append(*out, Change{Path: path, Type: ChangeDelete, OldValue: oldVal, Source: source})
			continue
		}
		oldMap, oldIsMap := oldVal.(map[string]any)
		newMap, newIsMap := newVal.(map[string]any)
		if oldIsMap && newIsMap {
			diffMaps(out, source, path, oldMap, newMap)
			continue
		}
		if !reflect.DeepEqual(oldVal, newVal) {
			*out = append(*out, Change{Path: path, Type: ChangeSet, OldValue: oldVal, NewValue: newVal, Source: source})
		}
	}
	for key, newVal := range new {
		if _, ok := old[key]; !ok {
			*out = append(*out, Change{Path: join(prefix, key), Type: ChangeSet, NewValue: newVal, Source: source})
		}
	}
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// Observer is called when configuration changes occur.
type Observer func(change Change)

// Subscription represents an active observer subscription.
type Subscription struct {
	id       uint64
	notifier *Notifier
}

// Unsubscribe removes this subscription.
func (s *Subscription) Unsubscribe() {
	if s.notifier != nil {
		s.notifier.unsubscribe(s.id)
	}
}

type subscriber struct {
	path     string
	observer Observer
}

// Notifier delivers changes to observers synchronously, in subscription
// order.
type Notifier struct {
	mu     sync.RWMutex
	subs   map[uint64]subscriber
	nextID uint64
}

// New creates a new Notifier.
func New() *Notifier {
	return &Notifier{subs: make(map[uint64]subscriber)}
}

// Subscribe registers an observer for all changes.
func (n *Notifier) Subscribe(observer Observer) *Subscription {
	return n.SubscribePath("", observer)
}

// SubscribePath registers an observer for changes at path or below it.
// Subscribing to "server" receives changes to "server.port". Reload events
// reach every observer.
func (n *Notifier) SubscribePath(path string, observer Observer) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	n.subs[id] = subscriber{path: path, observer: observer}
	return &Subscription{id: id, notifier: n}
}

// Notify sends each change to the matching observers.
func (n *Notifier) Notify(changes ...Change) {
	n.mu.RLock()
	ids := make([]uint64, 0, len(n.subs))
	for id := range n.subs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	subs := make([]subscriber, len(ids))
	for i, id := range ids {
		subs[i] = n.subs[id]
	}
	n.mu.RUnlock()

	for _, change := range changes {
		for _, s := range subs {
			if change.Type == ChangeReload || matches(s.path, change.Path) {
				s.observer(change)
			}
		}
	}
}

// NotifyReload sends a reload event for source.
func (n *Notifier) NotifyReload(source string) {
	n.Notify(Change{Type: ChangeReload, Source: source})
}

func (n *Notifier) unsubscribe(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.subs, id)
}

// matches reports whether path is sub or lies below it.
func matches(sub, path string) bool {
	if sub == "" || sub == path {
		return true
	}
	return len(path) > len(sub) && path[:len(sub)] == sub && path[len(sub)] == '.'
}
