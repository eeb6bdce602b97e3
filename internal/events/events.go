// Package events provides the in-process event bus the core uses to announce
// domain changes (entries and submissions added/updated/deleted, sync runs
// finished). Subscribers are typically list presenters refreshing badges; the
// core never depends on anyone listening.
package events

import "sync"

// Canonical event names.
const (
	EntryAdded   = "entry_added"
	EntryUpdated = "entry_updated"
	EntryDeleted = "entry_deleted"

	SubmissionAdded   = "submission_added"
	SubmissionUpdated = "submission_updated"
	SubmissionDeleted = "submission_deleted"

	GradeAdded   = "grade_added"
	GradeUpdated = "grade_updated"
	GradeDeleted = "grade_deleted"

	AutoSynced     = "auto_synced"
	ManuallySynced = "manually_synced"
)

// Event is one domain notification. Payload is a small structured value
// (EntryPayload, SubmissionPayload, SyncPayload).
type Event struct {
	Name    string
	SiteID  string
	Payload any
}

// EntryPayload describes a glossary-entry change. Offline marks changes to
// the local pending queue rather than the server.
type EntryPayload struct {
	GlossaryID  int64
	EntryID     int64
	Concept     string
	TimeCreated int64
	UserID      int64
	Offline     bool
}

// SubmissionPayload describes an assignment submission or grade change.
type SubmissionPayload struct {
	AssignID int64
	UserID   int64
	Offline  bool
}

// SyncPayload describes a finished sync run for one unit.
type SyncPayload struct {
	Component string
	UnitID    string
	Updated   bool
	Warnings  []string
}

const subscriberBuffer = 16

type subscriber struct {
	ch    chan Event
	names map[string]bool
}

// Bus is a typed publish/subscribe channel. The zero value is not usable;
// construct with NewBus.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]*subscriber
	nextID int
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]*subscriber)}
}

// Subscribe registers interest in the given event names (all events when no
// names are passed). The returned cancel func must be called to release the
// subscription; the channel is closed by cancel.
func (b *Bus) Subscribe(names ...string) (<-chan Event, func()) {
	sub := &subscriber{ch: make(chan Event, subscriberBuffer)}
	if len(names) > 0 {
		sub.names = make(map[string]bool, len(names))
		for _, n := range names {
			sub.names[n] = true
		}
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if s, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(s.ch)
		}
		b.mu.Unlock()
	}
	return sub.ch, cancel
}

// Publish delivers evt to every matching subscriber. Delivery is
// non-blocking: a subscriber that has fallen subscriberBuffer events behind
// misses this one.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		if sub.names != nil && !sub.names[evt.Name] {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
		}
	}
}
