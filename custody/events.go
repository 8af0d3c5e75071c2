package custody

import (
	"sync"
	"time"

	"github.com/warp/custody-engine/generic"
)

type EventKind string

const (
	EventRecordsChanged  EventKind = "records_changed"
	EventStreakChanged   EventKind = "streak_changed"
	EventFetchRetrying   EventKind = "fetch_retrying" // offline indicator while backing off
	EventFetchFailed     EventKind = "fetch_failed"
	EventSessionInvalid  EventKind = "session_invalid"
	EventMutationDropped EventKind = "mutation_dropped"
	EventMutationApplied EventKind = "mutation_applied"
)

// Event is delivered synchronously to every subscriber.
type Event struct {
	Kind    EventKind
	At      time.Time
	Target  string // window or date the event is about, when there is one
	Streak  Streak
	Attempt int
	Delay   time.Duration
	Err     error
}

// Bus is a callback registry. Subscribers run on the publisher's goroutine,
// in no particular order, and must not block.
type Bus struct {
	mu   sync.RWMutex
	next int
	subs map[int]func(Event)
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]func(Event))}
}

// Subscribe registers fn and returns a function that removes it.
func (b *Bus) Subscribe(fn func(Event)) (unsubscribe func()) {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	subs := make([]func(Event), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.RUnlock()

	for _, fn := range subs {
		fn(e)
	}
}

// windowTarget and dateTarget keep Event.Target formatting in one place.
func windowTarget(w generic.Window) string { return w.String() }
func dateTarget(d generic.Date) string     { return d.String() }
