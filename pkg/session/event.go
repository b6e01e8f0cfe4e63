package session

import (
	"sync"
	"sync/atomic"
	"time"
)

// EventKind identifies what changed in the session.
type EventKind string

const (
	EventConnection   EventKind = "connection"
	EventMode         EventKind = "mode"
	EventStatus       EventKind = "status"
	EventConfig       EventKind = "config"
	EventUssd         EventKind = "ussd"
	EventInbox        EventKind = "inbox"
	EventDetail       EventKind = "detail"
	EventSmsSent      EventKind = "sms_sent"
	EventSmsReceived  EventKind = "sms_received"
	EventCaller       EventKind = "caller"
	EventForwarding   EventKind = "forwarding"
	EventActivity     EventKind = "activity"
	EventNotification EventKind = "notification"
	EventWiFi         EventKind = "wifi"
	EventCompose      EventKind = "compose"
	EventLoading      EventKind = "loading"
)

// Event is an immutable notification of session activity. Data carries a
// kind-specific value; read the full state with Session.Snapshot.
type Event struct {
	Kind      EventKind
	Timestamp time.Time
	Data      any
}

// Subscription is one reader of an EventBus. C is closed by Unsubscribe.
type Subscription struct {
	C       <-chan Event
	ch      chan Event
	kinds   map[EventKind]bool // Nil accepts every kind.
	dropped atomic.Int64
}

// Dropped counts events this subscriber missed because its buffer was full.
func (s *Subscription) Dropped() int64 { return s.dropped.Load() }

func (s *Subscription) wants(k EventKind) bool {
	return s.kinds == nil || s.kinds[k]
}

// EventBus fans session events out to subscribers. Publishing never blocks,
// so an event handler on the actor cannot stall on a slow reader.
type EventBus struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

// NewEventBus creates an empty EventBus.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a reader with a buffer of bufSize events. When kinds
// are given only those are delivered.
func (b *EventBus) Subscribe(bufSize int, kinds ...EventKind) *Subscription {
	ch := make(chan Event, bufSize)
	sub := &Subscription{C: ch, ch: ch}
	if len(kinds) > 0 {
		sub.kinds = make(map[EventKind]bool, len(kinds))
		for _, k := range kinds {
			sub.kinds[k] = true
		}
	}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	return sub
}

// Unsubscribe removes sub and closes its channel. Repeated calls are no-ops.
func (b *EventBus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	close(sub.ch)
}

// Len returns the number of active subscribers.
func (b *EventBus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish delivers e to every interested subscriber with buffer space left.
func (b *EventBus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		if !sub.wants(e.Kind) {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			sub.dropped.Add(1)
		}
	}
}
