package engine

import (
	"sync"
	"time"
)

// EventKind identifies the type of engine event.
type EventKind string

const (
	EventTurnAppended   EventKind = "turn_appended"
	EventTurnUpdated    EventKind = "turn_updated"
	EventTurnDeleted    EventKind = "turn_deleted"
	EventLogTruncated   EventKind = "log_truncated"
	EventLogCleared     EventKind = "log_cleared"
	EventLoadingChanged EventKind = "loading_changed"
	EventSendSettled    EventKind = "send_settled"
	EventSettings       EventKind = "settings_changed"
	EventError          EventKind = "error"
)

// Event is an immutable notification of engine activity. Data depends on
// Kind: bool for loading_changed, Outcome for send_settled, error for error,
// settings.Settings for settings_changed.
type Event struct {
	Kind      EventKind
	SessionID string
	TurnID    string
	Timestamp time.Time
	Data      any
}

// Subscription receives events from an EventBus.
type Subscription struct {
	C  <-chan Event
	ch chan Event
}

// EventBus fans out events to all active subscribers. It is safe for
// concurrent use.
type EventBus struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

// NewEventBus creates an EventBus ready for use.
func NewEventBus() *EventBus {
	return &EventBus{
		subs: make(map[*Subscription]struct{}),
	}
}

// Subscribe creates a new subscription with the given channel buffer size.
// The caller should read from sub.C and eventually call Unsubscribe.
func (b *EventBus) Subscribe(bufSize int) *Subscription {
	ch := make(chan Event, bufSize)
	sub := &Subscription{C: ch, ch: ch}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	return sub
}

// Unsubscribe removes the subscription and closes its channel.
func (b *EventBus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.ch)
	}
}

// terminal reports whether e closes a send.
func (e Event) terminal() bool {
	return e.Kind == EventSendSettled || e.Kind == EventError
}

// Publish sends an event to all subscribers without blocking. When a
// subscriber's buffer is full, progress events are dropped for that
// subscriber; a terminal event instead evicts the oldest buffered event to
// make room. Dropped progress is recoverable from the log.
func (b *EventBus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		select {
		case sub.ch <- e:
			continue
		default:
		}
		if !e.terminal() || cap(sub.ch) == 0 {
			continue
		}
		select {
		case <-sub.ch:
		default:
		}
		select {
		case sub.ch <- e:
		default:
		}
	}
}
