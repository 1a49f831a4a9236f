// Package events provides the in-process event bus used to broadcast
// viewer session lifecycle changes and registration results to subscribers
// (primarily the SSE stream handler).
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventType identifies a class of event on the bus
type EventType string

const (
	// SessionOpened is emitted when a viewer session is created and starts loading
	SessionOpened EventType = "session_opened"
	// SessionReady is emitted when a session reaches Ready (with or without content)
	SessionReady EventType = "session_ready"
	// SessionFailed is emitted when a session's fetch fails terminally
	SessionFailed EventType = "session_failed"
	// SessionClosed is emitted when a session is torn down
	SessionClosed EventType = "session_closed"
	// RegistrationCompleted is emitted after an install-time registration run
	RegistrationCompleted EventType = "registration_completed"
	// HostFileChanged is emitted when the host platform reports a changed file
	HostFileChanged EventType = "host_file_changed"
)

// Event is a single bus message. Data carries event-specific payload fields.
type Event struct {
	Type      EventType              `json:"type"`
	Module    string                 `json:"module"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Handler processes a published event. Handlers must not block; slow
// consumers should buffer internally (the SSE handler does).
type Handler func(event *Event)

// subscription pairs a handler with the token returned by Subscribe so it
// can be removed later. Handler funcs are not comparable, so the token is
// what Unsubscribe matches on.
type subscription struct {
	id      int
	handler Handler
}

// Bus is a minimal synchronous publish/subscribe bus.
// Publish calls every subscribed handler inline, so handlers are expected
// to be cheap (channel sends, log lines).
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]subscription
	nextID   int
	log      zerolog.Logger
}

// NewBus creates a new event bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[EventType][]subscription),
		log:      log.With().Str("component", "event_bus").Logger(),
	}
}

// Subscribe registers a handler for an event type and returns a token for
// Unsubscribe. Long-lived subscribers (the SSE stream) must unsubscribe on
// disconnect or their handlers keep firing forever.
func (b *Bus) Subscribe(eventType EventType, handler Handler) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.handlers[eventType] = append(b.handlers[eventType], subscription{id: b.nextID, handler: handler})
	return b.nextID
}

// Unsubscribe removes a previously registered handler. Unknown tokens are
// ignored, so double-unsubscribe is safe.
func (b *Bus) Unsubscribe(eventType EventType, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.handlers[eventType]
	for i, sub := range subs {
		if sub.id == id {
			b.handlers[eventType] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// Publish delivers an event to all handlers subscribed to its type.
// Missing timestamps are filled in at publish time.
func (b *Bus) Publish(event *Event) {
	if event == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers[event.Type]))
	for _, sub := range b.handlers[event.Type] {
		handlers = append(handlers, sub.handler)
	}
	b.mu.RUnlock()

	b.log.Debug().
		Str("event_type", string(event.Type)).
		Str("module", event.Module).
		Int("handlers", len(handlers)).
		Msg("Publishing event")

	for _, handler := range handlers {
		handler(event)
	}
}
