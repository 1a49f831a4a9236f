package events

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversToSubscribedType(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var received []*Event
	bus.Subscribe(SessionOpened, func(e *Event) {
		received = append(received, e)
	})

	bus.Publish(&Event{
		Type:   SessionOpened,
		Module: "viewer",
		Data:   map[string]interface{}{"session_id": "abc"},
	})
	bus.Publish(&Event{Type: SessionClosed, Module: "viewer"})

	require.Len(t, received, 1)
	assert.Equal(t, SessionOpened, received[0].Type)
	assert.Equal(t, "abc", received[0].Data["session_id"])
	assert.False(t, received[0].Timestamp.IsZero(), "publish should stamp the event")
}

func TestBusMultipleHandlers(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	count := 0
	bus.Subscribe(SessionReady, func(e *Event) { count++ })
	bus.Subscribe(SessionReady, func(e *Event) { count++ })

	bus.Publish(&Event{Type: SessionReady, Module: "viewer"})

	assert.Equal(t, 2, count)
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	count := 0
	id := bus.Subscribe(SessionOpened, func(e *Event) { count++ })
	bus.Subscribe(SessionOpened, func(e *Event) { count += 10 })

	bus.Publish(&Event{Type: SessionOpened, Module: "viewer"})
	require.Equal(t, 11, count)

	bus.Unsubscribe(SessionOpened, id)
	bus.Publish(&Event{Type: SessionOpened, Module: "viewer"})
	assert.Equal(t, 21, count, "removed handler must not fire; the other survives")

	// Unknown tokens are a no-op
	bus.Unsubscribe(SessionOpened, id)
	bus.Unsubscribe(SessionClosed, 999)
}

func TestBusIgnoresNilEvent(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	bus.Subscribe(SessionFailed, func(e *Event) {
		t.Fatal("handler should not run for nil event")
	})

	bus.Publish(nil)
}

func TestManagerEmitters(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	manager := NewManager(bus, zerolog.Nop())

	var got *Event
	bus.Subscribe(SessionReady, func(e *Event) { got = e })

	manager.EmitSessionReady("sess-1", false)

	require.NotNil(t, got)
	assert.Equal(t, "sess-1", got.Data["session_id"])
	assert.Equal(t, false, got.Data["has_content"])
	assert.Equal(t, "viewer", got.Module)
}
