package hostevents

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kicadview/kicadview/internal/events"
)

type fakeInvalidator struct {
	sources []string
}

func (f *fakeInvalidator) InvalidateBySource(sourceRef string) int {
	f.sources = append(f.sources, sourceRef)
	return 1
}

func TestHandleMessage_FileChange(t *testing.T) {
	inv := &fakeInvalidator{}
	bus := events.NewBus(zerolog.Nop())
	manager := events.NewManager(bus, zerolog.Nop())

	var emitted []string
	bus.Subscribe(events.HostFileChanged, func(e *events.Event) {
		emitted = append(emitted, e.Data["path"].(string))
	})

	c := NewClient("ws://unused", inv, manager, zerolog.Nop())

	err := c.handleMessage([]byte(`["files", {"path": "projects/board.kicad_pcb", "action": "modified"}]`))
	require.NoError(t, err)

	assert.Equal(t, []string{"projects/board.kicad_pcb"}, inv.sources)
	assert.Equal(t, []string{"projects/board.kicad_pcb"}, emitted)
}

func TestHandleMessage_OtherChannelIgnored(t *testing.T) {
	inv := &fakeInvalidator{}
	c := NewClient("ws://unused", inv, nil, zerolog.Nop())

	err := c.handleMessage([]byte(`["users", {"path": "ignored"}]`))
	require.NoError(t, err)
	assert.Empty(t, inv.sources)
}

func TestHandleMessage_Malformed(t *testing.T) {
	c := NewClient("ws://unused", nil, nil, zerolog.Nop())

	assert.Error(t, c.handleMessage([]byte(`not json`)))
	assert.Error(t, c.handleMessage([]byte(`["files"]`)))
	assert.Error(t, c.handleMessage([]byte(`["files", {"action": "modified"}]`)))
	assert.Error(t, c.handleMessage([]byte(`[42, {}]`)))
}

func TestStop_Idempotent(t *testing.T) {
	c := NewClient("ws://unused", nil, nil, zerolog.Nop())

	require.NoError(t, c.Stop())
	require.NoError(t, c.Stop())
}
