package events

import (
	"time"

	"github.com/rs/zerolog"
)

// Manager provides typed convenience emitters on top of the bus so
// callers don't hand-build Data maps at every emit site.
type Manager struct {
	bus *Bus
	log zerolog.Logger
}

// NewManager creates a new event manager
func NewManager(bus *Bus, log zerolog.Logger) *Manager {
	return &Manager{
		bus: bus,
		log: log.With().Str("component", "event_manager").Logger(),
	}
}

// Bus returns the underlying bus (for subscribers)
func (m *Manager) Bus() *Bus {
	return m.bus
}

// EmitSessionOpened announces a new viewer session
func (m *Manager) EmitSessionOpened(sessionID, basename string) {
	m.bus.Publish(&Event{
		Type:      SessionOpened,
		Module:    "viewer",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"session_id": sessionID,
			"basename":   basename,
		},
	})
}

// EmitSessionReady announces a session that finished loading.
// hasContent is false when both materialization tiers failed.
func (m *Manager) EmitSessionReady(sessionID string, hasContent bool) {
	m.bus.Publish(&Event{
		Type:      SessionReady,
		Module:    "viewer",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"session_id":  sessionID,
			"has_content": hasContent,
		},
	})
}

// EmitSessionFailed announces a terminal fetch failure
func (m *Manager) EmitSessionFailed(sessionID, reason string) {
	m.bus.Publish(&Event{
		Type:      SessionFailed,
		Module:    "viewer",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"session_id": sessionID,
			"reason":     reason,
		},
	})
}

// EmitSessionClosed announces a torn-down session
func (m *Manager) EmitSessionClosed(sessionID string) {
	m.bus.Publish(&Event{
		Type:      SessionClosed,
		Module:    "viewer",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"session_id": sessionID,
		},
	})
}

// EmitRegistrationCompleted announces an install-time registration run
func (m *Manager) EmitRegistrationCompleted(registered, failed int) {
	m.bus.Publish(&Event{
		Type:      RegistrationCompleted,
		Module:    "mimetypes",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"registered": registered,
			"failed":     failed,
		},
	})
}

// EmitHostFileChanged announces a host-side file change
func (m *Manager) EmitHostFileChanged(path string) {
	m.bus.Publish(&Event{
		Type:      HostFileChanged,
		Module:    "hostevents",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"path": path,
		},
	})
}
