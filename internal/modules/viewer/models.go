// Package viewer implements the file-loading lifecycle behind the embedded
// KiCad viewer widget: one session per opened file, a two-tier fetch of the
// raw bytes, and materialization of those bytes as a URL the widget's src
// attribute can consume. The widget itself is an opaque third party; nothing
// here parses or renders KiCad content.
package viewer

import (
	"sync"
	"time"
)

// SessionState is a stage of the session lifecycle.
type SessionState string

const (
	// StateLoading - session created, fetch in flight
	StateLoading SessionState = "loading"
	// StateEncoding - bytes fetched, materialization in progress
	StateEncoding SessionState = "encoding"
	// StateReady - pipeline finished; ContentURL may still be empty when
	// both materialization tiers failed ("ready without content")
	StateReady SessionState = "ready"
	// StateError - fetch failed terminally; no retry, no content
	StateError SessionState = "error"
)

// Session is one viewer instance for one opened file. SourceRef and Basename
// are set at creation and never change. All other fields are written only by
// the owning Service under its lock.
type Session struct {
	ID         string
	State      SessionState
	SourceRef  string // URL or host path the file bytes come from
	Basename   string
	Extension  string // lowercase substring after the last dot of Basename
	Mime       string // synthetic MIME type derived from Extension
	ContentURL string // materialized URL, "" until Ready (or forever on failure)
	Revocable  bool   // true when ContentURL is a blob URL that must be revoked
	Loading    bool
	Closed     bool // torn down; late pipeline results must not be written
	CreatedAt  time.Time
	UpdatedAt  time.Time

	mu sync.Mutex
}

// Snapshot is the externally visible view of a session, used for API
// responses and for msgpack persistence. Content URLs are exposed over the
// API but never persisted.
type Snapshot struct {
	ID         string       `json:"id" msgpack:"id"`
	State      SessionState `json:"state" msgpack:"state"`
	SourceRef  string       `json:"source_ref" msgpack:"source_ref"`
	Basename   string       `json:"basename" msgpack:"basename"`
	Extension  string       `json:"extension" msgpack:"extension"`
	Mime       string       `json:"mimetype" msgpack:"mimetype"`
	ContentURL string       `json:"content_url,omitempty" msgpack:"-"`
	Revocable  bool         `json:"revocable" msgpack:"revocable"`
	Loading    bool         `json:"loading" msgpack:"loading"`
	HasContent bool         `json:"has_content" msgpack:"has_content"`
	Closed     bool         `json:"closed" msgpack:"closed"`
	CreatedAt  time.Time    `json:"created_at" msgpack:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at" msgpack:"updated_at"`
}

// snapshotLocked builds a Snapshot; callers must hold s.mu.
func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		ID:         s.ID,
		State:      s.State,
		SourceRef:  s.SourceRef,
		Basename:   s.Basename,
		Extension:  s.Extension,
		Mime:       s.Mime,
		ContentURL: s.ContentURL,
		Revocable:  s.Revocable,
		Loading:    s.Loading,
		HasContent: s.ContentURL != "",
		Closed:     s.Closed,
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
	}
}

// Snapshot returns a consistent copy of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}
