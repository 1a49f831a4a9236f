package viewer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kicadview/kicadview/internal/events"
	"github.com/kicadview/kicadview/internal/modules/mimetypes"
)

// Service is the session manager. Each opened file gets one session that
// runs the Loading -> Encoding -> Ready|Error pipeline exactly once; no
// state is ever re-entered and no retries happen. Teardown is valid from
// any state and terminal.
type Service struct {
	sessions     map[string]*Session
	fetcher      *Fetcher
	materializer *Materializer
	repo         *Repository // optional; nil disables persistence
	eventManager *events.Manager
	log          zerolog.Logger

	mu sync.Mutex
}

// NewService creates a new session service
func NewService(fetcher *Fetcher, materializer *Materializer, repo *Repository, eventManager *events.Manager, log zerolog.Logger) *Service {
	return &Service{
		sessions:     make(map[string]*Session),
		fetcher:      fetcher,
		materializer: materializer,
		repo:         repo,
		eventManager: eventManager,
		log:          log.With().Str("component", "viewer_service").Logger(),
	}
}

// Open creates a session for a file and runs its pipeline to completion.
// The returned snapshot is in a terminal loading state: Ready (with or
// without content) or Error. Fetch failures are terminal for the session;
// the caller shows an empty viewer rather than retrying.
func (s *Service) Open(ctx context.Context, sourceRef, basename string) Snapshot {
	ext := mimetypes.ExtensionOf(basename)
	now := time.Now()

	sess := &Session{
		ID:        uuid.NewString(),
		State:     StateLoading,
		SourceRef: sourceRef,
		Basename:  basename,
		Extension: ext,
		Mime:      mimetypes.MimeTypeForExtension(ext),
		Loading:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	s.persist(sess.Snapshot())
	if s.eventManager != nil {
		s.eventManager.EmitSessionOpened(sess.ID, basename)
	}

	s.log.Info().
		Str("session_id", sess.ID).
		Str("basename", basename).
		Str("mimetype", sess.Mime).
		Msg("Session opened")

	s.runPipeline(ctx, sess)
	return sess.Snapshot()
}

// runPipeline executes fetch then materialization for one session. The
// session may be torn down concurrently (DELETE from another request);
// results arriving after teardown are discarded.
func (s *Service) runPipeline(ctx context.Context, sess *Session) {
	content, err := s.fetcher.Fetch(ctx, sess.SourceRef, sess.Basename)
	if err != nil {
		sess.mu.Lock()
		if sess.Closed {
			sess.mu.Unlock()
			return
		}
		sess.State = StateError
		sess.Loading = false
		sess.UpdatedAt = time.Now()
		snap := sess.snapshotLocked()
		sess.mu.Unlock()

		s.log.Warn().
			Err(err).
			Str("session_id", sess.ID).
			Str("url", sess.SourceRef).
			Str("basename", sess.Basename).
			Str("stage", "fetch").
			Msg("Session failed")

		s.persist(snap)
		if s.eventManager != nil {
			s.eventManager.EmitSessionFailed(sess.ID, err.Error())
		}
		return
	}

	sess.mu.Lock()
	if sess.Closed {
		sess.mu.Unlock()
		return
	}
	sess.State = StateEncoding
	sess.UpdatedAt = time.Now()
	sess.mu.Unlock()

	materialized, err := s.materializer.Materialize(content, sess.Mime)

	sess.mu.Lock()
	if sess.Closed {
		sess.mu.Unlock()
		// The session was torn down while encoding; a fresh URL must not leak.
		s.materializer.Revoke(materialized)
		return
	}
	if err != nil {
		// Encode failure: the session still becomes Ready, just with
		// nothing to display.
		sess.State = StateReady
		sess.Loading = false
		sess.UpdatedAt = time.Now()
		snap := sess.snapshotLocked()
		sess.mu.Unlock()

		s.log.Warn().
			Err(err).
			Str("session_id", sess.ID).
			Str("basename", sess.Basename).
			Str("stage", "encode").
			Msg("Session ready without content")

		s.persist(snap)
		if s.eventManager != nil {
			s.eventManager.EmitSessionReady(sess.ID, false)
		}
		return
	}

	sess.ContentURL = materialized.URL
	sess.Revocable = materialized.Revocable
	sess.State = StateReady
	sess.Loading = false
	sess.UpdatedAt = time.Now()
	snap := sess.snapshotLocked()
	sess.mu.Unlock()

	s.log.Info().
		Str("session_id", sess.ID).
		Str("basename", sess.Basename).
		Bool("revocable", materialized.Revocable).
		Msg("Session ready")

	s.persist(snap)
	if s.eventManager != nil {
		s.eventManager.EmitSessionReady(sess.ID, true)
	}
}

// Get returns a snapshot of a live session.
func (s *Service) Get(id string) (Snapshot, bool) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()

	if !ok {
		return Snapshot{}, false
	}
	return sess.Snapshot(), true
}

// Teardown releases a session: its revocable URL is revoked, the content
// URL cleared, and the session removed from the live set. Idempotent -
// tearing down an unknown or already-closed session is a no-op.
func (s *Service) Teardown(id string) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	if !ok {
		return
	}

	sess.mu.Lock()
	if sess.Closed {
		sess.mu.Unlock()
		return
	}
	sess.Closed = true
	url := sess.ContentURL
	revocable := sess.Revocable
	sess.ContentURL = ""
	sess.Revocable = false
	sess.Loading = false
	sess.UpdatedAt = time.Now()
	snap := sess.snapshotLocked()
	sess.mu.Unlock()

	if revocable {
		s.materializer.Revoke(&MaterializedURL{URL: url, Revocable: true})
	}

	s.log.Info().Str("session_id", id).Msg("Session closed")

	s.persist(snap)
	if s.eventManager != nil {
		s.eventManager.EmitSessionClosed(id)
	}
}

// InvalidateBySource tears down every live session showing the given source.
// Driven by the host platform's file-change feed: a changed file makes all
// its materialized URLs stale. Returns the number of sessions closed.
func (s *Service) InvalidateBySource(sourceRef string) int {
	s.mu.Lock()
	var ids []string
	for id, sess := range s.sessions {
		if sess.SourceRef == sourceRef {
			ids = append(ids, id)
		}
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.Teardown(id)
	}

	if len(ids) > 0 {
		s.log.Info().
			Str("source_ref", sourceRef).
			Int("sessions", len(ids)).
			Msg("Invalidated sessions for changed file")
	}
	return len(ids)
}

// ExpireBefore tears down live sessions created before the cutoff and prunes
// persisted snapshots. Returns the number of live sessions closed.
func (s *Service) ExpireBefore(cutoff time.Time) int {
	s.mu.Lock()
	var ids []string
	for id, sess := range s.sessions {
		if sess.CreatedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.Teardown(id)
	}

	if s.repo != nil {
		if _, err := s.repo.DeleteBefore(cutoff); err != nil {
			s.log.Warn().Err(err).Msg("Failed to prune persisted sessions")
		}
	}

	return len(ids)
}

// Recent lists recent session snapshots from the persistence layer,
// falling back to the live set when persistence is disabled.
func (s *Service) Recent(limit int) ([]Snapshot, error) {
	if s.repo != nil {
		return s.repo.List(limit)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	snaps := make([]Snapshot, 0, len(s.sessions))
	for _, sess := range s.sessions {
		snaps = append(snaps, sess.Snapshot())
	}
	return snaps, nil
}

// LiveCount returns the number of live sessions.
func (s *Service) LiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Service) persist(snap Snapshot) {
	if s.repo == nil {
		return
	}
	if err := s.repo.Save(snap); err != nil {
		s.log.Warn().Err(err).Str("session_id", snap.ID).Msg("Failed to persist session snapshot")
	}
}
