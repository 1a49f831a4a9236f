package viewer

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// Repository persists session snapshots in the cache database so recent
// sessions survive restarts for the admin listing. Snapshots are stored as
// msgpack blobs; content URLs and blob bytes are never written to disk.
type Repository struct {
	db  *sql.DB // cache.db - viewer_sessions table
	log zerolog.Logger
}

// NewRepository creates a new session repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "viewer_sessions").Logger(),
	}
}

// Save upserts a session snapshot. The ContentURL field is blanked before
// encoding; materialized URLs are process-local and must not outlive it.
func (r *Repository) Save(snap Snapshot) error {
	snap.ContentURL = ""

	blob, err := msgpack.Marshal(&snap)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", snap.ID, err)
	}

	_, err = r.db.Exec(`
		INSERT INTO viewer_sessions (id, snapshot, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			snapshot = excluded.snapshot,
			updated_at = excluded.updated_at
	`, snap.ID, blob, snap.CreatedAt.Unix(), snap.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", snap.ID, err)
	}
	return nil
}

// Get loads one snapshot by id. Returns nil when absent.
func (r *Repository) Get(id string) (*Snapshot, error) {
	var blob []byte
	err := r.db.QueryRow("SELECT snapshot FROM viewer_sessions WHERE id = ?", id).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}

	var snap Snapshot
	if err := msgpack.Unmarshal(blob, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	return &snap, nil
}

// List returns the most recent snapshots, newest first.
func (r *Repository) List(limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(
		"SELECT snapshot FROM viewer_sessions ORDER BY created_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var snaps []Snapshot
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			r.log.Warn().Err(err).Msg("Failed to scan session row")
			continue
		}

		var snap Snapshot
		if err := msgpack.Unmarshal(blob, &snap); err != nil {
			r.log.Warn().Err(err).Msg("Failed to decode session snapshot")
			continue
		}
		snaps = append(snaps, snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	return snaps, nil
}

// DeleteBefore removes snapshots created before the cutoff.
// Returns the number of deleted rows.
func (r *Repository) DeleteBefore(cutoff time.Time) (int64, error) {
	result, err := r.db.Exec("DELETE FROM viewer_sessions WHERE created_at < ?", cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted sessions: %w", err)
	}
	return deleted, nil
}
