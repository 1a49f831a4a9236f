package mimetypes

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
)

// Repository handles the host platform's filecache database.
// The filecache schema is owned by the host: a mimetypes table assigning
// numeric ids to MIME type strings, and a filecache table referencing those
// ids per file. We only insert missing MIME types and re-point existing
// file rows; we never create or alter the host's tables.
type Repository struct {
	db  *sql.DB        // host filecache database
	log zerolog.Logger // Structured logger
}

// NewRepository creates a new filecache repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "filecache").Logger(),
	}
}

// EnsureMimeType makes sure a MIME type exists in the host's mimetypes
// index and returns its id. Inserting an existing MIME type is a no-op.
func (r *Repository) EnsureMimeType(mime string) (int64, error) {
	var id int64
	err := r.db.QueryRow("SELECT id FROM mimetypes WHERE mimetype = ?", mime).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("failed to look up mimetype %s: %w", mime, err)
	}

	result, err := r.db.Exec("INSERT INTO mimetypes (mimetype) VALUES (?)", mime)
	if err != nil {
		return 0, fmt.Errorf("failed to insert mimetype %s: %w", mime, err)
	}

	id, err = result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get id for mimetype %s: %w", mime, err)
	}

	r.log.Info().Str("mimetype", mime).Int64("id", id).Msg("Registered new mimetype")
	return id, nil
}

// AssociateExtension re-points every cached file with the given extension to
// the MIME type. Returns the number of updated rows. Re-running with the same
// arguments leaves the filecache unchanged, so registration stays idempotent.
func (r *Repository) AssociateExtension(ext, mime string) (int64, error) {
	mimeID, err := r.EnsureMimeType(mime)
	if err != nil {
		return 0, err
	}

	// Case-insensitive suffix match on the basename column.
	result, err := r.db.Exec(
		"UPDATE filecache SET mimetype = ? WHERE lower(name) LIKE ? AND mimetype != ?",
		mimeID, "%."+ext, mimeID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to associate extension %s with %s: %w", ext, mime, err)
	}

	updated, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count updated filecache rows for %s: %w", ext, err)
	}

	if updated > 0 {
		r.log.Info().
			Str("extension", ext).
			Str("mimetype", mime).
			Int64("updated", updated).
			Msg("Updated filecache entries")
	}

	return updated, nil
}
