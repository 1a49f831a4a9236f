package icons

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Registry persists MIME-type-to-icon mappings in the registry database.
// The host platform consults these rows when it renders file listings.
type Registry struct {
	db  *sql.DB // registry.db - mimetype_icons table
	log zerolog.Logger
}

// NewRegistry creates a new icon registry
func NewRegistry(db *sql.DB, log zerolog.Logger) *Registry {
	return &Registry{
		db:  db,
		log: log.With().Str("component", "icon_registry").Logger(),
	}
}

// RegisterForMime upserts the icon path for one MIME type.
func (r *Registry) RegisterForMime(mime, relativeIconPath string) error {
	now := time.Now().Unix()
	_, err := r.db.Exec(`
		INSERT INTO mimetype_icons (mimetype, icon_path, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(mimetype) DO UPDATE SET
			icon_path = excluded.icon_path,
			updated_at = excluded.updated_at
	`, mime, relativeIconPath, now)
	if err != nil {
		return fmt.Errorf("failed to register icon for %s: %w", mime, err)
	}
	return nil
}

// IconForMime returns the registered icon path for a MIME type,
// or nil when none is registered.
func (r *Registry) IconForMime(mime string) (*string, error) {
	var path string
	err := r.db.QueryRow("SELECT icon_path FROM mimetype_icons WHERE mimetype = ?", mime).Scan(&path)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up icon for %s: %w", mime, err)
	}
	return &path, nil
}

// AvailableIcons lists the SVG file names in an icon source directory.
// A missing directory yields a nil slice and no error; the caller decides
// whether that is worth a warning.
func AvailableIcons(sourceDir string) ([]string, error) {
	if sourceDir == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(sourceDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read icon source directory %s: %w", sourceDir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".svg") {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// RegisterForExtension resolves and registers an icon for every MIME type of
// one extension (canonical plus aliases). Returns the resolved icon name, or
// "" when no icon was available and registration was skipped.
func (r *Registry) RegisterForExtension(ext string, mimes []string, available []string, sourceDir string) (string, error) {
	icon, ok := Resolve(ext, available)
	if !ok {
		r.log.Warn().
			Str("extension", ext).
			Str("source_dir", sourceDir).
			Msg("No icon available, skipping icon registration")
		return "", nil
	}

	// One failed MIME must not block the others; each failure is logged and
	// the loop carries on, reporting an aggregate error at the end.
	relPath := filepath.Join("icons", icon)
	var failed int
	var lastErr error
	for _, mime := range mimes {
		if err := r.RegisterForMime(mime, relPath); err != nil {
			r.log.Warn().
				Err(err).
				Str("extension", ext).
				Str("mimetype", mime).
				Msg("Failed to register icon for mimetype")
			failed++
			lastErr = err
		}
	}
	if lastErr != nil {
		return icon, fmt.Errorf("icon registration failed for %d of %d mimetypes: %w", failed, len(mimes), lastErr)
	}

	r.log.Debug().
		Str("extension", ext).
		Str("icon", icon).
		Int("mimetypes", len(mimes)).
		Msg("Registered icon")

	return icon, nil
}
