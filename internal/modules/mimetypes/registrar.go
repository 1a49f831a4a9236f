package mimetypes

import (
	"context"

	"github.com/rs/zerolog"
)

// FilecacheUpdater is the slice of the filecache repository the registrar needs.
type FilecacheUpdater interface {
	EnsureMimeType(mime string) (int64, error)
	AssociateExtension(ext, mime string) (int64, error)
}

// MappingAppender appends extension/MIME/alias entries to the host config files.
type MappingAppender interface {
	Append(entries []Entry) error
}

// IconRegistrar registers an icon for all MIME types of one extension.
type IconRegistrar interface {
	RegisterForExtension(ext string, mimes []string, available []string, sourceDir string) (string, error)
}

// IconLister lists the icon files available in a source directory.
type IconLister func(sourceDir string) ([]string, error)

// Summary reports the outcome of a registration run.
type Summary struct {
	Registered   int // extensions fully registered
	Failed       int // extensions with at least one failed step
	IconsSkipped int // extensions registered without an icon
}

// Registrar runs the install-time registration flow. It is idempotent and
// order-independent across extensions: each entry is processed on its own,
// and a failure in one entry never aborts the others.
type Registrar struct {
	filecache FilecacheUpdater
	mappings  MappingAppender
	icons     IconRegistrar
	listIcons IconLister
	iconDir   string
	log       zerolog.Logger
}

// NewRegistrar creates a new registrar
func NewRegistrar(filecache FilecacheUpdater, mappings MappingAppender, icons IconRegistrar, listIcons IconLister, iconDir string, log zerolog.Logger) *Registrar {
	return &Registrar{
		filecache: filecache,
		mappings:  mappings,
		icons:     icons,
		listIcons: listIcons,
		iconDir:   iconDir,
		log:       log.With().Str("component", "registrar").Logger(),
	}
}

// Run registers every entry of the table with the host platform:
// filecache MIME index, mapping/alias config files, and icons.
// Per-entry failures are logged with extension, MIME and stage, then the
// loop continues; the run as a whole succeeds unless the mapping files
// themselves cannot be written.
func (r *Registrar) Run(ctx context.Context, entries []Entry) (*Summary, error) {
	summary := &Summary{}

	// Mapping files first: a single merged write covers all entries.
	if err := r.mappings.Append(entries); err != nil {
		return summary, err
	}

	// Icon availability is scanned once per run.
	available, err := r.listIcons(r.iconDir)
	if err != nil {
		r.log.Warn().Err(err).Str("source_dir", r.iconDir).Msg("Failed to list icons, icon registration will be skipped")
		available = nil
	}
	if len(available) == 0 {
		r.log.Warn().Str("source_dir", r.iconDir).Msg("Icon source directory missing or empty, registering without icons")
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		entryFailed := false

		if _, err := r.filecache.EnsureMimeType(entry.Mime); err != nil {
			r.log.Error().
				Err(err).
				Str("extension", entry.Extension).
				Str("mimetype", entry.Mime).
				Str("stage", "ensure_mimetype").
				Msg("Registration step failed")
			entryFailed = true
		}

		if !entryFailed {
			if _, err := r.filecache.AssociateExtension(entry.Extension, entry.Mime); err != nil {
				r.log.Error().
					Err(err).
					Str("extension", entry.Extension).
					Str("mimetype", entry.Mime).
					Str("stage", "associate_extension").
					Msg("Registration step failed")
				entryFailed = true
			}
		}

		// Icon registration is best-effort even for otherwise-failed entries.
		mimes := append([]string{entry.Mime}, entry.Aliases...)
		icon, err := r.icons.RegisterForExtension(entry.Extension, mimes, available, r.iconDir)
		if err != nil {
			r.log.Error().
				Err(err).
				Str("extension", entry.Extension).
				Str("stage", "register_icon").
				Msg("Registration step failed")
			entryFailed = true
		} else if icon == "" {
			summary.IconsSkipped++
		}

		if entryFailed {
			summary.Failed++
		} else {
			summary.Registered++
		}
	}

	r.log.Info().
		Int("registered", summary.Registered).
		Int("failed", summary.Failed).
		Int("icons_skipped", summary.IconsSkipped).
		Msg("Registration run completed")

	return summary, nil
}
