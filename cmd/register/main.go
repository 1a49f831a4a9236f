// Package main is the install-time registration CLI. It teaches the host
// platform about KiCad file types: MIME types and extension associations in
// the host's filecache database, extension/alias entries in the host's
// mapping config files, and per-type icons in the registry database.
//
// The run is idempotent; re-running after a partial failure completes the
// missing pieces without duplicating the rest. Per-extension failures are
// logged and skipped, and the process still exits 0 so a stuck extension
// never blocks plugin installation.
package main

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/kicadview/kicadview/internal/config"
	"github.com/kicadview/kicadview/internal/database"
	"github.com/kicadview/kicadview/internal/events"
	"github.com/kicadview/kicadview/internal/modules/icons"
	"github.com/kicadview/kicadview/internal/modules/mimetypes"
	"github.com/kicadview/kicadview/internal/version"
	"github.com/kicadview/kicadview/pkg/embedded"
	"github.com/kicadview/kicadview/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
	})

	log.Info().Str("version", version.Version).Msg("Starting KiCad file type registration")

	if cfg.HostDir == "" {
		log.Fatal().Msg("HOST_DIR is required for registration")
	}

	// Registry database holds the icon registrations.
	registryDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "registry.db"),
		Profile: database.ProfileStandard,
		Name:    "registry",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open registry database")
	}
	defer registryDB.Close()

	if err := registryDB.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate registry database")
	}

	// The filecache database belongs to the host platform; we only update
	// its MIME index, never its schema.
	filecacheDB, err := database.New(database.Config{
		Path:    cfg.HostFilecachePath(),
		Profile: database.ProfileStandard,
		Name:    "filecache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open host filecache database")
	}
	defer filecacheDB.Close()

	// Seed the icon source directory from the embedded fallback set when
	// it does not exist yet.
	if err := extractEmbeddedIcons(cfg.IconSourceDir); err != nil {
		log.Warn().Err(err).Str("dir", cfg.IconSourceDir).Msg("Failed to extract fallback icons")
	}

	eventBus := events.NewBus(log)
	eventManager := events.NewManager(eventBus, log)

	registrar := mimetypes.NewRegistrar(
		mimetypes.NewRepository(filecacheDB.Conn(), log),
		mimetypes.NewMappingFiles(cfg.HostConfigDir(), log),
		icons.NewRegistry(registryDB.Conn(), log),
		icons.AvailableIcons,
		cfg.IconSourceDir,
		log,
	)

	summary, err := registrar.Run(context.Background(), mimetypes.KiCadEntries)
	if err != nil {
		// Only the mapping-file write is fatal; without it the host would
		// misclassify every KiCad file.
		log.Fatal().Err(err).Msg("Registration failed")
	}

	eventManager.EmitRegistrationCompleted(summary.Registered, summary.Failed)

	log.Info().
		Int("registered", summary.Registered).
		Int("failed", summary.Failed).
		Int("icons_skipped", summary.IconsSkipped).
		Msg("Registration finished")
}

// extractEmbeddedIcons copies the embedded fallback icon set into destDir.
// Existing files are left alone so an operator-provided icon set wins.
func extractEmbeddedIcons(destDir string) error {
	if destDir == "" {
		return nil
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return err
	}

	iconFS, err := fs.Sub(embedded.Files, "icons")
	if err != nil {
		return err
	}

	return fs.WalkDir(iconFS, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}

		dest := filepath.Join(destDir, path)
		if _, err := os.Stat(dest); err == nil {
			return nil
		}

		data, err := fs.ReadFile(iconFS, path)
		if err != nil {
			return err
		}
		return os.WriteFile(dest, data, 0644)
	})
}
