// Package main is the entry point for the kicadview sidecar service.
// The service backs the file-hosting platform's embedded KiCad viewer:
// it manages viewer sessions (fetching file bytes and materializing them
// as widget-consumable URLs), serves the embedded widget bundle, and
// reacts to the host's file-change feed by invalidating stale sessions.
//
// The application follows the usual layering:
// - Repositories for data access (registry and cache SQLite databases)
// - Services for session lifecycle logic
// - HTTP handlers for API endpoints
// - Background jobs via the janitor scheduler
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/kicadview/kicadview/internal/clients/hostevents"
	"github.com/kicadview/kicadview/internal/clients/hostfiles"
	"github.com/kicadview/kicadview/internal/config"
	"github.com/kicadview/kicadview/internal/database"
	"github.com/kicadview/kicadview/internal/events"
	"github.com/kicadview/kicadview/internal/janitor"
	"github.com/kicadview/kicadview/internal/modules/settings"
	"github.com/kicadview/kicadview/internal/modules/viewer"
	"github.com/kicadview/kicadview/internal/server"
	"github.com/kicadview/kicadview/internal/version"
	"github.com/kicadview/kicadview/pkg/logger"
)

func main() {
	// Load configuration from environment variables (.env file); the
	// settings database can override some values after the registry opens.
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

	log.Info().Str("version", version.Version).Msg("Starting kicadview service")

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Open the two service databases. The registry holds settings and
	// icon registrations; the cache holds ephemeral session snapshots.
	registryDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "registry.db"),
		Profile: database.ProfileStandard,
		Name:    "registry",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open registry database")
	}
	defer registryDB.Close()

	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer cacheDB.Close()

	for _, db := range []*database.DB{registryDB, cacheDB} {
		if err := db.Migrate(); err != nil {
			log.Fatal().Err(err).Str("database", db.Name()).Msg("Failed to migrate database")
		}
	}

	// Settings take precedence over environment variables, so operators
	// can change the session TTL without a restart or .env edit.
	settingsRepo := settings.NewRepository(registryDB.Conn(), log)
	if err := cfg.UpdateFromSettings(settingsRepo); err != nil {
		log.Warn().Err(err).Msg("Failed to update config from settings, using environment values")
	}

	// Event bus for session and registration events; the SSE stream and
	// any future listeners subscribe here.
	eventBus := events.NewBus(log)
	eventManager := events.NewManager(eventBus, log)

	// Viewer pipeline wiring: fetch tiers, blob store, materializer.
	hostFilesClient := hostfiles.NewClient(cfg.HostBaseURL, log)
	fetcher := viewer.NewFetcher(
		&http.Client{Timeout: 30 * time.Second},
		&hostFileFetcherAdapter{client: hostFilesClient},
		log,
	)

	blobStore := viewer.NewBlobStore(cfg.BlobStoreMaxSize, log)
	materializer := viewer.NewMaterializer(blobStore, log)

	sessionRepo := viewer.NewRepository(cacheDB.Conn(), log)
	viewerService := viewer.NewService(fetcher, materializer, sessionRepo, eventManager, log)
	viewerHandler := viewer.NewHandler(viewerService, blobStore, log)

	srv := server.New(server.Config{
		Log:           log,
		Config:        cfg,
		RegistryDB:    registryDB,
		CacheDB:       cacheDB,
		ViewerHandler: viewerHandler,
		ViewerService: viewerService,
		BlobStore:     blobStore,
		SettingsRepo:  settingsRepo,
		EventBus:      eventBus,
		Port:          cfg.Port,
		DevMode:       cfg.DevMode,
	})

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Background maintenance: expired-session sweep every five minutes,
	// database checkpoint and vacuum nightly.
	sched := janitor.New(log)
	expiryJob := janitor.NewSessionExpiryJob(viewerService, settingsRepo, cfg.SessionTTL, log)
	if err := sched.AddJob("0 */5 * * * *", expiryJob); err != nil {
		log.Error().Err(err).Msg("Failed to register session expiry job")
	}
	maintenanceJob := janitor.NewDatabaseMaintenanceJob(map[string]*database.DB{
		"registry": registryDB,
		"cache":    cacheDB,
	}, log)
	if err := sched.AddJob("0 0 3 * * *", maintenanceJob); err != nil {
		log.Error().Err(err).Msg("Failed to register database maintenance job")
	}
	sched.Start()

	// Subscribe to the host's file-change feed when configured. A failed
	// initial connection is not fatal; the client keeps retrying.
	var feedClient *hostevents.Client
	if cfg.HostEventsURL != "" {
		feedClient = hostevents.NewClient(cfg.HostEventsURL, viewerService, eventManager, log)
		if err := feedClient.Start(); err != nil {
			log.Warn().Err(err).Msg("File-change feed not connected yet")
		}
	} else {
		log.Info().Msg("HOST_EVENTS_URL not set, file-change invalidation disabled")
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	if feedClient != nil {
		if err := feedClient.Stop(); err != nil {
			log.Error().Err(err).Msg("Error stopping file-change feed client")
		}
	}

	sched.Stop()

	// The HTTP server gets up to 10 seconds to finish in-flight requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

// hostFileFetcherAdapter adapts the hostfiles client to the viewer's
// HostFileFetcher interface (concrete *hostfiles.File vs viewer.FileLike).
type hostFileFetcherAdapter struct {
	client *hostfiles.Client
}

func (a *hostFileFetcherAdapter) FetchFile(ctx context.Context, url, filename string) (viewer.FileLike, error) {
	return a.client.FetchFile(ctx, url, filename)
}
