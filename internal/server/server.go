package server

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/kicadview/kicadview/internal/config"
	"github.com/kicadview/kicadview/internal/database"
	"github.com/kicadview/kicadview/internal/events"
	"github.com/kicadview/kicadview/internal/modules/settings"
	"github.com/kicadview/kicadview/internal/modules/viewer"
	"github.com/kicadview/kicadview/pkg/embedded"
)

// Config holds server configuration
type Config struct {
	Log           zerolog.Logger
	Config        *config.Config
	RegistryDB    *database.DB
	CacheDB       *database.DB
	ViewerHandler *viewer.Handler
	ViewerService *viewer.Service
	BlobStore     *viewer.BlobStore
	SettingsRepo  *settings.Repository
	EventBus      *events.Bus
	Port          int
	DevMode       bool
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            *config.Config
	registryDB     *database.DB
	cacheDB        *database.DB
	viewerHandler  *viewer.Handler
	settingsRepo   *settings.Repository
	eventBus       *events.Bus
	systemHandlers *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	// Register widget asset MIME types so Content-Type headers are correct
	_ = mime.AddExtensionType(".js", "application/javascript")
	_ = mime.AddExtensionType(".mjs", "application/javascript")
	_ = mime.AddExtensionType(".css", "text/css")
	_ = mime.AddExtensionType(".svg", "image/svg+xml")

	s := &Server{
		router:        chi.NewRouter(),
		log:           cfg.Log.With().Str("component", "server").Logger(),
		cfg:           cfg.Config,
		registryDB:    cfg.RegistryDB,
		cacheDB:       cfg.CacheDB,
		viewerHandler: cfg.ViewerHandler,
		settingsRepo:  cfg.SettingsRepo,
		eventBus:      cfg.EventBus,
		systemHandlers: NewSystemHandlers(
			cfg.Log,
			cfg.Config.DataDir,
			cfg.RegistryDB,
			cfg.CacheDB,
			cfg.ViewerService,
			cfg.BlobStore,
		),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// Per-request debug toggle
	s.router.Use(s.debugMiddleware)

	// Timeout
	s.router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	// Health check
	s.router.Get("/health", s.handleHealth)

	// API routes
	s.router.Route("/api", func(r chi.Router) {
		// Events stream (SSE) - registered before other routes so the
		// timeout middleware above applies but compression does not break it
		eventsStreamHandler := NewEventsStreamHandler(s.eventBus, s.log)
		r.Get("/events/stream", eventsStreamHandler.ServeHTTP)

		// Viewer session lifecycle
		s.viewerHandler.RegisterRoutes(r)

		// System monitoring
		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.systemHandlers.HandleSystemStatus)
			r.Get("/disk", s.systemHandlers.HandleDiskUsage)
			r.Get("/database/stats", s.systemHandlers.HandleDatabaseStats)
		})
	})

	// Serve the embedded widget bundle (viewer page + assets)
	widgetFS, err := fs.Sub(embedded.Files, "widget")
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to create widget filesystem from embedded files")
		return
	}

	fileServer := http.FileServer(http.FS(widgetFS))
	s.router.Handle("/widget/*", http.StripPrefix("/widget/", fileServer))
	s.router.Get("/widget", func(w http.ResponseWriter, r *http.Request) {
		indexFile, err := widgetFS.Open("index.html")
		if err != nil {
			s.log.Error().Err(err).Msg("Failed to open embedded widget index.html")
			http.NotFound(w, r)
			return
		}
		defer indexFile.Close()

		data, err := io.ReadAll(indexFile)
		if err != nil {
			s.log.Error().Err(err).Msg("Failed to read embedded widget index.html")
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if _, err := w.Write(data); err != nil {
			s.log.Error().Err(err).Msg("Failed to write widget index.html response")
		}
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Router returns the chi router; used by tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

// debugMiddleware switches the request-scoped logger to debug level when
// ?debug=1 is set or the persisted viewer_debug setting is on. Purely
// observational; request handling is unchanged.
func (s *Server) debugMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		debug := r.URL.Query().Get("debug") == "1"
		if !debug && s.settingsRepo != nil {
			enabled, err := s.settingsRepo.GetBool(settings.KeyViewerDebug, false)
			if err == nil {
				debug = enabled
			}
		}

		if debug {
			debugLog := s.log.Level(zerolog.DebugLevel)
			r = r.WithContext(debugLog.WithContext(r.Context()))
			debugLog.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Msg("Debug logging enabled for request")
		}

		next.ServeHTTP(w, r)
	})
}
