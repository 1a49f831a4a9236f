package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kicadview/kicadview/internal/config"
	"github.com/kicadview/kicadview/internal/events"
	"github.com/kicadview/kicadview/internal/modules/settings"
	"github.com/kicadview/kicadview/internal/modules/viewer"
	testhelpers "github.com/kicadview/kicadview/internal/testing"
)

func newTestServer(t *testing.T) (*Server, func()) {
	t.Helper()

	registryDB, cleanupRegistry := testhelpers.NewTestDB(t, "registry")
	cacheDB, cleanupCache := testhelpers.NewTestDB(t, "cache")

	log := zerolog.Nop()
	blobs := viewer.NewBlobStore(1<<20, log)
	strategies := []viewer.FetchStrategy{{
		Name: "stub",
		Fetch: func(ctx context.Context, sourceRef, basename string) ([]byte, error) {
			return []byte("(kicad_pcb)"), nil
		},
	}}
	svc := viewer.NewService(
		viewer.NewFetcherWithStrategies(strategies, log),
		viewer.NewMaterializer(blobs, log),
		viewer.NewRepository(cacheDB.Conn(), log),
		nil,
		log,
	)

	srv := New(Config{
		Log:           log,
		Config:        &config.Config{DataDir: t.TempDir(), Port: 0},
		RegistryDB:    registryDB,
		CacheDB:       cacheDB,
		ViewerHandler: viewer.NewHandler(svc, blobs, log),
		ViewerService: svc,
		BlobStore:     blobs,
		SettingsRepo:  settings.NewRepository(registryDB.Conn(), log),
		EventBus:      events.NewBus(log),
		Port:          0,
		DevMode:       true,
	})

	return srv, func() {
		cleanupRegistry()
		cleanupCache()
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "healthy", resp["status"])
	assert.Equal(t, "kicadview", resp["service"])
}

func TestViewerRoutesMounted(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	body, _ := json.Marshal(viewer.OpenSessionRequest{
		SourceRef: "https://host/files/board.kicad_pcb",
		Basename:  "board.kicad_pcb",
	})

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/viewer/sessions", bytes.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code)

	var snap viewer.Snapshot
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&snap))
	assert.Equal(t, viewer.StateReady, snap.State)
}

func TestSystemStatusEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/system/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp SystemStatusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 0, resp.LiveSessions)
}

func TestWidgetPageServed(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/widget", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "kicanvas")
}

func TestDebugToggleFromSettings(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	require.NoError(t, srv.settingsRepo.SetBool(settings.KeyViewerDebug, true))

	// The toggle only changes logging; the request must behave identically
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health?debug=1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
