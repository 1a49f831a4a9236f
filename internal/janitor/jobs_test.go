package janitor

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kicadview/kicadview/internal/database"
	"github.com/kicadview/kicadview/internal/modules/settings"
	"github.com/kicadview/kicadview/internal/modules/viewer"
	testhelpers "github.com/kicadview/kicadview/internal/testing"
)

func newTestViewerService() *viewer.Service {
	blobs := viewer.NewBlobStore(1<<20, zerolog.Nop())
	strategies := []viewer.FetchStrategy{{
		Name: "stub",
		Fetch: func(ctx context.Context, sourceRef, basename string) ([]byte, error) {
			return []byte("data"), nil
		},
	}}
	return viewer.NewService(
		viewer.NewFetcherWithStrategies(strategies, zerolog.Nop()),
		viewer.NewMaterializer(blobs, zerolog.Nop()),
		nil,
		nil,
		zerolog.Nop(),
	)
}

func TestSessionExpiryJob_NothingToExpire(t *testing.T) {
	svc := newTestViewerService()
	svc.Open(context.Background(), "ref", "board.kicad_pcb")

	job := NewSessionExpiryJob(svc, nil, time.Hour, zerolog.Nop())
	require.NoError(t, job.Run())

	assert.Equal(t, 1, svc.LiveCount(), "fresh sessions survive the sweep")
	assert.Equal(t, "session_expiry", job.Name())
}

func TestSessionExpiryJob_TTLFromSettings(t *testing.T) {
	db, cleanup := testhelpers.NewTestDB(t, "registry")
	defer cleanup()
	settingsRepo := settings.NewRepository(db.Conn(), zerolog.Nop())

	svc := newTestViewerService()
	svc.Open(context.Background(), "ref", "board.kicad_pcb")

	// A negative TTL setting would be nonsense; it is ignored in favor of
	// the configured default
	require.NoError(t, settingsRepo.SetInt(settings.KeySessionTTLMinutes, -5))
	job := NewSessionExpiryJob(svc, settingsRepo, time.Hour, zerolog.Nop())
	require.NoError(t, job.Run())
	assert.Equal(t, 1, svc.LiveCount())

	// An aggressive TTL sweeps everything older than it. The session was
	// just created, so even 1 minute keeps it; this exercises the settings
	// read path rather than timing.
	require.NoError(t, settingsRepo.SetInt(settings.KeySessionTTLMinutes, 1))
	require.NoError(t, job.Run())
	assert.Equal(t, 1, svc.LiveCount())
}

func TestDatabaseMaintenanceJob(t *testing.T) {
	registryDB, cleanupRegistry := testhelpers.NewTestDB(t, "registry")
	defer cleanupRegistry()
	cacheDB, cleanupCache := testhelpers.NewTestDB(t, "cache")
	defer cleanupCache()

	job := NewDatabaseMaintenanceJob(map[string]*database.DB{
		"registry": registryDB,
		"cache":    cacheDB,
	}, zerolog.Nop())

	assert.Equal(t, "db_maintenance", job.Name())
	assert.NoError(t, job.Run())
}

func TestScheduler_RunNow(t *testing.T) {
	sched := New(zerolog.Nop())

	svc := newTestViewerService()
	job := NewSessionExpiryJob(svc, nil, time.Hour, zerolog.Nop())

	require.NoError(t, sched.RunNow(job))
}
