package viewer

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testhelpers "github.com/kicadview/kicadview/internal/testing"
)

func testSnapshot(id string, createdAt time.Time) Snapshot {
	return Snapshot{
		ID:         id,
		State:      StateReady,
		SourceRef:  "https://host/files/board.kicad_pcb",
		Basename:   "board.kicad_pcb",
		Extension:  "kicad_pcb",
		Mime:       "application/x-kicad-pcb",
		ContentURL: "blob:should-not-persist",
		Revocable:  true,
		HasContent: true,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}
}

func TestRepository_SaveAndGet(t *testing.T) {
	db, cleanup := testhelpers.NewTestDB(t, "cache")
	defer cleanup()
	repo := NewRepository(db.Conn(), zerolog.Nop())

	snap := testSnapshot("s1", time.Now())
	require.NoError(t, repo.Save(snap))

	loaded, err := repo.Get("s1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "board.kicad_pcb", loaded.Basename)
	assert.Equal(t, StateReady, loaded.State)
	assert.True(t, loaded.HasContent)

	// Materialized URLs are process-local and never persisted
	assert.Empty(t, loaded.ContentURL)
}

func TestRepository_GetMissing(t *testing.T) {
	db, cleanup := testhelpers.NewTestDB(t, "cache")
	defer cleanup()
	repo := NewRepository(db.Conn(), zerolog.Nop())

	loaded, err := repo.Get("nope")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestRepository_SaveUpserts(t *testing.T) {
	db, cleanup := testhelpers.NewTestDB(t, "cache")
	defer cleanup()
	repo := NewRepository(db.Conn(), zerolog.Nop())

	snap := testSnapshot("s1", time.Now())
	snap.State = StateLoading
	require.NoError(t, repo.Save(snap))

	snap.State = StateReady
	require.NoError(t, repo.Save(snap))

	loaded, err := repo.Get("s1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, StateReady, loaded.State)

	snaps, err := repo.List(10)
	require.NoError(t, err)
	assert.Len(t, snaps, 1)
}

func TestRepository_ListNewestFirst(t *testing.T) {
	db, cleanup := testhelpers.NewTestDB(t, "cache")
	defer cleanup()
	repo := NewRepository(db.Conn(), zerolog.Nop())

	base := time.Now().Add(-time.Hour)
	require.NoError(t, repo.Save(testSnapshot("old", base)))
	require.NoError(t, repo.Save(testSnapshot("mid", base.Add(time.Minute))))
	require.NoError(t, repo.Save(testSnapshot("new", base.Add(2*time.Minute))))

	snaps, err := repo.List(2)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "new", snaps[0].ID)
	assert.Equal(t, "mid", snaps[1].ID)
}

func TestRepository_DeleteBefore(t *testing.T) {
	db, cleanup := testhelpers.NewTestDB(t, "cache")
	defer cleanup()
	repo := NewRepository(db.Conn(), zerolog.Nop())

	now := time.Now()
	require.NoError(t, repo.Save(testSnapshot("stale", now.Add(-2*time.Hour))))
	require.NoError(t, repo.Save(testSnapshot("fresh", now)))

	deleted, err := repo.DeleteBefore(now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	loaded, err := repo.Get("stale")
	require.NoError(t, err)
	assert.Nil(t, loaded)

	loaded, err = repo.Get("fresh")
	require.NoError(t, err)
	assert.NotNil(t, loaded)
}
