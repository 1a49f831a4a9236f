package settings

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testhelpers "github.com/kicadview/kicadview/internal/testing"
)

func newTestRepo(t *testing.T) (*Repository, func()) {
	t.Helper()
	db, cleanup := testhelpers.NewTestDB(t, "registry")
	return NewRepository(db.Conn(), zerolog.Nop()), cleanup
}

func TestGetSet(t *testing.T) {
	repo, cleanup := newTestRepo(t)
	defer cleanup()

	// Missing key returns nil, not an error
	val, err := repo.Get("missing")
	require.NoError(t, err)
	assert.Nil(t, val)

	require.NoError(t, repo.Set("key", "value", nil))

	val, err = repo.Get("key")
	require.NoError(t, err)
	require.NotNil(t, val)
	assert.Equal(t, "value", *val)

	// Set upserts
	require.NoError(t, repo.Set("key", "updated", nil))
	val, err = repo.Get("key")
	require.NoError(t, err)
	assert.Equal(t, "updated", *val)
}

func TestSetWithDescription(t *testing.T) {
	repo, cleanup := newTestRepo(t)
	defer cleanup()

	desc := "Sweep TTL for viewer sessions"
	require.NoError(t, repo.Set(KeySessionTTLMinutes, "30", &desc))

	val, err := repo.Get(KeySessionTTLMinutes)
	require.NoError(t, err)
	require.NotNil(t, val)
	assert.Equal(t, "30", *val)
}

func TestGetInt(t *testing.T) {
	repo, cleanup := newTestRepo(t)
	defer cleanup()

	// Default when missing
	n, err := repo.GetInt(KeySessionTTLMinutes, 60)
	require.NoError(t, err)
	assert.Equal(t, 60, n)

	require.NoError(t, repo.SetInt(KeySessionTTLMinutes, 15))
	n, err = repo.GetInt(KeySessionTTLMinutes, 60)
	require.NoError(t, err)
	assert.Equal(t, 15, n)

	// "12.0"-style values parse via float
	require.NoError(t, repo.Set(KeySessionTTLMinutes, "12.0", nil))
	n, err = repo.GetInt(KeySessionTTLMinutes, 60)
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	// Garbage falls back to the default
	require.NoError(t, repo.Set(KeySessionTTLMinutes, "soon", nil))
	n, err = repo.GetInt(KeySessionTTLMinutes, 60)
	require.NoError(t, err)
	assert.Equal(t, 60, n)
}

func TestGetBool(t *testing.T) {
	repo, cleanup := newTestRepo(t)
	defer cleanup()

	b, err := repo.GetBool(KeyViewerDebug, false)
	require.NoError(t, err)
	assert.False(t, b)

	for _, truthy := range []string{"true", "1", "yes", "on"} {
		require.NoError(t, repo.Set(KeyViewerDebug, truthy, nil))
		b, err = repo.GetBool(KeyViewerDebug, false)
		require.NoError(t, err)
		assert.True(t, b, "value %q should be truthy", truthy)
	}

	require.NoError(t, repo.Set(KeyViewerDebug, "false", nil))
	b, err = repo.GetBool(KeyViewerDebug, true)
	require.NoError(t, err)
	assert.False(t, b)
}

func TestGetAllAndDelete(t *testing.T) {
	repo, cleanup := newTestRepo(t)
	defer cleanup()

	require.NoError(t, repo.SetBool(KeyViewerDebug, true))
	require.NoError(t, repo.SetInt(KeySessionTTLMinutes, 30))

	all, err := repo.GetAll()
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, "true", all[KeyViewerDebug])

	require.NoError(t, repo.Delete(KeyViewerDebug))
	require.NoError(t, repo.Delete(KeyViewerDebug), "delete is idempotent")

	val, err := repo.Get(KeyViewerDebug)
	require.NoError(t, err)
	assert.Nil(t, val)
}
