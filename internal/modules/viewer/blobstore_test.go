package viewer

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobStore_CreateAndOpen(t *testing.T) {
	store := NewBlobStore(1<<20, zerolog.Nop())

	url, err := store.Create([]byte("(kicad_pcb)"), "application/x-kicad-pcb")
	require.NoError(t, err)

	id, ok := ParseBlobURL(url)
	require.True(t, ok)

	data, mime, ok := store.Open(id)
	require.True(t, ok)
	assert.Equal(t, []byte("(kicad_pcb)"), data)
	assert.Equal(t, "application/x-kicad-pcb", mime)
}

func TestBlobStore_CopiesContent(t *testing.T) {
	store := NewBlobStore(1<<20, zerolog.Nop())

	content := []byte("original")
	url, err := store.Create(content, "text/plain")
	require.NoError(t, err)

	// Mutating the caller's slice must not change served bytes
	content[0] = 'X'

	id, _ := ParseBlobURL(url)
	data, _, _ := store.Open(id)
	assert.Equal(t, []byte("original"), data)
}

func TestBlobStore_BudgetExceeded(t *testing.T) {
	store := NewBlobStore(10, zerolog.Nop())

	_, err := store.Create(make([]byte, 8), "text/plain")
	require.NoError(t, err)

	_, err = store.Create(make([]byte, 8), "text/plain")
	assert.Error(t, err)
	assert.Equal(t, 1, store.Count())
}

func TestBlobStore_RevokeFreesBudget(t *testing.T) {
	store := NewBlobStore(10, zerolog.Nop())

	url, err := store.Create(make([]byte, 8), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, int64(8), store.TotalBytes())

	store.Revoke(url)
	assert.Equal(t, int64(0), store.TotalBytes())
	assert.Equal(t, 0, store.Count())

	// The freed budget is usable again
	_, err = store.Create(make([]byte, 8), "text/plain")
	assert.NoError(t, err)
}

func TestBlobStore_RevokeIdempotent(t *testing.T) {
	store := NewBlobStore(1<<20, zerolog.Nop())

	url, err := store.Create([]byte("data"), "text/plain")
	require.NoError(t, err)

	store.Revoke(url)
	store.Revoke(url)
	store.Revoke("blob:never-existed")
	store.Revoke("not-a-blob-url")

	assert.Equal(t, int64(0), store.TotalBytes())
}

func TestParseBlobURL(t *testing.T) {
	id, ok := ParseBlobURL("blob:abc-123")
	assert.True(t, ok)
	assert.Equal(t, "abc-123", id)

	_, ok = ParseBlobURL("data:text/plain;base64,aGk=")
	assert.False(t, ok)

	_, ok = ParseBlobURL("blob:")
	assert.False(t, ok)
}
