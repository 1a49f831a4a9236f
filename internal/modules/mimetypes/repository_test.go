package mimetypes

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testhelpers "github.com/kicadview/kicadview/internal/testing"
)

// filecacheSchema mirrors the host platform's filecache tables: a numeric
// MIME index and per-file rows referencing it.
const filecacheSchema = `
CREATE TABLE mimetypes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	mimetype TEXT NOT NULL UNIQUE
);
CREATE TABLE filecache (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	mimetype INTEGER NOT NULL DEFAULT 0
);
`

func TestEnsureMimeType_InsertsOnce(t *testing.T) {
	db, cleanup := testhelpers.NewTestDBWithSchema(t, "filecache", filecacheSchema)
	defer cleanup()
	repo := NewRepository(db.Conn(), zerolog.Nop())

	id1, err := repo.EnsureMimeType("application/x-kicad-pcb")
	require.NoError(t, err)
	assert.Greater(t, id1, int64(0))

	// Second call returns the same id, no duplicate row
	id2, err := repo.EnsureMimeType("application/x-kicad-pcb")
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM mimetypes").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestAssociateExtension_UpdatesMatchingRows(t *testing.T) {
	db, cleanup := testhelpers.NewTestDBWithSchema(t, "filecache", filecacheSchema)
	defer cleanup()
	repo := NewRepository(db.Conn(), zerolog.Nop())

	// Seed files as the host would have cached them
	for _, name := range []string{
		"board.kicad_pcb",
		"OLD.KICAD_PCB",
		"schematic.kicad_sch",
		"notes.txt",
	} {
		_, err := db.Exec("INSERT INTO filecache (name, mimetype) VALUES (?, 1)", name)
		require.NoError(t, err)
	}

	updated, err := repo.AssociateExtension("kicad_pcb", "application/x-kicad-pcb")
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated, "matches case-insensitively, leaves other extensions alone")

	// Re-running is a no-op
	updated, err = repo.AssociateExtension("kicad_pcb", "application/x-kicad-pcb")
	require.NoError(t, err)
	assert.Equal(t, int64(0), updated)

	// The untouched rows keep their original mimetype id
	var mimeID int64
	err = db.QueryRow("SELECT mimetype FROM filecache WHERE name = 'notes.txt'").Scan(&mimeID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), mimeID)
}

func TestAssociateExtension_EmptyFilecache(t *testing.T) {
	db, cleanup := testhelpers.NewTestDBWithSchema(t, "filecache", filecacheSchema)
	defer cleanup()
	repo := NewRepository(db.Conn(), zerolog.Nop())

	updated, err := repo.AssociateExtension("kicad_sym", "application/x-kicad-symbol")
	require.NoError(t, err)
	assert.Equal(t, int64(0), updated)

	// The MIME type is still registered in the index
	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM mimetypes WHERE mimetype = 'application/x-kicad-symbol'").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
