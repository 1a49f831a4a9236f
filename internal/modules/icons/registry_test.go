package icons

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testhelpers "github.com/kicadview/kicadview/internal/testing"
)

func TestRegisterForMime_Upserts(t *testing.T) {
	db, cleanup := testhelpers.NewTestDB(t, "registry")
	defer cleanup()
	registry := NewRegistry(db.Conn(), zerolog.Nop())

	require.NoError(t, registry.RegisterForMime("application/x-kicad-pcb", "icons/kicad_pcb.svg"))

	path, err := registry.IconForMime("application/x-kicad-pcb")
	require.NoError(t, err)
	require.NotNil(t, path)
	assert.Equal(t, "icons/kicad_pcb.svg", *path)

	// Re-registering replaces the path
	require.NoError(t, registry.RegisterForMime("application/x-kicad-pcb", "icons/gen.svg"))

	path, err = registry.IconForMime("application/x-kicad-pcb")
	require.NoError(t, err)
	require.NotNil(t, path)
	assert.Equal(t, "icons/gen.svg", *path)
}

func TestRegisterForExtension_FailedMimeDoesNotBlockOthers(t *testing.T) {
	// A constrained table makes one specific MIME fail to register while the
	// others succeed, so the per-MIME continue path is exercised.
	db, cleanup := testhelpers.NewTestDBWithSchema(t, "registry", `
		CREATE TABLE mimetype_icons (
			mimetype   TEXT PRIMARY KEY CHECK (mimetype <> 'application/x-rejected'),
			icon_path  TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);
	`)
	defer cleanup()
	registry := NewRegistry(db.Conn(), zerolog.Nop())

	mimes := []string{"application/x-rejected", "application/x-kicad-schematic"}
	icon, err := registry.RegisterForExtension("kicad_sch", mimes, []string{"kicad_sch.svg"}, "/icons")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2")
	assert.Equal(t, "kicad_sch.svg", icon)

	// The MIME after the failing one was still registered
	path, lookupErr := registry.IconForMime("application/x-kicad-schematic")
	require.NoError(t, lookupErr)
	require.NotNil(t, path)
	assert.Equal(t, filepath.Join("icons", "kicad_sch.svg"), *path)
}

func TestIconForMime_MissingReturnsNil(t *testing.T) {
	db, cleanup := testhelpers.NewTestDB(t, "registry")
	defer cleanup()
	registry := NewRegistry(db.Conn(), zerolog.Nop())

	path, err := registry.IconForMime("application/unknown")
	require.NoError(t, err)
	assert.Nil(t, path)
}

func TestRegisterForExtension_RegistersAllMimes(t *testing.T) {
	db, cleanup := testhelpers.NewTestDB(t, "registry")
	defer cleanup()
	registry := NewRegistry(db.Conn(), zerolog.Nop())

	available := []string{"gen.svg", "kicad_sch.svg"}
	mimes := []string{"application/x-kicad-schematic", "text/plain"}

	icon, err := registry.RegisterForExtension("kicad_sch", mimes, available, "/icons")
	require.NoError(t, err)
	assert.Equal(t, "kicad_sch.svg", icon)

	for _, mime := range mimes {
		path, err := registry.IconForMime(mime)
		require.NoError(t, err)
		require.NotNil(t, path)
		assert.Equal(t, filepath.Join("icons", "kicad_sch.svg"), *path)
	}
}

func TestRegisterForExtension_NoIconAvailable(t *testing.T) {
	db, cleanup := testhelpers.NewTestDB(t, "registry")
	defer cleanup()
	registry := NewRegistry(db.Conn(), zerolog.Nop())

	icon, err := registry.RegisterForExtension("kicad_pcb", []string{"application/x-kicad-pcb"}, nil, "/missing")
	require.NoError(t, err, "missing icons are a warning, not an error")
	assert.Equal(t, "", icon)

	path, err := registry.IconForMime("application/x-kicad-pcb")
	require.NoError(t, err)
	assert.Nil(t, path)
}

func TestAvailableIcons(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"gen.svg", "kicad_pcb.SVG", "readme.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0755))

	names, err := AvailableIcons(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"gen.svg", "kicad_pcb.SVG"}, names)
}

func TestAvailableIcons_MissingDirectory(t *testing.T) {
	names, err := AvailableIcons("/nonexistent/icons")
	require.NoError(t, err)
	assert.Nil(t, names)

	names, err = AvailableIcons("")
	require.NoError(t, err)
	assert.Nil(t, names)
}
