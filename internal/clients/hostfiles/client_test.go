package hostfiles

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/files/fetch", r.URL.Path)
		assert.Equal(t, "https://share/abc", r.URL.Query().Get("url"))
		assert.Equal(t, "board.kicad_pcb", r.URL.Query().Get("name"))
		w.Write([]byte("(kicad_pcb)"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, zerolog.Nop())

	file, err := client.FetchFile(context.Background(), "https://share/abc", "board.kicad_pcb")
	require.NoError(t, err)
	assert.Equal(t, "board.kicad_pcb", file.Name)
	assert.Equal(t, 11, file.Size())

	data, err := file.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("(kicad_pcb)"), data)
}

func TestFetchFile_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such file", http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, zerolog.Nop())

	_, err := client.FetchFile(context.Background(), "https://share/abc", "missing.kicad_sch")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestFetchFile_Unconfigured(t *testing.T) {
	client := NewClient("", zerolog.Nop())

	_, err := client.FetchFile(context.Background(), "url", "file")
	assert.Error(t, err)
}

func TestFileBytes_NoContent(t *testing.T) {
	f := &File{Name: "empty"}
	_, err := f.Bytes()
	assert.Error(t, err)

	f = NewFileFromBytes("ok", []byte{})
	data, err := f.Bytes()
	require.NoError(t, err)
	assert.Empty(t, data)
}
