// Package hostfiles talks to the host platform's file-fetch helper endpoint.
// The helper can serve files the viewer cannot reach directly, e.g. share
// links behind auth or paths outside the public tree.
package hostfiles

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

// File is a fetched host file. Bytes reads are served from memory; the
// helper response body is consumed once at fetch time.
type File struct {
	Name string
	data []byte
}

// Bytes returns the raw file content.
func (f *File) Bytes() ([]byte, error) {
	if f.data == nil {
		return nil, fmt.Errorf("file %s has no content", f.Name)
	}
	return f.data, nil
}

// Size returns the content length in bytes.
func (f *File) Size() int {
	return len(f.data)
}

// Client for the host platform's file helper API
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new host file helper client
func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     log.With().Str("client", "hostfiles").Logger(),
	}
}

// FetchFile asks the helper for a file's bytes. The source URL identifies
// the file to the host; filename is passed along so the helper can resolve
// share links that point at directories.
func (c *Client) FetchFile(ctx context.Context, sourceURL, filename string) (*File, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("host file helper is not configured")
	}

	endpoint := fmt.Sprintf("%s/files/fetch?url=%s&name=%s",
		c.baseURL, url.QueryEscape(sourceURL), url.QueryEscape(filename))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build helper request: %w", err)
	}

	c.log.Debug().Str("url", sourceURL).Str("filename", filename).Msg("Fetching file via host helper")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("helper request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("helper returned status %d for %s", resp.StatusCode, filename)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read helper response for %s: %w", filename, err)
	}

	c.log.Debug().Str("filename", filename).Int("bytes", len(data)).Msg("Fetched file via host helper")

	return &File{Name: filename, data: data}, nil
}

// NewFileFromBytes builds a File directly from bytes; used in tests.
func NewFileFromBytes(name string, data []byte) *File {
	return &File{Name: name, data: data}
}
