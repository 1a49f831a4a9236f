package viewer

import (
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// base64ChunkSize is the number of raw bytes encoded per chunk. It is a
// multiple of 3 so the chunk encodings concatenate without padding in the
// middle of the payload.
const base64ChunkSize = 8190

// maxDataURLBytes caps the raw content size for the data-URL tier. Data URLs
// beyond this make widget src attributes unusable, so materialization fails
// instead of producing one.
const maxDataURLBytes = 64 << 20

// MaterializedURL is a URL the embedded widget can consume: either a
// revocable blob URL or a self-contained data URL.
type MaterializedURL struct {
	URL       string
	Revocable bool
}

// Materializer turns fetched file bytes into a MaterializedURL. It owns the
// blob-URL capability state: after the blob store fails once, every later
// materialization in this process skips straight to the data-URL tier. The
// downgrade only ever goes one way.
type Materializer struct {
	blobs *BlobStore
	log   zerolog.Logger

	mu            sync.Mutex
	blobSupported bool
}

// NewMaterializer creates a materializer backed by the blob store.
func NewMaterializer(blobs *BlobStore, log zerolog.Logger) *Materializer {
	return &Materializer{
		blobs:         blobs,
		log:           log.With().Str("component", "materializer").Logger(),
		blobSupported: true,
	}
}

// Materialize produces a URL for the content. Tier 1 is a revocable blob
// URL; any blob-store failure marks blob URLs unsupported and falls through
// to tier 2, a base64 data URL. When both tiers fail the error is returned
// and the caller leaves the session without content.
func (m *Materializer) Materialize(content []byte, mime string) (*MaterializedURL, error) {
	if mime == "" {
		mime = "text/plain"
	}

	if m.BlobURLsSupported() {
		url, err := m.blobs.Create(content, mime)
		if err == nil {
			return &MaterializedURL{URL: url, Revocable: true}, nil
		}
		m.markBlobsUnsupported(err)
	}

	url, err := EncodeDataURL(content, mime)
	if err != nil {
		return nil, fmt.Errorf("data URL encoding failed: %w", err)
	}
	return &MaterializedURL{URL: url, Revocable: false}, nil
}

// Revoke releases a materialized URL. Data URLs need no release.
func (m *Materializer) Revoke(u *MaterializedURL) {
	if u == nil || !u.Revocable {
		return
	}
	m.blobs.Revoke(u.URL)
}

// BlobURLsSupported reports whether the blob tier is still attempted.
func (m *Materializer) BlobURLsSupported() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.blobSupported
}

// markBlobsUnsupported records the one-way capability downgrade.
func (m *Materializer) markBlobsUnsupported(cause error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.blobSupported {
		return
	}
	m.blobSupported = false
	m.log.Warn().
		Err(cause).
		Msg("Blob URL creation failed, falling back to data URLs for all further sessions")
}

// EncodeDataURL builds a data:<mime>;base64,<payload> URL from raw content.
// The payload is encoded in fixed-size chunks.
func EncodeDataURL(content []byte, mime string) (string, error) {
	if int64(len(content)) > maxDataURLBytes {
		return "", fmt.Errorf("content too large for data URL: %d > %d bytes", len(content), maxDataURLBytes)
	}

	var payload strings.Builder
	payload.Grow(base64.StdEncoding.EncodedLen(len(content)))

	for start := 0; start < len(content); start += base64ChunkSize {
		end := start + base64ChunkSize
		if end > len(content) {
			end = len(content)
		}
		payload.WriteString(base64.StdEncoding.EncodeToString(content[start:end]))
	}

	return "data:" + mime + ";base64," + payload.String(), nil
}

// DecodeDataURL reverses EncodeDataURL; used in tests and diagnostics.
func DecodeDataURL(url string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(url, "data:")
	if !ok {
		return nil, "", fmt.Errorf("not a data URL")
	}

	mime, payload, ok := strings.Cut(rest, ";base64,")
	if !ok {
		return nil, "", fmt.Errorf("malformed data URL")
	}

	content, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode data URL payload: %w", err)
	}
	return content, mime, nil
}
