package viewer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// blobURLPrefix is the scheme of revocable URLs issued by the store.
// The server resolves them via GET /api/viewer/blob/{id}.
const blobURLPrefix = "blob:"

// BlobStore holds materialized file bytes in memory behind revocable URLs.
// Creation fails once the configured total-size budget would be exceeded;
// the materializer treats that as "blob URLs unsupported" and downgrades to
// data URLs for the rest of the process lifetime.
type BlobStore struct {
	mu       sync.Mutex
	blobs    map[string]blobEntry
	total    int64
	maxBytes int64
	log      zerolog.Logger
}

type blobEntry struct {
	data []byte
	mime string
}

// NewBlobStore creates a blob store with a total byte budget.
func NewBlobStore(maxBytes int64, log zerolog.Logger) *BlobStore {
	return &BlobStore{
		blobs:    make(map[string]blobEntry),
		maxBytes: maxBytes,
		log:      log.With().Str("component", "blob_store").Logger(),
	}
}

// Create stores the bytes and returns a revocable blob URL.
func (b *BlobStore) Create(data []byte, mime string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	size := int64(len(data))
	if b.total+size > b.maxBytes {
		return "", fmt.Errorf("blob store budget exceeded: %d + %d > %d bytes", b.total, size, b.maxBytes)
	}

	id := uuid.NewString()
	// Copy so later mutation of the caller's slice can't change served bytes.
	stored := make([]byte, size)
	copy(stored, data)

	b.blobs[id] = blobEntry{data: stored, mime: mime}
	b.total += size

	b.log.Debug().
		Str("blob_id", id).
		Int64("size", size).
		Int64("total", b.total).
		Msg("Created blob")

	return blobURLPrefix + id, nil
}

// Open returns the bytes and MIME type behind a blob id.
func (b *BlobStore) Open(id string) ([]byte, string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.blobs[id]
	if !ok {
		return nil, "", false
	}
	return entry.data, entry.mime, true
}

// Revoke releases the bytes behind a blob URL. Idempotent: revoking an
// unknown or already-revoked URL is a no-op.
func (b *BlobStore) Revoke(url string) {
	id, ok := ParseBlobURL(url)
	if !ok {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.blobs[id]
	if !ok {
		return
	}

	b.total -= int64(len(entry.data))
	delete(b.blobs, id)

	b.log.Debug().
		Str("blob_id", id).
		Int64("total", b.total).
		Msg("Revoked blob")
}

// Count returns the number of live blobs.
func (b *BlobStore) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.blobs)
}

// TotalBytes returns the bytes currently held.
func (b *BlobStore) TotalBytes() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}

// ParseBlobURL extracts the blob id from a blob URL.
func ParseBlobURL(url string) (string, bool) {
	if !strings.HasPrefix(url, blobURLPrefix) {
		return "", false
	}
	id := strings.TrimPrefix(url, blobURLPrefix)
	if id == "" {
		return "", false
	}
	return id, true
}
