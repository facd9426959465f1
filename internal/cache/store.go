package cache

import (
	"context"
	"encoding/hex"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/nao1215/postfetch/internal/model"
)

// Store is the key/value capability the fetch layer depends on.
type Store interface {
	// Read returns the entry stored under key.
	// Missing, expired and corrupted entries are all reported as a miss.
	Read(ctx context.Context, key string) (*model.CacheEntry, bool)

	// Write stores entry under entry.Key, replacing any previous value.
	// Callers treat writes as best-effort and may ignore the error.
	Write(ctx context.Context, entry model.CacheEntry) error
}

// EntryInfo summarizes a stored entry without its payload.
type EntryInfo struct {
	Key       string    `json:"key"`
	Digest    string    `json:"digest"`
	Size      int       `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Digest returns the hex BLAKE2b-256 digest of a payload.
func Digest(payload []byte) string {
	sum := blake2b.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Nop is a Store that remembers nothing. It disables fallback caching.
type Nop struct{}

// Read always misses.
func (Nop) Read(context.Context, string) (*model.CacheEntry, bool) { return nil, false }

// Write discards the entry.
func (Nop) Write(context.Context, model.CacheEntry) error { return nil }

// expired reports whether an entry written at updated is older than maxAge.
// A non-positive maxAge disables age-based expiry.
func expired(updated, now time.Time, maxAge time.Duration) bool {
	return maxAge > 0 && now.Sub(updated) > maxAge
}
