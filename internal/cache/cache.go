// Package cache stores fetched upstream content between ingest runs so
// unchanged archives and dumps are not downloaded twice.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache is the common interface over the memory, disk and layered caches
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key derives a stable cache key for a fetched URL
func Key(url string) string {
	sum := sha256.Sum256([]byte(url))
	return "kbsync:v1:" + hex.EncodeToString(sum[:])
}
