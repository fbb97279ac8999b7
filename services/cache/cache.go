package cache

import (
	"errors"
	"time"
)

// ErrCacheMiss is returned by Get when the key is not present.
var ErrCacheMiss = errors.New("cache: miss")

// CacheService is a generic cache. The fetch layer uses it to share
// rate-limit block markers between crawlers so a source that answered 429
// is left alone for its block window.
type CacheService interface {
	// Get retrieves a value from the cache.
	Get(key string) ([]byte, error)

	// Set stores a value in the cache with an expiration time.
	Set(key string, value []byte, expiration time.Duration) error

	// Delete removes a value from the cache.
	Delete(key string) error
}
