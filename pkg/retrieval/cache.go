package retrieval

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/dgraph-io/ristretto"
)

// Cache is the hot-context cache: already-ranked result bundles keyed by a
// fingerprint of the recent conversation window and client id.
//
// Caching is whole-bundle. A partial hit (one sub-store cached, another not)
// does not exist in this model; any canon-affecting transition clears the
// cache entirely via Reset.
type Cache struct {
	inner *ristretto.Cache
}

// NewCache creates a hot-context cache sized for a single process.
func NewCache() (*Cache, error) {
	inner, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     1 << 24,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{inner: inner}, nil
}

// Fingerprint derives the cache key from the client id and the recent
// conversation window, most recent turn last.
func Fingerprint(clientID string, window []string) string {
	h := sha256.New()
	h.Write([]byte(clientID))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(window, "\x00")))
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached bundle for a fingerprint, if present.
func (c *Cache) Get(fingerprint string) (*Bundle, bool) {
	v, ok := c.inner.Get(fingerprint)
	if !ok {
		return nil, false
	}
	bundle, ok := v.(*Bundle)
	return bundle, ok
}

// Put stores a bundle under a fingerprint. Cost is the item count; ristretto
// admission may still decline the entry, which is fine for a cache.
func (c *Cache) Put(fingerprint string, bundle *Bundle) {
	c.inner.Set(fingerprint, bundle, int64(len(bundle.Items))+1)
}

// Wait blocks until buffered writes have been applied. Admission is
// asynchronous; callers that need read-your-write behavior wait first.
func (c *Cache) Wait() {
	c.inner.Wait()
}

// Reset drops every cached bundle. Called whenever a transition changes any
// collection's canon set.
func (c *Cache) Reset() {
	c.inner.Clear()
}

// Close releases the cache's resources.
func (c *Cache) Close() {
	c.inner.Close()
}
