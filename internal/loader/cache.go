package loader

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/harmonize-run/harmonize/api"
)

// cacheSize bounds the number of distinct manifest hashes the loader keeps
// LoadedMod entries for. Mods beyond this count still load correctly; they
// just lose the idempotent-reload fast path and get recompiled on the next
// Load call with the same bytes.
const cacheSize = 256

// cache deduplicates Load calls by manifest hash (spec.md §4.4's
// idempotent-reload requirement), adapted from the teacher's own
// compilation cache: an LRU keyed by content hash rather than an
// unbounded map, so a mod directory watcher that repeatedly reloads
// churning files doesn't grow the loader's memory without bound.
type cache struct {
	lru *lru.Cache[api.FileHash, *LoadedMod]
}

func newCache() *cache {
	c, err := lru.New[api.FileHash, *LoadedMod](cacheSize)
	if err != nil {
		// Only returns an error for a non-positive size, which cacheSize
		// never is.
		panic(err)
	}
	return &cache{lru: c}
}

func (c *cache) get(hash api.FileHash) (*LoadedMod, bool) {
	return c.lru.Get(hash)
}

func (c *cache) put(hash api.FileHash, mod *LoadedMod) {
	c.lru.Add(hash, mod)
}

func (c *cache) delete(hash api.FileHash) {
	c.lru.Remove(hash)
}
