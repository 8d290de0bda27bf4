package service

import (
	"reflect"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/agbru/keffcalc/internal/problem"
)

// DefaultInstanceCacheSize is the number of built catalog problems kept by
// a SolveService.
const DefaultInstanceCacheSize = 32

type instanceKey struct {
	problem     string
	refinements int
}

type cachedInstance struct {
	def  problem.Definition
	inst *problem.Instance
}

// InstanceCache keeps recently built catalog problems. Instances are
// immutable, so concurrent solves of the same problem share one mesh and
// one parameter table.
type InstanceCache struct {
	entries *lru.Cache[instanceKey, cachedInstance]
	hits    atomic.Uint64
	misses  atomic.Uint64
}

// CacheStats reports the activity of an InstanceCache.
type CacheStats struct {
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Entries int    `json:"entries"`
}

// NewInstanceCache creates a cache holding at most size instances. A size
// below 1 is raised to 1.
func NewInstanceCache(size int) *InstanceCache {
	if size < 1 {
		size = 1
	}
	entries, err := lru.New[instanceKey, cachedInstance](size)
	if err != nil {
		// Only reachable with a non-positive size.
		panic(err)
	}
	return &InstanceCache{entries: entries}
}

// Build returns the instance of def refined refinements extra times,
// building it on a miss. A cached entry whose definition no longer matches
// def, e.g. after the catalog entry was replaced, is rebuilt.
func (c *InstanceCache) Build(def problem.Definition, refinements int) (*problem.Instance, error) {
	key := instanceKey{problem: def.Name, refinements: refinements}
	if cached, ok := c.entries.Get(key); ok && reflect.DeepEqual(cached.def, def) {
		c.hits.Add(1)
		return cached.inst, nil
	}
	c.misses.Add(1)
	inst, err := problem.Build(def, refinements)
	if err != nil {
		return nil, err
	}
	c.entries.Add(key, cachedInstance{def: def, inst: inst})
	return inst, nil
}

// Stats returns the hit and miss counts and the current size.
func (c *InstanceCache) Stats() CacheStats {
	return CacheStats{Hits: c.hits.Load(), Misses: c.misses.Load(), Entries: c.entries.Len()}
}

// Purge drops every cached instance.
func (c *InstanceCache) Purge() { c.entries.Purge() }
