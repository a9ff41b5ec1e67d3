// Package pagecache implements the page-manager's residence cache: it
// tracks which pages are currently held in memory and, when asked, names a
// victim to evict. spec.md (pager/cache.go's sibling in the teacher repo
// used an LRU list) measured uniform random eviction outperforming LRU for
// this workload's access pattern, where query scans walk a bucket's pages
// front-to-back with near-zero re-reference — so there is rarely a "least
// recently used" page worth favoring over any other resident page.
// Implementers may substitute LRU; this package documents the trade-off
// rather than hiding it.
package pagecache

import (
	"math/rand"

	"github.com/chirst/spotidx/page"
)

// Cache holds resident pages up to maxSize, keyed by page offset.
type Cache struct {
	pages   map[uint64]*page.Page
	keys    []uint64
	maxSize int
}

// New creates a page cache that holds at most maxSize resident pages.
func New(maxSize int) *Cache {
	return &Cache{
		pages:   make(map[uint64]*page.Page),
		keys:    make([]uint64, 0, maxSize),
		maxSize: maxSize,
	}
}

// Get returns the resident page at offset, if any.
func (c *Cache) Get(offset uint64) (*page.Page, bool) {
	p, ok := c.pages[offset]
	return p, ok
}

// Add inserts or replaces the resident page at offset. Callers are
// expected to have already evicted (via EvictionCandidate) when the cache
// is at capacity; Add itself never evicts so that the caller can flush the
// victim to disk first.
func (c *Cache) Add(offset uint64, p *page.Page) {
	if _, ok := c.pages[offset]; !ok {
		c.keys = append(c.keys, offset)
	}
	c.pages[offset] = p
}

// Remove evicts the page at offset from the cache, if present.
func (c *Cache) Remove(offset uint64) {
	if _, ok := c.pages[offset]; !ok {
		return
	}
	delete(c.pages, offset)
	for i, k := range c.keys {
		if k == offset {
			c.keys[i] = c.keys[len(c.keys)-1]
			c.keys = c.keys[:len(c.keys)-1]
			break
		}
	}
}

// Len returns the number of currently resident pages.
func (c *Cache) Len() int {
	return len(c.pages)
}

// Full reports whether the cache is at its configured capacity.
func (c *Cache) Full() bool {
	return c.maxSize > 0 && len(c.pages) >= c.maxSize
}

// All returns every currently resident page, in no particular order.
func (c *Cache) All() []*page.Page {
	out := make([]*page.Page, 0, len(c.pages))
	for _, p := range c.pages {
		out = append(out, p)
	}
	return out
}

// EvictionCandidate picks a uniformly random resident page to evict. It
// returns false if the cache is empty. The caller is responsible for
// flushing the returned page (if dirty) before calling Remove.
func (c *Cache) EvictionCandidate() (*page.Page, bool) {
	if len(c.keys) == 0 {
		return nil, false
	}
	offset := c.keys[rand.Intn(len(c.keys))]
	return c.pages[offset], true
}
