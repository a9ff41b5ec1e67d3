package pager

import (
	"fmt"
	"path/filepath"

	"github.com/chirst/spotidx/page"
	"github.com/chirst/spotidx/pagecache"
)

// DefaultMaxResident is the suggested page cache capacity: roughly 32000
// pages of 4096 bytes each, about 128MB resident.
const DefaultMaxResident = 32000

// Manager is the PageManager of spec.md §4.4. It owns the body file,
// tracks its authoritative size (which may lag the filesystem's own
// bookkeeping until a write is flushed), and caches resident pages.
type Manager struct {
	store    storage
	bodysize uint64
	cache    *pagecache.Cache
}

// NewMemory creates a Manager over an in-memory body buffer, for tests and
// for Index instances opened without a backing directory.
func NewMemory(bodysize uint64, maxResident int) *Manager {
	return &Manager{
		store:    newMemoryStorage(),
		bodysize: bodysize,
		cache:    pagecache.New(maxResident),
	}
}

// NewFile creates a Manager over body.spot within dir, creating the file
// if it does not already exist. bodysize must be the authoritative size
// recorded in the header (§3: "bodysize is authoritative size of body
// file; filesystem size may lag writes").
func NewFile(dir string, bodysize uint64, maxResident int) (*Manager, error) {
	s, err := newFileStorage(filepath.Join(dir, BodyFileName))
	if err != nil {
		return nil, fmt.Errorf("pager: opening body file: %w", err)
	}
	return &Manager{
		store:    s,
		bodysize: bodysize,
		cache:    pagecache.New(maxResident),
	}, nil
}

// BodySize returns the authoritative size of the body file in bytes.
func (m *Manager) BodySize() uint64 {
	return m.bodysize
}

// Close releases the underlying storage handle.
func (m *Manager) Close() error {
	return m.store.Close()
}

// FetchPage returns the page resident at offset, reading it from storage
// if it is not already cached. If fetching a page forces an eviction, the
// evicted page is flushed first (if dirty) and marked stale so any cursor
// still holding a reference to it knows to refetch.
func (m *Manager) FetchPage(offset uint64) (*page.Page, error) {
	if p, ok := m.cache.Get(offset); ok {
		return p, nil
	}
	if err := m.evictIfFull(); err != nil {
		return nil, err
	}
	buf := make([]byte, page.Size)
	if _, err := m.store.ReadAt(buf, int64(offset)); err != nil {
		return nil, fmt.Errorf("pager: reading page at offset %d: %w", offset, err)
	}
	p, err := page.Decode(buf, offset)
	if err != nil {
		return nil, fmt.Errorf("pager: %w", err)
	}
	m.cache.Add(offset, p)
	return p, nil
}

// AllocatePage writes a fresh empty page at the current end of the body
// file, advances the authoritative body size, and returns the new page.
// The page is written immediately (spec.md §4.4) and marked dirty so it
// survives any subsequent eviction even before it receives its first
// record.
func (m *Manager) AllocatePage() (*page.Page, error) {
	if err := m.evictIfFull(); err != nil {
		return nil, err
	}
	offset := m.bodysize
	p := page.New(offset)
	p.MarkDirty()
	if err := m.writePage(p); err != nil {
		return nil, err
	}
	m.bodysize += page.Size
	m.cache.Add(offset, p)
	return p, nil
}

// SaveAll flushes every dirty resident page to storage.
func (m *Manager) SaveAll() error {
	for _, p := range m.cache.All() {
		if !p.Dirty() {
			continue
		}
		if err := m.writePage(p); err != nil {
			return err
		}
		p.ClearDirty()
	}
	return nil
}

func (m *Manager) writePage(p *page.Page) error {
	enc, err := p.Encode()
	if err != nil {
		return fmt.Errorf("pager: encoding page at offset %d: %w", p.Offset(), err)
	}
	if _, err := m.store.WriteAt(enc, int64(p.Offset())); err != nil {
		return fmt.Errorf("pager: writing page at offset %d: %w", p.Offset(), err)
	}
	return nil
}

// evictIfFull applies the uniform-random eviction policy of spec.md §4.4
// when the cache has no room for a new resident page: it flushes the
// victim if dirty, marks it stale for any cursor still referencing it, and
// removes it from the cache.
func (m *Manager) evictIfFull() error {
	if !m.cache.Full() {
		return nil
	}
	victim, ok := m.cache.EvictionCandidate()
	if !ok {
		return nil
	}
	if victim.Dirty() {
		if err := m.writePage(victim); err != nil {
			return err
		}
		victim.ClearDirty()
	}
	victim.MarkStale()
	m.cache.Remove(victim.Offset())
	return nil
}
