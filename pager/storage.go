// Package pager implements the PageManager: it allocates pages on the body
// file, caches resident pages, and evicts and writes them back. It is the
// sole owner of on-disk page layout; callers access pages exclusively
// through FetchPage and AllocatePage.
package pager

import (
	"io"
	"os"

	"github.com/chirst/spotidx/page"
)

// storage abstracts the body file so the pager can run against either a
// real file or an in-memory buffer, the way chirst-cdb's pager/storage.go
// separates fileStorage from memoryStorage for tests.
type storage interface {
	io.ReaderAt
	io.WriterAt
	Close() error
}

// memoryStorage is a storage backed entirely by a growable byte slice. It
// is used for in-memory indexes and in package tests.
type memoryStorage struct {
	buf []byte
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{}
}

func (m *memoryStorage) grow(upto int) {
	for len(m.buf) < upto {
		m.buf = append(m.buf, make([]byte, page.Size)...)
	}
}

func (m *memoryStorage) ReadAt(p []byte, off int64) (int, error) {
	m.grow(int(off) + len(p))
	copy(p, m.buf[off:int(off)+len(p)])
	return len(p), nil
}

func (m *memoryStorage) WriteAt(p []byte, off int64) (int, error) {
	m.grow(int(off) + len(p))
	copy(m.buf[off:int(off)+len(p)], p)
	return len(p), nil
}

func (m *memoryStorage) Close() error {
	return nil
}

// fileStorage is a storage backed by a real file on disk, body.spot per
// spec.md's filesystem layout.
type fileStorage struct {
	file *os.File
}

// BodyFileName is the name of the paged body store within an index
// directory, per spec.md §6.
const BodyFileName = "body.spot"

func newFileStorage(path string) (*fileStorage, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	return &fileStorage{file: f}, nil
}

func (f *fileStorage) ReadAt(p []byte, off int64) (int, error) {
	return f.file.ReadAt(p, off)
}

func (f *fileStorage) WriteAt(p []byte, off int64) (int, error) {
	return f.file.WriteAt(p, off)
}

func (f *fileStorage) Close() error {
	return f.file.Close()
}
