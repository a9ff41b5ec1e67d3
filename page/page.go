// Package page implements the in-memory view of one disk page: a sorted run
// of fixed-width 16-byte records plus a link to the next page in the
// bucket's linked list. Pages are fixed size for the lifetime of a body
// file; records are kept sorted by raw byte comparison so insertion is a
// binary-search insort over byte strings, never requiring a decode pass.
package page

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/chirst/spotidx/codec"
)

// Size is the page size in bytes. It is a constant for the lifetime of a
// body file; spec.md hardcodes the common OS page size of 4096 bytes for
// portability of the reference behavior.
const Size = 4096

// Capacity is the number of 16-byte records that fit in one page after the
// 16-byte header: (4096-16)/16 = 255.
const Capacity = (Size - codec.PageHeaderLength) / codec.LineLength

// ErrOverflow is returned by InsertLine when the page has no room left.
var ErrOverflow = fmt.Errorf("page: insert would overflow page of size %d", Size)

// Page is the in-memory, mutable representation of one disk page.
type Page struct {
	// offset is the page's immutable byte offset in the body file.
	offset uint64
	// next is the byte offset of the next page in this bucket's linked
	// list, or 0 if this is the last page.
	next uint64
	// lines holds the page's records in strictly ascending byte order.
	lines [][]byte
	// dirty is true when the in-memory page differs from what was last
	// read from or written to disk.
	dirty bool
	// stale is true once this Page instance has been evicted from the
	// page manager's cache. Pages never move on disk, so a stale Page is
	// merely outdated, not corrupting; any cursor holding a reference to
	// it must refetch before trusting its contents again.
	stale bool
}

// New creates an empty page allocated at offset.
func New(offset uint64) *Page {
	return &Page{offset: offset, dirty: true}
}

// Decode parses a page-sized byte slice read from offset.
func Decode(data []byte, offset uint64) (*Page, error) {
	if len(data) != Size {
		return nil, fmt.Errorf("page: decode requires %d bytes, got %d", Size, len(data))
	}
	hdr, err := codec.DecodePageHeader(data[:codec.PageHeaderLength])
	if err != nil {
		return nil, fmt.Errorf("page: %w", err)
	}
	if hdr.Length%codec.LineLength != 0 {
		return nil, fmt.Errorf("page: corrupt length field %d is not a multiple of %d", hdr.Length, codec.LineLength)
	}
	recordCount := hdr.Length / codec.LineLength
	if recordCount > Capacity {
		return nil, fmt.Errorf("page: corrupt length field implies %d records, capacity is %d", recordCount, Capacity)
	}
	body := data[codec.PageHeaderLength:]
	if hdr.Length > uint64(len(body)) {
		return nil, fmt.Errorf("page: corrupt length field %d exceeds page body size %d", hdr.Length, len(body))
	}
	lines := make([][]byte, 0, recordCount)
	for i := uint64(0); i < recordCount; i++ {
		start := i * codec.LineLength
		line := make([]byte, codec.LineLength)
		copy(line, body[start:start+codec.LineLength])
		lines = append(lines, line)
	}
	return &Page{
		offset: offset,
		next:   hdr.NextPageOffset,
		lines:  lines,
		dirty:  false,
	}, nil
}

// Encode renders the page as its fixed-size on-disk form: header, the
// concatenated sorted records, and '~' padding out to exactly Size bytes.
func (p *Page) Encode() ([]byte, error) {
	length := uint64(len(p.lines)) * codec.LineLength
	hdr, err := codec.EncodePageHeader(length, p.next)
	if err != nil {
		return nil, fmt.Errorf("page: %w", err)
	}
	out := make([]byte, 0, Size)
	out = append(out, hdr...)
	for _, l := range p.lines {
		out = append(out, l...)
	}
	if len(out) > Size {
		return nil, ErrOverflow
	}
	for len(out) < Size {
		out = append(out, '~')
	}
	return out, nil
}

// Offset returns the page's immutable byte offset in the body file.
func (p *Page) Offset() uint64 {
	return p.offset
}

// NextPageOffset returns the byte offset of the next page in the bucket's
// linked list, or 0 if this is the last page.
func (p *Page) NextPageOffset() uint64 {
	return p.next
}

// SetNextPageOffset links this page to the next page in its bucket.
func (p *Page) SetNextPageOffset(offset uint64) {
	p.next = offset
	p.dirty = true
}

// Lines returns the page's records in ascending byte order. Callers must
// not mutate the returned slices.
func (p *Page) Lines() [][]byte {
	return p.lines
}

// Len returns the number of records currently stored.
func (p *Page) Len() int {
	return len(p.lines)
}

// Dirty reports whether the page has unsaved in-memory changes.
func (p *Page) Dirty() bool {
	return p.dirty
}

// CanInsert reports whether one more 16-byte record would still fit.
func (p *Page) CanInsert() bool {
	return (len(p.lines)+1)*codec.LineLength+codec.PageHeaderLength <= Size
}

// InsertLine inserts line, preserving sorted byte order via binary search.
// It returns ErrOverflow if the page has no room; callers are expected to
// check CanInsert (or split the page) before calling InsertLine when they
// cannot tolerate the error path.
func (p *Page) InsertLine(line []byte) error {
	if len(line) != codec.LineLength {
		return fmt.Errorf("page: line must be %d bytes, got %d", codec.LineLength, len(line))
	}
	if !p.CanInsert() {
		return ErrOverflow
	}
	idx := sort.Search(len(p.lines), func(i int) bool {
		return bytes.Compare(p.lines[i], line) >= 0
	})
	cp := make([]byte, codec.LineLength)
	copy(cp, line)
	p.lines = append(p.lines, nil)
	copy(p.lines[idx+1:], p.lines[idx:])
	p.lines[idx] = cp
	p.dirty = true
	return nil
}

// MoveUpperHalfInto moves the upper half of this page's records into dst,
// which must be empty (typically a page freshly returned by a page
// manager's allocation call, so it is already tracked in its cache and
// will be persisted through the normal dirty-page path). dst inherits
// this page's next-page link; this page is relinked to point at dst.
// Both pages end up marked dirty.
func (p *Page) MoveUpperHalfInto(dst *Page) {
	n := len(p.lines)
	dst.lines = append(dst.lines, p.lines[n/2:]...)
	dst.next = p.next
	dst.dirty = true
	p.lines = p.lines[:n/2]
	p.next = dst.offset
	p.dirty = true
}

// FirstLine returns the smallest record on the page, or nil if empty.
func (p *Page) FirstLine() []byte {
	if len(p.lines) == 0 {
		return nil
	}
	return p.lines[0]
}

// ClearDirty marks the page as matching what is persisted on disk.
func (p *Page) ClearDirty() {
	p.dirty = false
}

// MarkDirty forces the page to be considered unsaved, used when a page is
// freshly allocated so it survives eviction correctly even before its
// first record is inserted.
func (p *Page) MarkDirty() {
	p.dirty = true
}

// MarkStale flags this Page instance as evicted. See the stale field
// comment for the contract this supports.
func (p *Page) MarkStale() {
	p.stale = true
}

// Stale reports whether this Page instance has been evicted from the page
// manager's cache and should be refetched before further use.
func (p *Page) Stale() bool {
	return p.stale
}
