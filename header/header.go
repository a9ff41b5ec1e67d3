// Package header implements the in-memory bucket directory and its binary
// on-disk format: spec.md §4.5. The header is small relative to the body
// file (bounded by roughly 0.16 bytes per inserted token-document pair) so
// the implementation rewrites the entire header file on every save, the
// same trade-off original_source/spot/header.py documents ("in a desperate
// attempt to KISS, we just write the entire header to file every time").
package header

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
)

// FileName is the name of the header file within an index directory, per
// spec.md §6.
const FileName = "header.spot"

// DefaultNumBuckets is the bucket count a freshly created index uses
// unless overridden.
const DefaultNumBuckets = 4096

// lineValueLength is the byte width of a PageValues entry: one encoded
// 16-byte document record, duplicated here rather than imported from
// codec — header only ever treats page values as opaque comparable byte
// strings.
const lineValueLength = 16

// Bucket is the in-memory, per-hash-bucket directory entry of spec.md §3.
type Bucket struct {
	ID uint64
	// Tokens is the ordered sequence of token hashes mapped to this
	// bucket; a token's position in this slice is its disambiguator.
	Tokens []uint64
	// PageOffsets is the ordered sequence of disk offsets of this
	// bucket's pages, in linked-list order.
	PageOffsets []uint64
	// PageValues holds, parallel to PageOffsets, the first 16-byte
	// record currently stored in each page — used to binary-search
	// route inserts to the right page.
	PageValues [][]byte
}

// NewBucket creates an empty bucket directory entry for the given id.
func NewBucket(id uint64) *Bucket {
	return &Bucket{ID: id}
}

// TokenIndex returns the disambiguator assigned to hash h, and whether h
// has been seen in this bucket before.
func (b *Bucket) TokenIndex(h uint64) (int, bool) {
	for i, t := range b.Tokens {
		if t == h {
			return i, true
		}
	}
	return 0, false
}

// Header is the in-memory representation of spec.md §4.5's persisted
// directory: bucket count, an advisory insertion counter, the
// authoritative body file size, and the map of populated buckets.
type Header struct {
	NumBuckets    uint64
	NumInsertions uint64
	BodySize      uint64
	Buckets       map[uint64]*Bucket
}

// New creates an empty header for a freshly created index.
func New(numBuckets uint64) *Header {
	return &Header{
		NumBuckets: numBuckets,
		Buckets:    make(map[uint64]*Bucket),
	}
}

func encodeU64(x uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, x)
	return b
}

func decodeU64(b []byte) uint64 {
	return binary.BigEndian.Uint64(b[:8])
}

// encodeU64List encodes a length-prefixed array of u64 values.
func encodeU64List(xs []uint64) []byte {
	out := encodeU64(uint64(len(xs)))
	for _, x := range xs {
		out = append(out, encodeU64(x)...)
	}
	return out
}

// decodeU64List decodes a length-prefixed array of u64 values, returning
// the values and the number of bytes consumed.
func decodeU64List(data []byte) ([]uint64, int, error) {
	if len(data) < 8 {
		return nil, 0, fmt.Errorf("header: truncated u64 list length")
	}
	n := decodeU64(data)
	offset := 8
	if uint64(len(data)-offset) < n*8 {
		return nil, 0, fmt.Errorf("header: truncated u64 list body (want %d entries)", n)
	}
	out := make([]uint64, 0, n)
	for i := uint64(0); i < n; i++ {
		out = append(out, decodeU64(data[offset:offset+8]))
		offset += 8
	}
	return out, offset, nil
}

// encodeByteArrayList encodes a length-prefixed array of fixed-width byte
// strings (PageValues entries are each one encoded 16-byte line).
func encodeByteArrayList(xs [][]byte) []byte {
	out := encodeU64(uint64(len(xs)))
	for _, x := range xs {
		out = append(out, x...)
	}
	return out
}

func decodeByteArrayList(data []byte) ([][]byte, int, error) {
	if len(data) < 8 {
		return nil, 0, fmt.Errorf("header: truncated byte-array list length")
	}
	n := decodeU64(data)
	offset := 8
	need := n * lineValueLength
	if uint64(len(data)-offset) < need {
		return nil, 0, fmt.Errorf("header: truncated byte-array list body (want %d entries)", n)
	}
	out := make([][]byte, 0, n)
	for i := uint64(0); i < n; i++ {
		v := make([]byte, lineValueLength)
		copy(v, data[offset:offset+lineValueLength])
		out = append(out, v)
		offset += lineValueLength
	}
	return out, offset, nil
}

// encode renders one bucket's directory entry.
func (b *Bucket) encode() []byte {
	out := encodeU64(b.ID)
	out = append(out, encodeU64List(b.Tokens)...)
	out = append(out, encodeU64List(b.PageOffsets)...)
	out = append(out, encodeByteArrayList(b.PageValues)...)
	return out
}

func decodeBucket(data []byte) (*Bucket, int, error) {
	if len(data) < 8 {
		return nil, 0, fmt.Errorf("header: truncated bucket id")
	}
	b := &Bucket{ID: decodeU64(data)}
	offset := 8

	tokens, n, err := decodeU64List(data[offset:])
	if err != nil {
		return nil, 0, fmt.Errorf("header: bucket %d tokens: %w", b.ID, err)
	}
	b.Tokens = tokens
	offset += n

	pageOffsets, n, err := decodeU64List(data[offset:])
	if err != nil {
		return nil, 0, fmt.Errorf("header: bucket %d page_offsets: %w", b.ID, err)
	}
	b.PageOffsets = pageOffsets
	offset += n

	pageValues, n, err := decodeByteArrayList(data[offset:])
	if err != nil {
		return nil, 0, fmt.Errorf("header: bucket %d page_values: %w", b.ID, err)
	}
	b.PageValues = pageValues
	offset += n

	if len(b.PageOffsets) != len(b.PageValues) {
		return nil, 0, fmt.Errorf("header: bucket %d has %d page_offsets but %d page_values", b.ID, len(b.PageOffsets), len(b.PageValues))
	}
	if len(b.PageOffsets) == 0 {
		return nil, 0, fmt.Errorf("header: bucket %d has no pages", b.ID)
	}

	return b, offset, nil
}

// Encode renders the full header per spec.md §4.5: num_buckets,
// num_insertions, bodysize, then the bucket map as a length-prefixed list
// of bucket ids (for quick key enumeration) followed by each bucket's
// full directory entry, in the same order.
func (h *Header) Encode() []byte {
	ids := make([]uint64, 0, len(h.Buckets))
	for id := range h.Buckets {
		ids = append(ids, id)
	}

	out := encodeU64(h.NumBuckets)
	out = append(out, encodeU64(h.NumInsertions)...)
	out = append(out, encodeU64(h.BodySize)...)
	out = append(out, encodeU64List(ids)...)
	for _, id := range ids {
		out = append(out, h.Buckets[id].encode()...)
	}
	return out
}

// ErrCorrupt is returned when a header fails structural validation on
// decode; the caller must refuse to open the index rather than guess at
// recovery (spec.md §7).
var ErrCorrupt = fmt.Errorf("header: corrupt or truncated header data")

// Decode parses a full header from its binary form.
func Decode(data []byte) (*Header, error) {
	if len(data) < 32 {
		return nil, fmt.Errorf("%w: too short", ErrCorrupt)
	}
	h := &Header{
		NumBuckets:    decodeU64(data[0:8]),
		NumInsertions: decodeU64(data[8:16]),
		BodySize:      decodeU64(data[16:24]),
		Buckets:       make(map[uint64]*Bucket),
	}
	offset := 24

	ids, n, err := decodeU64List(data[offset:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	offset += n

	for _, id := range ids {
		if offset > len(data) {
			return nil, fmt.Errorf("%w: ran out of data decoding bucket %d", ErrCorrupt, id)
		}
		b, n, err := decodeBucket(data[offset:])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if b.ID != id {
			return nil, fmt.Errorf("%w: bucket id list says %d but entry has id %d", ErrCorrupt, id, b.ID)
		}
		h.Buckets[id] = b
		offset += n
	}

	return h, nil
}

// Load reads the header file within dir, creating a fresh default header
// (not yet persisted) if the file does not exist.
func Load(dir string, numBuckets uint64) (*Header, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(numBuckets), nil
		}
		return nil, fmt.Errorf("header: reading %s: %w", path, err)
	}
	h, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// Save rewrites the header file within dir in its entirety. The write is
// atomic (rename-on-write via github.com/natefinch/atomic) so a crash
// mid-save cannot leave header.spot partially written and unreadable;
// spec.md's own crash-consistency story ("last-written header is
// authoritative") still applies across whole-file swaps, it just can no
// longer tear mid-file.
func (h *Header) Save(dir string) error {
	data := h.Encode()
	path := filepath.Join(dir, FileName)
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("header: saving %s: %w", path, err)
	}
	return nil
}
