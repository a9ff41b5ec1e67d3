// Package codec implements the fixed-width binary encodings shared by the
// page and header formats: big-endian unsigned integers of non-power-of-two
// byte widths (u56, 7 bytes), the 16-byte document record ("line"), and the 16-byte
// page header. Every encoding here is chosen so that raw byte comparison of
// the encoded form equals numeric comparison of the decoded value, which
// lets the page and pager packages sort and binary-search without decoding.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// LineLength is the size in bytes of one document record.
	LineLength = 16
	// ValueLength is the size in bytes of the value field within a line.
	ValueLength = 7
	// DocidLength is the size in bytes of the docid field within a line.
	DocidLength = 7
	// DisambiguatorLength is the size in bytes of the disambiguator field.
	DisambiguatorLength = 2
	// PageHeaderLength is the size in bytes of a page header.
	PageHeaderLength = 16

	// MaxValue is one past the largest ranking value a caller may use.
	// MaxValue itself, the top of the u56 range, is reserved as the LAST
	// sentinel, so EncodeLine rejects it.
	MaxValue = 1<<56 - 1
	// MaxDocid is one past the largest docid a caller may use.
	MaxDocid = 1 << 56
	// MaxDisambiguator is one past the largest disambiguator a bucket may
	// hold, i.e. the maximum number of distinct tokens per bucket.
	MaxDisambiguator = 1<<16 - 1
)

var (
	// ErrValueOutOfRange is returned when a ranking value does not fit u56.
	ErrValueOutOfRange = errors.New("codec: value out of range")
	// ErrDocidOutOfRange is returned when a docid does not fit u56.
	ErrDocidOutOfRange = errors.New("codec: docid out of range")
	// ErrDisambiguatorOutOfRange names a disambiguator outside the u16
	// range. No function in this package returns it: EncodeLine takes a
	// uint16, and the per-bucket collision limit is enforced by package
	// index, which returns its own ErrBucketOverflow.
	ErrDisambiguatorOutOfRange = errors.New("codec: disambiguator out of range")
)

// EncodeU56 encodes x as 7 big-endian bytes. x must be < 2^56.
func EncodeU56(x uint64) ([]byte, error) {
	if x >= 1<<56 {
		return nil, fmt.Errorf("codec: %d does not fit in 56 bits", x)
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, x)
	return buf[1:], nil
}

// DecodeU56 decodes 7 big-endian bytes into a uint64.
func DecodeU56(b []byte) uint64 {
	var buf [8]byte
	copy(buf[1:], b[:7])
	return binary.BigEndian.Uint64(buf[:])
}

// EncodeU16 encodes x as 2 big-endian bytes.
func EncodeU16(x uint16) []byte {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, x)
	return buf
}

// DecodeU16 decodes 2 big-endian bytes into a uint16.
func DecodeU16(b []byte) uint16 {
	return binary.BigEndian.Uint16(b[:2])
}

// Line is the decoded form of a 16-byte document record: a caller-supplied
// ranking value, a caller-supplied document id, and a disambiguator
// resolving token-hash collisions within a bucket.
type Line struct {
	Value         uint64
	Docid         uint64
	Disambiguator uint16
}

// EncodeLine builds the 16-byte on-disk representation of a record. The
// concatenation of the three big-endian fields is a single comparable byte
// string: lexicographic order over the bytes equals tuple order over
// (value, docid, disambiguator).
func EncodeLine(value, docid uint64, disambiguator uint16) ([]byte, error) {
	if value >= MaxValue {
		return nil, ErrValueOutOfRange
	}
	if docid >= MaxDocid {
		return nil, ErrDocidOutOfRange
	}
	vb, err := EncodeU56(value)
	if err != nil {
		return nil, err
	}
	db, err := EncodeU56(docid)
	if err != nil {
		return nil, err
	}
	line := make([]byte, 0, LineLength)
	line = append(line, vb...)
	line = append(line, db...)
	line = append(line, EncodeU16(disambiguator)...)
	return line, nil
}

// DecodeLine splits a 16-byte record into its three fields.
func DecodeLine(b []byte) (Line, error) {
	if len(b) != LineLength {
		return Line{}, fmt.Errorf("codec: line must be %d bytes, got %d", LineLength, len(b))
	}
	return Line{
		Value:         DecodeU56(b[0:ValueLength]),
		Docid:         DecodeU56(b[ValueLength : ValueLength+DocidLength]),
		Disambiguator: DecodeU16(b[ValueLength+DocidLength:]),
	}, nil
}

// PageHeader is the decoded form of the 16-byte header every page starts
// with: the number of record bytes stored and the offset of the next page
// in the bucket's linked list (0 meaning none).
type PageHeader struct {
	Length         uint64
	NextPageOffset uint64
}

// EncodePageHeader lays out the page header per spec: a u56 length, a
// literal space, a u56 next-page offset, and a literal newline.
func EncodePageHeader(length, next uint64) ([]byte, error) {
	lb, err := EncodeU56(length)
	if err != nil {
		return nil, err
	}
	nb, err := EncodeU56(next)
	if err != nil {
		return nil, err
	}
	h := make([]byte, 0, PageHeaderLength)
	h = append(h, lb...)
	h = append(h, ' ')
	h = append(h, nb...)
	h = append(h, '\n')
	return h, nil
}

// DecodePageHeader parses a 16-byte page header.
func DecodePageHeader(b []byte) (PageHeader, error) {
	if len(b) != PageHeaderLength {
		return PageHeader{}, fmt.Errorf("codec: page header must be %d bytes, got %d", PageHeaderLength, len(b))
	}
	if b[7] != ' ' {
		return PageHeader{}, fmt.Errorf("codec: malformed page header, expected space delimiter at offset 7")
	}
	if b[15] != '\n' {
		return PageHeader{}, fmt.Errorf("codec: malformed page header, expected newline trailer at offset 15")
	}
	return PageHeader{
		Length:         DecodeU56(b[0:7]),
		NextPageOffset: DecodeU56(b[8:15]),
	}, nil
}
