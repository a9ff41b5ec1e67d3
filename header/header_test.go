package header

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func line16(b byte) []byte {
	v := make([]byte, 16)
	for i := range v {
		v[i] = b
	}
	return v
}

func TestHeaderRoundTrip(t *testing.T) {
	h := New(4096)
	h.NumInsertions = 3
	h.BodySize = 4096 * 3
	h.Buckets[7] = &Bucket{
		ID:          7,
		Tokens:      []uint64{111, 222},
		PageOffsets: []uint64{0, 4096},
		PageValues:  [][]byte{line16(0), line16(1)},
	}
	h.Buckets[19] = &Bucket{
		ID:          19,
		Tokens:      []uint64{333},
		PageOffsets: []uint64{8192},
		PageValues:  [][]byte{line16(2)},
	}

	data := h.Encode()
	decoded, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(h, decoded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadMissingFileReturnsFreshHeader(t *testing.T) {
	dir := t.TempDir()
	h, err := Load(dir, 4096)
	if err != nil {
		t.Fatal(err)
	}
	if h.NumBuckets != 4096 {
		t.Errorf("NumBuckets = %d, want 4096", h.NumBuckets)
	}
	if len(h.Buckets) != 0 {
		t.Errorf("expected no buckets in a fresh header, got %d", len(h.Buckets))
	}
}

func TestSaveThenLoad(t *testing.T) {
	dir := t.TempDir()
	h := New(4096)
	h.NumInsertions = 5
	h.BodySize = 4096
	h.Buckets[1] = &Bucket{
		ID:          1,
		Tokens:      []uint64{42},
		PageOffsets: []uint64{0},
		PageValues:  [][]byte{line16(9)},
	}

	if err := h.Save(dir); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, FileName)); err != nil {
		t.Fatalf("expected header file to exist: %v", err)
	}

	loaded, err := Load(dir, 4096)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(h, loaded); diff != "" {
		t.Errorf("save/load mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeRejectsTruncatedData(t *testing.T) {
	if _, err := Decode([]byte{1, 2, 3}); err == nil {
		t.Error("expected error decoding truncated header")
	}
}

func TestDecodeRejectsMismatchedPageArrays(t *testing.T) {
	h := New(4096)
	h.Buckets[1] = &Bucket{
		ID:          1,
		Tokens:      []uint64{1},
		PageOffsets: []uint64{0, 4096},
		PageValues:  [][]byte{line16(0)},
	}
	data := h.Encode()
	if _, err := Decode(data); err == nil {
		t.Error("expected error for mismatched page_offsets/page_values lengths")
	}
}

func TestBucketTokenIndex(t *testing.T) {
	b := &Bucket{Tokens: []uint64{10, 20, 30}}
	idx, ok := b.TokenIndex(20)
	if !ok || idx != 1 {
		t.Errorf("TokenIndex(20) = %d, %v; want 1, true", idx, ok)
	}
	if _, ok := b.TokenIndex(99); ok {
		t.Error("expected TokenIndex(99) to report not found")
	}
}
