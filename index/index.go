// Package index wires codec, page, pager, header, tokenhash, and query
// together into the Index of spec.md §4.6 and §6: the public entry point
// for inserting tokenized documents and running boolean queries against
// them. Open registers each index in package query's process-level
// registry (and Close unregisters it), which query.Decode relies on to
// resolve a resumed TokenNode cursor back to its page manager.
package index

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"sync/atomic"

	"github.com/chirst/spotidx/codec"
	"github.com/chirst/spotidx/header"
	"github.com/chirst/spotidx/pager"
	"github.com/chirst/spotidx/query"
	"github.com/chirst/spotidx/tokenhash"
)

// Sentinel errors per spec.md §7's error taxonomy.
var (
	ErrInvalidArgument = fmt.Errorf("index: invalid argument")
	ErrBucketOverflow  = fmt.Errorf("index: bucket overflow, recreate the index with more buckets")
	ErrClosed          = fmt.Errorf("index: use of closed index")
)

var nextID uint64

// Index is an open inverted index: a bucketed token directory (Header)
// backed by a paged body file (pager.Manager).
type Index struct {
	id     string
	dir    string
	pm     *pager.Manager
	h      *header.Header
	hashFn func(string) uint64
	closed bool
}

// Option configures Open.
type Option func(*options)

type options struct {
	numBuckets  uint64
	maxResident int
	hashFn      func(string) uint64
}

// WithNumBuckets overrides the bucket count used when creating a new
// index; it has no effect when opening an existing one, whose bucket
// count is authoritative in its header.
func WithNumBuckets(n uint64) Option {
	return func(o *options) { o.numBuckets = n }
}

// WithMaxResidentPages overrides the page cache's resident capacity.
func WithMaxResidentPages(n int) Option {
	return func(o *options) { o.maxResident = n }
}

// withHashFn overrides the token hash function. Unexported: it exists so
// tests can force hash collisions (spec.md §8 concrete scenario 5) without
// giving callers a way to break the on-disk hash contract spec.md §4.2
// fixes to SHA-256.
func withHashFn(fn func(string) uint64) Option {
	return func(o *options) { o.hashFn = fn }
}

// Open opens the index directory at path, creating an empty index if it
// does not exist. An empty path opens a memory-only index, useful for
// tests and for indexes that are never meant to be persisted.
func Open(path string, opts ...Option) (*Index, error) {
	o := &options{
		numBuckets:  header.DefaultNumBuckets,
		maxResident: pager.DefaultMaxResident,
		hashFn:      tokenhash.Hash64,
	}
	for _, opt := range opts {
		opt(o)
	}

	var h *header.Header
	var pm *pager.Manager
	var err error

	if path == "" {
		h = header.New(o.numBuckets)
		pm = pager.NewMemory(0, o.maxResident)
	} else {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("index: creating %s: %w", path, err)
		}
		h, err = header.Load(path, o.numBuckets)
		if err != nil {
			return nil, err
		}
		pm, err = pager.NewFile(path, h.BodySize, o.maxResident)
		if err != nil {
			return nil, err
		}
	}

	id := fmt.Sprintf("%s#%d", path, atomic.AddUint64(&nextID, 1))
	query.Register(id, pm)

	return &Index{id: id, dir: path, pm: pm, h: h, hashFn: o.hashFn}, nil
}

// Close unregisters the index from the query decode registry and
// releases its storage handle. Close does not implicitly Save.
func (idx *Index) Close() error {
	if idx.closed {
		return nil
	}
	idx.closed = true
	query.Unregister(idx.id)
	return idx.pm.Close()
}

// Save flushes every dirty resident page and rewrites the header, in
// that order (spec.md §5: "save() must flush the body before writing the
// header"). Save on a memory-only index flushes pages but skips the
// (file-backed) header write.
func (idx *Index) Save() error {
	if idx.closed {
		return ErrClosed
	}
	if err := idx.pm.SaveAll(); err != nil {
		return err
	}
	idx.h.BodySize = idx.pm.BodySize()
	if idx.dir == "" {
		return nil
	}
	return idx.h.Save(idx.dir)
}

// Add inserts one (token, docid, value) triple, implementing the insert
// path of spec.md §4.6.
func (idx *Index) Add(token string, docid, value uint64) error {
	if idx.closed {
		return ErrClosed
	}
	if token == "" {
		return fmt.Errorf("%w: token must be non-empty (use AddDoc for the reserved all-documents token)", ErrInvalidArgument)
	}
	return idx.add(token, docid, value)
}

// AddDoc tags docid with the reserved empty-string token, the "all
// documents" marker spec.md §4.2 and §6 describe; original_source/spot.py
// has no separate helper for this, calling add("", docid, value) directly.
func (idx *Index) AddDoc(docid, value uint64) error {
	if idx.closed {
		return ErrClosed
	}
	return idx.add(tokenhash.AllDocumentsToken, docid, value)
}

func (idx *Index) add(token string, docid, value uint64) error {
	if value >= codec.MaxValue {
		return fmt.Errorf("%w: value %d must be < %d", ErrInvalidArgument, value, codec.MaxValue)
	}
	if docid >= codec.MaxDocid {
		return fmt.Errorf("%w: docid %d must be < %d", ErrInvalidArgument, docid, codec.MaxDocid)
	}

	idx.h.NumInsertions++
	hash := idx.hashFn(token)
	bID := tokenhash.BucketID(hash, idx.h.NumBuckets)

	b, ok := idx.h.Buckets[bID]
	if !ok {
		p, err := idx.pm.AllocatePage()
		if err != nil {
			return err
		}
		b = header.NewBucket(bID)
		b.PageOffsets = []uint64{p.Offset()}
		b.PageValues = [][]byte{make([]byte, codec.LineLength)}
		idx.h.Buckets[bID] = b
	}

	disamb, found := b.TokenIndex(hash)
	if !found {
		if len(b.Tokens) >= codec.MaxDisambiguator {
			return ErrBucketOverflow
		}
		b.Tokens = append(b.Tokens, hash)
		disamb = len(b.Tokens) - 1
	}

	line, err := codec.EncodeLine(value, docid, uint16(disamb))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	pageIdx := rightBiasedSearch(b.PageValues, line)
	p, err := idx.pm.FetchPage(b.PageOffsets[pageIdx])
	if err != nil {
		return err
	}

	if !p.CanInsert() {
		p2, err := idx.pm.AllocatePage()
		if err != nil {
			return err
		}
		p.MoveUpperHalfInto(p2)

		b.PageOffsets = append(b.PageOffsets, 0)
		copy(b.PageOffsets[pageIdx+2:], b.PageOffsets[pageIdx+1:])
		b.PageOffsets[pageIdx+1] = p2.Offset()

		b.PageValues = append(b.PageValues, nil)
		copy(b.PageValues[pageIdx+2:], b.PageValues[pageIdx+1:])
		b.PageValues[pageIdx+1] = p2.FirstLine()

		b.PageValues[pageIdx] = p.FirstLine()

		if bytes.Compare(line, p2.FirstLine()) >= 0 {
			pageIdx++
			p = p2
		}
	}

	if err := p.InsertLine(line); err != nil {
		return err
	}
	b.PageValues[pageIdx] = p.FirstLine()

	return nil
}

// rightBiasedSearch returns the highest index i such that values[i] <=
// line, clamped to 0, matching spec.md §4.6 step 6's "binary_search(...)
// - 1, max 0" rule for routing an insert to the page whose range contains
// it.
func rightBiasedSearch(values [][]byte, line []byte) int {
	i := sort.Search(len(values), func(i int) bool {
		return bytes.Compare(values[i], line) > 0
	})
	if i == 0 {
		return 0
	}
	return i - 1
}

// DocumentsWithToken returns a cursor over token's posting list, or an
// exhausted node if the token has never been inserted (spec.md §4.7.1).
func (idx *Index) DocumentsWithToken(token string) (query.Node, error) {
	if idx.closed {
		return nil, ErrClosed
	}
	hash := idx.hashFn(token)
	bID := tokenhash.BucketID(hash, idx.h.NumBuckets)
	b, ok := idx.h.Buckets[bID]
	if !ok {
		return query.NewEmpty(), nil
	}
	disamb, found := b.TokenIndex(hash)
	if !found {
		return query.NewEmpty(), nil
	}
	offsets := make([]uint64, len(b.PageOffsets))
	copy(offsets, b.PageOffsets)
	return query.NewTokenNode(idx.pm, idx.id, uint16(disamb), offsets), nil
}

// AllDocuments returns a cursor over every inserted document, equivalent
// to DocumentsWithToken("").
func (idx *Index) AllDocuments() (query.Node, error) {
	return idx.DocumentsWithToken(tokenhash.AllDocumentsToken)
}

// AND builds the intersection of nodes. If negated is nil, it is a plain
// AndNode (spec.md §4.7.3). If negated is non-nil, it must have the same
// length as nodes; when every entry is negated, AND automatically inserts
// AllDocuments as an additional, non-negated operand (spec.md §6: "insert
// all_documents when every operand is negated") so AndWithNegations's
// "at least one positive child" requirement is always satisfiable.
func (idx *Index) AND(nodes []query.Node, negated []bool) (query.Node, error) {
	if idx.closed {
		return nil, ErrClosed
	}
	if negated == nil {
		return query.NewAnd(nodes), nil
	}
	if len(nodes) != len(negated) {
		return nil, fmt.Errorf("%w: AND requires matching nodes and negated lengths", ErrInvalidArgument)
	}

	allNegated := true
	for _, n := range negated {
		if !n {
			allNegated = false
			break
		}
	}
	if allNegated {
		all, err := idx.AllDocuments()
		if err != nil {
			return nil, err
		}
		nodes = append([]query.Node{all}, nodes...)
		negated = append([]bool{false}, negated...)
	}

	return query.NewAndWithNegations(nodes, negated)
}

// OR builds the union of nodes (spec.md §4.7.2).
func (idx *Index) OR(nodes []query.Node) (query.Node, error) {
	if idx.closed {
		return nil, ErrClosed
	}
	return query.NewOr(nodes), nil
}
