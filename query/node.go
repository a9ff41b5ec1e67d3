// Package query implements the lazy, sorted-stream query algebra of
// spec.md §4.7: TokenNode scans one posting list, AndNode/OrNode/
// AndWithNegations compose child nodes into intersections, unions, and
// negated intersections, and every node's cursor can be serialized and
// resumed. The dispatch between node kinds on decode is a tagged-variant
// switch keyed by a type string (spec.md §9 design note), not a class
// hierarchy.
package query

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/chirst/spotidx/page"
)

// Value is the (ranking value, docid) pair every node cursor yields, in
// ascending order. Real values and docids are non-negative and fit in 56
// bits; the int64 representation leaves room for the FIRST/LAST sentinels
// below.
type Value struct {
	Value int64 `json:"value"`
	Docid int64 `json:"docid"`
}

// Less reports whether a sorts strictly before b under (value, docid)
// tuple order.
func Less(a, b Value) bool {
	if a.Value != b.Value {
		return a.Value < b.Value
	}
	return a.Docid < b.Docid
}

// First is the sentinel cursor state before any step has been taken: it
// compares less than every real record.
var First = Value{Value: -1, Docid: -1}

// Last is the sentinel cursor state at exhaustion: it compares greater
// than every real record. Its value component is pinned to the codec's
// reserved top-of-range value (2^56-1), which Line encoding never accepts
// for a real record, rather than the smaller 2^55-1 named in spec.md's
// prose — using the smaller bound would let large legitimate ranking
// values (up to 2^56-2) collide with or exceed "LAST", breaking the
// "sentinel before/after every real record" guarantee the rest of the
// query algebra depends on. See DESIGN.md for the full resolution.
var Last = Value{Value: 1<<56 - 1, Docid: 0}

// PageFetcher is the narrow interface a query node needs from the page
// manager to walk a bucket's linked list of pages. *pager.Manager
// satisfies this directly.
type PageFetcher interface {
	FetchPage(offset uint64) (*page.Page, error)
}

// Node is the common cursor contract of spec.md §4.7: every node kind
// (Token, And, Or, AndWithNegations, Empty) implements Step, Current, and
// Encode so cursors are interchangeable and serializable regardless of
// their concrete type.
type Node interface {
	// Step advances to the next satisfying record and returns it, or
	// returns Last at exhaustion; calling Step again after Last is
	// idempotent.
	Step() (Value, error)
	// Current returns the value last produced by Step without advancing,
	// or First if Step has never been called.
	Current() Value
	// Encode serializes this node's cursor state for later resumption
	// via Decode.
	Encode() ([]byte, error)
}

// envelope is the tagged-variant wrapper every node's Encode output is
// wrapped in, so Decode can dispatch on Type before interpreting Data.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func encodeEnvelope(typ string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("query: encoding %s node: %w", typ, err)
	}
	return json.Marshal(envelope{Type: typ, Data: raw})
}

var (
	registryMu sync.Mutex
	registry   = map[string]PageFetcher{}
)

// Register associates an index id with the PageFetcher Decode should use
// to resolve any TokenNode cursor encoded under that id. spec.md §9's
// design note: a node conceptually borrows its Index for the cursor's
// lifetime, and a serialized cursor carries the Index's process-assigned
// id so it can be resolved again on decode, even in a fresh call stack.
func Register(indexID string, pf PageFetcher) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[indexID] = pf
}

// Unregister removes an index id from the decode registry, called when an
// Index is closed.
func Unregister(indexID string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(registry, indexID)
}

func lookup(indexID string) (PageFetcher, error) {
	registryMu.Lock()
	defer registryMu.Unlock()
	pf, ok := registry[indexID]
	if !ok {
		return nil, fmt.Errorf("query: no open index registered with id %q", indexID)
	}
	return pf, nil
}

// Decode reconstructs a Node from bytes produced by its Encode, dispatching
// on the node's type tag.
func Decode(data []byte) (Node, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("query: decoding envelope: %w", err)
	}
	switch env.Type {
	case typeToken:
		return decodeTokenNode(env.Data)
	case typeAnd:
		return decodeAndNode(env.Data)
	case typeOr:
		return decodeOrNode(env.Data)
	case typeAndNeg:
		return decodeAndWithNegations(env.Data)
	case typeEmpty:
		return &EmptyNode{}, nil
	default:
		return nil, fmt.Errorf("query: unknown node type %q", env.Type)
	}
}

// EmptyNode is immediately exhausted. Index.DocumentsWithToken returns one
// when a bucket or token hash is unknown.
type EmptyNode struct{}

// NewEmpty returns a node that is immediately exhausted.
func NewEmpty() *EmptyNode { return &EmptyNode{} }

func (e *EmptyNode) Step() (Value, error) { return Last, nil }
func (e *EmptyNode) Current() Value       { return Last }

func (e *EmptyNode) Encode() ([]byte, error) {
	return encodeEnvelope(typeEmpty, struct{}{})
}

const typeEmpty = "empty"
