package query

import (
	"encoding/json"
	"fmt"

	"github.com/chirst/spotidx/codec"
	"github.com/chirst/spotidx/page"
)

const typeToken = "token"

// TokenNode scans one token's posting list: a snapshot of a bucket's
// page_offsets, filtered down to the records whose disambiguator matches
// this token (spec.md §4.7.1). A bucket can hold more than one token's
// records interleaved by (value, docid) order, so every record on a page
// is inspected and the ones belonging to other tokens are skipped.
type TokenNode struct {
	pf            PageFetcher
	indexID       string
	disambiguator uint16

	// offsets is the bucket's page_offsets snapshot captured when this
	// node was constructed, in linked-list order.
	offsets []uint64
	pageIdx int
	lineIdx int
	current Value
	done    bool

	curPage *page.Page
}

// NewTokenNode returns a cursor over the posting list formed by offsets,
// filtered to records carrying disambiguator.
func NewTokenNode(pf PageFetcher, indexID string, disambiguator uint16, offsets []uint64) *TokenNode {
	return &TokenNode{
		pf:            pf,
		indexID:       indexID,
		disambiguator: disambiguator,
		offsets:       offsets,
		pageIdx:       0,
		lineIdx:       -1,
		current:       First,
	}
}

func (t *TokenNode) Current() Value { return t.current }

// Step advances to the next record carrying this node's disambiguator,
// walking forward across the bucket's pages as needed, per spec.md
// §4.7.1.
func (t *TokenNode) Step() (Value, error) {
	if t.done {
		return Last, nil
	}
	for {
		// curPage is cached across Step calls rather than re-fetched from
		// pf every time, which is safe only under spec.md §5's
		// single-writer, no-interleaved-write model: nothing can mutate a
		// page this cursor is mid-scan on. A resumed cursor (built fresh
		// from decodeTokenNode) still re-fetches its first page the usual
		// way, so this is purely an in-process optimization, not a
		// substitute for the §9 strategy-(a) "re-fetch each step" contract
		// a concurrent-writer implementation would need.
		if t.curPage == nil {
			if t.pageIdx >= len(t.offsets) {
				t.done = true
				t.current = Last
				return Last, nil
			}
			p, err := t.pf.FetchPage(t.offsets[t.pageIdx])
			if err != nil {
				return Value{}, fmt.Errorf("query: token node fetching page %d: %w", t.offsets[t.pageIdx], err)
			}
			t.curPage = p
		}
		t.lineIdx++
		lines := t.curPage.Lines()
		if t.lineIdx >= len(lines) {
			if t.pageIdx == len(t.offsets)-1 {
				t.done = true
				t.current = Last
				return Last, nil
			}
			t.pageIdx++
			t.lineIdx = -1
			t.curPage = nil
			continue
		}
		line, err := codec.DecodeLine(lines[t.lineIdx])
		if err != nil {
			return Value{}, fmt.Errorf("query: token node decoding record: %w", err)
		}
		if line.Disambiguator != t.disambiguator {
			continue
		}
		t.current = Value{Value: int64(line.Value), Docid: int64(line.Docid)}
		return t.current, nil
	}
}

type tokenState struct {
	IndexID       string   `json:"index_id"`
	Disambiguator uint16   `json:"disambiguator"`
	Offsets       []uint64 `json:"offsets"`
	PageIdx       int      `json:"page_idx"`
	LineIdx       int      `json:"line_idx"`
	Current       Value    `json:"current"`
	Done          bool     `json:"done"`
}

func (t *TokenNode) Encode() ([]byte, error) {
	return encodeEnvelope(typeToken, tokenState{
		IndexID:       t.indexID,
		Disambiguator: t.disambiguator,
		Offsets:       t.offsets,
		PageIdx:       t.pageIdx,
		LineIdx:       t.lineIdx,
		Current:       t.current,
		Done:          t.done,
	})
}

func decodeTokenNode(data json.RawMessage) (Node, error) {
	var s tokenState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("query: decoding token node: %w", err)
	}
	pf, err := lookup(s.IndexID)
	if err != nil {
		return nil, err
	}
	return &TokenNode{
		pf:            pf,
		indexID:       s.IndexID,
		disambiguator: s.Disambiguator,
		offsets:       s.Offsets,
		pageIdx:       s.PageIdx,
		lineIdx:       s.LineIdx,
		current:       s.Current,
		done:          s.Done,
	}, nil
}
