package query

import (
	"encoding/json"
	"fmt"
)

const typeOr = "or"

// OrNode is a k-way merge of sorted child streams (spec.md §4.7.2):
// it emits each distinct (value, docid) produced by any child exactly
// once, advancing every child currently sitting on the minimum.
type OrNode struct {
	children []Node
	current  Value
	started  bool
}

// NewOr returns the union of children. Step must be called once before
// Current is meaningful, matching every other node's contract.
func NewOr(children []Node) *OrNode {
	return &OrNode{children: children, current: First}
}

func (o *OrNode) Current() Value { return o.current }

func (o *OrNode) Step() (Value, error) {
	if !o.started {
		o.started = true
		for _, c := range o.children {
			if _, err := c.Step(); err != nil {
				return Value{}, err
			}
		}
	}

	min := Last
	any := false
	for _, c := range o.children {
		v := c.Current()
		if !any || Less(v, min) {
			min = v
			any = true
		}
	}
	if !any || min == Last {
		o.current = Last
		return Last, nil
	}

	for _, c := range o.children {
		if c.Current() == min {
			if _, err := c.Step(); err != nil {
				return Value{}, err
			}
		}
	}

	o.current = min
	return min, nil
}

type orState struct {
	Children [][]byte `json:"children"`
	Current  Value    `json:"current"`
	Started  bool     `json:"started"`
}

func (o *OrNode) Encode() ([]byte, error) {
	encoded := make([][]byte, len(o.children))
	for i, c := range o.children {
		b, err := c.Encode()
		if err != nil {
			return nil, fmt.Errorf("query: encoding or-node child %d: %w", i, err)
		}
		encoded[i] = b
	}
	return encodeEnvelope(typeOr, orState{Children: encoded, Current: o.current, Started: o.started})
}

func decodeOrNode(data json.RawMessage) (Node, error) {
	var s orState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("query: decoding or node: %w", err)
	}
	children := make([]Node, len(s.Children))
	for i, c := range s.Children {
		n, err := Decode(c)
		if err != nil {
			return nil, fmt.Errorf("query: decoding or-node child %d: %w", i, err)
		}
		children[i] = n
	}
	return &OrNode{children: children, current: s.Current, started: s.Started}, nil
}
