package query

import (
	"encoding/json"
	"fmt"
)

const typeAnd = "and"

// AndNode is the intersection of its children's sorted streams (spec.md
// §4.7.3): every child is driven forward until they all agree on the
// same (value, docid), which becomes the emitted value.
type AndNode struct {
	children []Node
	current  Value
}

// NewAnd returns the intersection of children. len(children) must be at
// least 1.
func NewAnd(children []Node) *AndNode {
	return &AndNode{children: children, current: First}
}

func (a *AndNode) Current() Value { return a.current }

func (a *AndNode) Step() (Value, error) {
	for _, c := range a.children {
		if _, err := c.Step(); err != nil {
			return Value{}, err
		}
	}
	for {
		high := a.children[0].Current()
		for _, c := range a.children[1:] {
			if v := c.Current(); Less(high, v) {
				high = v
			}
		}
		// high == Last exactly when some child is exhausted, since Last
		// sorts greater than every real record: the intersection is
		// permanently empty from here on.
		if high == Last {
			a.current = Last
			return Last, nil
		}
		allEqual := true
		for _, c := range a.children {
			if c.Current() != high {
				allEqual = false
				if _, err := c.Step(); err != nil {
					return Value{}, err
				}
			}
		}
		if allEqual {
			a.current = high
			return high, nil
		}
	}
}

type andState struct {
	Children [][]byte `json:"children"`
	Current  Value    `json:"current"`
}

func (a *AndNode) Encode() ([]byte, error) {
	encoded := make([][]byte, len(a.children))
	for i, c := range a.children {
		b, err := c.Encode()
		if err != nil {
			return nil, fmt.Errorf("query: encoding and-node child %d: %w", i, err)
		}
		encoded[i] = b
	}
	return encodeEnvelope(typeAnd, andState{Children: encoded, Current: a.current})
}

func decodeAndNode(data json.RawMessage) (Node, error) {
	var s andState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("query: decoding and node: %w", err)
	}
	children := make([]Node, len(s.Children))
	for i, c := range s.Children {
		n, err := Decode(c)
		if err != nil {
			return nil, fmt.Errorf("query: decoding and-node child %d: %w", i, err)
		}
		children[i] = n
	}
	return &AndNode{children: children, current: s.Current}, nil
}
