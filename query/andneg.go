package query

import (
	"encoding/json"
	"fmt"
)

const typeAndNeg = "and_neg"

// AndWithNegations is an intersection where some children are negated
// (spec.md §4.7.4): it emits v iff every non-negated child currently
// equals v and no negated child does. At least one non-negated child is
// required; Index.AND inserts the reserved all-documents node
// automatically when every operand would otherwise be negated. Index.OR
// takes no negation flags and never inserts it.
type AndWithNegations struct {
	children []Node
	negated  []bool
	current  Value
}

// NewAndWithNegations pairs each child with whether it is negated. len(children)
// must equal len(negated), and at least one entry in negated must be false.
func NewAndWithNegations(children []Node, negated []bool) (*AndWithNegations, error) {
	if len(children) != len(negated) {
		return nil, fmt.Errorf("query: and-negations requires matching children and negated lengths, got %d and %d", len(children), len(negated))
	}
	hasPositive := false
	for _, neg := range negated {
		if !neg {
			hasPositive = true
			break
		}
	}
	if !hasPositive {
		return nil, fmt.Errorf("query: and-negations requires at least one non-negated child")
	}
	return &AndWithNegations{children: children, negated: negated, current: First}, nil
}

func (a *AndWithNegations) Current() Value { return a.current }

func (a *AndWithNegations) positiveIndices() []int {
	var idx []int
	for i, neg := range a.negated {
		if !neg {
			idx = append(idx, i)
		}
	}
	return idx
}

func (a *AndWithNegations) Step() (Value, error) {
	positives := a.positiveIndices()

	// Only the positive children advance unconditionally here; a negated
	// child must stay put until the "for Less(...)" loop below decides it
	// needs to catch up to the candidate value, or an unconditional step
	// here could skip past a value that would have rejected the next
	// candidate.
	for _, i := range positives {
		if _, err := a.children[i].Step(); err != nil {
			return Value{}, err
		}
	}

	for {
		high := a.children[positives[0]].Current()
		for _, i := range positives[1:] {
			if v := a.children[i].Current(); Less(high, v) {
				high = v
			}
		}
		if high == Last {
			a.current = Last
			return Last, nil
		}

		allEqual := true
		for _, i := range positives {
			if a.children[i].Current() != high {
				allEqual = false
				if _, err := a.children[i].Step(); err != nil {
					return Value{}, err
				}
			}
		}
		if !allEqual {
			continue
		}

		rejected := false
		for i, neg := range a.negated {
			if !neg {
				continue
			}
			for Less(a.children[i].Current(), high) {
				if _, err := a.children[i].Step(); err != nil {
					return Value{}, err
				}
			}
			if a.children[i].Current() == high {
				rejected = true
			}
		}
		if rejected {
			if _, err := a.children[positives[0]].Step(); err != nil {
				return Value{}, err
			}
			continue
		}

		a.current = high
		return high, nil
	}
}

type andNegState struct {
	Children [][]byte `json:"children"`
	Negated  []bool   `json:"negated"`
	Current  Value    `json:"current"`
}

func (a *AndWithNegations) Encode() ([]byte, error) {
	encoded := make([][]byte, len(a.children))
	for i, c := range a.children {
		b, err := c.Encode()
		if err != nil {
			return nil, fmt.Errorf("query: encoding and-negations child %d: %w", i, err)
		}
		encoded[i] = b
	}
	return encodeEnvelope(typeAndNeg, andNegState{Children: encoded, Negated: a.negated, Current: a.current})
}

func decodeAndWithNegations(data json.RawMessage) (Node, error) {
	var s andNegState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("query: decoding and-negations node: %w", err)
	}
	children := make([]Node, len(s.Children))
	for i, c := range s.Children {
		n, err := Decode(c)
		if err != nil {
			return nil, fmt.Errorf("query: decoding and-negations child %d: %w", i, err)
		}
		children[i] = n
	}
	return &AndWithNegations{children: children, negated: s.Negated, current: s.Current}, nil
}
