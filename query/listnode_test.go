package query

import "encoding/json"

// listNode is a trivial list-backed Node (spec.md §9: "list-backed for
// testing") driving composite nodes like AndNode and OrNode without
// needing real page storage. It is not registered in the package-level
// Decode dispatch table since nothing outside tests ever constructs one;
// decodeListNode below is a private test-only counterpart to Encode.
type listNode struct {
	values  []Value
	idx     int
	current Value
}

func newListNode(values []Value) *listNode {
	return &listNode{values: values, idx: -1, current: First}
}

func (l *listNode) Current() Value { return l.current }

func (l *listNode) Step() (Value, error) {
	l.idx++
	if l.idx >= len(l.values) {
		l.current = Last
		return Last, nil
	}
	l.current = l.values[l.idx]
	return l.current, nil
}

type listNodeState struct {
	Values  []Value `json:"values"`
	Idx     int     `json:"idx"`
	Current Value   `json:"current"`
}

func (l *listNode) Encode() ([]byte, error) {
	return json.Marshal(listNodeState{Values: l.values, Idx: l.idx, Current: l.current})
}

func decodeListNode(data []byte) (*listNode, error) {
	var s listNodeState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &listNode{values: s.Values, idx: s.Idx, current: s.Current}, nil
}
