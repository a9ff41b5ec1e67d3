package query

import "testing"

func drain(t *testing.T, n Node) []Value {
	t.Helper()
	var out []Value
	for {
		v, err := n.Step()
		if err != nil {
			t.Fatal(err)
		}
		if v == Last {
			return out
		}
		out = append(out, v)
	}
}

func assertValues(t *testing.T, got, want []Value) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("result[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestAndNodeIntersects(t *testing.T) {
	foo := newListNode([]Value{{Value: 3, Docid: 1}, {Value: 7, Docid: 0}, {Value: 11, Docid: 2}})
	bar := newListNode([]Value{{Value: 7, Docid: 0}, {Value: 11, Docid: 2}})
	and := NewAnd([]Node{foo, bar})
	assertValues(t, drain(t, and), []Value{{Value: 7, Docid: 0}, {Value: 11, Docid: 2}})
}

func TestAndNodeEmptyWhenOneChildEmpty(t *testing.T) {
	foo := newListNode([]Value{{Value: 1, Docid: 1}})
	empty := newListNode(nil)
	and := NewAnd([]Node{foo, empty})
	if got := drain(t, and); len(got) != 0 {
		t.Errorf("expected empty intersection, got %v", got)
	}
}

func TestAndNodeSkipsNonMatchingCandidates(t *testing.T) {
	a := newListNode([]Value{{Value: 1, Docid: 0}, {Value: 2, Docid: 0}, {Value: 3, Docid: 0}})
	b := newListNode([]Value{{Value: 2, Docid: 0}})
	and := NewAnd([]Node{a, b})
	assertValues(t, drain(t, and), []Value{{Value: 2, Docid: 0}})
}
