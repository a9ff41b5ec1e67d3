package query

import "testing"

func TestRetrieveHelloWorldIntersection(t *testing.T) {
	foo := newListNode([]Value{{Value: 3, Docid: 1}, {Value: 7, Docid: 0}})
	bar := newListNode([]Value{{Value: 7, Docid: 0}, {Value: 11, Docid: 2}})
	and := NewAnd([]Node{foo, bar})
	results, _, done, err := Retrieve(and, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if !done {
		t.Error("expected retrieval to be done")
	}
	assertValues(t, results, []Value{{Value: 7, Docid: 0}})
}

func TestRetrieveUnionWithDuplicates(t *testing.T) {
	foo := newListNode([]Value{{Value: 3, Docid: 1}, {Value: 7, Docid: 0}})
	bar := newListNode([]Value{{Value: 7, Docid: 0}, {Value: 11, Docid: 2}})
	or := NewOr([]Node{foo, bar})
	results, _, done, err := Retrieve(or, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if !done {
		t.Error("expected retrieval to be done")
	}
	assertValues(t, results, []Value{
		{Value: 3, Docid: 1},
		{Value: 7, Docid: 0},
		{Value: 11, Docid: 2},
	})
}

func TestRetrieveStopsAtLimitAndResumeYieldsNoOverlapOrGap(t *testing.T) {
	values := make([]Value, 0, 20)
	for i := int64(0); i < 20; i++ {
		values = append(values, Value{Value: i, Docid: i})
	}
	node := newListNode(values)

	first, state, done, err := Retrieve(node, 7)
	if err != nil {
		t.Fatal(err)
	}
	if done {
		t.Fatal("expected retrieval to stop before exhaustion")
	}
	if len(first) != 7 {
		t.Fatalf("got %d results, want 7", len(first))
	}

	resumed, err := decodeListNode(state)
	if err != nil {
		t.Fatal(err)
	}
	rest, _, done, err := Retrieve(resumed, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if !done {
		t.Error("expected the rest of the scan to exhaust")
	}
	assertValues(t, append(first, rest...), values)
}
