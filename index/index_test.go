package index

import (
	"testing"

	"github.com/chirst/spotidx/query"
	"github.com/stretchr/testify/require"
)

func retrieveAll(t *testing.T, n query.Node) []query.Value {
	t.Helper()
	results, _, done, err := query.Retrieve(n, 1<<30)
	require.NoError(t, err)
	require.True(t, done, "expected retrieval to exhaust the node")
	return results
}

// TestHelloWorldIntersection covers spec.md §8 concrete scenario 1.
func TestHelloWorldIntersection(t *testing.T) {
	idx, err := Open("")
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.Add("foo", 0, 7))
	require.NoError(t, idx.Add("bar", 0, 7))
	require.NoError(t, idx.Add("foo", 1, 3))
	require.NoError(t, idx.Add("baz", 1, 3))
	require.NoError(t, idx.Add("bar", 2, 11))
	require.NoError(t, idx.Add("baz", 2, 11))

	foo, err := idx.DocumentsWithToken("foo")
	require.NoError(t, err)
	bar, err := idx.DocumentsWithToken("bar")
	require.NoError(t, err)
	and, err := idx.AND([]query.Node{foo, bar}, nil)
	require.NoError(t, err)

	require.Equal(t, []query.Value{{Value: 7, Docid: 0}}, retrieveAll(t, and))
}

// TestUnionWithDuplicates covers spec.md §8 concrete scenario 2.
func TestUnionWithDuplicates(t *testing.T) {
	idx, err := Open("")
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.Add("foo", 0, 7))
	require.NoError(t, idx.Add("bar", 0, 7))
	require.NoError(t, idx.Add("foo", 1, 3))
	require.NoError(t, idx.Add("baz", 1, 3))
	require.NoError(t, idx.Add("bar", 2, 11))
	require.NoError(t, idx.Add("baz", 2, 11))

	foo, err := idx.DocumentsWithToken("foo")
	require.NoError(t, err)
	bar, err := idx.DocumentsWithToken("bar")
	require.NoError(t, err)
	or, err := idx.OR([]query.Node{foo, bar})
	require.NoError(t, err)

	require.Equal(t, []query.Value{
		{Value: 3, Docid: 1},
		{Value: 7, Docid: 0},
		{Value: 11, Docid: 2},
	}, retrieveAll(t, or))
}

// TestNegationWithAllDocs covers spec.md §8 concrete scenario 3.
func TestNegationWithAllDocs(t *testing.T) {
	idx, err := Open("")
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.Add("foo", 0, 7))
	require.NoError(t, idx.Add("bar", 0, 7))
	require.NoError(t, idx.Add("foo", 1, 3))
	require.NoError(t, idx.Add("baz", 1, 3))
	require.NoError(t, idx.Add("bar", 2, 11))
	require.NoError(t, idx.Add("baz", 2, 11))
	require.NoError(t, idx.AddDoc(0, 7))
	require.NoError(t, idx.AddDoc(1, 3))
	require.NoError(t, idx.AddDoc(2, 11))

	all, err := idx.AllDocuments()
	require.NoError(t, err)
	foo, err := idx.DocumentsWithToken("foo")
	require.NoError(t, err)
	and, err := idx.AND([]query.Node{all, foo}, []bool{false, true})
	require.NoError(t, err)

	require.Equal(t, []query.Value{{Value: 11, Docid: 2}}, retrieveAll(t, and))
}

// TestNegationRejectsLaterMatchingValue guards the public API against the
// same bug TestAndWithNegationsRejectsLaterMatchingValue covers directly
// in package query: a negated token's only match must not be skipped
// merely because an earlier, unrelated candidate was emitted first.
func TestNegationRejectsLaterMatchingValue(t *testing.T) {
	idx, err := Open("")
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.Add("p", 0, 1))
	require.NoError(t, idx.Add("p", 2, 5))
	require.NoError(t, idx.Add("q", 2, 5))

	p, err := idx.DocumentsWithToken("p")
	require.NoError(t, err)
	q, err := idx.DocumentsWithToken("q")
	require.NoError(t, err)
	and, err := idx.AND([]query.Node{p, q}, []bool{false, true})
	require.NoError(t, err)

	require.Equal(t, []query.Value{{Value: 1, Docid: 0}}, retrieveAll(t, and))
}

// TestPageSplitCorrectness covers spec.md §8 concrete scenario 4.
func TestPageSplitCorrectness(t *testing.T) {
	idx, err := Open("")
	require.NoError(t, err)
	defer idx.Close()

	const n = 300
	for i := uint64(0); i < n; i++ {
		require.NoError(t, idx.Add("t", i, i))
	}

	b := idx.h.Buckets[tokenhashBucket(t, idx, "t")]
	require.GreaterOrEqual(t, len(b.PageOffsets), 2, "expected the bucket to span multiple pages")

	node, err := idx.DocumentsWithToken("t")
	require.NoError(t, err)
	results := retrieveAll(t, node)
	require.Len(t, results, n)
	for i := uint64(0); i < n; i++ {
		require.Equal(t, query.Value{Value: int64(i), Docid: int64(i)}, results[i])
	}
}

func tokenhashBucket(t *testing.T, idx *Index, token string) uint64 {
	t.Helper()
	hash := idx.hashFn(token)
	return hash % idx.h.NumBuckets
}

// TestHashCollisionDisambiguation covers spec.md §8 concrete scenario 5,
// forcing tokens "a" and "b" to collide via an injected hash function.
func TestHashCollisionDisambiguation(t *testing.T) {
	collidingHash := func(token string) uint64 {
		if token == "a" || token == "b" {
			return 42
		}
		return 99
	}
	idx, err := Open("", withHashFn(collidingHash))
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.Add("a", 0, 5))
	require.NoError(t, idx.Add("b", 1, 5))

	a, err := idx.DocumentsWithToken("a")
	require.NoError(t, err)
	require.Equal(t, []query.Value{{Value: 5, Docid: 0}}, retrieveAll(t, a))

	b, err := idx.DocumentsWithToken("b")
	require.NoError(t, err)
	require.Equal(t, []query.Value{{Value: 5, Docid: 1}}, retrieveAll(t, b))
}

// TestResumeMidScan covers spec.md §8 concrete scenario 6.
func TestResumeMidScan(t *testing.T) {
	idx, err := Open("")
	require.NoError(t, err)
	defer idx.Close()

	const n = 500
	for i := uint64(0); i < n; i++ {
		require.NoError(t, idx.Add("t", i, i))
	}

	node, err := idx.DocumentsWithToken("t")
	require.NoError(t, err)
	first, state, done, err := query.Retrieve(node, 100)
	require.NoError(t, err)
	require.False(t, done)
	require.Len(t, first, 100)

	resumed, err := query.Decode(state)
	require.NoError(t, err)
	rest, _, done, err := query.Retrieve(resumed, n)
	require.NoError(t, err)
	require.True(t, done)
	require.Len(t, rest, n-100)

	for i, v := range append(first, rest...) {
		require.Equal(t, query.Value{Value: int64(i), Docid: int64(i)}, v)
	}
}

// TestPersistenceAcrossReopen covers spec.md §8 property P7.
func TestPersistenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	idx, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, idx.Add("foo", 0, 7))
	require.NoError(t, idx.Add("bar", 0, 7))
	require.NoError(t, idx.Add("foo", 1, 3))
	require.NoError(t, idx.Save())
	require.NoError(t, idx.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	foo, err := reopened.DocumentsWithToken("foo")
	require.NoError(t, err)
	require.Equal(t, []query.Value{
		{Value: 3, Docid: 1},
		{Value: 7, Docid: 0},
	}, retrieveAll(t, foo))
}

func TestAddRejectsOutOfRangeValues(t *testing.T) {
	idx, err := Open("")
	require.NoError(t, err)
	defer idx.Close()

	require.ErrorIs(t, idx.Add("t", 0, ^uint64(0)), ErrInvalidArgument)
	require.ErrorIs(t, idx.Add("t", 1<<56, 0), ErrInvalidArgument)
}

func TestAddRejectsEmptyToken(t *testing.T) {
	idx, err := Open("")
	require.NoError(t, err)
	defer idx.Close()

	require.ErrorIs(t, idx.Add("", 0, 0), ErrInvalidArgument)
}
