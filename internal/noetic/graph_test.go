package noetic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertOrFetchNodeIdempotent(t *testing.T) {
	s := NewStore(8)
	k1 := s.InsertOrFetchNode("Cats")
	k2 := s.InsertOrFetchNode("cats  ")
	assert.Equal(t, k1, k2, "canonicalization should make these the same node")

	n, ok := s.Node(k1)
	require.True(t, ok)
	assert.Equal(t, "cats", n.Text)
	assert.Equal(t, 2, n.Frequency)
}

func TestUpsertEdgeMonotonicWeight(t *testing.T) {
	s := NewStore(8)
	a := s.InsertOrFetchNode("cat")
	b := s.InsertOrFetchNode("mammal")

	var last float64
	for i := 0; i < 5; i++ {
		e := s.UpsertEdge(a, b, RelationIsA)
		require.NotNil(t, e)
		assert.GreaterOrEqual(t, e.CoreWeight, last)
		last = e.CoreWeight
	}

	edges, ok := s.Find(a, b, RelationIsA)
	require.True(t, ok)
	assert.Equal(t, 5, edges.Count, "repeated upserts on the same triple must collapse to one edge")
}

func TestUpsertEdgeMissingNodeIsNoop(t *testing.T) {
	s := NewStore(8)
	a := s.InsertOrFetchNode("known")
	e := s.UpsertEdge(a, 999999, RelationExact)
	assert.Nil(t, e)
}

func TestIndexKeyAtRoundTrip(t *testing.T) {
	s := NewStore(8)
	keys := make([]uint64, 0, 3)
	for _, w := range []string{"alpha", "beta", "gamma"} {
		keys = append(keys, s.InsertOrFetchNode(w))
	}
	for i, k := range keys {
		idx, ok := s.Index(k)
		require.True(t, ok)
		assert.Equal(t, i, idx)
		back, ok := s.KeyAt(idx)
		require.True(t, ok)
		assert.Equal(t, k, back)
	}
	_, ok := s.KeyAt(len(keys))
	assert.False(t, ok, "out-of-range index must report false, not panic")
}

func TestOutgoingIncomingOnMissingNode(t *testing.T) {
	s := NewStore(8)
	assert.Empty(t, s.Outgoing(1234))
	assert.Empty(t, s.Incoming(1234))
}
