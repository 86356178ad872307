package noetic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedDeterministic(t *testing.T) {
	a := Embed("hello world", 16)
	b := Embed("hello world", 16)
	assert.Equal(t, a, b)
}

func TestEmbedUnitNorm(t *testing.T) {
	v := Embed("some text", 32)
	var norm float64
	for _, x := range v {
		norm += x * x
	}
	assert.InDelta(t, 1.0, norm, 1e-6)
}

func TestCosineSimilaritySelf(t *testing.T) {
	v := Embed("x", 8)
	assert.InDelta(t, 1.0, CosineSimilarity(v, v), 1e-9)
}

func TestCosineSimilarityDegenerateInputs(t *testing.T) {
	assert.Equal(t, 0.0, CosineSimilarity([]float64{1, 2}, []float64{1}))
	assert.Equal(t, 0.0, CosineSimilarity(nil, nil))
	assert.Equal(t, 0.0, CosineSimilarity([]float64{0, 0}, []float64{1, 1}))
}

func TestStableNodeKeyConsistentWithInsert(t *testing.T) {
	s := NewStore(8)
	k1 := s.InsertOrFetchNode("Canonical Text")
	k2 := stableNodeKey(Canonicalize("canonical text"))
	require.Equal(t, k1, k2)
}
