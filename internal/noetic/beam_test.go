package noetic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitFallbackOnUnknownStart(t *testing.T) {
	s := NewStore(8)
	b := NewBeamEmitter(DefaultConfig())
	out := b.Emit(s, 0, "hello", ModeBalanced)
	assert.Equal(t, "I don't know yet.", out)
}

func TestEmitFallbackOnDeadEnd(t *testing.T) {
	s := NewStore(8)
	s.InsertOrFetchNode("alone")
	b := NewBeamEmitter(DefaultConfig())
	out := b.Emit(s, 0, "alone", ModeBalanced)
	assert.Equal(t, "I don't know yet.", out)
}

func TestEmitProducesCapitalizedTerminatedPhrase(t *testing.T) {
	s, _ := buildLinearGraph(t)
	for _, e := range s.AllEdges() {
		e.Count = 10
		e.Chem.Conductivity = 0.8
	}
	cfg := DefaultConfig()
	b := NewBeamEmitter(cfg)
	out := b.Emit(s, 0, "a", ModeBalanced)

	require.NotEmpty(t, out)
	assert.True(t, endsWithTerminal(out))
	first := rune(out[0])
	assert.True(t, first >= 'A' && first <= 'Z', "phrase must start capitalized")
}

func TestRepetitionPenaltyDecreasesWithRepeats(t *testing.T) {
	p0 := repetitionPenalty([]string{}, "x", 6, 0.8)
	p1 := repetitionPenalty([]string{"x"}, "x", 6, 0.8)
	p2 := repetitionPenalty([]string{"x", "x"}, "x", 6, 0.8)
	assert.Greater(t, p0, p1)
	assert.Greater(t, p1, p2)
}

func TestBigramSeenTwice(t *testing.T) {
	tokens := []string{"a", "b", "a", "b", "a"}
	assert.True(t, bigramSeenTwice(tokens, "b", 8))
	assert.False(t, bigramSeenTwice([]string{"a", "b"}, "b", 8))
}

func TestRepairGrammarCollapsesDeterminers(t *testing.T) {
	out := repairGrammar([]string{"the", "the", "cat"})
	assert.Equal(t, "The cat.", out)
}
