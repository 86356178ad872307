package noetic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChemistryUpdateClampsParameters(t *testing.T) {
	s, keys := buildLinearGraph(t)
	cfg := DefaultConfig()
	ce := NewChemistryEngine(s, cfg, 7)
	f := NewField(s)
	f.Resize(3)

	a := []float64{1, 1, 0}
	before := append([]float64(nil), f.C...)
	f.C[0], f.C[1] = 0.8, 0.6

	ce.Update(f, a, before, 0.5)

	e, ok := s.Find(keys[0], keys[1], RelationExact)
	require.True(t, ok)
	assert.GreaterOrEqual(t, e.Chem.Conductivity, cfg.ConductivityFloor)
	assert.LessOrEqual(t, e.Chem.Conductivity, 1.0)
	assert.GreaterOrEqual(t, e.Chem.Affinity, 0.0)
	assert.LessOrEqual(t, e.Chem.Affinity, 1.0)
	assert.GreaterOrEqual(t, e.Chem.Stability, 0.1)
	assert.LessOrEqual(t, e.Chem.Stability, 1.0)
}

func TestPruneRemovesWeakAgedEdges(t *testing.T) {
	s, keys := buildLinearGraph(t)
	cfg := DefaultConfig()
	ce := NewChemistryEngine(s, cfg, 1)

	e, ok := s.Find(keys[0], keys[1], RelationExact)
	require.True(t, ok)
	e.Chem.Conductivity = cfg.ConductivityFloor - 0.001
	e.Chem.Age = cfg.PruneAgeThreshold + 1

	ce.Maintain()

	_, ok = s.Find(keys[0], keys[1], RelationExact)
	assert.False(t, ok, "a below-floor, sufficiently-aged edge must be pruned")
}

func TestFuseMergesNearDuplicateEdges(t *testing.T) {
	s := NewStore(8)
	a := s.InsertOrFetchNode("x")
	b := s.InsertOrFetchNode("y")
	s.UpsertEdge(a, b, RelationExact)
	s.UpsertEdge(a, b, RelationGeneralization)

	cfg := DefaultConfig()
	cfg.FusionSimilarity = 0.0 // force any distance under threshold to fuse
	ce := NewChemistryEngine(s, cfg, 3)
	ce.Maintain()

	count := 0
	for range s.AllEdges() {
		count++
	}
	assert.Equal(t, 1, count, "near-identical chemistry on the same pair should fuse to one edge")
}

func TestSplitSkipsWhenAllRelationsOccupied(t *testing.T) {
	s := NewStore(8)
	a := s.InsertOrFetchNode("p")
	b := s.InsertOrFetchNode("q")
	for _, r := range allRelations {
		e := s.UpsertEdge(a, b, r)
		e.Chem.Plasticity = 0.2
		e.Chem.EnergyPotential = 0.9
		e.Chem.ActivationCount = 100
	}

	cfg := DefaultConfig()
	cfg.FissionVolatility = 0.01
	cfg.SplitMinActivations = 10
	cfg.FusionSimilarity = 2.0 // disable fuse so only split's occupied-relation-skip is exercised
	ce := NewChemistryEngine(s, cfg, 9)
	ce.Maintain()

	assert.Len(t, s.AllEdges(), len(allRelations), "split must skip when every relation slot for the pair is taken")
}

func TestChemistryStatsEmptyGraph(t *testing.T) {
	s := NewStore(8)
	ce := NewChemistryEngine(s, DefaultConfig(), 1)
	st := ce.Stats()
	assert.Equal(t, 0, st.EdgeCount)
}

// TestChemistryMetaLearnAdjustsReinforcementGain drives a rising mean-stability
// trend across enough MetaLearn calls to fill the history window, and checks
// ReinforcementGain moved up in response (§4.6 step 15's chemistry half).
func TestChemistryMetaLearnAdjustsReinforcementGain(t *testing.T) {
	s, keys := buildLinearGraph(t)
	cfg := DefaultConfig()
	ce := NewChemistryEngine(s, cfg, 5)

	e, ok := s.Find(keys[0], keys[1], RelationExact)
	require.True(t, ok)

	before := ce.cfg.ReinforcementGain
	for i := 0; i < statsHistoryCap; i++ {
		e.Chem.Stability = 0.1 + 0.8*float64(i)/float64(statsHistoryCap)
		ce.MetaLearn()
	}
	assert.Greater(t, ce.cfg.ReinforcementGain, before)
}
