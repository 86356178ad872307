package noetic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromoteCreatesDimensionAboveThreshold(t *testing.T) {
	s, _ := buildLinearGraph(t)
	cfg := DefaultConfig()
	d := NewDimensionSystem(s, cfg)
	d.Resize(3)

	d.varianceImpact[0] = cfg.PromotionThreshold + 0.1
	d.Promote()

	require.Equal(t, 1, d.Count())
	key, ok := s.KeyAt(0)
	require.True(t, ok)
	assert.Equal(t, key, d.Dimensions()[0].Primary)
}

func TestPromoteSkipsExistingPrimary(t *testing.T) {
	s, _ := buildLinearGraph(t)
	cfg := DefaultConfig()
	d := NewDimensionSystem(s, cfg)
	d.Resize(3)
	d.varianceImpact[0] = cfg.PromotionThreshold + 0.1
	d.Promote()
	d.Promote()
	assert.Equal(t, 1, d.Count(), "promoting twice for the same primary must not duplicate the dimension")
}

func TestDemoteRemovesWeakDimension(t *testing.T) {
	s, _ := buildLinearGraph(t)
	cfg := DefaultConfig()
	d := NewDimensionSystem(s, cfg)
	d.Resize(3)
	d.varianceImpact[0] = cfg.PromotionThreshold + 0.1
	d.Promote()
	require.Equal(t, 1, d.Count())

	d.varianceImpact[0] = cfg.DemotionThreshold - 0.01
	d.Demote()
	assert.Equal(t, 0, d.Count(), "a dimension at or below the demotion threshold must be removed")
}

func TestEvaluateAndAttributeUpdatesBaseline(t *testing.T) {
	s, _ := buildLinearGraph(t)
	d := NewDimensionSystem(s, DefaultConfig())
	d.Resize(3)
	d.Observe([]float64{0.5, 0.2, 0.1})

	d.EvaluateAndAttribute(FitnessRecord{Overall: 0.8})
	assert.InDelta(t, 0.8, d.Baseline(), 1e-9)

	d.EvaluateAndAttribute(FitnessRecord{Overall: 0.4})
	assert.InDelta(t, 0.6, d.Baseline(), 1e-9)
}

func TestCompressMergesSimilarDrivers(t *testing.T) {
	s, _ := buildLinearGraph(t)
	cfg := DefaultConfig()
	d := NewDimensionSystem(s, cfg)
	d.Resize(3)

	d.dims = []*Dimension{
		{ID: "a", Primary: 1, Cluster: map[uint64]bool{1: true}, Gamma: 0.2, Field: []float64{1, 0, 0}},
		{ID: "b", Primary: 2, Cluster: map[uint64]bool{2: true}, Gamma: 0.5, Field: []float64{1, 0, 0}},
	}
	d.compressionThreshold = 0.5
	d.Compress()

	require.Equal(t, 1, d.Count())
	assert.Equal(t, 0.5, d.Dimensions()[0].Gamma, "the higher-gamma dimension should survive compression")
}

func TestGenerateFieldsNormalized(t *testing.T) {
	s, keys := buildLinearGraph(t)
	cfg := DefaultConfig()
	d := NewDimensionSystem(s, cfg)
	d.Resize(3)
	d.dims = []*Dimension{{ID: "x", Primary: keys[0], Cluster: map[uint64]bool{keys[0]: true}, Gamma: 0.3}}

	gammas, fields := d.GenerateFields()
	require.Len(t, gammas, 1)
	require.Len(t, fields, 1)
	assert.Equal(t, 1.0, fields[0][0])
	for _, v := range fields[0] {
		assert.LessOrEqual(t, v, 1.0)
		assert.GreaterOrEqual(t, v, -1.0)
	}
}
