package noetic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateEmptyPaths(t *testing.T) {
	s := NewStore(8)
	m := Evaluate(nil, nil, s)
	assert.Equal(t, 0.0, m.Coherence)
	assert.Empty(t, m.Alignment)
}

func TestEvaluateConsistencyPenalizesContradictions(t *testing.T) {
	s := NewStore(8)
	clean := Path{NodeIndices: []int{0, 1, 2}, Probability: 1}
	contradictory := Path{NodeIndices: []int{0, 1, 0}, Probability: 1, Contradictions: 1}

	mClean := Evaluate([]Path{clean}, nil, s)
	mBad := Evaluate([]Path{contradictory}, nil, s)
	assert.Greater(t, mClean.Consistency, mBad.Consistency)
}

func TestEvaluateAlignmentTracksCluster(t *testing.T) {
	s, keys := buildLinearGraph(t)
	dim := &Dimension{Cluster: map[uint64]bool{keys[2]: true}}

	inCluster := Path{NodeIndices: []int{0, 1, 2}, Probability: 1}
	outOfCluster := Path{NodeIndices: []int{0, 1}, Probability: 1}

	m := Evaluate([]Path{inCluster, outOfCluster}, []*Dimension{dim}, s)
	assert.InDelta(t, 0.5, m.Alignment[0], 1e-9)
}

func TestUtilityFallsBackToOverallFitnessWithoutDimensions(t *testing.T) {
	m := FitnessMetrics{Coherence: 1, TaskSuccess: 1, Consistency: 1, Stability: 1}
	u := Utility(m, nil, 0)
	assert.InDelta(t, 0.9, u, 1e-9)
}

func TestUtilityPenalizesRisk(t *testing.T) {
	m := FitnessMetrics{Alignment: []float64{0.5}, RiskCat: 0.5}
	u := Utility(m, []float64{1}, 0)
	assert.InDelta(t, -0.5, u, 1e-9)
}
