package noetic

// FitnessMetrics is one action's evaluated fitness, averaged over its
// rollout paths (§4.4). Alignment holds one entry per currently active
// dimension, in the same order as DimensionSystem.Dimensions().
type FitnessMetrics struct {
	Coherence   float64
	TaskSuccess float64
	Consistency float64
	Stability   float64
	RiskCat     float64
	Alignment   []float64
}

// Evaluate computes an action's fitness metrics from its rollout paths
// (§4.4 "Fitness metrics computed per action"). dims supplies the active
// dimensions' node clusters for the per-dimension alignment score; store
// resolves the path's vector indices back to node keys for cluster lookup.
func Evaluate(paths []Path, dims []*Dimension, store *Store) FitnessMetrics {
	var m FitnessMetrics
	n := len(paths)
	if n == 0 {
		m.Alignment = make([]float64, len(dims))
		return m
	}

	var sumCoherence, sumGoal, sumInfo, sumEnergy float64
	var sumContradictions, sumNormViolations int
	var catastrophes int

	for _, p := range paths {
		pathLen := float64(len(p.NodeIndices) - 1)
		if pathLen < 0 {
			pathLen = 0
		}
		sumCoherence += p.Probability * (1 - 0.1*pathLen)
		sumGoal += p.GoalProximity
		sumInfo += p.InfoGain
		sumEnergy += p.EnergyCost
		sumContradictions += p.Contradictions
		sumNormViolations += p.NormViolations
		if p.Catastrophe {
			catastrophes++
		}
	}

	nf := float64(n)
	m.Coherence = sumCoherence / nf
	m.TaskSuccess = (sumGoal/nf + sumInfo/nf) / 2
	m.Consistency = clamp(1-float64(sumContradictions+sumNormViolations)/nf, 0, 1)
	m.Stability = clamp(1-sumEnergy/nf, 0, 1)
	m.RiskCat = float64(catastrophes) / nf

	m.Alignment = make([]float64, len(dims))
	var totalProb float64
	for _, p := range paths {
		totalProb += p.Probability
	}
	if totalProb > 0 {
		for k, dim := range dims {
			var mass float64
			for _, p := range paths {
				if pathVisitsCluster(p, dim.Cluster, store) {
					mass += p.Probability
				}
			}
			m.Alignment[k] = mass / totalProb
		}
	}
	return m
}

// pathVisitsCluster reports whether any node on p's path belongs to cluster
// (a set of node keys).
func pathVisitsCluster(p Path, cluster map[uint64]bool, store *Store) bool {
	for _, idx := range p.NodeIndices {
		key, ok := store.KeyAt(idx)
		if !ok {
			continue
		}
		if cluster[key] {
			return true
		}
	}
	return false
}

// Utility computes an action's selection score: a weighted sum of
// per-dimension alignment minus a risk penalty, or — before any dimension
// exists — the overall fitness score (§4.4 "Action selection").
func Utility(m FitnessMetrics, gammas []float64, userFeedback float64) float64 {
	if len(gammas) == 0 {
		return overallFitness(m.Coherence, m.TaskSuccess, m.Consistency, m.Stability, userFeedback)
	}
	u := 0.0
	for k, g := range gammas {
		if k < len(m.Alignment) {
			u += g * m.Alignment[k]
		}
	}
	return u - 2*m.RiskCat
}
