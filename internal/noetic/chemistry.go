package noetic

import (
	"math"
	"math/rand"
)

// ChemistryEngine is the connection-chemistry subsystem (component C, §4.2):
// it lets each edge behave as a living continuous object, updates every
// edge's parameters each cycle, and periodically prunes/fuses/splits edges.
// No fixed edge-type table drives this behavior — relation tags are never
// read here (§9).
type ChemistryEngine struct {
	store *Store
	cfg   Config
	rng   *rand.Rand

	statsHistory []ChemistryStats // recent Stats() snapshots, feeds MetaLearn
}

// statsHistoryCap bounds ChemistryEngine's own trend window, mirroring
// DimensionSystem's fitness-history ring (§3) at a shorter horizon since
// chemistry summary stats move faster than fitness.
const statsHistoryCap = 20

// NewChemistryEngine binds a chemistry engine to store. seed controls the
// split mutation RNG (spec.md §9 leaves the mutation RNG source unspecified;
// this module exposes a seed for test reproducibility, per the Open Question).
func NewChemistryEngine(store *Store, cfg Config, seed int64) *ChemistryEngine {
	return &ChemistryEngine{store: store, cfg: cfg, rng: rand.New(rand.NewSource(seed))}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Update applies the per-edge chemistry update law for one reasoning cycle
// (§4.2). a is the query-relevance vector, before is C sampled prior to the
// equilibrium solve, field.C is C sampled after — their difference is ΔC.
// fitness is the global fitness signal (positive/non-positive split on
// stability).
func (c *ChemistryEngine) Update(field *Field, a, before []float64, fitness float64) {
	at := func(v []float64, i int) float64 {
		if i < 0 || i >= len(v) {
			return 0
		}
		return v[i]
	}

	for _, e := range c.store.AllEdges() {
		ai, ok1 := c.store.Index(e.Source)
		bi, ok2 := c.store.Index(e.Dest)
		if !ok1 || !ok2 {
			continue // missing-key: local no-op
		}

		aa := at(a, ai)
		ab := at(a, bi)
		dCa := at(field.C, ai) - at(before, ai)
		dCb := at(field.C, bi) - at(before, bi)

		h := aa * ab
		e1 := math.Abs(dCa*dCb - e.Chem.LastActivity)

		e.Chem.Conductivity = clamp(
			e.Chem.Conductivity+e.Chem.Plasticity*(h-c.cfg.Kappa*e.Chem.Conductivity),
			c.cfg.ConductivityFloor, 1)

		if e1 > 0.5 {
			e.Chem.Plasticity = clamp(e.Chem.Plasticity*1.05, 0.001, 0.1)
		} else {
			e.Chem.Plasticity = clamp(e.Chem.Plasticity*0.99, 0.001, 0.1)
		}

		if fitness > 0 {
			e.Chem.Stability = clamp(e.Chem.Stability+c.cfg.ReinforcementGain, 0.1, 1)
		} else {
			e.Chem.Stability = clamp(e.Chem.Stability*c.cfg.StabilityDecay, 0.1, 1)
		}

		active := 0.0
		if aa > 0.1 && ab > 0.1 {
			active = 1.0
		}
		e.Chem.Affinity = clamp(e.Chem.Affinity+c.cfg.AffinityGrowth*(active-e.Chem.Affinity), 0, 1)

		e.Chem.EnergyPotential = clamp(e.Chem.EnergyPotential+e1-c.cfg.Damping*e.Chem.EnergyPotential, -1, 1)

		if math.Abs(aa-ab) > 0.2 {
			e.Chem.DirectionalBias = clamp(e.Chem.DirectionalBias+0.01*(aa-ab), -1, 1)
		}

		e.Chem.Age++
		if e.Chem.Age > c.cfg.AgeErosionThreshold {
			rate := float64(e.Chem.ActivationCount) / float64(e.Chem.Age)
			if rate < 0.01 {
				e.Chem.Conductivity = clamp(e.Chem.Conductivity*(1-c.cfg.AgeDecayRate), c.cfg.ConductivityFloor, 1)
			}
		}

		if h > 0 {
			e.Chem.ActivationCount++
		}
		e.Chem.CumulativeFlow += math.Abs(dCa - dCb)
		e.Chem.LastActivity = dCa * dCb
		e.Chem.PredictionAccuracy = clamp(1-e1, 0, 1)
		e.Chem.CoherenceContribution = clamp(fitness, -1, 1)
	}
}

// isPruneCandidate reports whether e satisfies the prune predicate of §4.2:
// conductivity below floor with sufficient age, or aged out with zero
// cycle-activations.
func (c *ChemistryEngine) isPruneCandidate(e *Edge) bool {
	if e.Chem.Conductivity < c.cfg.ConductivityFloor && e.Chem.Age > c.cfg.PruneAgeThreshold {
		return true
	}
	if e.Chem.Age > c.cfg.PruneZeroActivityAge && e.Chem.ActivationCount == 0 {
		return true
	}
	return false
}

// Maintain runs prune, fuse, and split — the periodic edge maintenance from
// §4.2, invoked by the reasoning loop every MaintenanceEveryCycles cycles.
func (c *ChemistryEngine) Maintain() {
	c.prune()
	c.fuse()
	c.split()
}

func (c *ChemistryEngine) prune() {
	for k, e := range c.store.edgesSnapshot() {
		if c.isPruneCandidate(e) {
			c.store.removeEdge(k)
		}
	}
}

// chemParams packs the six continuous parameters for L1-distance and
// weighted-mean computation during fusion.
func chemParams(ch Chemistry) [6]float64 {
	return [6]float64{ch.Conductivity, ch.Affinity, ch.Plasticity, ch.Stability, ch.DirectionalBias, ch.EnergyPotential}
}

func l1Distance(a, b [6]float64) float64 {
	d := 0.0
	for i := range a {
		d += math.Abs(a[i] - b[i])
	}
	return d
}

// fuse merges edges between the same (source, dest) pair whose chemistry is
// nearly identical (§4.2 "Fuse"). Same-relation duplicates never arise here
// because UpsertEdge collapses them at insertion (the Open Question in
// spec.md §9 is resolved that way, documented in DESIGN.md); fuse instead
// consolidates near-duplicate edges that differ only in relation tag.
func (c *ChemistryEngine) fuse() {
	threshold := 5 * (1 - c.cfg.FusionSimilarity)
	byPair := make(map[[2]uint64][]edgeKey)
	for k := range c.store.edgesSnapshot() {
		pair := [2]uint64{k.Source, k.Dest}
		byPair[pair] = append(byPair[pair], k)
	}

	for _, keys := range byPair {
		if len(keys) < 2 {
			continue
		}
		merged := make(map[edgeKey]bool)
		for i := 0; i < len(keys); i++ {
			if merged[keys[i]] {
				continue
			}
			ei, ok := c.store.edge(keys[i])
			if !ok {
				continue
			}
			for j := i + 1; j < len(keys); j++ {
				if merged[keys[j]] {
					continue
				}
				ej, ok := c.store.edge(keys[j])
				if !ok {
					continue
				}
				if l1Distance(chemParams(ei.Chem), chemParams(ej.Chem)) >= threshold {
					continue
				}
				c.fuseInto(ei, ej)
				merged[keys[j]] = true
				c.store.removeEdge(keys[j])
			}
		}
	}
}

// fuseInto merges ej's state into ei: weighted mean of continuous
// parameters, summed activation counts, younger age kept.
func (c *ChemistryEngine) fuseInto(ei, ej *Edge) {
	wi := float64(ei.Chem.ActivationCount + 1)
	wj := float64(ej.Chem.ActivationCount + 1)
	total := wi + wj

	mean := func(a, b float64) float64 { return (a*wi + b*wj) / total }

	ei.Chem.Conductivity = mean(ei.Chem.Conductivity, ej.Chem.Conductivity)
	ei.Chem.Affinity = mean(ei.Chem.Affinity, ej.Chem.Affinity)
	ei.Chem.Plasticity = mean(ei.Chem.Plasticity, ej.Chem.Plasticity)
	ei.Chem.Stability = mean(ei.Chem.Stability, ej.Chem.Stability)
	ei.Chem.DirectionalBias = mean(ei.Chem.DirectionalBias, ej.Chem.DirectionalBias)
	ei.Chem.EnergyPotential = mean(ei.Chem.EnergyPotential, ej.Chem.EnergyPotential)
	ei.Chem.ActivationCount += ej.Chem.ActivationCount
	if ej.Chem.Age < ei.Chem.Age {
		ei.Chem.Age = ej.Chem.Age
	}
	ei.Count += ej.Count
	if ej.CoreWeight > ei.CoreWeight {
		ei.CoreWeight = ej.CoreWeight
	}
}

// split duplicates high-volatility, high-energy, well-exercised edges with a
// small random perturbation of their continuous parameters (§4.2 "Split").
// The variant needs a distinct (source, dest, relation) identity; split picks
// the first unused relation tag for the pair and skips the split if all six
// are already occupied (a documented resolution of the "no explicit variant
// identity" gap left by the spec).
func (c *ChemistryEngine) split() {
	for k, e := range c.store.edgesSnapshot() {
		if e.Chem.Plasticity <= c.cfg.FissionVolatility {
			continue
		}
		if math.Abs(e.Chem.EnergyPotential) <= 0.7 {
			continue
		}
		if e.Chem.ActivationCount <= c.cfg.SplitMinActivations {
			continue
		}

		variantRelation, ok := c.freeRelation(k.Source, k.Dest)
		if !ok {
			continue
		}

		variant := &Edge{
			Source:        k.Source,
			Dest:          k.Dest,
			Relation:      variantRelation,
			CoreWeight:    e.CoreWeight,
			ContextWeight: e.ContextWeight,
			Chem: Chemistry{
				Conductivity:    c.perturb(e.Chem.Conductivity, 0, 1),
				Affinity:        c.perturb(e.Chem.Affinity, 0, 1),
				Plasticity:      c.perturb(e.Chem.Plasticity, 0.001, 0.1),
				Stability:       c.perturb(e.Chem.Stability, 0.1, 1),
				DirectionalBias: c.perturb(e.Chem.DirectionalBias, -1, 1),
				EnergyPotential: c.perturb(e.Chem.EnergyPotential, -1, 1),
			},
		}
		c.store.addEdge(variant)
	}
}

func (c *ChemistryEngine) freeRelation(src, dst uint64) (Relation, bool) {
	for _, r := range allRelations {
		if _, ok := c.store.Find(src, dst, r); !ok {
			return r, true
		}
	}
	return "", false
}

// perturb mutates v by up to ~0.1 of [lo, hi]'s range, clamped back in range.
func (c *ChemistryEngine) perturb(v, lo, hi float64) float64 {
	mag := 0.1 * (hi - lo)
	delta := (c.rng.Float64()*2 - 1) * mag
	return clamp(v+delta, lo, hi)
}

// ChemistryStats summarizes the chemistry layer for read-only observers
// (§4.2 "stats()", §5 "read-only snapshot accessors").
type ChemistryStats struct {
	EdgeCount        int
	MeanConductivity float64
	MeanAffinity     float64
	MeanPlasticity   float64
	MeanStability    float64
	DirectionalCount int
	StableCount      int
	PlasticCount     int
}

// Stats computes the chemistry summary over all edges.
func (c *ChemistryEngine) Stats() ChemistryStats {
	edges := c.store.AllEdges()
	var st ChemistryStats
	st.EdgeCount = len(edges)
	if st.EdgeCount == 0 {
		return st
	}
	for _, e := range edges {
		st.MeanConductivity += e.Chem.Conductivity
		st.MeanAffinity += e.Chem.Affinity
		st.MeanPlasticity += e.Chem.Plasticity
		st.MeanStability += e.Chem.Stability
		if math.Abs(e.Chem.DirectionalBias) > 0.3 {
			st.DirectionalCount++
		}
		if e.Chem.Stability > 0.7 {
			st.StableCount++
		}
		if e.Chem.Plasticity > 0.05 {
			st.PlasticCount++
		}
	}
	n := float64(st.EdgeCount)
	st.MeanConductivity /= n
	st.MeanAffinity /= n
	st.MeanPlasticity /= n
	st.MeanStability /= n
	return st
}

// MetaLearn nudges the chemistry constants (Kappa, ReinforcementGain) from
// recent Stats() trends, the chemistry half of §4.6 step 15's "meta-learning
// for D and for C's constants", run on the same MetaLearnEveryCycles cadence
// as DimensionSystem.MetaLearn.
func (c *ChemistryEngine) MetaLearn() {
	c.statsHistory = append(c.statsHistory, c.Stats())
	if len(c.statsHistory) > statsHistoryCap {
		c.statsHistory = c.statsHistory[len(c.statsHistory)-statsHistoryCap:]
	}
	if len(c.statsHistory) < 10 {
		return
	}

	half := len(c.statsHistory) / 2
	early := c.statsHistory[:half]
	recent := c.statsHistory[half:]

	meanStability := func(ss []ChemistryStats) float64 {
		s := 0.0
		for _, st := range ss {
			s += st.MeanStability
		}
		return s / float64(len(ss))
	}
	improvement := meanStability(recent) - meanStability(early)

	// Rising stability: reinforcement is working, lean into it a little.
	// Falling stability: back off so decay dominates and volatile edges settle.
	switch {
	case improvement > 0.05:
		c.cfg.ReinforcementGain = clamp(c.cfg.ReinforcementGain*1.02, 0.01, 0.2)
	case improvement < -0.05:
		c.cfg.ReinforcementGain = clamp(c.cfg.ReinforcementGain*0.98, 0.01, 0.2)
	}

	// Conductivity drifting toward saturation means Kappa's self-limiting
	// term is too weak; drifting toward the floor means it is too strong.
	mc := 0.0
	for _, st := range recent {
		mc += st.MeanConductivity
	}
	mc /= float64(len(recent))
	switch {
	case mc > 0.7:
		c.cfg.Kappa = clamp(c.cfg.Kappa*1.02, 0.1, 1.0)
	case mc < 0.3:
		c.cfg.Kappa = clamp(c.cfg.Kappa*0.98, 0.1, 1.0)
	}
}
