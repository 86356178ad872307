package noetic

import (
	"math"

	"github.com/google/uuid"
)

// Dimension is an emergent dimension (§3): a node (and its cluster) whose
// activation correlates with above-baseline fitness, with a learned
// influence weight γ and a driver field it contributes to field equilibrium.
type Dimension struct {
	ID             string
	Primary        uint64
	Cluster        map[uint64]bool
	VarianceImpact float64
	Gamma          float64
	Stability      float64
	Age            int
	Field          []float64
}

// FitnessRecord is one entry in the fitness-history ring (§3).
type FitnessRecord struct {
	Coherence   float64
	Task        float64
	Consistency float64
	Stability   float64
	External    float64
	Overall     float64
}

// overallFitness computes the weighted-sum fitness score (§4.4 action selection
// fallback formula, also used as the per-cycle fitness signal).
func overallFitness(coherence, task, consistency, stability, external float64) float64 {
	return 0.3*coherence + 0.3*task + 0.2*consistency + 0.1*stability + 0.1*external
}

// DimensionSystem is the emergent dimensional system (component D, §4.3): it
// tracks variance-impact per node, promotes/demotes dimensions, synthesizes
// driver fields, compresses near-duplicates, and meta-tunes its own
// hyperparameters from recent fitness trends.
type DimensionSystem struct {
	store *Store

	dims  []*Dimension
	index map[uint64]int // primary node key -> index into dims

	activity       []float64
	varianceImpact []float64

	history    []FitnessRecord
	historyCap int
	baseline   float64

	promotionThreshold   float64
	demotionThreshold    float64
	gammaGrowthRate      float64
	gammaMax             float64
	learningRate         float64
	decayRate            float64
	compressionThreshold float64
}

// NewDimensionSystem builds an empty dimension system bound to store.
func NewDimensionSystem(store *Store, cfg Config) *DimensionSystem {
	return &DimensionSystem{
		store:                store,
		index:                make(map[uint64]int),
		historyCap:           cfg.FitnessHistoryCap,
		promotionThreshold:   cfg.PromotionThreshold,
		demotionThreshold:    cfg.DemotionThreshold,
		gammaGrowthRate:      cfg.GammaGrowthRate,
		gammaMax:             cfg.GammaMax,
		learningRate:         cfg.LearningRate,
		decayRate:            cfg.DimensionDecayRate,
		compressionThreshold: cfg.CompressionThreshold,
	}
}

// Resize extends the per-node activity/variance-impact vectors and every
// active dimension's driver field to length n (§8 invariant 1).
func (d *DimensionSystem) Resize(n int) {
	d.activity = growFloats(d.activity, n)
	d.varianceImpact = growFloats(d.varianceImpact, n)
	for _, dim := range d.dims {
		dim.Field = growFloats(dim.Field, n)
	}
}

// Observe snapshots the current field potential as this cycle's activity
// (§4.3 "observe").
func (d *DimensionSystem) Observe(c []float64) {
	copy(d.activity, c)
}

// EvaluateAndAttribute appends rec to the fitness-history ring, recomputes
// the baseline, and attributes variance-impact credit to every node
// proportional to its activity and the fitness delta (§4.3
// "evaluate_and_attribute").
func (d *DimensionSystem) EvaluateAndAttribute(rec FitnessRecord) {
	d.history = append(d.history, rec)
	if len(d.history) > d.historyCap {
		d.history = d.history[len(d.history)-d.historyCap:]
	}

	sum := 0.0
	for _, h := range d.history {
		sum += h.Overall
	}
	d.baseline = sum / float64(len(d.history))

	delta := rec.Overall - d.baseline
	for i := range d.varianceImpact {
		act := 0.0
		if i < len(d.activity) {
			act = d.activity[i]
		}
		v := d.decayRate * (d.varianceImpact[i] + d.learningRate*delta*act)
		d.varianceImpact[i] = clamp(v, -1, 2)
	}
}

// Promote creates a new dimension for any node whose variance-impact exceeds
// the promotion threshold and that isn't already a dimension's primary
// (§4.3 "promote").
func (d *DimensionSystem) Promote() {
	n := len(d.varianceImpact)
	for i := 0; i < n; i++ {
		if d.varianceImpact[i] <= d.promotionThreshold {
			continue
		}
		key, ok := d.store.KeyAt(i)
		if !ok {
			continue
		}
		if _, exists := d.index[key]; exists {
			continue
		}
		dim := &Dimension{
			ID:             uuid.NewString(),
			Primary:        key,
			Cluster:        map[uint64]bool{key: true},
			VarianceImpact: d.varianceImpact[i],
			Gamma:          0.1,
			Stability:      0.5,
			Field:          make([]float64, n),
		}
		d.dims = append(d.dims, dim)
		d.index[key] = len(d.dims) - 1
	}
}

// Demote refreshes each dimension's variance-impact from its primary node,
// grows γ for dimensions that are still helping, and removes any dimension
// whose variance-impact has fallen to or below the demotion threshold
// (§4.3 "demote", §8 invariant 6).
func (d *DimensionSystem) Demote() {
	survivors := d.dims[:0]
	for _, dim := range d.dims {
		dim.Age++
		if idx, ok := d.store.Index(dim.Primary); ok && idx < len(d.varianceImpact) {
			dim.VarianceImpact = d.varianceImpact[idx]
		}
		if dim.VarianceImpact > 0.5 {
			dim.Gamma = clamp(dim.Gamma+d.gammaGrowthRate, 0, d.gammaMax)
		}
		if dim.VarianceImpact <= d.demotionThreshold {
			continue // dropped along with its trace (engine resizes traces after)
		}
		survivors = append(survivors, dim)
	}
	d.dims = survivors
	d.reindex()
}

func (d *DimensionSystem) reindex() {
	d.index = make(map[uint64]int, len(d.dims))
	for i, dim := range d.dims {
		d.index[dim.Primary] = i
	}
}

// GenerateFields builds each dimension's driver field: the primary node gets
// weight 1, each outgoing destination gets 0.5·edge_weight, and the result is
// normalized by its max absolute value (§4.3 "generate_fields").
func (d *DimensionSystem) GenerateFields() ([]float64, [][]float64) {
	n := len(d.varianceImpact)
	gammas := make([]float64, len(d.dims))
	fields := make([][]float64, len(d.dims))

	for i, dim := range d.dims {
		field := make([]float64, n)
		if pi, ok := d.store.Index(dim.Primary); ok && pi < n {
			field[pi] = 1
		}
		for _, e := range d.store.Outgoing(dim.Primary) {
			if di, ok := d.store.Index(e.Dest); ok && di < n {
				field[di] += 0.5 * e.CoreWeight
			}
		}
		maxAbs := 0.0
		for _, v := range field {
			if math.Abs(v) > maxAbs {
				maxAbs = math.Abs(v)
			}
		}
		if maxAbs > 0 {
			for j := range field {
				field[j] /= maxAbs
			}
		}
		dim.Field = field
		gammas[i] = dim.Gamma
		fields[i] = field
	}
	return gammas, fields
}

// Compress merges dimensions whose driver fields are near-duplicates: for
// every pair with cosine similarity above the compression threshold, the
// weaker (lower γ) is folded into the stronger (§4.3 "compress", §8
// invariant 7).
func (d *DimensionSystem) Compress() {
	merged := make([]bool, len(d.dims))
	for i := 0; i < len(d.dims); i++ {
		if merged[i] {
			continue
		}
		for j := i + 1; j < len(d.dims); j++ {
			if merged[j] {
				continue
			}
			sim := CosineSimilarity(d.dims[i].Field, d.dims[j].Field)
			if sim <= d.compressionThreshold {
				continue
			}
			strong, weak := d.dims[i], d.dims[j]
			if weak.Gamma > strong.Gamma {
				strong, weak = weak, strong
			}
			for k := range weak.Cluster {
				strong.Cluster[k] = true
			}
			if weak.Gamma > strong.Gamma {
				strong.Gamma = weak.Gamma
			}
			merged[j] = true
		}
	}

	survivors := d.dims[:0]
	for i, dim := range d.dims {
		if !merged[i] {
			survivors = append(survivors, dim)
		}
	}
	d.dims = survivors
	d.reindex()
}

// weakFraction returns the fraction of active dimensions with variance
// impact below 0.3, used by meta-learning's extra-compression trigger.
func (d *DimensionSystem) weakFraction() float64 {
	if len(d.dims) == 0 {
		return 0
	}
	weak := 0
	for _, dim := range d.dims {
		if dim.VarianceImpact < 0.3 {
			weak++
		}
	}
	return float64(weak) / float64(len(d.dims))
}

// MetaLearn nudges promotion_threshold, learning_rate, and gamma_growth_rate
// from recent fitness trends, and triggers an extra compression pass when
// most active dimensions are weak (§4.3 "Meta-learning").
func (d *DimensionSystem) MetaLearn() {
	if len(d.history) < 10 {
		return
	}

	half := len(d.history) / 2
	early := d.history[:half]
	recent := d.history[half:]

	mean := func(rs []FitnessRecord) float64 {
		s := 0.0
		for _, r := range rs {
			s += r.Overall
		}
		return s / float64(len(rs))
	}
	improvement := mean(recent) - mean(early)

	switch {
	case improvement > 0.1:
		d.promotionThreshold = math.Min(d.promotionThreshold*1.02, 0.8)
	case improvement < -0.1:
		d.promotionThreshold = math.Max(d.promotionThreshold*0.98, 0.2)
	}

	m := mean(recent)
	variance := 0.0
	for _, r := range recent {
		variance += (r.Overall - m) * (r.Overall - m)
	}
	variance /= float64(len(recent))

	switch {
	case variance > 0.2:
		d.learningRate = math.Max(d.learningRate*0.99, 0.001)
	case variance < 0.05:
		d.learningRate = math.Min(d.learningRate*1.01, 0.1)
	}

	if len(d.dims) > 0 {
		avgImpact := 0.0
		for _, dim := range d.dims {
			avgImpact += dim.VarianceImpact
		}
		avgImpact /= float64(len(d.dims))
		switch {
		case avgImpact > 0.7:
			d.gammaGrowthRate = math.Min(d.gammaGrowthRate*1.05, 0.2)
		case avgImpact < 0.3:
			d.gammaGrowthRate = math.Max(d.gammaGrowthRate*0.95, 0.01)
		}
	}

	if len(d.dims) > 5 && d.weakFraction() > 0.5 {
		d.Compress()
	}
}

// Dimensions returns the active dimension list (read-only use expected).
func (d *DimensionSystem) Dimensions() []*Dimension { return d.dims }

// Count returns the number of active dimensions.
func (d *DimensionSystem) Count() int { return len(d.dims) }

// Baseline returns the current running fitness baseline.
func (d *DimensionSystem) Baseline() float64 { return d.baseline }

// PromotionThreshold returns the current (meta-learned) promotion threshold.
func (d *DimensionSystem) PromotionThreshold() float64 { return d.promotionThreshold }

// LearningRate returns the current (meta-learned) learning rate.
func (d *DimensionSystem) LearningRate() float64 { return d.learningRate }

// VarianceImpactAt returns the per-node variance impact at vector index i.
func (d *DimensionSystem) VarianceImpactAt(i int) float64 {
	if i < 0 || i >= len(d.varianceImpact) {
		return 0
	}
	return d.varianceImpact[i]
}
