package noetic

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Metrics is the read-only snapshot accessor payload (§5, §6 "get_metrics").
type Metrics struct {
	NodeCount          int
	EdgeCount          int
	ActiveDimensions   int
	PromotionThreshold float64
	LearningRate       float64
	BaselineFitness    float64
	Cycle              int
	Degraded           bool
	Chemistry          ChemistryStats
}

// Engine owns every subsystem (G, F, C, D, T, R, B) and runs the reasoning
// loop L (§4.6). It holds no package-level state; every call is against its
// own store, field, and config (§9 "engine as an owning container").
type Engine struct {
	mu sync.Mutex // serializes Answer/Learn/Metrics/SetEvolutionParam (§5 single-threaded per call)

	cfg Config
	log *zap.SugaredLogger

	store   *Store
	field   *Field
	chem    *ChemistryEngine
	dims    *DimensionSystem
	traces  *Traces
	rollout *RolloutEngine
	beam    *BeamEmitter

	cycle        int
	userFeedback float64
	degraded     bool
}

// New builds an Engine from cfg. seed controls every subsystem RNG (split
// mutation and rollout sampling), exposed for reproducible tests.
func New(cfg Config, log *zap.SugaredLogger, seed int64) *Engine {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	store := NewStore(cfg.EmbeddingDim)
	return &Engine{
		cfg:     cfg,
		log:     log,
		store:   store,
		field:   NewField(store),
		chem:    NewChemistryEngine(store, cfg, seed),
		dims:    NewDimensionSystem(store, cfg),
		traces:  NewTraces(),
		rollout: NewRolloutEngine(cfg, seed+1),
		beam:    NewBeamEmitter(cfg),
	}
}

// Reset clears the degraded flag and reinitializes every subsystem, per the
// §7 invariant-violation recovery path ("the engine marks itself degraded
// until the host performs a full reset").
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	store := NewStore(e.cfg.EmbeddingDim)
	e.store = store
	e.field = NewField(store)
	e.chem = NewChemistryEngine(store, e.cfg, 1)
	e.dims = NewDimensionSystem(store, e.cfg)
	e.traces = NewTraces()
	e.rollout = NewRolloutEngine(e.cfg, 2)
	e.beam = NewBeamEmitter(e.cfg)
	e.cycle = 0
	e.degraded = false
}

// Learn feeds one sentence of teaching input into the graph store (§6
// "learn"). It does not advance the reasoning cycle.
func (e *Engine) Learn(text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.degraded {
		return ErrDegraded
	}
	Learn(e.store, text)
	return nil
}

// Metrics returns a read-only snapshot of engine state (§5, §6).
func (e *Engine) Metrics() Metrics {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Metrics{
		NodeCount:          e.store.Len(),
		EdgeCount:          len(e.store.AllEdges()),
		ActiveDimensions:   e.dims.Count(),
		PromotionThreshold: e.dims.PromotionThreshold(),
		LearningRate:       e.dims.LearningRate(),
		BaselineFitness:    e.dims.Baseline(),
		Cycle:              e.cycle,
		Degraded:           e.degraded,
		Chemistry:          e.chem.Stats(),
	}
}

// evolutionParamRanges bounds every host-tunable parameter accepted by
// SetEvolutionParam (§6, §7 "parameter-out-of-range").
var evolutionParamRanges = map[string][2]float64{
	"alpha":               {0, 10},
	"beta":                {0, 10},
	"tau":                 {0, 10},
	"lambda":              {0, 10},
	"rollout_horizon":     {1, 20},
	"rollout_branches":    {1, 64},
	"promotion_threshold": {0, 1},
	"demotion_threshold":  {0, 1},
	"user_feedback":       {-1, 1},
}

// SetEvolutionParam validates and applies one named evolution parameter
// (§6 "set_evolution_param", §7 "parameter-out-of-range: reject, leave the
// parameter at its previous value, return an error").
func (e *Engine) SetEvolutionParam(name string, value float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	bounds, ok := evolutionParamRanges[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownParam, name)
	}
	if value < bounds[0] || value > bounds[1] {
		return fmt.Errorf("%w: %s=%v not in [%v,%v]", ErrParamOutOfRange, name, value, bounds[0], bounds[1])
	}

	switch name {
	case "alpha":
		e.cfg.Alpha = value
	case "beta":
		e.cfg.Beta = value
	case "tau":
		e.cfg.Tau = value
	case "lambda":
		e.cfg.Lambda = value
	case "rollout_horizon":
		e.cfg.RolloutHorizon = int(value)
	case "rollout_branches":
		e.cfg.RolloutBranches = int(value)
	case "promotion_threshold":
		e.cfg.PromotionThreshold = value
		e.dims.promotionThreshold = value
	case "demotion_threshold":
		e.cfg.DemotionThreshold = value
		e.dims.demotionThreshold = value
	case "user_feedback":
		e.userFeedback = value
	}
	e.rollout.cfg = e.cfg
	e.beam.cfg = e.cfg
	return nil
}

// Answer runs one full reasoning cycle (§4.6) and returns the emitted
// phrase. An empty candidate set is not an error; it yields the fixed
// fallback string (§4.6, §7 "empty-result").
func (e *Engine) Answer(ctx context.Context, query string, mode Mode) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.degraded {
		return "", ErrDegraded
	}

	Learn(e.store, query) // every query also teaches: its tokens and co-occurrences join the graph

	n := e.store.Len()
	if n == 0 {
		return "I don't know yet.", nil
	}

	// Step 1-2: resize every subsystem vector to the current node count and
	// compute the query-relevance vector A.
	e.field.Resize(n)
	e.dims.Resize(n)
	a := e.computeA(query, n)

	// Step 3: three quick warm-start diffuse/inject/decay passes.
	for i := 0; i < 3; i++ {
		e.field.Inject(a, e.cfg.Alpha, e.cfg.WarmupEta)
		e.field.DiffuseChemistry(e.cfg.WarmupEta)
		e.field.Decay(e.cfg.Lambda, e.cfg.WarmupEta)
	}

	// Step 4: enumerate candidate actions from the warmed-up field.
	actions := EnumerateActions(e.field, e.store, e.cfg.TopKActions)
	if len(actions) == 0 {
		return "I don't know yet.", nil
	}

	// Step 5: batch-parallel rollout over the immutable post-warm-start
	// snapshot (§5 "the batch-parallelizable rollout phase operates over an
	// immutable snapshot of the graph and field").
	snapshot := append([]float64(nil), e.field.C...)
	results := make([][]Path, len(actions))
	g, _ := errgroup.WithContext(ctx)
	for i, act := range actions {
		i, act := i, act
		g.Go(func() error {
			results[i] = e.rollout.Run(e.store, snapshot, act)
			return nil
		})
	}
	_ = g.Wait() // rollout never returns an error; it degrades to short/empty paths

	// Step 6: D.observe(C).
	e.dims.Observe(e.field.C)

	// Step 7-8: per-action fitness, then select the best by utility.
	dimsList := e.dims.Dimensions()
	gammasForUtility := make([]float64, len(dimsList))
	for i, d := range dimsList {
		gammasForUtility[i] = d.Gamma
	}

	metrics := make([]FitnessMetrics, len(actions))
	bestIdx := 0
	bestUtility := -1e18
	for i, paths := range results {
		m := Evaluate(paths, dimsList, e.store)
		metrics[i] = m
		u := Utility(m, gammasForUtility, e.userFeedback)
		if u > bestUtility {
			bestUtility = u
			bestIdx = i
		}
	}
	bestAction := actions[bestIdx]
	bestMetrics := metrics[bestIdx]
	overall := overallFitness(bestMetrics.Coherence, bestMetrics.TaskSuccess, bestMetrics.Consistency, bestMetrics.Stability, e.userFeedback)

	// Step 9: D.evaluate_and_attribute.
	e.dims.EvaluateAndAttribute(FitnessRecord{
		Coherence:   bestMetrics.Coherence,
		Task:        bestMetrics.TaskSuccess,
		Consistency: bestMetrics.Consistency,
		Stability:   bestMetrics.Stability,
		External:    e.userFeedback,
		Overall:     overall,
	})

	// Step 10: promote/demote, periodic compress.
	e.dims.Promote()
	e.dims.Demote()
	if e.cycle > 0 && e.cycle%e.cfg.CompressEveryCycles == 0 {
		e.dims.Compress()
	}

	// Step 11: resize and decay traces, then backproject every action's
	// rollouts (§4.4 "for each action's rollouts, for each path...").
	e.traces.Resize(e.dims.Count(), n)
	e.traces.Decay(e.cfg.TraceDecay)
	for ai, paths := range results {
		m := metrics[ai]
		for k := range dimsList {
			align := 0.0
			if k < len(m.Alignment) {
				align = m.Alignment[k]
			}
			if align == 0 {
				continue
			}
			for _, p := range paths {
				discount := 1.0
				for _, idx := range p.NodeIndices {
					e.traces.Add(k, idx, p.Probability*discount*align)
					discount *= e.cfg.Discount
				}
			}
		}
	}

	// Step 12: driver fields + equilibrium re-solve.
	beforeC := append([]float64(nil), e.field.C...)
	gammas, fields := e.dims.GenerateFields()
	e.field.SolveEquilibrium(a, e.field.R, fields, gammas, e.cfg.Alpha, e.cfg.Beta, e.cfg.Tau, e.cfg.Lambda, e.cfg.MixEta, e.cfg.EquilibriumIters)

	// Step 13: emit the phrase from the chosen action.
	phrase := e.beam.Emit(e.store, bestAction.NodeIndex, query, mode)

	// Step 14: reinforce R at the chosen action's node.
	if bestAction.NodeIndex < len(e.field.R) {
		e.field.R[bestAction.NodeIndex] += 0.1
	}

	// Step 15: chemistry update, periodic maintenance + meta-learning.
	e.chem.Update(e.field, a, beforeC, overall)
	e.cycle++
	if e.cycle%e.cfg.MaintenanceEveryCycles == 0 {
		e.chem.Maintain()
	}
	if e.cycle%e.cfg.MetaLearnEveryCycles == 0 {
		e.dims.MetaLearn()
		e.chem.MetaLearn()
	}

	if err := e.checkInvariants(n); err != nil {
		e.degraded = true
		e.log.Errorw("invariant violation, engine degraded", "error", err)
		return phrase, err
	}

	return phrase, nil
}

// computeA builds the query-relevance vector: cosine similarity to the
// query embedding, plus a literal-mention bonus (§4.6 step 2).
func (e *Engine) computeA(query string, n int) []float64 {
	canon := Canonicalize(query)
	qEmb := Embed(canon, e.cfg.EmbeddingDim)
	a := make([]float64, n)
	for i, node := range e.store.Nodes() {
		if i >= n {
			break
		}
		a[i] = CosineSimilarity(qEmb, node.Embedding)
		if node.Text != "" && strings.Contains(canon, node.Text) {
			a[i] += 0.5
		}
	}
	return a
}

// checkInvariants verifies the vector-length invariant (§8 property 1) after
// a full cycle: field, dimension, and trace vectors must all match the
// current node count.
func (e *Engine) checkInvariants(n int) error {
	if len(e.field.C) != n || len(e.field.R) != n {
		return fmt.Errorf("%w: field length %d/%d want %d", ErrInvariantViolation, len(e.field.C), len(e.field.R), n)
	}
	for _, dim := range e.dims.Dimensions() {
		if len(dim.Field) != n {
			return fmt.Errorf("%w: dimension %s field length %d want %d", ErrInvariantViolation, dim.ID, len(dim.Field), n)
		}
	}
	for i := 0; i < e.traces.Count(); i++ {
		if v := e.traces.Vector(i); len(v) != n {
			return fmt.Errorf("%w: trace %d length %d want %d", ErrInvariantViolation, i, len(v), n)
		}
	}
	return nil
}
