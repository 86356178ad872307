package noetic

import (
	"math"
	"math/rand"
	"strings"
	"sync"
)

// catastropheVocabulary and normVocabulary are the small fixed vocabularies
// from §4.4 used to flag catastrophic or norm-violating rollout paths.
var catastropheVocabulary = []string{"danger", "fatal", "crash"}
var normVocabulary = []string{"illegal", "unethical"}

func containsAny(text string, vocab []string) bool {
	for _, w := range vocab {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

// Action is a candidate naming a starting node, enumerated from the current
// field's top-K potentials (§4.4 "Actions").
type Action struct {
	Index     int // rank among enumerated actions
	NodeIndex int
	NodeKey   uint64
}

// EnumerateActions returns one action per node in field.TopK(k) (§4.6 step 4).
func EnumerateActions(field *Field, store *Store, k int) []Action {
	indices := field.TopK(k)
	actions := make([]Action, 0, len(indices))
	for rank, idx := range indices {
		key, ok := store.KeyAt(idx)
		if !ok {
			continue
		}
		actions = append(actions, Action{Index: rank, NodeIndex: idx, NodeKey: key})
	}
	return actions
}

// Path is one sampled rollout path from a candidate action (§4.4).
type Path struct {
	NodeIndices    []int
	Probability    float64
	Catastrophe    bool
	NormViolations int
	Contradictions int
	InfoGain       float64
	EnergyCost     float64
	GoalProximity  float64
}

// RolloutEngine is the rollout subsystem (component R, §4.4): branched
// probabilistic walks from a candidate action, sampling outgoing edges
// proportional to conductivity and destination potential.
type RolloutEngine struct {
	cfg Config
	mu  sync.Mutex // math/rand.Rand is not safe under the batch-parallel rollout phase (§5)
	rng *rand.Rand
}

// NewRolloutEngine builds a rollout engine. seed controls the path sampler,
// exposed for test reproducibility per the same Open Question as chemistry
// split (spec.md §9).
func NewRolloutEngine(cfg Config, seed int64) *RolloutEngine {
	return &RolloutEngine{cfg: cfg, rng: rand.New(rand.NewSource(seed))}
}

// Run generates Branches independent paths of length <= Horizon from
// action's starting node, over the immutable (store, field.C) snapshot
// (§5 "the snapshot must be taken after step 3").
func (r *RolloutEngine) Run(store *Store, c []float64, action Action) []Path {
	paths := make([]Path, 0, r.cfg.RolloutBranches)
	for b := 0; b < r.cfg.RolloutBranches; b++ {
		paths = append(paths, r.samplePath(store, c, action.NodeIndex))
	}
	return paths
}

func (r *RolloutEngine) samplePath(store *Store, c []float64, startIdx int) Path {
	p := Path{NodeIndices: []int{startIdx}, Probability: 1}

	current := startIdx
	for step := 0; step < r.cfg.RolloutHorizon; step++ {
		key, ok := store.KeyAt(current)
		if !ok {
			break // missing-key: stop this path, never crash
		}
		out := store.Outgoing(key)
		if len(out) == 0 {
			break
		}

		weights := make([]float64, len(out))
		total := 0.0
		for i, e := range out {
			di, ok := store.Index(e.Dest)
			if !ok {
				continue
			}
			target := 0.0
			if di < len(c) {
				target = math.Max(0, c[di])
			}
			w := e.Chem.Conductivity * (1 + target)
			weights[i] = w
			total += w
		}
		if total <= 0 {
			break
		}

		r.mu.Lock()
		pick := r.rng.Float64() * total
		r.mu.Unlock()
		chosen := len(out) - 1
		acc := 0.0
		for i, w := range weights {
			acc += w
			if pick <= acc {
				chosen = i
				break
			}
		}

		e := out[chosen]
		stepProb := weights[chosen] / total
		p.Probability *= stepProb

		di, ok := store.Index(e.Dest)
		if !ok {
			break
		}
		p.NodeIndices = append(p.NodeIndices, di)

		for _, visited := range p.NodeIndices[:len(p.NodeIndices)-1] {
			if visited == di {
				p.Contradictions++
				break
			}
		}

		if text, ok := store.NodeText(e.Dest); ok {
			if containsAny(text, catastropheVocabulary) {
				p.Catastrophe = true
			}
			if containsAny(text, normVocabulary) {
				p.NormViolations++
			}
		}
		if n, ok := store.Node(e.Dest); ok && n.Frequency < 5 {
			p.InfoGain += 0.1
		}
		p.EnergyCost += 0.05

		current = di
	}

	if len(c) > 0 && current < len(c) {
		p.GoalProximity = clamp(c[current], 0, 1)
	}
	return p
}
