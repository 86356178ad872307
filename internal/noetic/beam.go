package noetic

import (
	"math"
	"sort"
	"strings"
	"time"
	"unicode"
)

// driverBiasProfiles maps each mode to a per-relation multiplicative bias in
// [0.3, 1.3] (§4.6 "Mode... selects a bounded driver_bias profile"). Relation
// tags are read here deliberately — grammar-repair and the beam emitter are
// the two places §9 licenses tag dispatch, unlike field/chemistry.
var driverBiasProfiles = map[Mode]map[Relation]float64{
	ModeBalanced: {},
	ModeExploration: {
		RelationLeap: 1.3, RelationGeneralization: 1.2,
	},
	ModeExploitation: {
		RelationExact: 1.3, RelationIsA: 1.2, RelationConsumes: 1.2,
	},
	ModeAccuracy: {
		RelationIsA: 1.3, RelationConsumes: 1.3, RelationExact: 1.1, RelationLeap: 0.3,
	},
}

func driverBias(relation Relation, mode Mode) float64 {
	profile, ok := driverBiasProfiles[mode]
	if !ok {
		return 1.0
	}
	if v, ok := profile[relation]; ok {
		return v
	}
	if len(profile) == 0 {
		return 1.0
	}
	return 0.9 // default damping relative to the mode's favored relations
}

// relationSyntaxFit is a fixed per-relation multiplier in [0.3, 1.3]
// approximating how grammatically plausible a continuation of that type is.
var relationSyntaxFit = map[Relation]float64{
	RelationExact:          1.1,
	RelationTemporal:       1.0,
	RelationIsA:            1.2,
	RelationConsumes:       1.15,
	RelationGeneralization: 0.9,
	RelationLeap:           0.6,
}

func syntaxFit(relation Relation) float64 {
	if v, ok := relationSyntaxFit[relation]; ok {
		return v
	}
	return 1.0
}

func semanticFit(queryEmbedding, nodeEmbedding []float64) float64 {
	cos := CosineSimilarity(queryEmbedding, nodeEmbedding)
	return clamp(0.3+(cos+1)/2, 0.3, 1.3)
}

func recencyFactor(e *Edge, now time.Time, tau float64) float64 {
	if e.LastUsed.IsZero() {
		return 1
	}
	delta := now.Sub(e.LastUsed).Seconds()
	if delta < 0 {
		delta = 0
	}
	return math.Exp(-delta / tau)
}

func laplaceFreq(store *Store, srcKey uint64, e *Edge, alpha float64) float64 {
	out := store.Outgoing(srcKey)
	total := 0.0
	for _, oe := range out {
		total += float64(oe.Count)
	}
	return (float64(e.Count) + alpha) / (total + alpha*float64(len(out)))
}

func repetitionPenalty(recentTokens []string, target string, window int, gamma float64) float64 {
	start := 0
	if len(recentTokens) > window {
		start = len(recentTokens) - window
	}
	count := 0
	for _, t := range recentTokens[start:] {
		if t == target {
			count++
		}
	}
	return math.Pow(gamma, float64(count))
}

func lengthNorm(t int, beta float64) float64 {
	return 1 / math.Pow(5+float64(t), beta)
}

func endsWithTerminal(tok string) bool {
	if tok == "" {
		return false
	}
	r := rune(tok[len(tok)-1])
	return r == '.' || r == '!' || r == '?'
}

func bigramSeenTwice(tokens []string, next string, window int) bool {
	if len(tokens) == 0 {
		return false
	}
	start := 0
	if len(tokens) > window {
		start = len(tokens) - window
	}
	slice := tokens[start:]
	count := 0
	for i := 0; i < len(slice)-1; i++ {
		if slice[i] == slice[len(slice)-1] && slice[i+1] == next {
			count++
		}
	}
	return count >= 2
}

func repeated3gram(tokens []string) bool {
	if len(tokens) < 6 {
		return false
	}
	last3 := tokens[len(tokens)-3:]
	prev3 := tokens[len(tokens)-6 : len(tokens)-3]
	for i := range last3 {
		if last3[i] != prev3[i] {
			return false
		}
	}
	return true
}

// beamHyp is one partial phrase hypothesis during beam search.
type beamHyp struct {
	nodeIdx  int
	tokens   []string
	logScore float64
	done     bool
}

// BeamEmitter is the beam phrase emitter (component B, §4.5): a bounded-width
// search over partial phrases, scored by a composite multi-factor edge score.
type BeamEmitter struct {
	cfg Config
}

// NewBeamEmitter builds a beam emitter.
func NewBeamEmitter(cfg Config) *BeamEmitter {
	return &BeamEmitter{cfg: cfg}
}

// Emit produces a short token sequence starting at startIdx, scored against
// query and mode (§4.5, §4.6 step 13). It returns the fallback string when
// the start node is unknown or the beam never advances (§4.6 "An empty
// top-K returns a fixed fallback string").
func (b *BeamEmitter) Emit(store *Store, startIdx int, query string, mode Mode) string {
	startKey, ok := store.KeyAt(startIdx)
	if !ok {
		return "I don't know yet."
	}
	startNode, ok := store.Node(startKey)
	if !ok {
		return "I don't know yet."
	}

	queryEmbedding := Embed(Canonicalize(query), len(startNode.Embedding))
	now := time.Now()

	beam := []beamHyp{{nodeIdx: startIdx, tokens: []string{startNode.Text}, logScore: 0}}

	for t := 1; t < b.cfg.MaxTokens; t++ {
		var candidates []beamHyp
		progressed := false

		for _, h := range beam {
			if h.done {
				candidates = append(candidates, h)
				continue
			}
			key, ok := store.KeyAt(h.nodeIdx)
			if !ok {
				candidates = append(candidates, markDone(h))
				continue
			}
			out := store.Outgoing(key)
			if len(out) == 0 {
				candidates = append(candidates, markDone(h))
				continue
			}

			type scored struct {
				edge  *Edge
				score float64
			}
			var scoredEdges []scored
			for _, e := range out {
				destNode, ok := store.Node(e.Dest)
				if !ok {
					continue
				}
				if bigramSeenTwice(h.tokens, destNode.Text, 8) {
					continue
				}
				s := laplaceFreq(store, key, e, b.cfg.LaplaceAlpha) *
					syntaxFit(e.Relation) *
					semanticFit(queryEmbedding, destNode.Embedding) *
					driverBias(e.Relation, mode) *
					recencyFactor(e, now, b.cfg.RecencyTau) *
					repetitionPenalty(h.tokens, destNode.Text, b.cfg.RepetitionWindow, b.cfg.RepetitionGamma) *
					lengthNorm(t, b.cfg.LengthNormBeta)
				scoredEdges = append(scoredEdges, scored{e, s})
			}
			sort.SliceStable(scoredEdges, func(i, j int) bool { return scoredEdges[i].score > scoredEdges[j].score })
			if len(scoredEdges) > b.cfg.BeamExpansion {
				scoredEdges = scoredEdges[:b.cfg.BeamExpansion]
			}
			if len(scoredEdges) == 0 {
				candidates = append(candidates, markDone(h))
				continue
			}

			for _, se := range scoredEdges {
				destNode, _ := store.Node(se.edge.Dest)
				destIdx, ok := store.Index(se.edge.Dest)
				if !ok {
					continue
				}
				logScore := math.Log(math.Max(se.score, 1e-9))
				nh := beamHyp{
					nodeIdx:  destIdx,
					tokens:   append(append([]string{}, h.tokens...), destNode.Text),
					logScore: h.logScore + logScore,
				}
				if len(nh.tokens) >= b.cfg.MaxTokens || endsWithTerminal(destNode.Text) || repeated3gram(nh.tokens) {
					nh.done = true
				}
				candidates = append(candidates, nh)
				progressed = true
			}
		}

		if len(candidates) == 0 {
			break
		}
		sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].logScore > candidates[j].logScore })
		if len(candidates) > b.cfg.BeamWidth {
			candidates = candidates[:b.cfg.BeamWidth]
		}
		beam = candidates

		best := beam[0]
		if math.Exp(best.logScore/float64(len(best.tokens))) < b.cfg.StopScoreThreshold {
			break
		}
		if !progressed {
			break
		}
		if allDone(beam) {
			break
		}
	}

	if len(beam) == 0 || len(beam[0].tokens) <= 1 {
		return "I don't know yet."
	}
	return repairGrammar(beam[0].tokens)
}

func markDone(h beamHyp) beamHyp {
	h.done = true
	return h
}

func allDone(beam []beamHyp) bool {
	for _, h := range beam {
		if !h.done {
			return false
		}
	}
	return true
}

// repairGrammar applies the fixed post-processing pass from §4.5: capitalize
// the first token, collapse adjacent duplicate determiners, adjust copula
// agreement, and append a terminal period if one is missing.
func repairGrammar(tokens []string) string {
	if len(tokens) == 0 {
		return "I don't know yet."
	}
	out := make([]string, 0, len(tokens))
	determiners := map[string]bool{"the": true, "a": true, "an": true}
	for i, tok := range tokens {
		if i > 0 && determiners[tok] && determiners[out[len(out)-1]] && tok == out[len(out)-1] {
			continue
		}
		out = append(out, tok)
	}

	// Copula agreement: when a noun ending in "s" precedes a bare copula
	// slot, prefer "are"; otherwise "is". Applied only where an existing
	// copula token directly follows an "a <noun>" pair.
	for i := 0; i < len(out); i++ {
		if out[i] != "is" && out[i] != "are" {
			continue
		}
		if i == 0 {
			continue
		}
		subject := out[i-1]
		if i >= 2 && out[i-2] == "a" {
			if strings.HasSuffix(subject, "s") {
				out[i] = "are"
			} else {
				out[i] = "is"
			}
		}
	}

	if len(out) > 0 {
		out[0] = capitalize(out[0])
	}
	phrase := strings.Join(out, " ")
	if !endsWithTerminal(phrase) {
		phrase += "."
	}
	return phrase
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
