package noetic

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

// snapshotVersion guards the gob wire format. Bump it whenever a field is
// added, removed, or reordered in a way that breaks decode compatibility.
const snapshotVersion = 1

type snapshotNode struct {
	Key        uint64
	Text       string
	Frequency  int
	Embedding  []float64
	Activation float64
	Recency    time.Time
	Strength   float64
}

type snapshotEdge struct {
	Source, Dest  uint64
	Relation      Relation
	CoreWeight    float64
	ContextWeight float64
	Count         int
	LastUsed      time.Time
	Chem          Chemistry
}

type snapshotDimension struct {
	ID             string
	Primary        uint64
	Cluster        []uint64
	VarianceImpact float64
	Gamma          float64
	Stability      float64
	Age            int
	Field          []float64
}

// Snapshot is the opaque persisted-state payload (§6 "The persisted state is
// an opaque snapshot; the host must not depend on its internal format").
// Hosts should treat the encoded bytes as a blob; Engine.Export/Import is the
// only supported interface.
type Snapshot struct {
	Version int
	Cfg     Config

	EmbeddingDim int
	Nodes        []snapshotNode
	Edges        []snapshotEdge

	FieldC []float64
	FieldR []float64

	Dimensions           []snapshotDimension
	Activity             []float64
	VarianceImpact       []float64
	History              []FitnessRecord
	Baseline             float64
	PromotionThreshold   float64
	DemotionThreshold    float64
	GammaGrowthRate      float64
	GammaMax             float64
	LearningRate         float64
	DimensionDecayRate   float64
	CompressionThreshold float64

	TraceVectors [][]float64

	Cycle        int
	UserFeedback float64
	Degraded     bool
}

// Export encodes the engine state listed in Snapshot with encoding/gob (§6,
// §8 property 5): config, nodes, edges with their chemistry, field C/R,
// dimension state, traces, and cycle counters. The chemistry engine's own
// meta-learned Kappa/ReinforcementGain, its Stats() trend history, and the
// RNG states are not encoded; Import starts them again from Cfg and the seed.
func (e *Engine) Export() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{
		Version:      snapshotVersion,
		Cfg:          e.cfg,
		EmbeddingDim: e.store.EmbeddingDim(),
		FieldC:       append([]float64(nil), e.field.C...),
		FieldR:       append([]float64(nil), e.field.R...),

		Activity:             append([]float64(nil), e.dims.activity...),
		VarianceImpact:       append([]float64(nil), e.dims.varianceImpact...),
		History:              append([]FitnessRecord(nil), e.dims.history...),
		Baseline:             e.dims.baseline,
		PromotionThreshold:   e.dims.promotionThreshold,
		DemotionThreshold:    e.dims.demotionThreshold,
		GammaGrowthRate:      e.dims.gammaGrowthRate,
		GammaMax:             e.dims.gammaMax,
		LearningRate:         e.dims.learningRate,
		DimensionDecayRate:   e.dims.decayRate,
		CompressionThreshold: e.dims.compressionThreshold,

		Cycle:        e.cycle,
		UserFeedback: e.userFeedback,
		Degraded:     e.degraded,
	}

	for _, key := range e.store.order {
		n := e.store.nodes[key]
		snap.Nodes = append(snap.Nodes, snapshotNode{
			Key: n.Key, Text: n.Text, Frequency: n.Frequency,
			Embedding: append([]float64(nil), n.Embedding...),
			Activation: n.Activation, Recency: n.Recency, Strength: n.Strength,
		})
	}
	edgeKeys := make([]edgeKey, 0, len(e.store.edges))
	for k := range e.store.edges {
		edgeKeys = append(edgeKeys, k)
	}
	sort.Slice(edgeKeys, func(i, j int) bool {
		a, b := edgeKeys[i], edgeKeys[j]
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		if a.Dest != b.Dest {
			return a.Dest < b.Dest
		}
		return a.Relation < b.Relation
	})
	for _, k := range edgeKeys {
		edge := e.store.edges[k]
		snap.Edges = append(snap.Edges, snapshotEdge{
			Source: k.Source, Dest: k.Dest, Relation: k.Relation,
			CoreWeight: edge.CoreWeight, ContextWeight: edge.ContextWeight,
			Count: edge.Count, LastUsed: edge.LastUsed, Chem: edge.Chem,
		})
	}
	for _, dim := range e.dims.dims {
		cluster := make([]uint64, 0, len(dim.Cluster))
		for k := range dim.Cluster {
			cluster = append(cluster, k)
		}
		sort.Slice(cluster, func(i, j int) bool { return cluster[i] < cluster[j] })
		snap.Dimensions = append(snap.Dimensions, snapshotDimension{
			ID: dim.ID, Primary: dim.Primary, Cluster: cluster,
			VarianceImpact: dim.VarianceImpact, Gamma: dim.Gamma,
			Stability: dim.Stability, Age: dim.Age,
			Field: append([]float64(nil), dim.Field...),
		})
	}
	for _, v := range e.traces.vectors {
		snap.TraceVectors = append(snap.TraceVectors, append([]float64(nil), v...))
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&snap); err != nil {
		return nil, fmt.Errorf("noetic: encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// Import decodes data written by Export into a fresh Engine. seed reseeds
// the chemistry-split and rollout-sampling RNGs, since those are not part of
// the persisted state.
func Import(data []byte, log *zap.SugaredLogger, seed int64) (*Engine, error) {
	var snap Snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return nil, fmt.Errorf("noetic: decode snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("noetic: snapshot version %d unsupported (want %d)", snap.Version, snapshotVersion)
	}

	e := New(snap.Cfg, log, seed)
	store := e.store

	for _, sn := range snap.Nodes {
		store.restoreNode(&Node{
			Key: sn.Key, Text: sn.Text, Frequency: sn.Frequency,
			Embedding: sn.Embedding, Activation: sn.Activation,
			Recency: sn.Recency, Strength: sn.Strength,
		})
	}
	for _, se := range snap.Edges {
		store.addEdge(&Edge{
			Source: se.Source, Dest: se.Dest, Relation: se.Relation,
			CoreWeight: se.CoreWeight, ContextWeight: se.ContextWeight,
			Count: se.Count, LastUsed: se.LastUsed, Chem: se.Chem,
		})
	}

	e.field.C = append([]float64(nil), snap.FieldC...)
	e.field.R = append([]float64(nil), snap.FieldR...)

	e.dims.activity = append([]float64(nil), snap.Activity...)
	e.dims.varianceImpact = append([]float64(nil), snap.VarianceImpact...)
	e.dims.history = append([]FitnessRecord(nil), snap.History...)
	e.dims.baseline = snap.Baseline
	e.dims.promotionThreshold = snap.PromotionThreshold
	e.dims.demotionThreshold = snap.DemotionThreshold
	e.dims.gammaGrowthRate = snap.GammaGrowthRate
	e.dims.gammaMax = snap.GammaMax
	e.dims.learningRate = snap.LearningRate
	e.dims.decayRate = snap.DimensionDecayRate
	e.dims.compressionThreshold = snap.CompressionThreshold

	for _, sd := range snap.Dimensions {
		cluster := make(map[uint64]bool, len(sd.Cluster))
		for _, k := range sd.Cluster {
			cluster[k] = true
		}
		dim := &Dimension{
			ID: sd.ID, Primary: sd.Primary, Cluster: cluster,
			VarianceImpact: sd.VarianceImpact, Gamma: sd.Gamma,
			Stability: sd.Stability, Age: sd.Age, Field: sd.Field,
		}
		e.dims.dims = append(e.dims.dims, dim)
	}
	e.dims.reindex()

	e.traces.vectors = make([][]float64, len(snap.TraceVectors))
	for i, v := range snap.TraceVectors {
		e.traces.vectors[i] = append([]float64(nil), v...)
	}

	e.cycle = snap.Cycle
	e.userFeedback = snap.UserFeedback
	e.degraded = snap.Degraded

	return e, nil
}
