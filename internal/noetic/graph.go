package noetic

import (
	"strings"
	"sync"
	"time"
)

// Relation is one of the small closed set of edge tags from §3/§6. Relation
// tags are metadata only — no field or chemistry code dispatches on them
// (§9 "Self-describing edge behavior"); they are written by the teaching
// stream and read by the beam emitter's scoring (syntax fit and driver bias).
type Relation string

const (
	RelationExact          Relation = "exact"
	RelationTemporal       Relation = "temporal"
	RelationLeap           Relation = "leap"
	RelationGeneralization Relation = "generalization"
	RelationIsA            Relation = "isa"
	RelationConsumes       Relation = "consumes"
)

// allRelations enumerates the closed relation set, used by chemistry's split
// operation to find a free (source, dest, relation) triple for a variant edge.
var allRelations = []Relation{
	RelationExact, RelationTemporal, RelationLeap,
	RelationGeneralization, RelationIsA, RelationConsumes,
}

// Node is a graph vertex. Identity is a stable 64-bit key derived from
// canonical text (§3). Nodes are never destroyed by the core.
type Node struct {
	Key        uint64
	Text       string
	Frequency  int
	Embedding  []float64
	Activation float64
	Recency    time.Time
	Strength   float64
}

// Chemistry holds the continuous per-edge state from §3/§4.2. All fields are
// updated every cycle per the chemistry update law.
type Chemistry struct {
	Conductivity          float64
	Affinity              float64
	Plasticity            float64
	Stability             float64
	DirectionalBias       float64
	EnergyPotential       float64
	Age                   int
	ActivationCount       int
	CumulativeFlow        float64
	LastActivity          float64
	PredictionAccuracy    float64
	CoherenceContribution float64
}

// defaultChemistry seeds a freshly-created edge's chemistry state.
func defaultChemistry() Chemistry {
	return Chemistry{
		Conductivity:    0.3,
		Affinity:        0.2,
		Plasticity:      0.05,
		Stability:       0.5,
		DirectionalBias: 0,
		EnergyPotential: 0,
	}
}

// Edge is directed Source -> Dest with a typed relation. Edge identity is
// (Source, Dest, Relation); at most one edge exists per triple (the Open
// Question in spec.md §9 is resolved here by collapsing at insertion — see
// DESIGN.md).
type Edge struct {
	Source, Dest  uint64
	Relation      Relation
	CoreWeight    float64
	ContextWeight float64
	Count         int
	LastUsed      time.Time
	Chem          Chemistry
}

type edgeKey struct {
	Source, Dest uint64
	Relation     Relation
}

// Store is the graph store (component G): nodes, typed edges, adjacency, and
// the node-key -> vector-index mapping shared by the field and dimension
// subsystems. Grounded on lvlath's core.Graph (mutex-protected adjacency-list
// arena) but generalized to typed, chemistry-bearing multigraph edges.
type Store struct {
	mu sync.RWMutex

	nodes map[uint64]*Node
	order []uint64       // index -> key; append-only arena
	index map[uint64]int // key -> index

	edges    map[edgeKey]*Edge
	outgoing map[uint64][]edgeKey
	incoming map[uint64][]edgeKey

	embeddingDim int
}

// NewStore builds an empty graph store. embeddingDim sizes every node's
// embedding vector (128 in the reference, §6).
func NewStore(embeddingDim int) *Store {
	return &Store{
		nodes:        make(map[uint64]*Node),
		index:        make(map[uint64]int),
		edges:        make(map[edgeKey]*Edge),
		outgoing:     make(map[uint64][]edgeKey),
		incoming:     make(map[uint64][]edgeKey),
		embeddingDim: embeddingDim,
	}
}

// Canonicalize normalizes raw text into the canonical form used for node
// identity and lookups.
func Canonicalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// InsertOrFetchNode returns the key for text's canonical form, creating the
// node on first observation and bumping its frequency and recency otherwise.
func (s *Store) InsertOrFetchNode(text string) uint64 {
	canon := Canonicalize(text)
	key := stableNodeKey(canon)

	s.mu.Lock()
	defer s.mu.Unlock()

	if n, ok := s.nodes[key]; ok {
		n.Frequency++
		n.Recency = time.Now()
		return key
	}

	n := &Node{
		Key:       key,
		Text:      canon,
		Frequency: 1,
		Embedding: Embed(canon, s.embeddingDim),
		Recency:   time.Now(),
		Strength:  0.1,
	}
	s.nodes[key] = n
	s.index[key] = len(s.order)
	s.order = append(s.order, key)
	return key
}

// UpsertEdge creates the edge (src, dst, relation) on first observation or
// updates its count/weight on repeats (§6). It is idempotent in identity:
// calling it k times with the same triple leaves exactly one edge whose Count
// equals k and whose CoreWeight is monotonically non-decreasing (§8 property 4).
func (s *Store) UpsertEdge(src, dst uint64, relation Relation) *Edge {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[src]; !ok {
		return nil
	}
	if _, ok := s.nodes[dst]; !ok {
		return nil
	}

	k := edgeKey{src, dst, relation}
	e, ok := s.edges[k]
	if !ok {
		e = &Edge{
			Source:   src,
			Dest:     dst,
			Relation: relation,
			Chem:     defaultChemistry(),
		}
		s.edges[k] = e
		s.outgoing[src] = append(s.outgoing[src], k)
		s.incoming[dst] = append(s.incoming[dst], k)
	}
	e.Count++
	e.LastUsed = time.Now()
	e.CoreWeight += (1 - e.CoreWeight) * 0.15
	e.ContextWeight += (1 - e.ContextWeight) * 0.25
	return e
}

// Outgoing returns the edges leaving v. A missing node yields an empty slice
// (missing-key is a local no-op per §7), never an error.
func (s *Store) Outgoing(v uint64) []*Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := s.outgoing[v]
	out := make([]*Edge, 0, len(keys))
	for _, k := range keys {
		if e, ok := s.edges[k]; ok {
			out = append(out, e)
		}
	}
	return out
}

// Incoming returns the edges arriving at v.
func (s *Store) Incoming(v uint64) []*Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := s.incoming[v]
	out := make([]*Edge, 0, len(keys))
	for _, k := range keys {
		if e, ok := s.edges[k]; ok {
			out = append(out, e)
		}
	}
	return out
}

// Find returns the edge for (a, b, relation), if any.
func (s *Store) Find(a, b uint64, relation Relation) (*Edge, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.edges[edgeKey{a, b, relation}]
	return e, ok
}

// NodeText returns the canonical text for key.
func (s *Store) NodeText(key uint64) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[key]
	if !ok {
		return "", false
	}
	return n.Text, true
}

// Node returns the node for key.
func (s *Store) Node(key uint64) (*Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[key]
	return n, ok
}

// Nodes returns every node, in index order, for bulk read iteration.
func (s *Store) Nodes() []*Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Node, len(s.order))
	for i, key := range s.order {
		out[i] = s.nodes[key]
	}
	return out
}

// AllEdges returns every edge for bulk iteration (field diffusion, chemistry
// maintenance).
func (s *Store) AllEdges() []*Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Edge, 0, len(s.edges))
	for _, e := range s.edges {
		out = append(out, e)
	}
	return out
}

// Len returns |V|, the current node count.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Index returns the vector index for a node key.
func (s *Store) Index(key uint64) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[key]
	return i, ok
}

// KeyAt returns the node key at vector index i.
func (s *Store) KeyAt(i int) (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.order) {
		return 0, false
	}
	return s.order[i], true
}

// edgesSnapshot returns a copy of the edge map for safe iteration while
// maintenance mutates the store (prune/fuse/split).
func (s *Store) edgesSnapshot() map[edgeKey]*Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[edgeKey]*Edge, len(s.edges))
	for k, e := range s.edges {
		out[k] = e
	}
	return out
}

// edge looks up a single edge by its full key.
func (s *Store) edge(k edgeKey) (*Edge, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.edges[k]
	return e, ok
}

// removeEdge deletes an edge and its adjacency-list entries. Used by
// chemistry maintenance (prune/fuse). Callers must hold no lock; removeEdge
// takes its own.
func (s *Store) removeEdge(k edgeKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.edges, k)
	s.outgoing[k.Source] = removeKey(s.outgoing[k.Source], k)
	s.incoming[k.Dest] = removeKey(s.incoming[k.Dest], k)
}

func removeKey(list []edgeKey, k edgeKey) []edgeKey {
	out := list[:0]
	for _, x := range list {
		if x != k {
			out = append(out, x)
		}
	}
	return out
}

// EmbeddingDim returns the vector width every node's embedding is built with.
func (s *Store) EmbeddingDim() int { return s.embeddingDim }

// restoreNode reinserts a fully-formed node at the end of the arena,
// preserving its key's original index. Used only by snapshot import, which
// restores nodes in their original arena order.
func (s *Store) restoreNode(n *Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[n.Key] = n
	s.index[n.Key] = len(s.order)
	s.order = append(s.order, n.Key)
}

// addEdge inserts a fully-formed edge (used by chemistry split and snapshot
// import, which construct edges directly).
func (s *Store) addEdge(e *Edge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := edgeKey{e.Source, e.Dest, e.Relation}
	s.edges[k] = e
	if _, ok := s.nodes[e.Source]; ok {
		s.outgoing[e.Source] = append(s.outgoing[e.Source], k)
	}
	if _, ok := s.nodes[e.Dest]; ok {
		s.incoming[e.Dest] = append(s.incoming[e.Dest], k)
	}
}
