package noetic

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Field is the context field F (§3, §4.1): a dense vector C of node
// potentials plus a parallel reasoning-reinforcement vector R, relaxed under
// chemistry-driven diffusion and dimension driver-field injection.
type Field struct {
	store *Store
	C     []float64
	R     []float64
}

// NewField builds an empty field bound to store.
func NewField(store *Store) *Field {
	return &Field{store: store}
}

// Resize extends C and R to length n, zero-filling new entries (§4.1
// "resize(n)"). It never shrinks — nodes are never destroyed by the core.
func (f *Field) Resize(n int) {
	f.C = growFloats(f.C, n)
	f.R = growFloats(f.R, n)
}

func growFloats(v []float64, n int) []float64 {
	if len(v) >= n {
		return v
	}
	out := make([]float64, n)
	copy(out, v)
	return out
}

// Inject adds η·α·A to C (§4.1 "inject").
func (f *Field) Inject(a []float64, alpha, eta float64) {
	n := len(f.C)
	for i := 0; i < n && i < len(a); i++ {
		v := eta * alpha * a[i]
		if math.IsNaN(v) {
			continue
		}
		f.C[i] += v
	}
}

// Decay applies uniform decay: C ← (1 − η·λ)·C (§4.1 "decay").
func (f *Field) Decay(lambda, eta float64) {
	factor := 1 - eta*lambda
	floats.Scale(factor, f.C)
}

// edgeWeight is the chemistry-derived conductivity*affinity weight used by
// both diffusion and the equilibrium Laplacian.
func edgeWeight(e *Edge) float64 {
	return e.Chem.Conductivity * e.Chem.Affinity
}

// DiffuseChemistry visits every edge exactly once, moving potential from the
// higher- to the lower-potential endpoint proportional to conductivity,
// affinity, and the edge's directional bias, plus an energy-potential inertia
// term (§4.1 "diffuse_chemistry"). The ± application to the two endpoints
// keeps ΣC approximately conserved modulo decay.
func (f *Field) DiffuseChemistry(eta float64) {
	for _, e := range f.store.AllEdges() {
		ai, ok1 := f.store.Index(e.Source)
		bi, ok2 := f.store.Index(e.Dest)
		if !ok1 || !ok2 || ai >= len(f.C) || bi >= len(f.C) {
			continue // missing-key: local no-op (§7)
		}
		gradient := f.C[ai] - f.C[bi]
		bias := 1.0
		if gradient >= 0 {
			bias = 1 + e.Chem.DirectionalBias
		} else {
			bias = 1 - e.Chem.DirectionalBias
		}
		flow := edgeWeight(e)*gradient*bias + 0.1*e.Chem.EnergyPotential
		if math.IsNaN(flow) {
			continue
		}
		f.C[ai] -= eta * flow
		f.C[bi] += eta * flow
	}
}

// SolveEquilibrium approximates (λI + τL)C = αA + βR + Σ γ_k D_k with a fixed
// warm-started damped Jacobi iteration (§4.1 "solve_equilibrium"). It is
// idempotent when A, R, D, γ do not change between calls, and is a no-op on
// an empty graph.
func (f *Field) SolveEquilibrium(a, r []float64, driverFields [][]float64, gamma []float64, alpha, beta, tau, lambda, mixEta float64, iters int) {
	n := len(f.C)
	if n == 0 {
		return
	}
	rhs := make([]float64, n)
	for i := 0; i < n; i++ {
		v := 0.0
		if i < len(a) {
			v += alpha * a[i]
		}
		if i < len(r) {
			v += beta * r[i]
		}
		for k, gk := range gamma {
			if i < len(driverFields[k]) {
				v += gk * driverFields[k][i]
			}
		}
		if math.IsNaN(v) {
			v = 0
		}
		rhs[i] = v
	}

	// Precompute weighted adjacency (both directions contribute to deg(i)
	// and to the Laplacian sum, since the field treats conductivity*affinity
	// as a symmetric coupling strength between endpoints).
	type neigh struct {
		j int
		w float64
	}
	adj := make([][]neigh, n)
	deg := make([]float64, n)
	for _, e := range f.store.AllEdges() {
		ai, ok1 := f.store.Index(e.Source)
		bi, ok2 := f.store.Index(e.Dest)
		if !ok1 || !ok2 || ai >= n || bi >= n {
			continue
		}
		w := edgeWeight(e)
		adj[ai] = append(adj[ai], neigh{bi, w})
		adj[bi] = append(adj[bi], neigh{ai, w})
		deg[ai] += w
		deg[bi] += w
	}

	if iters <= 0 {
		iters = 10
	}
	cNext := make([]float64, n)
	for iter := 0; iter < iters; iter++ {
		for i := 0; i < n; i++ {
			lap := 0.0
			for _, nb := range adj[i] {
				lap += nb.w * (f.C[i] - f.C[nb.j])
			}
			denom := lambda + tau*deg[i]
			var v float64
			if denom == 0 {
				v = f.C[i]
			} else {
				v = (rhs[i] - tau*lap) / denom
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				v = 0
			}
			cNext[i] = v
		}
		for i := 0; i < n; i++ {
			f.C[i] = (1-mixEta)*f.C[i] + mixEta*cNext[i]
		}
	}
}

// TopK returns the k indices of the largest C values, descending, ties broken
// by lower index (§4.1 "top_k").
func (f *Field) TopK(k int) []int {
	n := len(f.C)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		a, b := idx[i], idx[j]
		if f.C[a] != f.C[b] {
			return f.C[a] > f.C[b]
		}
		return a < b
	})
	if k > len(idx) {
		k = len(idx)
	}
	return idx[:k]
}
