package model

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rfielding/kripke-regions/kripke"
	"github.com/rfielding/kripke-regions/numeric"
	"github.com/rfielding/kripke-regions/ratfunc"
)

// Reachability is the maybe-state system of a reachability query: states
// 0..N-1 reach the target with probability strictly between 0 and 1 for some
// parameter values, and OneStep[s] is the mass that moves from s directly into
// a state that reaches the target almost surely.
type Reachability struct {
	Rows     [][]Edge
	OneStep  []ratfunc.Func
	Initial  int
	Original []int
	// Params are the declared parameters of the source system.
	Params []ratfunc.Var

	Stats PrepareStats
}

// PrepareStats summarizes the qualitative preprocessing.
type PrepareStats struct {
	States      int
	Transitions int
	Prob0       int
	Prob1       int
	Maybe       int
}

func (r *Reachability) N() int { return len(r.Rows) }

// Clone returns a copy that shares the immutable weights only.
func (r *Reachability) Clone() *Reachability {
	out := *r
	out.Rows = make([][]Edge, len(r.Rows))
	for i, row := range r.Rows {
		out.Rows[i] = append([]Edge(nil), row...)
	}
	out.OneStep = append([]ratfunc.Func(nil), r.OneStep...)
	out.Original = append([]int(nil), r.Original...)
	return &out
}

// Graph returns the transition graph between maybe states.
func (r *Reachability) Graph() *kripke.Graph {
	g := kripke.NewGraph(r.N())
	for from, row := range r.Rows {
		for _, e := range row {
			g.AddEdge(from, e.To)
		}
	}
	return g
}

// AllLinear reports whether every weight is affine in the parameters.
func (r *Reachability) AllLinear(sym numeric.Symbolic) bool {
	for s, row := range r.Rows {
		for _, e := range row {
			if !sym.IsLinear(e.Weight) {
				return false
			}
		}
		if !sym.IsLinear(r.OneStep[s]) {
			return false
		}
	}
	return true
}

// Prepare reduces sys to the maybe states of reaching the states labelled
// target from the unique initial state.
func Prepare(sys *System, target string, log zerolog.Logger) (*Reachability, error) {
	if len(sys.Initial) != 1 {
		return nil, fmt.Errorf("%w: found %d", ErrInitialStates, len(sys.Initial))
	}
	targets, err := sys.Label(target)
	if err != nil {
		return nil, err
	}
	n := len(sys.States)
	init := sys.Initial[0]
	g := sys.Graph()
	prob0, prob1 := kripke.Prob01(g, targets)

	stats := PrepareStats{States: n, Prob0: prob0.Size(), Prob1: prob1.Size()}
	for _, row := range sys.Rows {
		stats.Transitions += len(row)
	}

	if prob0.Has(init) || prob1.Has(init) {
		v := ratfunc.Zero()
		if prob1.Has(init) {
			v = ratfunc.One()
		}
		stats.Maybe = 1
		log.Info().Str("target", target).Str("probability", v.String()).
			Msg("initial state decided by qualitative analysis")
		return &Reachability{
			Rows:     [][]Edge{nil},
			OneStep:  []ratfunc.Func{v},
			Initial:  0,
			Original: []int{init},
			Params:   sys.Params,
			Stats:    stats,
		}, nil
	}

	maybe := kripke.Universe(g).Difference(prob0).Difference(prob1)
	maybe = kripke.Reachable(g, kripke.StatesOf(n, init), maybe).Intersect(maybe)

	index := make([]int, n)
	for i := range index {
		index[i] = -1
	}
	original := maybe.ToSlice()
	for i, s := range original {
		index[s] = i
	}

	r := &Reachability{
		Rows:     make([][]Edge, len(original)),
		OneStep:  make([]ratfunc.Func, len(original)),
		Initial:  index[init],
		Original: original,
		Params:   sys.Params,
	}
	for i, s := range original {
		sum := ratfunc.Zero()
		for _, e := range sys.Rows[s] {
			switch {
			case e.Weight.IsZero():
			case prob1.Has(e.To):
				sum = sum.Add(e.Weight)
			case index[e.To] >= 0:
				r.Rows[i] = append(r.Rows[i], Edge{To: index[e.To], Weight: e.Weight})
			}
		}
		r.OneStep[i] = sum
	}
	stats.Maybe = len(original)
	r.Stats = stats

	log.Info().
		Int("states", n).
		Int("prob0", stats.Prob0).
		Int("prob1", stats.Prob1).
		Int("maybe", stats.Maybe).
		Msg("preprocessed reachability query")
	return r, nil
}
