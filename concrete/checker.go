// Package concrete computes reachability probabilities on instantiated
// (numeric) chains and decision processes.
package concrete

import (
	"errors"
	"fmt"
	"math"

	"github.com/bits-and-blooms/bitset"
	"golang.org/x/exp/constraints"
	"gonum.org/v1/gonum/mat"

	"github.com/rfielding/kripke-regions/kripke"
	"github.com/rfielding/kripke-regions/sparse"
)

// ErrNotConverged is returned when value iteration hits its iteration bound.
var ErrNotConverged = errors.New("value iteration did not converge")

// Direction selects the scheduler optimized in an MDP.
type Direction int

const (
	Minimize Direction = iota
	Maximize
)

func (d Direction) String() string {
	if d == Maximize {
		return "max"
	}
	return "min"
}

// Checker holds the numeric settings.
type Checker[C constraints.Float] struct {
	Precision     C
	MaxIterations int
}

func NewChecker[C constraints.Float](precision C) Checker[C] {
	return Checker[C]{Precision: precision, MaxIterations: 100000}
}

// graph returns the support graph of m over all rows.
func graph[C constraints.Float](m *sparse.Matrix[C]) *kripke.Graph {
	g := kripke.NewGraph(m.Groups())
	for s := 0; s < m.Groups(); s++ {
		lo, hi := m.Group(s)
		for r := lo; r < hi; r++ {
			slo, shi := m.Row(r)
			for sl := slo; sl < shi; sl++ {
				if m.Value(sl) != 0 {
					g.AddEdge(s, m.Column(sl))
				}
			}
		}
	}
	return g
}

func targetSet(n int, target *bitset.BitSet) kripke.StateSet {
	ts := kripke.NewStateSet(n)
	for i, ok := target.NextSet(0); ok; i, ok = target.NextSet(i + 1) {
		ts.Add(int(i))
	}
	return ts
}

// ReachabilityDTMC returns, for every state of the deterministic matrix m,
// the probability of eventually reaching target.
func (c Checker[C]) ReachabilityDTMC(m *sparse.Matrix[C], target *bitset.BitSet) ([]C, error) {
	if !m.Deterministic() {
		return nil, fmt.Errorf("matrix has %d rows for %d states", m.Rows(), m.Groups())
	}
	n := m.Groups()
	prob0, prob1 := kripke.Prob01(graph(m), targetSet(n, target))
	out := make([]C, n)
	index := make([]int, n)
	var maybe []int
	for s := 0; s < n; s++ {
		index[s] = -1
		switch {
		case prob1.Has(s):
			out[s] = 1
		case !prob0.Has(s):
			index[s] = len(maybe)
			maybe = append(maybe, s)
		}
	}
	if len(maybe) == 0 {
		return out, nil
	}

	// (I - A) x = b over the maybe states.
	k := len(maybe)
	a := mat.NewDense(k, k, nil)
	b := mat.NewVecDense(k, nil)
	for i, s := range maybe {
		a.Set(i, i, a.At(i, i)+1)
		lo, hi := m.Row(s)
		for sl := lo; sl < hi; sl++ {
			t, v := m.Column(sl), float64(m.Value(sl))
			switch {
			case index[t] >= 0:
				a.Set(i, index[t], a.At(i, index[t])-v)
			case prob1.Has(t):
				b.SetVec(i, b.AtVec(i)+v)
			}
		}
	}
	var x mat.VecDense
	if err := x.SolveVec(a, b); err != nil {
		return nil, fmt.Errorf("solving reachability equations: %w", err)
	}
	for i, s := range maybe {
		out[s] = C(math.Min(1, math.Max(0, x.AtVec(i))))
	}
	return out, nil
}

// ReachabilityMDP returns the minimal or maximal probability of eventually
// reaching target, per state, approximated from below.
func (c Checker[C]) ReachabilityMDP(m *sparse.Matrix[C], target *bitset.BitSet, dir Direction) ([]C, error) {
	lo, _, err := c.ReachabilityMDPBounds(m, target, dir)
	return lo, err
}

// ReachabilityMDPBounds brackets the optimal reachability probability of
// every state by interval iteration. The lower iterate starts at zero and the
// upper one at one on every state that can reach target, so each iterate is a
// bound of the optimum whether or not the gap closes. Iteration stops once
// the gap is below Precision or neither iterate moves by Precision.
func (c Checker[C]) ReachabilityMDPBounds(m *sparse.Matrix[C], target *bitset.BitSet, dir Direction) (lo, hi []C, err error) {
	n := m.Groups()
	ts := targetSet(n, target)
	// States that cannot reach the target under any scheduler stay at zero.
	reach := kripke.EF{F: kripke.Atom{States: ts}}.Sat(graph(m))

	lo = make([]C, n)
	hi = make([]C, n)
	for s := 0; s < n; s++ {
		switch {
		case ts.Has(s):
			lo[s], hi[s] = 1, 1
		case reach.Has(s):
			hi[s] = 1
		}
	}
	for iter := 0; iter < c.MaxIterations; iter++ {
		var dlo, dhi, gap C
		for s := 0; s < n; s++ {
			if ts.Has(s) || !reach.Has(s) {
				continue
			}
			dlo = max(dlo, c.sweep(m, s, lo, dir))
			dhi = max(dhi, c.sweep(m, s, hi, dir))
			gap = max(gap, hi[s]-lo[s])
		}
		if gap < c.Precision || (dlo < c.Precision && dhi < c.Precision) {
			return lo, hi, nil
		}
	}
	return lo, hi, fmt.Errorf("%w after %d iterations", ErrNotConverged, c.MaxIterations)
}

// sweep applies one Bellman update to x[s] in place and returns the change.
func (c Checker[C]) sweep(m *sparse.Matrix[C], s int, x []C, dir Direction) C {
	lo, hi := m.Group(s)
	best := C(-1)
	for r := lo; r < hi; r++ {
		var v C
		slo, shi := m.Row(r)
		for sl := slo; sl < shi; sl++ {
			v += m.Value(sl) * x[m.Column(sl)]
		}
		if best < 0 || (dir == Maximize && v > best) || (dir == Minimize && v < best) {
			best = v
		}
	}
	best = max(best, 0)
	d := best - x[s]
	x[s] = best
	if d < 0 {
		return -d
	}
	return d
}
