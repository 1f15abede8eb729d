package kripke

import (
	"github.com/bits-and-blooms/bitset"
)

// Qualitative analysis over the graph of a Markov chain.
// States are 0..N-1; an edge exists wherever the transition weight is not
// identically zero.

// Graph is a finite Kripke structure: states + successor relation.
type Graph struct {
	N    int
	Succ [][]int // R(s) = Succ[s]
	pred [][]int
}

func NewGraph(n int) *Graph {
	return &Graph{N: n, Succ: make([][]int, n)}
}

// AddEdge adds from -> to. Duplicate edges are harmless.
func (g *Graph) AddEdge(from, to int) {
	g.Succ[from] = append(g.Succ[from], to)
	g.pred = nil
}

// Pred returns the predecessors of s.
func (g *Graph) Pred(s int) []int {
	if g.pred == nil {
		g.pred = make([][]int, g.N)
		for from, succs := range g.Succ {
			for _, to := range succs {
				g.pred[to] = append(g.pred[to], from)
			}
		}
	}
	return g.pred[s]
}

// ----- State sets -----

// StateSet is a set of states backed by a bit set.
type StateSet struct {
	bits *bitset.BitSet
}

func NewStateSet(n int) StateSet { return StateSet{bits: bitset.New(uint(n))} }

// StatesOf builds a set from explicit members.
func StatesOf(n int, members ...int) StateSet {
	s := NewStateSet(n)
	for _, m := range members {
		s.Add(m)
	}
	return s
}

func (s StateSet) Has(id int) bool          { return s.bits.Test(uint(id)) }
func (s StateSet) Add(id int)               { s.bits.Set(uint(id)) }
func (s StateSet) Remove(id int)            { s.bits.Clear(uint(id)) }
func (s StateSet) Copy() StateSet           { return StateSet{bits: s.bits.Clone()} }
func (s StateSet) Size() int                { return int(s.bits.Count()) }
func (s StateSet) Empty() bool              { return s.bits.None() }
func (s StateSet) Bits() *bitset.BitSet     { return s.bits }
func (s StateSet) Equals(o StateSet) bool   { return s.bits.SymmetricDifferenceCardinality(o.bits) == 0 }
func (s StateSet) Union(o StateSet) StateSet { return StateSet{bits: s.bits.Union(o.bits)} }
func (s StateSet) Intersect(o StateSet) StateSet {
	return StateSet{bits: s.bits.Intersection(o.bits)}
}
func (s StateSet) Difference(o StateSet) StateSet {
	return StateSet{bits: s.bits.Difference(o.bits)}
}

// ToSlice returns the members in increasing order.
func (s StateSet) ToSlice() []int {
	out := make([]int, 0, s.bits.Count())
	for i, ok := s.bits.NextSet(0); ok; i, ok = s.bits.NextSet(i + 1) {
		out = append(out, int(i))
	}
	return out
}

// Universe builds a set containing all states in the graph.
func Universe(g *Graph) StateSet {
	u := NewStateSet(g.N)
	for s := 0; s < g.N; s++ {
		u.Add(s)
	}
	return u
}

// Pre_E returns predecessors with SOME successor in W:
// Pre_E(W) = { s | ∃ s' . R(s,s') ∧ s' ∈ W }
func Pre_E(W StateSet, g *Graph) StateSet {
	out := NewStateSet(g.N)
	for _, t := range W.ToSlice() {
		for _, s := range g.Pred(t) {
			out.Add(s)
		}
	}
	return out
}

// ----- CTL Formula AST -----

// Formula is a CTL state formula.
// Sat(g) returns the set of states satisfying the formula in graph g.
type Formula interface {
	Sat(g *Graph) StateSet
}

// Atom is a set of states where a label holds.
type Atom struct {
	States StateSet
}

func (a Atom) Sat(g *Graph) StateSet { return a.States.Copy() }

// Not: ¬φ
type Not struct {
	F Formula
}

func (n Not) Sat(g *Graph) StateSet { return Universe(g).Difference(n.F.Sat(g)) }

// And: (φ ∧ ψ)
type And struct {
	Left, Right Formula
}

func (a And) Sat(g *Graph) StateSet { return a.Left.Sat(g).Intersect(a.Right.Sat(g)) }

// EU(p, q): "there exists a path where p holds UNTIL q holds"
type EU struct {
	P, Q Formula
}

func (eu EU) Sat(g *Graph) StateSet {
	satP := eu.P.Sat(g)

	// Least fixpoint, propagated backwards from the frontier:
	// W0 = Sat(Q)
	// W_{i+1} = W_i ∪ (Sat(P) ∩ Pre_E(W_i))
	W := eu.Q.Sat(g)
	frontier := W.ToSlice()
	for len(frontier) > 0 {
		t := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]
		for _, s := range g.Pred(t) {
			if !W.Has(s) && satP.Has(s) {
				W.Add(s)
				frontier = append(frontier, s)
			}
		}
	}
	return W
}

// EF φ: "there exists a path where EVENTUALLY φ" (derived from EU)
type EF struct {
	F Formula
}

func (ef EF) Sat(g *Graph) StateSet {
	// EF φ ≡ E[ true U φ ]
	return EU{P: Atom{States: Universe(g)}, Q: ef.F}.Sat(g)
}

// SatIn evaluates a formula and asks if a given initial state satisfies it.
func SatIn(f Formula, g *Graph, init int) bool {
	return f.Sat(g).Has(init)
}

// Prob01 returns the states that reach target with probability 0 and with
// probability 1. Only the graph structure matters:
//
//	prob0 = ¬EF target
//	prob1 = ¬E[¬target U prob0]
func Prob01(g *Graph, target StateSet) (prob0, prob1 StateSet) {
	tgt := Atom{States: target}
	prob0 = Not{F: EF{F: tgt}}.Sat(g)
	prob1 = Not{F: EU{P: Not{F: tgt}, Q: Atom{States: prob0}}}.Sat(g)
	return prob0, prob1
}

// Reachable returns the states reachable from init through states in within.
// States outside within are reached but not expanded.
func Reachable(g *Graph, init StateSet, within StateSet) StateSet {
	seen := init.Copy()
	stack := init.ToSlice()
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !within.Has(s) {
			continue
		}
		for _, t := range g.Succ[s] {
			if !seen.Has(t) {
				seen.Add(t)
				stack = append(stack, t)
			}
		}
	}
	return seen
}

// Distances returns the BFS distance of every state from the set from,
// following edges forward or, when backward is set, in reverse. Unreached
// states get -1.
func Distances(g *Graph, from StateSet, backward bool) []int {
	dist := make([]int, g.N)
	for i := range dist {
		dist[i] = -1
	}
	queue := from.ToSlice()
	for _, s := range queue {
		dist[s] = 0
	}
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		next := g.Succ[s]
		if backward {
			next = g.Pred(s)
		}
		for _, t := range next {
			if dist[t] < 0 {
				dist[t] = dist[s] + 1
				queue = append(queue, t)
			}
		}
	}
	return dist
}
