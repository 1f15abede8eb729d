// Package model holds parametric Markov chains as they are read from model
// files, and reduces them to the maybe-state systems consumed by elimination.
package model

import (
	"errors"
	"fmt"
	"sort"

	"github.com/rfielding/kripke-regions/kripke"
	"github.com/rfielding/kripke-regions/ratfunc"
)

var (
	ErrInitialStates       = errors.New("model must have exactly one initial state")
	ErrUnknownLabel        = errors.New("unknown label")
	ErrUnknownState        = errors.New("unknown state")
	ErrNotStochastic       = errors.New("outgoing weights do not sum to one")
	ErrUndeclaredParameter = errors.New("undeclared parameter")
	ErrDuplicateState      = errors.New("duplicate state")
	errNegativeStateIndex  = errors.New("negative state index")
)

// Edge is a weighted transition to state To.
type Edge struct {
	To     int
	Weight ratfunc.Func
}

// System is a parametric DTMC. States without outgoing edges are absorbing.
type System struct {
	Name    string
	States  []string
	Rows    [][]Edge
	Initial []int
	// Params lists the declared parameters in natural order.
	Params []ratfunc.Var

	labels map[string][]int
	index  map[string]int
}

func NewSystem(name string) *System {
	return &System{
		Name:   name,
		labels: make(map[string][]int),
		index:  make(map[string]int),
	}
}

// AddState adds a named state and returns its index.
func (s *System) AddState(name string, labels ...string) (int, error) {
	if _, ok := s.index[name]; ok {
		return 0, fmt.Errorf("%w: %s", ErrDuplicateState, name)
	}
	id := len(s.States)
	s.States = append(s.States, name)
	s.Rows = append(s.Rows, nil)
	s.index[name] = id
	for _, l := range labels {
		s.labels[l] = append(s.labels[l], id)
	}
	return id, nil
}

// StateIndex looks up a state by name.
func (s *System) StateIndex(name string) (int, error) {
	id, ok := s.index[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownState, name)
	}
	return id, nil
}

// AddTransition adds w to the edge from -> to.
func (s *System) AddTransition(from, to int, w ratfunc.Func) error {
	if from < 0 || to < 0 {
		return errNegativeStateIndex
	}
	if from >= len(s.States) || to >= len(s.States) {
		return fmt.Errorf("%w: transition %d -> %d", ErrUnknownState, from, to)
	}
	row := s.Rows[from]
	for i := range row {
		if row[i].To == to {
			row[i].Weight = row[i].Weight.Add(w)
			return nil
		}
	}
	s.Rows[from] = append(row, Edge{To: to, Weight: w})
	return nil
}

// SetInitial replaces the initial states.
func (s *System) SetInitial(states ...int) { s.Initial = append([]int(nil), states...) }

// LabelNames returns all label names, sorted.
func (s *System) LabelNames() []string {
	out := make([]string, 0, len(s.labels))
	for l := range s.labels {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Labels returns the labels of one state.
func (s *System) Labels(state int) []string {
	var out []string
	for _, l := range s.LabelNames() {
		for _, m := range s.labels[l] {
			if m == state {
				out = append(out, l)
				break
			}
		}
	}
	return out
}

// Label returns the states carrying a label.
func (s *System) Label(name string) (kripke.StateSet, error) {
	members, ok := s.labels[name]
	if !ok {
		return kripke.StateSet{}, fmt.Errorf("%w: %q", ErrUnknownLabel, name)
	}
	return kripke.StatesOf(len(s.States), members...), nil
}

// Graph returns the transition graph over the non-zero weights.
func (s *System) Graph() *kripke.Graph {
	g := kripke.NewGraph(len(s.States))
	for from, row := range s.Rows {
		for _, e := range row {
			if !e.Weight.IsZero() {
				g.AddEdge(from, e.To)
			}
		}
	}
	return g
}

// Vars returns the parameters occurring in transition weights.
func (s *System) Vars() []ratfunc.Var {
	set := make(map[ratfunc.Var]struct{})
	for _, row := range s.Rows {
		for _, e := range row {
			e.Weight.GatherVars(set)
		}
	}
	return ratfunc.SortedVars(set)
}

// Validate checks that every non-absorbing row sums to one symbolically and
// that all occurring parameters are declared.
func (s *System) Validate() error {
	for from, row := range s.Rows {
		if len(row) == 0 {
			continue
		}
		sum := ratfunc.Zero()
		for _, e := range row {
			sum = sum.Add(e.Weight)
		}
		if !sum.IsOne() {
			return fmt.Errorf("%w: state %s sums to %s", ErrNotStochastic, s.States[from], sum)
		}
	}
	if len(s.Params) == 0 {
		s.Params = s.Vars()
		return nil
	}
	declared := make(map[ratfunc.Var]bool, len(s.Params))
	for _, p := range s.Params {
		declared[p] = true
	}
	for _, v := range s.Vars() {
		if !declared[v] {
			return fmt.Errorf("%w: %s", ErrUndeclaredParameter, v)
		}
	}
	return nil
}
