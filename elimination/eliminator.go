package elimination

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"

	"github.com/rfielding/kripke-regions/ratfunc"
)

// InvariantError reports a broken internal invariant. It is raised with
// panic, never returned: the matrices can no longer be trusted.
type InvariantError struct {
	Op     string
	State  int
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("elimination invariant violated in %s at state %d: %s", e.Op, e.State, e.Detail)
}

// Eliminator removes states from a FlexibleMatrix one at a time while keeping
// the reachability probability of every remaining state unchanged.
type Eliminator struct {
	M       *FlexibleMatrix
	OneStep []ratfunc.Func
	// Subsystem holds the states that have not been eliminated yet.
	Subsystem *bitset.BitSet

	eliminated int
}

func NewEliminator(m *FlexibleMatrix, oneStep []ratfunc.Func, subsystem *bitset.BitSet) *Eliminator {
	return &Eliminator{M: m, OneStep: oneStep, Subsystem: subsystem}
}

// Eliminated is the number of states removed so far.
func (e *Eliminator) Eliminated() int { return e.eliminated }

// Eliminate redistributes the mass entering state over its successors and
// the target, then removes all of its edges.
func (e *Eliminator) Eliminate(state int) {
	if !e.Subsystem.Test(uint(state)) {
		panic(&InvariantError{Op: "eliminate", State: state, Detail: "state already eliminated"})
	}

	if loop, ok := e.M.Get(state, state); ok {
		e.M.Delete(state, state)
		scale, err := ratfunc.One().Div(ratfunc.One().Sub(loop))
		if err != nil {
			panic(&InvariantError{Op: "eliminate", State: state, Detail: "self-loop with probability one"})
		}
		for _, s := range e.M.Row(state) {
			e.M.Set(state, s.State, s.Weight.Mul(scale))
		}
		e.OneStep[state] = e.OneStep[state].Mul(scale)
	}

	succs := e.M.Row(state)
	for _, s := range succs {
		if !e.Subsystem.Test(uint(s.State)) {
			panic(&InvariantError{Op: "eliminate", State: state, Detail: fmt.Sprintf("edge to eliminated state %d", s.State)})
		}
	}
	target := e.OneStep[state]

	for _, p := range e.M.Column(state) {
		if !e.Subsystem.Test(uint(p.State)) {
			panic(&InvariantError{Op: "eliminate", State: state, Detail: fmt.Sprintf("edge from eliminated state %d", p.State)})
		}
		e.M.Delete(p.State, state)
		for _, s := range succs {
			e.M.Add(p.State, s.State, p.Weight.Mul(s.Weight))
		}
		if !target.IsZero() {
			e.OneStep[p.State] = e.OneStep[p.State].Add(p.Weight.Mul(target))
		}
	}

	for _, s := range succs {
		e.M.Delete(state, s.State)
	}
	e.Subsystem.Clear(uint(state))
	e.eliminated++
}
