// Package random generates parametric chains for property tests and
// benchmarks.
package random

import (
	"fmt"
	"math/big"
	"math/rand"

	"github.com/rfielding/kripke-regions/model"
	"github.com/rfielding/kripke-regions/ratfunc"
)

// Options controls the shape of generated chains.
type Options struct {
	Seed   int64
	States int
	Params []ratfunc.Var
	// NonLinear lets weights use products of two parameters.
	NonLinear bool
	// ConstantShare is the fraction of states with constant weights.
	ConstantShare float64
}

func DefaultOptions() Options {
	return Options{Seed: 1, States: 8, Params: []ratfunc.Var{"p", "q"}, ConstantShare: 0.25}
}

// Generate builds a chain over states s0..s{n-1} plus an absorbing "goal"
// (labelled target) and an absorbing "sink". Every transient state splits
// its mass as c*f, c*(1-f) and 1-c where f is a parameter (or a product of
// two) and c is a constant in [0.5, 0.9]. The 1-c share always moves to goal
// or sink, so every weight is a probability for parameters in [0,1] and no
// set of transient states is closed.
func Generate(o Options) *model.System {
	rng := rand.New(rand.NewSource(o.Seed))
	sys := model.NewSystem(fmt.Sprintf("random-%d", o.Seed))
	sys.Params = append([]ratfunc.Var(nil), o.Params...)
	ratfunc.SortVars(sys.Params)

	for i := 0; i < o.States; i++ {
		sys.AddState(fmt.Sprintf("s%d", i))
	}
	goal, _ := sys.AddState("goal", "target")
	sink, _ := sys.AddState("sink")
	sys.SetInitial(0)

	for s := 0; s < o.States; s++ {
		c := ratfunc.FromRat(big.NewRat(int64(5+rng.Intn(5)), 10))
		var f ratfunc.Func
		switch {
		case len(o.Params) == 0 || rng.Float64() < o.ConstantShare:
			f = ratfunc.FromRat(big.NewRat(int64(1+rng.Intn(9)), 10))
		case o.NonLinear && len(o.Params) > 1 && rng.Intn(2) == 0:
			f = ratfunc.FromVar(o.Params[rng.Intn(len(o.Params))]).Mul(ratfunc.FromVar(o.Params[rng.Intn(len(o.Params))]))
		default:
			f = ratfunc.FromVar(o.Params[rng.Intn(len(o.Params))])
		}
		a := rng.Intn(o.States + 2)
		b := rng.Intn(o.States + 2)
		exit := goal
		if rng.Intn(2) == 0 {
			exit = sink
		}
		sys.AddTransition(s, a, c.Mul(f))
		sys.AddTransition(s, b, c.Mul(ratfunc.One().Sub(f)))
		sys.AddTransition(s, exit, ratfunc.One().Sub(c))
	}
	return sys
}

// Model exposes the default generator through model.ModelSpec.
type Model struct {
	Options Options
}

func (Model) Name() string { return "random" }

func (m Model) OriginalText() string {
	return fmt.Sprintf("Random parametric chain with %d transient states over %v (seed %d).",
		m.Options.States, m.Options.Params, m.Options.Seed)
}

func (m Model) Build() (*model.System, error) {
	sys := Generate(m.Options)
	return sys, sys.Validate()
}

func (Model) Properties() []model.PropertySpec {
	return []model.PropertySpec{
		{Name: "goal likely", Description: "The goal is reached with probability at least one half.", Formula: `P>=0.5 [F "target"]`},
	}
}

func (Model) Regions() []string {
	return []string{"0.1<=p<=0.3,0.1<=q<=0.3", "0.4<=p<=0.6,0.4<=q<=0.6", "0.7<=p<=0.9,0.7<=q<=0.9"}
}
