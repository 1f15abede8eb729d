// Package twostate is the smallest parametric chain: one coin flip decides
// whether the target is reached.
package twostate

import (
	"github.com/rfielding/kripke-regions/model"
	"github.com/rfielding/kripke-regions/ratfunc"
)

type Model struct{}

func (Model) Name() string { return "twostate" }

func (Model) OriginalText() string {
	return "From the initial state the target is reached with probability p and a sink with probability 1-p."
}

func (Model) Build() (*model.System, error) {
	sys := model.NewSystem("twostate")
	s0, _ := sys.AddState("s0")
	s1, _ := sys.AddState("s1", "target")
	sink, _ := sys.AddState("sink")
	sys.SetInitial(s0)
	p := ratfunc.FromVar("p")
	if err := sys.AddTransition(s0, s1, p); err != nil {
		return nil, err
	}
	if err := sys.AddTransition(s0, sink, ratfunc.One().Sub(p)); err != nil {
		return nil, err
	}
	return sys, sys.Validate()
}

func (Model) Properties() []model.PropertySpec {
	return []model.PropertySpec{
		{Name: "target", Description: "The target is reached with probability at least 0.2.", Formula: `P>=0.2 [F "target"]`},
		{Name: "coin", Description: "The target is reached with probability at least one half.", Formula: `P>=0.5 [F "target"]`},
	}
}

func (Model) Regions() []string {
	return []string{"0.3<=p<=0.6", "0<=p<=1", "0<=p<=0.1"}
}
