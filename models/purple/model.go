// Package purple models the collapse of the PURPLE cipher keyspace as two
// independent channels are broken.
package purple

import (
	"github.com/rfielding/kripke-regions/model"
	"github.com/rfielding/kripke-regions/ratfunc"
)

type Model struct{}

func (Model) Name() string { return "purple" }

func (Model) OriginalText() string {
	return `Scenario: Japanese PURPLE diplomatic cipher keyspace collapse.

Each batch of intercepted traffic breaks the vowel channel with probability v
and the consonant channel with probability c, independently. Once one channel
is broken the next batch must break the other. If a batch breaks nothing the
traffic dries up and the key stays unknown.`
}

func (Model) Build() (*model.System, error) {
	sys := model.NewSystem("purple")
	sys.Params = []ratfunc.Var{"c", "v"}
	v, c := ratfunc.FromVar("v"), ratfunc.FromVar("c")
	notV, notC := ratfunc.One().Sub(v), ratfunc.One().Sub(c)

	unknown, _ := sys.AddState("UnknownKey")
	unsolved, _ := sys.AddState("Unsolved")
	vowel, _ := sys.AddState("VowelSolved")
	consonant, _ := sys.AddState("ConsonantSolved")
	unique, _ := sys.AddState("UniqueKey", "attackerKnowsKey")
	dried, _ := sys.AddState("TrafficDried")
	sys.SetInitial(unknown)

	edges := []struct {
		from, to int
		w        ratfunc.Func
	}{
		{unknown, unsolved, ratfunc.One()},
		{unsolved, unique, v.Mul(c)},
		{unsolved, vowel, v.Mul(notC)},
		{unsolved, consonant, notV.Mul(c)},
		{unsolved, dried, notV.Mul(notC)},
		{vowel, unique, c},
		{vowel, dried, notC},
		{consonant, unique, v},
		{consonant, dried, notV},
	}
	for _, e := range edges {
		if err := sys.AddTransition(e.from, e.to, e.w); err != nil {
			return nil, err
		}
	}
	return sys, sys.Validate()
}

func (Model) Properties() []model.PropertySpec {
	return []model.PropertySpec{
		{Name: "key recovered", Description: "The attacker eventually knows the key with probability at least 0.5.", Formula: `P>=0.5 [F "attackerKnowsKey"]`},
		{Name: "key safe", Description: "The key stays unknown with probability at least 0.9 (desired but false for strong attacks).", Formula: `P<=0.1 [F "attackerKnowsKey"]`},
	}
}

func (Model) Regions() []string {
	return []string{"0.1<=c<=0.2,0.1<=v<=0.2", "0.3<=c<=0.5,0.3<=v<=0.5", "0.6<=c<=0.9,0.6<=v<=0.9"}
}
