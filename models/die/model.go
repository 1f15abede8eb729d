// Package die is the Knuth-Yao die driven by a coin of unknown bias.
package die

import (
	"github.com/rfielding/kripke-regions/model"
	"github.com/rfielding/kripke-regions/ratfunc"
)

type Model struct{}

func (Model) Name() string { return "die" }

func (Model) OriginalText() string {
	return "Knuth-Yao simulation of a six-sided die with a coin that shows heads with probability p. " +
		"For a fair coin each face has probability 1/6."
}

var faces = []string{"one", "two", "three", "four", "five", "six"}

func (Model) Build() (*model.System, error) {
	sys := model.NewSystem("die")
	p := ratfunc.FromVar("p")
	q := ratfunc.One().Sub(p)

	s := make([]int, 7)
	for i := range s {
		s[i], _ = sys.AddState("s" + string(rune('0'+i)))
	}
	d := make([]int, 6)
	for i, f := range faces {
		d[i], _ = sys.AddState("d"+string(rune('1'+i)), f)
	}
	sys.SetInitial(s[0])

	flips := [][2]int{
		{s[1], s[2]},
		{s[3], s[4]},
		{s[5], s[6]},
		{s[1], d[0]},
		{d[1], d[2]},
		{d[3], d[4]},
		{s[2], d[5]},
	}
	for from, to := range flips {
		if err := sys.AddTransition(s[from], to[0], p); err != nil {
			return nil, err
		}
		if err := sys.AddTransition(s[from], to[1], q); err != nil {
			return nil, err
		}
	}
	return sys, sys.Validate()
}

func (Model) Properties() []model.PropertySpec {
	return []model.PropertySpec{
		{Name: "fair one", Description: "Face one appears with probability at most 1/6.", Formula: `P<=1/6 [F "one"]`},
		{Name: "six likely", Description: "Face six appears with probability above 0.2.", Formula: `P>0.2 [F "six"]`},
	}
}

func (Model) Regions() []string {
	return []string{"0.1<=p<=0.3", "0.4<=p<=0.5", "0.5<=p<=0.6", "0.7<=p<=0.9"}
}
