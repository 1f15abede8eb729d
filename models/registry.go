// Package models lists the built-in parametric chains.
package models

import (
	"fmt"
	"sort"

	"github.com/maruel/natural"

	"github.com/rfielding/kripke-regions/model"
	"github.com/rfielding/kripke-regions/models/die"
	"github.com/rfielding/kripke-regions/models/mm1"
	"github.com/rfielding/kripke-regions/models/purple"
	"github.com/rfielding/kripke-regions/models/random"
	"github.com/rfielding/kripke-regions/models/twostate"
)

var registry = map[string]model.ModelSpec{}

func register(m model.ModelSpec) { registry[m.Name()] = m }

func init() {
	register(twostate.Model{})
	register(die.Model{})
	register(mm1.Model{})
	register(purple.Model{})
	register(random.Model{Options: random.DefaultOptions()})
}

// Names returns the registered model names in natural order.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return natural.Less(out[i], out[j]) })
	return out
}

// Lookup returns the model registered under name.
func Lookup(name string) (model.ModelSpec, error) {
	m, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown model %q (have %v)", name, Names())
	}
	return m, nil
}
