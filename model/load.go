package model

import (
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/rfielding/kripke-regions/ratfunc"
)

// Document is the YAML form of a System:
//
//	name: two-state
//	parameters: [p]
//	states:
//	  - name: s0
//	    initial: true
//	    transitions:
//	      - {to: s1, weight: p}
//	      - {to: sink, weight: 1-p}
//	  - name: s1
//	    labels: [target]
//	  - name: sink
type Document struct {
	Name       string          `yaml:"name"`
	Parameters []string        `yaml:"parameters"`
	States     []StateDocument `yaml:"states"`
}

type StateDocument struct {
	Name        string               `yaml:"name"`
	Initial     bool                 `yaml:"initial,omitempty"`
	Labels      []string             `yaml:"labels,omitempty"`
	Transitions []TransitionDocument `yaml:"transitions,omitempty"`
}

// TransitionDocument carries its weight as an expression; plain YAML numbers
// are accepted as well.
type TransitionDocument struct {
	To     string `yaml:"to"`
	Weight any    `yaml:"weight"`
}

// Load reads and validates a YAML model.
func Load(r io.Reader) (*System, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding model: %w", err)
	}
	return doc.System()
}

// LoadFile reads a YAML model from disk.
func LoadFile(path string) (*System, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	sys, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sys, nil
}

// System builds and validates the system described by the document.
func (d *Document) System() (*System, error) {
	sys := NewSystem(d.Name)
	for _, p := range d.Parameters {
		sys.Params = append(sys.Params, ratfunc.Var(p))
	}
	ratfunc.SortVars(sys.Params)

	var initial []int
	for _, st := range d.States {
		id, err := sys.AddState(st.Name, st.Labels...)
		if err != nil {
			return nil, err
		}
		if st.Initial {
			initial = append(initial, id)
		}
	}
	sys.SetInitial(initial...)

	for _, st := range d.States {
		from, _ := sys.StateIndex(st.Name)
		for _, tr := range st.Transitions {
			to, err := sys.StateIndex(tr.To)
			if err != nil {
				return nil, fmt.Errorf("state %s: %w", st.Name, err)
			}
			w, err := ratfunc.Parse(fmt.Sprint(tr.Weight))
			if err != nil {
				return nil, fmt.Errorf("state %s -> %s: %w", st.Name, tr.To, err)
			}
			if err := sys.AddTransition(from, to, w); err != nil {
				return nil, err
			}
		}
	}
	if err := sys.Validate(); err != nil {
		return nil, err
	}
	return sys, nil
}

// Document returns the YAML form of the system.
func (s *System) Document() *Document {
	d := &Document{Name: s.Name}
	for _, p := range s.Params {
		d.Parameters = append(d.Parameters, string(p))
	}
	isInitial := make(map[int]bool, len(s.Initial))
	for _, i := range s.Initial {
		isInitial[i] = true
	}
	for id, name := range s.States {
		st := StateDocument{Name: name, Initial: isInitial[id], Labels: s.Labels(id)}
		for _, e := range s.Rows[id] {
			st.Transitions = append(st.Transitions, TransitionDocument{To: s.States[e.To], Weight: e.Weight.String()})
		}
		d.States = append(d.States, st)
	}
	return d
}

// Marshal encodes the system as YAML.
func (s *System) Marshal() ([]byte, error) {
	return yaml.Marshal(s.Document())
}
