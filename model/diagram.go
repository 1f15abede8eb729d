package model

import (
	"io"

	"github.com/rfielding/kripke-regions/kripke"
)

func (s *System) diagramStyle() kripke.DiagramStyle {
	return kripke.DiagramStyle{
		StateName: func(i int) string { return s.States[i] },
		NodeNote:  s.Labels,
		EdgeLabel: func(from, to int) string {
			for _, e := range s.Rows[from] {
				if e.To == to {
					return e.Weight.String()
				}
			}
			return ""
		},
	}
}

func (s *System) initialState() int {
	if len(s.Initial) == 0 {
		return 0
	}
	return s.Initial[0]
}

// WriteMermaid renders the chain as a Mermaid state diagram with weights on
// the edges.
func (s *System) WriteMermaid(w io.Writer) error {
	return kripke.WriteMermaidStateDiagram(s.Graph(), s.initialState(), s.diagramStyle(), w)
}

// WriteDOT renders the chain in Graphviz syntax.
func (s *System) WriteDOT(w io.Writer) error {
	return kripke.WriteGraphviz(s.Graph(), s.initialState(), s.diagramStyle(), w)
}
