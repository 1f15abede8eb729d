package kripke

import (
	"fmt"
	"io"
	"strings"
)

// DiagramStyle names states and labels nodes and edges when rendering a
// graph. Nil callbacks fall back to state numbers and unlabeled edges.
type DiagramStyle struct {
	StateName func(s int) string
	NodeNote  func(s int) []string
	EdgeLabel func(from, to int) string
}

func (d DiagramStyle) name(s int) string {
	if d.StateName == nil {
		return fmt.Sprintf("s%d", s)
	}
	return d.StateName(s)
}

func (d DiagramStyle) edge(from, to int) string {
	if d.EdgeLabel == nil {
		return ""
	}
	return d.EdgeLabel(from, to)
}

// WriteMermaidStateDiagram writes a Mermaid stateDiagram-v2 representation
// of the given graph to w. "initial" is the starting state.
func WriteMermaidStateDiagram(g *Graph, initial int, style DiagramStyle, w io.Writer) error {
	var sb strings.Builder
	sb.WriteString("stateDiagram-v2\n")
	fmt.Fprintf(&sb, "  [*] --> %s\n\n", style.name(initial))

	seenEdge := make(map[[2]int]bool)
	for from := 0; from < g.N; from++ {
		for _, to := range g.Succ[from] {
			key := [2]int{from, to}
			if seenEdge[key] {
				continue
			}
			seenEdge[key] = true
			if l := style.edge(from, to); l != "" {
				fmt.Fprintf(&sb, "  %s --> %s : %s\n", style.name(from), style.name(to), l)
			} else {
				fmt.Fprintf(&sb, "  %s --> %s\n", style.name(from), style.name(to))
			}
		}
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// WriteGraphviz writes a Graphviz DOT representation of the graph to w.
func WriteGraphviz(g *Graph, initial int, style DiagramStyle, w io.Writer) error {
	var sb strings.Builder
	sb.WriteString("digraph MarkovChain {\n")
	sb.WriteString("  rankdir=LR;\n")
	sb.WriteString("  node [shape=circle];\n\n")

	// Invisible start node pointing to initial state
	sb.WriteString("  start [shape=point];\n")
	fmt.Fprintf(&sb, "  start -> %q;\n\n", style.name(initial))

	for s := 0; s < g.N; s++ {
		var notes []string
		if style.NodeNote != nil {
			notes = style.NodeNote(s)
		}
		if len(notes) > 0 {
			fmt.Fprintf(&sb, "  %q [label=\"%s\\n{%s}\"];\n", style.name(s), style.name(s), strings.Join(notes, ", "))
		} else {
			fmt.Fprintf(&sb, "  %q;\n", style.name(s))
		}
	}
	sb.WriteString("\n")

	for from := 0; from < g.N; from++ {
		for _, to := range g.Succ[from] {
			if l := style.edge(from, to); l != "" {
				fmt.Fprintf(&sb, "  %q -> %q [label=%q];\n", style.name(from), style.name(to), l)
			} else {
				fmt.Fprintf(&sb, "  %q -> %q;\n", style.name(from), style.name(to))
			}
		}
	}
	sb.WriteString("}\n")
	_, err := io.WriteString(w, sb.String())
	return err
}
