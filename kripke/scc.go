package kripke

import (
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// SCCs decomposes the subgraph induced by within into strongly connected
// components. Each component is sorted; components are ordered by their
// smallest member.
func SCCs(g *Graph, within StateSet) [][]int {
	dg := simple.NewDirectedGraph()
	members := within.ToSlice()
	for _, s := range members {
		dg.AddNode(simple.Node(s))
	}
	for _, s := range members {
		for _, t := range g.Succ[s] {
			if t == s || !within.Has(t) {
				continue
			}
			dg.SetEdge(dg.NewEdge(simple.Node(s), simple.Node(t)))
		}
	}

	var out [][]int
	for _, comp := range topo.TarjanSCC(dg) {
		states := make([]int, len(comp))
		for i, n := range comp {
			states[i] = int(n.ID())
		}
		sort.Ints(states)
		out = append(out, states)
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}
