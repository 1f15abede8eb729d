package elimination

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rfielding/kripke-regions/kripke"
	"github.com/rfielding/kripke-regions/model"
)

// Priority selects the order in which states are eliminated. States with a
// lower priority value go first.
type Priority int

const (
	// StaticPenalty prefers states with few predecessors times successors,
	// which bounds the fill-in of each step.
	StaticPenalty Priority = iota
	// Forward eliminates states close to the initial state first.
	Forward
	ForwardReversed
	// Backward eliminates states close to the target first.
	Backward
	BackwardReversed
)

var priorityNames = map[Priority]string{
	StaticPenalty:    "penalty",
	Forward:          "fw",
	ForwardReversed:  "fwrev",
	Backward:         "bw",
	BackwardReversed: "bwrev",
}

func (p Priority) String() string {
	if s, ok := priorityNames[p]; ok {
		return s
	}
	return fmt.Sprintf("Priority(%d)", int(p))
}

// ParsePriority reads the names printed by String.
func ParsePriority(s string) (Priority, error) {
	for p, name := range priorityNames {
		if strings.EqualFold(name, s) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown elimination priority %q", s)
}

// priorities assigns every state of r a priority value.
func priorities(r *model.Reachability, p Priority) []int {
	n := r.N()
	g := r.Graph()
	out := make([]int, n)
	switch p {
	case Forward, ForwardReversed:
		dist := kripke.Distances(g, kripke.StatesOf(n, r.Initial), false)
		fill(out, dist, n, p == ForwardReversed)
	case Backward, BackwardReversed:
		targets := kripke.NewStateSet(n)
		for s, w := range r.OneStep {
			if !w.IsZero() {
				targets.Add(s)
			}
		}
		dist := kripke.Distances(g, targets, true)
		fill(out, dist, n, p == BackwardReversed)
	default:
		for s := 0; s < n; s++ {
			out[s] = len(g.Pred(s)) * len(g.Succ[s])
		}
	}
	return out
}

// fill maps BFS distances to priorities; unreached states go last.
func fill(out, dist []int, n int, reversed bool) {
	for s, d := range dist {
		switch {
		case d < 0:
			out[s] = 2 * n
		case reversed:
			out[s] = n - d
		default:
			out[s] = d
		}
	}
}

// sortByPriority orders states by priority, ties by index.
func sortByPriority(states []int, prio []int) {
	sort.SliceStable(states, func(i, j int) bool {
		a, b := states[i], states[j]
		if prio[a] != prio[b] {
			return prio[a] < prio[b]
		}
		return a < b
	})
}
