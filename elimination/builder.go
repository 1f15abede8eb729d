package elimination

import (
	"fmt"
	"strings"
	"time"

	"github.com/bits-and-blooms/bitset"
	"github.com/rs/zerolog"

	"github.com/rfielding/kripke-regions/kripke"
	"github.com/rfielding/kripke-regions/model"
	"github.com/rfielding/kripke-regions/numeric"
	"github.com/rfielding/kripke-regions/ratfunc"
)

// Method selects how the elimination order is derived.
type Method int

const (
	// Plain eliminates all states in priority order.
	Plain Method = iota
	// Hybrid decomposes large strongly connected components recursively and
	// eliminates small components in priority order.
	Hybrid
)

func (m Method) String() string {
	if m == Hybrid {
		return "hybrid"
	}
	return "state"
}

// ParseMethod reads "state" or "hybrid".
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(s) {
	case "state", "plain":
		return Plain, nil
	case "hybrid":
		return Hybrid, nil
	}
	return 0, fmt.Errorf("unknown elimination method %q", s)
}

// Builder computes reachability functions.
type Builder struct {
	Method   Method
	Priority Priority
	// MaxSCCSize bounds the components the hybrid method eliminates directly.
	MaxSCCSize int
	// EliminateEntryStatesLast defers the entry states of nested components
	// until every component has been treated.
	EliminateEntryStatesLast bool
	// Symbolic decides which weights are constant or affine.
	Symbolic numeric.Symbolic
	Log      zerolog.Logger
}

func NewBuilder() Builder {
	return Builder{
		Method:     Plain,
		Priority:   ForwardReversed,
		MaxSCCSize: 20,
		Symbolic:   numeric.Exact{},
		Log:        zerolog.Nop(),
	}
}

// Result is the outcome of Build.
type Result struct {
	// Function is the probability of reaching the target from the initial
	// state.
	Function ratfunc.Func
	// AllLinear is set when every weight left after the constant pre-pass is
	// affine in the parameters.
	AllLinear bool
	// Reduced is the system left after the constant pre-pass.
	Reduced *model.Reachability
	Stats   Stats
}

type Stats struct {
	ConstantStates   int
	ParametricStates int
	MaxSCCDepth      int
	FunctionSize     int
	PrepassTime      time.Duration
	EliminationTime  time.Duration
}

// Build eliminates all states of r. r itself is not modified.
func (b Builder) Build(r *model.Reachability) *Result {
	res := &Result{}
	start := time.Now()
	res.Reduced = b.eliminateConstantStates(r, &res.Stats)
	res.AllLinear = res.Reduced.AllLinear(b.symbolic())
	res.Stats.PrepassTime = time.Since(start)

	start = time.Now()
	red := res.Reduced
	n := red.N()
	sub := bitset.New(uint(n))
	for s := 0; s < n; s++ {
		sub.Set(uint(s))
	}
	el := NewEliminator(FromReachability(red), append([]ratfunc.Func(nil), red.OneStep...), sub)
	prio := priorities(red, b.Priority)

	switch b.Method {
	case Hybrid:
		h := &hybrid{b: b, el: el, g: red.Graph(), prio: prio}
		scc := kripke.NewStateSet(n)
		for s := 0; s < n; s++ {
			if s != red.Initial {
				scc.Add(s)
			}
		}
		h.treatSCC(scc, kripke.StatesOf(n, red.Initial), false, 0)
		b.Log.Debug().Int("queued", len(h.queue)).Int("depth", h.maxDepth).Msg("eliminating entry states")
		for _, s := range h.queue {
			el.Eliminate(s)
		}
		res.Stats.MaxSCCDepth = h.maxDepth
	default:
		states := make([]int, 0, n)
		for s := 0; s < n; s++ {
			if s != red.Initial {
				states = append(states, s)
			}
		}
		sortByPriority(states, prio)
		for _, s := range states {
			el.Eliminate(s)
		}
	}

	el.Eliminate(red.Initial)
	if el.M.OutDegree(red.Initial) != 0 || el.M.InDegree(red.Initial) != 0 {
		panic(&InvariantError{Op: "build", State: red.Initial, Detail: "initial state still has transitions"})
	}
	res.Function = el.OneStep[red.Initial]
	res.Stats.ParametricStates = el.Eliminated()
	res.Stats.FunctionSize = res.Function.Size()
	res.Stats.EliminationTime = time.Since(start)

	b.Log.Info().
		Stringer("method", b.Method).
		Stringer("priority", b.Priority).
		Int("constant_states", res.Stats.ConstantStates).
		Int("parametric_states", res.Stats.ParametricStates).
		Bool("linear", res.AllLinear).
		Int("function_terms", res.Stats.FunctionSize).
		Dur("elapsed", res.Stats.PrepassTime+res.Stats.EliminationTime).
		Msg("computed reachability function")
	return res
}

// eliminateConstantStates removes every non-initial state whose outgoing
// weights are all constants. This never grows symbolic expressions.
func (b Builder) eliminateConstantStates(r *model.Reachability, stats *Stats) *model.Reachability {
	n := r.N()
	m := FromReachability(r)
	oneStep := append([]ratfunc.Func(nil), r.OneStep...)
	sub := bitset.New(uint(n))
	for s := 0; s < n; s++ {
		sub.Set(uint(s))
	}
	el := NewEliminator(m, oneStep, sub)
	for s := 0; s < n; s++ {
		if s != r.Initial && constantRow(b.symbolic(), m, oneStep[s], s) {
			el.Eliminate(s)
		}
	}
	stats.ConstantStates = el.Eliminated()
	return extract(r, m, oneStep, sub)
}

func (b Builder) symbolic() numeric.Symbolic {
	if b.Symbolic == nil {
		return numeric.Exact{}
	}
	return b.Symbolic
}

func constantRow(sym numeric.Symbolic, m *FlexibleMatrix, oneStep ratfunc.Func, s int) bool {
	if !sym.IsConstant(oneStep) {
		return false
	}
	for _, e := range m.Row(s) {
		if !sym.IsConstant(e.Weight) {
			return false
		}
	}
	return true
}

// extract renumbers the states left in sub into a new system.
func extract(r *model.Reachability, m *FlexibleMatrix, oneStep []ratfunc.Func, sub *bitset.BitSet) *model.Reachability {
	index := make([]int, m.N())
	var kept []int
	for s := 0; s < m.N(); s++ {
		index[s] = -1
		if sub.Test(uint(s)) {
			index[s] = len(kept)
			kept = append(kept, s)
		}
	}
	out := &model.Reachability{
		Rows:     make([][]model.Edge, len(kept)),
		OneStep:  make([]ratfunc.Func, len(kept)),
		Initial:  index[r.Initial],
		Original: make([]int, len(kept)),
		Params:   r.Params,
		Stats:    r.Stats,
	}
	for i, s := range kept {
		for _, e := range m.Row(s) {
			if index[e.State] < 0 {
				panic(&InvariantError{Op: "extract", State: s, Detail: fmt.Sprintf("edge to eliminated state %d", e.State)})
			}
			out.Rows[i] = append(out.Rows[i], model.Edge{To: index[e.State], Weight: e.Weight})
		}
		out.OneStep[i] = oneStep[s]
		out.Original[i] = r.Original[s]
	}
	return out
}

type hybrid struct {
	b        Builder
	el       *Eliminator
	g        *kripke.Graph
	prio     []int
	queue    []int
	maxDepth int
}

// treatSCC eliminates the states of scc except its entry states. Entry
// states are eliminated afterwards, or queued, when eliminateEntries is set.
func (h *hybrid) treatSCC(scc, entries kripke.StateSet, eliminateEntries bool, level int) {
	h.maxDepth = max(h.maxDepth, level)
	interior := scc.Difference(entries)

	if scc.Size() > h.b.MaxSCCSize {
		var trivial []int
		var nested [][]int
		for _, comp := range kripke.SCCs(h.g, interior) {
			if len(comp) == 1 {
				trivial = append(trivial, comp[0])
			} else {
				nested = append(nested, comp)
			}
		}
		sortByPriority(trivial, h.prio)
		for _, s := range trivial {
			h.el.Eliminate(s)
		}
		for _, comp := range nested {
			set := kripke.StatesOf(h.g.N, comp...)
			entry := kripke.NewStateSet(h.g.N)
			for _, s := range comp {
				for _, p := range h.g.Pred(s) {
					if !set.Has(p) {
						entry.Add(s)
						break
					}
				}
			}
			if entry.Empty() {
				// Unreachable component; any state breaks the cycle.
				entry.Add(comp[0])
			}
			h.treatSCC(set, entry, true, level+1)
		}
	} else {
		states := interior.ToSlice()
		sortByPriority(states, h.prio)
		for _, s := range states {
			h.el.Eliminate(s)
		}
	}

	if !eliminateEntries {
		return
	}
	states := entries.Intersect(scc).ToSlice()
	sortByPriority(states, h.prio)
	if h.b.EliminateEntryStatesLast {
		h.queue = append(h.queue, states...)
		return
	}
	for _, s := range states {
		h.el.Eliminate(s)
	}
}
