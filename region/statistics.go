package region

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// Statistics counts what the checker did and how long it took.
type Statistics struct {
	ModelStates        int
	ModelTransitions   int
	ReducedStates      int
	ReducedTransitions int
	Property           string
	AllLinear          bool
	FunctionSize       int
	CachedFunction     bool

	CheckedRegions int
	AllSat         int
	AllViolated    int
	ExistsBoth     int

	SolvedByApproximation int
	SolvedBySampling      int
	SolvedBySmt           int
	SolverRestarts        int
	// MissingWitnesses counts regions set to EXISTSBOTH by the solver
	// without a witness point.
	MissingWitnesses int

	Preprocessing time.Duration
	Elimination   time.Duration
	ShadowBuild   time.Duration
	CheckRegion   time.Duration
	Approximation time.Duration
	Sampling      time.Duration
	Smt           time.Duration
}

// Solved counts the regions with a conclusive result.
func (s Statistics) Solved() int { return s.AllSat + s.AllViolated + s.ExistsBoth }

func (s Statistics) Unsolved() int { return s.CheckedRegions - s.Solved() }

func (s Statistics) percent(n int) int {
	if s.CheckedRegions == 0 {
		return 0
	}
	return n * 100 / s.CheckedRegions
}

func ms(d time.Duration) int64 { return d.Milliseconds() }

// WriteTo writes the statistics block.
func (s Statistics) WriteTo(w io.Writer) (int64, error) {
	var sb strings.Builder
	linear := "Not all"
	if s.AllLinear {
		linear = "All"
	}
	fmt.Fprintf(&sb, "\nRegion model checker statistics:\n")
	fmt.Fprintf(&sb, "-----------------------------------------------\n")
	fmt.Fprintf(&sb, "Model: %d states, %d transitions.\n", s.ModelStates, s.ModelTransitions)
	fmt.Fprintf(&sb, "Reduced model: %d states, %d transitions.\n", s.ReducedStates, s.ReducedTransitions)
	fmt.Fprintf(&sb, "Formula: %s\n", s.Property)
	fmt.Fprintf(&sb, "%s occurring functions in the model are linear.\n", linear)
	fmt.Fprintf(&sb, "Reachability function: %d terms", s.FunctionSize)
	if s.CachedFunction {
		sb.WriteString(" (cached)")
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Number of checked regions: %d\n", s.CheckedRegions)
	fmt.Fprintf(&sb, "  Number of solved regions: %d (%d%%)\n", s.Solved(), s.percent(s.Solved()))
	fmt.Fprintf(&sb, "    AllSat:      %d (%d%%)\n", s.AllSat, s.percent(s.AllSat))
	fmt.Fprintf(&sb, "    AllViolated: %d (%d%%)\n", s.AllViolated, s.percent(s.AllViolated))
	fmt.Fprintf(&sb, "    ExistsBoth:  %d (%d%%)\n", s.ExistsBoth, s.percent(s.ExistsBoth))
	fmt.Fprintf(&sb, "    Unsolved:    %d (%d%%)\n", s.Unsolved(), s.percent(s.Unsolved()))
	fmt.Fprintf(&sb, "  --\n")
	fmt.Fprintf(&sb, "  %d regions solved through approximation\n", s.SolvedByApproximation)
	fmt.Fprintf(&sb, "  %d regions solved through sampling\n", s.SolvedBySampling)
	fmt.Fprintf(&sb, "  %d regions solved through SMT\n", s.SolvedBySmt)
	if s.SolverRestarts > 0 {
		fmt.Fprintf(&sb, "  %d solver restarts\n", s.SolverRestarts)
	}
	fmt.Fprintf(&sb, "\nRunning times:\n")
	fmt.Fprintf(&sb, "  %dms overall\n", ms(s.Preprocessing+s.CheckRegion))
	fmt.Fprintf(&sb, "  %dms preprocessing including...\n", ms(s.Preprocessing))
	fmt.Fprintf(&sb, "    %dms to compute the reachability function\n", ms(s.Elimination))
	fmt.Fprintf(&sb, "    %dms to build the shadow models\n", ms(s.ShadowBuild))
	fmt.Fprintf(&sb, "  %dms region check including...\n", ms(s.CheckRegion))
	fmt.Fprintf(&sb, "    %dms approximation\n", ms(s.Approximation))
	fmt.Fprintf(&sb, "    %dms sampling\n", ms(s.Sampling))
	fmt.Fprintf(&sb, "    %dms SMT solving\n", ms(s.Smt))
	fmt.Fprintf(&sb, "-----------------------------------------------\n")
	n, err := io.WriteString(w, sb.String())
	return int64(n), err
}

// Metric is one named counter of a statistics table.
type Metric struct {
	Name        string
	Value       float64
	Unit        string
	Description string
}

// Metrics lists the counters of s.
func (s Statistics) Metrics() []Metric {
	out := []Metric{
		{"checked_regions", float64(s.CheckedRegions), "regions", "regions checked"},
		{"all_sat", float64(s.AllSat), "regions", "property holds everywhere"},
		{"all_violated", float64(s.AllViolated), "regions", "property fails everywhere"},
		{"exists_both", float64(s.ExistsBoth), "regions", "both outcomes occur"},
		{"unsolved", float64(s.Unsolved()), "regions", "no conclusive result"},
		{"solved_approximation", float64(s.SolvedByApproximation), "regions", "solved by probability bounds"},
		{"solved_sampling", float64(s.SolvedBySampling), "regions", "solved by vertex samples"},
		{"solved_smt", float64(s.SolvedBySmt), "regions", "solved by the solver"},
		{"solver_restarts", float64(s.SolverRestarts), "restarts", "solver contexts recreated"},
		{"function_size", float64(s.FunctionSize), "terms", "terms of the reachability function"},
		{"time_preprocessing", float64(ms(s.Preprocessing)), "ms", "preprocessing and elimination"},
		{"time_check", float64(ms(s.CheckRegion)), "ms", "region checks"},
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// MetricsTable renders the counters as a markdown table.
func (s Statistics) MetricsTable() string {
	var sb strings.Builder
	sb.WriteString("| Metric | Value | Unit | Description |\n")
	sb.WriteString("|--------|-------|------|-------------|\n")
	for _, m := range s.Metrics() {
		fmt.Fprintf(&sb, "| %s | %.0f | %s | %s |\n", m.Name, m.Value, m.Unit, m.Description)
	}
	return sb.String()
}
