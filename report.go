package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/muesli/termenv"

	"github.com/rfielding/kripke-regions/ratfunc"
	"github.com/rfielding/kripke-regions/region"
)

// Report is the outcome of one run.
type Report struct {
	RunID      string            `json:"run_id"`
	Model      string            `json:"model"`
	Property   string            `json:"property"`
	Function   string            `json:"function"`
	AllLinear  bool              `json:"all_linear"`
	Regions    []RegionReport    `json:"regions"`
	Statistics region.Statistics `json:"statistics"`
}

type RegionReport struct {
	Region        string             `json:"region"`
	Result        region.CheckResult `json:"result"`
	SatPoint      map[string]string  `json:"sat_point,omitempty"`
	ViolatedPoint map[string]string  `json:"violated_point,omitempty"`
	ProbabilityLo *float64           `json:"probability_lo,omitempty"`
	ProbabilityHi *float64           `json:"probability_hi,omitempty"`
}

func pointStrings(pt ratfunc.Point) map[string]string {
	if pt == nil {
		return nil
	}
	out := make(map[string]string, len(pt))
	for v, x := range pt {
		out[string(v)] = x.RatString()
	}
	return out
}

func newReport(modelName string, c interface {
	Function() ratfunc.Func
	AllLinear() bool
	Statistics() region.Statistics
}, property string, regions []*region.Region) Report {
	rep := Report{
		RunID:      uuid.NewString(),
		Model:      modelName,
		Property:   property,
		Function:   c.Function().String(),
		AllLinear:  c.AllLinear(),
		Statistics: c.Statistics(),
	}
	for _, r := range regions {
		lo, hi := r.ProbabilityBounds()
		rep.Regions = append(rep.Regions, RegionReport{
			Region:        r.String(),
			Result:        r.Result(),
			SatPoint:      pointStrings(r.SatPoint()),
			ViolatedPoint: pointStrings(r.ViolatedPoint()),
			ProbabilityLo: lo,
			ProbabilityHi: hi,
		})
	}
	return rep
}

func (r Report) WriteJSON(w io.Writer) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

func resultColor(out *termenv.Output, res region.CheckResult) termenv.Color {
	switch res {
	case region.AllSat:
		return out.Color("2")
	case region.AllViolated:
		return out.Color("1")
	case region.ExistsBoth:
		return out.Color("3")
	}
	return nil
}

// WriteText prints one colored line per region followed by the statistics.
func (r Report) WriteText(w io.Writer) error {
	out := termenv.NewOutput(w)
	var sb strings.Builder
	fmt.Fprintf(&sb, "Model %s, run %s\n", r.Model, r.RunID)
	fmt.Fprintf(&sb, "Property: %s\n", r.Property)
	fmt.Fprintf(&sb, "Reachability function: %s\n\n", r.Function)
	for _, reg := range r.Regions {
		name := reg.Region
		if name == "" {
			name = "(no parameters)"
		}
		res := out.String(fmt.Sprintf("%-14s", reg.Result))
		if c := resultColor(out, reg.Result); c != nil {
			res = res.Foreground(c)
		}
		fmt.Fprintf(&sb, "%s %s", res, name)
		if reg.ProbabilityLo != nil || reg.ProbabilityHi != nil {
			sb.WriteString("  P in [")
			writeBound(&sb, reg.ProbabilityLo, "?")
			sb.WriteString(", ")
			writeBound(&sb, reg.ProbabilityHi, "?")
			sb.WriteString("]")
		}
		sb.WriteString("\n")
	}
	if _, err := io.WriteString(w, sb.String()); err != nil {
		return err
	}
	_, err := r.Statistics.WriteTo(w)
	return err
}

func writeBound(sb *strings.Builder, x *float64, missing string) {
	if x == nil {
		sb.WriteString(missing)
		return
	}
	fmt.Fprintf(sb, "%.4g", *x)
}
