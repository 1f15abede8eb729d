// Package region classifies boxes of parameter values against a bounded
// reachability property.
package region

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/rfielding/kripke-regions/ratfunc"
)

var (
	// ErrMissingBound is returned when a parameter lacks a lower or an upper
	// bound.
	ErrMissingBound = errors.New("missing bound")
	// ErrInvalidBounds is returned when a lower bound exceeds its upper bound.
	ErrInvalidBounds = errors.New("lower bound exceeds upper bound")
	// ErrForbiddenTransition is returned when a check result would move
	// backwards or sideways in the result lattice.
	ErrForbiddenTransition = errors.New("forbidden check result transition")
	// ErrNotLinear is returned when the approximation is requested for a
	// system with non-affine weights.
	ErrNotLinear = errors.New("approximation requires affine weights")
)

// CheckResult is the knowledge about a region. Results only move forward:
//
//	Unknown -> ExistsSat      -> ExistsBoth | AllSat
//	Unknown -> ExistsViolated -> ExistsBoth | AllViolated
//	Unknown -> AllSat | AllViolated | ExistsBoth
type CheckResult int

const (
	Unknown CheckResult = iota
	ExistsSat
	ExistsViolated
	ExistsBoth
	AllSat
	AllViolated
)

func (r CheckResult) String() string {
	switch r {
	case ExistsSat:
		return "EXISTSSAT"
	case ExistsViolated:
		return "EXISTSVIOLATED"
	case ExistsBoth:
		return "EXISTSBOTH"
	case AllSat:
		return "ALLSAT"
	case AllViolated:
		return "ALLVIOLATED"
	}
	return "UNKNOWN"
}

// Conclusive reports whether no further check can refine r.
func (r CheckResult) Conclusive() bool {
	return r == ExistsBoth || r == AllSat || r == AllViolated
}

// CanBecome reports whether moving from r to next is allowed.
func (r CheckResult) CanBecome(next CheckResult) bool {
	if r == next {
		return true
	}
	switch r {
	case Unknown:
		return true
	case ExistsSat:
		return next == ExistsBoth || next == AllSat
	case ExistsViolated:
		return next == ExistsBoth || next == AllViolated
	}
	return false
}

func (r CheckResult) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *CheckResult) UnmarshalText(b []byte) error {
	for c := Unknown; c <= AllViolated; c++ {
		if c.String() == string(b) {
			*r = c
			return nil
		}
	}
	return fmt.Errorf("unknown check result %q", b)
}

// Region is an axis-aligned box of parameter values with its check result
// and witness points.
type Region struct {
	vars         []ratfunc.Var
	lower, upper ratfunc.Point

	result        CheckResult
	satPoint      ratfunc.Point
	violatedPoint ratfunc.Point

	// Probability bounds computed by the approximation, if any.
	probLo, probHi *float64
}

// New creates a region from its bounds. Both maps must have the same keys and
// lower[v] <= upper[v] for every key. The maps are copied.
func New(lower, upper ratfunc.Point) (*Region, error) {
	r := &Region{lower: make(ratfunc.Point, len(lower)), upper: make(ratfunc.Point, len(upper))}
	for v, lo := range lower {
		hi, ok := upper[v]
		if !ok {
			return nil, fmt.Errorf("%w: no upper bound for %s", ErrMissingBound, v)
		}
		if lo.Cmp(hi) > 0 {
			return nil, fmt.Errorf("%w: %s <= %s <= %s", ErrInvalidBounds, lo.RatString(), v, hi.RatString())
		}
		r.vars = append(r.vars, v)
		r.lower[v] = new(big.Rat).Set(lo)
		r.upper[v] = new(big.Rat).Set(hi)
	}
	for v := range upper {
		if _, ok := lower[v]; !ok {
			return nil, fmt.Errorf("%w: no lower bound for %s", ErrMissingBound, v)
		}
	}
	ratfunc.SortVars(r.vars)
	return r, nil
}

// MustNew is New that panics on error.
func MustNew(lower, upper ratfunc.Point) *Region {
	r, err := New(lower, upper)
	if err != nil {
		panic(err)
	}
	return r
}

// Vars returns the parameters of r in natural order.
func (r *Region) Vars() []ratfunc.Var { return append([]ratfunc.Var(nil), r.vars...) }

func (r *Region) Lower(v ratfunc.Var) (*big.Rat, bool) {
	x, ok := r.lower[v]
	return x, ok
}

func (r *Region) Upper(v ratfunc.Var) (*big.Rat, bool) {
	x, ok := r.upper[v]
	return x, ok
}

// LowerBounds and UpperBounds return the bound maps. Callers must not modify
// them.
func (r *Region) LowerBounds() ratfunc.Point { return r.lower }

func (r *Region) UpperBounds() ratfunc.Point { return r.upper }

// Box returns r as interval enclosures.
func (r *Region) Box() ratfunc.Box {
	b := make(ratfunc.Box, len(r.vars))
	for _, v := range r.vars {
		b[v] = ratfunc.Interval{Lo: r.lower[v], Hi: r.upper[v]}
	}
	return b
}

func (r *Region) Result() CheckResult { return r.result }

// SatPoint returns a point satisfying the property, or nil.
func (r *Region) SatPoint() ratfunc.Point { return r.satPoint }

// ViolatedPoint returns a point violating the property, or nil.
func (r *Region) ViolatedPoint() ratfunc.Point { return r.violatedPoint }

// ProbabilityBounds returns the bounds on the reachability probability found
// by the approximation. Missing bounds are nil.
func (r *Region) ProbabilityBounds() (lo, hi *float64) { return r.probLo, r.probHi }

func (r *Region) setResult(next CheckResult) error {
	if !r.result.CanBecome(next) {
		return fmt.Errorf("%w: %s to %s for region %s", ErrForbiddenTransition, r.result, next, r)
	}
	r.result = next
	return nil
}

func (r *Region) setSatPoint(pt ratfunc.Point) { r.satPoint = copyPoint(pt) }

func (r *Region) setViolatedPoint(pt ratfunc.Point) { r.violatedPoint = copyPoint(pt) }

func copyPoint(pt ratfunc.Point) ratfunc.Point {
	out := make(ratfunc.Point, len(pt))
	for v, x := range pt {
		out[v] = new(big.Rat).Set(x)
	}
	return out
}

// Vertices returns the corners of r.
func (r *Region) Vertices() []ratfunc.Point {
	return r.VerticesOf(r.vars)
}

// VerticesOf returns the 2^k corners of r projected on vars. With no
// variables it returns one empty point.
func (r *Region) VerticesOf(vars []ratfunc.Var) []ratfunc.Point {
	out := make([]ratfunc.Point, 0, 1<<len(vars))
	for combo := 0; combo < 1<<len(vars); combo++ {
		pt := make(ratfunc.Point, len(vars))
		for i, v := range vars {
			if combo&(1<<i) == 0 {
				pt[v] = r.lower[v]
			} else {
				pt[v] = r.upper[v]
			}
		}
		out = append(out, pt)
	}
	return out
}

// String uses the syntax accepted by Parse.
func (r *Region) String() string {
	parts := make([]string, len(r.vars))
	for i, v := range r.vars {
		parts[i] = fmt.Sprintf("%s<=%s<=%s", formatRat(r.lower[v]), v, formatRat(r.upper[v]))
	}
	return strings.Join(parts, ",")
}

// formatRat prints r as a decimal when that is exact.
func formatRat(r *big.Rat) string {
	ten := big.NewInt(10)
	scaled := new(big.Rat).Set(r)
	for digits := 0; digits <= 18; digits++ {
		if scaled.IsInt() {
			return r.FloatString(digits)
		}
		scaled.Mul(scaled, new(big.Rat).SetInt(ten))
	}
	return r.RatString()
}
