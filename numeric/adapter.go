// Package numeric connects exact rational functions to the floating point
// coefficients used by concrete models.
package numeric

import (
	"math/big"

	"golang.org/x/exp/constraints"

	"github.com/rfielding/kripke-regions/ratfunc"
)

// Symbolic holds the structural tests on weights. They do not depend on the
// coefficient type, so preprocessing and elimination take only this part.
type Symbolic interface {
	IsConstant(f ratfunc.Func) bool
	IsZero(f ratfunc.Func) bool
	IsLinear(f ratfunc.Func) bool
}

// Adapter is the capability set the checker needs from a coefficient type.
type Adapter[C constraints.Float] interface {
	Symbolic
	// Evaluate computes f at pt exactly and converts the result.
	Evaluate(f ratfunc.Func, pt ratfunc.Point) (C, error)
	FromRat(r *big.Rat) C
	// Precision is the tolerance used when comparing computed probabilities.
	Precision() C
}

// Exact answers the structural tests on normalized functions.
type Exact struct{}

func (Exact) IsConstant(f ratfunc.Func) bool { return f.IsConstant() }

func (Exact) IsZero(f ratfunc.Func) bool { return f.IsZero() }

func (Exact) IsLinear(f ratfunc.Func) bool { return f.IsLinear() }

// Float implements Adapter for float32 and float64.
type Float[C constraints.Float] struct {
	Exact
	Eps C
}

// DefaultPrecision matches the tolerance of the value iteration solver.
const DefaultPrecision = 1e-6

func NewFloat[C constraints.Float]() Float[C] { return Float[C]{Eps: C(DefaultPrecision)} }

func (a Float[C]) Evaluate(f ratfunc.Func, pt ratfunc.Point) (C, error) {
	r, err := f.Evaluate(pt)
	if err != nil {
		return 0, err
	}
	return a.FromRat(r), nil
}

func (Float[C]) FromRat(r *big.Rat) C {
	v, _ := r.Float64()
	return C(v)
}

func (a Float[C]) Precision() C { return a.Eps }
