package ratfunc

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/maruel/natural"
)

// Func is an immutable rational function num/den. The zero value is the
// constant 0.
//
// Values are kept normalized: the denominator is monic, common monomial
// factors are cancelled, and exact divisions between numerator and
// denominator are carried out. For univariate functions the polynomial gcd is
// cancelled as well, so equal univariate functions have equal representations.
type Func struct {
	num Poly
	den Poly
}

var ratOne = big.NewRat(1, 1)

func Zero() Func { return Func{} }

func One() Func { return Func{num: polyOne()} }

// FromInt returns the constant n.
func FromInt(n int64) Func { return FromRat(big.NewRat(n, 1)) }

// FromRat returns the constant r.
func FromRat(r *big.Rat) Func { return Func{num: PolyConst(r)} }

// FromVar returns the function v.
func FromVar(v Var) Func { return Func{num: PolyVar(v)} }

// FromPoly returns the polynomial p as a function.
func FromPoly(p Poly) Func { return Func{num: p} }

// New returns num/den in normal form.
func New(num, den Poly) (Func, error) {
	if den.IsZero() {
		return Func{}, ErrDivisionByZero
	}
	return normalize(num, den), nil
}

func (f Func) Num() Poly { return f.num }

func (f Func) Den() Poly {
	if f.den.IsZero() {
		return polyOne()
	}
	return f.den
}

func (f Func) hasDen() bool { return !f.den.IsZero() && !f.den.IsConstant() }

func normalize(num, den Poly) Func {
	if num.IsZero() {
		return Func{}
	}
	den, lc := den.monic()
	if lc.Cmp(ratOne) != 0 {
		num = num.Scale(new(big.Rat).Inv(lc))
	}
	if den.IsConstant() {
		return Func{num: num}
	}
	if m := commonContent(num.monomialContent(), den.monomialContent()); len(m) > 0 {
		num = num.quoMonomial(m)
		den = den.quoMonomial(m)
		if den.IsConstant() {
			return Func{num: num}
		}
	}
	if q, ok := num.quoExact(den); ok {
		return Func{num: q}
	}
	if !num.IsConstant() {
		if q, ok := den.quoExact(num); ok {
			return normalize(polyOne(), q)
		}
	}
	vars := make(map[Var]struct{})
	num.gatherVars(vars)
	den.gatherVars(vars)
	if len(vars) == 1 {
		if g := univariateGCD(num, den); g.Degree() > 0 {
			num, _ = num.quoExact(g)
			den, _ = den.quoExact(g)
			den, lc = den.monic()
			num = num.Scale(new(big.Rat).Inv(lc))
			if den.IsConstant() {
				return Func{num: num}
			}
		}
	}
	return Func{num: num, den: den}
}

func commonContent(a, b Monomial) Monomial {
	var out Monomial
	for _, pa := range a {
		if e := b.exponent(pa.v); e > 0 {
			out = append(out, power{pa.v, min(e, pa.exp)})
		}
	}
	return out
}

func (f Func) IsZero() bool { return f.num.IsZero() }

func (f Func) IsOne() bool {
	return !f.hasDen() && f.num.IsConstant() && f.num.Const().Cmp(ratOne) == 0
}

// IsConstant reports whether f has no free parameters.
func (f Func) IsConstant() bool { return !f.hasDen() && f.num.IsConstant() }

// Const returns the value of a constant function.
func (f Func) Const() (*big.Rat, bool) {
	if !f.IsConstant() {
		return nil, false
	}
	return f.num.Const(), true
}

// IsLinear reports whether f is an affine polynomial in its parameters.
func (f Func) IsLinear() bool { return !f.hasDen() && f.num.Degree() <= 1 }

func (f Func) Equal(g Func) bool { return f.num.Equal(g.num) && f.Den().Equal(g.Den()) }

func (f Func) Neg() Func { return Func{num: f.num.Neg(), den: f.den} }

func (f Func) Add(g Func) Func {
	switch {
	case f.IsZero():
		return g
	case g.IsZero():
		return f
	case !f.hasDen() && !g.hasDen():
		return Func{num: f.num.Add(g.num)}
	case !g.hasDen():
		return normalize(f.num.Add(g.num.Mul(f.den)), f.den)
	case !f.hasDen():
		return normalize(g.num.Add(f.num.Mul(g.den)), g.den)
	case f.den.Equal(g.den):
		return normalize(f.num.Add(g.num), f.den)
	}
	if k, ok := g.den.quoExact(f.den); ok {
		return normalize(f.num.Mul(k).Add(g.num), g.den)
	}
	if k, ok := f.den.quoExact(g.den); ok {
		return normalize(g.num.Mul(k).Add(f.num), f.den)
	}
	return normalize(f.num.Mul(g.den).Add(g.num.Mul(f.den)), f.den.Mul(g.den))
}

func (f Func) Sub(g Func) Func { return f.Add(g.Neg()) }

func (f Func) Mul(g Func) Func {
	switch {
	case f.IsZero() || g.IsZero():
		return Func{}
	case f.IsOne():
		return g
	case g.IsOne():
		return f
	case !f.hasDen() && !g.hasDen():
		return Func{num: f.num.Mul(g.num)}
	}
	return normalize(f.num.Mul(g.num), f.Den().Mul(g.Den()))
}

// Div returns f/g, or ErrDivisionByZero when g is identically zero.
func (f Func) Div(g Func) (Func, error) {
	if g.IsZero() {
		return Func{}, ErrDivisionByZero
	}
	if g.IsOne() {
		return f, nil
	}
	return normalize(f.num.Mul(g.Den()), f.Den().Mul(g.num)), nil
}

// Pow returns f^e for e >= 0.
func (f Func) Pow(e int) Func {
	out := One()
	for i := 0; i < e; i++ {
		out = out.Mul(f)
	}
	return out
}

// GatherVars adds the free parameters of f to into.
func (f Func) GatherVars(into map[Var]struct{}) {
	f.num.gatherVars(into)
	f.den.gatherVars(into)
}

// Vars returns the free parameters of f in natural order.
func (f Func) Vars() []Var {
	set := make(map[Var]struct{})
	f.GatherVars(set)
	return SortedVars(set)
}

// SortedVars returns the members of set in natural order.
func SortedVars(set map[Var]struct{}) []Var {
	out := make([]Var, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	SortVars(out)
	return out
}

// SortVars sorts parameters so that p2 precedes p10.
func SortVars(vars []Var) {
	sort.Slice(vars, func(i, j int) bool { return natural.Less(string(vars[i]), string(vars[j])) })
}

// Size is the number of stored terms, a rough measure of expression growth.
func (f Func) Size() int { return len(f.num.terms) + len(f.den.terms) }

// Evaluate computes f exactly at pt.
func (f Func) Evaluate(pt Point) (*big.Rat, error) {
	n, err := f.num.Evaluate(pt)
	if err != nil {
		return nil, err
	}
	if !f.hasDen() {
		return n, nil
	}
	d, err := f.den.Evaluate(pt)
	if err != nil {
		return nil, err
	}
	if d.Sign() == 0 {
		return nil, fmt.Errorf("%w: denominator %s vanishes at %s", ErrDivisionByZero, f.den, pt)
	}
	return n.Quo(n, d), nil
}

func (f Func) String() string {
	if !f.hasDen() {
		return f.num.String()
	}
	return "(" + f.num.String() + ")/(" + f.den.String() + ")"
}

func (f Func) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

func (f *Func) UnmarshalText(b []byte) error {
	g, err := Parse(string(b))
	if err != nil {
		return err
	}
	*f = g
	return nil
}
