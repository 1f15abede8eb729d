// Package ratfunc implements exact multivariate polynomials and rational
// functions over the rationals. Transition weights of parametric Markov chains
// are values of this package.
package ratfunc

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
)

var (
	// ErrDivisionByZero is returned when a denominator evaluates to zero.
	ErrDivisionByZero = errors.New("division by zero")
	// ErrUnboundVariable is returned when an evaluation point misses a variable.
	ErrUnboundVariable = errors.New("unbound variable")
)

// Var names a parameter.
type Var string

// Point assigns exact values to parameters.
type Point map[Var]*big.Rat

func (p Point) String() string {
	vars := make([]Var, 0, len(p))
	for v := range p {
		vars = append(vars, v)
	}
	SortVars(vars)
	parts := make([]string, 0, len(vars))
	for _, v := range vars {
		parts = append(parts, fmt.Sprintf("%s=%s", v, p[v].FloatString(6)))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

type power struct {
	v   Var
	exp int
}

// Monomial is a product of variable powers, sorted by variable name.
type Monomial []power

// Each calls fn for every variable power of m, in variable order.
func (m Monomial) Each(fn func(v Var, exp int)) {
	for _, p := range m {
		fn(p.v, p.exp)
	}
}

func (m Monomial) degree() int {
	d := 0
	for _, p := range m {
		d += p.exp
	}
	return d
}

func (m Monomial) key() string {
	var sb strings.Builder
	for i, p := range m {
		if i > 0 {
			sb.WriteByte('*')
		}
		sb.WriteString(string(p.v))
		if p.exp != 1 {
			fmt.Fprintf(&sb, "^%d", p.exp)
		}
	}
	return sb.String()
}

func (m Monomial) mul(o Monomial) Monomial {
	out := make(Monomial, 0, len(m)+len(o))
	i, j := 0, 0
	for i < len(m) && j < len(o) {
		switch {
		case m[i].v == o[j].v:
			out = append(out, power{m[i].v, m[i].exp + o[j].exp})
			i++
			j++
		case m[i].v < o[j].v:
			out = append(out, m[i])
			i++
		default:
			out = append(out, o[j])
			j++
		}
	}
	out = append(out, m[i:]...)
	return append(out, o[j:]...)
}

// divides reports whether m divides o.
func (m Monomial) divides(o Monomial) bool {
	j := 0
	for _, p := range m {
		for j < len(o) && o[j].v < p.v {
			j++
		}
		if j == len(o) || o[j].v != p.v || o[j].exp < p.exp {
			return false
		}
	}
	return true
}

// quo returns m/o, o must divide m.
func (m Monomial) quo(o Monomial) Monomial {
	out := make(Monomial, 0, len(m))
	j := 0
	for _, p := range m {
		if j < len(o) && o[j].v == p.v {
			if e := p.exp - o[j].exp; e > 0 {
				out = append(out, power{p.v, e})
			}
			j++
			continue
		}
		out = append(out, p)
	}
	return out
}

func (m Monomial) exponent(v Var) int {
	for _, p := range m {
		if p.v == v {
			return p.exp
		}
	}
	return 0
}

// cmpMonomial orders monomials by total degree, then lexicographically with
// earlier variable names more significant. It returns a positive number when
// a comes before b.
func cmpMonomial(a, b Monomial) int {
	if da, db := a.degree(), b.degree(); da != db {
		return da - db
	}
	i := 0
	for i < len(a) && i < len(b) {
		switch {
		case a[i].v == b[i].v:
			if a[i].exp != b[i].exp {
				return a[i].exp - b[i].exp
			}
		case a[i].v < b[i].v:
			return 1
		default:
			return -1
		}
		i++
	}
	return len(a) - len(b)
}

// Term is a coefficient times a monomial.
type Term struct {
	Coeff *big.Rat
	Mono  Monomial
}

// Poly is an immutable polynomial. Terms are sorted in decreasing monomial
// order and carry non-zero coefficients.
type Poly struct {
	terms []Term
}

// PolyConst returns the constant polynomial r.
func PolyConst(r *big.Rat) Poly {
	if r.Sign() == 0 {
		return Poly{}
	}
	return Poly{terms: []Term{{Coeff: new(big.Rat).Set(r), Mono: nil}}}
}

// PolyVar returns the polynomial v.
func PolyVar(v Var) Poly {
	return Poly{terms: []Term{{Coeff: big.NewRat(1, 1), Mono: Monomial{{v, 1}}}}}
}

func polyOne() Poly { return PolyConst(big.NewRat(1, 1)) }

// Terms returns the terms in decreasing monomial order. The result must not
// be modified.
func (p Poly) Terms() []Term { return p.terms }

// IsZero reports whether p is the zero polynomial.
func (p Poly) IsZero() bool { return len(p.terms) == 0 }

// IsConstant reports whether p has no variables.
func (p Poly) IsConstant() bool {
	return len(p.terms) == 0 || (len(p.terms) == 1 && len(p.terms[0].Mono) == 0)
}

// Const returns the value of a constant polynomial.
func (p Poly) Const() *big.Rat {
	if len(p.terms) == 0 {
		return new(big.Rat)
	}
	return new(big.Rat).Set(p.terms[0].Coeff)
}

// Degree is the total degree; the zero polynomial has degree -1.
func (p Poly) Degree() int {
	if len(p.terms) == 0 {
		return -1
	}
	return p.terms[0].Mono.degree()
}

func (p Poly) lead() Term { return p.terms[0] }

// Equal reports structural equality, which is equality since the
// representation is canonical.
func (p Poly) Equal(q Poly) bool {
	if len(p.terms) != len(q.terms) {
		return false
	}
	for i := range p.terms {
		if p.terms[i].Coeff.Cmp(q.terms[i].Coeff) != 0 || p.terms[i].Mono.key() != q.terms[i].Mono.key() {
			return false
		}
	}
	return true
}

func (p Poly) Add(q Poly) Poly {
	out := make([]Term, 0, len(p.terms)+len(q.terms))
	i, j := 0, 0
	for i < len(p.terms) && j < len(q.terms) {
		c := cmpMonomial(p.terms[i].Mono, q.terms[j].Mono)
		switch {
		case c > 0:
			out = append(out, p.terms[i])
			i++
		case c < 0:
			out = append(out, q.terms[j])
			j++
		default:
			sum := new(big.Rat).Add(p.terms[i].Coeff, q.terms[j].Coeff)
			if sum.Sign() != 0 {
				out = append(out, Term{Coeff: sum, Mono: p.terms[i].Mono})
			}
			i++
			j++
		}
	}
	out = append(out, p.terms[i:]...)
	out = append(out, q.terms[j:]...)
	return Poly{terms: out}
}

func (p Poly) Neg() Poly {
	out := make([]Term, len(p.terms))
	for i, t := range p.terms {
		out[i] = Term{Coeff: new(big.Rat).Neg(t.Coeff), Mono: t.Mono}
	}
	return Poly{terms: out}
}

func (p Poly) Sub(q Poly) Poly { return p.Add(q.Neg()) }

// Scale multiplies every coefficient by r.
func (p Poly) Scale(r *big.Rat) Poly {
	if r.Sign() == 0 {
		return Poly{}
	}
	out := make([]Term, len(p.terms))
	for i, t := range p.terms {
		out[i] = Term{Coeff: new(big.Rat).Mul(t.Coeff, r), Mono: t.Mono}
	}
	return Poly{terms: out}
}

func (p Poly) mulTerm(t Term) Poly {
	out := make([]Term, len(p.terms))
	for i, s := range p.terms {
		out[i] = Term{Coeff: new(big.Rat).Mul(s.Coeff, t.Coeff), Mono: s.Mono.mul(t.Mono)}
	}
	// Multiplying by a monomial preserves the order.
	return Poly{terms: out}
}

func (p Poly) Mul(q Poly) Poly {
	if p.IsZero() || q.IsZero() {
		return Poly{}
	}
	if len(q.terms) == 1 {
		return p.mulTerm(q.terms[0])
	}
	if len(p.terms) == 1 {
		return q.mulTerm(p.terms[0])
	}
	acc := make(map[string]*Term, len(p.terms)*len(q.terms))
	for _, s := range p.terms {
		for _, t := range q.terms {
			m := s.Mono.mul(t.Mono)
			k := m.key()
			c := new(big.Rat).Mul(s.Coeff, t.Coeff)
			if e, ok := acc[k]; ok {
				e.Coeff.Add(e.Coeff, c)
				continue
			}
			acc[k] = &Term{Coeff: c, Mono: m}
		}
	}
	out := make([]Term, 0, len(acc))
	for _, t := range acc {
		if t.Coeff.Sign() != 0 {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return cmpMonomial(out[i].Mono, out[j].Mono) > 0 })
	return Poly{terms: out}
}

// divide performs multivariate division of p by g with respect to the
// monomial order. For univariate polynomials this is Euclidean division.
func (p Poly) divide(g Poly) (q, r Poly) {
	lg := g.lead()
	f := p
	for !f.IsZero() {
		lt := f.lead()
		if lg.Mono.divides(lt.Mono) {
			t := Term{Coeff: new(big.Rat).Quo(lt.Coeff, lg.Coeff), Mono: lt.Mono.quo(lg.Mono)}
			q = q.Add(Poly{terms: []Term{t}})
			f = f.Sub(g.mulTerm(t))
			continue
		}
		r = r.Add(Poly{terms: []Term{lt}})
		f = Poly{terms: f.terms[1:]}
	}
	return q, r
}

// quoExact returns p/g when g divides p.
func (p Poly) quoExact(g Poly) (Poly, bool) {
	if g.IsZero() {
		return Poly{}, false
	}
	q, r := p.divide(g)
	return q, r.IsZero()
}

func (p Poly) monic() (Poly, *big.Rat) {
	if p.IsZero() {
		return p, big.NewRat(1, 1)
	}
	lc := new(big.Rat).Set(p.lead().Coeff)
	return p.Scale(new(big.Rat).Inv(lc)), lc
}

// gatherVars adds the variables of p to into.
func (p Poly) gatherVars(into map[Var]struct{}) {
	for _, t := range p.terms {
		for _, pw := range t.Mono {
			into[pw.v] = struct{}{}
		}
	}
}

// monomialContent returns the largest monomial dividing every term.
func (p Poly) monomialContent() Monomial {
	if p.IsZero() {
		return nil
	}
	content := append(Monomial(nil), p.terms[0].Mono...)
	for _, t := range p.terms[1:] {
		next := content[:0:0]
		for _, pw := range content {
			if e := t.Mono.exponent(pw.v); e > 0 {
				if e < pw.exp {
					pw.exp = e
				}
				next = append(next, pw)
			}
		}
		content = next
		if len(content) == 0 {
			break
		}
	}
	return content
}

func (p Poly) quoMonomial(m Monomial) Poly {
	if len(m) == 0 {
		return p
	}
	out := make([]Term, len(p.terms))
	for i, t := range p.terms {
		out[i] = Term{Coeff: t.Coeff, Mono: t.Mono.quo(m)}
	}
	return Poly{terms: out}
}

// Evaluate computes p at the point.
func (p Poly) Evaluate(pt Point) (*big.Rat, error) {
	sum := new(big.Rat)
	for _, t := range p.terms {
		v := new(big.Rat).Set(t.Coeff)
		for _, pw := range t.Mono {
			x, ok := pt[pw.v]
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrUnboundVariable, pw.v)
			}
			for e := 0; e < pw.exp; e++ {
				v.Mul(v, x)
			}
		}
		sum.Add(sum, v)
	}
	return sum, nil
}

// univariateGCD returns the monic gcd of p and q, which must both be
// polynomials in at most one variable.
func univariateGCD(p, q Poly) Poly {
	a, b := p, q
	for !b.IsZero() {
		_, r := a.divide(b)
		a, b = b, r
	}
	g, _ := a.monic()
	return g
}

func (p Poly) String() string {
	if p.IsZero() {
		return "0"
	}
	var sb strings.Builder
	for i, t := range p.terms {
		c := new(big.Rat).Set(t.Coeff)
		if c.Sign() < 0 {
			if i == 0 {
				sb.WriteString("-")
			} else {
				sb.WriteString(" - ")
			}
			c.Neg(c)
		} else if i > 0 {
			sb.WriteString(" + ")
		}
		one := c.Cmp(big.NewRat(1, 1)) == 0
		switch {
		case len(t.Mono) == 0:
			sb.WriteString(c.RatString())
		case one:
			sb.WriteString(t.Mono.key())
		default:
			sb.WriteString(c.RatString())
			sb.WriteString("*")
			sb.WriteString(t.Mono.key())
		}
	}
	return sb.String()
}
