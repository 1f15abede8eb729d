package ratfunc

import (
	"fmt"
	"math/big"
)

// Interval is a closed rational interval [Lo, Hi].
type Interval struct {
	Lo, Hi *big.Rat
}

// Box assigns an interval to each parameter.
type Box map[Var]Interval

// Singleton returns [r, r].
func Singleton(r *big.Rat) Interval { return Interval{Lo: r, Hi: r} }

func (a Interval) Add(b Interval) Interval {
	return Interval{Lo: new(big.Rat).Add(a.Lo, b.Lo), Hi: new(big.Rat).Add(a.Hi, b.Hi)}
}

func (a Interval) Mul(b Interval) Interval {
	ps := [4]*big.Rat{
		new(big.Rat).Mul(a.Lo, b.Lo),
		new(big.Rat).Mul(a.Lo, b.Hi),
		new(big.Rat).Mul(a.Hi, b.Lo),
		new(big.Rat).Mul(a.Hi, b.Hi),
	}
	lo, hi := ps[0], ps[0]
	for _, p := range ps[1:] {
		if p.Cmp(lo) < 0 {
			lo = p
		}
		if p.Cmp(hi) > 0 {
			hi = p
		}
	}
	return Interval{Lo: lo, Hi: hi}
}

func (a Interval) scale(r *big.Rat) Interval {
	lo, hi := new(big.Rat).Mul(a.Lo, r), new(big.Rat).Mul(a.Hi, r)
	if r.Sign() < 0 {
		lo, hi = hi, lo
	}
	return Interval{Lo: lo, Hi: hi}
}

func (a Interval) pow(e int) Interval {
	if e == 0 {
		return Singleton(big.NewRat(1, 1))
	}
	lo, hi := ratPow(a.Lo, e), ratPow(a.Hi, e)
	if e%2 == 1 {
		return Interval{Lo: lo, Hi: hi}
	}
	if lo.Cmp(hi) > 0 {
		lo, hi = hi, lo
	}
	if a.Lo.Sign() <= 0 && a.Hi.Sign() >= 0 {
		lo = new(big.Rat)
	}
	return Interval{Lo: lo, Hi: hi}
}

func ratPow(r *big.Rat, e int) *big.Rat {
	out := big.NewRat(1, 1)
	for i := 0; i < e; i++ {
		out.Mul(out, r)
	}
	return out
}

// ContainsZero reports whether 0 lies in a.
func (a Interval) ContainsZero() bool { return a.Lo.Sign() <= 0 && a.Hi.Sign() >= 0 }

// Mid returns the midpoint of a.
func (a Interval) Mid() *big.Rat {
	m := new(big.Rat).Add(a.Lo, a.Hi)
	return m.Quo(m, big.NewRat(2, 1))
}

// Width returns Hi-Lo.
func (a Interval) Width() *big.Rat { return new(big.Rat).Sub(a.Hi, a.Lo) }

func (a Interval) String() string {
	return fmt.Sprintf("[%s, %s]", a.Lo.FloatString(6), a.Hi.FloatString(6))
}

// EvalInterval returns an enclosure of p over the box.
func (p Poly) EvalInterval(b Box) (Interval, error) {
	sum := Singleton(new(big.Rat))
	for _, t := range p.terms {
		v := Singleton(big.NewRat(1, 1))
		for _, pw := range t.Mono {
			x, ok := b[pw.v]
			if !ok {
				return Interval{}, fmt.Errorf("%w: %s", ErrUnboundVariable, pw.v)
			}
			v = v.Mul(x.pow(pw.exp))
		}
		sum = sum.Add(v.scale(t.Coeff))
	}
	return sum, nil
}

// EvalInterval returns an enclosure of f over the box. It fails with
// ErrDivisionByZero when the denominator enclosure contains zero.
func (f Func) EvalInterval(b Box) (Interval, error) {
	n, err := f.num.EvalInterval(b)
	if err != nil {
		return Interval{}, err
	}
	if !f.hasDen() {
		return n, nil
	}
	d, err := f.den.EvalInterval(b)
	if err != nil {
		return Interval{}, err
	}
	if d.ContainsZero() {
		return Interval{}, fmt.Errorf("%w: denominator enclosure %s", ErrDivisionByZero, d)
	}
	inv := Interval{Lo: new(big.Rat).Inv(d.Hi), Hi: new(big.Rat).Inv(d.Lo)}
	return n.Mul(inv), nil
}
