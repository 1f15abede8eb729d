// Package prop describes reachability properties P⊲b [F "label"].
package prop

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
)

// ErrSyntax is returned for malformed property strings.
var ErrSyntax = errors.New("malformed property")

// Comparison is the relation between the reachability probability and the
// bound.
type Comparison int

const (
	Less Comparison = iota
	LessEqual
	Greater
	GreaterEqual
)

func (c Comparison) String() string {
	switch c {
	case Less:
		return "<"
	case LessEqual:
		return "<="
	case Greater:
		return ">"
	case GreaterEqual:
		return ">="
	}
	return fmt.Sprintf("Comparison(%d)", int(c))
}

// Invert returns the negated relation, e.g. > for <=.
func (c Comparison) Invert() Comparison {
	switch c {
	case Less:
		return GreaterEqual
	case LessEqual:
		return Greater
	case Greater:
		return LessEqual
	}
	return Less
}

// Upper reports whether the relation bounds the probability from above.
func (c Comparison) Upper() bool { return c == Less || c == LessEqual }

// Strict reports whether equality violates the relation.
func (c Comparison) Strict() bool { return c == Less || c == Greater }

// Holds compares value against bound exactly.
func (c Comparison) Holds(value, bound *big.Rat) bool {
	return c.fromCmp(value.Cmp(bound))
}

// HoldsFloat compares value against bound.
func (c Comparison) HoldsFloat(value, bound float64) bool {
	switch {
	case value < bound:
		return c.fromCmp(-1)
	case value > bound:
		return c.fromCmp(1)
	}
	return c.fromCmp(0)
}

func (c Comparison) fromCmp(cmp int) bool {
	switch c {
	case Less:
		return cmp < 0
	case LessEqual:
		return cmp <= 0
	case Greater:
		return cmp > 0
	}
	return cmp >= 0
}

// Property is P⊲Bound [F Target].
type Property struct {
	Op     Comparison
	Bound  *big.Rat
	Target string
}

// BoundFloat returns the bound as a float64.
func (p Property) BoundFloat() float64 {
	f, _ := p.Bound.Float64()
	return f
}

func (p Property) String() string {
	return fmt.Sprintf("P%s%s [F %q]", p.Op, p.Bound.FloatString(precisionDigits(p.Bound)), p.Target)
}

func precisionDigits(r *big.Rat) int {
	if r.IsInt() {
		return 0
	}
	for d := 1; d < 12; d++ {
		s := r.FloatString(d)
		if back, ok := new(big.Rat).SetString(s); ok && back.Cmp(r) == 0 {
			return d
		}
	}
	return 12
}

var propertyRE = regexp.MustCompile(`^\s*P\s*(<=|>=|<|>)\s*([0-9.eE+\-/]+)\s*\[\s*F\s+(?:"([^"]+)"|([A-Za-z_][A-Za-z0-9_]*))\s*\]\s*$`)

// Parse reads a property such as `P>=0.2 [F "target"]`.
func Parse(s string) (Property, error) {
	m := propertyRE.FindStringSubmatch(s)
	if m == nil {
		return Property{}, fmt.Errorf("%w: %q", ErrSyntax, s)
	}
	var op Comparison
	switch m[1] {
	case "<":
		op = Less
	case "<=":
		op = LessEqual
	case ">":
		op = Greater
	case ">=":
		op = GreaterEqual
	}
	bound, ok := new(big.Rat).SetString(m[2])
	if !ok {
		return Property{}, fmt.Errorf("%w: bad bound %q", ErrSyntax, m[2])
	}
	if bound.Sign() < 0 || bound.Cmp(big.NewRat(1, 1)) > 0 {
		return Property{}, fmt.Errorf("%w: bound %s outside [0,1]", ErrSyntax, m[2])
	}
	target := m[3]
	if target == "" {
		target = m[4]
	}
	return Property{Op: op, Bound: bound, Target: target}, nil
}
