// Package interval is a branch-and-prune solver for boxes of real
// parameters. Every relation is enclosed with exact rational interval
// arithmetic; a box is dropped when some relation fails on all of it,
// accepted when all relations hold on all of it or at a sample point, and
// split along its widest parameter otherwise.
//
// The search is complete for unsat only when every split eventually decides;
// it answers Unknown when the box budget runs out.
package interval

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/rs/zerolog"

	"github.com/rfielding/kripke-regions/ratfunc"
	"github.com/rfielding/kripke-regions/smt"
)

// DefaultMaxBoxes bounds the number of boxes visited by one Check.
const DefaultMaxBoxes = 100000

var errPop = errors.New("pop without matching push")

// Solver keeps one frame of constraints per push level.
type Solver struct {
	MaxBoxes int

	frames [][]smt.Constraint
	closed bool
	log    zerolog.Logger
}

func New(maxBoxes int, log zerolog.Logger) *Solver {
	if maxBoxes <= 0 {
		maxBoxes = DefaultMaxBoxes
	}
	return &Solver{
		MaxBoxes: maxBoxes,
		frames:   [][]smt.Constraint{nil},
		log:      log.With().Str("component", "interval").Logger(),
	}
}

// Factory returns an smt.Factory creating interval solvers.
func Factory(maxBoxes int, log zerolog.Logger) smt.Factory {
	return func(context.Context) (smt.Solver, error) {
		return New(maxBoxes, log), nil
	}
}

func (s *Solver) Assert(_ context.Context, c smt.Constraint) error {
	if s.closed {
		return smt.ErrClosed
	}
	switch c := c.(type) {
	case smt.Relation:
		if c.Right == nil {
			return fmt.Errorf("relation %s has no right-hand side", c.Left)
		}
	case smt.Guarded:
		if c.Relation.Right == nil {
			return fmt.Errorf("relation %s has no right-hand side", c.Relation.Left)
		}
	}
	top := len(s.frames) - 1
	s.frames[top] = append(s.frames[top], c)
	return nil
}

func (s *Solver) Push(context.Context) error {
	if s.closed {
		return smt.ErrClosed
	}
	s.frames = append(s.frames, nil)
	return nil
}

func (s *Solver) Pop(context.Context) error {
	if s.closed {
		return smt.ErrClosed
	}
	if len(s.frames) == 1 {
		return errPop
	}
	s.frames = s.frames[:len(s.frames)-1]
	return nil
}

// NeedsRestart is always false: the solver keeps no state between checks.
func (s *Solver) NeedsRestart() bool { return false }

func (s *Solver) Close() error {
	s.closed = true
	s.frames = nil
	return nil
}

// active returns the relations in force under the asserted literals. A
// guarded relation whose guard is unassigned is satisfied by choosing the
// guard false, so it is dropped.
func (s *Solver) active() ([]smt.Relation, bool) {
	guards := make(map[string]bool)
	for _, frame := range s.frames {
		for _, c := range frame {
			if l, ok := c.(smt.Literal); ok {
				if prev, seen := guards[l.Guard]; seen && prev != l.Value {
					return nil, false
				}
				guards[l.Guard] = l.Value
			}
		}
	}
	var out []smt.Relation
	for _, frame := range s.frames {
		for _, c := range frame {
			switch c := c.(type) {
			case smt.Relation:
				out = append(out, c)
			case smt.Guarded:
				if guards[c.Guard] {
					out = append(out, c.Relation)
				}
			}
		}
	}
	return out, true
}

// singleVar returns v when f is exactly the parameter v.
func singleVar(f ratfunc.Func) (ratfunc.Var, bool) {
	vars := f.Vars()
	if len(vars) != 1 || !f.Equal(ratfunc.FromVar(vars[0])) {
		return "", false
	}
	return vars[0], true
}

// initialBox collects the variable bounds among rels. ok is false when the
// bounds are contradictory; missing names a variable without both bounds.
func initialBox(rels []smt.Relation) (box ratfunc.Box, ok bool, missing ratfunc.Var) {
	lo := make(map[ratfunc.Var]*big.Rat)
	hi := make(map[ratfunc.Var]*big.Rat)
	vars := make(map[ratfunc.Var]struct{})
	for _, r := range rels {
		r.Left.GatherVars(vars)
		v, isVar := singleVar(r.Left)
		if !isVar {
			continue
		}
		if r.Op.Upper() {
			if hi[v] == nil || r.Right.Cmp(hi[v]) < 0 {
				hi[v] = r.Right
			}
		} else if lo[v] == nil || r.Right.Cmp(lo[v]) > 0 {
			lo[v] = r.Right
		}
	}
	box = make(ratfunc.Box, len(vars))
	for _, v := range ratfunc.SortedVars(vars) {
		if lo[v] == nil || hi[v] == nil {
			return nil, true, v
		}
		if lo[v].Cmp(hi[v]) > 0 {
			return nil, false, ""
		}
		box[v] = ratfunc.Interval{Lo: lo[v], Hi: hi[v]}
	}
	return box, true, ""
}

type verdict int

const (
	undecided verdict = iota
	holds
	fails
)

// enclose decides r over the whole box when the enclosure allows it.
func enclose(r smt.Relation, box ratfunc.Box) (verdict, error) {
	iv, err := r.Left.EvalInterval(box)
	if errors.Is(err, ratfunc.ErrDivisionByZero) {
		return undecided, nil
	}
	if err != nil {
		return undecided, err
	}
	worst, best := iv.Lo, iv.Hi
	if r.Op.Upper() {
		worst, best = iv.Hi, iv.Lo
	}
	switch {
	case r.Op.Holds(worst, r.Right):
		return holds, nil
	case !r.Op.Holds(best, r.Right):
		return fails, nil
	}
	return undecided, nil
}

// samples returns the midpoint and the lowest and highest corners of box.
func samples(box ratfunc.Box) []ratfunc.Point {
	mid := make(ratfunc.Point, len(box))
	lo := make(ratfunc.Point, len(box))
	hi := make(ratfunc.Point, len(box))
	for v, iv := range box {
		mid[v], lo[v], hi[v] = iv.Mid(), iv.Lo, iv.Hi
	}
	return []ratfunc.Point{mid, lo, hi}
}

func satisfies(rels []smt.Relation, pt ratfunc.Point) (bool, error) {
	for _, r := range rels {
		ok, err := r.Holds(pt)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// widest returns the variable with the widest interval, or false when the
// box is a single point.
func widest(box ratfunc.Box) (ratfunc.Var, bool) {
	vars := make([]ratfunc.Var, 0, len(box))
	for v := range box {
		vars = append(vars, v)
	}
	ratfunc.SortVars(vars)
	var best ratfunc.Var
	var width *big.Rat
	for _, v := range vars {
		w := box[v].Width()
		if w.Sign() > 0 && (width == nil || w.Cmp(width) > 0) {
			best, width = v, w
		}
	}
	return best, width != nil
}

func split(box ratfunc.Box, v ratfunc.Var) (ratfunc.Box, ratfunc.Box) {
	a := make(ratfunc.Box, len(box))
	b := make(ratfunc.Box, len(box))
	for k, iv := range box {
		a[k], b[k] = iv, iv
	}
	mid := box[v].Mid()
	a[v] = ratfunc.Interval{Lo: box[v].Lo, Hi: mid}
	b[v] = ratfunc.Interval{Lo: mid, Hi: box[v].Hi}
	return a, b
}

func (s *Solver) Check(ctx context.Context) (smt.Status, error) {
	if s.closed {
		return smt.Unknown, smt.ErrClosed
	}
	rels, consistent := s.active()
	if !consistent {
		return smt.Unsat, nil
	}
	box, ok, missing := initialBox(rels)
	if !ok {
		return smt.Unsat, nil
	}
	if missing != "" {
		s.log.Warn().Str("var", string(missing)).Msg("unbounded parameter")
		return smt.Unknown, nil
	}

	stack := []ratfunc.Box{box}
	for visited := 0; len(stack) > 0; visited++ {
		if visited >= s.MaxBoxes {
			s.log.Warn().Int("boxes", visited).Msg("box budget exhausted")
			return smt.Unknown, nil
		}
		if err := ctx.Err(); err != nil {
			return smt.Unknown, err
		}
		b := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		all, pruned := true, false
		for _, r := range rels {
			v, err := enclose(r, b)
			if err != nil {
				return smt.Unknown, err
			}
			if v == fails {
				pruned = true
				break
			}
			all = all && v == holds
		}
		if pruned {
			continue
		}
		if all {
			return smt.Sat, nil
		}

		for _, pt := range samples(b) {
			sat, err := satisfies(rels, pt)
			if err != nil {
				return smt.Unknown, err
			}
			if sat {
				return smt.Sat, nil
			}
		}

		v, ok := widest(b)
		if !ok {
			continue
		}
		lo, hi := split(b, v)
		stack = append(stack, hi, lo)
	}
	return smt.Unsat, nil
}
