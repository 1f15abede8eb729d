// Package smt states region queries about a reachability function as
// constraints for an incremental solver.
//
// A Session keeps two guard variables asserted at the base level:
//
//	provesAllSat      => f violates the bound
//	provesAllViolated => f satisfies the bound
//
// A region query pushes the parameter box, asserts one guard, checks and pops.
// Unsat under provesAllSat means no point of the box violates the property.
package smt

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/rs/zerolog"

	"github.com/rfielding/kripke-regions/prop"
	"github.com/rfielding/kripke-regions/ratfunc"
)

// Status is the answer of a satisfiability check.
type Status int

const (
	Unknown Status = iota
	Sat
	Unsat
)

func (s Status) String() string {
	switch s {
	case Sat:
		return "sat"
	case Unsat:
		return "unsat"
	}
	return "unknown"
}

// ErrClosed is returned by solvers used after Close.
var ErrClosed = errors.New("solver closed")

// Constraint is one assertion in the constraint language: a Relation, a
// Guarded relation or a Literal.
type Constraint interface {
	constraint()
}

// Relation is Left Op Right.
type Relation struct {
	Left  ratfunc.Func
	Op    prop.Comparison
	Right *big.Rat
}

// Guarded is Guard => Relation.
type Guarded struct {
	Guard    string
	Relation Relation
}

// Literal fixes the value of a boolean guard.
type Literal struct {
	Guard string
	Value bool
}

func (Relation) constraint() {}
func (Guarded) constraint()  {}
func (Literal) constraint()  {}

func (r Relation) String() string {
	return fmt.Sprintf("%s %s %s", r.Left, r.Op, r.Right.RatString())
}

// Holds evaluates the relation exactly at pt. A vanishing denominator makes
// the relation false.
func (r Relation) Holds(pt ratfunc.Point) (bool, error) {
	v, err := r.Left.Evaluate(pt)
	if errors.Is(err, ratfunc.ErrDivisionByZero) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return r.Op.Holds(v, r.Right), nil
}

// Solver is an incremental satisfiability solver over real parameters and
// boolean guards. Declarations are implicit.
type Solver interface {
	Assert(ctx context.Context, c Constraint) error
	Push(ctx context.Context) error
	Pop(ctx context.Context) error
	Check(ctx context.Context) (Status, error)
	// NeedsRestart reports that the solver context is unusable after an
	// inconclusive check.
	NeedsRestart() bool
	Close() error
}

// Factory creates a fresh solver.
type Factory func(ctx context.Context) (Solver, error)

// Guard variable names.
const (
	ProvesAllSat      = "provesAllSat"
	ProvesAllViolated = "provesAllViolated"
)

// Mode selects the guard asserted for a region query.
type Mode int

const (
	// ProveAllSat asks for a violating point; unsat proves the box satisfies
	// the property.
	ProveAllSat Mode = iota
	// ProveAllViolated asks for a satisfying point; unsat proves the box
	// violates the property.
	ProveAllViolated
)

func (m Mode) String() string {
	if m == ProveAllViolated {
		return ProvesAllViolated
	}
	return ProvesAllSat
}

// Session is the solver context for one reachability function and property.
type Session struct {
	factory  Factory
	solver   Solver
	f        ratfunc.Func
	property prop.Property
	restarts int
	log      zerolog.Logger
}

// NewSession creates a solver and asserts both guarded relations.
func NewSession(ctx context.Context, factory Factory, f ratfunc.Func, property prop.Property, log zerolog.Logger) (*Session, error) {
	s := &Session{
		factory:  factory,
		f:        f,
		property: property,
		log:      log.With().Str("component", "smt").Logger(),
	}
	if err := s.init(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Assertions returns the base-level constraints of the session.
func (s *Session) Assertions() []Constraint {
	return []Constraint{
		Guarded{Guard: ProvesAllSat, Relation: Relation{Left: s.f, Op: s.property.Op.Invert(), Right: s.property.Bound}},
		Guarded{Guard: ProvesAllViolated, Relation: Relation{Left: s.f, Op: s.property.Op, Right: s.property.Bound}},
	}
}

func (s *Session) init(ctx context.Context) error {
	solver, err := s.factory(ctx)
	if err != nil {
		return fmt.Errorf("creating solver: %w", err)
	}
	for _, c := range s.Assertions() {
		if err := solver.Assert(ctx, c); err != nil {
			solver.Close()
			return fmt.Errorf("asserting %v: %w", c, err)
		}
	}
	s.solver = solver
	return nil
}

// Restart replaces the solver with a fresh one.
func (s *Session) Restart(ctx context.Context) error {
	s.log.Warn().Int("restarts", s.restarts+1).Msg("restarting solver")
	if s.solver != nil {
		s.solver.Close()
		s.solver = nil
	}
	s.restarts++
	return s.init(ctx)
}

// Restarts returns how often the solver was recreated.
func (s *Session) Restarts() int { return s.restarts }

// NeedsRestart reports whether the solver asked to be recreated.
func (s *Session) NeedsRestart() bool { return s.solver == nil || s.solver.NeedsRestart() }

// CheckRegion checks the box [lower, upper] under mode. The pushed
// constraints are popped whatever the outcome.
func (s *Session) CheckRegion(ctx context.Context, vars []ratfunc.Var, lower, upper ratfunc.Point, mode Mode) (st Status, err error) {
	if s.solver == nil {
		return Unknown, ErrClosed
	}
	if err := s.solver.Push(ctx); err != nil {
		return Unknown, fmt.Errorf("push: %w", err)
	}
	defer func() {
		if perr := s.solver.Pop(ctx); perr != nil && err == nil {
			st, err = Unknown, fmt.Errorf("pop: %w", perr)
		}
	}()

	for _, v := range vars {
		x := ratfunc.FromVar(v)
		lo, ok := lower[v]
		if !ok {
			return Unknown, fmt.Errorf("%w: no lower bound for %s", ratfunc.ErrUnboundVariable, v)
		}
		hi, ok := upper[v]
		if !ok {
			return Unknown, fmt.Errorf("%w: no upper bound for %s", ratfunc.ErrUnboundVariable, v)
		}
		if err := s.solver.Assert(ctx, Relation{Left: x, Op: prop.GreaterEqual, Right: lo}); err != nil {
			return Unknown, err
		}
		if err := s.solver.Assert(ctx, Relation{Left: x, Op: prop.LessEqual, Right: hi}); err != nil {
			return Unknown, err
		}
	}
	if err := s.solver.Assert(ctx, Literal{Guard: ProvesAllSat, Value: mode == ProveAllSat}); err != nil {
		return Unknown, err
	}
	if err := s.solver.Assert(ctx, Literal{Guard: ProvesAllViolated, Value: mode == ProveAllViolated}); err != nil {
		return Unknown, err
	}

	st, err = s.solver.Check(ctx)
	s.log.Debug().Stringer("mode", mode).Stringer("status", st).Msg("region query")
	return st, err
}

// Close releases the solver.
func (s *Session) Close() error {
	if s.solver == nil {
		return nil
	}
	err := s.solver.Close()
	s.solver = nil
	return err
}
