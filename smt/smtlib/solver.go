// Package smtlib drives an external SMT-LIB2 solver process, z3 by default,
// over its standard input and output.
package smtlib

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rfielding/kripke-regions/ratfunc"
	"github.com/rfielding/kripke-regions/smt"
)

// DefaultCommand starts z3 reading SMT-LIB2 from standard input.
var DefaultCommand = []string{"z3", "-in", "-smt2"}

// ErrSolverResponse is returned when the process answers something other
// than sat, unsat or unknown.
var ErrSolverResponse = errors.New("unexpected solver response")

type line struct {
	text string
	err  error
}

// Solver is one running solver process.
type Solver struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	lines  chan line
	broken bool
	closed bool

	// declared holds the names introduced at each push level.
	declared []map[string]bool
	log      zerolog.Logger
}

// Start launches command. An empty command uses DefaultCommand.
func Start(ctx context.Context, command []string, log zerolog.Logger) (*Solver, error) {
	if len(command) == 0 {
		command = DefaultCommand
	}
	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", command[0], err)
	}
	s := &Solver{
		cmd:      cmd,
		stdin:    stdin,
		lines:    make(chan line),
		declared: []map[string]bool{{}},
		log:      log.With().Str("component", "smtlib").Str("command", command[0]).Logger(),
	}
	go s.read(stdout)
	if err := s.send("(set-option :print-success false)", "(set-logic QF_NRA)"); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Factory returns an smt.Factory starting a process per session.
func Factory(command []string, log zerolog.Logger) smt.Factory {
	return func(ctx context.Context) (smt.Solver, error) {
		return Start(context.WithoutCancel(ctx), command, log)
	}
}

func (s *Solver) read(r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if text := strings.TrimSpace(sc.Text()); text != "" {
			s.lines <- line{text: text}
		}
	}
	err := sc.Err()
	if err == nil {
		err = io.EOF
	}
	s.lines <- line{err: err}
	close(s.lines)
}

func (s *Solver) send(cmds ...string) error {
	if s.broken {
		return smt.ErrClosed
	}
	for _, c := range cmds {
		s.log.Trace().Str("cmd", c).Msg("send")
		if _, err := io.WriteString(s.stdin, c+"\n"); err != nil {
			s.broken = true
			return fmt.Errorf("writing to solver: %w", err)
		}
	}
	return nil
}

func (s *Solver) isDeclared(name string) bool {
	for _, level := range s.declared {
		if level[name] {
			return true
		}
	}
	return false
}

func (s *Solver) declare(name, sort string) error {
	if s.isDeclared(name) {
		return nil
	}
	s.declared[len(s.declared)-1][name] = true
	return s.send(fmt.Sprintf("(declare-fun %s () %s)", Symbol(name), sort))
}

func (s *Solver) declareVars(f ratfunc.Func) error {
	for _, v := range f.Vars() {
		if err := s.declare(string(v), "Real"); err != nil {
			return err
		}
	}
	return nil
}

func (s *Solver) Assert(_ context.Context, c smt.Constraint) error {
	switch c := c.(type) {
	case smt.Relation:
		if err := s.declareVars(c.Left); err != nil {
			return err
		}
	case smt.Guarded:
		if err := s.declareVars(c.Relation.Left); err != nil {
			return err
		}
		if err := s.declare(c.Guard, "Bool"); err != nil {
			return err
		}
	case smt.Literal:
		if err := s.declare(c.Guard, "Bool"); err != nil {
			return err
		}
	}
	return s.send("(assert " + Term(c) + ")")
}

func (s *Solver) Push(context.Context) error {
	s.declared = append(s.declared, map[string]bool{})
	return s.send("(push 1)")
}

func (s *Solver) Pop(context.Context) error {
	if len(s.declared) == 1 {
		return errors.New("pop without matching push")
	}
	s.declared = s.declared[:len(s.declared)-1]
	return s.send("(pop 1)")
}

// Check sends check-sat and waits for the answer. A cancelled context or a
// dead process leaves the solver broken, and NeedsRestart reports true.
func (s *Solver) Check(ctx context.Context) (smt.Status, error) {
	if err := s.send("(check-sat)"); err != nil {
		return smt.Unknown, err
	}
	select {
	case <-ctx.Done():
		s.broken = true
		s.kill()
		return smt.Unknown, ctx.Err()
	case l, ok := <-s.lines:
		if !ok || l.err != nil {
			s.broken = true
			return smt.Unknown, fmt.Errorf("reading from solver: %w", l.err)
		}
		switch l.text {
		case "sat":
			return smt.Sat, nil
		case "unsat":
			return smt.Unsat, nil
		case "unknown":
			return smt.Unknown, nil
		}
		s.broken = true
		return smt.Unknown, fmt.Errorf("%w: %s", ErrSolverResponse, l.text)
	}
}

func (s *Solver) NeedsRestart() bool { return s.broken }

func (s *Solver) kill() {
	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
}

func (s *Solver) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if !s.broken {
		s.send("(exit)")
	}
	s.broken = true
	s.stdin.Close()
	go func() {
		for range s.lines {
		}
	}()
	err := s.cmd.Wait()
	var exit *exec.ExitError
	if errors.As(err, &exit) {
		return nil
	}
	return err
}

// Symbol quotes name when it is not a simple SMT-LIB symbol.
func Symbol(name string) string {
	simple := name != ""
	for i, r := range name {
		ok := r == '_' || r == '.' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (i > 0 && r >= '0' && r <= '9')
		simple = simple && ok
	}
	if simple {
		return name
	}
	return "|" + strings.ReplaceAll(name, "|", "") + "|"
}

// Rational renders r as a real literal.
func Rational(r *big.Rat) string {
	num := new(big.Int).Abs(r.Num())
	var s string
	if r.IsInt() {
		s = num.String() + ".0"
	} else {
		s = fmt.Sprintf("(/ %s.0 %s.0)", num, r.Denom())
	}
	if r.Sign() < 0 {
		return "(- " + s + ")"
	}
	return s
}

// Polynomial renders p as a sum of products.
func Polynomial(p ratfunc.Poly) string {
	terms := p.Terms()
	if len(terms) == 0 {
		return "0.0"
	}
	parts := make([]string, 0, len(terms))
	for _, t := range terms {
		factors := []string{}
		if t.Coeff.Cmp(big.NewRat(1, 1)) != 0 || len(t.Mono) == 0 {
			factors = append(factors, Rational(t.Coeff))
		}
		t.Mono.Each(func(v ratfunc.Var, exp int) {
			for i := 0; i < exp; i++ {
				factors = append(factors, Symbol(string(v)))
			}
		})
		if len(factors) == 1 {
			parts = append(parts, factors[0])
		} else {
			parts = append(parts, "(* "+strings.Join(factors, " ")+")")
		}
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return "(+ " + strings.Join(parts, " ") + ")"
}

// Term renders a constraint. Division is guarded by a nonzero denominator
// since SMT-LIB division by zero is unconstrained.
func Term(c smt.Constraint) string {
	switch c := c.(type) {
	case smt.Relation:
		num, den := c.Left.Num(), c.Left.Den()
		if den.IsConstant() {
			return fmt.Sprintf("(%s %s %s)", c.Op, Polynomial(num), Rational(c.Right))
		}
		d := Polynomial(den)
		return fmt.Sprintf("(and (not (= %s 0.0)) (%s (/ %s %s) %s))", d, c.Op, Polynomial(num), d, Rational(c.Right))
	case smt.Guarded:
		return fmt.Sprintf("(=> %s %s)", Symbol(c.Guard), Term(c.Relation))
	case smt.Literal:
		if c.Value {
			return Symbol(c.Guard)
		}
		return "(not " + Symbol(c.Guard) + ")"
	}
	panic(fmt.Sprintf("unknown constraint %T", c))
}
