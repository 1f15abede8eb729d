package interval

import (
	"context"
	"math/big"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfielding/kripke-regions/prop"
	"github.com/rfielding/kripke-regions/ratfunc"
	"github.com/rfielding/kripke-regions/smt"
)

func rat(s string) *big.Rat {
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		panic(s)
	}
	return r
}

func box(s *Solver, v string, lo, hi string) {
	ctx := context.Background()
	s.Assert(ctx, smt.Relation{Left: ratfunc.FromVar(ratfunc.Var(v)), Op: prop.GreaterEqual, Right: rat(lo)})
	s.Assert(ctx, smt.Relation{Left: ratfunc.FromVar(ratfunc.Var(v)), Op: prop.LessEqual, Right: rat(hi)})
}

func TestCheck(t *testing.T) {
	ctx := context.Background()
	for _, tc := range []struct {
		name string
		f    string
		op   prop.Comparison
		b    string
		want smt.Status
	}{
		{"linear unsat", "p", prop.Less, "0.2", smt.Unsat},
		{"linear sat", "p", prop.Greater, "0.5", smt.Sat},
		{"boundary strict", "p", prop.Less, "0.3", smt.Unsat},
		{"boundary closed", "p", prop.LessEqual, "0.3", smt.Sat},
		{"product", "p*q", prop.Greater, "0.3", smt.Unsat},
		{"rational", "p/(1-q)", prop.GreaterEqual, "0.35", smt.Sat},
		{"square", "p^2", prop.Less, "0.05", smt.Unsat},
		{"square sat", "p^2 - q", prop.Greater, "0.2", smt.Sat},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := New(0, zerolog.Nop())
			box(s, "p", "0.3", "0.6")
			box(s, "q", "0.1", "0.5")
			require.NoError(t, s.Assert(ctx, smt.Relation{Left: ratfunc.MustParse(tc.f), Op: tc.op, Right: rat(tc.b)}))
			st, err := s.Check(ctx)
			require.NoError(t, err)
			assert.Equal(t, tc.want, st)
		})
	}
}

func TestGuards(t *testing.T) {
	ctx := context.Background()
	s := New(0, zerolog.Nop())
	// Unsatisfiable on its own, but only when the guard is asserted.
	require.NoError(t, s.Assert(ctx, smt.Guarded{Guard: "g", Relation: smt.Relation{Left: ratfunc.MustParse("p"), Op: prop.Greater, Right: rat("2")}}))
	box(s, "p", "0", "1")

	st, err := s.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, smt.Sat, st)

	require.NoError(t, s.Push(ctx))
	require.NoError(t, s.Assert(ctx, smt.Literal{Guard: "g", Value: true}))
	st, err = s.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, smt.Unsat, st)

	require.NoError(t, s.Assert(ctx, smt.Literal{Guard: "g", Value: false}))
	st, err = s.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, smt.Unsat, st, "contradictory literals")

	require.NoError(t, s.Pop(ctx))
	st, err = s.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, smt.Sat, st)
	assert.Error(t, s.Pop(ctx))
}

func TestUnboundedIsUnknown(t *testing.T) {
	ctx := context.Background()
	s := New(0, zerolog.Nop())
	require.NoError(t, s.Assert(ctx, smt.Relation{Left: ratfunc.MustParse("p"), Op: prop.Greater, Right: rat("0")}))
	st, err := s.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, smt.Unknown, st)
}

func TestBudget(t *testing.T) {
	ctx := context.Background()
	s := New(4, zerolog.Nop())
	box(s, "p", "0", "1")
	// 4p(1-p) never exceeds 1, but the enclosure cannot show it near 1/2.
	require.NoError(t, s.Assert(ctx, smt.Relation{Left: ratfunc.MustParse("4*p - 4*p^2"), Op: prop.Greater, Right: rat("1")}))
	st, err := s.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, smt.Unknown, st)
}

func TestSessionWithIntervalSolver(t *testing.T) {
	ctx := context.Background()
	p, err := prop.Parse(`P>=0.2 [F "target"]`)
	require.NoError(t, err)
	sess, err := smt.NewSession(ctx, Factory(0, zerolog.Nop()), ratfunc.MustParse("p"), p, zerolog.Nop())
	require.NoError(t, err)
	defer sess.Close()

	vars := []ratfunc.Var{"p"}
	lower, upper := ratfunc.Point{"p": rat("0.3")}, ratfunc.Point{"p": rat("0.6")}
	st, err := sess.CheckRegion(ctx, vars, lower, upper, smt.ProveAllSat)
	require.NoError(t, err)
	assert.Equal(t, smt.Unsat, st, "no violating point in [0.3,0.6]")

	st, err = sess.CheckRegion(ctx, vars, lower, upper, smt.ProveAllViolated)
	require.NoError(t, err)
	assert.Equal(t, smt.Sat, st)

	lower = ratfunc.Point{"p": rat("0")}
	st, err = sess.CheckRegion(ctx, vars, lower, upper, smt.ProveAllSat)
	require.NoError(t, err)
	assert.Equal(t, smt.Sat, st)
}
