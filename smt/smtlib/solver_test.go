package smtlib

import (
	"context"
	"math/big"
	"os/exec"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfielding/kripke-regions/prop"
	"github.com/rfielding/kripke-regions/ratfunc"
	"github.com/rfielding/kripke-regions/smt"
)

func TestRational(t *testing.T) {
	assert.Equal(t, "(/ 3.0 10.0)", Rational(big.NewRat(3, 10)))
	assert.Equal(t, "(- 2.0)", Rational(big.NewRat(-2, 1)))
	assert.Equal(t, "0.0", Rational(new(big.Rat)))
}

func TestSymbol(t *testing.T) {
	assert.Equal(t, "p_1", Symbol("p_1"))
	assert.Equal(t, "|x y|", Symbol("x y"))
	assert.Equal(t, "|1p|", Symbol("1p"))
}

func TestTerm(t *testing.T) {
	half := big.NewRat(1, 2)
	assert.Equal(t,
		"(>= (+ (* (- 1.0) p) 1.0) (/ 1.0 2.0))",
		Term(smt.Relation{Left: ratfunc.MustParse("1-p"), Op: prop.GreaterEqual, Right: half}))
	assert.Equal(t,
		"(< (* 2.0 p p q) (/ 1.0 2.0))",
		Term(smt.Relation{Left: ratfunc.MustParse("2*p^2*q"), Op: prop.Less, Right: half}))
	assert.Equal(t,
		"(=> provesAllSat (and (not (= (+ q 1.0) 0.0)) (< (/ p (+ q 1.0)) 1.0)))",
		Term(smt.Guarded{Guard: "provesAllSat", Relation: smt.Relation{Left: ratfunc.MustParse("p/(q+1)"), Op: prop.Less, Right: big.NewRat(1, 1)}}))
	assert.Equal(t, "(not g)", Term(smt.Literal{Guard: "g"}))
	assert.Equal(t, "g", Term(smt.Literal{Guard: "g", Value: true}))
}

func TestZ3(t *testing.T) {
	if _, err := exec.LookPath(DefaultCommand[0]); err != nil {
		t.Skip("z3 not installed")
	}
	ctx := context.Background()
	p, err := prop.Parse(`P>=0.2 [F "target"]`)
	require.NoError(t, err)
	sess, err := smt.NewSession(ctx, Factory(nil, zerolog.Nop()), ratfunc.MustParse("p*q/(1-p)"), p, zerolog.Nop())
	require.NoError(t, err)
	defer sess.Close()

	vars := []ratfunc.Var{"p", "q"}
	lower := ratfunc.Point{"p": big.NewRat(3, 10), "q": big.NewRat(5, 10)}
	upper := ratfunc.Point{"p": big.NewRat(6, 10), "q": big.NewRat(9, 10)}
	st, err := sess.CheckRegion(ctx, vars, lower, upper, smt.ProveAllSat)
	require.NoError(t, err)
	// The minimum is 0.3*0.5/0.7 > 0.2.
	assert.Equal(t, smt.Unsat, st)

	lower["q"] = big.NewRat(1, 10)
	st, err = sess.CheckRegion(ctx, vars, lower, upper, smt.ProveAllSat)
	require.NoError(t, err)
	assert.Equal(t, smt.Sat, st)
	assert.False(t, sess.NeedsRestart())
}
