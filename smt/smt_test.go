package smt

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfielding/kripke-regions/prop"
	"github.com/rfielding/kripke-regions/ratfunc"
)

// recorder logs every call and answers Check with a fixed status.
type recorder struct {
	calls    []string
	asserts  []Constraint
	status   Status
	restart  bool
	checkErr error
}

func (r *recorder) Assert(_ context.Context, c Constraint) error {
	r.calls = append(r.calls, "assert")
	r.asserts = append(r.asserts, c)
	return nil
}

func (r *recorder) Push(context.Context) error {
	r.calls = append(r.calls, "push")
	return nil
}

func (r *recorder) Pop(context.Context) error {
	r.calls = append(r.calls, "pop")
	return nil
}

func (r *recorder) Check(context.Context) (Status, error) {
	r.calls = append(r.calls, "check")
	return r.status, r.checkErr
}

func (r *recorder) NeedsRestart() bool { return r.restart }
func (r *recorder) Close() error       { return nil }

func property(t *testing.T, s string) prop.Property {
	p, err := prop.Parse(s)
	require.NoError(t, err)
	return p
}

func TestSessionAssertsGuards(t *testing.T) {
	rec := &recorder{}
	factory := func(context.Context) (Solver, error) { return rec, nil }
	f := ratfunc.MustParse("p")
	s, err := NewSession(context.Background(), factory, f, property(t, `P<=0.3 [F "target"]`), zerolog.Nop())
	require.NoError(t, err)

	require.Len(t, rec.asserts, 2)
	allSat := rec.asserts[0].(Guarded)
	assert.Equal(t, ProvesAllSat, allSat.Guard)
	assert.Equal(t, prop.Greater, allSat.Relation.Op, "f > b refutes P<=b")
	allViolated := rec.asserts[1].(Guarded)
	assert.Equal(t, ProvesAllViolated, allViolated.Guard)
	assert.Equal(t, prop.LessEqual, allViolated.Relation.Op)
	assert.Equal(t, s.Assertions(), rec.asserts)
}

func TestCheckRegionAlwaysPops(t *testing.T) {
	for _, tc := range []struct {
		name   string
		status Status
		err    error
	}{
		{"sat", Sat, nil},
		{"unknown", Unknown, nil},
		{"error", Unknown, errors.New("solver died")},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rec := &recorder{status: tc.status, checkErr: tc.err}
			factory := func(context.Context) (Solver, error) { return rec, nil }
			s, err := NewSession(context.Background(), factory, ratfunc.MustParse("p"), property(t, `P>=0.5 [F "target"]`), zerolog.Nop())
			require.NoError(t, err)
			rec.calls = nil

			lower := ratfunc.Point{"p": big.NewRat(1, 10)}
			upper := ratfunc.Point{"p": big.NewRat(2, 10)}
			st, err := s.CheckRegion(context.Background(), []ratfunc.Var{"p"}, lower, upper, ProveAllViolated)
			assert.Equal(t, tc.status, st)
			assert.ErrorIs(t, err, tc.err)
			assert.Equal(t, []string{"push", "assert", "assert", "assert", "assert", "check", "pop"}, rec.calls)

			lits := rec.asserts[len(rec.asserts)-2:]
			assert.Equal(t, Literal{Guard: ProvesAllSat, Value: false}, lits[0])
			assert.Equal(t, Literal{Guard: ProvesAllViolated, Value: true}, lits[1])
		})
	}
}

func TestCheckRegionMissingBound(t *testing.T) {
	rec := &recorder{}
	factory := func(context.Context) (Solver, error) { return rec, nil }
	s, err := NewSession(context.Background(), factory, ratfunc.MustParse("p"), property(t, `P>=0.5 [F "target"]`), zerolog.Nop())
	require.NoError(t, err)
	_, err = s.CheckRegion(context.Background(), []ratfunc.Var{"p"}, ratfunc.Point{}, ratfunc.Point{}, ProveAllSat)
	assert.ErrorIs(t, err, ratfunc.ErrUnboundVariable)
	assert.Equal(t, "pop", rec.calls[len(rec.calls)-1])
}

func TestRestart(t *testing.T) {
	made := 0
	factory := func(context.Context) (Solver, error) {
		made++
		return &recorder{restart: true}, nil
	}
	s, err := NewSession(context.Background(), factory, ratfunc.MustParse("p*q"), property(t, `P>0.5 [F "target"]`), zerolog.Nop())
	require.NoError(t, err)
	assert.True(t, s.NeedsRestart())
	require.NoError(t, s.Restart(context.Background()))
	assert.Equal(t, 2, made)
	assert.Equal(t, 1, s.Restarts())

	require.NoError(t, s.Close())
	_, err = s.CheckRegion(context.Background(), nil, nil, nil, ProveAllSat)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestRelationHolds(t *testing.T) {
	r := Relation{Left: ratfunc.MustParse("1/(p-1)"), Op: prop.Less, Right: big.NewRat(0, 1)}
	ok, err := r.Holds(ratfunc.Point{"p": big.NewRat(1, 2)})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.Holds(ratfunc.Point{"p": big.NewRat(1, 1)})
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = r.Holds(ratfunc.Point{})
	assert.ErrorIs(t, err, ratfunc.ErrUnboundVariable)
}
