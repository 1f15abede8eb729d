package shadow

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfielding/kripke-regions/concrete"
	"github.com/rfielding/kripke-regions/elimination"
	"github.com/rfielding/kripke-regions/model"
	"github.com/rfielding/kripke-regions/models/random"
	"github.com/rfielding/kripke-regions/numeric"
	"github.com/rfielding/kripke-regions/ratfunc"
)

func twoState() *model.Reachability {
	return &model.Reachability{
		Rows:     [][]model.Edge{nil},
		OneStep:  []ratfunc.Func{ratfunc.MustParse("p")},
		Original: []int{0},
		Params:   []ratfunc.Var{"p"},
	}
}

func pt(kv ...any) ratfunc.Point {
	out := make(ratfunc.Point)
	for i := 0; i < len(kv); i += 2 {
		r, _ := new(big.Rat).SetString(kv[i+1].(string))
		out[ratfunc.Var(kv[i].(string))] = r
	}
	return out
}

func TestSampleModel(t *testing.T) {
	m := Build[float64](twoState(), numeric.NewFloat[float64]())
	assert.Equal(t, 1, m.Target)
	assert.Equal(t, 2, m.Sink)
	assert.Equal(t, 3, m.Sample.Groups())
	// p to target and 1-p to the sink.
	assert.Equal(t, 2, m.SampleEntries())

	c := concrete.NewChecker(1e-9)
	v, err := m.SampleProbability(c, pt("p", "0.3"))
	require.NoError(t, err)
	assert.InDelta(t, 0.3, v, 1e-9)

	entries := m.Sample.Entries()
	v, err = m.SampleProbability(c, pt("p", "0.8"))
	require.NoError(t, err)
	assert.InDelta(t, 0.8, v, 1e-9)
	assert.Equal(t, entries, m.Sample.Entries())
}

func TestBoundModel(t *testing.T) {
	m := Build[float64](twoState(), numeric.NewFloat[float64]())
	assert.Equal(t, 4, m.Bound.Rows(), "two corners for the parametric state, one row each for target and sink")
	assert.Len(t, m.Substitutions, 2)

	c := concrete.NewChecker(1e-9)
	maxLo, maxHi, err := m.BoundProbability(c, pt("p", "0.3"), pt("p", "0.6"), concrete.Maximize)
	require.NoError(t, err)
	assert.InDelta(t, 0.6, maxLo, 1e-9)
	assert.InDelta(t, 0.6, maxHi, 1e-9)

	minLo, _, err := m.BoundProbability(c, nil, nil, concrete.Minimize)
	require.NoError(t, err)
	assert.InDelta(t, 0.3, minLo, 1e-9)
}

func TestSubstitutionsArePerRow(t *testing.T) {
	r := &model.Reachability{
		Rows: [][]model.Edge{
			{{To: 1, Weight: ratfunc.MustParse("p")}, {To: 2, Weight: ratfunc.MustParse("1-p")}},
			{{To: 2, Weight: ratfunc.MustParse("q/2")}},
			nil,
		},
		OneStep:  []ratfunc.Func{ratfunc.Zero(), ratfunc.MustParse("1/2"), ratfunc.MustParse("1/3")},
		Original: []int{0, 1, 2},
		Params:   []ratfunc.Var{"p", "q", "unused"},
	}
	m := Build[float64](r, numeric.NewFloat[float64]())
	// {p:L} {p:U} {q:L} {q:U} and the empty substitution of the constant row.
	assert.Len(t, m.Substitutions, 5)
	assert.Equal(t, 2+2+1+2, m.Bound.Rows())

	c := concrete.NewChecker(1e-10)
	lower, upper := pt("p", "0.2", "q", "0.4"), pt("p", "0.5", "q", "0.8")
	lo, hi, err := m.BoundProbability(c, lower, upper, concrete.Maximize)
	require.NoError(t, err)
	// Both upper corners: p=0.5, q=0.8.
	want := 0.5*(0.5+0.4/3) + 0.5/3
	assert.InDelta(t, want, lo, 1e-8)
	assert.GreaterOrEqual(t, hi, want-1e-12)
}

func TestInvalidInstantiation(t *testing.T) {
	m := Build[float64](twoState(), numeric.NewFloat[float64]())
	err := m.InstantiatePoint(pt("p", "1.5"))
	assert.ErrorIs(t, err, ErrInvalidInstantiation)

	err = m.InstantiateRegion(pt("q", "0"), pt("q", "1"))
	assert.ErrorIs(t, err, ratfunc.ErrUnboundVariable)
}

func TestResolvePanicsOnBadHandle(t *testing.T) {
	m := Build[float64](twoState(), numeric.NewFloat[float64]())
	assert.Panics(t, func() { m.resolve(Handle{Model: SampleModel, Row: 0, Pos: 7}) })
	assert.Panics(t, func() { m.resolve(Handle{Model: BoundModel, Row: 99}) })
}

// The sample model and the reachability function agree at every point.
func TestSampleModelMatchesFunction(t *testing.T) {
	c := concrete.NewChecker(1e-12)
	for seed := int64(1); seed <= 12; seed++ {
		o := random.DefaultOptions()
		o.Seed = seed
		o.NonLinear = seed%2 == 1
		sys := random.Generate(o)
		require.NoError(t, sys.Validate())
		r, err := model.Prepare(sys, "target", zerolog.Nop())
		require.NoError(t, err)
		res := elimination.NewBuilder().Build(r)
		m := Build[float64](res.Reduced, numeric.NewFloat[float64]())

		rng := rand.New(rand.NewSource(seed))
		for i := 0; i < 5; i++ {
			p := ratfunc.Point{}
			for _, v := range o.Params {
				p[v] = big.NewRat(int64(5+rng.Intn(91)), 100)
			}
			want, err := res.Function.Evaluate(p)
			require.NoError(t, err)
			got, err := m.SampleProbability(c, p)
			require.NoError(t, err)
			wf, _ := want.Float64()
			assert.InDelta(t, wf, got, 1e-9, "seed %d at %s", seed, p)
		}
	}
}
