package elimination

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/bits-and-blooms/bitset"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfielding/kripke-regions/model"
	"github.com/rfielding/kripke-regions/models/random"
	"github.com/rfielding/kripke-regions/numeric"
	"github.com/rfielding/kripke-regions/ratfunc"
)

func prepare(t *testing.T, sys *model.System) *model.Reachability {
	t.Helper()
	require.NoError(t, sys.Validate())
	r, err := model.Prepare(sys, "target", zerolog.Nop())
	require.NoError(t, err)
	return r
}

// loop is s0 -p-> s1 -q-> s0, s0 -(1-p)-> sink, s1 -(1-q)-> goal.
func loop(t *testing.T) *model.Reachability {
	sys := model.NewSystem("loop")
	s0, _ := sys.AddState("s0")
	s1, _ := sys.AddState("s1")
	goal, _ := sys.AddState("goal", "target")
	sink, _ := sys.AddState("sink")
	sys.SetInitial(s0)
	sys.AddTransition(s0, s1, ratfunc.MustParse("p"))
	sys.AddTransition(s0, sink, ratfunc.MustParse("1-p"))
	sys.AddTransition(s1, s0, ratfunc.MustParse("q"))
	sys.AddTransition(s1, goal, ratfunc.MustParse("1-q"))
	return prepare(t, sys)
}

// absorbing treats goal and sink alike, so that every row of the result is a
// full distribution over the transient states and the absorbed mass.
func absorbing(sys *model.System, n int) *model.Reachability {
	r := &model.Reachability{
		Rows:     make([][]model.Edge, n),
		OneStep:  make([]ratfunc.Func, n),
		Original: make([]int, n),
	}
	for s := 0; s < n; s++ {
		r.Original[s] = s
		for _, e := range sys.Rows[s] {
			if e.To >= n {
				r.OneStep[s] = r.OneStep[s].Add(e.Weight)
				continue
			}
			r.Rows[s] = append(r.Rows[s], e)
		}
	}
	return r
}

func randomPoint(rng *rand.Rand, vars []ratfunc.Var) ratfunc.Point {
	pt := make(ratfunc.Point, len(vars))
	for _, v := range vars {
		pt[v] = big.NewRat(int64(rng.Intn(99)+1), 100)
	}
	return pt
}

func evalAt(t *testing.T, f ratfunc.Func, pt ratfunc.Point) *big.Rat {
	t.Helper()
	v, err := f.Evaluate(pt)
	require.NoError(t, err)
	return v
}

func TestBuildLoop(t *testing.T) {
	res := NewBuilder().Build(loop(t))
	pt := ratfunc.Point{"p": big.NewRat(1, 2), "q": big.NewRat(1, 3)}
	assert.Equal(t, "2/5", evalAt(t, res.Function, pt).RatString())
	assert.True(t, res.AllLinear)
	assert.False(t, res.Function.IsLinear())
	assert.Equal(t, 0, res.Stats.ConstantStates)
	assert.Equal(t, 2, res.Stats.ParametricStates)
}

func TestEliminateKeepsViewsMirrored(t *testing.T) {
	r := loop(t)
	m := FromReachability(r)
	sub := bitset.New(uint(r.N())).Set(0).Set(1)
	el := NewEliminator(m, append([]ratfunc.Func(nil), r.OneStep...), sub)

	el.Eliminate(1)
	require.NoError(t, m.CheckMirror())
	assert.False(t, sub.Test(1))
	self, ok := m.Get(0, 0)
	require.True(t, ok)
	assert.Equal(t, "p*q", self.String())
	assert.Equal(t, "-p*q + p", el.OneStep[0].String())
	assert.Empty(t, m.Column(1))

	el.Eliminate(0)
	require.NoError(t, m.CheckMirror())
	assert.Equal(t, 0, m.OutDegree(0))
}

func TestEliminateTwicePanics(t *testing.T) {
	r := loop(t)
	sub := bitset.New(2).Set(0).Set(1)
	el := NewEliminator(FromReachability(r), append([]ratfunc.Func(nil), r.OneStep...), sub)
	el.Eliminate(1)
	defer func() {
		e, ok := recover().(*InvariantError)
		require.True(t, ok)
		assert.Equal(t, 1, e.State)
	}()
	el.Eliminate(1)
}

func TestEliminationPreservesMass(t *testing.T) {
	for seed := int64(1); seed <= 10; seed++ {
		o := random.DefaultOptions()
		o.Seed = seed
		o.NonLinear = seed%2 == 0
		r := absorbing(random.Generate(o), o.States)
		params := o.Params

		n := r.N()
		m := FromReachability(r)
		sub := bitset.New(uint(n))
		for s := 0; s < n; s++ {
			sub.Set(uint(s))
		}
		el := NewEliminator(m, append([]ratfunc.Func(nil), r.OneStep...), sub)
		rng := rand.New(rand.NewSource(seed))

		checkMass := func(step int) {
			pt := randomPoint(rng, params)
			for s := 0; s < n; s++ {
				if !sub.Test(uint(s)) {
					continue
				}
				sum := evalAt(t, el.OneStep[s], pt)
				for _, e := range m.Row(s) {
					sum.Add(sum, evalAt(t, e.Weight, pt))
				}
				require.Equal(t, "1", sum.RatString(), "seed %d step %d state %d", seed, step, s)
			}
		}

		checkMass(0)
		for _, s := range rng.Perm(n) {
			if s == r.Initial {
				continue
			}
			el.Eliminate(s)
			require.NoError(t, m.CheckMirror())
			checkMass(el.Eliminated())
		}
	}
}

func TestOrderingsAgree(t *testing.T) {
	configs := []Builder{
		{Method: Plain, Priority: StaticPenalty},
		{Method: Plain, Priority: Forward},
		{Method: Plain, Priority: BackwardReversed},
		{Method: Hybrid, Priority: ForwardReversed, MaxSCCSize: 2},
		{Method: Hybrid, Priority: Backward, MaxSCCSize: 1, EliminateEntryStatesLast: true},
		{Method: Hybrid, Priority: StaticPenalty, MaxSCCSize: 100},
	}
	for seed := int64(1); seed <= 8; seed++ {
		o := random.DefaultOptions()
		o.Seed = seed
		o.States = 10
		o.NonLinear = seed%3 == 0
		r := prepare(t, random.Generate(o))
		rng := rand.New(rand.NewSource(seed))
		pt := randomPoint(rng, o.Params)

		var want *big.Rat
		for _, b := range configs {
			b.Log = zerolog.Nop()
			res := b.Build(r)
			got := evalAt(t, res.Function, pt)
			if want == nil {
				want = got
				continue
			}
			assert.Equal(t, want.RatString(), got.RatString(), "seed %d %s/%s", seed, b.Method, b.Priority)
		}
	}
}

func TestConstantPrepass(t *testing.T) {
	sys := model.NewSystem("prepass")
	s0, _ := sys.AddState("s0")
	c, _ := sys.AddState("c")
	goal, _ := sys.AddState("goal", "target")
	sink, _ := sys.AddState("sink")
	sys.SetInitial(s0)
	sys.AddTransition(s0, c, ratfunc.MustParse("p"))
	sys.AddTransition(s0, sink, ratfunc.MustParse("1-p"))
	sys.AddTransition(c, c, ratfunc.MustParse("1/2"))
	sys.AddTransition(c, goal, ratfunc.MustParse("1/4"))
	sys.AddTransition(c, sink, ratfunc.MustParse("1/4"))
	r := prepare(t, sys)

	res := NewBuilder().Build(r)
	assert.Equal(t, 1, res.Stats.ConstantStates)
	assert.Equal(t, 1, res.Reduced.N())
	assert.Equal(t, []int{s0}, res.Reduced.Original)
	assert.True(t, res.AllLinear)
	assert.Equal(t, "1/2*p", res.Function.String())
	assert.Equal(t, "1/2*p", res.Reduced.OneStep[0].String())
	// The input system is untouched.
	assert.Equal(t, 2, r.N())

	// The pre-pass and the linearity flag follow the symbolic tests.
	b := NewBuilder()
	b.Symbolic = symbolic{}
	res = b.Build(r)
	assert.Equal(t, 0, res.Stats.ConstantStates)
	assert.Equal(t, 2, res.Reduced.N())
	assert.False(t, res.AllLinear)
	assert.Equal(t, "1/2*p", res.Function.String())
}

// symbolic treats nothing as constant or linear.
type symbolic struct{ numeric.Exact }

func (symbolic) IsConstant(ratfunc.Func) bool { return false }
func (symbolic) IsLinear(ratfunc.Func) bool   { return false }

func TestParseNames(t *testing.T) {
	m, err := ParseMethod("hybrid")
	require.NoError(t, err)
	assert.Equal(t, Hybrid, m)
	_, err = ParseMethod("gauss")
	assert.Error(t, err)

	p, err := ParsePriority("fwrev")
	require.NoError(t, err)
	assert.Equal(t, ForwardReversed, p)
	assert.Equal(t, "penalty", StaticPenalty.String())
}
