package region

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfielding/kripke-regions/ratfunc"
)

func TestCanBecome(t *testing.T) {
	all := []CheckResult{Unknown, ExistsSat, ExistsViolated, ExistsBoth, AllSat, AllViolated}
	allowed := map[CheckResult][]CheckResult{
		Unknown:        all,
		ExistsSat:      {ExistsSat, ExistsBoth, AllSat},
		ExistsViolated: {ExistsViolated, ExistsBoth, AllViolated},
		ExistsBoth:     {ExistsBoth},
		AllSat:         {AllSat},
		AllViolated:    {AllViolated},
	}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, contains(allowed[from], to), from.CanBecome(to), "%s -> %s", from, to)
		}
	}
}

func contains(xs []CheckResult, x CheckResult) bool {
	for _, y := range xs {
		if y == x {
			return true
		}
	}
	return false
}

func TestSetResult(t *testing.T) {
	r := MustNew(ratfunc.Point{"p": big.NewRat(0, 1)}, ratfunc.Point{"p": big.NewRat(1, 1)})
	require.NoError(t, r.setResult(ExistsSat))
	assert.ErrorIs(t, r.setResult(ExistsViolated), ErrForbiddenTransition)
	assert.Equal(t, ExistsSat, r.Result())
	require.NoError(t, r.setResult(AllSat))
	assert.ErrorIs(t, r.setResult(ExistsBoth), ErrForbiddenTransition)
	assert.True(t, r.Result().Conclusive())
}

func TestNew(t *testing.T) {
	_, err := New(ratfunc.Point{"p": big.NewRat(1, 2)}, ratfunc.Point{"p": big.NewRat(1, 4)})
	assert.ErrorIs(t, err, ErrInvalidBounds)
	_, err = New(ratfunc.Point{"p": big.NewRat(1, 2)}, ratfunc.Point{})
	assert.ErrorIs(t, err, ErrMissingBound)
	_, err = New(ratfunc.Point{}, ratfunc.Point{"p": big.NewRat(1, 2)})
	assert.ErrorIs(t, err, ErrMissingBound)

	lo := big.NewRat(1, 4)
	r, err := New(ratfunc.Point{"q": lo, "p": lo}, ratfunc.Point{"q": big.NewRat(1, 2), "p": lo})
	require.NoError(t, err)
	assert.Equal(t, []ratfunc.Var{"p", "q"}, r.Vars())
	lo.SetInt64(0)
	got, _ := r.Lower("p")
	assert.Equal(t, "1/4", got.RatString(), "bounds are copied")
}

func TestVertices(t *testing.T) {
	r, err := ParseRegion("0.3<=p<=0.6,0.1<=q<=0.2,0<=r<=1")
	require.NoError(t, err)
	vs := r.Vertices()
	require.Len(t, vs, 8)
	seen := map[string]bool{}
	for _, v := range vs {
		require.Len(t, v, 3)
		seen[v["p"].RatString()+" "+v["q"].RatString()+" "+v["r"].RatString()] = true
	}
	assert.Len(t, seen, 8)
	assert.True(t, seen["3/10 1/10 0"])
	assert.True(t, seen["3/5 1/5 1"])

	assert.Len(t, r.VerticesOf([]ratfunc.Var{"p"}), 2)
	empty := r.VerticesOf(nil)
	require.Len(t, empty, 1)
	assert.Empty(t, empty[0])
}

func TestParse(t *testing.T) {
	rs, err := Parse("0.3<=p<=0.6, 1/10 <= q <= 0.2; 0<=p<=1,0<=q<=1;")
	require.NoError(t, err)
	require.Len(t, rs, 2)
	assert.Equal(t, "0.3<=p<=0.6,0.1<=q<=0.2", rs[0].String())
	assert.Equal(t, "0<=p<=1,0<=q<=1", rs[1].String())

	again, err := ParseRegion(rs[0].String())
	require.NoError(t, err)
	assert.Equal(t, rs[0].String(), again.String())

	third, err := ParseRegion("0<=p<=1/3")
	require.NoError(t, err)
	assert.Equal(t, "0<=p<=1/3", third.String())

	none, err := ParseRegion("  ")
	require.NoError(t, err)
	assert.Empty(t, none.Vars())
	assert.Equal(t, "", none.String())
}

func TestParseErrors(t *testing.T) {
	for _, s := range []string{"p<=0.5", "0.3<=p", "0.3<=p<=x", "0<=p<=1,0<=p<=1", "0.3<p<0.6"} {
		_, err := ParseRegion(s)
		assert.ErrorIs(t, err, ErrSyntax, s)
	}
	_, err := ParseRegion("0.6<=p<=0.3")
	assert.ErrorIs(t, err, ErrInvalidBounds)
}

func TestLoad(t *testing.T) {
	src := `
regions:
  - {p: [0.3, 0.6], q: [0.1, 0.2]}
  - {p: [0, 1/2], q: [0, 1]}
`
	rs, err := Load(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, rs, 2)
	assert.Equal(t, "0.3<=p<=0.6,0.1<=q<=0.2", rs[0].String())
	assert.Equal(t, "0<=p<=0.5,0<=q<=1", rs[1].String())

	_, err = Load(strings.NewReader("regions:\n  - {p: [0.3]}\n"))
	assert.ErrorIs(t, err, ErrSyntax)
	_, err = Load(strings.NewReader("regions:\n  - {p: [0.6, 0.3]}\n"))
	assert.ErrorIs(t, err, ErrInvalidBounds)
}

func TestStatisticsWriteTo(t *testing.T) {
	s := Statistics{CheckedRegions: 4, AllSat: 2, ExistsBoth: 1, SolvedBySampling: 3, AllLinear: true, Property: `P>=0.5 [F "target"]`}
	var sb strings.Builder
	_, err := s.WriteTo(&sb)
	require.NoError(t, err)
	out := sb.String()
	assert.Contains(t, out, "Number of checked regions: 4")
	assert.Contains(t, out, "Number of solved regions: 3 (75%)")
	assert.Contains(t, out, "AllSat:      2 (50%)")
	assert.Contains(t, out, "Unsolved:    1 (25%)")
	assert.Contains(t, out, "All occurring functions in the model are linear.")
	assert.Contains(t, out, "3 regions solved through sampling")

	table := s.MetricsTable()
	assert.Contains(t, table, "| all_sat | 2 | regions |")
	assert.True(t, strings.HasPrefix(table, "| Metric |"))
}

func TestCheckResultText(t *testing.T) {
	for c := Unknown; c <= AllViolated; c++ {
		b, err := c.MarshalText()
		require.NoError(t, err)
		var back CheckResult
		require.NoError(t, back.UnmarshalText(b))
		assert.Equal(t, c, back)
	}
	var r CheckResult
	assert.Error(t, r.UnmarshalText([]byte("MAYBE")))
}
