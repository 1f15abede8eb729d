package numeric

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfielding/kripke-regions/ratfunc"
)

func TestFloatAdapter(t *testing.T) {
	a := NewFloat[float64]()
	f := ratfunc.MustParse("p/(1+p)")

	v, err := a.Evaluate(f, ratfunc.Point{"p": big.NewRat(1, 3)})
	require.NoError(t, err)
	assert.InDelta(t, 0.25, v, 1e-12)

	assert.False(t, a.IsLinear(f))
	assert.True(t, a.IsConstant(ratfunc.MustParse("1/2")))
	assert.True(t, a.IsZero(ratfunc.Zero()))

	var sym Symbolic = a
	assert.True(t, sym.IsLinear(ratfunc.MustParse("2*p - q/3")))
}

func TestFloat32Adapter(t *testing.T) {
	a := NewFloat[float32]()
	assert.InDelta(t, float32(0.1), a.FromRat(big.NewRat(1, 10)), 1e-7)
	assert.Equal(t, float32(DefaultPrecision), a.Precision())
}
