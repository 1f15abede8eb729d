package cache

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfielding/kripke-regions/model"
	"github.com/rfielding/kripke-regions/ratfunc"
)

const twoState = `
name: two-state
parameters: [p]
states:
  - name: s0
    initial: true
    transitions:
      - {to: s1, weight: p}
      - {to: sink, weight: 1-p}
  - name: s1
    labels: [target]
  - name: sink
`

func TestPutGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "functions.db")
	c, err := Open(path)
	require.NoError(t, err)

	_, ok, err := c.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	f := ratfunc.MustParse("(p*q + 1/3)/(1 - p)")
	require.NoError(t, c.Put("k", f))
	got, ok, err := c.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, f.String(), got.String())
	require.NoError(t, c.Close())

	c, err = Open(path)
	require.NoError(t, err)
	defer c.Close()
	got, ok, err = c.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, f.String(), got.String())
	n, err := c.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestClosed(t *testing.T) {
	c, err := Open(filepath.Join(t.TempDir(), "functions.db"))
	require.NoError(t, err)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	_, _, err = c.Get("k")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, c.Put("k", ratfunc.One()), ErrClosed)
}

func TestKey(t *testing.T) {
	a, err := model.Load(strings.NewReader(twoState))
	require.NoError(t, err)
	b, err := model.Load(strings.NewReader(twoState))
	require.NoError(t, err)

	ka, err := Key(a, "target")
	require.NoError(t, err)
	kb, err := Key(b, "target")
	require.NoError(t, err)
	assert.Equal(t, ka, kb)
	assert.Len(t, ka, 64)

	other, err := Key(a, "sink")
	require.NoError(t, err)
	assert.NotEqual(t, ka, other)

	require.NoError(t, b.AddTransition(2, 2, ratfunc.One()))
	kb, err = Key(b, "target")
	require.NoError(t, err)
	assert.NotEqual(t, ka, kb)
}
