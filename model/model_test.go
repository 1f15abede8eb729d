package model

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfielding/kripke-regions/numeric"
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

func TestLoad(t *testing.T) {
	sys, err := Load(strings.NewReader(twoState))
	require.NoError(t, err)
	assert.Equal(t, "two-state", sys.Name)
	assert.Equal(t, []string{"s0", "s1", "sink"}, sys.States)
	assert.Equal(t, []int{0}, sys.Initial)
	assert.Equal(t, []ratfunc.Var{"p"}, sys.Params)
	require.Len(t, sys.Rows[0], 2)
	assert.Equal(t, "p", sys.Rows[0][0].Weight.String())
	assert.Equal(t, []string{"target"}, sys.Labels(1))
}

func TestLoadNumericWeights(t *testing.T) {
	src := `
name: coin
states:
  - name: a
    initial: true
    transitions:
      - {to: b, weight: 0.5}
      - {to: c, weight: 0.5}
  - name: b
    labels: [heads]
  - name: c
`
	sys, err := Load(strings.NewReader(src))
	require.NoError(t, err)
	assert.Empty(t, sys.Params)
	assert.Equal(t, "1/2", sys.Rows[0][0].Weight.String())
}

func TestLoadErrors(t *testing.T) {
	notStochastic := strings.Replace(twoState, "weight: 1-p", "weight: 1-2*p", 1)
	_, err := Load(strings.NewReader(notStochastic))
	assert.ErrorIs(t, err, ErrNotStochastic)

	undeclared := strings.Replace(twoState, "parameters: [p]", "parameters: [q]", 1)
	_, err = Load(strings.NewReader(undeclared))
	assert.ErrorIs(t, err, ErrUndeclaredParameter)

	badTarget := strings.Replace(twoState, "to: sink", "to: nowhere", 1)
	_, err = Load(strings.NewReader(badTarget))
	assert.ErrorIs(t, err, ErrUnknownState)

	badWeight := strings.Replace(twoState, "weight: p}", "weight: p +}", 1)
	_, err = Load(strings.NewReader(badWeight))
	assert.ErrorIs(t, err, ratfunc.ErrSyntax)
}

func TestMarshalRoundTrip(t *testing.T) {
	sys, err := Load(strings.NewReader(twoState))
	require.NoError(t, err)
	data, err := sys.Marshal()
	require.NoError(t, err)
	again, err := Load(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, sys.States, again.States)
	assert.True(t, sys.Rows[0][1].Weight.Equal(again.Rows[0][1].Weight))
}

func TestPrepareTwoState(t *testing.T) {
	sys, err := Load(strings.NewReader(twoState))
	require.NoError(t, err)
	r, err := Prepare(sys, "target", zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 1, r.N())
	assert.Equal(t, 0, r.Initial)
	assert.Equal(t, []int{0}, r.Original)
	assert.Empty(t, r.Rows[0])
	assert.Equal(t, "p", r.OneStep[0].String())
	assert.True(t, r.AllLinear(numeric.Exact{}))
	assert.Equal(t, PrepareStats{States: 3, Transitions: 2, Prob0: 1, Prob1: 1, Maybe: 1}, r.Stats)
}

func TestPrepareLoop(t *testing.T) {
	sys := NewSystem("loop")
	s0, _ := sys.AddState("s0")
	s1, _ := sys.AddState("s1")
	goal, _ := sys.AddState("goal", "target")
	sink, _ := sys.AddState("sink")
	orphan, _ := sys.AddState("orphan")
	sys.SetInitial(s0)
	require.NoError(t, sys.AddTransition(s0, s1, ratfunc.MustParse("p")))
	require.NoError(t, sys.AddTransition(s0, sink, ratfunc.MustParse("1-p")))
	require.NoError(t, sys.AddTransition(s1, s0, ratfunc.MustParse("q")))
	require.NoError(t, sys.AddTransition(s1, goal, ratfunc.MustParse("1-q")))
	require.NoError(t, sys.AddTransition(orphan, s1, ratfunc.One()))
	require.NoError(t, sys.Validate())

	r, err := Prepare(sys, "target", zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, []int{s0, s1}, r.Original)
	require.Len(t, r.Rows[0], 1)
	assert.Equal(t, 1, r.Rows[0][0].To)
	assert.Equal(t, "p", r.Rows[0][0].Weight.String())
	assert.True(t, r.OneStep[0].IsZero())
	assert.Equal(t, "-q + 1", r.OneStep[1].String())
	assert.Equal(t, []ratfunc.Var{"p", "q"}, sys.Params)
}

func TestPrepareDecidedInitial(t *testing.T) {
	sys, err := Load(strings.NewReader(twoState))
	require.NoError(t, err)
	sys.SetInitial(1)
	r, err := Prepare(sys, "target", zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 1, r.N())
	assert.True(t, r.OneStep[0].IsOne())

	sys.SetInitial(2)
	r, err = Prepare(sys, "target", zerolog.Nop())
	require.NoError(t, err)
	assert.True(t, r.OneStep[0].IsZero())
}

func TestPrepareErrors(t *testing.T) {
	sys, err := Load(strings.NewReader(twoState))
	require.NoError(t, err)
	_, err = Prepare(sys, "missing", zerolog.Nop())
	assert.ErrorIs(t, err, ErrUnknownLabel)

	sys.SetInitial(0, 1)
	_, err = Prepare(sys, "target", zerolog.Nop())
	assert.ErrorIs(t, err, ErrInitialStates)
}

func TestDiagrams(t *testing.T) {
	sys, err := Load(strings.NewReader(twoState))
	require.NoError(t, err)

	var dot bytes.Buffer
	require.NoError(t, sys.WriteDOT(&dot))
	assert.Contains(t, dot.String(), "digraph MarkovChain")
	assert.Contains(t, dot.String(), `start -> "s0"`)
	assert.Contains(t, dot.String(), `"s0" -> "s1" [label="p"]`)
	assert.Contains(t, dot.String(), `"s1" [label="s1\n{target}"]`)

	var mm bytes.Buffer
	require.NoError(t, sys.WriteMermaid(&mm))
	assert.Contains(t, mm.String(), "[*] --> s0")
	assert.Contains(t, mm.String(), "s0 --> sink : -p + 1")
}
