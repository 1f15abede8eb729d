// Package shadow builds the numeric models that share the topology of a
// parametric reachability system: a sample chain instantiated at one
// parameter point, and a bound process whose choices instantiate every row at
// each corner of a parameter box.
//
// Both models are built once. Queries only overwrite values through the
// entry maps; the matrix structure never changes.
package shadow

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/bits-and-blooms/bitset"
	"golang.org/x/exp/constraints"

	"github.com/rfielding/kripke-regions/concrete"
	"github.com/rfielding/kripke-regions/model"
	"github.com/rfielding/kripke-regions/numeric"
	"github.com/rfielding/kripke-regions/ratfunc"
	"github.com/rfielding/kripke-regions/sparse"
)

// ErrInvalidInstantiation is returned when a weight evaluates to a negative
// probability beyond the numeric precision.
var ErrInvalidInstantiation = errors.New("invalid instantiation")

// InvariantError reports a handle that does not resolve. It is raised with
// panic.
type InvariantError struct {
	Handle Handle
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("shadow model handle %+v does not resolve", e.Handle)
}

// ModelID names one of the two shadow models.
type ModelID int

const (
	SampleModel ModelID = iota
	BoundModel
)

// Handle addresses a value by model, row and position within the row.
type Handle struct {
	Model ModelID
	Row   int
	Pos   int
}

// Bound selects one end of a parameter interval.
type Bound int

const (
	Lower Bound = iota
	Upper
)

// Substitution maps each parameter of a row to one of its bounds.
type Substitution map[ratfunc.Var]Bound

func (s Substitution) key() string {
	vars := make([]ratfunc.Var, 0, len(s))
	for v := range s {
		vars = append(vars, v)
	}
	ratfunc.SortVars(vars)
	var sb strings.Builder
	for _, v := range vars {
		sb.WriteString(string(v))
		if s[v] == Lower {
			sb.WriteString("=L;")
		} else {
			sb.WriteString("=U;")
		}
	}
	return sb.String()
}

type sampleEntry struct {
	f ratfunc.Func
	h Handle
}

type boundEntry struct {
	f   ratfunc.Func
	h   Handle
	sub int
}

// Models holds the sample chain, the bound process and their entry maps.
type Models[C constraints.Float] struct {
	Sample *sparse.Matrix[C]
	Bound  *sparse.Matrix[C]
	// Initial, Target and Sink are state indices shared by both models.
	Initial int
	Target  int
	Sink    int
	// Substitutions lists the distinct corner selections used by the bound
	// model.
	Substitutions []Substitution

	targets   *bitset.BitSet
	sampleMap []sampleEntry
	boundMap  []boundEntry
	adapter   numeric.Adapter[C]
}

type rowEntry struct {
	col int
	f   ratfunc.Func
}

// rowOf lists the outgoing weights of s, followed by the target and sink
// edges, in column order.
func rowOf(r *model.Reachability, s int, sym numeric.Symbolic) []rowEntry {
	n := r.N()
	row := make([]rowEntry, 0, len(r.Rows[s])+2)
	residual := ratfunc.One()
	for _, e := range r.Rows[s] {
		row = append(row, rowEntry{col: e.To, f: e.Weight})
		residual = residual.Sub(e.Weight)
	}
	sortRow(row)
	if !sym.IsZero(r.OneStep[s]) {
		row = append(row, rowEntry{col: n, f: r.OneStep[s]})
		residual = residual.Sub(r.OneStep[s])
	}
	if !sym.IsZero(residual) {
		row = append(row, rowEntry{col: n + 1, f: residual})
	}
	return row
}

func sortRow(row []rowEntry) {
	sort.Slice(row, func(i, j int) bool { return row[i].col < row[j].col })
}

// Build creates both models for r. States keep their numbering; Target and
// Sink are appended after them.
func Build[C constraints.Float](r *model.Reachability, adapter numeric.Adapter[C]) *Models[C] {
	n := r.N()
	m := &Models[C]{
		Initial: r.Initial,
		Target:  n,
		Sink:    n + 1,
		targets: bitset.New(uint(n + 2)).Set(uint(n)),
		adapter: adapter,
	}

	sample := sparse.NewBuilder[C]()
	bound := sparse.NewBuilder[C]()
	subIndex := make(map[string]int)
	boundRow := 0

	for s := 0; s < n; s++ {
		row := rowOf(r, s, adapter)

		sample.NewGroup()
		for pos, e := range row {
			v := C(0)
			if c, ok := e.f.Const(); ok {
				v = adapter.FromRat(c)
			} else {
				m.sampleMap = append(m.sampleMap, sampleEntry{f: e.f, h: Handle{Model: SampleModel, Row: s, Pos: pos}})
			}
			sample.Add(e.col, v)
		}

		vars := make(map[ratfunc.Var]struct{})
		for _, e := range row {
			e.f.GatherVars(vars)
		}
		sorted := ratfunc.SortedVars(vars)
		bound.NewGroup()
		for combo := 0; combo < 1<<len(sorted); combo++ {
			if combo > 0 {
				bound.NewRow()
			}
			sub := make(Substitution, len(sorted))
			for i, v := range sorted {
				sub[v] = Lower
				if combo&(1<<i) != 0 {
					sub[v] = Upper
				}
			}
			id, ok := subIndex[sub.key()]
			if !ok {
				id = len(m.Substitutions)
				subIndex[sub.key()] = id
				m.Substitutions = append(m.Substitutions, sub)
			}
			for pos, e := range row {
				v := C(0)
				if c, ok := e.f.Const(); ok {
					v = adapter.FromRat(c)
				} else {
					m.boundMap = append(m.boundMap, boundEntry{f: e.f, h: Handle{Model: BoundModel, Row: boundRow, Pos: pos}, sub: id})
				}
				bound.Add(e.col, v)
			}
			boundRow++
		}
	}

	for _, st := range []int{m.Target, m.Sink} {
		sample.NewGroup()
		sample.Add(st, 1)
		bound.NewGroup()
		bound.Add(st, 1)
	}
	m.Sample = sample.Build()
	m.Bound = bound.Build()
	return m
}

// SampleEntries and BoundEntries report the entry map sizes.
func (m *Models[C]) SampleEntries() int { return len(m.sampleMap) }

func (m *Models[C]) BoundEntries() int { return len(m.boundMap) }

func (m *Models[C]) matrix(id ModelID) *sparse.Matrix[C] {
	if id == BoundModel {
		return m.Bound
	}
	return m.Sample
}

// resolve maps a handle to its slot through the row offsets of the model.
func (m *Models[C]) resolve(h Handle) (*sparse.Matrix[C], sparse.Slot) {
	mat := m.matrix(h.Model)
	if h.Row < 0 || h.Row >= mat.Rows() {
		panic(&InvariantError{Handle: h})
	}
	lo, hi := mat.Row(h.Row)
	slot := lo + sparse.Slot(h.Pos)
	if h.Pos < 0 || slot >= hi {
		panic(&InvariantError{Handle: h})
	}
	return mat, slot
}

func (m *Models[C]) value(f ratfunc.Func, pt ratfunc.Point) (C, error) {
	v, err := m.adapter.Evaluate(f, pt)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		if v < -m.adapter.Precision() {
			return 0, fmt.Errorf("%w: %s evaluates to %g at %s", ErrInvalidInstantiation, f, float64(v), pt)
		}
		v = 0
	}
	return v, nil
}

// InstantiatePoint writes the weights at pt into the sample model.
func (m *Models[C]) InstantiatePoint(pt ratfunc.Point) error {
	for _, e := range m.sampleMap {
		v, err := m.value(e.f, pt)
		if err != nil {
			return err
		}
		mat, slot := m.resolve(e.h)
		mat.Set(slot, v)
	}
	return nil
}

// InstantiateRegion writes, for every choice of the bound model, the weights
// at the corner of [lower, upper] selected by the choice's substitution.
func (m *Models[C]) InstantiateRegion(lower, upper ratfunc.Point) error {
	corners := make([]ratfunc.Point, len(m.Substitutions))
	for i, sub := range m.Substitutions {
		pt := make(ratfunc.Point, len(sub))
		for v, b := range sub {
			src := lower
			if b == Upper {
				src = upper
			}
			x, ok := src[v]
			if !ok {
				return fmt.Errorf("%w: no bound for %s", ratfunc.ErrUnboundVariable, v)
			}
			pt[v] = x
		}
		corners[i] = pt
	}
	for _, e := range m.boundMap {
		v, err := m.value(e.f, corners[e.sub])
		if err != nil {
			return err
		}
		mat, slot := m.resolve(e.h)
		mat.Set(slot, v)
	}
	return nil
}

// SampleProbability instantiates the sample model at pt and returns the
// probability of reaching the target from the initial state.
func (m *Models[C]) SampleProbability(c concrete.Checker[C], pt ratfunc.Point) (C, error) {
	if err := m.InstantiatePoint(pt); err != nil {
		return 0, err
	}
	x, err := c.ReachabilityDTMC(m.Sample, m.targets)
	if err != nil {
		return 0, err
	}
	return x[m.Initial], nil
}

// BoundProbability instantiates the bound model with the box and brackets
// the optimal probability in direction dir. The last region instantiated is
// reused when lower and upper are nil.
func (m *Models[C]) BoundProbability(c concrete.Checker[C], lower, upper ratfunc.Point, dir concrete.Direction) (lo, hi C, err error) {
	if lower != nil {
		if err := m.InstantiateRegion(lower, upper); err != nil {
			return 0, 0, err
		}
	}
	xlo, xhi, err := c.ReachabilityMDPBounds(m.Bound, m.targets, dir)
	if err != nil {
		return 0, 0, err
	}
	return xlo[m.Initial], xhi[m.Initial], nil
}
