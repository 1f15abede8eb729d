// Package sparse provides row-grouped sparse matrices whose structure is
// fixed once built while values stay writable through stable slot indices.
// A DTMC has one row per row group, an MDP one row per choice.
package sparse

import (
	"fmt"
	"strings"

	"golang.org/x/exp/constraints"
)

// Slot addresses one stored value. Slots stay valid for the lifetime of the
// matrix because the structure never changes after Build.
type Slot int

// Matrix is a compressed row-grouped matrix.
type Matrix[C constraints.Float] struct {
	groups []int // groups[g]..groups[g+1] are the rows of group g
	rows   []int // rows[r]..rows[r+1] are the slots of row r
	cols   []int
	vals   []C
}

// Groups is the number of row groups, i.e. states.
func (m *Matrix[C]) Groups() int { return len(m.groups) - 1 }

// Rows is the total number of rows.
func (m *Matrix[C]) Rows() int { return len(m.rows) - 1 }

// Entries is the number of stored values.
func (m *Matrix[C]) Entries() int { return len(m.vals) }

// Group returns the row range [lo, hi) of group g.
func (m *Matrix[C]) Group(g int) (lo, hi int) { return m.groups[g], m.groups[g+1] }

// Row returns the slot range [lo, hi) of row r.
func (m *Matrix[C]) Row(r int) (lo, hi Slot) { return Slot(m.rows[r]), Slot(m.rows[r+1]) }

func (m *Matrix[C]) Column(s Slot) int { return m.cols[s] }

func (m *Matrix[C]) Value(s Slot) C { return m.vals[s] }

func (m *Matrix[C]) Set(s Slot, v C) { m.vals[s] = v }

// Deterministic reports whether every group has exactly one row.
func (m *Matrix[C]) Deterministic() bool { return m.Groups() == m.Rows() }

// RowSum adds the values of row r.
func (m *Matrix[C]) RowSum(r int) C {
	var sum C
	lo, hi := m.Row(r)
	for s := lo; s < hi; s++ {
		sum += m.vals[s]
	}
	return sum
}

func (m *Matrix[C]) String() string {
	var sb strings.Builder
	for g := 0; g < m.Groups(); g++ {
		lo, hi := m.Group(g)
		for r := lo; r < hi; r++ {
			fmt.Fprintf(&sb, "%d.%d:", g, r-lo)
			slo, shi := m.Row(r)
			for s := slo; s < shi; s++ {
				fmt.Fprintf(&sb, " %d=%g", m.cols[s], float64(m.vals[s]))
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// Builder assembles a Matrix group by group and row by row.
type Builder[C constraints.Float] struct {
	m       Matrix[C]
	lastCol int
}

func NewBuilder[C constraints.Float]() *Builder[C] {
	return &Builder[C]{m: Matrix[C]{groups: []int{0}, rows: []int{0}}, lastCol: -1}
}

// NewGroup opens a new row group with a first empty row.
func (b *Builder[C]) NewGroup() {
	b.m.groups = append(b.m.groups, b.m.groups[len(b.m.groups)-1])
	b.openRow()
}

// NewRow opens another row in the current group.
func (b *Builder[C]) NewRow() {
	if len(b.m.groups) == 1 {
		panic("sparse: NewRow before NewGroup")
	}
	b.openRow()
}

func (b *Builder[C]) openRow() {
	b.m.groups[len(b.m.groups)-1]++
	b.m.rows = append(b.m.rows, len(b.m.vals))
	b.lastCol = -1
}

// Add appends an entry to the current row. Columns must be increasing
// within a row.
func (b *Builder[C]) Add(col int, v C) Slot {
	if len(b.m.groups) == 1 {
		panic("sparse: Add before NewGroup")
	}
	if col <= b.lastCol {
		panic(fmt.Sprintf("sparse: column %d after %d", col, b.lastCol))
	}
	b.lastCol = col
	b.m.cols = append(b.m.cols, col)
	b.m.vals = append(b.m.vals, v)
	b.m.rows[len(b.m.rows)-1] = len(b.m.vals)
	return Slot(len(b.m.vals) - 1)
}

// Build returns the matrix. The builder must not be used afterwards.
func (b *Builder[C]) Build() *Matrix[C] {
	m := b.m
	return &m
}
