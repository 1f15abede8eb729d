// Package elimination reduces a parametric reachability system to the closed
// form probability of reaching the target from the initial state.
package elimination

import (
	"fmt"

	"github.com/tidwall/btree"

	"github.com/rfielding/kripke-regions/model"
	"github.com/rfielding/kripke-regions/ratfunc"
)

// Entry is one weighted edge as seen from a row (forward) or a column
// (backward).
type Entry struct {
	State  int
	Weight ratfunc.Func
}

// FlexibleMatrix keeps a weighted graph in forward and backward form.
// forward[s] maps successors to weights and backward[t] maps predecessors to
// the same weights; every write goes through both views.
type FlexibleMatrix struct {
	forward  []*btree.Map[int, ratfunc.Func]
	backward []*btree.Map[int, ratfunc.Func]
}

const rowDegree = 32

func NewFlexibleMatrix(n int) *FlexibleMatrix {
	m := &FlexibleMatrix{
		forward:  make([]*btree.Map[int, ratfunc.Func], n),
		backward: make([]*btree.Map[int, ratfunc.Func], n),
	}
	for i := 0; i < n; i++ {
		m.forward[i] = btree.NewMap[int, ratfunc.Func](rowDegree)
		m.backward[i] = btree.NewMap[int, ratfunc.Func](rowDegree)
	}
	return m
}

// FromReachability loads the rows of r.
func FromReachability(r *model.Reachability) *FlexibleMatrix {
	m := NewFlexibleMatrix(r.N())
	for from, row := range r.Rows {
		for _, e := range row {
			m.Add(from, e.To, e.Weight)
		}
	}
	return m
}

// Clone returns an independent copy.
func (m *FlexibleMatrix) Clone() *FlexibleMatrix {
	out := &FlexibleMatrix{
		forward:  make([]*btree.Map[int, ratfunc.Func], len(m.forward)),
		backward: make([]*btree.Map[int, ratfunc.Func], len(m.backward)),
	}
	for i := range m.forward {
		out.forward[i] = m.forward[i].Copy()
		out.backward[i] = m.backward[i].Copy()
	}
	return out
}

func (m *FlexibleMatrix) N() int { return len(m.forward) }

func (m *FlexibleMatrix) Get(from, to int) (ratfunc.Func, bool) {
	return m.forward[from].Get(to)
}

// Set stores w on from -> to. A zero weight removes the edge.
func (m *FlexibleMatrix) Set(from, to int, w ratfunc.Func) {
	if w.IsZero() {
		m.Delete(from, to)
		return
	}
	m.forward[from].Set(to, w)
	m.backward[to].Set(from, w)
}

// Add adds w to the weight of from -> to, creating the edge if needed.
func (m *FlexibleMatrix) Add(from, to int, w ratfunc.Func) {
	if old, ok := m.forward[from].Get(to); ok {
		w = old.Add(w)
	}
	m.Set(from, to, w)
}

func (m *FlexibleMatrix) Delete(from, to int) {
	_, f := m.forward[from].Delete(to)
	_, b := m.backward[to].Delete(from)
	if f != b {
		panic(&InvariantError{Op: "delete", State: from, Detail: fmt.Sprintf("edge to %d present in only one view", to)})
	}
}

// Row returns the successors of s in increasing order.
func (m *FlexibleMatrix) Row(s int) []Entry { return entries(m.forward[s]) }

// Column returns the predecessors of s in increasing order.
func (m *FlexibleMatrix) Column(s int) []Entry { return entries(m.backward[s]) }

func (m *FlexibleMatrix) OutDegree(s int) int { return m.forward[s].Len() }

func (m *FlexibleMatrix) InDegree(s int) int { return m.backward[s].Len() }

func entries(row *btree.Map[int, ratfunc.Func]) []Entry {
	out := make([]Entry, 0, row.Len())
	row.Scan(func(k int, v ratfunc.Func) bool {
		out = append(out, Entry{State: k, Weight: v})
		return true
	})
	return out
}

// CheckMirror verifies that the forward and backward views agree.
func (m *FlexibleMatrix) CheckMirror() error {
	count := 0
	for from, row := range m.forward {
		var err error
		row.Scan(func(to int, w ratfunc.Func) bool {
			count++
			back, ok := m.backward[to].Get(from)
			if !ok || !back.Equal(w) {
				err = fmt.Errorf("edge %d -> %d missing or different in backward view", from, to)
				return false
			}
			return true
		})
		if err != nil {
			return err
		}
	}
	back := 0
	for _, col := range m.backward {
		back += col.Len()
	}
	if back != count {
		return fmt.Errorf("backward view has %d entries, forward view %d", back, count)
	}
	return nil
}

// MaxWeightSize is the largest stored weight, in terms.
func (m *FlexibleMatrix) MaxWeightSize() int {
	size := 0
	for _, row := range m.forward {
		row.Scan(func(_ int, w ratfunc.Func) bool {
			size = max(size, w.Size())
			return true
		})
	}
	return size
}
