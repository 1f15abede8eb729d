// Package mm1 is a discrete-time bounded queue with an unknown arrival
// probability.
package mm1

import (
	"fmt"

	"github.com/rfielding/kripke-regions/model"
	"github.com/rfielding/kripke-regions/ratfunc"
)

// DefaultCapacity is the buffer size used by Model when Capacity is zero.
const DefaultCapacity = 4

// Model is a busy period of a single-server queue. In each slot a job arrives
// with probability a, otherwise one job is served. The period ends when the
// queue drains and fails when the buffer overflows.
type Model struct {
	Capacity int
}

func (Model) Name() string { return "mm1" }

func (m Model) OriginalText() string {
	return fmt.Sprintf("Queue with capacity %d; each slot brings a job with probability a or serves one; "+
		"the buffer should rarely overflow before the queue drains.", m.capacity())
}

func (m Model) capacity() int {
	if m.Capacity <= 0 {
		return DefaultCapacity
	}
	return m.Capacity
}

func (m Model) Build() (*model.System, error) {
	n := m.capacity()
	sys := model.NewSystem("mm1")
	a := ratfunc.FromVar("a")
	notA := ratfunc.One().Sub(a)

	for i := 0; i <= n; i++ {
		if _, err := sys.AddState(fmt.Sprintf("q%d", i)); err != nil {
			return nil, err
		}
	}
	overflow, _ := sys.AddState("overflow", "overflow")
	drained, _ := sys.AddState("drained", "drained")
	sys.SetInitial(1)

	add := func(from, to int, w ratfunc.Func) {
		if err := sys.AddTransition(from, to, w); err != nil {
			panic(err)
		}
	}
	add(0, drained, ratfunc.One())
	for i := 1; i <= n; i++ {
		up := i + 1
		if i == n {
			up = overflow
		}
		add(i, up, a)
		add(i, i-1, notA)
	}
	return sys, sys.Validate()
}

func (Model) Properties() []model.PropertySpec {
	return []model.PropertySpec{
		{Name: "overflow unlikely", Description: "The buffer overflows with probability at most 0.1.", Formula: `P<=0.1 [F "overflow"]`},
		{Name: "drains", Description: "The queue drains with probability at least 0.9.", Formula: `P>=0.9 [F "drained"]`},
	}
}

func (Model) Regions() []string {
	return []string{"0.1<=a<=0.3", "0.3<=a<=0.5", "0.5<=a<=0.7", "0.7<=a<=0.9"}
}
