// Package exec provides the execution backend for the solver's parallel
// phases: apply a task to each index of a collection and return after all
// tasks have reported, preserving index order of the outputs.
//
// Two interchangeable strategies implement the same contract: [Sequential]
// runs tasks on the calling goroutine, [Pool] distributes them across a
// fixed worker pool with a join barrier. Tasks write their outputs into
// pre-partitioned slots, so the strategies are numerically indistinguishable.
package exec

// Backend applies a task to each index in [0, n). It returns only after
// every task has reported success or failure; the error for the lowest
// failing index is returned.
type Backend interface {
	Map(n int, task func(i int) error) error
	Workers() int
}

// New selects a backend for the requested worker count: one worker or fewer
// runs sequentially, otherwise a fixed pool is created. The pool persists
// for the lifetime of its owner; callers holding a *Pool must Close it.
func New(workers int) Backend {
	if workers <= 1 {
		return Sequential{}
	}
	return NewPool(workers)
}

// Sequential executes every task on the calling goroutine.
type Sequential struct{}

func (Sequential) Map(n int, task func(i int) error) error {
	var first error
	for i := 0; i < n; i++ {
		if err := task(i); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (Sequential) Workers() int { return 1 }
