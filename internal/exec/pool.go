package exec

import (
	"runtime"
	"sync"
)

type job struct {
	idx  int
	task func(i int) error
	errs []error
	wg   *sync.WaitGroup
}

// Pool distributes tasks across a fixed set of worker goroutines started
// once at construction. Map blocks until every submitted task has reported,
// so no task from one phase can overlap the next.
type Pool struct {
	tasks     chan job
	workers   int
	closeOnce sync.Once
}

// NewPool starts a pool with the given number of workers; non-positive
// counts default to runtime.NumCPU().
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	p := &Pool{
		tasks:   make(chan job, workers),
		workers: workers,
	}
	for w := 0; w < workers; w++ {
		go p.run()
	}
	return p
}

func (p *Pool) run() {
	for j := range p.tasks {
		j.errs[j.idx] = j.task(j.idx)
		j.wg.Done()
	}
}

func (p *Pool) Map(n int, task func(i int) error) error {
	errs := make([]error, n)

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		p.tasks <- job{idx: i, task: task, errs: errs, wg: &wg}
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *Pool) Workers() int { return p.workers }

// Close stops the workers. Map must not be called after Close.
func (p *Pool) Close() {
	p.closeOnce.Do(func() { close(p.tasks) })
}
