package metrics

import (
	"testing"

	"github.com/san-kum/nloc/internal/dynamo"
	"github.com/san-kum/nloc/internal/solver"
)

func TestProgressRecordsIterations(t *testing.T) {
	p := NewProgress()
	p.OnIteration(solver.IterationStats{Iteration: 1, Cost: 10, StepSize: 1, Warnings: 0})
	p.OnIteration(solver.IterationStats{Iteration: 2, Cost: 4, StepSize: 0.5, Regularization: 1e-6, Warnings: 2})

	if len(p.Costs) != 2 || p.Costs[1] != 4 {
		t.Errorf("costs = %v", p.Costs)
	}
	if p.StepSizes[1] != 0.5 || p.Regularizations[1] != 1e-6 {
		t.Errorf("step sizes %v, regularizations %v", p.StepSizes, p.Regularizations)
	}
	if p.Warnings != 2 {
		t.Errorf("warnings = %d, want the latest cumulative count", p.Warnings)
	}

	p.Reset()
	if len(p.Costs) != 0 || p.Warnings != 0 {
		t.Error("reset left data behind")
	}
}

func TestControlEffort(t *testing.T) {
	e := NewControlEffort()
	if e.Value() != 0 {
		t.Error("empty effort should be zero")
	}
	e.Observe(dynamo.Control{1})
	e.Observe(dynamo.Control{-3})
	if e.Value() != 2 {
		t.Errorf("effort = %v, want 2", e.Value())
	}

	tr := dynamo.NewTrajectory(2, 1, 1)
	tr.Controls[0][0] = 2
	tr.Controls[1][0] = -4
	if Effort(tr) != 3 {
		t.Errorf("trajectory effort = %v, want 3", Effort(tr))
	}
}
