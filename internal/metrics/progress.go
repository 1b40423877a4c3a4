// Package metrics collects solve and trajectory telemetry.
package metrics

import (
	"math"

	"github.com/san-kum/nloc/internal/dynamo"
	"github.com/san-kum/nloc/internal/solver"
)

// Progress records per-iteration solver telemetry. Register it as a solver
// observer to collect the cost curve for plotting.
type Progress struct {
	Costs           []float64
	StepSizes       []float64
	Regularizations []float64
	Warnings        int
}

func NewProgress() *Progress {
	return &Progress{}
}

func (p *Progress) OnIteration(st solver.IterationStats) {
	p.Costs = append(p.Costs, st.Cost)
	p.StepSizes = append(p.StepSizes, st.StepSize)
	p.Regularizations = append(p.Regularizations, st.Regularization)
	p.Warnings = st.Warnings
}

func (p *Progress) Reset() {
	p.Costs = p.Costs[:0]
	p.StepSizes = p.StepSizes[:0]
	p.Regularizations = p.Regularizations[:0]
	p.Warnings = 0
}

// ControlEffort accumulates the mean absolute control magnitude.
type ControlEffort struct {
	sum     float64
	samples int
}

func NewControlEffort() *ControlEffort {
	return &ControlEffort{}
}

func (c *ControlEffort) Observe(u dynamo.Control) {
	for _, v := range u {
		c.sum += math.Abs(v)
	}
	c.samples++
}

func (c *ControlEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *ControlEffort) Reset() {
	c.sum = 0
	c.samples = 0
}

// Effort is a convenience over a whole trajectory.
func Effort(traj *dynamo.Trajectory) float64 {
	e := NewControlEffort()
	for _, u := range traj.Controls {
		e.Observe(u)
	}
	return e.Value()
}
