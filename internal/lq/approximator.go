// Package lq builds the per-timestep linear-quadratic approximation of a
// nonlinear problem around a nominal trajectory. Each timestep is
// independent of every other, so the approximation maps over the horizon
// on an exec.Backend.
package lq

import (
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/nloc/internal/dynamo"
	"github.com/san-kum/nloc/internal/exec"
)

// Step is the local LQ sub-problem at one timestep: linearized dynamics
// x_{k+1} ≈ A·δx + B·δu + d around the nominal pair, plus the stage cost
// expansion. The defect d is the gap between the propagated nominal state
// and the stored next state; it is zero whenever the nominal trajectory
// came from a rollout.
type Step struct {
	A, B   *mat.Dense
	Defect dynamo.State
	Cost   dynamo.StageQuad
}

// Approximator produces one Step per timestep of a trajectory.
type Approximator struct {
	sys     dynamo.System
	cost    dynamo.Cost
	backend exec.Backend
}

func NewApproximator(sys dynamo.System, cost dynamo.Cost, backend exec.Backend) *Approximator {
	return &Approximator{sys: sys, cost: cost, backend: backend}
}

// Approximate linearizes dynamics and cost at every timestep of the nominal
// trajectory. The trajectory is read-only for the duration of the call.
// A model domain failure at any timestep aborts with a ModelError for the
// lowest failing step.
func (a *Approximator) Approximate(traj *dynamo.Trajectory) ([]Step, error) {
	n := traj.Horizon()
	steps := make([]Step, n)

	err := a.backend.Map(n, func(k int) error {
		x := traj.States[k]
		u := traj.Controls[k]

		am, bm, err := a.sys.Linearize(x, u, k)
		if err != nil {
			return &dynamo.ModelError{Step: k, State: x.Clone(), Wrapped: err}
		}
		next, err := a.sys.Propagate(x, u, k)
		if err != nil {
			return &dynamo.ModelError{Step: k, State: x.Clone(), Wrapped: err}
		}

		steps[k] = Step{
			A:      am,
			B:      bm,
			Defect: next.Sub(traj.States[k+1]),
			Cost:   a.cost.StageQuadratic(x, u, k),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return steps, nil
}
