package solver

import (
	"github.com/san-kum/nloc/internal/dynamo"
	"github.com/san-kum/nloc/internal/riccati"
)

// Status is the terminal state of one solve.
type Status int

const (
	// StatusConverged: cost improvement fell below the tolerances.
	StatusConverged Status = iota
	// StatusMaxIterations: iteration budget exhausted; the best trajectory
	// found is still returned.
	StatusMaxIterations
	// StatusDiverged: repeated line-search failure or unrecoverable
	// curvature; the last accepted trajectory is returned.
	StatusDiverged
)

func (s Status) String() string {
	switch s {
	case StatusConverged:
		return "converged"
	case StatusMaxIterations:
		return "max_iterations"
	case StatusDiverged:
		return "diverged"
	default:
		return "unknown"
	}
}

// Result of one solve call. Callers must inspect Status: expected numerical
// difficulty is reported here, not as an error.
type Result struct {
	Trajectory *dynamo.Trajectory
	Policy     *riccati.Policy
	Iterations int
	Cost       float64
	Status     Status

	// CostHistory holds the accepted total cost after the initial rollout
	// and after every accepted iteration.
	CostHistory []float64

	// CurvatureWarnings counts regularization retries across the solve.
	CurvatureWarnings int
}

func (r *Result) Converged() bool {
	return r.Status == StatusConverged
}

// IterationStats is the per-iteration telemetry handed to observers.
type IterationStats struct {
	Iteration      int
	Cost           float64
	PrevCost       float64
	StepSize       float64
	Regularization float64
	Warnings       int
}

// Observer receives a callback after every accepted outer iteration.
type Observer interface {
	OnIteration(IterationStats)
}
