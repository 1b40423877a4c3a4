package solver

import "fmt"

// Settings is the immutable configuration for one solve call.
type Settings struct {
	// MaxIterations bounds the outer loop. Reaching it is not an error:
	// the best trajectory found is returned with StatusMaxIterations.
	MaxIterations int

	// CostToleranceAbs and CostToleranceRel terminate the loop when the
	// accepted cost improvement falls below them (absolute, or relative
	// to the previous cost).
	CostToleranceAbs float64
	CostToleranceRel float64

	// LineSearchSteps are the candidate step sizes, strictly decreasing
	// in (0, 1] with 1.0 first so full steps are preferred.
	LineSearchSteps []float64

	// ArmijoThreshold is the sufficient-decrease fraction of the predicted
	// improvement a candidate must achieve to be accepted.
	ArmijoThreshold float64

	// RegularizationInit is the first nonzero damping strength,
	// RegularizationGrowth the geometric escalation factor, and
	// RegularizationMax the cap beyond which the iteration is diverged.
	RegularizationInit   float64
	RegularizationGrowth float64
	RegularizationMax    float64

	// LineSearchRetries is how many consecutive failed line searches are
	// answered with a re-regularized backward solve before giving up.
	LineSearchRetries int

	// NumWorkers sizes the worker pool for the linearization and rollout
	// phases; values below two run those phases sequentially.
	NumWorkers int
}

// Defaults returns the settings used when the caller does not care.
func Defaults() Settings {
	return Settings{
		MaxIterations:        50,
		CostToleranceAbs:     1e-7,
		CostToleranceRel:     1e-6,
		LineSearchSteps:      []float64{1.0, 0.5, 0.25, 0.1, 0.03, 0.01},
		ArmijoThreshold:      1e-4,
		RegularizationInit:   1e-6,
		RegularizationGrowth: 10,
		RegularizationMax:    1e10,
		LineSearchRetries:    5,
		NumWorkers:           1,
	}
}

// Validate reports malformed settings. It runs once at call entry; the
// solve loop itself never fails on configuration.
func (s Settings) Validate() error {
	if s.MaxIterations < 1 {
		return fmt.Errorf("max iterations must be at least 1, got %d", s.MaxIterations)
	}
	if s.CostToleranceAbs < 0 || s.CostToleranceRel < 0 {
		return fmt.Errorf("cost tolerances must be non-negative")
	}
	if len(s.LineSearchSteps) == 0 {
		return fmt.Errorf("line search needs at least one step size")
	}
	if s.LineSearchSteps[0] != 1.0 {
		return fmt.Errorf("line search steps must start at 1.0, got %g", s.LineSearchSteps[0])
	}
	prev := 0.0
	for i, a := range s.LineSearchSteps {
		if a <= 0 || a > 1 {
			return fmt.Errorf("line search step %d out of (0,1]: %g", i, a)
		}
		if i > 0 && a >= prev {
			return fmt.Errorf("line search steps must be strictly decreasing")
		}
		prev = a
	}
	if s.ArmijoThreshold < 0 || s.ArmijoThreshold >= 1 {
		return fmt.Errorf("armijo threshold must be in [0,1), got %g", s.ArmijoThreshold)
	}
	if s.RegularizationInit <= 0 {
		return fmt.Errorf("initial regularization must be positive, got %g", s.RegularizationInit)
	}
	if s.RegularizationGrowth <= 1 {
		return fmt.Errorf("regularization growth must exceed 1, got %g", s.RegularizationGrowth)
	}
	if s.RegularizationMax < s.RegularizationInit {
		return fmt.Errorf("regularization cap below initial value")
	}
	if s.LineSearchRetries < 0 {
		return fmt.Errorf("line search retries must be non-negative, got %d", s.LineSearchRetries)
	}
	if s.NumWorkers < 0 {
		return fmt.Errorf("worker count must be non-negative, got %d", s.NumWorkers)
	}
	return nil
}
