// Package rollout rolls the dynamics forward under a feedback policy and
// performs the step-size line search. Candidate rollouts for distinct step
// sizes are independent and run on an exec.Backend; only the selection of
// the accepted candidate is sequential.
package rollout

import (
	"errors"
	"math"

	"github.com/san-kum/nloc/internal/dynamo"
	"github.com/san-kum/nloc/internal/exec"
	"github.com/san-kum/nloc/internal/riccati"
)

// ErrLineSearch indicates no step-size candidate produced sufficient cost
// decrease. The iteration controller escalates regularization and retries.
var ErrLineSearch = errors.New("nloc: line search exhausted all step sizes")

// Candidate is one evaluated step size.
type Candidate struct {
	Alpha float64
	Traj  *dynamo.Trajectory
	Cost  float64
}

// Searcher rolls out candidates and applies the sufficient-decrease test.
type Searcher struct {
	sys     dynamo.System
	cost    dynamo.Cost
	backend exec.Backend
}

func NewSearcher(sys dynamo.System, cost dynamo.Cost, backend exec.Backend) *Searcher {
	return &Searcher{sys: sys, cost: cost, backend: backend}
}

// Rollout applies u = u_nom + α·ff + K·(x − x_nom) forward from x0 and
// accumulates total cost. A rollout that leaves the float domain returns
// an infinite cost; a model domain error aborts with a ModelError.
func (s *Searcher) Rollout(policy *riccati.Policy, nominal *dynamo.Trajectory, x0 dynamo.State, alpha float64) (*dynamo.Trajectory, float64, error) {
	n := nominal.Horizon()
	traj := dynamo.NewTrajectory(n, s.sys.StateDim(), s.sys.ControlDim())

	x := x0.Clone()
	traj.States[0] = x
	total := 0.0

	for k := 0; k < n; k++ {
		u := policy.Command(k, x, nominal.States[k], nominal.Controls[k], alpha)
		traj.Controls[k] = u
		if !u.IsValid() {
			return traj, math.Inf(1), nil
		}

		total += s.cost.Stage(x, u, k)

		next, err := s.sys.Propagate(x, u, k)
		if err != nil {
			return nil, 0, &dynamo.ModelError{Step: k, State: x.Clone(), Wrapped: err}
		}
		if !next.IsValid() {
			return traj, math.Inf(1), nil
		}
		x = next.Clone()
		traj.States[k+1] = x
	}

	total += s.cost.Terminal(x)
	if math.IsNaN(total) {
		total = math.Inf(1)
	}
	return traj, total, nil
}

// Search evaluates every candidate step size concurrently, then accepts the
// first one (in the given decreasing order) whose cost satisfies the
// sufficient-decrease test against the expected improvement
// Δ(α) = α·dv1 + α²·dv2 from the backward sweep.
func (s *Searcher) Search(policy *riccati.Policy, nominal *dynamo.Trajectory, x0 dynamo.State, prevCost float64, alphas []float64, armijo, dv1, dv2 float64) (*Candidate, error) {
	cands := make([]Candidate, len(alphas))

	err := s.backend.Map(len(alphas), func(i int) error {
		traj, cost, err := s.Rollout(policy, nominal, x0, alphas[i])
		if err != nil {
			return err
		}
		cands[i] = Candidate{Alpha: alphas[i], Traj: traj, Cost: cost}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slack := 1e-12 * (1 + math.Abs(prevCost))
	for i := range cands {
		c := &cands[i]
		expected := -(c.Alpha*dv1 + c.Alpha*c.Alpha*dv2)
		if expected < 0 {
			expected = 0
		}
		if prevCost-c.Cost >= armijo*expected-slack {
			return c, nil
		}
	}
	return nil, ErrLineSearch
}
