// Package solver orchestrates the iterative LQ trajectory optimization:
// linearize the problem around the nominal trajectory, solve the backward
// Riccati recursion for a feedback policy, roll the policy forward with a
// step-size line search, and repeat until the accepted cost stops improving.
package solver

import (
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/nloc/internal/dynamo"
	"github.com/san-kum/nloc/internal/exec"
	"github.com/san-kum/nloc/internal/lq"
	"github.com/san-kum/nloc/internal/riccati"
	"github.com/san-kum/nloc/internal/rollout"
)

// Solver owns one trajectory optimization problem: the system and cost
// capabilities, the settings, and a worker pool created once per instance
// and shared across all Solve calls.
//
// A Solver is not safe for concurrent Solve calls.
type Solver struct {
	sys       dynamo.System
	cost      dynamo.Cost
	settings  Settings
	backend   exec.Backend
	approx    *lq.Approximator
	search    *rollout.Searcher
	observers []Observer
}

// New validates the settings and builds a solver. Callers must Close it to
// release the worker pool.
func New(sys dynamo.System, cost dynamo.Cost, settings Settings) (*Solver, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("solver settings: %w", err)
	}
	backend := exec.New(settings.NumWorkers)
	return &Solver{
		sys:      sys,
		cost:     cost,
		settings: settings,
		backend:  backend,
		approx:   lq.NewApproximator(sys, cost, backend),
		search:   rollout.NewSearcher(sys, cost, backend),
	}, nil
}

// Settings returns the solver's configuration.
func (s *Solver) Settings() Settings { return s.settings }

// AddObserver registers a per-iteration telemetry callback.
func (s *Solver) AddObserver(o Observer) {
	s.observers = append(s.observers, o)
}

// Close releases the worker pool.
func (s *Solver) Close() {
	if p, ok := s.backend.(*exec.Pool); ok {
		p.Close()
	}
}

// Solve runs the outer loop from the given initial state and trajectory
// guess. The guess supplies the horizon; its controls are rolled out
// open-loop from x0 to form the first nominal trajectory (a zero guess from
// dynamo.NewTrajectory means all-zero controls).
//
// Model domain errors abort the solve and surface as a wrapped ModelError
// next to a partial result; all expected numerical difficulty is reported
// through Result.Status instead.
func (s *Solver) Solve(x0 dynamo.State, guess *dynamo.Trajectory) (*Result, error) {
	if guess == nil {
		return nil, dynamo.ErrHorizon
	}
	if err := guess.Validate(s.sys.StateDim(), s.sys.ControlDim()); err != nil {
		return nil, err
	}
	if len(x0) != s.sys.StateDim() {
		return nil, fmt.Errorf("initial state dim %d, want %d: %w",
			len(x0), s.sys.StateDim(), dynamo.ErrDimensionMismatch)
	}
	if !x0.IsValid() {
		return nil, dynamo.ErrInvalidState
	}

	nominal, cost, err := s.initialRollout(x0, guess)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Trajectory:  nominal,
		Cost:        cost,
		Status:      StatusMaxIterations,
		CostHistory: []float64{cost},
	}

	reg := 0.0
	regOpts := riccati.Options{
		Init:   s.settings.RegularizationInit,
		Growth: s.settings.RegularizationGrowth,
		Max:    s.settings.RegularizationMax,
	}

	for iter := 1; iter <= s.settings.MaxIterations; iter++ {
		steps, err := s.approx.Approximate(nominal)
		if err != nil {
			res.Status = StatusDiverged
			return res, err
		}
		tlx, tlxx := s.cost.TerminalQuadratic(nominal.States[nominal.Horizon()])

		// Backward solve with line-search escalation: a failed search
		// re-runs the sweep at higher damping up to the retry budget.
		var cand *rollout.Candidate
		for attempt := 0; ; attempt++ {
			sweep, err := riccati.Backward(steps, tlx, tlxx, reg, regOpts)
			if err != nil {
				res.Status = StatusDiverged
				return res, nil
			}
			res.CurvatureWarnings += sweep.Warnings
			reg = sweep.Regularization

			cand, err = s.search.Search(sweep.Policy, nominal, x0, cost,
				s.settings.LineSearchSteps, s.settings.ArmijoThreshold, sweep.DV1, sweep.DV2)
			if err == nil {
				res.Policy = sweep.Policy
				break
			}
			if !errors.Is(err, rollout.ErrLineSearch) {
				res.Status = StatusDiverged
				return res, err
			}
			if attempt >= s.settings.LineSearchRetries {
				res.Status = StatusDiverged
				return res, nil
			}
			reg = regOpts.Next(reg)
		}

		prev := cost
		nominal = cand.Traj
		cost = cand.Cost
		res.Trajectory = nominal
		res.Cost = cost
		res.Iterations = iter
		res.CostHistory = append(res.CostHistory, cost)

		stats := IterationStats{
			Iteration:      iter,
			Cost:           cost,
			PrevCost:       prev,
			StepSize:       cand.Alpha,
			Regularization: reg,
			Warnings:       res.CurvatureWarnings,
		}
		for _, o := range s.observers {
			o.OnIteration(stats)
		}

		improvement := prev - cost
		if improvement <= s.settings.CostToleranceAbs ||
			improvement <= s.settings.CostToleranceRel*math.Abs(prev) {
			res.Status = StatusConverged
			return res, nil
		}

		// Successful full steps relax the damping again.
		if cand.Alpha == s.settings.LineSearchSteps[0] && reg > 0 {
			reg /= s.settings.RegularizationGrowth
			if reg < s.settings.RegularizationInit {
				reg = 0
			}
		}
	}

	return res, nil
}

// initialRollout propagates the guess controls open-loop from x0, producing
// a dynamics-consistent nominal trajectory and its total cost.
func (s *Solver) initialRollout(x0 dynamo.State, guess *dynamo.Trajectory) (*dynamo.Trajectory, float64, error) {
	n := guess.Horizon()
	traj := dynamo.NewTrajectory(n, s.sys.StateDim(), s.sys.ControlDim())

	x := x0.Clone()
	traj.States[0] = x
	total := 0.0
	for k := 0; k < n; k++ {
		u := guess.Controls[k].Clone()
		traj.Controls[k] = u
		total += s.cost.Stage(x, u, k)

		next, err := s.sys.Propagate(x, u, k)
		if err != nil {
			return nil, 0, &dynamo.ModelError{Step: k, State: x.Clone(), Wrapped: err}
		}
		x = next.Clone()
		traj.States[k+1] = x
	}
	total += s.cost.Terminal(x)
	return traj, total, nil
}
