package mpc

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/nloc/internal/cost"
	"github.com/san-kum/nloc/internal/dynamo"
	"github.com/san-kum/nloc/internal/models"
	"github.com/san-kum/nloc/internal/solver"
)

const dt = 0.1

func newTestSolver(t *testing.T) (*solver.Solver, dynamo.System) {
	t.Helper()
	sys := models.NewDoubleIntegrator(dt)
	c, err := cost.NewDiagonal([]float64{1, 1}, []float64{0.1}, []float64{10, 10}, dynamo.State{0, 0})
	if err != nil {
		t.Fatal(err)
	}
	s, err := solver.New(sys, c, solver.Defaults())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)
	return s, sys
}

func TestWarmStartMatchesFullSolve(t *testing.T) {
	s, sys := newTestSolver(t)
	x0 := dynamo.State{1, 0}
	const n = 20

	full, err := s.Solve(x0, dynamo.NewTrajectory(n, 2, 1))
	if err != nil {
		t.Fatal(err)
	}
	if !full.Converged() {
		t.Fatalf("full solve: %v", full.Status)
	}

	ctrl, err := New(s, sys, dt, dynamo.NewTrajectory(n, 2, 1))
	if err != nil {
		t.Fatal(err)
	}

	// Tick along the exact plant. With no disturbance each re-solve is the
	// tail of the same problem, so the commanded controls must reproduce
	// the full solve's optimal control sequence.
	x := x0.Clone()
	for k := 0; k < 10; k++ {
		elapsed := dt
		if k == 0 {
			elapsed = 0
		}
		cmd, err := ctrl.Tick(x, elapsed)
		if err != nil {
			t.Fatalf("tick %d failed: %v", k, err)
		}

		u := cmd.Apply(x)
		want := full.Trajectory.Controls[k][0]
		if math.Abs(u[0]-want) > 1e-7 {
			t.Errorf("tick %d: control %v, full solve wants %v", k, u[0], want)
		}

		next, err := sys.Propagate(x, u, k)
		if err != nil {
			t.Fatal(err)
		}
		x = next
	}

	// The horizon shrinks without WithFixedHorizon.
	if got := ctrl.LastResult().Trajectory.Horizon(); got != n-9 {
		t.Errorf("horizon after 9 shifts = %d, want %d", got, n-9)
	}
}

func TestOffGridTickDoesNotResolve(t *testing.T) {
	s, sys := newTestSolver(t)
	x0 := dynamo.State{1, 0}

	ctrl, err := New(s, sys, dt, dynamo.NewTrajectory(20, 2, 1))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ctrl.Tick(x0, 0); err != nil {
		t.Fatal(err)
	}
	first := ctrl.LastResult()

	// Half a step between grid points: the stored policy is interpolated
	// and no new solve happens.
	x := first.Trajectory.States[0]
	cmd, err := ctrl.Tick(x, 0.5*dt)
	if err != nil {
		t.Fatal(err)
	}
	if ctrl.LastResult() != first {
		t.Error("off-grid tick triggered a re-solve")
	}

	a := ctrl.commandAt(0, x)
	b := ctrl.commandAt(1, x)
	wantFF := 0.5*a.Feedforward[0] + 0.5*b.Feedforward[0]
	if math.Abs(cmd.Feedforward[0]-wantFF) > 1e-12 {
		t.Errorf("interpolated feedforward = %v, want %v", cmd.Feedforward[0], wantFF)
	}
	wantGain := 0.5*a.Gain.At(0, 0) + 0.5*b.Gain.At(0, 0)
	if math.Abs(cmd.Gain.At(0, 0)-wantGain) > 1e-12 {
		t.Errorf("interpolated gain = %v, want %v", cmd.Gain.At(0, 0), wantGain)
	}
}

func TestFixedHorizonRefillsTail(t *testing.T) {
	s, sys := newTestSolver(t)
	x0 := dynamo.State{1, 0}
	const n = 15

	ctrl, err := New(s, sys, dt, dynamo.NewTrajectory(n, 2, 1), WithFixedHorizon(n))
	if err != nil {
		t.Fatal(err)
	}

	x := x0.Clone()
	for k := 0; k < 5; k++ {
		elapsed := dt
		if k == 0 {
			elapsed = 0
		}
		cmd, err := ctrl.Tick(x, elapsed)
		if err != nil {
			t.Fatalf("tick %d failed: %v", k, err)
		}
		if got := ctrl.LastResult().Trajectory.Horizon(); got != n {
			t.Fatalf("tick %d: horizon = %d, want fixed %d", k, got, n)
		}
		if got := ctrl.policy.Horizon(); got != n {
			t.Fatalf("tick %d: policy horizon = %d, want %d", k, got, n)
		}

		next, err := sys.Propagate(x, cmd.Apply(x), k)
		if err != nil {
			t.Fatal(err)
		}
		x = next
	}
}

func TestTickShiftsByMultipleSteps(t *testing.T) {
	s, sys := newTestSolver(t)
	x0 := dynamo.State{1, 0}

	ctrl, err := New(s, sys, dt, dynamo.NewTrajectory(20, 2, 1))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ctrl.Tick(x0, 0); err != nil {
		t.Fatal(err)
	}

	x := ctrl.LastResult().Trajectory.States[3]
	if _, err := ctrl.Tick(x, 3*dt); err != nil {
		t.Fatal(err)
	}
	if got := ctrl.LastResult().Trajectory.Horizon(); got != 17 {
		t.Errorf("horizon after a 3-step tick = %d, want 17", got)
	}
}

func TestCommandApply(t *testing.T) {
	cmd := &Command{
		Feedforward: dynamo.Control{2},
		Gain:        mat.NewDense(1, 2, []float64{-1, -0.5}),
		Nominal:     dynamo.State{1, 0},
	}

	// On the nominal the feedback vanishes.
	if u := cmd.Apply(dynamo.State{1, 0}); u[0] != 2 {
		t.Errorf("nominal apply = %v, want 2", u[0])
	}
	// u = 2 + (−1)·(2−1) + (−0.5)·(−2−0) = 2
	if u := cmd.Apply(dynamo.State{2, -2}); math.Abs(u[0]-2) > 1e-14 {
		t.Errorf("apply = %v, want 2", u[0])
	}
}

func TestNewRejectsBadInputs(t *testing.T) {
	s, sys := newTestSolver(t)

	if _, err := New(s, sys, 0, dynamo.NewTrajectory(10, 2, 1)); err == nil {
		t.Error("zero timestep must be rejected")
	}
	if _, err := New(s, sys, dt, nil); !errors.Is(err, dynamo.ErrHorizon) {
		t.Errorf("nil initial guess: got %v, want ErrHorizon", err)
	}
	if _, err := New(s, sys, dt, dynamo.NewTrajectory(0, 2, 1)); !errors.Is(err, dynamo.ErrHorizon) {
		t.Errorf("empty initial guess: got %v, want ErrHorizon", err)
	}

	ctrl, err := New(s, sys, dt, dynamo.NewTrajectory(10, 2, 1))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ctrl.Tick(dynamo.State{0, 0}, -dt); err == nil {
		t.Error("negative elapsed time must be rejected")
	}
}
