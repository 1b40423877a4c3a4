package models

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/nloc/internal/dynamo"
	"github.com/san-kum/nloc/internal/integrators"
)

func TestDoubleIntegratorPropagate(t *testing.T) {
	sys := NewDoubleIntegrator(0.1)

	x, err := sys.Propagate(dynamo.State{1, 2}, dynamo.Control{4}, 0)
	if err != nil {
		t.Fatal(err)
	}
	// pos + dt·vel + dt²/2·acc = 1 + 0.2 + 0.02, vel + dt·acc = 2.4
	if math.Abs(x[0]-1.22) > 1e-14 || math.Abs(x[1]-2.4) > 1e-14 {
		t.Errorf("propagate = %v, want [1.22 2.4]", x)
	}

	if _, err := sys.Propagate(dynamo.State{1}, dynamo.Control{0}, 0); !errors.Is(err, dynamo.ErrDimensionMismatch) {
		t.Errorf("short state: got %v, want ErrDimensionMismatch", err)
	}
}

func TestNewLTIRejectsBadShapes(t *testing.T) {
	rect := mat.NewDense(2, 3, nil)
	square := mat.NewDense(2, 2, nil)
	if _, err := NewLTI(rect, mat.NewDense(2, 1, nil)); err == nil {
		t.Error("non-square A must be rejected")
	}
	if _, err := NewLTI(square, mat.NewDense(3, 1, nil)); err == nil {
		t.Error("mismatched B rows must be rejected")
	}
}

// spring is a continuous linear oscillator used to check the
// finite-difference Jacobians against an exact discrete linearization.
type spring struct{}

func (spring) StateDim() int   { return 2 }
func (spring) ControlDim() int { return 1 }

func (spring) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	return dynamo.State{x[1], -4*x[0] - 0.5*x[1] + u[0]}
}

func TestDiscretizedLinearizeMatchesExactJacobian(t *testing.T) {
	dt := 0.05
	sys := Discretize(spring{}, integrators.NewEuler(), dt)

	// One Euler step of a linear ODE is the exact linear map
	// A = I + dt·Ac, B = dt·Bc.
	wantA := mat.NewDense(2, 2, []float64{
		1, dt,
		-4 * dt, 1 - 0.5*dt,
	})
	wantB := mat.NewDense(2, 1, []float64{0, dt})

	a, b, err := sys.Linearize(dynamo.State{0.3, -1.2}, dynamo.Control{0.7}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.EqualApprox(a, wantA, 1e-8) {
		t.Errorf("A mismatch:\ngot  %v\nwant %v", mat.Formatted(a), mat.Formatted(wantA))
	}
	if !mat.EqualApprox(b, wantB, 1e-8) {
		t.Errorf("B mismatch:\ngot  %v\nwant %v", mat.Formatted(b), mat.Formatted(wantB))
	}
}

func TestDiscretizedStateBound(t *testing.T) {
	sys := Discretize(NewPendulum(), integrators.NewRK4(), 0.02, WithStateBound(2.0))

	if _, err := sys.Propagate(dynamo.State{1, 0}, dynamo.Control{0}, 0); err != nil {
		t.Errorf("in-domain propagate failed: %v", err)
	}
	if _, err := sys.Propagate(dynamo.State{3, 0}, dynamo.Control{0}, 0); !errors.Is(err, dynamo.ErrModelDomain) {
		t.Errorf("out-of-domain propagate: got %v, want ErrModelDomain", err)
	}
	if _, _, err := sys.Linearize(dynamo.State{0, 5}, dynamo.Control{0}, 0); !errors.Is(err, dynamo.ErrModelDomain) {
		t.Errorf("out-of-domain linearize: got %v, want ErrModelDomain", err)
	}
}

func TestPendulumEquilibria(t *testing.T) {
	p := NewPendulum()

	down := p.Derive(dynamo.State{0, 0}, dynamo.Control{0}, 0)
	if down.Norm() > 1e-14 {
		t.Errorf("hanging equilibrium not stationary: %v", down)
	}

	up := p.Derive(dynamo.State{math.Pi, 0}, dynamo.Control{0}, 0)
	if up.Norm() > 1e-12 {
		t.Errorf("upright equilibrium not stationary: %v", up)
	}

	// Gravity pulls the pendulum back toward hanging.
	side := p.Derive(dynamo.State{math.Pi / 2, 0}, dynamo.Control{0}, 0)
	if side[1] >= 0 {
		t.Errorf("expected restoring acceleration at theta=pi/2, got %v", side[1])
	}
}

func TestCartPoleUprightIsUnstable(t *testing.T) {
	c := NewCartPole()

	rest := c.Derive(dynamo.State{0, 0, 0, 0}, dynamo.Control{0}, 0)
	if rest.Norm() > 1e-14 {
		t.Errorf("upright rest should be stationary: %v", rest)
	}

	// A small upright tilt accelerates the fall.
	tilted := c.Derive(dynamo.State{0, 0, 0.01, 0}, dynamo.Control{0}, 0)
	if tilted[3] <= 0 {
		t.Errorf("expected the tilt to grow, got alpha = %v", tilted[3])
	}
}
