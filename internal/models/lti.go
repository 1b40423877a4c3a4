// Package models provides the built-in plant library: discrete linear
// systems, classic nonlinear benchmarks, and the discretizer that turns a
// continuous model into the discrete-time system the optimizer consumes.
package models

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/nloc/internal/dynamo"
)

// LTI is a discrete linear time-invariant system x_{k+1} = A·x + B·u.
// Its linearization is exact, so linear-quadratic problems converge in a
// single solver iteration.
type LTI struct {
	a, b   *mat.Dense
	nx, nu int
}

func NewLTI(a, b *mat.Dense) (*LTI, error) {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ar != ac {
		return nil, fmt.Errorf("models: A must be square, got %dx%d", ar, ac)
	}
	if br != ar {
		return nil, fmt.Errorf("models: B has %d rows, want %d", br, ar)
	}
	return &LTI{a: mat.DenseCopyOf(a), b: mat.DenseCopyOf(b), nx: ar, nu: bc}, nil
}

// NewDoubleIntegrator builds the discrete double integrator (position,
// velocity; acceleration input) with timestep dt.
func NewDoubleIntegrator(dt float64) *LTI {
	a := mat.NewDense(2, 2, []float64{
		1, dt,
		0, 1,
	})
	b := mat.NewDense(2, 1, []float64{
		0.5 * dt * dt,
		dt,
	})
	sys, _ := NewLTI(a, b)
	return sys
}

func (s *LTI) StateDim() int   { return s.nx }
func (s *LTI) ControlDim() int { return s.nu }

func (s *LTI) Propagate(x dynamo.State, u dynamo.Control, k int) (dynamo.State, error) {
	if len(x) != s.nx || len(u) != s.nu {
		return nil, dynamo.ErrDimensionMismatch
	}
	next := make(dynamo.State, s.nx)
	for i := 0; i < s.nx; i++ {
		sum := 0.0
		for j := 0; j < s.nx; j++ {
			sum += s.a.At(i, j) * x[j]
		}
		for j := 0; j < s.nu; j++ {
			sum += s.b.At(i, j) * u[j]
		}
		next[i] = sum
	}
	return next, nil
}

func (s *LTI) Linearize(x dynamo.State, u dynamo.Control, k int) (*mat.Dense, *mat.Dense, error) {
	if len(x) != s.nx || len(u) != s.nu {
		return nil, nil, dynamo.ErrDimensionMismatch
	}
	return mat.DenseCopyOf(s.a), mat.DenseCopyOf(s.b), nil
}
