// Package integrators provides fixed-step numerical integrators for
// continuous models, used by the discretizer to turn an ODE into the
// discrete-time system the optimizer consumes.
package integrators

import "github.com/san-kum/nloc/internal/dynamo"

type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(dyn dynamo.Continuous, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	dx := dyn.Derive(x, u, t)
	result := make(dynamo.State, len(x))
	for i := range x {
		result[i] = x[i] + dt*dx[i]
	}
	return result
}
