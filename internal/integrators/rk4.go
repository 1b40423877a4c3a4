package integrators

import "github.com/san-kum/nloc/internal/dynamo"

// RK4 is the classical fourth-order Runge-Kutta stepper. Unlike the usual
// scratch-buffer formulation, it keeps no internal state so one instance
// can be shared by the solver's parallel linearization workers.
type RK4 struct{}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) Step(dyn dynamo.Continuous, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	n := len(x)

	k1 := dyn.Derive(x, u, t)

	scratch := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		scratch[i] = x[i] + dt*0.5*k1[i]
	}
	k2 := dyn.Derive(scratch, u, t+dt*0.5)

	for i := 0; i < n; i++ {
		scratch[i] = x[i] + dt*0.5*k2[i]
	}
	k3 := dyn.Derive(scratch, u, t+dt*0.5)

	for i := 0; i < n; i++ {
		scratch[i] = x[i] + dt*k3[i]
	}
	k4 := dyn.Derive(scratch, u, t+dt)

	result := make(dynamo.State, n)
	dt6 := dt / 6.0
	for i := 0; i < n; i++ {
		result[i] = x[i] + dt6*(k1[i]+2*k2[i]+2*k3[i]+k4[i])
	}
	return result
}
