package dynamo

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

func (s State) Sub(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] - other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

// Vec returns a gonum vector sharing the state's backing array.
// Callers must treat it as read-only.
func (s State) Vec() *mat.VecDense {
	return mat.NewVecDense(len(s), s)
}

type Control []float64

func (u Control) Clone() Control {
	c := make(Control, len(u))
	copy(c, u)
	return c
}

func (u Control) IsValid() bool {
	for _, v := range u {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// StageQuad is the second-order expansion of the stage cost around a
// state-control pair: gradients Lx, Lu and Hessian blocks Lxx, Luu, Lux.
type StageQuad struct {
	Lx, Lu   *mat.VecDense
	Lxx, Luu *mat.SymDense
	Lux      *mat.Dense
}

// System is a discrete-time controlled system. Propagate advances the state
// one timestep; Linearize returns the state-transition and control-influence
// matrices at a state-control-time triple. Both return ErrModelDomain
// (usually wrapped in a ModelError) outside the model's validity region.
type System interface {
	Propagate(x State, u Control, k int) (State, error)
	Linearize(x State, u Control, k int) (a, b *mat.Dense, err error)
	StateDim() int
	ControlDim() int
}

// Cost evaluates stage and terminal cost and their quadratic expansions.
type Cost interface {
	Stage(x State, u Control, k int) float64
	StageQuadratic(x State, u Control, k int) StageQuad
	Terminal(x State) float64
	TerminalQuadratic(x State) (lx *mat.VecDense, lxx *mat.SymDense)
}

// Continuous is an ODE model dX/dt = f(X, u, t). Continuous models are
// discretized (see models.Discretize) before the optimizer sees them.
type Continuous interface {
	Derive(x State, u Control, t float64) State
	StateDim() int
	ControlDim() int
}

// Integrator advances a continuous model by one fixed timestep.
type Integrator interface {
	Step(dyn Continuous, x State, u Control, t, dt float64) State
}
