package models

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/nloc/internal/dynamo"
)

// relStep is the relative finite-difference step for the Jacobians,
// cube root of machine epsilon as appropriate for central differences.
var relStep = math.Cbrt(math.Nextafter(1, 2) - 1)

// Discretized wraps a continuous model and a fixed-step integrator into the
// discrete-time System the optimizer consumes. Linearizations come from
// central finite differences of the discrete step.
type Discretized struct {
	dyn    dynamo.Continuous
	integ  dynamo.Integrator
	dt     float64
	bound  float64 // max |x_i| accepted; 0 disables the domain check
	offset float64 // time of step 0, used when ticking mid-horizon
}

// DiscretizeOption configures a Discretized system.
type DiscretizeOption func(*Discretized)

// WithStateBound rejects states whose components exceed limit in magnitude,
// reporting ErrModelDomain. Models use it to mark their validity region.
func WithStateBound(limit float64) DiscretizeOption {
	return func(d *Discretized) { d.bound = limit }
}

func Discretize(dyn dynamo.Continuous, integ dynamo.Integrator, dt float64, opts ...DiscretizeOption) *Discretized {
	d := &Discretized{dyn: dyn, integ: integ, dt: dt}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Discretized) StateDim() int   { return d.dyn.StateDim() }
func (d *Discretized) ControlDim() int { return d.dyn.ControlDim() }
func (d *Discretized) Dt() float64     { return d.dt }

func (d *Discretized) inDomain(x dynamo.State) bool {
	if d.bound <= 0 {
		return true
	}
	for _, v := range x {
		if math.Abs(v) > d.bound {
			return false
		}
	}
	return true
}

func (d *Discretized) Propagate(x dynamo.State, u dynamo.Control, k int) (dynamo.State, error) {
	if len(x) != d.StateDim() || len(u) != d.ControlDim() {
		return nil, dynamo.ErrDimensionMismatch
	}
	if !d.inDomain(x) {
		return nil, dynamo.ErrModelDomain
	}
	t := d.offset + float64(k)*d.dt
	return d.integ.Step(d.dyn, x, u, t, d.dt), nil
}

// Linearize approximates the state-transition and control-influence
// matrices by central differences of Propagate, one column per perturbed
// coordinate with step h = relStep·max(1, |v|).
func (d *Discretized) Linearize(x dynamo.State, u dynamo.Control, k int) (*mat.Dense, *mat.Dense, error) {
	if len(x) != d.StateDim() || len(u) != d.ControlDim() {
		return nil, nil, dynamo.ErrDimensionMismatch
	}
	if !d.inDomain(x) {
		return nil, nil, dynamo.ErrModelDomain
	}

	nx, nu := d.StateDim(), d.ControlDim()
	t := d.offset + float64(k)*d.dt

	a := mat.NewDense(nx, nx, nil)
	xp := x.Clone()
	for j := 0; j < nx; j++ {
		h := relStep * math.Max(1, math.Abs(x[j]))
		xp[j] = x[j] + h
		fwd := d.integ.Step(d.dyn, xp, u, t, d.dt)
		xp[j] = x[j] - h
		bwd := d.integ.Step(d.dyn, xp, u, t, d.dt)
		xp[j] = x[j]
		for i := 0; i < nx; i++ {
			a.Set(i, j, (fwd[i]-bwd[i])/(2*h))
		}
	}

	b := mat.NewDense(nx, nu, nil)
	up := u.Clone()
	for j := 0; j < nu; j++ {
		h := relStep * math.Max(1, math.Abs(u[j]))
		up[j] = u[j] + h
		fwd := d.integ.Step(d.dyn, x, up, t, d.dt)
		up[j] = u[j] - h
		bwd := d.integ.Step(d.dyn, x, up, t, d.dt)
		up[j] = u[j]
		for i := 0; i < nx; i++ {
			b.Set(i, j, (fwd[i]-bwd[i])/(2*h))
		}
	}

	return a, b, nil
}
