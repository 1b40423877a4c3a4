// Package mpc wraps the trajectory solver in a receding-horizon loop:
// each control tick shifts the stored plan by the elapsed timesteps, warm
// starts a new solve from it, and returns the command for immediate
// actuation. Ticks that fall between discretization points evaluate the
// stored policy instead of re-solving.
package mpc

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/nloc/internal/dynamo"
	"github.com/san-kum/nloc/internal/riccati"
	"github.com/san-kum/nloc/internal/solver"
)

// gridTol is the fraction of a timestep within which an elapsed time is
// considered on-grid.
const gridTol = 1e-6

// Command is the actuation output of one tick: the feedforward control and
// the feedback gain to apply around it until the next tick.
type Command struct {
	Feedforward dynamo.Control
	Gain        *mat.Dense
	Nominal     dynamo.State
}

// Apply evaluates u = Feedforward + Gain·(x − Nominal).
func (c *Command) Apply(x dynamo.State) dynamo.Control {
	dx := x.Sub(c.Nominal)
	fb := new(mat.VecDense)
	fb.MulVec(c.Gain, dx.Vec())

	u := c.Feedforward.Clone()
	for i := range u {
		u[i] += fb.AtVec(i)
	}
	return u
}

// Controller keeps the warm-start state between ticks. It is not safe for
// concurrent ticks; callers must serialize Tick.
type Controller struct {
	solver  *solver.Solver
	sys     dynamo.System
	dt      float64
	horizon int // fixed horizon to refill to; 0 lets the horizon shrink

	traj   *dynamo.Trajectory
	policy *riccati.Policy
	last   *solver.Result
}

// Option configures a Controller.
type Option func(*Controller)

// WithFixedHorizon keeps the horizon at n steps by extending the shifted
// plan's tail. Without it the horizon shrinks as time is consumed.
func WithFixedHorizon(n int) Option {
	return func(c *Controller) { c.horizon = n }
}

// New builds a receding-horizon controller around a solver. The initial
// guess seeds the first tick's warm start and fixes the initial horizon.
func New(sol *solver.Solver, sys dynamo.System, dt float64, initial *dynamo.Trajectory, opts ...Option) (*Controller, error) {
	if dt <= 0 {
		return nil, fmt.Errorf("mpc: timestep must be positive, got %g", dt)
	}
	if initial == nil || initial.Horizon() < 1 {
		return nil, dynamo.ErrHorizon
	}
	c := &Controller{
		solver: sol,
		sys:    sys,
		dt:     dt,
		traj:   initial.Clone(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// LastResult returns the most recent solve result, nil before the first tick.
func (c *Controller) LastResult() *solver.Result { return c.last }

// Tick advances the receding horizon by the elapsed time since the previous
// tick, re-solves from the measured state, and returns the command to
// actuate now. An off-grid elapsed time evaluates the interpolated stored
// policy without re-solving.
func (c *Controller) Tick(x dynamo.State, elapsed float64) (*Command, error) {
	if elapsed < 0 {
		return nil, fmt.Errorf("mpc: elapsed time must be non-negative, got %g", elapsed)
	}

	steps := int(math.Round(elapsed / c.dt))
	if c.policy != nil && math.Abs(elapsed-float64(steps)*c.dt) > gridTol*c.dt {
		return c.Command(x, elapsed), nil
	}
	if c.policy != nil && steps > 0 {
		c.shift(steps)
	}

	res, err := c.solver.Solve(x, c.traj)
	if err != nil {
		return nil, err
	}
	c.last = res
	c.traj = res.Trajectory
	c.policy = res.Policy

	if res.Status == solver.StatusDiverged {
		return nil, fmt.Errorf("mpc: solve diverged at tick")
	}
	return c.commandAt(0, x), nil
}

// Command evaluates the stored policy at an arbitrary time offset from the
// last tick, linearly interpolating between the two neighbouring feedback
// laws. It never re-solves.
func (c *Controller) Command(x dynamo.State, t float64) *Command {
	n := c.policy.Horizon()
	pos := t / c.dt
	lo := int(math.Floor(pos))
	if lo < 0 {
		lo = 0
	}
	if lo >= n {
		lo = n - 1
	}
	hi := lo + 1
	if hi >= n {
		hi = n - 1
	}
	frac := pos - float64(lo)
	if frac < 0 {
		frac = 0
	} else if frac > 1 {
		frac = 1
	}

	a := c.commandAt(lo, x)
	if hi == lo || frac == 0 {
		return a
	}
	b := c.commandAt(hi, x)

	out := &Command{
		Feedforward: make(dynamo.Control, len(a.Feedforward)),
		Gain:        mat.NewDense(len(a.Feedforward), len(x), nil),
		Nominal:     make(dynamo.State, len(x)),
	}
	for i := range out.Feedforward {
		out.Feedforward[i] = (1-frac)*a.Feedforward[i] + frac*b.Feedforward[i]
	}
	for i := range out.Nominal {
		out.Nominal[i] = (1-frac)*a.Nominal[i] + frac*b.Nominal[i]
	}
	ga := new(mat.Dense)
	ga.Scale(1-frac, a.Gain)
	gb := new(mat.Dense)
	gb.Scale(frac, b.Gain)
	out.Gain.Add(ga, gb)
	return out
}

func (c *Controller) commandAt(k int, x dynamo.State) *Command {
	ff := c.traj.Controls[k].Clone()
	for i := range ff {
		ff[i] += c.policy.FF[k].AtVec(i)
	}
	return &Command{
		Feedforward: ff,
		Gain:        mat.DenseCopyOf(c.policy.Gains[k]),
		Nominal:     c.traj.States[k].Clone(),
	}
}

// shift discards the consumed prefix of the stored plan and, with a fixed
// horizon, refills the tail by repeating the last control and law.
func (c *Controller) shift(steps int) {
	n := c.traj.Horizon()
	if steps >= n {
		steps = n - 1
	}

	c.policy.Shift(steps)
	keep := n - steps
	c.policy.Gains = c.policy.Gains[:keep]
	c.policy.FF = c.policy.FF[:keep]

	states := make([]dynamo.State, 0, n+1)
	controls := make([]dynamo.Control, 0, n)
	for k := steps; k <= n; k++ {
		states = append(states, c.traj.States[k])
	}
	for k := steps; k < n; k++ {
		controls = append(controls, c.traj.Controls[k])
	}

	if c.horizon > 0 {
		// Refill: repeat the last control and extend states by
		// propagating the model from the current tail.
		lastU := controls[len(controls)-1]
		for len(controls) < c.horizon {
			tail := states[len(states)-1]
			next, err := c.sys.Propagate(tail, lastU, len(controls))
			if err != nil {
				// The warm start is only a guess; hold the tail
				// state rather than fail the tick here.
				next = tail.Clone()
			}
			states = append(states, next)
			controls = append(controls, lastU.Clone())
			c.policy.Gains = append(c.policy.Gains, mat.DenseCopyOf(c.policy.Gains[len(c.policy.Gains)-1]))
			c.policy.FF = append(c.policy.FF, mat.VecDenseCopyOf(c.policy.FF[len(c.policy.FF)-1]))
		}
	}

	c.traj = &dynamo.Trajectory{States: states, Controls: controls}
}
