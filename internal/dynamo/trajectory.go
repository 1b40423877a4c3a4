package dynamo

import "fmt"

// Trajectory is a nominal state/control sequence over one horizon.
// Invariant: len(States) == len(Controls)+1 — controls apply between
// consecutive states.
type Trajectory struct {
	States   []State
	Controls []Control
}

// NewTrajectory allocates a zero trajectory with the given horizon length.
func NewTrajectory(horizon, stateDim, controlDim int) *Trajectory {
	tr := &Trajectory{
		States:   make([]State, horizon+1),
		Controls: make([]Control, horizon),
	}
	for i := range tr.States {
		tr.States[i] = make(State, stateDim)
	}
	for i := range tr.Controls {
		tr.Controls[i] = make(Control, controlDim)
	}
	return tr
}

// Horizon returns the number of timesteps (= number of controls).
func (tr *Trajectory) Horizon() int {
	return len(tr.Controls)
}

func (tr *Trajectory) Clone() *Trajectory {
	c := &Trajectory{
		States:   make([]State, len(tr.States)),
		Controls: make([]Control, len(tr.Controls)),
	}
	for i, x := range tr.States {
		c.States[i] = x.Clone()
	}
	for i, u := range tr.Controls {
		c.Controls[i] = u.Clone()
	}
	return c
}

// Validate checks the structural invariant and the per-step dimensions.
func (tr *Trajectory) Validate(stateDim, controlDim int) error {
	if len(tr.Controls) < 1 {
		return ErrHorizon
	}
	if len(tr.States) != len(tr.Controls)+1 {
		return fmt.Errorf("trajectory has %d states for %d controls: %w",
			len(tr.States), len(tr.Controls), ErrDimensionMismatch)
	}
	for i, x := range tr.States {
		if len(x) != stateDim {
			return fmt.Errorf("state %d has dim %d, want %d: %w", i, len(x), stateDim, ErrDimensionMismatch)
		}
	}
	for i, u := range tr.Controls {
		if len(u) != controlDim {
			return fmt.Errorf("control %d has dim %d, want %d: %w", i, len(u), controlDim, ErrDimensionMismatch)
		}
	}
	return nil
}
