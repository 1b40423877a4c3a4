package dynamo

import (
	"errors"
	"math"
	"testing"
)

func TestNewTrajectoryShape(t *testing.T) {
	tr := NewTrajectory(10, 3, 2)
	if tr.Horizon() != 10 {
		t.Errorf("horizon = %d, want 10", tr.Horizon())
	}
	if len(tr.States) != 11 {
		t.Errorf("states = %d, want 11", len(tr.States))
	}
	if err := tr.Validate(3, 2); err != nil {
		t.Errorf("zero trajectory should validate: %v", err)
	}
}

func TestTrajectoryValidate(t *testing.T) {
	tests := []struct {
		name string
		tr   *Trajectory
		want error
	}{
		{"empty horizon", NewTrajectory(0, 2, 1), ErrHorizon},
		{"broken invariant", &Trajectory{
			States:   []State{{0, 0}, {0, 0}, {0, 0}},
			Controls: []Control{{0}},
		}, ErrDimensionMismatch},
		{"wrong state dim", &Trajectory{
			States:   []State{{0}, {0, 0}},
			Controls: []Control{{0}},
		}, ErrDimensionMismatch},
		{"wrong control dim", &Trajectory{
			States:   []State{{0, 0}, {0, 0}},
			Controls: []Control{{0, 0}},
		}, ErrDimensionMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.tr.Validate(2, 1); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestTrajectoryCloneIsDeep(t *testing.T) {
	tr := NewTrajectory(2, 1, 1)
	tr.States[0][0] = 1
	c := tr.Clone()
	c.States[0][0] = 99
	c.Controls[1][0] = 99
	if tr.States[0][0] != 1 || tr.Controls[1][0] != 0 {
		t.Error("clone shares backing arrays with original")
	}
}

func TestStateValidity(t *testing.T) {
	if !(State{1, 2, 3}).IsValid() {
		t.Error("finite state should be valid")
	}
	if (State{1, math.NaN(), 3}).IsValid() {
		t.Error("NaN state should be invalid")
	}
	if (State{1, math.Inf(1), 3}).IsValid() {
		t.Error("Inf state should be invalid")
	}
}
