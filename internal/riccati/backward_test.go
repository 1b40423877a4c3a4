package riccati

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/nloc/internal/dynamo"
	"github.com/san-kum/nloc/internal/lq"
)

// lqSteps builds a horizon of identical LQ steps for the dynamics (a, b)
// and diagonal weights, with zero nominal (so gradients vanish and the
// policy is pure feedback).
func lqSteps(n int, a, b *mat.Dense, q, r float64) []lq.Step {
	nx, nu := b.Dims()
	steps := make([]lq.Step, n)
	for k := range steps {
		qs := mat.NewSymDense(nx, nil)
		for i := 0; i < nx; i++ {
			qs.SetSym(i, i, q)
		}
		rs := mat.NewSymDense(nu, nil)
		for i := 0; i < nu; i++ {
			rs.SetSym(i, i, r)
		}
		steps[k] = lq.Step{
			A:      mat.DenseCopyOf(a),
			B:      mat.DenseCopyOf(b),
			Defect: make(dynamo.State, nx),
			Cost: dynamo.StageQuad{
				Lx:  mat.NewVecDense(nx, nil),
				Lu:  mat.NewVecDense(nu, nil),
				Lxx: qs,
				Luu: rs,
				Lux: mat.NewDense(nu, nx, nil),
			},
		}
	}
	return steps
}

// refGain iterates the discrete Riccati difference equation and returns the
// optimal first-step feedback gain −(R+BᵀPB)⁻¹BᵀPA.
func refGain(n int, a, b *mat.Dense, q, r, qf float64) *mat.Dense {
	nx, nu := b.Dims()
	p := mat.NewDense(nx, nx, nil)
	for i := 0; i < nx; i++ {
		p.Set(i, i, qf)
	}

	var k *mat.Dense
	for it := 0; it < n; it++ {
		pb := new(mat.Dense)
		pb.Mul(p, b)
		btpb := new(mat.Dense)
		btpb.Mul(b.T(), pb)
		for i := 0; i < nu; i++ {
			btpb.Set(i, i, btpb.At(i, i)+r)
		}
		inv := new(mat.Dense)
		if err := inv.Inverse(btpb); err != nil {
			panic(err)
		}

		pa := new(mat.Dense)
		pa.Mul(p, a)
		btpa := new(mat.Dense)
		btpa.Mul(b.T(), pa)

		k = new(mat.Dense)
		k.Mul(inv, btpa)
		k.Scale(-1, k)

		// P = Q + AᵀPA − AᵀPB (R+BᵀPB)⁻¹ BᵀPA
		atpa := new(mat.Dense)
		atpa.Mul(a.T(), pa)
		atpb := new(mat.Dense)
		atpb.Mul(a.T(), pb)
		corr := new(mat.Dense)
		corr.Mul(atpb, k)

		next := mat.NewDense(nx, nx, nil)
		next.Add(atpa, corr)
		for i := 0; i < nx; i++ {
			next.Set(i, i, next.At(i, i)+q)
		}
		p = next
	}
	return k
}

func terminalQuad(nx int, qf float64) (*mat.VecDense, *mat.SymDense) {
	lxx := mat.NewSymDense(nx, nil)
	for i := 0; i < nx; i++ {
		lxx.SetSym(i, i, qf)
	}
	return mat.NewVecDense(nx, nil), lxx
}

func defaultOpts() Options {
	return Options{Init: 1e-6, Growth: 10, Max: 1e10}
}

func TestBackwardMatchesRiccatiReference(t *testing.T) {
	dt := 0.1
	a := mat.NewDense(2, 2, []float64{1, dt, 0, 1})
	b := mat.NewDense(2, 1, []float64{0.5 * dt * dt, dt})

	const n = 50
	steps := lqSteps(n, a, b, 1.0, 0.1)
	lx, lxx := terminalQuad(2, 10.0)

	sweep, err := Backward(steps, lx, lxx, 0, defaultOpts())
	if err != nil {
		t.Fatalf("backward failed: %v", err)
	}
	if sweep.Warnings != 0 || sweep.Regularization != 0 {
		t.Errorf("SPD problem should need no damping, got reg=%g warnings=%d",
			sweep.Regularization, sweep.Warnings)
	}
	if sweep.Policy.Horizon() != n {
		t.Fatalf("policy horizon = %d, want %d", sweep.Policy.Horizon(), n)
	}

	want := refGain(n, a, b, 1.0, 0.1, 10.0)
	if !mat.EqualApprox(sweep.Policy.Gains[0], want, 1e-9) {
		t.Errorf("first gain mismatch:\ngot  %v\nwant %v",
			mat.Formatted(sweep.Policy.Gains[0]), mat.Formatted(want))
	}

	// Zero nominal gradients mean zero feedforward and no predicted change.
	for k := 0; k < n; k++ {
		if sweep.Policy.FF[k].Norm(2) > 1e-12 {
			t.Errorf("step %d: nonzero feedforward on stationary nominal", k)
		}
	}
	if math.Abs(sweep.DV1) > 1e-12 || math.Abs(sweep.DV2) > 1e-12 {
		t.Errorf("expected zero predicted decrease, got dv1=%g dv2=%g", sweep.DV1, sweep.DV2)
	}
}

func TestBackwardSingleStep(t *testing.T) {
	a := mat.NewDense(1, 1, []float64{1})
	b := mat.NewDense(1, 1, []float64{1})

	steps := lqSteps(1, a, b, 1.0, 1.0)
	// Push the nominal off the origin: gradient of 0.5x² at x=2 is 2.
	steps[0].Cost.Lx.SetVec(0, 2.0)
	lx, lxx := terminalQuad(1, 1.0)
	lx.SetVec(0, 2.0) // terminal gradient at x=2

	sweep, err := Backward(steps, lx, lxx, 0, defaultOpts())
	if err != nil {
		t.Fatalf("backward failed: %v", err)
	}

	// Quu = R + BᵀQfB = 2, Qu = Lu + Bᵀlx = 2, so k = −1, K = −1/2.
	if got := sweep.Policy.FF[0].AtVec(0); math.Abs(got-(-1)) > 1e-12 {
		t.Errorf("feedforward = %v, want -1", got)
	}
	if got := sweep.Policy.Gains[0].At(0, 0); math.Abs(got-(-0.5)) > 1e-12 {
		t.Errorf("gain = %v, want -0.5", got)
	}
	if sweep.DV1 >= 0 {
		t.Errorf("descent direction should predict negative dv1, got %g", sweep.DV1)
	}
}

func TestBackwardRegularizesIndefiniteCurvature(t *testing.T) {
	a := mat.NewDense(1, 1, []float64{1})
	b := mat.NewDense(1, 1, []float64{1})

	steps := lqSteps(5, a, b, 1.0, 1.0)
	// Make the control curvature indefinite at one step.
	steps[2].Cost.Luu.SetSym(0, 0, -50)
	lx, lxx := terminalQuad(1, 1.0)

	sweep, err := Backward(steps, lx, lxx, 0, defaultOpts())
	if err != nil {
		t.Fatalf("expected recovery via damping, got %v", err)
	}
	if sweep.Warnings == 0 {
		t.Error("expected curvature warnings")
	}
	if sweep.Regularization <= 0 {
		t.Error("expected nonzero final damping")
	}
}

func TestBackwardCurvatureCapExceeded(t *testing.T) {
	a := mat.NewDense(1, 1, []float64{1})
	b := mat.NewDense(1, 1, []float64{1})

	steps := lqSteps(3, a, b, 1.0, 1.0)
	steps[1].Cost.Luu.SetSym(0, 0, -1e6)
	lx, lxx := terminalQuad(1, 1.0)

	_, err := Backward(steps, lx, lxx, 0, Options{Init: 1e-6, Growth: 10, Max: 1e3})
	if !errors.Is(err, ErrCurvature) {
		t.Fatalf("expected ErrCurvature, got %v", err)
	}
}

func TestPolicyShift(t *testing.T) {
	p := &Policy{}
	for k := 0; k < 4; k++ {
		p.Gains = append(p.Gains, mat.NewDense(1, 1, []float64{float64(k)}))
		p.FF = append(p.FF, mat.NewVecDense(1, []float64{float64(k) * 10}))
	}

	p.Shift(2)
	want := []float64{2, 3, 3, 3}
	for k, w := range want {
		if got := p.Gains[k].At(0, 0); got != w {
			t.Errorf("gain[%d] = %v, want %v", k, got, w)
		}
		if got := p.FF[k].AtVec(0); got != w*10 {
			t.Errorf("ff[%d] = %v, want %v", k, got, w*10)
		}
	}
}

func TestPolicyCommand(t *testing.T) {
	p := &Policy{
		Gains: []*mat.Dense{mat.NewDense(1, 2, []float64{-1, -2})},
		FF:    []*mat.VecDense{mat.NewVecDense(1, []float64{0.5})},
	}
	xNom := dynamo.State{1, 1}
	uNom := dynamo.Control{2}

	// On the nominal with α=0, the command is the nominal control.
	u := p.Command(0, dynamo.State{1, 1}, xNom, uNom, 0)
	if u[0] != 2 {
		t.Errorf("nominal command = %v, want 2", u[0])
	}

	// u = u_nom + α·ff + K·dx = 2 + 0.5 + (−1·1 − 2·(−1)) = 3.5
	u = p.Command(0, dynamo.State{2, 0}, xNom, uNom, 1)
	if math.Abs(u[0]-3.5) > 1e-14 {
		t.Errorf("command = %v, want 3.5", u[0])
	}
}
