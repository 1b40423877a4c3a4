// Package riccati implements the backward sweep of the iterative LQ solver:
// a Riccati-type recursion over the linearized steps that produces a
// time-varying affine feedback policy and the quadratic value function
// approximation. The recursion is strictly sequential — step k needs the
// value function of step k+1 — and always runs on a single goroutine.
package riccati

import (
	"errors"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/nloc/internal/lq"
)

// ErrCurvature indicates the control-curvature block stayed indefinite even
// at the regularization cap; the iteration is diverged.
var ErrCurvature = errors.New("nloc: curvature regularization cap exceeded")

// Options control the Levenberg-Marquardt damping applied when the
// control-control curvature block fails its Cholesky factorization.
type Options struct {
	Init   float64 // first nonzero damping strength
	Growth float64 // geometric growth factor between retries
	Max    float64 // cap; exceeding it fails the sweep
}

// Sweep is the outcome of one backward pass.
type Sweep struct {
	Policy *Policy

	// DV1, DV2 are the value-function terms of the expected cost change
	// for a step size α: Δ(α) = α·DV1 + α²·DV2, with Δ(1) < 0 on descent.
	DV1, DV2 float64

	// Regularization is the damping the sweep finally succeeded with.
	Regularization float64

	// Warnings counts curvature failures recovered by damping retries.
	Warnings int
}

// Next returns the escalated damping after a failure at strength reg.
func (o Options) Next(reg float64) float64 {
	if reg < o.Init {
		return o.Init
	}
	return reg * o.Growth
}

// Backward runs the Riccati recursion over the linearized steps, starting
// from the terminal cost expansion (lx, lxx). The initial damping reg may be
// zero for an undamped first attempt; on a factorization failure the whole
// sweep restarts with escalated damping until Options.Max is exceeded.
func Backward(steps []lq.Step, lx *mat.VecDense, lxx *mat.SymDense, reg float64, opts Options) (*Sweep, error) {
	warnings := 0
	for {
		sweep, ok := attempt(steps, lx, lxx, reg)
		if ok {
			sweep.Regularization = reg
			sweep.Warnings = warnings
			return sweep, nil
		}
		warnings++
		reg = opts.Next(reg)
		if reg > opts.Max {
			return nil, ErrCurvature
		}
	}
}

func attempt(steps []lq.Step, tlx *mat.VecDense, tlxx *mat.SymDense, reg float64) (*Sweep, bool) {
	n := len(steps)
	sweep := &Sweep{
		Policy: &Policy{
			Gains: make([]*mat.Dense, n),
			FF:    make([]*mat.VecDense, n),
		},
	}

	vx := mat.VecDenseCopyOf(tlx)
	vxx := mat.DenseCopyOf(tlxx)

	var chol mat.Cholesky
	for k := n - 1; k >= 0; k-- {
		st := &steps[k]
		nx, nu := st.B.Dims()

		// vt = Vx + Vxx·d folds the affine residual into the linear term.
		vt := mat.VecDenseCopyOf(vx)
		if st.Defect != nil {
			dv := new(mat.VecDense)
			dv.MulVec(vxx, st.Defect.Vec())
			vt.AddVec(vt, dv)
		}

		// Action-value quadratic.
		qx := new(mat.VecDense)
		qx.MulVec(st.A.T(), vt)
		qx.AddVec(qx, st.Cost.Lx)

		qu := new(mat.VecDense)
		qu.MulVec(st.B.T(), vt)
		qu.AddVec(qu, st.Cost.Lu)

		vxxA := new(mat.Dense)
		vxxA.Mul(vxx, st.A)
		vxxB := new(mat.Dense)
		vxxB.Mul(vxx, st.B)

		qxx := new(mat.Dense)
		qxx.Mul(st.A.T(), vxxA)
		addSym(qxx, st.Cost.Lxx)

		quu := new(mat.Dense)
		quu.Mul(st.B.T(), vxxB)
		addSym(quu, st.Cost.Luu)

		qux := new(mat.Dense)
		qux.Mul(st.B.T(), vxxA)
		qux.Add(qux, st.Cost.Lux)

		// Damped curvature for the gain solve; the closed-loop value
		// update below keeps the undamped Quu.
		quuReg := symmetrize(quu)
		if reg > 0 {
			for i := 0; i < nu; i++ {
				quuReg.SetSym(i, i, quuReg.At(i, i)+reg)
			}
		}
		if !chol.Factorize(quuReg) {
			return nil, false
		}

		gain := new(mat.Dense)
		if err := chol.SolveTo(gain, qux); err != nil {
			return nil, false
		}
		gain.Scale(-1, gain)

		ff := new(mat.VecDense)
		if err := chol.SolveVecTo(ff, qu); err != nil {
			return nil, false
		}
		ff.ScaleVec(-1, ff)

		sweep.Policy.Gains[k] = gain
		sweep.Policy.FF[k] = ff
		sweep.DV1 += mat.Dot(ff, qu)
		sweep.DV2 += 0.5 * mat.Inner(ff, symmetrize(quu), ff)

		// Closed-loop value function:
		//   Vx  = Qx + Kᵀ(Quu·k + Qu) + Quxᵀ·k
		//   Vxx = Qxx + Kᵀ·Quu·K + Kᵀ·Qux + Quxᵀ·K
		s := new(mat.VecDense)
		s.MulVec(quu, ff)
		s.AddVec(s, qu)

		kts := new(mat.VecDense)
		kts.MulVec(gain.T(), s)
		quxk := new(mat.VecDense)
		quxk.MulVec(qux.T(), ff)

		vx = mat.VecDenseCopyOf(qx)
		vx.AddVec(vx, kts)
		vx.AddVec(vx, quxk)

		quuK := new(mat.Dense)
		quuK.Mul(quu, gain)
		ktQuuK := new(mat.Dense)
		ktQuuK.Mul(gain.T(), quuK)
		ktQux := new(mat.Dense)
		ktQux.Mul(gain.T(), qux)

		next := mat.NewDense(nx, nx, nil)
		next.Add(qxx, ktQuuK)
		next.Add(next, ktQux)
		next.Add(next, ktQux.T())

		// Symmetrize to keep the recursion stable against float drift.
		for i := 0; i < nx; i++ {
			for j := i; j < nx; j++ {
				v := 0.5 * (next.At(i, j) + next.At(j, i))
				next.Set(i, j, v)
				next.Set(j, i, v)
			}
		}
		vxx = next
	}

	return sweep, true
}

func addSym(dst *mat.Dense, s *mat.SymDense) {
	r, c := dst.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			dst.Set(i, j, dst.At(i, j)+s.At(i, j))
		}
	}
}

func symmetrize(m *mat.Dense) *mat.SymDense {
	n, _ := m.Dims()
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s.SetSym(i, j, 0.5*(m.At(i, j)+m.At(j, i)))
		}
	}
	return s
}
