package cost

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/nloc/internal/dynamo"
)

// Tracking penalizes deviation from a per-step reference trajectory,
// the cost model the MPC layer uses to follow a planned path.
type Tracking struct {
	q, r, qf *mat.SymDense
	ref      *dynamo.Trajectory
}

func NewTracking(q, r, qf *mat.SymDense, ref *dynamo.Trajectory) (*Tracking, error) {
	if ref == nil || ref.Horizon() < 1 {
		return nil, dynamo.ErrHorizon
	}
	if q.SymmetricDim() != len(ref.States[0]) {
		return nil, fmt.Errorf("cost: state weight dim %d does not match reference: %w",
			q.SymmetricDim(), dynamo.ErrDimensionMismatch)
	}
	return &Tracking{
		q:   copySym(q),
		r:   copySym(r),
		qf:  copySym(qf),
		ref: ref.Clone(),
	}, nil
}

// refAt clamps past-horizon queries to the last reference segment so the
// MPC layer can evaluate a shifted plan against a shorter reference.
func (c *Tracking) refAt(k int) (dynamo.State, dynamo.Control) {
	n := c.ref.Horizon()
	if k >= n {
		k = n - 1
	}
	return c.ref.States[k], c.ref.Controls[k]
}

func (c *Tracking) Stage(x dynamo.State, u dynamo.Control, k int) float64 {
	xr, ur := c.refAt(k)
	dx := x.Sub(xr)
	du := make([]float64, len(u))
	for i := range du {
		du[i] = u[i] - ur[i]
	}
	duv := mat.NewVecDense(len(du), du)
	return 0.5*mat.Inner(dx.Vec(), c.q, dx.Vec()) + 0.5*mat.Inner(duv, c.r, duv)
}

func (c *Tracking) StageQuadratic(x dynamo.State, u dynamo.Control, k int) dynamo.StageQuad {
	xr, ur := c.refAt(k)
	dx := x.Sub(xr)
	du := make([]float64, len(u))
	for i := range du {
		du[i] = u[i] - ur[i]
	}

	lx := new(mat.VecDense)
	lx.MulVec(c.q, dx.Vec())
	lu := new(mat.VecDense)
	lu.MulVec(c.r, mat.NewVecDense(len(du), du))

	return dynamo.StageQuad{
		Lx:  lx,
		Lu:  lu,
		Lxx: copySym(c.q),
		Luu: copySym(c.r),
		Lux: mat.NewDense(len(u), len(x), nil),
	}
}

func (c *Tracking) Terminal(x dynamo.State) float64 {
	dx := x.Sub(c.ref.States[c.ref.Horizon()])
	return 0.5 * mat.Inner(dx.Vec(), c.qf, dx.Vec())
}

func (c *Tracking) TerminalQuadratic(x dynamo.State) (*mat.VecDense, *mat.SymDense) {
	dx := x.Sub(c.ref.States[c.ref.Horizon()])
	lx := new(mat.VecDense)
	lx.MulVec(c.qf, dx.Vec())
	return lx, copySym(c.qf)
}
