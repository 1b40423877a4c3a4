// Package cost provides the built-in cost models: quadratic regulation
// around a goal state and quadratic tracking of a reference trajectory.
// Both carry analytic gradients and Hessians, so the LQ approximation of a
// linear problem is exact.
package cost

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/nloc/internal/dynamo"
)

// Quadratic penalizes deviation from a goal state:
//
//	stage:    0.5·(x−g)ᵀQ(x−g) + 0.5·uᵀRu
//	terminal: 0.5·(x−g)ᵀQf(x−g)
type Quadratic struct {
	q, r, qf *mat.SymDense
	goal     dynamo.State
}

func NewQuadratic(q, r, qf *mat.SymDense, goal dynamo.State) (*Quadratic, error) {
	if q.SymmetricDim() != len(goal) || qf.SymmetricDim() != len(goal) {
		return nil, fmt.Errorf("cost: weight dims %d/%d do not match goal dim %d: %w",
			q.SymmetricDim(), qf.SymmetricDim(), len(goal), dynamo.ErrDimensionMismatch)
	}
	return &Quadratic{
		q:    copySym(q),
		r:    copySym(r),
		qf:   copySym(qf),
		goal: goal.Clone(),
	}, nil
}

// NewDiagonal builds a Quadratic from diagonal weights.
func NewDiagonal(qDiag, rDiag, qfDiag []float64, goal dynamo.State) (*Quadratic, error) {
	q := diagSym(qDiag)
	r := diagSym(rDiag)
	qf := diagSym(qfDiag)
	return NewQuadratic(q, r, qf, goal)
}

func diagSym(d []float64) *mat.SymDense {
	s := mat.NewSymDense(len(d), nil)
	for i, v := range d {
		s.SetSym(i, i, v)
	}
	return s
}

func (c *Quadratic) Stage(x dynamo.State, u dynamo.Control, k int) float64 {
	dx := x.Sub(c.goal)
	j := 0.5 * mat.Inner(dx.Vec(), c.q, dx.Vec())
	uv := mat.NewVecDense(len(u), u)
	j += 0.5 * mat.Inner(uv, c.r, uv)
	return j
}

func (c *Quadratic) StageQuadratic(x dynamo.State, u dynamo.Control, k int) dynamo.StageQuad {
	dx := x.Sub(c.goal)
	lx := new(mat.VecDense)
	lx.MulVec(c.q, dx.Vec())
	lu := new(mat.VecDense)
	lu.MulVec(c.r, mat.NewVecDense(len(u), u))

	return dynamo.StageQuad{
		Lx:  lx,
		Lu:  lu,
		Lxx: copySym(c.q),
		Luu: copySym(c.r),
		Lux: mat.NewDense(len(u), len(x), nil),
	}
}

func (c *Quadratic) Terminal(x dynamo.State) float64 {
	dx := x.Sub(c.goal)
	return 0.5 * mat.Inner(dx.Vec(), c.qf, dx.Vec())
}

func (c *Quadratic) TerminalQuadratic(x dynamo.State) (*mat.VecDense, *mat.SymDense) {
	dx := x.Sub(c.goal)
	lx := new(mat.VecDense)
	lx.MulVec(c.qf, dx.Vec())
	return lx, copySym(c.qf)
}

func copySym(s *mat.SymDense) *mat.SymDense {
	n := s.SymmetricDim()
	c := mat.NewSymDense(n, nil)
	c.CopySym(s)
	return c
}
