package riccati

import (
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/nloc/internal/dynamo"
)

// Policy is a time-varying affine feedback law: at step k the control is
// u = u_nom[k] + FF[k] + Gains[k]·(x − x_nom[k]), with the nominal pair
// taken from the trajectory the policy was solved around.
type Policy struct {
	Gains []*mat.Dense
	FF    []*mat.VecDense
}

func (p *Policy) Horizon() int {
	return len(p.Gains)
}

func (p *Policy) Clone() *Policy {
	c := &Policy{
		Gains: make([]*mat.Dense, len(p.Gains)),
		FF:    make([]*mat.VecDense, len(p.FF)),
	}
	for i, k := range p.Gains {
		c.Gains[i] = mat.DenseCopyOf(k)
	}
	for i, f := range p.FF {
		c.FF[i] = mat.VecDenseCopyOf(f)
	}
	return c
}

// Shift drops the consumed prefix of the policy and repeats the last law to
// keep the horizon length, as the MPC layer does on each receding-horizon
// update. Shifting by the full horizon or more leaves the last law only.
func (p *Policy) Shift(steps int) {
	n := p.Horizon()
	if steps <= 0 || n == 0 {
		return
	}
	if steps >= n {
		steps = n - 1
	}
	for k := 0; k < n-steps; k++ {
		p.Gains[k] = p.Gains[k+steps]
		p.FF[k] = p.FF[k+steps]
	}
	for k := n - steps; k < n; k++ {
		p.Gains[k] = mat.DenseCopyOf(p.Gains[n-steps-1])
		p.FF[k] = mat.VecDenseCopyOf(p.FF[n-steps-1])
	}
}

// Command evaluates the law at step k around the given nominal pair, with
// the feedforward term scaled by the line-search step size alpha.
func (p *Policy) Command(k int, x, xNom dynamo.State, uNom dynamo.Control, alpha float64) dynamo.Control {
	dx := x.Sub(xNom)
	fb := new(mat.VecDense)
	fb.MulVec(p.Gains[k], dx.Vec())

	u := make(dynamo.Control, len(uNom))
	for i := range u {
		u[i] = uNom[i] + alpha*p.FF[k].AtVec(i) + fb.AtVec(i)
	}
	return u
}
