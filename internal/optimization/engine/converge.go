package engine

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// edmConverger ends a descent once the estimated distance to the minimum
// drops below target. The estimate uses an inverse Hessian built from the
// secant pairs of successive major iterations. Until the estimate is
// available, or when it never drops below target, the descent stops after
// stall iterations without significant improvement.
type edmConverger struct {
	target float64
	stall  optimize.FunctionConverge

	v    *mat.SymDense
	x, g []float64
	edm  float64
}

func newEDMConverger(target float64, stallIterations int) *edmConverger {
	return &edmConverger{
		target: target,
		stall: optimize.FunctionConverge{
			Absolute:   0.01 * target,
			Iterations: stallIterations,
		},
	}
}

// Init implements optimize.Converger.
func (c *edmConverger) Init(dim int) {
	c.v = nil
	c.x = nil
	c.g = nil
	c.edm = math.Inf(1)
	c.stall.Init(dim)
}

// Converged implements optimize.Converger.
func (c *edmConverger) Converged(loc *optimize.Location) optimize.Status {
	if loc.Gradient != nil && allFinite(loc.Gradient) && allFinite(loc.X) {
		if c.x != nil {
			c.update(loc.X, loc.Gradient)
		}
		c.x = append(c.x[:0], loc.X...)
		c.g = append(c.g[:0], loc.Gradient...)
		if c.v != nil {
			g := mat.NewVecDense(len(c.g), c.g)
			c.edm = 0.5 * mat.Inner(g, c.v, g)
			if c.edm >= 0 && c.edm < c.target {
				return optimize.FunctionConvergence
			}
		}
	}
	return c.stall.Converged(loc)
}

// update applies the BFGS update of the inverse Hessian for the step from
// the previous location to x. Pairs without positive curvature are skipped.
func (c *edmConverger) update(x, grad []float64) {
	n := len(x)
	s := mat.NewVecDense(n, nil)
	y := mat.NewVecDense(n, nil)
	for i := range x {
		s.SetVec(i, x[i]-c.x[i])
		y.SetVec(i, grad[i]-c.g[i])
	}
	sy := mat.Dot(s, y)
	if !(sy > 0) || math.IsInf(sy, 0) {
		return
	}
	if c.v == nil {
		c.v = mat.NewSymDense(n, nil)
		scale := sy / mat.Dot(y, y)
		for i := 0; i < n; i++ {
			c.v.SetSym(i, i, scale)
		}
	}
	rho := 1 / sy
	var vy mat.VecDense
	vy.MulVec(c.v, y)
	yvy := mat.Dot(y, &vy)
	c.v.RankTwo(c.v, -rho, s, &vy)
	c.v.SymRankOne(c.v, rho*rho*yvy+rho, s)
}
