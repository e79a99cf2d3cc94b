package engine

import (
	"math"
	"sync/atomic"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// objective is the FCN expressed in internal coordinates. It counts value
// calls and turns FCN faults and the call budget into gonum statuses.
type objective struct {
	fcn      FCN
	t        *transform
	strategy Strategy
	maxCalls int64
	calls    atomic.Int64
}

func newObjective(fcn FCN, t *transform, strategy Strategy, maxCalls int) *objective {
	return &objective{fcn: fcn, t: t, strategy: strategy, maxCalls: int64(maxCalls)}
}

func (o *objective) value(u []float64) float64 {
	if o.fcn.Err() != nil {
		return math.Inf(1)
	}
	o.calls.Add(1)
	return o.fcn.Value(o.t.external(u))
}

func (o *objective) gradient(dst, u []float64) {
	if o.fcn.Err() != nil {
		zero(dst)
		return
	}
	if o.fcn.HasGradient() {
		g := o.fcn.Gradient(o.t.external(u))
		d := o.t.firstDerivatives(u)
		for k, i := range o.t.extOfInt {
			dst[k] = g[i] * d[k]
		}
	} else {
		fd.Gradient(dst, o.value, u, &fd.Settings{Formula: o.strategy.gradientFormula()})
	}
	if o.fcn.Err() != nil {
		zero(dst)
	}
}

// useAnalyticHessian reports whether the FCN Hessian can be transformed into
// internal coordinates. Limited parameters need the gradient for that.
func (o *objective) useAnalyticHessian() bool {
	return o.fcn.HasHessian() && (o.fcn.HasGradient() || !o.t.limited())
}

func (o *objective) analyticHessian(dst *mat.SymDense, u []float64) {
	n := o.t.variables()
	if o.fcn.Err() != nil {
		dst.Zero()
		return
	}
	x := o.t.external(u)
	h := o.fcn.Hessian(x)
	d := o.t.firstDerivatives(u)
	var g []float64
	if o.t.limited() {
		g = o.fcn.Gradient(x)
	}
	d2 := o.t.secondDerivatives(u)
	size := len(o.t.params)
	for k := 0; k < n; k++ {
		i := o.t.extOfInt[k]
		for l := k; l < n; l++ {
			j := o.t.extOfInt[l]
			v := d[k] * h[i*size+j] * d[l]
			if k == l && g != nil {
				v += g[i] * d2[k]
			}
			dst.SetSym(k, l, v)
		}
	}
	if o.fcn.Err() != nil {
		dst.Zero()
	}
}

// scales returns the natural length scale of every free parameter, used to
// condition the numerical Hessian.
func (o *objective) scales(u []float64) []float64 {
	s := make([]float64, len(u))
	var diag []float64
	if o.fcn.HasHessianDiagonal() && o.fcn.Err() == nil {
		ext := o.fcn.HessianDiagonal(o.t.external(u))
		d := o.t.firstDerivatives(u)
		diag = make([]float64, len(u))
		for k, i := range o.t.extOfInt {
			diag[k] = ext[i] * d[k] * d[k]
		}
	}
	for k := range u {
		switch {
		case diag != nil && diag[k] > 0 && !math.IsInf(diag[k], 0):
			s[k] = 1 / math.Sqrt(diag[k])
		case math.Abs(u[k]) > 1e-12:
			s[k] = math.Abs(u[k])
		default:
			s[k] = 1
		}
	}
	return s
}

func (o *objective) numericalHessian(dst *mat.SymDense, u []float64) {
	n := len(u)
	s := o.scales(u)
	shifted := make([]float64, n)
	scaled := func(z []float64) float64 {
		for k := range z {
			shifted[k] = u[k] + s[k]*z[k]
		}
		return o.value(shifted)
	}
	var hz mat.SymDense
	formula, step := o.strategy.hessianFormula()
	fd.Hessian(&hz, scaled, make([]float64, n), &fd.Settings{Formula: formula, Step: step})
	for k := 0; k < n; k++ {
		for l := k; l < n; l++ {
			dst.SetSym(k, l, hz.At(k, l)/(s[k]*s[l]))
		}
	}
}

func (o *objective) hessian(u []float64) *mat.SymDense {
	h := mat.NewSymDense(len(u), nil)
	if o.useAnalyticHessian() {
		o.analyticHessian(h, u)
	} else {
		o.numericalHessian(h, u)
	}
	return h
}

// status is polled by gonum after every evaluation.
func (o *objective) status() (optimize.Status, error) {
	if err := o.fcn.Err(); err != nil {
		return optimize.Failure, err
	}
	if o.maxCalls > 0 && o.calls.Load() >= o.maxCalls {
		return optimize.FunctionEvaluationLimit, nil
	}
	return optimize.NotTerminated, nil
}

func (o *objective) reachedCallLimit() bool {
	return o.maxCalls > 0 && o.calls.Load() >= o.maxCalls
}

func (o *objective) problem() optimize.Problem {
	p := optimize.Problem{
		Func:   o.value,
		Grad:   o.gradient,
		Status: o.status,
	}
	if o.useAnalyticHessian() {
		p.Hess = o.analyticHessian
	}
	return p
}

func zero(v []float64) {
	for i := range v {
		v[i] = 0
	}
}
