package engine

import (
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/optimize"
)

// Migrad is the variable-metric minimizer. Descents use gonum's BFGS, or
// Newton when the FCN provides a usable Hessian. Every descent is followed
// by a Hesse evaluation that yields the EDM and the covariance; while the
// EDM is above target and the strategy allows, the descent is repeated from
// the new point.
type Migrad struct {
	Logger *zap.Logger
}

// Name implements Minimizer.
func (m *Migrad) Name() string { return "migrad" }

// Minimize implements Minimizer.
func (m *Migrad) Minimize(fcn FCN, state []Parameter, strategy Strategy, maxCalls uint, tolerance float64) (*Minimum, error) {
	logger := nopIfNil(m.Logger).Named("migrad")
	t := newTransform(state)
	limit := int(maxCalls)
	if limit == 0 {
		limit = DefaultMaxCalls(t.variables())
	}
	o := newObjective(fcn, t, strategy, limit)
	u := t.internal(valuesOf(state))
	if t.variables() == 0 {
		return o.fixedMinimum(u)
	}
	maxEDM := MaxEDM(tolerance, fcn.Up())

	var minimum *Minimum
	for attempt := 1; attempt <= strategy.attempts(); attempt++ {
		fval, next := o.descend(u, maxEDM)
		if err := fcn.Err(); err != nil {
			return nil, err
		}
		u = next
		minimum = o.minimumAt(u, fval, maxEDM)
		if err := fcn.Err(); err != nil {
			return nil, err
		}
		logger.Debug("descent finished",
			zap.Int("attempt", attempt),
			zap.Float64("fval", fval),
			zap.Float64("edm", minimum.EDM),
			zap.Int("calls", minimum.FunctionCalls),
		)
		if minimum.ReachedCallLimit || (!minimum.AboveMaxEDM && !minimum.HesseFailed) {
			break
		}
	}
	return minimum, nil
}

// descend runs a single gonum descent starting at u. It ends once the
// estimated EDM is below maxEDM. Line-search failures
// such as lack of progress end the descent at its best point; they are not
// errors of the minimization.
func (o *objective) descend(u []float64, maxEDM float64) (float64, []float64) {
	var method optimize.Method = &optimize.BFGS{}
	if o.useAnalyticHessian() {
		method = &optimize.Newton{}
	}
	settings := &optimize.Settings{
		Converger: newEDMConverger(maxEDM, o.strategy.stallIterations()),
	}
	res, _ := optimize.Minimize(o.problem(), u, settings, method)
	if res == nil || len(res.X) != len(u) || !allFinite(res.X) {
		return o.value(u), u
	}
	return res.F, append([]float64(nil), res.X...)
}

// minimumAt evaluates the error matrix at u and assembles the Minimum.
func (o *objective) minimumAt(u []float64, fval, maxEDM float64) *Minimum {
	x := o.t.external(u)
	minimum := &Minimum{
		State:    o.t.withValues(x),
		Values:   x,
		Fval:     fval,
		Up:       o.fcn.Up(),
		ExtOfInt: append([]int(nil), o.t.extOfInt...),
	}
	// the budget bounds the descent; the error matrix may exceed it
	minimum.ReachedCallLimit = o.reachedCallLimit()
	em := o.errorMatrixAt(u)
	minimum.FunctionCalls = int(o.calls.Load())
	if em.failed {
		minimum.HesseFailed = true
		minimum.EDM = math.Inf(1)
		minimum.AboveMaxEDM = true
		return minimum
	}
	minimum.EDM = em.edm
	minimum.AboveMaxEDM = em.edm >= maxEDM
	minimum.Covariance = o.packedCovariance(em.inverse, u)
	minimum.CovarianceAccurate = em.accurate
	return minimum
}

// fixedMinimum handles a state without free parameters.
func (o *objective) fixedMinimum(u []float64) (*Minimum, error) {
	fval := o.value(u)
	if err := o.fcn.Err(); err != nil {
		return nil, err
	}
	x := o.t.external(u)
	return &Minimum{
		State:         o.t.withValues(x),
		Values:        x,
		Fval:          fval,
		Up:            o.fcn.Up(),
		FunctionCalls: int(o.calls.Load()),
		ExtOfInt:      []int{},
	}, nil
}

func valuesOf(state []Parameter) []float64 {
	values := make([]float64, len(state))
	for i, p := range state {
		values[i] = p.Value
	}
	return values
}

func nopIfNil(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
