package engine

// Hesse recomputes the error matrix of an existing minimum at its best point
// without moving it. The returned minimum is a new value; FunctionCalls
// accumulates the calls spent here on top of those of the input.
func Hesse(fcn FCN, minimum *Minimum, strategy Strategy, tolerance float64) (*Minimum, error) {
	t := newTransform(minimum.State)
	o := newObjective(fcn, t, strategy, 0)
	refined := minimum.clone()
	refined.Up = fcn.Up()
	if t.variables() == 0 {
		return refined, nil
	}

	u := t.internal(minimum.Values)
	em := o.errorMatrixAt(u)
	if err := fcn.Err(); err != nil {
		return nil, err
	}
	refined.FunctionCalls = minimum.FunctionCalls + int(o.calls.Load())
	if em.failed {
		refined.HesseFailed = true
		refined.Covariance = nil
		refined.CovarianceAccurate = false
		return refined, nil
	}
	refined.HesseFailed = false
	refined.EDM = em.edm
	refined.AboveMaxEDM = em.edm >= MaxEDM(tolerance, refined.Up)
	refined.Covariance = o.packedCovariance(em.inverse, u)
	refined.CovarianceAccurate = em.accurate
	return refined, nil
}
