package engine

import "go.uber.org/zap"

// Combined runs Migrad and falls back to Simplex followed by a second Migrad
// when the first result is not valid. Function calls accumulate over all
// stages and count against one budget.
type Combined struct {
	Logger *zap.Logger
}

// Name implements Minimizer.
func (c *Combined) Name() string { return "combined" }

// Minimize implements Minimizer.
func (c *Combined) Minimize(fcn FCN, state []Parameter, strategy Strategy, maxCalls uint, tolerance float64) (*Minimum, error) {
	logger := nopIfNil(c.Logger).Named("combined")
	budget := int(maxCalls)
	if budget == 0 {
		budget = DefaultMaxCalls(len(newTransform(state).extOfInt))
	}

	migrad := &Migrad{Logger: c.Logger}
	first, err := migrad.Minimize(fcn, state, strategy, uint(budget), tolerance)
	if err != nil || first.IsValid() || first.ReachedCallLimit {
		return first, err
	}
	logger.Debug("migrad result invalid, falling back to simplex", zap.Float64("edm", first.EDM))

	calls := first.FunctionCalls
	simplex := &Simplex{Logger: c.Logger}
	second, err := simplex.Minimize(fcn, first.State, strategy, remaining(budget, calls), tolerance)
	if err != nil {
		return nil, err
	}
	calls += second.FunctionCalls
	if second.ReachedCallLimit || calls >= budget {
		second.FunctionCalls = calls
		second.ReachedCallLimit = true
		return second, nil
	}

	third, err := migrad.Minimize(fcn, second.State, strategy, remaining(budget, calls), tolerance)
	if err != nil {
		return nil, err
	}
	third.FunctionCalls += calls
	return third, nil
}

func remaining(budget, used int) uint {
	if used >= budget {
		return 1
	}
	return uint(budget - used)
}
