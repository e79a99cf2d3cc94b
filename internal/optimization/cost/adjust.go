package cost

import (
	"math"

	"github.com/copyleftdev/mnfit/internal/optimization"
)

// WithErrorDefinitionRecalculatedBasedOnValid calibrates a least-squares
// function with unknown y-errors: the error definition becomes s² times the
// reduced chi-squared at the result's best values, so that covariances match
// those of a fit whose y-errors yield a reduced chi-squared of 1. The cost
// value itself is unchanged. Functions with known y-errors, nil or invalid
// results and fits without degrees of freedom return f unchanged.
func (f *LeastSquaresFunction) WithErrorDefinitionRecalculatedBasedOnValid(r *optimization.Result) Function {
	if !f.calibrates {
		return f
	}
	values, variables, ok := ownValues(f.parameters, r)
	if !ok {
		return f
	}
	dof := len(f.x) - variables
	if dof <= 0 {
		return f
	}
	reduced := f.ValueFor(values) / float64(dof)
	if reduced <= 0 || math.IsNaN(reduced) || math.IsInf(reduced, 0) {
		return f
	}
	recalculated := *f
	recalculated.scaling = reduced
	return &recalculated
}

// ReducedChiSquared returns the cost at the result's best values divided by
// the degrees of freedom of f, and false when it is undefined.
func (f *LeastSquaresFunction) ReducedChiSquared(r *optimization.Result) (float64, bool) {
	values, variables, ok := ownValues(f.parameters, r)
	if !ok || len(f.x) <= variables {
		return 0, false
	}
	return f.ValueFor(values) / float64(len(f.x)-variables), true
}

// ownValues projects a result onto parameters by name and counts how many of
// them were variables.
func ownValues(parameters []string, r *optimization.Result) ([]float64, int, bool) {
	if r == nil || !r.IsValid {
		return nil, 0, false
	}
	values := make([]float64, len(parameters))
	variables := 0
	for i, name := range parameters {
		v, ok := r.ParameterValue(name)
		if !ok {
			return nil, 0, false
		}
		values[i] = v
		if r.IsVariable(name) {
			variables++
		}
	}
	return values, variables, true
}
