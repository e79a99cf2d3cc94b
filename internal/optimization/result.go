package optimization

import (
	"github.com/copyleftdev/mnfit/internal/optimization/engine"
	"gonum.org/v1/gonum/mat"
)

// Result is the outcome of a minimization or Hesse refinement. It is never
// modified after construction.
type Result struct {
	// CostValue is the cost at ParameterValues on the scale of the cost
	// function, composite sums included.
	CostValue float64

	// Parameters lists every parameter name in cost function order.
	Parameters []string

	// Variables lists the free parameters in engine order.
	Variables []string

	// ParameterValues is aligned with Parameters.
	ParameterValues []float64

	// ParameterCovarianceMatrix is aligned with Parameters. Rows and columns
	// of fixed parameters are zero. It is nil when no covariance is available.
	ParameterCovarianceMatrix *mat.SymDense

	IsValid               bool
	NumberOfFunctionCalls int
	ExitCondition         ExitCondition

	// IssueParameterValues is the vector that produced a non-finite value or
	// derivative, nil otherwise.
	IssueParameterValues []float64

	minimum *engine.Minimum
}

// NewResult decodes an engine minimum. costValue is the cost at the minimum
// on the user-facing scale.
func NewResult(minimum *engine.Minimum, parameters []string, costValue, tolerance float64) *Result {
	r := &Result{
		CostValue:             costValue,
		Parameters:            append([]string(nil), parameters...),
		Variables:             make([]string, len(minimum.ExtOfInt)),
		ParameterValues:       append([]float64(nil), minimum.Values...),
		IsValid:               minimum.IsValid(),
		NumberOfFunctionCalls: minimum.FunctionCalls,
		minimum:               minimum,
	}
	for k, i := range minimum.ExtOfInt {
		r.Variables[k] = parameters[i]
	}
	r.ParameterCovarianceMatrix = CovarianceFrom(minimum.Covariance, minimum.ExtOfInt, len(parameters))

	switch {
	case minimum.EDM < engine.MaxEDM(tolerance, minimum.Up):
		r.ExitCondition = Converged
	case minimum.ReachedCallLimit:
		r.ExitCondition = FunctionCallsExhausted
	default:
		r.ExitCondition = None
	}
	return r
}

// NewPrematureResult builds the invalid result of an interrupted run.
// values is the last vector the engine attempted.
func NewPrematureResult(exit ExitCondition, parameters, variables []string, values []float64, costValue float64, calls int, issue []float64) *Result {
	r := &Result{
		CostValue:             costValue,
		Parameters:            append([]string(nil), parameters...),
		Variables:             append([]string(nil), variables...),
		ParameterValues:       append([]float64(nil), values...),
		NumberOfFunctionCalls: calls,
		ExitCondition:         exit,
	}
	if issue != nil {
		r.IssueParameterValues = append([]float64(nil), issue...)
	}
	return r
}

// NumberOfVariables returns the number of free parameters.
func (r *Result) NumberOfVariables() int { return len(r.Variables) }

// Minimum returns the engine minimum the result was decoded from, or nil for
// premature results.
func (r *Result) Minimum() *engine.Minimum { return r.minimum }

// IsPremature reports whether the run was interrupted.
func (r *Result) IsPremature() bool { return r.minimum == nil }

// ParameterValue returns the value of the named parameter.
func (r *Result) ParameterValue(name string) (float64, bool) {
	for i, p := range r.Parameters {
		if p == name {
			return r.ParameterValues[i], true
		}
	}
	return 0, false
}

// IsVariable reports whether the named parameter was free.
func (r *Result) IsVariable(name string) bool {
	for _, v := range r.Variables {
		if v == name {
			return true
		}
	}
	return false
}

// CovarianceRows returns the covariance as a row slice, or nil.
func (r *Result) CovarianceRows() [][]float64 {
	if r.ParameterCovarianceMatrix == nil {
		return nil
	}
	n := r.ParameterCovarianceMatrix.SymmetricDim()
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = make([]float64, n)
		for j := range rows[i] {
			rows[i][j] = r.ParameterCovarianceMatrix.At(i, j)
		}
	}
	return rows
}
