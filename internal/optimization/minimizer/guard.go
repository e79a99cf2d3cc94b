package minimizer

import (
	"github.com/copyleftdev/mnfit/internal/optimization"
	"github.com/copyleftdev/mnfit/internal/optimization/cost"
)

// checkDerivativeSizes probes every derivative f provides once at p and
// reports all wrongly sized results together. Components of composites are
// probed first, at their share of p.
func checkDerivativeSizes(f cost.Function, p []float64) error {
	return optimization.DerivativeContractError("cost function derivatives are of incorrect size", derivativeSizeProblems(f, p)...)
}

func derivativeSizeProblems(f cost.Function, p []float64) []error {
	if composite, ok := f.(cost.Composite); ok {
		values := make(map[string]float64, len(p))
		for i, name := range f.Parameters() {
			values[name] = p[i]
		}
		var causes []error
		for _, c := range composite.Components() {
			own := make([]float64, len(c.Parameters()))
			for k, name := range c.Parameters() {
				own[k] = values[name]
			}
			causes = append(causes, derivativeSizeProblems(c, own)...)
		}
		if len(causes) > 0 {
			return causes
		}
	}

	n := len(f.Parameters())
	var causes []error
	if f.HasGradient() {
		if size := len(f.GradientFor(p)); size != n {
			causes = append(causes, optimization.NewErrorf(
				"Invalid gradient size: expected %d value(s) (one per parameter), but got %d.", n, size))
		}
	}
	if f.HasHessian() {
		if size := len(f.HessianFor(p)); size != n*n {
			causes = append(causes, optimization.NewErrorf(
				"Invalid Hessian size: expected %d value(s) (one per parameter pair), but got %d.", n*n, size))
		}
	}
	if f.HasHessianDiagonal() {
		if size := len(f.HessianDiagonalFor(p)); size != n {
			causes = append(causes, optimization.NewErrorf(
				"Invalid Hessian diagonal size: expected %d value(s) (one per parameter), but got %d.", n, size))
		}
	}
	return causes
}
