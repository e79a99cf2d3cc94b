package cost

import (
	"math"

	"github.com/copyleftdev/mnfit/internal/optimization"
)

// Model evaluates the fitted function at a single x.
type Model func(x float64, p []float64) float64

// ModelGradient returns the derivatives of a Model by each parameter.
type ModelGradient func(x float64, p []float64) []float64

// ModelHessian returns the row-major second derivatives of a Model.
type ModelHessian func(x float64, p []float64) []float64

// BatchModel evaluates the fitted function at all x at once.
type BatchModel func(x []float64, p []float64) []float64

// LeastSquaresFunction is the chi-squared Σ((yᵢ − model(xᵢ, p)) / σᵢ)².
type LeastSquaresFunction struct {
	parameters []string
	x, y       []float64
	sigma      []float64

	model    Model
	batch    BatchModel
	gradient ModelGradient
	hessian  ModelHessian

	gaussNewton  bool
	errorInSigma float64
	scaling      float64
	calibrates   bool
}

// LeastSquaresOption configures a LeastSquaresFunction.
type LeastSquaresOption func(*LeastSquaresFunction)

// WithModelGradient supplies the analytical model gradient, enabling the
// cost gradient.
func WithModelGradient(gradient ModelGradient) LeastSquaresOption {
	return func(f *LeastSquaresFunction) { f.gradient = gradient }
}

// WithModelHessian supplies the analytical model Hessian. Together with a
// model gradient it enables the exact cost Hessian.
func WithModelHessian(hessian ModelHessian) LeastSquaresOption {
	return func(f *LeastSquaresFunction) { f.hessian = hessian }
}

// WithGaussNewtonApproximation approximates the cost Hessian by 2·JᵀJ/σ²
// from the model gradient alone.
func WithGaussNewtonApproximation() LeastSquaresOption {
	return func(f *LeastSquaresFunction) { f.gaussNewton = true }
}

// WithErrorDefinitionInSigma sets the error definition to s², so that
// parameter errors correspond to s standard deviations.
func WithErrorDefinitionInSigma(s float64) LeastSquaresOption {
	return func(f *LeastSquaresFunction) { f.errorInSigma = s }
}

// LeastSquares returns a chi-squared cost with individual y-errors.
func LeastSquares(x, y, yErrors []float64, parameters []string, model Model, opts ...LeastSquaresOption) (*LeastSquaresFunction, error) {
	return newLeastSquares(x, y, yErrors, parameters, model, nil, false, opts)
}

// LeastSquaresWithUniformYError returns a chi-squared cost where every point
// has the same y-error.
func LeastSquaresWithUniformYError(x, y []float64, yError float64, parameters []string, model Model, opts ...LeastSquaresOption) (*LeastSquaresFunction, error) {
	return newLeastSquares(x, y, uniform(len(y), yError), parameters, model, nil, false, opts)
}

// LeastSquaresWithUnknownYError returns a sum of squared residuals whose
// error definition can be calibrated from the reduced chi-squared of a
// valid result.
func LeastSquaresWithUnknownYError(x, y []float64, parameters []string, model Model, opts ...LeastSquaresOption) (*LeastSquaresFunction, error) {
	return newLeastSquares(x, y, uniform(len(y), 1), parameters, model, nil, true, opts)
}

// LeastSquaresWithBatchModel returns a chi-squared cost over a model that
// evaluates all points in one call. A nil yErrors means unknown y-errors.
// Batch models provide no derivatives.
func LeastSquaresWithBatchModel(x, y, yErrors []float64, parameters []string, model BatchModel, opts ...LeastSquaresOption) (*LeastSquaresFunction, error) {
	calibrates := yErrors == nil
	if calibrates {
		yErrors = uniform(len(y), 1)
	}
	return newLeastSquares(x, y, yErrors, parameters, nil, model, calibrates, opts)
}

func newLeastSquares(x, y, sigma []float64, parameters []string, model Model, batch BatchModel, calibrates bool, opts []LeastSquaresOption) (*LeastSquaresFunction, error) {
	f := &LeastSquaresFunction{
		parameters:   append([]string(nil), parameters...),
		x:            append([]float64(nil), x...),
		y:            append([]float64(nil), y...),
		sigma:        append([]float64(nil), sigma...),
		model:        model,
		batch:        batch,
		errorInSigma: 1,
		scaling:      1,
		calibrates:   calibrates,
	}
	for _, opt := range opts {
		opt(f)
	}

	causes := checkParameters(f.parameters)
	causes = append(causes, checkDataPoints(named{"x", f.x}, named{"y", f.y}, named{"y errors", f.sigma})...)
	for i, s := range f.sigma {
		if s <= 0 || math.IsNaN(s) || math.IsInf(s, 0) {
			causes = append(causes, optimization.NewErrorf("y error %d must be positive and finite, got %v", i, s))
			break
		}
	}
	if model == nil && batch == nil {
		causes = append(causes, optimization.NewError("model must not be nil"))
	}
	if batch != nil && (f.gradient != nil || f.hessian != nil || f.gaussNewton) {
		causes = append(causes, optimization.NewError("batch models do not support derivatives"))
	}
	if err := checkErrorDefinition(f.ErrorDefinition()); err != nil {
		causes = append(causes, err)
	}
	if err := optimization.ConfigurationError("invalid least squares cost function", causes...); err != nil {
		return nil, err
	}
	return f, nil
}

func uniform(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func (f *LeastSquaresFunction) Parameters() []string { return f.parameters }

// ErrorDefinition is s² times the calibration factor, which is 1 until
// the function is recalculated on a result.
func (f *LeastSquaresFunction) ErrorDefinition() float64 {
	return f.errorInSigma * f.errorInSigma * f.scaling
}

func (f *LeastSquaresFunction) HasGradient() bool { return f.gradient != nil }

func (f *LeastSquaresFunction) HasHessian() bool {
	return f.gradient != nil && (f.hessian != nil || f.gaussNewton)
}

func (f *LeastSquaresFunction) HasHessianDiagonal() bool { return f.HasHessian() }

// NumberOfDataPoints returns the number of (x, y) pairs.
func (f *LeastSquaresFunction) NumberOfDataPoints() int { return len(f.x) }

// ValueFor returns the chi-squared at p.
func (f *LeastSquaresFunction) ValueFor(p []float64) float64 {
	var sum float64
	if f.batch != nil {
		predicted := f.batch(f.x, p)
		for i := range f.x {
			r := (f.y[i] - predicted[i]) / f.sigma[i]
			sum += r * r
		}
		return sum
	}
	for i := range f.x {
		r := f.residual(i, p)
		sum += r * r
	}
	return sum
}

// GradientFor returns Σ −2·rᵢ·∂model/∂p / σᵢ.
func (f *LeastSquaresFunction) GradientFor(p []float64) []float64 {
	g := make([]float64, len(f.parameters))
	for i := range f.x {
		factor := 2 * f.residual(i, p) / f.sigma[i]
		dm := f.gradient(f.x[i], p)
		for j := range g {
			g[j] -= factor * dm[j]
		}
	}
	return g
}

// HessianFor returns Σ 2(∂m∂mᵀ − rᵢσᵢ·∂²m)/σᵢ², dropping the second term
// under the Gauss-Newton approximation.
func (f *LeastSquaresFunction) HessianFor(p []float64) []float64 {
	n := len(f.parameters)
	h := make([]float64, n*n)
	for i := range f.x {
		s2 := f.sigma[i] * f.sigma[i]
		dm := f.gradient(f.x[i], p)
		var d2m []float64
		var r float64
		if !f.gaussNewton {
			d2m = f.hessian(f.x[i], p)
			r = f.residual(i, p) * f.sigma[i]
		}
		for j := 0; j < n; j++ {
			for k := 0; k < n; k++ {
				v := dm[j] * dm[k]
				if d2m != nil {
					v -= r * d2m[j*n+k]
				}
				h[j*n+k] += 2 * v / s2
			}
		}
	}
	return h
}

// HessianDiagonalFor returns the diagonal of HessianFor.
func (f *LeastSquaresFunction) HessianDiagonalFor(p []float64) []float64 {
	n := len(f.parameters)
	d := make([]float64, n)
	for i := range f.x {
		s2 := f.sigma[i] * f.sigma[i]
		dm := f.gradient(f.x[i], p)
		var d2m []float64
		var r float64
		if !f.gaussNewton {
			d2m = f.hessian(f.x[i], p)
			r = f.residual(i, p) * f.sigma[i]
		}
		for j := 0; j < n; j++ {
			v := dm[j] * dm[j]
			if d2m != nil {
				v -= r * d2m[j*n+j]
			}
			d[j] += 2 * v / s2
		}
	}
	return d
}

func (f *LeastSquaresFunction) residual(i int, p []float64) float64 {
	return (f.y[i] - f.model(f.x[i], p)) / f.sigma[i]
}
