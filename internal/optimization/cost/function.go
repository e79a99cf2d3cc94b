// Package cost defines the objectives that are minimized: generic cost
// functions, least-squares variants and composite sums of independent
// components.
//
// All vectors passed to or returned from a Function are aligned with its
// Parameters. Functions are immutable; rescaling the error definition always
// returns a new value, so a Function can be shared between sequential
// minimizations.
package cost

import (
	"math"

	"github.com/copyleftdev/mnfit/internal/optimization"
)

// Function is an objective over a named parameter vector. Derivatives are
// optional capabilities advertised by the Has* methods; the corresponding
// methods must only be called when the capability is present.
type Function interface {
	Parameters() []string
	// ErrorDefinition is the change of the cost that corresponds to one
	// standard deviation of the parameters.
	ErrorDefinition() float64
	HasGradient() bool
	HasHessian() bool
	HasHessianDiagonal() bool
	ValueFor(p []float64) float64
	GradientFor(p []float64) []float64
	// HessianFor returns the row-major n×n matrix of second derivatives.
	HessianFor(p []float64) []float64
	HessianDiagonalFor(p []float64) []float64
	// WithErrorDefinitionRecalculatedBasedOnValid returns a function whose
	// error definition is calibrated on a valid minimization result. Functions
	// that do not calibrate return themselves.
	WithErrorDefinitionRecalculatedBasedOnValid(r *optimization.Result) Function
}

// Composite is a Function aggregated from independently scaled components.
// Its ErrorDefinition is 1 and its values are on that neutral scale;
// CompositeValueFor returns the aggregate on the components' own scales.
type Composite interface {
	Function
	CompositeValueFor(p []float64) float64
	Components() []Function
}

// Custom is a Function built from plain callbacks.
type Custom struct {
	parameters      []string
	errorDefinition float64
	value           func([]float64) float64
	gradient        func([]float64) []float64
	hessian         func([]float64) []float64
	hessianDiagonal func([]float64) []float64
}

// Option configures a Custom function.
type Option func(*Custom)

// WithGradient supplies the analytical gradient.
func WithGradient(gradient func([]float64) []float64) Option {
	return func(c *Custom) { c.gradient = gradient }
}

// WithHessian supplies the analytical row-major Hessian.
func WithHessian(hessian func([]float64) []float64) Option {
	return func(c *Custom) { c.hessian = hessian }
}

// WithHessianDiagonal supplies the diagonal of the analytical Hessian.
func WithHessianDiagonal(diagonal func([]float64) []float64) Option {
	return func(c *Custom) { c.hessianDiagonal = diagonal }
}

// WithErrorDefinition sets the error definition; the default is 1.
func WithErrorDefinition(errorDefinition float64) Option {
	return func(c *Custom) { c.errorDefinition = errorDefinition }
}

// New returns a Custom function over parameters.
func New(parameters []string, value func([]float64) float64, opts ...Option) (*Custom, error) {
	c := &Custom{
		parameters:      append([]string(nil), parameters...),
		errorDefinition: 1,
		value:           value,
	}
	for _, opt := range opts {
		opt(c)
	}

	var causes []error
	causes = append(causes, checkParameters(c.parameters)...)
	if value == nil {
		causes = append(causes, optimization.NewError("value function must not be nil"))
	}
	if err := checkErrorDefinition(c.errorDefinition); err != nil {
		causes = append(causes, err)
	}
	if err := optimization.ConfigurationError("invalid cost function", causes...); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Custom) Parameters() []string                     { return c.parameters }
func (c *Custom) ErrorDefinition() float64                 { return c.errorDefinition }
func (c *Custom) HasGradient() bool                        { return c.gradient != nil }
func (c *Custom) HasHessian() bool                         { return c.hessian != nil }
func (c *Custom) HasHessianDiagonal() bool                 { return c.hessianDiagonal != nil }
func (c *Custom) ValueFor(p []float64) float64             { return c.value(p) }
func (c *Custom) GradientFor(p []float64) []float64        { return c.gradient(p) }
func (c *Custom) HessianFor(p []float64) []float64         { return c.hessian(p) }
func (c *Custom) HessianDiagonalFor(p []float64) []float64 { return c.hessianDiagonal(p) }

// WithErrorDefinitionRecalculatedBasedOnValid returns c unchanged.
func (c *Custom) WithErrorDefinitionRecalculatedBasedOnValid(*optimization.Result) Function {
	return c
}

func checkParameters(parameters []string) []error {
	if len(parameters) == 0 {
		return []error{optimization.NewError("a cost function needs at least one parameter")}
	}
	var causes []error
	seen := make(map[string]bool, len(parameters))
	for _, name := range parameters {
		if name == "" {
			causes = append(causes, optimization.NewError("parameter names must not be empty"))
			continue
		}
		if seen[name] {
			causes = append(causes, optimization.NewErrorf("parameter %q is declared more than once", name))
		}
		seen[name] = true
	}
	return causes
}

func checkErrorDefinition(errorDefinition float64) error {
	if errorDefinition <= 0 || math.IsNaN(errorDefinition) || math.IsInf(errorDefinition, 0) {
		return optimization.NewErrorf("error definition must be positive and finite, got %v", errorDefinition)
	}
	return nil
}
