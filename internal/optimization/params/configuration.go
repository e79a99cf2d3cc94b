// Package params describes the named parameters of a fit and maps them onto
// the positional parameter list of a cost function and the engine state.
package params

import (
	"fmt"
	"math"

	"github.com/copyleftdev/mnfit/internal/optimization"
	"github.com/copyleftdev/mnfit/internal/optimization/engine"
)

const (
	projectionOffset    = 0.1
	projectionTolerance = 0.001
)

// Configuration is the immutable initial state of one named parameter.
// The zero value is not usable; construct with Variable or Fixed.
type Configuration struct {
	name  string
	value float64
	fixed bool
	lower float64
	upper float64
}

// Option configures the limits of a variable configuration.
type Option func(*Configuration)

// WithLowerLimit bounds the parameter from below.
func WithLowerLimit(lower float64) Option {
	return func(c *Configuration) { c.lower = lower }
}

// WithUpperLimit bounds the parameter from above.
func WithUpperLimit(upper float64) Option {
	return func(c *Configuration) { c.upper = upper }
}

// WithLimits bounds the parameter from both sides.
func WithLimits(lower, upper float64) Option {
	return func(c *Configuration) {
		c.lower = lower
		c.upper = upper
	}
}

// Variable returns a free parameter. Limits must lie strictly on either side
// of value; infinite limits mean no limit.
func Variable(name string, value float64, opts ...Option) (Configuration, error) {
	c := Configuration{name: name, value: value, lower: math.Inf(-1), upper: math.Inf(1)}
	for _, opt := range opts {
		opt(&c)
	}
	if err := c.validate(); err != nil {
		return Configuration{}, err
	}
	return c, nil
}

// MustVariable is like Variable but panics on an invalid configuration.
func MustVariable(name string, value float64, opts ...Option) Configuration {
	c, err := Variable(name, value, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Fixed returns a parameter that keeps its value during minimization.
func Fixed(name string, value float64) Configuration {
	return Configuration{name: name, value: value, fixed: true, lower: math.Inf(-1), upper: math.Inf(1)}
}

func (c Configuration) Name() string   { return c.name }
func (c Configuration) Value() float64 { return c.value }
func (c Configuration) IsFixed() bool  { return c.fixed }

// LowerLimit returns the lower limit and whether there is one.
func (c Configuration) LowerLimit() (float64, bool) {
	return c.lower, !math.IsInf(c.lower, -1)
}

// UpperLimit returns the upper limit and whether there is one.
func (c Configuration) UpperLimit() (float64, bool) {
	return c.upper, !math.IsInf(c.upper, 1)
}

// WithSuffix returns a copy named "<name>_<suffix>".
func (c Configuration) WithSuffix(suffix string) Configuration {
	c.name = fmt.Sprintf("%s_%s", c.name, suffix)
	return c
}

// WithValue returns a copy with another initial value.
func (c Configuration) WithValue(value float64) (Configuration, error) {
	if c.fixed {
		return Fixed(c.name, value), nil
	}
	c.value = value
	if err := c.validate(); err != nil {
		return Configuration{}, err
	}
	return c, nil
}

// WithLimits returns a copy with other limits. A fixed configuration stays
// fixed and ignores them.
func (c Configuration) WithLimits(lower, upper float64) (Configuration, error) {
	if c.fixed {
		return c, nil
	}
	return Variable(c.name, c.value, WithLimits(lower, upper))
}

// AsFixed returns a fixed copy with the same name and value.
func (c Configuration) AsFixed() Configuration {
	return Fixed(c.name, c.value)
}

func (c Configuration) String() string {
	if c.fixed {
		return fmt.Sprintf("%s=%g (fixed)", c.name, c.value)
	}
	return fmt.Sprintf("%s=%g [%g, %g]", c.name, c.value, c.lower, c.upper)
}

func (c Configuration) validate() error {
	if math.IsNaN(c.value) || math.IsInf(c.value, 0) {
		return c.invalid(fmt.Sprintf("The value (%v) must be finite.", c.value))
	}
	if math.IsNaN(c.lower) || math.IsNaN(c.upper) {
		return c.invalid("Limits must not be NaN.")
	}
	if lower, ok := c.LowerLimit(); ok && lower >= c.value {
		detail := "both are equal."
		if c.value < lower {
			detail = "it is smaller."
		}
		return c.invalid(fmt.Sprintf("The value (%v) must be greater than the lower limit (%v), but %s", c.value, lower, detail))
	}
	if upper, ok := c.UpperLimit(); ok && upper <= c.value {
		detail := "both are equal."
		if c.value > upper {
			detail = "it is greater."
		}
		return c.invalid(fmt.Sprintf("The value (%v) must be smaller than the upper limit (%v), but %s", c.value, upper, detail))
	}
	return c.checkProjection()
}

// checkProjection rejects limits so wide relative to the value that the
// internal parameter transform loses the value in rounding.
func (c Configuration) checkProjection() error {
	probes := []float64{(1 - projectionOffset) * c.value, (1 + projectionOffset) * c.value}
	if c.value == 0 {
		probes = []float64{-projectionOffset, projectionOffset}
	}
	p := c.engineParameter()
	for _, probe := range probes {
		back := engine.RoundTrip(p, probe)
		if math.Abs((probe-back)/probe) > projectionTolerance {
			return c.invalid(fmt.Sprintf(
				"The combination of value (%v) and limits (%v, %v) leads to numerical instability in the internal "+
					"parameter projection. Reduce the limits relative to the value.", c.value, c.lower, c.upper))
		}
	}
	return nil
}

func (c Configuration) invalid(message string) error {
	cause := optimization.NewErrorf("parameter %q: %s", c.name, message)
	return optimization.ConfigurationError("invalid parameter configuration", cause)
}

func (c Configuration) engineParameter() engine.Parameter {
	step := math.Abs(c.value) * 0.01
	if step == 0 {
		step = 0.01
	}
	return engine.Parameter{
		Name:  c.name,
		Value: c.value,
		Step:  step,
		Fixed: c.fixed,
		Lower: c.lower,
		Upper: c.upper,
	}
}
