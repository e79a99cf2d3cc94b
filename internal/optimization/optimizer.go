package optimization

import (
	"math"

	"github.com/copyleftdev/mnfit/internal/optimization/engine"
)

// MinimizerConfig contains configuration for a minimization run
type MinimizerConfig struct {
	// Strategy trades function calls for accuracy.
	Strategy engine.Strategy `json:"strategy" yaml:"strategy"`

	// MaximumFunctionCalls bounds the number of value evaluations.
	// Zero selects the engine default of 200+100n+5n² for n variables.
	MaximumFunctionCalls uint `json:"maximum_function_calls" yaml:"maximum_function_calls"`

	// Tolerance scales the EDM convergence target 2·0.001·Tolerance·Up.
	Tolerance float64 `json:"tolerance" yaml:"tolerance"`
}

// ParseStrategy converts a strategy name into an engine.Strategy. Unknown
// names yield a configuration error.
func ParseStrategy(name string) (engine.Strategy, error) {
	s, err := engine.ParseStrategy(name)
	if err != nil {
		return s, ConfigurationError("invalid minimizer configuration", NewErrorf("unknown strategy %q", name))
	}
	return s, nil
}

// DefaultMinimizerConfig returns a balanced configuration with the engine's
// default call budget and a tolerance of 0.1.
func DefaultMinimizerConfig() MinimizerConfig {
	return MinimizerConfig{
		Strategy:             engine.Balanced,
		MaximumFunctionCalls: 0,
		Tolerance:            0.1,
	}
}

// Validate checks that the configuration can be passed to the engine.
func (c MinimizerConfig) Validate() error {
	var causes []error
	if c.Strategy < engine.Fast || c.Strategy > engine.VeryRigorous {
		causes = append(causes, NewErrorf("unknown strategy %d", int(c.Strategy)))
	}
	if c.Tolerance <= 0 || math.IsNaN(c.Tolerance) || math.IsInf(c.Tolerance, 0) {
		causes = append(causes, NewErrorf("tolerance must be positive and finite, got %v", c.Tolerance))
	}
	return ConfigurationError("invalid minimizer configuration", causes...)
}
