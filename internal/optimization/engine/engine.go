// Package engine is the minimization engine behind the fitting layer.
//
// It works on a flat vector of external parameter values, of which some may
// be fixed or limited. Limited parameters are minimized in an unbounded
// internal coordinate system; fixed parameters never reach the underlying
// gonum methods. Callers see the engine only through FCN, Parameter,
// Minimizer, Hesse and Minimum.
package engine

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Strategy trades function calls for accuracy of derivatives and covariance.
type Strategy int

const (
	// Fast uses forward differences and accepts the first converged run.
	Fast Strategy = iota
	// Balanced uses central differences and re-runs when EDM is too large.
	Balanced
	// Rigorous re-runs more often and uses smaller Hesse steps.
	Rigorous
	// VeryRigorous is Rigorous with the smallest Hesse steps.
	VeryRigorous
)

var strategyNames = map[Strategy]string{
	Fast:         "fast",
	Balanced:     "balanced",
	Rigorous:     "rigorous",
	VeryRigorous: "very_rigorous",
}

// String returns the lower-case name of the strategy.
func (s Strategy) String() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

// ErrUnknownStrategy is returned by ParseStrategy for unknown names.
var ErrUnknownStrategy = errors.New("unknown strategy")

// ParseStrategy converts a name such as "balanced" into a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
	for s, n := range strategyNames {
		if n == normalized {
			return s, nil
		}
	}
	return Balanced, fmt.Errorf("engine: %w %q", ErrUnknownStrategy, name)
}

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Strategy) UnmarshalText(text []byte) error {
	parsed, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Parameter is the engine-facing initial state of a single parameter.
// Lower and Upper are -Inf and +Inf when the parameter is not limited.
type Parameter struct {
	Name  string
	Value float64
	Step  float64
	Fixed bool
	Lower float64
	Upper float64
}

// HasLowerLimit reports whether the parameter is bounded from below.
func (p Parameter) HasLowerLimit() bool { return !math.IsInf(p.Lower, -1) && !math.IsNaN(p.Lower) }

// HasUpperLimit reports whether the parameter is bounded from above.
func (p Parameter) HasUpperLimit() bool { return !math.IsInf(p.Upper, 1) && !math.IsNaN(p.Upper) }

// FCN is the objective as seen by the engine. All vectors are external and
// full size, fixed parameters included.
type FCN interface {
	// Up is the objective change that defines one standard deviation.
	Up() float64
	Value(x []float64) float64
	HasGradient() bool
	Gradient(x []float64) []float64
	HasHessian() bool
	// Hessian returns the row-major n×n second derivative matrix.
	Hessian(x []float64) []float64
	HasHessianDiagonal() bool
	HessianDiagonal(x []float64) []float64
	// Err reports a condition that requires the engine to stop. Once it
	// returns non-nil it keeps doing so.
	Err() error
}

// Minimizer runs a complete minimization.
type Minimizer interface {
	Minimize(fcn FCN, state []Parameter, strategy Strategy, maxCalls uint, tolerance float64) (*Minimum, error)
	Name() string
}

// DefaultMaxCalls is the call budget used when none is configured.
func DefaultMaxCalls(variables int) int {
	return 200 + 100*variables + 5*variables*variables
}

// MaxEDM is the estimated distance to the minimum below which a run counts
// as converged.
func MaxEDM(tolerance, up float64) float64 {
	return 2 * 0.001 * tolerance * up
}
