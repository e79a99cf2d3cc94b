// Package minimizer fits cost functions with the engine's minimizers. It
// validates the parameter configurations, checks the derivative contract,
// and turns engine minima or interrupted runs into results.
package minimizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/copyleftdev/mnfit/internal/optimization"
	"github.com/copyleftdev/mnfit/internal/optimization/cost"
	"github.com/copyleftdev/mnfit/internal/optimization/engine"
	"github.com/copyleftdev/mnfit/internal/optimization/params"
	"go.uber.org/zap"
)

// Kind selects the minimization algorithm.
type Kind int

const (
	Migrad Kind = iota
	Simplex
	Combined
)

var kindNames = [...]string{"migrad", "simplex", "combined"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind returns the kind with the given name, ignoring case.
func ParseKind(name string) (Kind, error) {
	for i, n := range kindNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return Kind(i), nil
		}
	}
	return 0, optimization.ConfigurationError("invalid minimizer configuration", optimization.NewErrorf("unknown minimizer %q", name))
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Minimizer minimizes cost functions with one algorithm. It keeps no state
// between calls and may be used concurrently.
type Minimizer struct {
	kind   Kind
	engine engine.Minimizer
	logger *zap.Logger
}

// Option configures a Minimizer.
type Option func(*Minimizer)

// WithLogger sets the logger for the minimizer and its engine.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Minimizer) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// New returns a minimizer of the given kind.
func New(kind Kind, opts ...Option) (*Minimizer, error) {
	m := &Minimizer{kind: kind, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	logger := m.logger.Named("engine")
	switch kind {
	case Migrad:
		m.engine = &engine.Migrad{Logger: logger}
	case Simplex:
		m.engine = &engine.Simplex{Logger: logger}
	case Combined:
		m.engine = &engine.Combined{Logger: logger}
	default:
		return nil, optimization.ConfigurationError("invalid minimizer",
			optimization.NewErrorf("unknown minimizer kind %d", int(kind)))
	}
	return m, nil
}

// Kind returns the algorithm of m.
func (m *Minimizer) Kind() Kind { return m.kind }

// Minimize minimizes f starting from configs, which must match the cost
// function parameters one to one in any order. A nil cfg selects the
// defaults.
//
// Configuration and derivative contract problems are returned as errors
// before any minimization. Faults during minimization, cancellation of ctx
// included, end the run with a premature result instead. A panic of the cost
// function is raised again on the calling goroutine.
func (m *Minimizer) Minimize(ctx context.Context, f cost.Function, configs []params.Configuration, cfg *optimization.MinimizerConfig) (*optimization.Result, error) {
	if f == nil {
		return nil, optimization.ConfigurationError("invalid minimization request",
			optimization.NewError("cost function must not be nil"))
	}
	cfg, err := resolve(cfg)
	if err != nil {
		return nil, err
	}
	ordered, err := params.OrderBy(configs, f.Parameters())
	if err != nil {
		return nil, err
	}
	initial := params.Values(ordered)
	if err := checkDerivativeSizes(f, initial); err != nil {
		return nil, err
	}

	a := newAdapter(ctx, f)
	minimum, err := m.engine.Minimize(a, params.ToEngineState(ordered), cfg.Strategy, cfg.MaximumFunctionCalls, cfg.Tolerance)
	a.repanic()

	var result *optimization.Result
	if fault := a.premature(); fault != nil {
		result = prematureResult(a, f, params.Variables(ordered), initial, 0)
	} else if err != nil {
		return nil, optimization.WrapErrorf(err, "%s minimization failed", m.kind).WithComponent("minimizer").WithOperation("minimize")
	} else {
		result = optimization.NewResult(minimum, f.Parameters(), costValue(f, minimum.Values), cfg.Tolerance)
	}

	m.logger.Debug("minimization finished",
		zap.Stringer("minimizer", m.kind),
		zap.Stringer("strategy", cfg.Strategy),
		zap.Stringer("exit_condition", result.ExitCondition),
		zap.Bool("valid", result.IsValid),
		zap.Int("function_calls", result.NumberOfFunctionCalls),
		zap.Float64("cost", result.CostValue),
	)
	return result, nil
}

func resolve(cfg *optimization.MinimizerConfig) (*optimization.MinimizerConfig, error) {
	if cfg == nil {
		defaults := optimization.DefaultMinimizerConfig()
		return &defaults, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// costValue evaluates f on its own scale; sums report the sum of their
// components' values.
func costValue(f cost.Function, p []float64) float64 {
	if composite, ok := f.(cost.Composite); ok {
		return composite.CompositeValueFor(p)
	}
	return f.ValueFor(p)
}

// prematureResult reports the run at the last attempted vector. previousCalls
// is added to the calls the adapter has seen.
func prematureResult(a *adapter, f cost.Function, variables []string, fallback []float64, previousCalls int) *optimization.Result {
	fault := a.premature()
	values := a.lastAttempt()
	if len(values) == 0 {
		values = fallback
	}
	return optimization.NewPrematureResult(
		fault.Condition,
		f.Parameters(),
		variables,
		values,
		costValue(f, values),
		previousCalls+a.numberOfCalls(),
		fault.Parameters,
	)
}
