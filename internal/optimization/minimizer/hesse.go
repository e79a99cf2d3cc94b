package minimizer

import (
	"context"

	"github.com/copyleftdev/mnfit/internal/optimization"
	"github.com/copyleftdev/mnfit/internal/optimization/cost"
	"github.com/copyleftdev/mnfit/internal/optimization/engine"
	"go.uber.org/zap"
)

// Hesse recomputes the covariance of result at its parameter values using f,
// which must have the same parameters in the same order as the function that
// produced result. The minimum does not move. The returned result is new and
// counts the calls of both runs; result is left unchanged.
//
// Premature results are returned as they are. Faults during the refinement
// yield a premature result, as in Minimize.
func Hesse(ctx context.Context, result *optimization.Result, f cost.Function, cfg *optimization.MinimizerConfig, opts ...Option) (*optimization.Result, error) {
	if result == nil || f == nil {
		return nil, optimization.ConfigurationError("invalid Hesse request",
			optimization.NewError("result and cost function must not be nil"))
	}
	if err := checkSameParameters(result.Parameters, f.Parameters()); err != nil {
		return nil, err
	}
	if result.IsPremature() {
		return result, nil
	}
	cfg, err := resolve(cfg)
	if err != nil {
		return nil, err
	}
	m := &Minimizer{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	if err := checkDerivativeSizes(f, result.ParameterValues); err != nil {
		return nil, err
	}

	a := newAdapter(ctx, f)
	refined, err := engine.Hesse(a, result.Minimum(), cfg.Strategy, cfg.Tolerance)
	a.repanic()
	if a.premature() != nil {
		return prematureResult(a, f, result.Variables, result.ParameterValues, result.NumberOfFunctionCalls), nil
	}
	if err != nil {
		return nil, optimization.WrapError(err, "Hesse failed").WithComponent("minimizer").WithOperation("hesse")
	}

	out := optimization.NewResult(refined, f.Parameters(), costValue(f, refined.Values), cfg.Tolerance)
	m.logger.Debug("hesse finished",
		zap.Stringer("strategy", cfg.Strategy),
		zap.Bool("valid", out.IsValid),
		zap.Bool("hesse_failed", refined.HesseFailed),
		zap.Int("function_calls", out.NumberOfFunctionCalls),
	)
	return out, nil
}

func checkSameParameters(expected, actual []string) error {
	same := len(expected) == len(actual)
	for i := 0; same && i < len(expected); i++ {
		same = expected[i] == actual[i]
	}
	if same {
		return nil
	}
	return optimization.ConfigurationError("cost function does not match the result",
		optimization.NewErrorf("expected parameters %q in this order, but the cost function has %q", expected, actual))
}
