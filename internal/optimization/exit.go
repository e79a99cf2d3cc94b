package optimization

import "fmt"

// ExitCondition tells why a minimization ended.
type ExitCondition int

const (
	// None means the engine stopped without converging or hitting a limit.
	None ExitCondition = iota
	Converged
	FunctionCallsExhausted
	ManuallyStopped
	NonFiniteValue
	NonFiniteGradient
	NonFiniteHessian
	NonFiniteHessianDiagonal
)

var exitConditionNames = [...]string{
	None:                     "none",
	Converged:                "converged",
	FunctionCallsExhausted:   "function_calls_exhausted",
	ManuallyStopped:          "manually_stopped",
	NonFiniteValue:           "non_finite_value",
	NonFiniteGradient:        "non_finite_gradient",
	NonFiniteHessian:         "non_finite_hessian",
	NonFiniteHessianDiagonal: "non_finite_hessian_diagonal",
}

func (c ExitCondition) String() string {
	if c >= 0 && int(c) < len(exitConditionNames) {
		return exitConditionNames[c]
	}
	return fmt.Sprintf("exit_condition(%d)", int(c))
}

// IsPremature reports whether the condition interrupts a minimization.
func (c ExitCondition) IsPremature() bool {
	return c >= ManuallyStopped && int(c) < len(exitConditionNames)
}

// MarshalText implements encoding.TextMarshaler.
func (c ExitCondition) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *ExitCondition) UnmarshalText(text []byte) error {
	for i, name := range exitConditionNames {
		if name == string(text) {
			*c = ExitCondition(i)
			return nil
		}
	}
	return fmt.Errorf("unknown exit condition %q", text)
}

// PrematureExit describes a condition that stopped the engine before it
// finished. Parameters is the offending vector for non-finite conditions.
type PrematureExit struct {
	Condition  ExitCondition
	Parameters []float64
}

func (e *PrematureExit) Error() string {
	return fmt.Sprintf("minimization stopped prematurely: %s", e.Condition)
}
