package minimizer

import (
	"context"
	"errors"
	"math"
	"sync"

	"github.com/copyleftdev/mnfit/internal/optimization"
	"github.com/copyleftdev/mnfit/internal/optimization/cost"
)

var errEvaluationPanicked = errors.New("cost function panicked")

// adapter presents a cost.Function to the engine. It always reports an
// error definition of 1 and divides every output by the function's own
// error definition instead. Each callback first checks the context; faults
// and panics are recorded, after which callbacks no longer reach user code
// and Err tells the engine to stop.
type adapter struct {
	ctx             context.Context
	f               cost.Function
	errorDefinition float64
	size            int

	mu         sync.Mutex
	calls      int
	last       []float64
	fault      *optimization.PrematureExit
	panicked   bool
	panicValue interface{}
}

func newAdapter(ctx context.Context, f cost.Function) *adapter {
	if ctx == nil {
		ctx = context.Background()
	}
	return &adapter{
		ctx:             ctx,
		f:               f,
		errorDefinition: f.ErrorDefinition(),
		size:            len(f.Parameters()),
	}
}

func (a *adapter) Up() float64 { return 1 }

func (a *adapter) HasGradient() bool        { return a.f.HasGradient() }
func (a *adapter) HasHessian() bool         { return a.f.HasHessian() }
func (a *adapter) HasHessianDiagonal() bool { return a.f.HasHessianDiagonal() }

func (a *adapter) Value(x []float64) (v float64) {
	if !a.begin(x, true) {
		return math.Inf(1)
	}
	defer a.recoverInto(func() { v = math.Inf(1) })

	v = a.f.ValueFor(x) / a.errorDefinition
	if math.IsNaN(v) || math.IsInf(v, 0) {
		a.fail(optimization.NonFiniteValue, x)
	}
	return v
}

func (a *adapter) Gradient(x []float64) (g []float64) {
	if !a.begin(x, false) {
		return make([]float64, a.size)
	}
	defer a.recoverInto(func() { g = make([]float64, a.size) })

	return a.scaled(a.f.GradientFor(x), optimization.NonFiniteGradient, x)
}

func (a *adapter) Hessian(x []float64) (h []float64) {
	if !a.begin(x, false) {
		return make([]float64, a.size*a.size)
	}
	defer a.recoverInto(func() { h = make([]float64, a.size*a.size) })

	return a.scaled(a.f.HessianFor(x), optimization.NonFiniteHessian, x)
}

func (a *adapter) HessianDiagonal(x []float64) (d []float64) {
	if !a.begin(x, false) {
		return make([]float64, a.size)
	}
	defer a.recoverInto(func() { d = make([]float64, a.size) })

	return a.scaled(a.f.HessianDiagonalFor(x), optimization.NonFiniteHessianDiagonal, x)
}

// Err implements engine.FCN.
func (a *adapter) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.panicked {
		return errEvaluationPanicked
	}
	if a.fault != nil {
		return a.fault
	}
	return nil
}

// begin records an attempted evaluation. It returns false when user code
// must not be called, either because of an earlier fault or because the
// context is done.
func (a *adapter) begin(x []float64, counted bool) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fault != nil || a.panicked {
		return false
	}
	if counted {
		a.calls++
	}
	a.last = append(a.last[:0], x...)
	if a.ctx.Err() != nil {
		a.fault = &optimization.PrematureExit{Condition: optimization.ManuallyStopped}
		return false
	}
	return true
}

func (a *adapter) fail(condition optimization.ExitCondition, x []float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fault == nil {
		a.fault = &optimization.PrematureExit{
			Condition:  condition,
			Parameters: append([]float64(nil), x...),
		}
	}
}

// recoverInto captures a panic of user code so that it can be raised again
// on the caller's goroutine; reset replaces the callback's result.
func (a *adapter) recoverInto(reset func()) {
	r := recover()
	if r == nil {
		return
	}
	a.mu.Lock()
	if !a.panicked {
		a.panicked = true
		a.panicValue = r
	}
	a.mu.Unlock()
	reset()
}

func (a *adapter) scaled(values []float64, condition optimization.ExitCondition, x []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v / a.errorDefinition
		if math.IsNaN(out[i]) || math.IsInf(out[i], 0) {
			a.fail(condition, x)
			return make([]float64, len(values))
		}
	}
	return out
}

// repanic raises a captured user panic with its original value.
func (a *adapter) repanic() {
	a.mu.Lock()
	panicked, value := a.panicked, a.panicValue
	a.mu.Unlock()
	if panicked {
		panic(value)
	}
}

// premature returns the recorded fault, or nil.
func (a *adapter) premature() *optimization.PrematureExit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fault
}

func (a *adapter) lastAttempt() []float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]float64(nil), a.last...)
}

func (a *adapter) numberOfCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}
