package engine

import (
	"errors"
	"math"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/optimize"
)

// quadratic is Σ w_i (x_i − c_i)², whose covariance at Up = 1 is diag(1/w).
type quadratic struct {
	center, weight []float64
	gradient       bool
	hessian        bool
	failAfter      int64
	calls          atomic.Int64
	failed         atomic.Bool
}

var errStop = errors.New("stop requested")

func (q *quadratic) Up() float64 { return 1 }

func (q *quadratic) Value(x []float64) float64 {
	if n := q.calls.Add(1); q.failAfter > 0 && n >= q.failAfter {
		q.failed.Store(true)
	}
	var sum float64
	for i := range x {
		d := x[i] - q.center[i]
		sum += q.weight[i] * d * d
	}
	return sum
}

func (q *quadratic) HasGradient() bool { return q.gradient }

func (q *quadratic) Gradient(x []float64) []float64 {
	g := make([]float64, len(x))
	for i := range x {
		g[i] = 2 * q.weight[i] * (x[i] - q.center[i])
	}
	return g
}

func (q *quadratic) HasHessian() bool { return q.hessian }

func (q *quadratic) Hessian(x []float64) []float64 {
	n := len(x)
	h := make([]float64, n*n)
	for i := 0; i < n; i++ {
		h[i*n+i] = 2 * q.weight[i]
	}
	return h
}

func (q *quadratic) HasHessianDiagonal() bool { return false }

func (q *quadratic) HessianDiagonal(x []float64) []float64 { return nil }

func (q *quadratic) Err() error {
	if q.failed.Load() {
		return errStop
	}
	return nil
}

func free(name string, value float64) Parameter {
	return Parameter{Name: name, Value: value, Step: 0.1, Lower: math.Inf(-1), Upper: math.Inf(1)}
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		input   string
		want    Strategy
		wantErr bool
	}{
		{"fast", Fast, false},
		{"Balanced", Balanced, false},
		{" rigorous ", Rigorous, false},
		{"very-rigorous", VeryRigorous, false},
		{"very_rigorous", VeryRigorous, false},
		{"slow", Balanced, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseStrategy(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownStrategy)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			text, err := got.MarshalText()
			require.NoError(t, err)
			var back Strategy
			require.NoError(t, back.UnmarshalText(text))
			assert.Equal(t, got, back)
		})
	}
}

func TestPackedIndex(t *testing.T) {
	assert.Equal(t, 0, PackedIndex(0, 0))
	assert.Equal(t, 1, PackedIndex(1, 0))
	assert.Equal(t, 2, PackedIndex(1, 1))
	assert.Equal(t, 4, PackedIndex(2, 1))
	assert.Equal(t, PackedIndex(2, 1), PackedIndex(1, 2))
	assert.Equal(t, 9, PackedIndex(3, 3))
}

func TestDefaults(t *testing.T) {
	assert.Equal(t, 200, DefaultMaxCalls(0))
	assert.Equal(t, 200+400+80, DefaultMaxCalls(4))
	assert.InDelta(t, 2e-4, MaxEDM(0.1, 1), 1e-15)
}

func TestTransform(t *testing.T) {
	params := []Parameter{
		free("free", 3),
		{Name: "both", Value: 0.5, Lower: -1, Upper: 2},
		{Name: "lower", Value: 4, Lower: 1, Upper: math.Inf(1)},
		{Name: "upper", Value: -3, Lower: math.Inf(-1), Upper: 0},
		{Name: "fixed", Value: 7, Fixed: true, Lower: math.Inf(-1), Upper: math.Inf(1)},
	}
	tr := newTransform(params)
	require.Equal(t, 4, tr.variables())
	assert.Equal(t, []int{0, 1, 2, 3}, tr.extOfInt)
	assert.True(t, tr.limited())

	x := []float64{3, 0.5, 4, -3, 7}
	u := tr.internal(x)
	require.Len(t, u, 4)
	back := tr.external(u)
	for i := range x {
		assert.InDelta(t, x[i], back[i], 1e-12, "parameter %d", i)
	}

	const h = 1e-6
	d1 := tr.firstDerivatives(u)
	d2 := tr.secondDerivatives(u)
	for k := range u {
		up := append([]float64(nil), u...)
		down := append([]float64(nil), u...)
		up[k] += h
		down[k] -= h
		i := tr.extOfInt[k]
		xp, xm := tr.external(up)[i], tr.external(down)[i]
		assert.InDelta(t, (xp-xm)/(2*h), d1[k], 1e-6, "first derivative %d", k)
		assert.InDelta(t, (xp-2*x[i]+xm)/(h*h), d2[k], 1e-3, "second derivative %d", k)
	}

	steps := tr.internalSteps(u)
	assert.LessOrEqual(t, steps[1], 0.5)
	assert.Equal(t, params[0].Step, steps[0], "unlimited parameters keep their step")

	state := tr.withValues([]float64{1, 1, 2, -1, 7})
	assert.Equal(t, 1.0, state[0].Value)
	assert.Equal(t, 3.0, params[0].Value, "withValues must not modify its input")
}

func TestMinimizers(t *testing.T) {
	tests := []struct {
		name      string
		minimizer Minimizer
		gradient  bool
		hessian   bool
		wantCov   bool
		tol       float64
	}{
		{"migrad numerical", &Migrad{}, false, false, true, 1e-2},
		{"migrad gradient", &Migrad{}, true, false, true, 1e-2},
		{"migrad newton", &Migrad{}, true, true, true, 1e-2},
		{"simplex", &Simplex{}, false, false, false, 5e-2},
		{"combined", &Combined{}, true, false, true, 1e-2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &quadratic{
				center:   []float64{1, -2, 5},
				weight:   []float64{1, 4, 1},
				gradient: tt.gradient,
				hessian:  tt.hessian,
			}
			state := []Parameter{free("a", 0), free("b", 0), {Name: "c", Value: 3, Fixed: true, Lower: math.Inf(-1), Upper: math.Inf(1)}}

			m, err := tt.minimizer.Minimize(q, state, Balanced, 0, 0.1)
			require.NoError(t, err)
			require.NotNil(t, m)

			assert.InDelta(t, 1, m.Values[0], tt.tol)
			assert.InDelta(t, -2, m.Values[1], tt.tol)
			assert.Equal(t, 3.0, m.Values[2], "fixed parameter must not move")
			assert.Equal(t, []int{0, 1}, m.ExtOfInt)
			assert.Equal(t, 2, m.NumberOfVariables())
			assert.Positive(t, m.FunctionCalls)
			assert.False(t, m.ReachedCallLimit)
			assert.InDelta(t, 4, m.Fval, tt.tol)

			if !tt.wantCov {
				assert.False(t, m.HasCovariance())
				return
			}
			require.True(t, m.HasCovariance())
			assert.True(t, m.IsValid())
			assert.InDelta(t, 1, m.Covariance[PackedIndex(0, 0)], 1e-3)
			assert.InDelta(t, 0.25, m.Covariance[PackedIndex(1, 1)], 1e-3)
			assert.InDelta(t, 0, m.Covariance[PackedIndex(1, 0)], 1e-3)
		})
	}
}

func TestMigradWithLimits(t *testing.T) {
	q := &quadratic{center: []float64{1, 2}, weight: []float64{1, 1}, gradient: true}
	state := []Parameter{
		{Name: "a", Value: 0, Step: 0.1, Lower: -5, Upper: 5},
		{Name: "b", Value: 3, Step: 0.1, Lower: 0, Upper: math.Inf(1)},
	}

	m, err := (&Migrad{}).Minimize(q, state, Balanced, 0, 0.1)
	require.NoError(t, err)
	assert.InDelta(t, 1, m.Values[0], 1e-3)
	assert.InDelta(t, 2, m.Values[1], 1e-3)
	require.True(t, m.HasCovariance())
	assert.InDelta(t, 1, m.Covariance[PackedIndex(0, 0)], 1e-2)
	assert.InDelta(t, 1, m.Covariance[PackedIndex(1, 1)], 1e-2)
}

func TestMigradLimitAtBoundary(t *testing.T) {
	q := &quadratic{center: []float64{-1}, weight: []float64{1}}
	state := []Parameter{{Name: "a", Value: 1, Step: 0.1, Lower: 0, Upper: math.Inf(1)}}

	m, err := (&Combined{}).Minimize(q, state, Balanced, 0, 0.1)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, m.Values[0], 0.0)
	assert.Less(t, m.Values[0], 0.1)
}

func TestCallLimit(t *testing.T) {
	q := &quadratic{center: []float64{1, -2}, weight: []float64{1, 4}}
	state := []Parameter{free("a", 100), free("b", -100)}

	m, err := (&Migrad{}).Minimize(q, state, Balanced, 5, 0.1)
	require.NoError(t, err)
	assert.True(t, m.ReachedCallLimit)
	assert.False(t, m.IsValid())
}

func TestFaultStopsEngine(t *testing.T) {
	for _, minimizer := range []Minimizer{&Migrad{}, &Simplex{}, &Combined{}} {
		t.Run(minimizer.Name(), func(t *testing.T) {
			q := &quadratic{center: []float64{1, -2}, weight: []float64{1, 4}, failAfter: 10}
			state := []Parameter{free("a", 10), free("b", 10)}

			m, err := minimizer.Minimize(q, state, Balanced, 0, 0.1)
			assert.ErrorIs(t, err, errStop)
			assert.Nil(t, m)
			assert.GreaterOrEqual(t, q.calls.Load(), int64(10))
		})
	}
}

func TestAllFixed(t *testing.T) {
	q := &quadratic{center: []float64{1}, weight: []float64{1}}
	state := []Parameter{{Name: "a", Value: 3, Fixed: true, Lower: math.Inf(-1), Upper: math.Inf(1)}}

	m, err := (&Migrad{}).Minimize(q, state, Fast, 0, 0.1)
	require.NoError(t, err)
	assert.Equal(t, 0, m.NumberOfVariables())
	assert.Equal(t, 4.0, m.Fval)
	assert.Equal(t, 1, m.FunctionCalls)
	assert.True(t, m.IsValid())
}

func TestHesse(t *testing.T) {
	q := &quadratic{center: []float64{1, -2}, weight: []float64{1, 4}}
	state := []Parameter{free("a", 0), free("b", 0)}

	simplexMin, err := (&Simplex{}).Minimize(q, state, Balanced, 0, 0.1)
	require.NoError(t, err)
	require.False(t, simplexMin.HasCovariance())

	refined, err := Hesse(q, simplexMin, Rigorous, 0.1)
	require.NoError(t, err)
	require.True(t, refined.HasCovariance())
	assert.False(t, simplexMin.HasCovariance(), "Hesse must not modify its input")
	assert.Equal(t, simplexMin.Values, refined.Values)
	assert.Greater(t, refined.FunctionCalls, simplexMin.FunctionCalls)
	assert.InDelta(t, 1, refined.Covariance[PackedIndex(0, 0)], 1e-3)
	assert.InDelta(t, 0.25, refined.Covariance[PackedIndex(1, 1)], 1e-3)

	q.failAfter = q.calls.Load() + 1
	_, err = Hesse(q, simplexMin, Balanced, 0.1)
	assert.ErrorIs(t, err, errStop)
}

func TestSpreadRecorder(t *testing.T) {
	r := &spreadRecorder{window: 3}
	require.NoError(t, r.Init())
	assert.True(t, math.IsInf(r.edm(), 1))

	for _, f := range []float64{10, 5, 4, 3.5} {
		require.NoError(t, r.Record(&optimize.Location{F: f}, optimize.MajorIteration, nil))
	}
	assert.InDelta(t, 1.5, r.edm(), 1e-12)
}

func TestEDMConverger(t *testing.T) {
	tests := []struct {
		name string
		locs []optimize.Location
		want []optimize.Status
	}{
		{
			name: "stops below target",
			locs: []optimize.Location{
				{X: []float64{1}, F: 1, Gradient: []float64{2}},
				{X: []float64{0.5}, F: 0.25, Gradient: []float64{1}},
				{X: []float64{0.01}, F: 1e-4, Gradient: []float64{0.02}},
			},
			want: []optimize.Status{optimize.NotTerminated, optimize.NotTerminated, optimize.FunctionConvergence},
		},
		{
			name: "skips negative curvature",
			locs: []optimize.Location{
				{X: []float64{1}, F: 1, Gradient: []float64{2}},
				{X: []float64{0.5}, F: 0.5, Gradient: []float64{3}},
				{X: []float64{0.4}, F: 0.2, Gradient: []float64{4}},
			},
			want: []optimize.Status{optimize.NotTerminated, optimize.NotTerminated, optimize.NotTerminated},
		},
		{
			name: "falls back to stalling without gradient",
			locs: []optimize.Location{{X: []float64{1}, F: 1}, {X: []float64{1}, F: 1}, {X: []float64{1}, F: 1}},
			want: []optimize.Status{optimize.NotTerminated, optimize.NotTerminated, optimize.FunctionConvergence},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newEDMConverger(0.01, 2)
			c.Init(1)
			for i := range tt.locs {
				assert.Equal(t, tt.want[i], c.Converged(&tt.locs[i]), "location %d", i)
			}
		})
	}
}

func TestMigradNumericalGradientStaysInBudget(t *testing.T) {
	for _, strategy := range []Strategy{Balanced, Rigorous, VeryRigorous} {
		t.Run(strategy.String(), func(t *testing.T) {
			q := &quadratic{center: []float64{10, -2, 1, -0.1}, weight: []float64{0.25, 1, 4, 16}}
			state := []Parameter{free("d", 0), free("c", 1), free("a", 9), free("b", -1.5)}

			m, err := (&Migrad{}).Minimize(q, state, strategy, 0, 0.1)
			require.NoError(t, err)
			assert.False(t, m.ReachedCallLimit)
			assert.True(t, m.IsValid())
			assert.Less(t, m.FunctionCalls, DefaultMaxCalls(len(state)))
			assert.InDelta(t, 10, m.Values[0], 0.1)
			assert.InDelta(t, -2, m.Values[1], 0.05)
			assert.InDelta(t, 1, m.Values[2], 0.05)
			assert.InDelta(t, -0.1, m.Values[3], 0.05)
		})
	}
}

func TestErrorMatrixCallsDoNotExhaustBudget(t *testing.T) {
	q := &quadratic{center: []float64{1, -2}, weight: []float64{1, 4}}
	state := []Parameter{free("a", 1), free("b", -2)}
	tr := newTransform(state)
	o := newObjective(q, tr, Balanced, 10)
	o.calls.Store(9)

	u := tr.internal(valuesOf(state))
	m := o.minimumAt(u, 0, MaxEDM(0.1, q.Up()))
	assert.False(t, m.ReachedCallLimit)
	assert.Greater(t, m.FunctionCalls, 10)
	assert.True(t, m.IsValid())

	o.calls.Store(10)
	m = o.minimumAt(u, 0, MaxEDM(0.1, q.Up()))
	assert.True(t, m.ReachedCallLimit)
	assert.False(t, m.IsValid())
}
