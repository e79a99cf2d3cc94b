package optimization

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/mnfit/internal/optimization/engine"
	"github.com/copyleftdev/mnfit/internal/optimization/testutil"
)

func TestCovarianceFrom(t *testing.T) {
	tests := []struct {
		name     string
		packed   []float64
		extOfInt []int
		n        int
		want     *mat.SymDense
	}{
		{
			name:     "all variables",
			packed:   []float64{1, 2, 3},
			extOfInt: []int{0, 1},
			n:        2,
			want:     mat.NewSymDense(2, []float64{1, 2, 2, 3}),
		},
		{
			name:     "fixed parameter in between",
			packed:   []float64{1, 2, 3},
			extOfInt: []int{0, 2},
			n:        3,
			want: mat.NewSymDense(3, []float64{
				1, 0, 2,
				0, 0, 0,
				2, 0, 3,
			}),
		},
		{
			name:     "three variables out of four",
			packed:   []float64{1, 2, 3, 4, 5, 6},
			extOfInt: []int{1, 2, 3},
			n:        4,
			want: mat.NewSymDense(4, []float64{
				0, 0, 0, 0,
				0, 1, 2, 4,
				0, 2, 3, 5,
				0, 4, 5, 6,
			}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CovarianceFrom(tt.packed, tt.extOfInt, tt.n)
			testutil.AssertMatEqual(t, got, tt.want, 0)
		})
	}

	t.Run("nil packed", func(t *testing.T) {
		assert.Nil(t, CovarianceFrom(nil, []int{0}, 1))
	})
}

func TestNewResult(t *testing.T) {
	parameters := []string{"a", "b", "c"}
	base := func() *engine.Minimum {
		return &engine.Minimum{
			Values:             []float64{1, 2, 3},
			Fval:               4,
			EDM:                1e-6,
			Up:                 1,
			Covariance:         []float64{0.5, 0.1, 0.2},
			CovarianceAccurate: true,
			FunctionCalls:      42,
			ExtOfInt:           []int{2, 0},
		}
	}

	t.Run("converged", func(t *testing.T) {
		r := NewResult(base(), parameters, 8, 0.1)

		assert.Equal(t, Converged, r.ExitCondition)
		assert.True(t, r.IsValid)
		assert.Equal(t, 8.0, r.CostValue)
		assert.Equal(t, []string{"c", "a"}, r.Variables)
		assert.Equal(t, 2, r.NumberOfVariables())
		assert.Equal(t, []float64{1, 2, 3}, r.ParameterValues)
		assert.Equal(t, 42, r.NumberOfFunctionCalls)
		assert.False(t, r.IsPremature())
		assert.NotNil(t, r.Minimum())

		want := mat.NewSymDense(3, []float64{
			0.2, 0, 0.1,
			0, 0, 0,
			0.1, 0, 0.5,
		})
		testutil.AssertMatEqual(t, r.ParameterCovarianceMatrix, want, 0)
	})

	t.Run("edm decides convergence", func(t *testing.T) {
		m := base()
		m.EDM = engine.MaxEDM(0.1, 1)
		m.ReachedCallLimit = true
		r := NewResult(m, parameters, 8, 0.1)
		assert.Equal(t, FunctionCallsExhausted, r.ExitCondition)
		assert.False(t, r.IsValid)

		r = NewResult(m, parameters, 8, 1)
		assert.Equal(t, Converged, r.ExitCondition)
	})

	t.Run("none", func(t *testing.T) {
		m := base()
		m.EDM = 1
		m.AboveMaxEDM = true
		r := NewResult(m, parameters, 8, 0.1)
		assert.Equal(t, None, r.ExitCondition)
		assert.False(t, r.IsValid)
	})

	t.Run("no covariance", func(t *testing.T) {
		m := base()
		m.Covariance = nil
		r := NewResult(m, parameters, 8, 0.1)
		assert.Nil(t, r.ParameterCovarianceMatrix)
		assert.Nil(t, r.CovarianceRows())
	})

	t.Run("result does not alias inputs", func(t *testing.T) {
		names := append([]string(nil), parameters...)
		r := NewResult(base(), names, 8, 0.1)
		names[0] = "changed"
		assert.Equal(t, "a", r.Parameters[0])
	})
}

func TestNewPrematureResult(t *testing.T) {
	issue := []float64{1, math.NaN()}
	r := NewPrematureResult(NonFiniteGradient, []string{"a", "b"}, []string{"b"}, []float64{1, 2}, 3, 7, issue)

	assert.False(t, r.IsValid)
	assert.Nil(t, r.ParameterCovarianceMatrix)
	assert.Equal(t, NonFiniteGradient, r.ExitCondition)
	assert.Equal(t, 7, r.NumberOfFunctionCalls)
	assert.Equal(t, 3.0, r.CostValue)
	assert.True(t, r.IsPremature())
	assert.Nil(t, r.Minimum())
	require.Len(t, r.IssueParameterValues, 2)
	assert.True(t, math.IsNaN(r.IssueParameterValues[1]))

	v, ok := r.ParameterValue("b")
	assert.True(t, ok)
	assert.Equal(t, 2.0, v)
	_, ok = r.ParameterValue("z")
	assert.False(t, ok)
	assert.True(t, r.IsVariable("b"))
	assert.False(t, r.IsVariable("a"))
}

func TestExitCondition(t *testing.T) {
	tests := []struct {
		condition ExitCondition
		text      string
		premature bool
	}{
		{None, "none", false},
		{Converged, "converged", false},
		{FunctionCallsExhausted, "function_calls_exhausted", false},
		{ManuallyStopped, "manually_stopped", true},
		{NonFiniteValue, "non_finite_value", true},
		{NonFiniteGradient, "non_finite_gradient", true},
		{NonFiniteHessian, "non_finite_hessian", true},
		{NonFiniteHessianDiagonal, "non_finite_hessian_diagonal", true},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			text, err := tt.condition.MarshalText()
			require.NoError(t, err)
			assert.Equal(t, tt.text, string(text))
			assert.Equal(t, tt.premature, tt.condition.IsPremature())

			var parsed ExitCondition
			require.NoError(t, parsed.UnmarshalText(text))
			assert.Equal(t, tt.condition, parsed)
		})
	}

	var c ExitCondition
	assert.Error(t, c.UnmarshalText([]byte("bogus")))
}
