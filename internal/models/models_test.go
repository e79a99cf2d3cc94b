package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/mnfit/internal/optimization"
)

func TestCatalogue(t *testing.T) {
	var names []string
	for _, info := range Catalogue() {
		names = append(names, info.Name)
	}
	assert.Equal(t, []string{"exponential", "gaussian", "polynomial"}, names)
}

func TestLookup(t *testing.T) {
	m, err := Lookup("polynomial", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"c0", "c1", "c2", "c3"}, m.Parameters)
	assert.Equal(t, 1+2*2+3*4+4*8.0, m.Value(2, []float64{1, 2, 3, 4}))

	suffixed := m.WithSuffix("left")
	assert.Equal(t, []string{"c0_left", "c1_left", "c2_left", "c3_left"}, suffixed.Parameters)
	assert.Equal(t, []string{"c0", "c1", "c2", "c3"}, m.Parameters)
	assert.Same(t, m, m.WithSuffix(""))

	_, err = Lookup("spline", 0)
	assert.ErrorIs(t, err, ErrUnknownModel)

	_, err = Lookup("polynomial", MaxDegree+1)
	assert.ErrorIs(t, err, optimization.ErrConfiguration)
}

func TestDerivatives(t *testing.T) {
	tests := []struct {
		name   string
		degree int
		p      []float64
	}{
		{"polynomial", 2, []float64{1, -2, 0.5}},
		{"exponential", 0, []float64{2, -0.3}},
		{"gaussian", 0, []float64{3, 1.2, 0.8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Lookup(tt.name, tt.degree)
			require.NoError(t, err)
			n := len(m.Parameters)
			require.Len(t, tt.p, n)

			for _, x := range []float64{-1, 0, 0.7, 2.5} {
				f := func(p []float64) float64 { return m.Value(x, p) }

				want := fd.Gradient(nil, f, tt.p, &fd.Settings{Formula: fd.Central})
				assert.InDeltaSlice(t, want, m.Gradient(x, tt.p), 1e-6, "gradient at x=%v", x)

				var hessian mat.SymDense
				fd.Hessian(&hessian, f, tt.p, &fd.Settings{Formula: fd.Central, Step: 1e-4})
				got := m.Hessian(x, tt.p)
				require.Len(t, got, n*n)
				for i := 0; i < n; i++ {
					for j := 0; j < n; j++ {
						assert.InDelta(t, hessian.At(i, j), got[i*n+j], 1e-4, "hessian (%d,%d) at x=%v", i, j, x)
						assert.Equal(t, got[i*n+j], got[j*n+i])
					}
				}
			}
		})
	}
}
