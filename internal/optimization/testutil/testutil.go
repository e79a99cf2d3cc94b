// Package testutil holds assertions and reference problems shared by the
// optimization package tests.
package testutil

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// AssertFloat64SlicesEqual checks if two float64 slices are approximately equal
func AssertFloat64SlicesEqual(t testing.TB, got, want []float64, tol float64) {
	t.Helper()

	require.Len(t, got, len(want), "length mismatch")
	for i := range got {
		if math.Abs(got[i]-want[i]) > tol {
			t.Fatalf("at index %d: got %v, want %v (tolerance %v)", i, got[i], want[i], tol)
		}
	}
}

// AssertMatEqual checks if two matrices are approximately equal
func AssertMatEqual(t testing.TB, got, want mat.Matrix, tol float64) {
	t.Helper()

	require.NotNil(t, got)
	require.NotNil(t, want)
	rg, cg := got.Dims()
	rw, cw := want.Dims()
	require.Equal(t, [2]int{rw, cw}, [2]int{rg, cg}, "matrix dimensions mismatch")

	for i := 0; i < rg; i++ {
		for j := 0; j < cg; j++ {
			g, w := got.At(i, j), want.At(i, j)
			if math.Abs(g-w) > tol {
				t.Fatalf("at (%d,%d): got %v, want %v (tolerance %v)", i, j, g, w, tol)
			}
		}
	}
}

// AssertMatRelEqual compares matrices entrywise with a tolerance relative to
// the largest absolute entry of want.
func AssertMatRelEqual(t testing.TB, got, want mat.Matrix, rel float64) {
	t.Helper()
	AssertMatEqual(t, got, want, rel*mat.Norm(want, math.Inf(1)))
}

// LinearFit is the closed-form weighted least-squares solution of a model
// that is linear in its parameters.
type LinearFit struct {
	Values     []float64
	Covariance *mat.SymDense
	ChiSquared float64
}

// SolveLinear fits y ≈ design·β with per-point standard deviations sigma.
// Row i of design holds the basis functions evaluated at point i.
func SolveLinear(t testing.TB, design [][]float64, y, sigma []float64) LinearFit {
	t.Helper()

	n, p := len(design), len(design[0])
	a := mat.NewDense(n, p, nil)
	b := mat.NewVecDense(n, nil)
	for i, row := range design {
		for j, v := range row {
			a.Set(i, j, v/sigma[i])
		}
		b.SetVec(i, y[i]/sigma[i])
	}

	var normal mat.SymDense
	normal.SymOuterK(1, a.T())
	var chol mat.Cholesky
	require.True(t, chol.Factorize(&normal), "normal matrix not positive definite")

	var rhs mat.VecDense
	rhs.MulVec(a.T(), b)
	var beta mat.VecDense
	require.NoError(t, chol.SolveVecTo(&beta, &rhs))

	cov := mat.NewSymDense(p, nil)
	require.NoError(t, chol.InverseTo(cov))

	var residual mat.VecDense
	residual.MulVec(a, &beta)
	residual.SubVec(b, &residual)

	return LinearFit{
		Values:     append([]float64(nil), beta.RawVector().Data...),
		Covariance: cov,
		ChiSquared: mat.Dot(&residual, &residual),
	}
}

// Embed places a variables×variables covariance into a size×size matrix at
// the given parameter positions.
func Embed(cov mat.Symmetric, positions []int, size int) *mat.SymDense {
	out := mat.NewSymDense(size, nil)
	for r, i := range positions {
		for c, j := range positions {
			out.SetSym(i, j, cov.At(r, c))
		}
	}
	return out
}
