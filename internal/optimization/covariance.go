package optimization

import (
	"github.com/copyleftdev/mnfit/internal/optimization/engine"
	"gonum.org/v1/gonum/mat"
)

// CovarianceFrom expands a packed lower-triangular variable covariance into a
// full n×n parameter covariance. extOfInt maps each variable index to its
// parameter index; entries involving fixed parameters stay zero. A nil
// packed slice yields nil.
func CovarianceFrom(packed []float64, extOfInt []int, n int) *mat.SymDense {
	if packed == nil {
		return nil
	}
	cov := mat.NewSymDense(n, nil)
	for r, i := range extOfInt {
		for c := 0; c <= r; c++ {
			cov.SetSym(i, extOfInt[c], packed[engine.PackedIndex(r, c)])
		}
	}
	return cov
}
