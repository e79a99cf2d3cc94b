package engine

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// errorMatrix is the outcome of a Hesse evaluation in internal coordinates.
type errorMatrix struct {
	inverse  *mat.SymDense // inverse of the (possibly regularized) Hessian
	edm      float64
	accurate bool
	failed   bool
}

// minEigenRatio bounds the smallest eigenvalue relative to the largest when a
// Hessian has to be forced positive definite.
const minEigenRatio = 1e-9

func (o *objective) errorMatrixAt(u []float64) errorMatrix {
	h := o.hessian(u)
	if o.fcn.Err() != nil {
		return errorMatrix{failed: true}
	}
	g := make([]float64, len(u))
	o.gradient(g, u)
	if o.fcn.Err() != nil {
		return errorMatrix{failed: true}
	}
	if !allFinite(h.RawSymmetric().Data) || !allFinite(g) {
		return errorMatrix{failed: true}
	}

	em := errorMatrix{accurate: true}
	var chol mat.Cholesky
	if ok := chol.Factorize(h); ok {
		em.inverse = mat.NewSymDense(len(u), nil)
		if err := chol.InverseTo(em.inverse); err != nil {
			em.inverse = nil
		}
	}
	if em.inverse == nil {
		em.accurate = false
		em.inverse = forcedPositiveInverse(h)
		if em.inverse == nil {
			return errorMatrix{failed: true}
		}
	}

	var vg mat.VecDense
	vg.MulVec(em.inverse, mat.NewVecDense(len(g), g))
	em.edm = 0.5 * floats.Dot(g, vg.RawVector().Data)
	if em.edm < 0 {
		em.edm = math.Abs(em.edm)
	}
	return em
}

// forcedPositiveInverse inverts h after lifting its eigenvalues above a small
// fraction of the largest one. It returns nil when no eigenvalue is positive.
func forcedPositiveInverse(h *mat.SymDense) *mat.SymDense {
	var eig mat.EigenSym
	if ok := eig.Factorize(h, true); !ok {
		return nil
	}
	values := eig.Values(nil)
	largest := floats.Max(values)
	if largest <= 0 {
		return nil
	}
	floor := largest * minEigenRatio
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	n := len(values)
	inverse := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			var sum float64
			for k, lambda := range values {
				sum += vectors.At(i, k) * vectors.At(j, k) / math.Max(lambda, floor)
			}
			inverse.SetSym(i, j, sum)
		}
	}
	return inverse
}

// packedCovariance converts an inverse Hessian in internal coordinates into
// the packed external covariance 2·up·D·H⁻¹·D.
func (o *objective) packedCovariance(inverse *mat.SymDense, u []float64) []float64 {
	n := len(u)
	d := o.t.firstDerivatives(u)
	up := o.fcn.Up()
	packed := make([]float64, n*(n+1)/2)
	for r := 0; r < n; r++ {
		for c := 0; c <= r; c++ {
			packed[PackedIndex(r, c)] = 2 * up * d[r] * inverse.At(r, c) * d[c]
		}
	}
	return packed
}

func allFinite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
