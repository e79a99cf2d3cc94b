package testutil

// Cubic is a cubic polynomial least-squares problem generated from
// c = (10, -2, 1, -0.1) with normal noise of standard deviation 0.1.
var Cubic = struct {
	Parameters []string
	X          []float64
	Y          []float64
	YError     float64
	Initial    []float64
	Optimum    []float64
}{
	Parameters: []string{"c0", "c1", "c2", "c3"},
	X: []float64{
		0, 0.5, 1, 1.5, 2, 2.5, 3, 3.5, 4, 4.5, 5, 5.5, 6, 6.5, 7, 7.5, 8, 8.5, 9, 9.5,
	},
	Y: []float64{
		9.9, 9.2, 9.03, 8.93, 9.29, 9.75, 10.24, 11.02, 11.57, 12.11, 12.51, 12.46, 12.52, 11.72, 10.8, 9.08, 6.95,
		3.77, 0.07, -4.45,
	},
	YError:  0.1,
	Initial: []float64{10.75, -1.97, 1.13, -0.11},
	Optimum: []float64{9.97, -1.96, 0.99, -0.1},
}

// CubicModel evaluates c0 + c1·x + c2·x² + c3·x³.
func CubicModel(x float64, c []float64) float64 {
	return c[0] + c[1]*x + c[2]*x*x + c[3]*x*x*x
}

// CubicModelGradient returns the derivatives of CubicModel by c.
func CubicModelGradient(x float64, _ []float64) []float64 {
	return []float64{1, x, x * x, x * x * x}
}

// CubicDesign returns the basis functions of CubicModel at each x.
func CubicDesign(x []float64) [][]float64 {
	design := make([][]float64, len(x))
	for i, v := range x {
		design[i] = CubicModelGradient(v, nil)
	}
	return design
}

// Uniform returns n copies of v.
func Uniform(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
