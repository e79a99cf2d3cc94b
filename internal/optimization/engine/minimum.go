package engine

// Minimum is the raw outcome of a minimization or Hesse run.
type Minimum struct {
	// State holds the parameters with their values at the minimum.
	State []Parameter
	// Values is the best point in external coordinates, full size.
	Values []float64
	// Fval is the objective value at Values as seen by the engine.
	Fval float64
	// EDM is the estimated vertical distance to the minimum.
	EDM float64
	Up  float64
	// Covariance is the packed lower triangle of the variable covariance in
	// internal variable order, or nil when it was not computed.
	Covariance []float64
	// CovarianceAccurate is false when the Hessian had to be forced
	// positive definite.
	CovarianceAccurate bool
	FunctionCalls      int
	ReachedCallLimit   bool
	AboveMaxEDM        bool
	HesseFailed        bool
	// ExtOfInt maps a variable index to its parameter index.
	ExtOfInt []int
}

// IsValid reports whether the engine considers the minimum trustworthy.
func (m *Minimum) IsValid() bool {
	if m == nil {
		return false
	}
	if m.ReachedCallLimit || m.AboveMaxEDM || m.HesseFailed {
		return false
	}
	return m.Covariance == nil || m.CovarianceAccurate
}

// NumberOfVariables returns the number of free parameters.
func (m *Minimum) NumberOfVariables() int { return len(m.ExtOfInt) }

// HasCovariance reports whether a covariance was computed.
func (m *Minimum) HasCovariance() bool { return m != nil && m.Covariance != nil }

// clone returns a deep copy so Hesse never touches a minimum held by a result.
func (m *Minimum) clone() *Minimum {
	c := *m
	c.State = append([]Parameter(nil), m.State...)
	c.Values = append([]float64(nil), m.Values...)
	c.ExtOfInt = append([]int(nil), m.ExtOfInt...)
	if m.Covariance != nil {
		c.Covariance = append([]float64(nil), m.Covariance...)
	}
	return &c
}

// PackedIndex returns the position of (row, col) in a packed lower triangle.
func PackedIndex(row, col int) int {
	if col > row {
		row, col = col, row
	}
	return row*(row+1)/2 + col
}
