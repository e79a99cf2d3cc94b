package cost

// component places a Function inside the parameter space of a sum. Values
// and derivatives are divided by the function's error definition.
type component struct {
	inner Function
	// indices[k] is the sum position of the k-th inner parameter.
	indices []int
	size    int
}

func newComponent(inner Function, positions map[string]int, size int) component {
	c := component{inner: inner, indices: make([]int, len(inner.Parameters())), size: size}
	for k, name := range inner.Parameters() {
		c.indices[k] = positions[name]
	}
	return c
}

// belonging gathers the inner function's parameters from a sum vector.
func (c component) belonging(v []float64) []float64 {
	p := make([]float64, len(c.indices))
	for k, i := range c.indices {
		p[k] = v[i]
	}
	return p
}

func (c component) value(v []float64) float64 {
	return c.inner.ValueFor(c.belonging(v)) / c.inner.ErrorDefinition()
}

func (c component) compositeValue(v []float64) float64 {
	if composite, ok := c.inner.(Composite); ok {
		return composite.CompositeValueFor(c.belonging(v))
	}
	return c.value(v) * c.inner.ErrorDefinition()
}

func (c component) addGradient(dst, v []float64) {
	g := c.inner.GradientFor(c.belonging(v))
	e := c.inner.ErrorDefinition()
	for k, i := range c.indices {
		dst[i] += g[k] / e
	}
}

func (c component) addHessian(dst, v []float64) {
	h := c.inner.HessianFor(c.belonging(v))
	e := c.inner.ErrorDefinition()
	m := len(c.indices)
	for k, i := range c.indices {
		for l, j := range c.indices {
			dst[i*c.size+j] += h[k*m+l] / e
		}
	}
}

func (c component) addHessianDiagonal(dst, v []float64) {
	d := c.inner.HessianDiagonalFor(c.belonging(v))
	e := c.inner.ErrorDefinition()
	for k, i := range c.indices {
		dst[i] += d[k] / e
	}
}
