package cost

import "github.com/copyleftdev/mnfit/internal/optimization"

// SumFunction is the composite of independent cost functions. Its
// parameters are the union of the components' parameters in first-seen
// order; components sharing a name share the parameter.
type SumFunction struct {
	parameters []string
	components []component
}

// Sum combines components into one objective. Nested sums are flattened.
func Sum(components ...Function) (*SumFunction, error) {
	if len(components) == 0 {
		return nil, optimization.ConfigurationError("invalid cost function sum",
			optimization.NewError("a sum needs at least one component"))
	}

	var leaves []Function
	for _, c := range components {
		if c == nil {
			return nil, optimization.ConfigurationError("invalid cost function sum",
				optimization.NewError("components must not be nil"))
		}
		if s, ok := c.(*SumFunction); ok {
			leaves = append(leaves, s.Components()...)
			continue
		}
		leaves = append(leaves, c)
	}
	return newSum(leaves), nil
}

func newSum(leaves []Function) *SumFunction {
	s := &SumFunction{}
	positions := make(map[string]int)
	for _, leaf := range leaves {
		for _, name := range leaf.Parameters() {
			if _, ok := positions[name]; !ok {
				positions[name] = len(s.parameters)
				s.parameters = append(s.parameters, name)
			}
		}
	}
	s.components = make([]component, len(leaves))
	for i, leaf := range leaves {
		s.components[i] = newComponent(leaf, positions, len(s.parameters))
	}
	return s
}

func (s *SumFunction) Parameters() []string { return s.parameters }

// ErrorDefinition is 1; every component is already divided by its own.
func (s *SumFunction) ErrorDefinition() float64 { return 1 }

func (s *SumFunction) HasGradient() bool {
	return s.all(Function.HasGradient)
}

func (s *SumFunction) HasHessian() bool {
	return s.all(Function.HasHessian)
}

func (s *SumFunction) HasHessianDiagonal() bool {
	return s.all(Function.HasHessianDiagonal)
}

func (s *SumFunction) all(capability func(Function) bool) bool {
	for _, c := range s.components {
		if !capability(c.inner) {
			return false
		}
	}
	return true
}

// ValueFor returns the sum of the components' values, each divided by its
// error definition.
func (s *SumFunction) ValueFor(p []float64) float64 {
	var sum float64
	for _, c := range s.components {
		sum += c.value(p)
	}
	return sum
}

// CompositeValueFor returns the sum of the components' values on their own
// scales, which is the cost to report to users.
func (s *SumFunction) CompositeValueFor(p []float64) float64 {
	var sum float64
	for _, c := range s.components {
		sum += c.compositeValue(p)
	}
	return sum
}

func (s *SumFunction) GradientFor(p []float64) []float64 {
	g := make([]float64, len(s.parameters))
	for _, c := range s.components {
		c.addGradient(g, p)
	}
	return g
}

func (s *SumFunction) HessianFor(p []float64) []float64 {
	n := len(s.parameters)
	h := make([]float64, n*n)
	for _, c := range s.components {
		c.addHessian(h, p)
	}
	return h
}

func (s *SumFunction) HessianDiagonalFor(p []float64) []float64 {
	d := make([]float64, len(s.parameters))
	for _, c := range s.components {
		c.addHessianDiagonal(d, p)
	}
	return d
}

// Components returns the component functions in order.
func (s *SumFunction) Components() []Function {
	out := make([]Function, len(s.components))
	for i, c := range s.components {
		out[i] = c.inner
	}
	return out
}

// ComponentParameters returns, for component i, the values it sees of p.
func (s *SumFunction) ComponentParameters(i int, p []float64) []float64 {
	return s.components[i].belonging(p)
}

// WithErrorDefinitionRecalculatedBasedOnValid recalibrates every component on
// the same result and rebuilds the sum. Components that do not calibrate are
// kept as they are.
func (s *SumFunction) WithErrorDefinitionRecalculatedBasedOnValid(r *optimization.Result) Function {
	leaves := make([]Function, len(s.components))
	for i, c := range s.components {
		leaves[i] = c.inner.WithErrorDefinitionRecalculatedBasedOnValid(r)
	}
	return newSum(leaves)
}
