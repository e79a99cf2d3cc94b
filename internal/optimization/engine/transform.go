package engine

import "math"

// transform maps between the full external parameter vector and the
// internal vector of free parameters. Limited parameters use the sine
// transform for two-sided limits and the square-root transform for one-sided
// limits, so the internal coordinates are unbounded.
type transform struct {
	params   []Parameter
	extOfInt []int
}

func newTransform(params []Parameter) *transform {
	t := &transform{params: params}
	for i, p := range params {
		if !p.Fixed {
			t.extOfInt = append(t.extOfInt, i)
		}
	}
	return t
}

func (t *transform) variables() int { return len(t.extOfInt) }

// external expands an internal vector into a fresh external vector.
func (t *transform) external(u []float64) []float64 {
	x := make([]float64, len(t.params))
	for i, p := range t.params {
		x[i] = p.Value
	}
	for k, i := range t.extOfInt {
		x[i] = t.toExternal(t.params[i], u[k])
	}
	return x
}

// internal projects an external vector onto the free parameters.
func (t *transform) internal(x []float64) []float64 {
	u := make([]float64, len(t.extOfInt))
	for k, i := range t.extOfInt {
		u[k] = t.toInternal(t.params[i], x[i])
	}
	return u
}

func (t *transform) toExternal(p Parameter, u float64) float64 {
	switch {
	case p.HasLowerLimit() && p.HasUpperLimit():
		return p.Lower + 0.5*(p.Upper-p.Lower)*(math.Sin(u)+1)
	case p.HasLowerLimit():
		return p.Lower - 1 + math.Sqrt(u*u+1)
	case p.HasUpperLimit():
		return p.Upper + 1 - math.Sqrt(u*u+1)
	default:
		return u
	}
}

func (t *transform) toInternal(p Parameter, x float64) float64 {
	switch {
	case p.HasLowerLimit() && p.HasUpperLimit():
		s := 2*(x-p.Lower)/(p.Upper-p.Lower) - 1
		return math.Asin(math.Max(-1, math.Min(1, s)))
	case p.HasLowerLimit():
		d := x - p.Lower + 1
		return math.Sqrt(math.Max(0, d*d-1))
	case p.HasUpperLimit():
		d := p.Upper - x + 1
		return math.Sqrt(math.Max(0, d*d-1))
	default:
		return x
	}
}

// firstDerivatives returns dx/du for every free parameter.
func (t *transform) firstDerivatives(u []float64) []float64 {
	d := make([]float64, len(u))
	for k, i := range t.extOfInt {
		p := t.params[i]
		switch {
		case p.HasLowerLimit() && p.HasUpperLimit():
			d[k] = 0.5 * (p.Upper - p.Lower) * math.Cos(u[k])
		case p.HasLowerLimit():
			d[k] = u[k] / math.Sqrt(u[k]*u[k]+1)
		case p.HasUpperLimit():
			d[k] = -u[k] / math.Sqrt(u[k]*u[k]+1)
		default:
			d[k] = 1
		}
	}
	return d
}

// secondDerivatives returns d²x/du² for every free parameter.
func (t *transform) secondDerivatives(u []float64) []float64 {
	d := make([]float64, len(u))
	for k, i := range t.extOfInt {
		p := t.params[i]
		switch {
		case p.HasLowerLimit() && p.HasUpperLimit():
			d[k] = -0.5 * (p.Upper - p.Lower) * math.Sin(u[k])
		case p.HasLowerLimit():
			d[k] = 1 / math.Pow(u[k]*u[k]+1, 1.5)
		case p.HasUpperLimit():
			d[k] = -1 / math.Pow(u[k]*u[k]+1, 1.5)
		}
	}
	return d
}

func (t *transform) limited() bool {
	for _, i := range t.extOfInt {
		if t.params[i].HasLowerLimit() || t.params[i].HasUpperLimit() {
			return true
		}
	}
	return false
}

// internalSteps converts external step sizes into internal ones.
func (t *transform) internalSteps(u []float64) []float64 {
	d := t.firstDerivatives(u)
	steps := make([]float64, len(u))
	for k, i := range t.extOfInt {
		step := math.Abs(t.params[i].Step)
		if step == 0 {
			step = 0.01
		}
		if math.Abs(d[k]) > 1e-8 {
			step /= math.Abs(d[k])
		}
		if t.params[i].HasLowerLimit() && t.params[i].HasUpperLimit() {
			step = math.Min(step, 0.5)
		}
		steps[k] = step
	}
	return steps
}

// withValues returns a copy of the parameter state carrying the given
// external values.
func (t *transform) withValues(x []float64) []Parameter {
	out := append([]Parameter(nil), t.params...)
	for i := range out {
		out[i].Value = x[i]
	}
	return out
}

// RoundTrip maps an external value of p into internal coordinates and back.
// It returns NaN for values outside the limits of p.
func RoundTrip(p Parameter, x float64) float64 {
	if (p.HasLowerLimit() && x < p.Lower) || (p.HasUpperLimit() && x > p.Upper) {
		return math.NaN()
	}
	var t transform
	return t.toExternal(p, t.toInternal(p, x))
}
