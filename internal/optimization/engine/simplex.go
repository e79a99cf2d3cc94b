package engine

import (
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

// Simplex is the derivative-free minimizer built on gonum's Nelder-Mead.
// It never computes a covariance; its EDM is the spread of the objective
// over the most recent major iterations.
type Simplex struct {
	Logger *zap.Logger
}

// Name implements Minimizer.
func (s *Simplex) Name() string { return "simplex" }

// Minimize implements Minimizer.
func (s *Simplex) Minimize(fcn FCN, state []Parameter, strategy Strategy, maxCalls uint, tolerance float64) (*Minimum, error) {
	logger := nopIfNil(s.Logger).Named("simplex")
	t := newTransform(state)
	limit := int(maxCalls)
	if limit == 0 {
		limit = DefaultMaxCalls(t.variables())
	}
	o := newObjective(fcn, t, strategy, limit)
	u := t.internal(valuesOf(state))
	if t.variables() == 0 {
		return o.fixedMinimum(u)
	}
	maxEDM := MaxEDM(tolerance, fcn.Up())

	vertices, values := o.initialSimplex(u)
	if err := fcn.Err(); err != nil {
		return nil, err
	}
	spread := &spreadRecorder{window: t.variables() + 1}
	problem := optimize.Problem{Func: o.value, Status: o.status}
	settings := &optimize.Settings{
		Converger: &optimize.FunctionConverge{
			Absolute:   maxEDM,
			Iterations: 2 * (t.variables() + 1) * (int(strategy) + 1),
		},
		Recorder: spread,
	}
	method := &optimize.NelderMead{
		InitialVertices: vertices,
		InitialValues:   values,
		Reflection:      1.0,
		Expansion:       2.0,
		Contraction:     0.5,
		Shrink:          0.5,
	}
	res, _ := optimize.Minimize(problem, u, settings, method)
	if err := fcn.Err(); err != nil {
		return nil, err
	}

	best, fval := u, values[0]
	for i, v := range values {
		if v < fval {
			best, fval = vertices[i], v
		}
	}
	if res != nil && allFinite(res.X) && res.F <= fval {
		best, fval = res.X, res.F
	}
	x := t.external(best)
	minimum := &Minimum{
		State:            t.withValues(x),
		Values:           x,
		Fval:             fval,
		EDM:              spread.edm(),
		Up:               fcn.Up(),
		FunctionCalls:    int(o.calls.Load()),
		ReachedCallLimit: o.reachedCallLimit(),
		ExtOfInt:         append([]int(nil), t.extOfInt...),
	}
	minimum.AboveMaxEDM = minimum.EDM >= maxEDM
	logger.Debug("simplex finished",
		zap.Float64("fval", fval),
		zap.Float64("edm", minimum.EDM),
		zap.Int("calls", minimum.FunctionCalls),
	)
	return minimum, nil
}

// initialSimplex spans the simplex along each free parameter by its step.
func (o *objective) initialSimplex(u []float64) ([][]float64, []float64) {
	steps := o.t.internalSteps(u)
	n := len(u)
	vertices := make([][]float64, n+1)
	values := make([]float64, n+1)
	vertices[0] = append([]float64(nil), u...)
	values[0] = o.value(vertices[0])
	for k := 0; k < n; k++ {
		v := append([]float64(nil), u...)
		v[k] += steps[k]
		vertices[k+1] = v
		values[k+1] = o.value(v)
	}
	return vertices, values
}

// spreadRecorder keeps the objective values of the latest major iterations.
type spreadRecorder struct {
	window int
	recent []float64
}

func (r *spreadRecorder) Init() error {
	r.recent = r.recent[:0]
	return nil
}

func (r *spreadRecorder) Record(loc *optimize.Location, op optimize.Operation, _ *optimize.Stats) error {
	if op != optimize.MajorIteration || math.IsInf(loc.F, 0) || math.IsNaN(loc.F) {
		return nil
	}
	r.recent = append(r.recent, loc.F)
	if len(r.recent) > r.window {
		r.recent = r.recent[len(r.recent)-r.window:]
	}
	return nil
}

func (r *spreadRecorder) edm() float64 {
	if len(r.recent) < 2 {
		return math.Inf(1)
	}
	return floats.Max(r.recent) - floats.Min(r.recent)
}
