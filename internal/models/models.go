// Package models is the catalogue of model functions the service can fit.
// Every model comes with its analytical gradient and Hessian.
package models

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/copyleftdev/mnfit/internal/optimization"
	"github.com/copyleftdev/mnfit/internal/optimization/cost"
)

// ErrUnknownModel is returned by Lookup for names not in the catalogue.
var ErrUnknownModel = errors.New("unknown model")

// MaxDegree bounds the polynomial degree.
const MaxDegree = 10

// Model is a model function with parameter names and derivatives.
type Model struct {
	Name       string
	Parameters []string
	Value      cost.Model
	Gradient   cost.ModelGradient
	Hessian    cost.ModelHessian
}

// WithSuffix returns a copy of m whose parameter names carry suffix, so
// that several components of a sum keep separate parameters.
func (m *Model) WithSuffix(suffix string) *Model {
	if suffix == "" {
		return m
	}
	c := *m
	c.Parameters = make([]string, len(m.Parameters))
	for i, name := range m.Parameters {
		c.Parameters[i] = name + "_" + suffix
	}
	return &c
}

// Info describes a catalogue entry.
type Info struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Parameters  []string `json:"parameters"`
	// Degree is true for models whose parameters depend on a degree.
	Degree bool `json:"degree,omitempty"`
}

type entry struct {
	info  Info
	build func(degree int) (*Model, error)
}

var catalogue = map[string]entry{
	"polynomial": {
		info: Info{
			Name:        "polynomial",
			Description: "c0 + c1·x + … + cd·x^d",
			Parameters:  []string{"c0", "…", "cd"},
			Degree:      true,
		},
		build: polynomial,
	},
	"exponential": {
		info: Info{
			Name:        "exponential",
			Description: "a·exp(b·x)",
			Parameters:  []string{"a", "b"},
		},
		build: func(int) (*Model, error) { return exponential(), nil },
	},
	"gaussian": {
		info: Info{
			Name:        "gaussian",
			Description: "amplitude·exp(−(x − mean)² / (2·sigma²))",
			Parameters:  []string{"amplitude", "mean", "sigma"},
		},
		build: func(int) (*Model, error) { return gaussian(), nil },
	},
}

// Catalogue lists the models by name.
func Catalogue() []Info {
	out := make([]Info, 0, len(catalogue))
	for _, e := range catalogue {
		out = append(out, e.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup builds the named model. degree is only used by polynomials.
func Lookup(name string, degree int) (*Model, error) {
	e, ok := catalogue[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownModel, name)
	}
	return e.build(degree)
}

func polynomial(degree int) (*Model, error) {
	if degree < 0 || degree > MaxDegree {
		return nil, optimization.ConfigurationError("invalid model",
			optimization.NewErrorf("polynomial degree must be between 0 and %d, but is %d", MaxDegree, degree))
	}
	n := degree + 1
	parameters := make([]string, n)
	for i := range parameters {
		parameters[i] = fmt.Sprintf("c%d", i)
	}
	return &Model{
		Name:       "polynomial",
		Parameters: parameters,
		Value: func(x float64, p []float64) float64 {
			// Horner
			v := 0.0
			for i := len(p) - 1; i >= 0; i-- {
				v = v*x + p[i]
			}
			return v
		},
		Gradient: func(x float64, _ []float64) []float64 {
			g := make([]float64, n)
			power := 1.0
			for i := range g {
				g[i] = power
				power *= x
			}
			return g
		},
		Hessian: func(float64, []float64) []float64 {
			return make([]float64, n*n)
		},
	}, nil
}

func exponential() *Model {
	return &Model{
		Name:       "exponential",
		Parameters: []string{"a", "b"},
		Value: func(x float64, p []float64) float64 {
			return p[0] * math.Exp(p[1]*x)
		},
		Gradient: func(x float64, p []float64) []float64 {
			e := math.Exp(p[1] * x)
			return []float64{e, p[0] * x * e}
		},
		Hessian: func(x float64, p []float64) []float64 {
			e := math.Exp(p[1] * x)
			return []float64{
				0, x * e,
				x * e, p[0] * x * x * e,
			}
		},
	}
}

func gaussian() *Model {
	return &Model{
		Name:       "gaussian",
		Parameters: []string{"amplitude", "mean", "sigma"},
		Value: func(x float64, p []float64) float64 {
			u := x - p[1]
			return p[0] * math.Exp(-u*u/(2*p[2]*p[2]))
		},
		Gradient: func(x float64, p []float64) []float64 {
			a, u, s := p[0], x-p[1], p[2]
			e := math.Exp(-u * u / (2 * s * s))
			return []float64{e, a * e * u / (s * s), a * e * u * u / (s * s * s)}
		},
		Hessian: func(x float64, p []float64) []float64 {
			a, u, s := p[0], x-p[1], p[2]
			e := math.Exp(-u * u / (2 * s * s))
			s2, s3 := s*s, s*s*s
			am := e * u / s2
			as := e * u * u / s3
			mm := a * e * (u*u/(s2*s2) - 1/s2)
			ms := a * e * (u*u*u/(s3*s2) - 2*u/s3)
			ss := a * e * (u*u*u*u/(s3*s3) - 3*u*u/(s2*s2))
			return []float64{
				0, am, as,
				am, mm, ms,
				as, ms, ss,
			}
		},
	}
}
