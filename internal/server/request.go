package server

import (
	stderrors "errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/copyleftdev/mnfit/internal/config"
	apierrors "github.com/copyleftdev/mnfit/internal/errors"
	"github.com/copyleftdev/mnfit/internal/models"
	"github.com/copyleftdev/mnfit/internal/optimization"
	"github.com/copyleftdev/mnfit/internal/optimization/cost"
	"github.com/copyleftdev/mnfit/internal/optimization/minimizer"
	"github.com/copyleftdev/mnfit/internal/optimization/params"
)

// FitRequest starts a fit job. Its components are summed into one cost
// function; components share a parameter when they use the same name.
type FitRequest struct {
	Minimizer            string  `json:"minimizer,omitempty" validate:"omitempty,oneof=migrad simplex combined"`
	Strategy             string  `json:"strategy,omitempty" validate:"omitempty,oneof=fast balanced rigorous very_rigorous"`
	MaximumFunctionCalls uint    `json:"max_function_calls,omitempty"`
	Tolerance            float64 `json:"tolerance,omitempty" validate:"omitempty,gt=0"`

	// AutoScaleErrors recalibrates components without y errors from the
	// reduced chi-squared of a valid result, followed by Hesse.
	AutoScaleErrors bool `json:"auto_scale_errors,omitempty"`
	// Hesse refines the covariance of the result.
	Hesse bool `json:"hesse,omitempty"`

	Components []ComponentRequest `json:"components" validate:"required,min=1,dive"`
	Parameters []ParameterRequest `json:"parameters" validate:"required,min=1,dive"`
}

// ComponentRequest is one least-squares dataset. Without y errors the
// errors are unknown and may be calibrated with AutoScaleErrors.
type ComponentRequest struct {
	Model  string `json:"model" validate:"required"`
	Degree int    `json:"degree,omitempty" validate:"gte=0"`
	// Suffix is appended to the model's parameter names.
	Suffix string `json:"suffix,omitempty" validate:"omitempty,alphanum"`

	X       []float64 `json:"x" validate:"required,min=1"`
	Y       []float64 `json:"y" validate:"required,min=1"`
	YErrors []float64 `json:"y_errors,omitempty"`
	YError  float64   `json:"y_error,omitempty" validate:"omitempty,gt=0"`

	ErrorDefinitionInSigma float64 `json:"error_definition_in_sigma,omitempty" validate:"omitempty,gt=0"`
	// Derivatives selects what the model provides to the minimizer.
	Derivatives string `json:"derivatives,omitempty" validate:"omitempty,oneof=none gradient gauss_newton hessian"`
}

// ParameterRequest configures one parameter.
type ParameterRequest struct {
	Name  string   `json:"name" validate:"required"`
	Value float64  `json:"value"`
	Fixed bool     `json:"fixed,omitempty"`
	Lower *float64 `json:"lower,omitempty"`
	Upper *float64 `json:"upper,omitempty"`
}

// fitPlan is a validated request.
type fitPlan struct {
	kind      minimizer.Kind
	cfg       optimization.MinimizerConfig
	cost      cost.Function
	configs   []params.Configuration
	autoScale bool
	hesse     bool
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// plan validates req against the defaults in fc and builds the cost
// function and parameter configurations.
func plan(req *FitRequest, fc config.FitConfig) (*fitPlan, error) {
	if err := validate.Struct(req); err != nil {
		return nil, validationError(err)
	}

	p := &fitPlan{autoScale: req.AutoScaleErrors, hesse: req.Hesse}

	name := firstNonEmpty(req.Minimizer, fc.Minimizer)
	kind, err := minimizer.ParseKind(name)
	if err != nil {
		return nil, apierrors.New(apierrors.CodeInvalidRequest, err.Error())
	}
	p.kind = kind

	strategy, err := optimization.ParseStrategy(firstNonEmpty(req.Strategy, fc.Strategy))
	if err != nil {
		return nil, apierrors.New(apierrors.CodeInvalidRequest, err.Error())
	}
	p.cfg = optimization.MinimizerConfig{
		Strategy:             strategy,
		MaximumFunctionCalls: fc.MaximumFunctionCalls,
		Tolerance:            fc.Tolerance,
	}
	if req.MaximumFunctionCalls > 0 {
		p.cfg.MaximumFunctionCalls = req.MaximumFunctionCalls
	}
	if req.Tolerance > 0 {
		p.cfg.Tolerance = req.Tolerance
	}

	points := 0
	for _, c := range req.Components {
		points += len(c.X)
	}
	if points > fc.MaxDataPoints {
		return nil, apierrors.Errorf(apierrors.CodeInvalidRequest,
			"a fit may use at most %d data points, but the request has %d", fc.MaxDataPoints, points)
	}

	components := make([]cost.Function, len(req.Components))
	for i := range req.Components {
		f, err := buildComponent(&req.Components[i])
		if err != nil {
			return nil, err
		}
		components[i] = f
	}
	if len(components) == 1 {
		p.cost = components[0]
	} else {
		sum, err := cost.Sum(components...)
		if err != nil {
			return nil, err
		}
		p.cost = sum
	}

	p.configs = make([]params.Configuration, len(req.Parameters))
	var problems []error
	for i, pr := range req.Parameters {
		c, err := pr.configuration()
		if err != nil {
			problems = append(problems, err)
			continue
		}
		p.configs[i] = c
	}
	if err := optimization.ConfigurationError("invalid parameters", problems...); err != nil {
		return nil, err
	}
	if err := params.Validate(p.configs, p.cost.Parameters()); err != nil {
		return nil, err
	}
	return p, nil
}

func buildComponent(c *ComponentRequest) (cost.Function, error) {
	model, err := models.Lookup(c.Model, c.Degree)
	if stderrors.Is(err, models.ErrUnknownModel) {
		return nil, apierrors.New(apierrors.CodeNotFound, err.Error()).
			WithDetails(fmt.Sprintf("known models: %s", knownModels()))
	}
	if err != nil {
		return nil, err
	}
	model = model.WithSuffix(c.Suffix)

	var opts []cost.LeastSquaresOption
	switch c.Derivatives {
	case "none":
	case "gauss_newton":
		opts = append(opts, cost.WithModelGradient(model.Gradient), cost.WithGaussNewtonApproximation())
	case "hessian":
		opts = append(opts, cost.WithModelGradient(model.Gradient), cost.WithModelHessian(model.Hessian))
	default:
		opts = append(opts, cost.WithModelGradient(model.Gradient))
	}
	if c.ErrorDefinitionInSigma > 0 {
		opts = append(opts, cost.WithErrorDefinitionInSigma(c.ErrorDefinitionInSigma))
	}

	switch {
	case len(c.YErrors) > 0:
		return cost.LeastSquares(c.X, c.Y, c.YErrors, model.Parameters, model.Value, opts...)
	case c.YError > 0:
		return cost.LeastSquaresWithUniformYError(c.X, c.Y, c.YError, model.Parameters, model.Value, opts...)
	default:
		return cost.LeastSquaresWithUnknownYError(c.X, c.Y, model.Parameters, model.Value, opts...)
	}
}

func (pr ParameterRequest) configuration() (params.Configuration, error) {
	if pr.Fixed {
		if math.IsNaN(pr.Value) || math.IsInf(pr.Value, 0) {
			return params.Configuration{}, optimization.NewErrorf("parameter %q: value must be finite", pr.Name)
		}
		return params.Fixed(pr.Name, pr.Value), nil
	}
	var opts []params.Option
	if pr.Lower != nil {
		opts = append(opts, params.WithLowerLimit(*pr.Lower))
	}
	if pr.Upper != nil {
		opts = append(opts, params.WithUpperLimit(*pr.Upper))
	}
	return params.Variable(pr.Name, pr.Value, opts...)
}

func validationError(err error) error {
	e := apierrors.New(apierrors.CodeInvalidRequest, "invalid fit request")
	var fields validator.ValidationErrors
	if stderrors.As(err, &fields) {
		for _, fe := range fields {
			e.WithDetails(fmt.Sprintf("%s: failed on the %q rule", fe.Namespace(), fe.Tag()))
		}
		return e
	}
	e.Err = err
	return e
}

func knownModels() string {
	var names []string
	for _, info := range models.Catalogue() {
		names = append(names, info.Name)
	}
	return strings.Join(names, ", ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
