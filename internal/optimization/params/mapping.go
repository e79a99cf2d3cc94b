package params

import (
	"fmt"

	"github.com/copyleftdev/mnfit/internal/optimization"
	"github.com/copyleftdev/mnfit/internal/optimization/engine"
)

// Validate checks that configs and costParameters match one to one by name.
// Every problem found becomes one cause of the returned configuration error.
// Any count mismatch implies at least one naming cause.
func Validate(configs []Configuration, costParameters []string) error {
	counts := make(map[string]int, len(configs))
	for _, c := range configs {
		counts[c.name]++
	}

	var causes []error
	known := make(map[string]bool, len(costParameters))
	for _, name := range costParameters {
		known[name] = true
		prefix := fmt.Sprintf("cost function parameter %q requires a unique match in the parameter configurations", name)
		switch n := counts[name]; {
		case n == 0:
			causes = append(causes, optimization.NewErrorf("%s, but there is none", prefix))
		case n > 1:
			causes = append(causes, optimization.NewErrorf("%s, but there are %d", prefix, n))
		}
	}
	for _, c := range configs {
		if !known[c.name] {
			causes = append(causes, optimization.NewErrorf("parameter configuration %q does not match any cost function parameter", c.name))
		}
	}
	return optimization.ConfigurationError("parameter configurations do not match the cost function", causes...)
}

// OrderBy validates configs and returns them in the order of costParameters.
func OrderBy(configs []Configuration, costParameters []string) ([]Configuration, error) {
	if err := Validate(configs, costParameters); err != nil {
		return nil, err
	}
	byName := make(map[string]Configuration, len(configs))
	for _, c := range configs {
		byName[c.name] = c
	}
	ordered := make([]Configuration, len(costParameters))
	for i, name := range costParameters {
		ordered[i] = byName[name]
	}
	return ordered, nil
}

// ToEngineState translates ordered configurations into the engine's initial
// state. The step of each parameter is one percent of its value.
func ToEngineState(ordered []Configuration) []engine.Parameter {
	state := make([]engine.Parameter, len(ordered))
	for i, c := range ordered {
		state[i] = c.engineParameter()
	}
	return state
}

// Values returns the initial values of ordered configurations.
func Values(ordered []Configuration) []float64 {
	values := make([]float64, len(ordered))
	for i, c := range ordered {
		values[i] = c.value
	}
	return values
}

// Variables returns the names of the configurations that are not fixed.
func Variables(ordered []Configuration) []string {
	var names []string
	for _, c := range ordered {
		if !c.fixed {
			names = append(names, c.name)
		}
	}
	return names
}
