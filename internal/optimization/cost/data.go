package cost

import "github.com/copyleftdev/mnfit/internal/optimization"

type named struct {
	name   string
	values []float64
}

// checkDataPoints reports every series whose length differs from the
// reference series.
func checkDataPoints(reference named, others ...named) []error {
	var causes []error
	for _, other := range others {
		if len(other.values) != len(reference.values) {
			causes = append(causes, optimization.NewErrorf(
				"%s and %s must have the same number of values, but found %d and %d, respectively",
				reference.name, other.name, len(reference.values), len(other.values)))
		}
	}
	if len(reference.values) == 0 {
		causes = append(causes, optimization.NewErrorf("%s must not be empty", reference.name))
	}
	return causes
}
