package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Started("migrad")
	m.Started("migrad")
	m.Started("simplex")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FitsStarted.WithLabelValues("migrad")))

	done := m.Running()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveFits))
	done()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ActiveFits))

	m.Finished("migrad", "completed", "converged", 120, 20*time.Millisecond)
	m.Finished("simplex", "failed", "", 0, time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FitsFinished.WithLabelValues("completed", "converged")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FitsFinished.WithLabelValues("failed", "none")))

	err := testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP mnfit_fits_active Fit jobs currently minimizing.
# TYPE mnfit_fits_active gauge
mnfit_fits_active 0
`), "mnfit_fits_active")
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(reg, "mnfit_fit_function_calls")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNewWithoutRegistry(t *testing.T) {
	m := New(nil)
	m.Started("combined")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FitsStarted.WithLabelValues("combined")))
}
