package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV", "production")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 30*time.Second, cfg.HTTP.ReadTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "migrad", cfg.Fit.Minimizer)
	assert.Equal(t, "balanced", cfg.Fit.Strategy)
	assert.Equal(t, uint(0), cfg.Fit.MaximumFunctionCalls)
	assert.Equal(t, 0.1, cfg.Fit.Tolerance)
	assert.Equal(t, int64(4), cfg.Fit.MaxJobs)
	assert.Equal(t, 5*time.Minute, cfg.Fit.JobTimeout)
}

func TestLoadDevelopmentLogsDebug(t *testing.T) {
	t.Setenv("ENV", "development")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("FIT_MINIMIZER", "combined")
	t.Setenv("FIT_STRATEGY", "rigorous")
	t.Setenv("FIT_MAX_FUNCTION_CALLS", "5000")
	t.Setenv("FIT_TOLERANCE", "0.01")
	t.Setenv("FIT_JOB_TIMEOUT", "30s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, "combined", cfg.Fit.Minimizer)
	assert.Equal(t, "rigorous", cfg.Fit.Strategy)
	assert.Equal(t, uint(5000), cfg.Fit.MaximumFunctionCalls)
	assert.Equal(t, 0.01, cfg.Fit.Tolerance)
	assert.Equal(t, 30*time.Second, cfg.Fit.JobTimeout)
}

func TestLoadFileOverridesEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mnfit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  port: 7070
logging:
  level: warn
fit:
  minimizer: simplex
  max_jobs: 2
  job_timeout: 90s
`), 0o600))
	t.Setenv("FIT_CONFIG_FILE", path)
	t.Setenv("HTTP_PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.HTTP.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "simplex", cfg.Fit.Minimizer)
	assert.Equal(t, int64(2), cfg.Fit.MaxJobs)
	assert.Equal(t, 90*time.Second, cfg.Fit.JobTimeout)
	assert.Equal(t, "balanced", cfg.Fit.Strategy)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"unknown minimizer", "FIT_MINIMIZER", "gradient-descent"},
		{"unknown strategy", "FIT_STRATEGY", "thorough"},
		{"zero tolerance", "FIT_TOLERANCE", "0"},
		{"no jobs", "FIT_MAX_JOBS", "0"},
		{"port out of range", "HTTP_PORT", "70000"},
		{"unparsable duration", "FIT_JOB_TIMEOUT", "soon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("FIT_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	assert.Error(t, err)
}
