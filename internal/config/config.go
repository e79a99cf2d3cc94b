package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// HTTPConfig configures the listener.
type HTTPConfig struct {
	Port            int           `env:"HTTP_PORT" envDefault:"8080" yaml:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s" yaml:"read_timeout"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s" yaml:"write_timeout"`
	IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s" yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s" yaml:"shutdown_timeout"`
}

// LoggingConfig configures the service logger.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info" yaml:"level" validate:"omitempty,oneof=debug info warn error fatal DEBUG INFO WARN ERROR FATAL"`
	Format string `env:"LOG_FORMAT" envDefault:"json" yaml:"format" validate:"omitempty,oneof=json text console"`
	Output string `env:"LOG_OUTPUT" envDefault:"stderr" yaml:"output"`
}

// FitConfig holds the defaults of fit jobs. Requests may override the
// minimizer, strategy, call limit and tolerance.
type FitConfig struct {
	Minimizer            string        `env:"FIT_MINIMIZER" envDefault:"migrad" yaml:"minimizer" validate:"oneof=migrad simplex combined"`
	Strategy             string        `env:"FIT_STRATEGY" envDefault:"balanced" yaml:"strategy" validate:"oneof=fast balanced rigorous very_rigorous"`
	MaximumFunctionCalls uint          `env:"FIT_MAX_FUNCTION_CALLS" envDefault:"0" yaml:"max_function_calls"`
	Tolerance            float64       `env:"FIT_TOLERANCE" envDefault:"0.1" yaml:"tolerance" validate:"gt=0"`
	MaxJobs              int64         `env:"FIT_MAX_JOBS" envDefault:"4" yaml:"max_jobs" validate:"min=1"`
	JobTimeout           time.Duration `env:"FIT_JOB_TIMEOUT" envDefault:"5m" yaml:"job_timeout" validate:"gt=0"`
	MaxDataPoints        int           `env:"FIT_MAX_DATA_POINTS" envDefault:"100000" yaml:"max_data_points" validate:"min=1"`
}

type Config struct {
	Environment string        `env:"ENV" envDefault:"development" yaml:"environment"`
	HTTP        HTTPConfig    `yaml:"http"`
	Logging     LoggingConfig `yaml:"logging"`
	Fit         FitConfig     `yaml:"fit"`

	// File is the optional YAML file read over the environment defaults.
	File string `env:"FIT_CONFIG_FILE" yaml:"-"`
}

// Load reads the configuration from the environment. When FIT_CONFIG_FILE
// names a YAML file, its values take precedence over the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if cfg.File != "" {
		if err := cfg.overlay(cfg.File); err != nil {
			return nil, err
		}
	}

	// Verbose logs by default while developing
	if cfg.Environment == "development" && os.Getenv("LOG_LEVEL") == "" && cfg.File == "" {
		cfg.Logging.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) overlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

var validate = validator.New()

// Validate checks the field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
