// Package config loads run settings from the environment and an optional
// .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"

	"github.com/cwbudde/curvefit/internal/fit"
	"github.com/cwbudde/curvefit/internal/opt"
)

// DefaultEnvFile is read when present
const DefaultEnvFile = ".env"

// Settings are the user-tunable knobs of a fit run. Command-line flags
// override these after loading.
type Settings struct {
	DataPath string `env:"CURVEFIT_DATA,default=xy_data.csv" validate:"required"`
	DataDir  string `env:"CURVEFIT_DATA_DIR,default=./data" validate:"required"`

	Global   string  `env:"CURVEFIT_GLOBAL,default=de" validate:"required,oneof=de mayfly"`
	Local    string  `env:"CURVEFIT_LOCAL,default=lbfgs" validate:"required,oneof=lbfgs lm"`
	Seed     int64   `env:"CURVEFIT_SEED,default=42"`
	MaxIter  int     `env:"CURVEFIT_MAXITER,default=400" validate:"min=1"`
	PopSize  int     `env:"CURVEFIT_POPSIZE,default=15" validate:"min=1"`
	Tol      float64 `env:"CURVEFIT_TOL,default=1e-6" validate:"gte=0"`
	Workers  int     `env:"CURVEFIT_WORKERS,default=1" validate:"min=1,max=256"`
	Patience int     `env:"CURVEFIT_PATIENCE,default=0" validate:"min=0"` // 0 disables stall detection

	LogLevel  string `env:"CURVEFIT_LOG_LEVEL,default=info" validate:"required,oneof=debug info warn error"`
	LogFormat string `env:"CURVEFIT_LOG_FORMAT,default=json" validate:"required,oneof=json text"`
}

// ValidationErrors collects the failed checks of a Settings value
type ValidationErrors struct {
	Errors []string `json:"errors"`
}

func (ve ValidationErrors) Error() string {
	if len(ve.Errors) == 0 {
		return "no validation errors"
	}
	return strings.Join(ve.Errors, "; ")
}

var goValidator = validator.New()

// Load reads envFile (if it exists) into the environment and decodes the
// CURVEFIT_* variables. Variables already set in the environment win over
// the file.
func Load(envFile string) (*Settings, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}

	var s Settings
	if err := envdecode.Decode(&s); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &s, nil
}

// Validate checks the settings against their constraints
func (s *Settings) Validate() error {
	if err := goValidator.Struct(s); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			out := ValidationErrors{}
			for _, e := range ve {
				out.Errors = append(out.Errors, fmt.Sprintf("%s %s", e.Field(), e.ActualTag()))
			}
			return out
		}
		return err
	}
	return nil
}

// FitConfig maps the settings onto the pipeline configuration
func (s *Settings) FitConfig() fit.Config {
	cfg := fit.DefaultConfig()
	cfg.Global = s.Global
	cfg.Local = s.Local

	cfg.DE.Seed = s.Seed
	cfg.DE.MaxIter = s.MaxIter
	cfg.DE.PopSize = s.PopSize
	cfg.DE.Tol = s.Tol
	cfg.DE.Workers = s.Workers
	if s.Patience > 0 {
		cfg.DE.Convergence = opt.DefaultConvergenceConfig()
		cfg.DE.Convergence.Patience = s.Patience
	}

	// mayfly shares the generation budget and population size of DE
	cfg.MayflyIters = s.MaxIter
	cfg.MayflyPop = s.PopSize * fit.NumParams

	return cfg
}
