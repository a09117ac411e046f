// Package config loads toymna settings from defaults, an optional YAML file
// and TOYMNA_ environment variables, in increasing precedence.
package config

import (
	"fmt"
	"strings"

	"github.com/edp1096/toy-mna/pkg/matrix"
	"github.com/edp1096/toy-mna/pkg/solver"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const EnvPrefix = "TOYMNA"

type Config struct {
	LogLevel string       `mapstructure:"log_level" validate:"required,oneof=trace debug info warn error fatal panic"`
	Solver   SolverConfig `mapstructure:"solver" validate:"required"`
	Plot     PlotConfig   `mapstructure:"plot" validate:"required"`
	Sweep    SweepConfig  `mapstructure:"sweep"`
}

// SolverConfig tunes the Newton iteration of every time step.
type SolverConfig struct {
	MaxIter int     `mapstructure:"max_iter" validate:"required,gt=0"`
	AbsTol  float64 `mapstructure:"abstol" validate:"required,gt=0"`
	RelTol  float64 `mapstructure:"reltol" validate:"required,gt=0"`
	ResTol  float64 `mapstructure:"restol" validate:"required,gt=0"`
	Linear  string  `mapstructure:"linear" validate:"required,oneof=sparse dense"`
}

// PlotConfig sizes are in inches.
type PlotConfig struct {
	Width  float64 `mapstructure:"width" validate:"required,gt=0"`
	Height float64 `mapstructure:"height" validate:"required,gt=0"`
}

type SweepConfig struct {
	// Parallel limits concurrent sweep runs, 0 means unlimited.
	Parallel int `mapstructure:"parallel" validate:"gte=0"`
}

func setDefaults(v *viper.Viper) {
	def := solver.DefaultOptions()
	v.SetDefault("log_level", "info")
	v.SetDefault("solver.max_iter", def.MaxIter)
	v.SetDefault("solver.abstol", def.AbsTol)
	v.SetDefault("solver.reltol", def.RelTol)
	v.SetDefault("solver.restol", def.ResTol)
	v.SetDefault("solver.linear", "sparse")
	v.SetDefault("plot.width", 8.0)
	v.SetDefault("plot.height", 5.0)
	v.SetDefault("sweep.parallel", 4)
}

// Load reads the configuration. path may be empty to skip the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// SolverOptions converts the solver settings for circuit.SetOptions.
func (c *Config) SolverOptions() (solver.Options, error) {
	linear, err := matrix.NewSolver(c.Solver.Linear)
	if err != nil {
		return solver.Options{}, err
	}
	return solver.Options{
		MaxIter: c.Solver.MaxIter,
		AbsTol:  c.Solver.AbsTol,
		RelTol:  c.Solver.RelTol,
		ResTol:  c.Solver.ResTol,
		Linear:  linear,
	}, nil
}
