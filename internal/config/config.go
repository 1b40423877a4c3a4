// Package config loads and saves problem and solver presets as YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/nloc/internal/solver"
)

const (
	DefaultDt      = 0.02
	DefaultHorizon = 50
)

type Config struct {
	Model   string       `yaml:"model"` // double_integrator | pendulum | cartpole
	Dt      float64      `yaml:"dt"`
	Horizon int          `yaml:"horizon"`
	Init    []float64    `yaml:"init_state"`
	Goal    []float64    `yaml:"goal_state"`
	Weights WeightConfig `yaml:"weights"`
	Solver  SolverConfig `yaml:"solver"`
}

type WeightConfig struct {
	State    []float64 `yaml:"state"`
	Control  []float64 `yaml:"control"`
	Terminal []float64 `yaml:"terminal"`
}

type SolverConfig struct {
	MaxIterations        int       `yaml:"max_iterations"`
	CostToleranceAbs     float64   `yaml:"cost_tolerance_abs"`
	CostToleranceRel     float64   `yaml:"cost_tolerance_rel"`
	LineSearchSteps      []float64 `yaml:"line_search_steps"`
	ArmijoThreshold      float64   `yaml:"armijo_threshold"`
	RegularizationInit   float64   `yaml:"regularization_init"`
	RegularizationGrowth float64   `yaml:"regularization_growth"`
	RegularizationMax    float64   `yaml:"regularization_max"`
	LineSearchRetries    int       `yaml:"line_search_retries"`
	NumWorkers           int       `yaml:"num_workers"`
}

func Default() *Config {
	s := solver.Defaults()
	return &Config{
		Model:   "double_integrator",
		Dt:      DefaultDt,
		Horizon: DefaultHorizon,
		Init:    []float64{1, 0},
		Goal:    []float64{0, 0},
		Weights: WeightConfig{
			State:    []float64{1, 1},
			Control:  []float64{0.1},
			Terminal: []float64{10, 10},
		},
		Solver: SolverConfig{
			MaxIterations:        s.MaxIterations,
			CostToleranceAbs:     s.CostToleranceAbs,
			CostToleranceRel:     s.CostToleranceRel,
			LineSearchSteps:      s.LineSearchSteps,
			ArmijoThreshold:      s.ArmijoThreshold,
			RegularizationInit:   s.RegularizationInit,
			RegularizationGrowth: s.RegularizationGrowth,
			RegularizationMax:    s.RegularizationMax,
			LineSearchRetries:    s.LineSearchRetries,
			NumWorkers:           s.NumWorkers,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Settings converts the solver section into validated solver settings.
func (c *Config) Settings() solver.Settings {
	return solver.Settings{
		MaxIterations:        c.Solver.MaxIterations,
		CostToleranceAbs:     c.Solver.CostToleranceAbs,
		CostToleranceRel:     c.Solver.CostToleranceRel,
		LineSearchSteps:      c.Solver.LineSearchSteps,
		ArmijoThreshold:      c.Solver.ArmijoThreshold,
		RegularizationInit:   c.Solver.RegularizationInit,
		RegularizationGrowth: c.Solver.RegularizationGrowth,
		RegularizationMax:    c.Solver.RegularizationMax,
		LineSearchRetries:    c.Solver.LineSearchRetries,
		NumWorkers:           c.Solver.NumWorkers,
	}
}
