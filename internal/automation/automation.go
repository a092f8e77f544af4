package automation

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/gravsim/internal/config"
	"github.com/san-kum/gravsim/internal/dynamo"
	"github.com/san-kum/gravsim/internal/experiment"
	"github.com/san-kum/gravsim/internal/sim"
	"github.com/san-kum/gravsim/internal/storage"
)

// Scenario defines a scripted sequence of runs
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Preset      string         `yaml:"preset"`
	Runs        []ScenarioStep `yaml:"runs"`
}

// ScenarioStep is a single run in a scenario. Config holds a partial
// configuration decoded over the step's (or the scenario's) preset.
type ScenarioStep struct {
	Preset string    `yaml:"preset"`
	Config yaml.Node `yaml:"config"`
	SaveAs string    `yaml:"save_as"`
}

// StepResult pairs a finished run with the id it was saved under, if any.
type StepResult struct {
	Name   string
	RunID  string
	Result *sim.Result
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(data)
}

func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, err
	}
	if len(scenario.Runs) == 0 {
		return nil, fmt.Errorf("%w: scenario %q has no runs", dynamo.ErrEmptyInput, scenario.Name)
	}
	return &scenario, nil
}

// StepConfig resolves the configuration for run i.
func (s *Scenario) StepConfig(i int) (*config.Config, error) {
	step := &s.Runs[i]

	name := step.Preset
	if name == "" {
		name = s.Preset
	}
	cfg := config.DefaultConfig()
	if name != "" {
		cfg = config.GetPreset(name)
		if cfg == nil {
			return nil, fmt.Errorf("%w: unknown preset %q", dynamo.ErrParameterBounds, name)
		}
	}
	if !step.Config.IsZero() {
		if err := step.Config.Decode(cfg); err != nil {
			return nil, fmt.Errorf("run %d: %w", i+1, err)
		}
	}
	if step.SaveAs != "" {
		cfg.Name = step.SaveAs
	}
	return cfg, nil
}

// RunScenario executes every run in order. Runs with save_as are persisted
// to st when st is non-nil. The first failing run stops the scenario.
func RunScenario(ctx context.Context, scenario *Scenario, st *storage.Store, logger *log.Logger) ([]StepResult, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	results := make([]StepResult, 0, len(scenario.Runs))

	for i := range scenario.Runs {
		cfg, err := scenario.StepConfig(i)
		if err != nil {
			return results, err
		}
		logger.Info("scenario run", "scenario", scenario.Name, "run", fmt.Sprintf("%d/%d", i+1, len(scenario.Runs)), "name", cfg.Name)

		exp, err := experiment.New(cfg, logger)
		if err != nil {
			return results, fmt.Errorf("run %d: %w", i+1, err)
		}
		if st != nil && scenario.Runs[i].SaveAs != "" {
			if err := exp.Attach(st); err != nil {
				return results, fmt.Errorf("run %d: %w", i+1, err)
			}
		}

		result, err := exp.Run(ctx)
		if err != nil {
			return results, fmt.Errorf("run %d: %w", i+1, err)
		}
		results = append(results, StepResult{Name: cfg.Name, RunID: exp.RunID(), Result: result})
	}
	return results, nil
}

// ParameterSweep varies one numeric config field across Values.
type ParameterSweep struct {
	Base   *config.Config
	Param  string
	Values []float64
}

type SweepResult struct {
	Value       float64
	EnergyDrift float64
	MsPerStep   float64
	Metrics     map[string]float64
}

var setters = map[string]func(c *config.Config, v float64){
	"theta":         func(c *config.Config, v float64) { c.Theta = v },
	"dt":            func(c *config.Config, v float64) { c.Dt = v },
	"softening":     func(c *config.Config, v float64) { c.Softening = v },
	"leaf_capacity": func(c *config.Config, v float64) { c.LeafCapacity = int(v) },
	"cube_refresh":  func(c *config.Config, v float64) { c.CubeRefresh = int(v) },
	"num_bodies":    func(c *config.Config, v float64) { c.Init.NumBodies = int(v) },
	"a0":            func(c *config.Config, v float64) { c.A0 = v },
}

// SweepParams lists the fields a ParameterSweep may vary.
func SweepParams() []string {
	names := make([]string, 0, len(setters))
	for name := range setters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Apply sets the named sweepable field of cfg.
func Apply(cfg *config.Config, param string, v float64) error {
	set, ok := setters[param]
	if !ok {
		return fmt.Errorf("%w: cannot sweep %q", dynamo.ErrParameterBounds, param)
	}
	set(cfg, v)
	return nil
}

// RunSweep runs one simulation per value, each from the same seed.
func RunSweep(ctx context.Context, sweep ParameterSweep, logger *log.Logger) ([]SweepResult, error) {
	if _, ok := setters[sweep.Param]; !ok {
		return nil, fmt.Errorf("%w: cannot sweep %q", dynamo.ErrParameterBounds, sweep.Param)
	}
	if len(sweep.Values) == 0 {
		return nil, fmt.Errorf("%w: no sweep values", dynamo.ErrEmptyInput)
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}

	results := make([]SweepResult, 0, len(sweep.Values))
	for _, v := range sweep.Values {
		cfg := sweep.Base.Clone()
		if err := Apply(cfg, sweep.Param, v); err != nil {
			return results, err
		}

		exp, err := experiment.New(cfg, logger)
		if err != nil {
			return results, fmt.Errorf("%s=%g: %w", sweep.Param, v, err)
		}
		result, err := exp.Run(ctx)
		if err != nil {
			return results, fmt.Errorf("%s=%g: %w", sweep.Param, v, err)
		}
		logger.Debug("sweep point", sweep.Param, v, "drift", result.EnergyDrift)

		results = append(results, SweepResult{
			Value:       v,
			EnergyDrift: result.EnergyDrift,
			MsPerStep:   result.MsPerStep(),
			Metrics:     result.Metrics,
		})
	}
	return results, nil
}
