package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/gravsim/internal/compute"
	"github.com/san-kum/gravsim/internal/dynamo"
	"github.com/san-kum/gravsim/internal/gravity"
	"github.com/san-kum/gravsim/internal/models"
	"github.com/san-kum/gravsim/internal/sim"
)

const (
	DefaultSteps        = 1000
	DefaultDt           = 0.01
	DefaultTheta        = 0.5
	DefaultSoftening    = 0.01
	DefaultLeafCapacity = 1
	DefaultPad          = 1e-3
	DefaultBodies       = 1000
	DefaultSnapshot     = 10
)

// Galactic units are kpc, solar masses and Myr.
const (
	GalacticG  = 4.4984e-12
	GalacticA0 = 3.87e-3
)

type Config struct {
	Name         string         `yaml:"name"`
	Steps        int            `yaml:"steps"`
	Dt           float64        `yaml:"dt"`
	Theta        float64        `yaml:"theta"`
	Softening    float64        `yaml:"softening"`
	LeafCapacity int            `yaml:"leaf_capacity"`
	Pad          float64        `yaml:"pad"`
	ZOffset      bool           `yaml:"z_offset"`
	CubeRefresh  int            `yaml:"cube_refresh"`
	ForceModel   string         `yaml:"force_model"`
	Units        string         `yaml:"units"`
	G            float64        `yaml:"g,omitempty"`
	A0           float64        `yaml:"a0,omitempty"`
	Integrator   string         `yaml:"integrator"`
	Method       string         `yaml:"method"`
	Seed         int64          `yaml:"seed"`
	Init         InitConfig     `yaml:"init"`
	Snapshot     SnapshotConfig `yaml:"snapshot"`
}

type InitConfig struct {
	Kind         string  `yaml:"kind"`
	NumBodies    int     `yaml:"num_bodies"`
	Radius       float64 `yaml:"radius"`
	CentralMass  float64 `yaml:"central_mass"`
	Speed        float64 `yaml:"speed"`
	Eccentricity float64 `yaml:"eccentricity,omitempty"`
	Thickness    float64 `yaml:"thickness,omitempty"`
}

type SnapshotConfig struct {
	// Every is the step interval between position snapshots; 0 disables them.
	Every  int    `yaml:"every"`
	Format string `yaml:"format"`
}

func DefaultConfig() *Config {
	return &Config{
		Name:         "run",
		Steps:        DefaultSteps,
		Dt:           DefaultDt,
		Theta:        DefaultTheta,
		Softening:    DefaultSoftening,
		LeafCapacity: DefaultLeafCapacity,
		Pad:          DefaultPad,
		CubeRefresh:  1,
		ForceModel:   "newton",
		Units:        "natural",
		Integrator:   "rk4",
		Method:       "barnes-hut",
		Seed:         1,
		Init: InitConfig{
			Kind:      "sphere",
			NumBodies: DefaultBodies,
			Radius:    1.0,
			Speed:     1.0,
		},
		Snapshot: SnapshotConfig{
			Every:  DefaultSnapshot,
			Format: "csv",
		},
	}
}

// Load reads a YAML file over DefaultConfig, so absent keys keep their
// defaults.
func Load(path string) (*Config, error) {
	return LoadOver(path, DefaultConfig())
}

// LoadOver reads a YAML file over base, which it modifies and returns.
func LoadOver(path string, base *Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, base); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return base, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

func (c *Config) Validate() error {
	bad := func(format string, args ...interface{}) error {
		return fmt.Errorf("%w: "+format, append([]interface{}{dynamo.ErrParameterBounds}, args...)...)
	}
	switch {
	case c.Steps <= 0:
		return bad("steps must be positive, got %d", c.Steps)
	case c.Dt <= 0:
		return bad("dt must be positive, got %g", c.Dt)
	case c.Theta < 0:
		return bad("theta must be non-negative, got %g", c.Theta)
	case c.Softening < 0:
		return bad("softening must be non-negative, got %g", c.Softening)
	case c.LeafCapacity < 1:
		return bad("leaf_capacity must be at least 1, got %d", c.LeafCapacity)
	case c.Pad < 0:
		return bad("pad must be non-negative, got %g", c.Pad)
	case c.Init.NumBodies < 1:
		return bad("init.num_bodies must be positive, got %d", c.Init.NumBodies)
	case c.Snapshot.Every < 0:
		return bad("snapshot.every must be non-negative, got %d", c.Snapshot.Every)
	}
	if _, err := gravity.ParseForceModel(c.ForceModel); err != nil {
		return err
	}
	if _, _, err := unitConstants(c.Units); err != nil {
		return err
	}
	switch c.Snapshot.Format {
	case "", "csv", "sqlite":
	default:
		return bad("unknown snapshot format %q", c.Snapshot.Format)
	}
	return nil
}

func unitConstants(units string) (g, a0 float64, err error) {
	switch units {
	case "", "natural":
		return 1, 1, nil
	case "galactic":
		return GalacticG, GalacticA0, nil
	}
	return 0, 0, fmt.Errorf("%w: unknown units %q", dynamo.ErrParameterBounds, units)
}

// Constants returns G and a₀ for the configured units, with explicit g and
// a0 values taking precedence.
func (c *Config) Constants() (g, a0 float64) {
	g, a0, err := unitConstants(c.Units)
	if err != nil {
		g, a0 = 1, 1
	}
	if c.G != 0 {
		g = c.G
	}
	if c.A0 != 0 {
		a0 = c.A0
	}
	return g, a0
}

func (c *Config) GravityParams() (gravity.Params, error) {
	model, err := gravity.ParseForceModel(c.ForceModel)
	if err != nil {
		return gravity.Params{}, err
	}
	g, a0 := c.Constants()
	return gravity.Params{
		G:           g,
		Theta:       c.Theta,
		SofteningSq: c.Softening * c.Softening,
		A0:          a0,
		Model:       model,
	}, nil
}

func (c *Config) BackendOptions() (compute.Options, error) {
	p, err := c.GravityParams()
	if err != nil {
		return compute.Options{}, err
	}
	return compute.Options{
		Params:       p,
		LeafCapacity: c.LeafCapacity,
		Pad:          c.Pad,
		ZOffset:      c.ZOffset,
		CubeRefresh:  c.CubeRefresh,
	}, nil
}

func (c *Config) SimConfig() sim.Config {
	return sim.Config{
		Steps:         c.Steps,
		Dt:            c.Dt,
		ValidateState: true,
		MetricsEvery:  c.DiagnosticsEvery(),
	}
}

// DiagnosticsEvery is the step interval for energy and momentum
// diagnostics: the snapshot interval when snapshots are on, otherwise about
// a hundred samples per run.
func (c *Config) DiagnosticsEvery() int {
	if c.Snapshot.Every > 0 {
		return c.Snapshot.Every
	}
	return max(c.Steps/100, 1)
}

func (c *Config) ModelParams() models.Params {
	g, _ := c.Constants()
	return models.Params{
		Radius:       c.Init.Radius,
		CentralMass:  c.Init.CentralMass,
		Speed:        c.Init.Speed,
		G:            g,
		Eccentricity: c.Init.Eccentricity,
		Thickness:    c.Init.Thickness,
	}
}
