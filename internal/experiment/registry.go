package experiment

import (
	"github.com/san-kum/gravsim/internal/body"
	"github.com/san-kum/gravsim/internal/compute"
	"github.com/san-kum/gravsim/internal/config"
	"github.com/san-kum/gravsim/internal/dynamo"
	"github.com/san-kum/gravsim/internal/integrators"
	"github.com/san-kum/gravsim/internal/metrics"
	"github.com/san-kum/gravsim/internal/models"
)

// Registry lists the names a config may refer to.
type Registry struct {
	Methods     []string
	Integrators []string
	Kinds       []string
	ForceModels []string
}

func NewRegistry() *Registry {
	return &Registry{
		Methods:     compute.Names(),
		Integrators: integrators.Names(),
		Kinds:       models.Kinds(),
		ForceModels: []string{"newton", "mond-simple", "mond-standard"},
	}
}

func Backend(cfg *config.Config) (compute.Backend, error) {
	opts, err := cfg.BackendOptions()
	if err != nil {
		return nil, err
	}
	return compute.ByName(cfg.Method, opts)
}

func Integrator(cfg *config.Config) (dynamo.Integrator, error) {
	return integrators.ByName(cfg.Integrator)
}

func Bodies(cfg *config.Config) (*body.Set, error) {
	return models.Generate(cfg.Init.Kind, cfg.Init.NumBodies, cfg.Seed, cfg.ModelParams())
}

// DefaultMetrics are attached to every run.
func DefaultMetrics(cfg *config.Config) []dynamo.Metric {
	g, _ := cfg.Constants()
	soft := cfg.Softening * cfg.Softening
	return []dynamo.Metric{
		metrics.NewEnergy(g, soft),
		metrics.NewEnergyDrift(g, soft),
		metrics.NewMomentumDrift(),
		metrics.NewStability(100 * cfg.Init.Radius),
	}
}
