package automation

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/gravsim/internal/config"
	"github.com/san-kum/gravsim/internal/dynamo"
	"github.com/san-kum/gravsim/internal/storage"
)

const scenarioYAML = `
name: theta-compare
description: two thetas on a small cluster
preset: cluster
runs:
  - config:
      steps: 10
      theta: 0.3
      init:
        num_bodies: 40
    save_as: tight
  - config:
      steps: 10
      theta: 1.0
      method: direct
      init:
        num_bodies: 40
  - preset: binary
    config:
      steps: 5
    save_as: pair
`

func TestStepConfig(t *testing.T) {
	sc, err := ParseScenario([]byte(scenarioYAML))
	if err != nil {
		t.Fatal(err)
	}
	if len(sc.Runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(sc.Runs))
	}

	cfg, err := sc.StepConfig(0)
	if err != nil {
		t.Fatal(err)
	}
	cluster := config.GetPreset("cluster")
	if cfg.Theta != 0.3 || cfg.Steps != 10 || cfg.Name != "tight" {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.Init.NumBodies != 40 || cfg.Init.Kind != cluster.Init.Kind || cfg.LeafCapacity != cluster.LeafCapacity {
		t.Errorf("preset fields lost: %+v", cfg)
	}

	cfg, err = sc.StepConfig(2)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Init.Kind != "binary" || cfg.Steps != 5 || cfg.Name != "pair" {
		t.Errorf("step preset not used: %+v", cfg)
	}
}

func TestRunScenario(t *testing.T) {
	sc, err := ParseScenario([]byte(scenarioYAML))
	if err != nil {
		t.Fatal(err)
	}
	st := storage.New(t.TempDir())

	results, err := RunScenario(context.Background(), sc, st, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[1].RunID != "" {
		t.Error("run without save_as was persisted")
	}

	runs, err := st.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 saved runs, got %d", len(runs))
	}
	names := map[string]bool{}
	for _, r := range runs {
		names[r.Name] = true
	}
	if !names["tight"] || !names["pair"] {
		t.Errorf("saved runs = %v", names)
	}
}

func TestLoadScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	if err := os.WriteFile(path, []byte(scenarioYAML), 0644); err != nil {
		t.Fatal(err)
	}
	sc, err := LoadScenario(path)
	if err != nil {
		t.Fatal(err)
	}
	if sc.Name != "theta-compare" || sc.Preset != "cluster" {
		t.Errorf("scenario = %+v", sc)
	}

	if _, err := ParseScenario([]byte("name: empty\n")); !errors.Is(err, dynamo.ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput, got %v", err)
	}
}

func TestUnknownPreset(t *testing.T) {
	sc := &Scenario{Preset: "galaxy-merger", Runs: []ScenarioStep{{}}}
	if _, err := sc.StepConfig(0); !errors.Is(err, dynamo.ErrParameterBounds) {
		t.Errorf("expected ErrParameterBounds, got %v", err)
	}
}

func TestRunSweep(t *testing.T) {
	base := config.DefaultConfig()
	base.Steps = 10
	base.Init.NumBodies = 30
	base.Snapshot.Every = 0

	results, err := RunSweep(context.Background(), ParameterSweep{
		Base:   base,
		Param:  "leaf_capacity",
		Values: []float64{1, 4, 16},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for _, r := range results {
		if _, ok := r.Metrics["energy_drift"]; !ok {
			t.Errorf("value %g: no energy drift", r.Value)
		}
	}
	if base.LeafCapacity != config.DefaultLeafCapacity {
		t.Error("sweep mutated base config")
	}

	_, err = RunSweep(context.Background(), ParameterSweep{Base: base, Param: "mass", Values: []float64{1}}, nil)
	if !errors.Is(err, dynamo.ErrParameterBounds) {
		t.Errorf("expected ErrParameterBounds, got %v", err)
	}
}
