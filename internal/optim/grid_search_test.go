package optim

import (
	"context"
	"errors"
	"testing"

	"github.com/san-kum/gravsim/internal/config"
	"github.com/san-kum/gravsim/internal/dynamo"
)

func TestGridSearchFindsMinimum(t *testing.T) {
	g, err := NewGridSearch([]string{"x", "y"}, [][]float64{{-1, 0, 1, 2}, {0, 3, 5}})
	if err != nil {
		t.Fatal(err)
	}
	if g.Size() != 12 {
		t.Errorf("size = %d", g.Size())
	}

	best, trials, err := g.Search(context.Background(), func(_ context.Context, p map[string]float64) (float64, error) {
		dx, dy := p["x"]-1, p["y"]-3
		return dx*dx + dy*dy, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(trials) != 12 {
		t.Errorf("expected 12 trials, got %d", len(trials))
	}
	if best.Params["x"] != 1 || best.Params["y"] != 3 || best.Score != 0 {
		t.Errorf("best = %+v", best)
	}
}

func TestGridSearchStopsOnError(t *testing.T) {
	g, _ := NewGridSearch([]string{"x"}, [][]float64{{1, 2, 3}})
	calls := 0
	boom := errors.New("boom")
	_, trials, err := g.Search(context.Background(), func(_ context.Context, p map[string]float64) (float64, error) {
		calls++
		if p["x"] == 2 {
			return 0, boom
		}
		return p["x"], nil
	})
	if !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
	if calls != 2 || len(trials) != 1 {
		t.Errorf("calls = %d, trials = %d", calls, len(trials))
	}
}

func TestGridSearchCanceled(t *testing.T) {
	g, _ := NewGridSearch([]string{"x"}, [][]float64{{1, 2}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := g.Search(ctx, func(context.Context, map[string]float64) (float64, error) {
		t.Error("objective called after cancel")
		return 0, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestNewGridSearchValidation(t *testing.T) {
	if _, err := NewGridSearch([]string{"x"}, nil); !errors.Is(err, dynamo.ErrParameterBounds) {
		t.Errorf("expected ErrParameterBounds, got %v", err)
	}
	if _, err := NewGridSearch([]string{"x"}, [][]float64{{}}); !errors.Is(err, dynamo.ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput, got %v", err)
	}
}

func TestMetricObjective(t *testing.T) {
	base := config.DefaultConfig()
	base.Steps = 5
	base.Init.NumBodies = 24
	base.Snapshot.Every = 0

	g, err := NewGridSearch([]string{"theta", "leaf_capacity"}, [][]float64{{0.3, 0.8}, {1, 8}})
	if err != nil {
		t.Fatal(err)
	}
	best, trials, err := g.Search(context.Background(), MetricObjective(base, "energy_drift", nil))
	if err != nil {
		t.Fatal(err)
	}
	if len(trials) != 4 {
		t.Fatalf("expected 4 trials, got %d", len(trials))
	}
	for _, tr := range trials {
		if tr.Score < best.Score {
			t.Errorf("trial %+v beats best %+v", tr, best)
		}
	}

	_, _, err = g.Search(context.Background(), MetricObjective(base, "flux", nil))
	if !errors.Is(err, dynamo.ErrParameterBounds) {
		t.Errorf("expected ErrParameterBounds for unknown metric, got %v", err)
	}

	bad, _ := NewGridSearch([]string{"mass"}, [][]float64{{1}})
	if _, _, err := bad.Search(context.Background(), MetricObjective(base, "energy_drift", nil)); !errors.Is(err, dynamo.ErrParameterBounds) {
		t.Errorf("expected ErrParameterBounds for unknown param, got %v", err)
	}
}
