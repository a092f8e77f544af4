package optim

import (
	"context"
	"fmt"
	"io"
	"math"

	"github.com/charmbracelet/log"

	"github.com/san-kum/gravsim/internal/automation"
	"github.com/san-kum/gravsim/internal/config"
	"github.com/san-kum/gravsim/internal/dynamo"
	"github.com/san-kum/gravsim/internal/experiment"
)

// Objective scores one parameter combination; lower is better.
type Objective func(ctx context.Context, params map[string]float64) (float64, error)

type Trial struct {
	Params map[string]float64
	Score  float64
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) (*GridSearch, error) {
	if len(params) == 0 || len(params) != len(ranges) {
		return nil, fmt.Errorf("%w: %d params with %d ranges", dynamo.ErrParameterBounds, len(params), len(ranges))
	}
	for i, r := range ranges {
		if len(r) == 0 {
			return nil, fmt.Errorf("%w: no values for %s", dynamo.ErrEmptyInput, params[i])
		}
	}
	return &GridSearch{paramNames: params, ranges: ranges}, nil
}

// Size is the number of combinations Search evaluates.
func (g *GridSearch) Size() int {
	n := 1
	for _, r := range g.ranges {
		n *= len(r)
	}
	return n
}

// Search evaluates every combination in row-major order and returns the
// best one along with all trials. Ties keep the earlier combination.
func (g *GridSearch) Search(ctx context.Context, objective Objective) (Trial, []Trial, error) {
	best := Trial{Score: math.Inf(1)}
	trials := make([]Trial, 0, g.Size())

	err := g.searchRecursive(ctx, 0, map[string]float64{}, objective, func(t Trial) {
		trials = append(trials, t)
		if t.Score < best.Score {
			best = t
		}
	})
	return best, trials, err
}

func (g *GridSearch) searchRecursive(ctx context.Context, depth int, current map[string]float64, objective Objective, record func(Trial)) error {
	if depth == len(g.paramNames) {
		if err := ctx.Err(); err != nil {
			return err
		}
		score, err := objective(ctx, current)
		if err != nil {
			return fmt.Errorf("%v: %w", current, err)
		}
		record(Trial{Params: current, Score: score})
		return nil
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64, len(current)+1)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		if err := g.searchRecursive(ctx, depth+1, newParams, objective, record); err != nil {
			return err
		}
	}
	return nil
}

// MetricObjective runs base with each combination applied and scores the
// named metric of the result. "ms_per_step" scores the run's speed.
func MetricObjective(base *config.Config, metric string, logger *log.Logger) Objective {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return func(ctx context.Context, params map[string]float64) (float64, error) {
		cfg := base.Clone()
		for name, v := range params {
			if err := automation.Apply(cfg, name, v); err != nil {
				return 0, err
			}
		}
		exp, err := experiment.New(cfg, logger)
		if err != nil {
			return 0, err
		}
		result, err := exp.Run(ctx)
		if err != nil {
			return 0, err
		}

		if metric == "ms_per_step" {
			return result.MsPerStep(), nil
		}
		score, ok := result.Metrics[metric]
		if !ok {
			return 0, fmt.Errorf("%w: run reports no metric %q", dynamo.ErrParameterBounds, metric)
		}
		logger.Debug("trial", "params", params, metric, score)
		return score, nil
	}
}
