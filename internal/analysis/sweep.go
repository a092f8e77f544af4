package analysis

import (
	"context"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/gravsim/internal/bhtree"
	"github.com/san-kum/gravsim/internal/body"
	"github.com/san-kum/gravsim/internal/dynamo"
	"github.com/san-kum/gravsim/internal/gravity"
)

type SweepPoint struct {
	Theta    float64
	RMSError float64
	MaxError float64
	// MeanFrontier is the average number of nodes evaluated per body.
	MeanFrontier float64
	Elapsed      time.Duration
}

// ThetaSweep measures the relative error of the Barnes-Hut acceleration
// against the direct sum for each θ. params.Theta is ignored. Results are
// sorted by θ.
func ThetaSweep(ctx context.Context, set *body.Set, thetas []float64, params gravity.Params, capacity int) ([]SweepPoint, error) {
	if set.Len() == 0 {
		return nil, dynamo.ErrEmptyInput
	}
	cube, err := bhtree.CubeFromBodies(set.Positions(), 0, false)
	if err != nil {
		return nil, err
	}
	sources := bhtree.SourcesFromSet(set)
	tree := bhtree.Build(sources, cube, capacity)

	direct := gravity.NewEvaluator(params)
	exact := make([]r3.Vec, len(sources))
	dynamo.ParallelFor(len(sources), 16, func(start, end int) {
		for i := start; i < end; i++ {
			exact[i] = direct.DirectSum(sources, sources[i].Pos, sources[i].ID)
		}
	})

	points := make([]SweepPoint, len(thetas))
	g, ctx := errgroup.WithContext(ctx)
	for k, theta := range thetas {
		k, theta := k, theta
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			points[k] = measure(tree, sources, exact, params, theta)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(points, func(i, j int) bool { return points[i].Theta < points[j].Theta })
	return points, nil
}

func measure(tree *bhtree.Tree, sources []bhtree.Source, exact []r3.Vec, params gravity.Params, theta float64) SweepPoint {
	params.Theta = theta
	eval := gravity.NewEvaluator(params)
	start := time.Now()

	sumSq, maxErr := 0.0, 0.0
	frontier := 0
	counted := 0
	var buf []int
	for i, s := range sources {
		buf = tree.AppendLeaves(buf[:0], s.Pos, s.ID, theta)
		frontier += len(buf)

		ref := r3.Norm(exact[i])
		if ref == 0 {
			continue
		}
		a := eval.Accelerate(tree, s.Pos, s.ID)
		rel := r3.Norm(r3.Sub(a, exact[i])) / ref
		sumSq += rel * rel
		maxErr = math.Max(maxErr, rel)
		counted++
	}

	p := SweepPoint{
		Theta:        theta,
		MaxError:     maxErr,
		MeanFrontier: float64(frontier) / float64(len(sources)),
		Elapsed:      time.Since(start),
	}
	if counted > 0 {
		p.RMSError = math.Sqrt(sumSq / float64(counted))
	}
	return p
}
