package compute

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/gravsim/internal/bhtree"
	"github.com/san-kum/gravsim/internal/body"
	"github.com/san-kum/gravsim/internal/dynamo"
	"github.com/san-kum/gravsim/internal/gravity"
)

// Direct evaluates every pairwise interaction. It is the O(N²) reference
// the tree backend is measured against.
type Direct struct {
	eval *gravity.Evaluator
}

func NewDirect(p gravity.Params) *Direct {
	return &Direct{eval: gravity.NewEvaluator(p)}
}

func (d *Direct) Name() string { return "direct" }

func (d *Direct) Prepare(set *body.Set) (dynamo.AccelFunc, error) {
	if set.Len() == 0 {
		return nil, dynamo.ErrEmptyInput
	}
	sources := bhtree.SourcesFromSet(set)
	eval := d.eval
	return func(id int, pos r3.Vec) r3.Vec {
		return eval.DirectSum(sources, pos, id)
	}, nil
}

// Accelerations fills the acceleration of every body in set against the
// set itself, in parallel over bodies.
func Accelerations(b Backend, set *body.Set) ([]r3.Vec, error) {
	acc, err := b.Prepare(set)
	if err != nil {
		return nil, err
	}
	out := make([]r3.Vec, set.Len())
	dynamo.ParallelFor(set.Len(), 16, func(start, end int) {
		for i := start; i < end; i++ {
			bd := &set.Bodies[i]
			out[i] = acc(bd.ID, bd.Pos)
		}
	})
	return out, nil
}
