package compute

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/gravsim/internal/bhtree"
	"github.com/san-kum/gravsim/internal/body"
	"github.com/san-kum/gravsim/internal/dynamo"
	"github.com/san-kum/gravsim/internal/gravity"
)

// BarnesHut rebuilds an octree from the body set every step and evaluates
// forces against it. A BarnesHut is owned by a single simulation loop.
type BarnesHut struct {
	opts Options
	eval *gravity.Evaluator

	cube    bhtree.Cube
	cubeAge int
	last    *bhtree.Tree
}

func NewBarnesHut(opts Options) *BarnesHut {
	return &BarnesHut{opts: opts, eval: gravity.NewEvaluator(opts.Params)}
}

func (b *BarnesHut) Name() string { return "barnes-hut" }

func (b *BarnesHut) Prepare(set *body.Set) (dynamo.AccelFunc, error) {
	positions := set.Positions()
	cube, err := b.boundingCube(positions)
	if err != nil {
		return nil, err
	}

	tree := bhtree.Build(bhtree.SourcesFromSet(set), cube, b.opts.LeafCapacity)
	b.last = tree

	eval := b.eval
	return func(id int, pos r3.Vec) r3.Vec {
		return eval.Accelerate(tree, pos, id)
	}, nil
}

// LastTree returns the tree built by the latest Prepare, or nil.
func (b *BarnesHut) LastTree() *bhtree.Tree { return b.last }

func (b *BarnesHut) boundingCube(positions []r3.Vec) (bhtree.Cube, error) {
	if len(positions) == 0 {
		return bhtree.Cube{}, dynamo.ErrEmptyInput
	}
	if b.cubeAge > 0 && b.cubeAge < b.opts.CubeRefresh && b.encloses(positions) {
		b.cubeAge++
		return b.cube, nil
	}

	cube, err := bhtree.CubeFromBodies(positions, b.opts.Pad, b.opts.ZOffset)
	if err != nil {
		return bhtree.Cube{}, err
	}
	b.cube = cube
	b.cubeAge = 1
	return cube, nil
}

func (b *BarnesHut) encloses(positions []r3.Vec) bool {
	for _, p := range positions {
		if !b.cube.Contains(p) {
			return false
		}
	}
	return true
}
