package gravity

import (
	"sync"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/gravsim/internal/bhtree"
	"github.com/san-kum/gravsim/internal/dynamo"
)

// ParallelReduceMin is the frontier size from which node contributions are
// summed with a fork-join reduction instead of a plain loop.
const ParallelReduceMin = 2048

type Params struct {
	G           float64
	Theta       float64
	SofteningSq float64
	A0          float64
	Model       ForceModel
}

// Evaluator computes accelerations for one set of Params. It holds no
// mutable state and may be shared between goroutines.
type Evaluator struct {
	p       Params
	correct func(r3.Vec) r3.Vec
}

func NewEvaluator(p Params) *Evaluator {
	return &Evaluator{p: p, correct: p.Model.Correction(p.A0)}
}

func (e *Evaluator) Params() Params { return e.p }

var frontiers = sync.Pool{
	New: func() interface{} {
		s := make([]int, 0, 256)
		return &s
	},
}

// Accelerate returns the acceleration on body id at pos due to every source
// in tree.
func (e *Evaluator) Accelerate(tree *bhtree.Tree, pos r3.Vec, id int) r3.Vec {
	fp := frontiers.Get().(*[]int)
	frontier := tree.AppendLeaves((*fp)[:0], pos, id, e.p.Theta)

	var a r3.Vec
	if len(frontier) >= ParallelReduceMin {
		a = dynamo.ParallelSum(len(frontier), ParallelReduceMin/4, func(i int) r3.Vec {
			return e.nodeTerm(tree, tree.Node(frontier[i]), pos, id)
		})
	} else {
		for _, i := range frontier {
			a = r3.Add(a, e.nodeTerm(tree, tree.Node(i), pos, id))
		}
	}

	*fp = frontier
	frontiers.Put(fp)
	return e.finish(a)
}

// DirectSum is the exact O(N) reference: every source except id contributes
// individually.
func (e *Evaluator) DirectSum(sources []bhtree.Source, pos r3.Vec, id int) r3.Vec {
	var a r3.Vec
	for i := range sources {
		s := &sources[i]
		if s.ID == id {
			continue
		}
		a = r3.Add(a, e.pointTerm(s.Pos, s.Mass, pos))
	}
	return e.finish(a)
}

func (e *Evaluator) finish(a r3.Vec) r3.Vec {
	if e.correct == nil {
		return a
	}
	return e.correct(a)
}

// nodeTerm is the contribution of one frontier node. Leaves are summed body
// by body, skipping the target; internal nodes act as a point mass at their
// center of mass.
func (e *Evaluator) nodeTerm(tree *bhtree.Tree, n *bhtree.Node, pos r3.Vec, id int) r3.Vec {
	if !n.IsLeaf() {
		return e.pointTerm(n.CoM, n.Mass, pos)
	}
	var a r3.Vec
	for _, s := range tree.Sources(n) {
		if s.ID == id {
			continue
		}
		a = r3.Add(a, e.pointTerm(s.Pos, s.Mass, pos))
	}
	return a
}

// pointTerm is the softened inverse-square pull of mass at src on pos:
// dir·G·m/(d²+ε²). Coincident points contribute nothing.
func (e *Evaluator) pointTerm(src r3.Vec, mass float64, pos r3.Vec) r3.Vec {
	diff := r3.Sub(src, pos)
	d := r3.Norm(diff)
	if d < bhtree.DistanceEpsilon {
		return r3.Vec{}
	}
	return r3.Scale(e.p.G*mass/((d*d+e.p.SofteningSq)*d), diff)
}

// Accelerate is a convenience wrapper for one-off evaluations.
func Accelerate(tree *bhtree.Tree, pos r3.Vec, id int, p Params) r3.Vec {
	return NewEvaluator(p).Accelerate(tree, pos, id)
}

// DirectSum is a convenience wrapper for one-off evaluations.
func DirectSum(sources []bhtree.Source, pos r3.Vec, id int, p Params) r3.Vec {
	return NewEvaluator(p).DirectSum(sources, pos, id)
}
