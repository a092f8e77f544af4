package bhtree

import (
	"sync"

	"gonum.org/v1/gonum/spatial/r3"
)

// DistanceEpsilon is the separation below which a target and a center of
// mass are treated as coincident.
const DistanceEpsilon = 1e-10

type stackPool struct {
	pool sync.Pool
}

func newStackPool(capacity int) *stackPool {
	return &stackPool{
		pool: sync.Pool{
			New: func() interface{} {
				s := make([]int, 0, capacity)
				return &s
			},
		},
	}
}

func (p *stackPool) Get() *[]int { return p.pool.Get().(*[]int) }

func (p *stackPool) Put(s *[]int) {
	*s = (*s)[:0]
	p.pool.Put(s)
}

var stacks = newStackPool(8 * MaxDepth)

// Leaves returns the effective sources for a body with ID targetID at
// target: the indices of the coarsest nodes that pass the Barnes-Hut
// opening-angle test, plus every leaf reached on the way down.
func (t *Tree) Leaves(target r3.Vec, targetID int, theta float64) []int {
	return t.AppendLeaves(nil, target, targetID, theta)
}

// AppendLeaves is Leaves appending to dst.
//
// The walk is depth-first over an explicit stack. A leaf is always taken,
// except a leaf whose only occupant is the target itself. An internal node
// is taken whole when width/d < theta, d being the distance from target to
// the node's center of mass; otherwise its children are examined. When d is
// below DistanceEpsilon the ratio is unbounded and the node is opened, never
// used as an aggregate. A node whose cube contains target, or the position
// targetID had when the tree was built, is also opened, so a body never
// feels its own mass through an aggregate even when queried away from its
// home (as the inner RK4 stages do). With theta = 0 every walk ends at the
// leaves.
func (t *Tree) AppendLeaves(dst []int, target r3.Vec, targetID int, theta float64) []int {
	if len(t.nodes) == 0 {
		return dst
	}

	home, hasHome := t.homes.lookup(targetID)

	sp := stacks.Get()
	stack := append(*sp, 0)

	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &t.nodes[i]

		if n.IsLeaf() {
			if n.Count == 1 && t.sources[n.First].ID == targetID {
				continue
			}
			dst = append(dst, i)
			continue
		}

		d := r3.Norm(r3.Sub(n.CoM, target))
		if d >= DistanceEpsilon && n.Cube.Width/d < theta && !n.Cube.Contains(target) &&
			!(hasHome && n.Cube.Contains(home)) {
			dst = append(dst, i)
			continue
		}
		stack = append(stack, n.Children...)
	}

	*sp = stack
	stacks.Put(sp)
	return dst
}
