package bhtree

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/gravsim/internal/body"
	"github.com/san-kum/gravsim/internal/dynamo"
)

// MaxDepth bounds subdivision. Coincident bodies can never be separated by
// bisection, so a node at this depth becomes a leaf whatever its count.
const MaxDepth = 64

// Source is a point mass captured from a body set when the tree is built.
// The tree never aliases live bodies.
type Source struct {
	ID   int
	Pos  r3.Vec
	Mass float64
}

// SourcesFromSet snapshots every body in set.
func SourcesFromSet(set *body.Set) []Source {
	out := make([]Source, set.Len())
	for i := range set.Bodies {
		b := &set.Bodies[i]
		out[i] = Source{ID: b.ID, Pos: b.Pos, Mass: b.Mass}
	}
	return out
}

// Node is an element of the tree arena. ID equals the node's index in the
// arena and Children holds arena indices, all greater than ID.
type Node struct {
	ID       int
	Cube     Cube
	Children []int
	Mass     float64
	CoM      r3.Vec

	// First and Count select the node's bodies in the tree's source table.
	First, Count int
	Depth        int
}

func (n *Node) IsLeaf() bool { return len(n.Children) == 0 }

// Tree is an arena-backed octree. It is immutable once built and safe for
// concurrent reads.
type Tree struct {
	nodes      []Node
	sources    []Source
	homes      homeIndex
	maxPerNode int
}

// homeIndex maps a source ID to its position at build time. IDs that are
// small and non-negative use a slice, anything else falls back to a map.
type homeIndex struct {
	pos    []r3.Vec
	known  []bool
	sparse map[int]r3.Vec
}

func newHomeIndex(sources []Source) homeIndex {
	maxID := -1
	for _, s := range sources {
		if s.ID < 0 || s.ID >= 2*len(sources) {
			maxID = -2
			break
		}
		maxID = max(maxID, s.ID)
	}

	var h homeIndex
	if maxID == -2 {
		h.sparse = make(map[int]r3.Vec, len(sources))
		for _, s := range sources {
			h.sparse[s.ID] = s.Pos
		}
		return h
	}
	h.pos = make([]r3.Vec, maxID+1)
	h.known = make([]bool, maxID+1)
	for _, s := range sources {
		h.pos[s.ID] = s.Pos
		h.known[s.ID] = true
	}
	return h
}

func (h *homeIndex) lookup(id int) (r3.Vec, bool) {
	if h.sparse != nil {
		p, ok := h.sparse[id]
		return p, ok
	}
	if id < 0 || id >= len(h.known) || !h.known[id] {
		return r3.Vec{}, false
	}
	return h.pos[id], true
}

// Home returns the build-time position of the source with the given ID.
func (t *Tree) Home(id int) (r3.Vec, bool) { return t.homes.lookup(id) }

type buildEntry struct {
	first, count int
	cube         Cube
	parent       int
	depth        int
}

// Build constructs the octree for sources inside root. A node holding at most
// maxPerNode sources is a leaf; values below 1 are treated as 1.
//
// Construction uses an explicit work stack. Each popped entry is aggregated,
// appended to the arena and linked to its parent; entries over capacity are
// partitioned in place into their occupied octants. Build panics with an
// error wrapping dynamo.ErrMalformedTree if the finished arena violates its
// index invariants.
func Build(sources []Source, root Cube, maxPerNode int) *Tree {
	if maxPerNode < 1 {
		maxPerNode = 1
	}

	t := &Tree{
		sources:    slices.Clone(sources),
		homes:      newHomeIndex(sources),
		maxPerNode: maxPerNode,
	}
	if len(sources) == 0 {
		return t
	}

	t.nodes = make([]Node, 0, 2*len(sources))
	scratch := make([]Source, len(sources))
	stack := []buildEntry{{first: 0, count: len(sources), cube: root, parent: -1}}

	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		subset := t.sources[e.first : e.first+e.count]
		mass, com := aggregate(subset)

		id := len(t.nodes)
		t.nodes = append(t.nodes, Node{
			ID:    id,
			Cube:  e.cube,
			Mass:  mass,
			CoM:   com,
			First: e.first,
			Count: e.count,
			Depth: e.depth,
		})
		if e.parent >= 0 {
			p := &t.nodes[e.parent]
			p.Children = append(p.Children, id)
		}

		if e.count <= maxPerNode || e.depth >= MaxDepth || !(e.cube.Width > 0) {
			continue
		}

		var counts, offsets [8]int
		for _, s := range subset {
			counts[e.cube.OctantOf(s.Pos)]++
		}
		off := 0
		for o := range counts {
			offsets[o] = off
			off += counts[o]
		}

		tmp := scratch[:e.count]
		copy(tmp, subset)
		next := offsets
		for _, s := range tmp {
			o := e.cube.OctantOf(s.Pos)
			subset[next[o]] = s
			next[o]++
		}

		// Pushed in reverse so octant 0 is popped, and numbered, first.
		for o := 7; o >= 0; o-- {
			if counts[o] == 0 {
				continue
			}
			stack = append(stack, buildEntry{
				first:  e.first + offsets[o],
				count:  counts[o],
				cube:   e.cube.Octant(o),
				parent: id,
				depth:  e.depth + 1,
			})
		}
	}

	slices.SortFunc(t.nodes, func(a, b Node) int { return a.ID - b.ID })
	if err := t.validate(); err != nil {
		panic(err)
	}
	return t
}

// aggregate returns the total mass and center of mass of sources. A total
// mass within body.Epsilon of zero leaves the center at the origin.
func aggregate(sources []Source) (float64, r3.Vec) {
	mass := 0.0
	var weighted r3.Vec
	for _, s := range sources {
		mass += s.Mass
		weighted = r3.Add(weighted, r3.Scale(s.Mass, s.Pos))
	}
	if math.Abs(mass) <= body.Epsilon {
		return mass, r3.Vec{}
	}
	return mass, r3.Scale(1/mass, weighted)
}

func (t *Tree) validate() error {
	for i := range t.nodes {
		n := &t.nodes[i]
		if n.ID != i {
			return fmt.Errorf("%w: node at index %d has id %d", dynamo.ErrMalformedTree, i, n.ID)
		}
		for _, c := range n.Children {
			if c <= i || c >= len(t.nodes) {
				return fmt.Errorf("%w: node %d links child %d", dynamo.ErrMalformedTree, i, c)
			}
		}
	}
	return nil
}

func (t *Tree) Len() int        { return len(t.nodes) }
func (t *Tree) MaxPerNode() int { return t.maxPerNode }

// Root returns the root node, or nil for an empty tree.
func (t *Tree) Root() *Node {
	if len(t.nodes) == 0 {
		return nil
	}
	return &t.nodes[0]
}

func (t *Tree) Node(i int) *Node { return &t.nodes[i] }

// Nodes exposes the arena. Callers must not modify it.
func (t *Tree) Nodes() []Node { return t.nodes }

// Sources returns the bodies held under n.
func (t *Tree) Sources(n *Node) []Source {
	return t.sources[n.First : n.First+n.Count]
}

type Stats struct {
	Nodes    int
	Leaves   int
	MaxDepth int
}

func (t *Tree) Stats() Stats {
	s := Stats{Nodes: len(t.nodes)}
	for i := range t.nodes {
		n := &t.nodes[i]
		if n.IsLeaf() {
			s.Leaves++
		}
		if n.Depth > s.MaxDepth {
			s.MaxDepth = n.Depth
		}
	}
	return s
}
