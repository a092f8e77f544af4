package bhtree_test

import (
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/gravsim/internal/bhtree"
	"github.com/san-kum/gravsim/internal/dynamo"
)

func randomSources(n int, seed int64) []bhtree.Source {
	rng := rand.New(rand.NewSource(seed))
	out := make([]bhtree.Source, n)
	for i := range out {
		out[i] = bhtree.Source{
			ID:   i,
			Pos:  r3.Vec{X: rng.Float64()*2 - 1, Y: rng.Float64()*2 - 1, Z: rng.Float64()*2 - 1},
			Mass: 0.5 + rng.Float64(),
		}
	}
	return out
}

func positionsOf(sources []bhtree.Source) []r3.Vec {
	out := make([]r3.Vec, len(sources))
	for i, s := range sources {
		out[i] = s.Pos
	}
	return out
}

func buildTree(sources []bhtree.Source, cap int) *bhtree.Tree {
	cube, err := bhtree.CubeFromBodies(positionsOf(sources), 0.01, false)
	Expect(err).NotTo(HaveOccurred())
	return bhtree.Build(sources, cube, cap)
}

var _ = Describe("CubeFromBodies", func() {
	It("rejects an empty position list", func() {
		_, err := bhtree.CubeFromBodies(nil, 0, false)
		Expect(err).To(MatchError(dynamo.ErrEmptyInput))
	})

	It("pads the extent and takes the widest axis", func() {
		pts := []r3.Vec{{X: -1, Y: 0, Z: 0}, {X: 3, Y: 1, Z: 0.5}}
		cube, err := bhtree.CubeFromBodies(pts, 0.5, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(cube.Width).To(BeNumerically("~", 5, 1e-12))
		Expect(cube.Center.X).To(BeNumerically("~", 1, 1e-12))
		Expect(cube.Center.Y).To(BeNumerically("~", 0.5, 1e-12))
		for _, p := range pts {
			Expect(cube.Contains(p)).To(BeTrue())
		}
	})

	It("lifts the top face for a planar system when asked", func() {
		pts := []r3.Vec{{X: -1, Y: -1}, {X: 1, Y: 1}}
		flat, _ := bhtree.CubeFromBodies(pts, 0, false)
		lifted, _ := bhtree.CubeFromBodies(pts, 0, true)
		Expect(lifted.Center.Z - flat.Center.Z).To(BeNumerically("~", bhtree.ZOffsetEpsilon/2, 1e-15))
		Expect(lifted.Center.Z).To(BeNumerically(">", 0))
	})

	It("returns a zero-width cube for a single body", func() {
		cube, err := bhtree.CubeFromBodies([]r3.Vec{{X: 2, Y: 3, Z: 4}}, 0, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(cube.Width).To(BeZero())
		Expect(cube.Center).To(Equal(r3.Vec{X: 2, Y: 3, Z: 4}))
	})
})

var _ = Describe("Cube octants", func() {
	cube := bhtree.Cube{Center: r3.Vec{}, Width: 2}

	DescribeTable("index bits follow the axes",
		func(p r3.Vec, want int) {
			Expect(cube.OctantOf(p)).To(Equal(want))
			Expect(cube.Octant(want).Contains(p)).To(BeTrue())
		},
		Entry("all negative", r3.Vec{X: -0.5, Y: -0.5, Z: -0.5}, 0),
		Entry("x positive", r3.Vec{X: 0.5, Y: -0.5, Z: -0.5}, 1),
		Entry("y positive", r3.Vec{X: -0.5, Y: 0.5, Z: -0.5}, 2),
		Entry("z positive", r3.Vec{X: -0.5, Y: -0.5, Z: 0.5}, 4),
		Entry("all positive", r3.Vec{X: 0.5, Y: 0.5, Z: 0.5}, 7),
		Entry("on the split plane goes low", r3.Vec{X: 0, Y: 0, Z: 0}, 0),
	)

	It("halves the width", func() {
		Expect(cube.Octant(5).Width).To(Equal(1.0))
		Expect(cube.Octant(5).Center).To(Equal(r3.Vec{X: 0.5, Y: -0.5, Z: 0.5}))
	})
})

var _ = Describe("Build", func() {
	It("returns an empty tree for no sources", func() {
		tree := bhtree.Build(nil, bhtree.Cube{Width: 1}, 1)
		Expect(tree.Len()).To(BeZero())
		Expect(tree.Root()).To(BeNil())
		Expect(tree.Leaves(r3.Vec{}, 0, 0.5)).To(BeEmpty())
	})

	It("conserves mass and center of mass at the root", func() {
		sources := randomSources(500, 1)
		tree := buildTree(sources, 1)

		mass := 0.0
		var weighted r3.Vec
		for _, s := range sources {
			mass += s.Mass
			weighted = r3.Add(weighted, r3.Scale(s.Mass, s.Pos))
		}
		com := r3.Scale(1/mass, weighted)

		root := tree.Root()
		Expect(root.Mass).To(BeNumerically("~", mass, 1e-9))
		Expect(r3.Norm(r3.Sub(root.CoM, com))).To(BeNumerically("<", 1e-12))
	})

	It("keeps every internal node's mass equal to its children's sum", func() {
		tree := buildTree(randomSources(300, 2), 1)
		for _, n := range tree.Nodes() {
			if n.IsLeaf() {
				continue
			}
			sum := 0.0
			for _, c := range n.Children {
				sum += tree.Node(c).Mass
			}
			Expect(n.Mass).To(BeNumerically("~", sum, 1e-9))
		}
	})

	It("numbers nodes by arena index with children after parents", func() {
		tree := buildTree(randomSources(400, 3), 1)
		for i, n := range tree.Nodes() {
			Expect(n.ID).To(Equal(i))
			for _, c := range n.Children {
				Expect(c).To(BeNumerically(">", i))
				Expect(c).To(BeNumerically("<", tree.Len()))
			}
		}
	})

	It("places every body in exactly one leaf", func() {
		sources := randomSources(250, 4)
		tree := buildTree(sources, 4)
		seen := make(map[int]int)
		for i := range tree.Nodes() {
			n := tree.Node(i)
			if !n.IsLeaf() {
				continue
			}
			Expect(n.Count).To(BeNumerically("<=", 4))
			for _, s := range tree.Sources(n) {
				seen[s.ID]++
				Expect(n.Cube.Contains(s.Pos)).To(BeTrue())
			}
		}
		Expect(seen).To(HaveLen(len(sources)))
		for _, c := range seen {
			Expect(c).To(Equal(1))
		}
	})

	It("is idempotent for the same input", func() {
		sources := randomSources(200, 5)
		a := buildTree(sources, 1)
		b := buildTree(sources, 1)
		Expect(a.Len()).To(Equal(b.Len()))
		for i := range a.Nodes() {
			Expect(a.Node(i).Mass).To(Equal(b.Node(i).Mass))
			Expect(a.Node(i).CoM).To(Equal(b.Node(i).CoM))
			Expect(a.Node(i).Children).To(Equal(b.Node(i).Children))
		}
	})

	It("does not modify the caller's slice", func() {
		sources := randomSources(64, 6)
		before := append([]bhtree.Source(nil), sources...)
		buildTree(sources, 1)
		Expect(sources).To(Equal(before))
	})

	It("terminates on coincident bodies", func() {
		p := r3.Vec{X: 0.25, Y: 0.25, Z: 0.25}
		sources := []bhtree.Source{
			{ID: 0, Pos: p, Mass: 1},
			{ID: 1, Pos: p, Mass: 1},
			{ID: 2, Pos: r3.Vec{X: -1, Y: -1, Z: -1}, Mass: 1},
		}
		tree := buildTree(sources, 1)
		st := tree.Stats()
		Expect(st.MaxDepth).To(BeNumerically("<=", bhtree.MaxDepth))

		var shared *bhtree.Node
		for i := range tree.Nodes() {
			if n := tree.Node(i); n.IsLeaf() && n.Count == 2 {
				shared = n
			}
		}
		Expect(shared).NotTo(BeNil())
		Expect(shared.Mass).To(Equal(2.0))
	})

	It("keeps a zero-mass subtree's center at the origin", func() {
		sources := []bhtree.Source{
			{ID: 0, Pos: r3.Vec{X: 1, Y: 1, Z: 1}},
			{ID: 1, Pos: r3.Vec{X: -1, Y: -1, Z: -1}},
		}
		tree := buildTree(sources, 1)
		Expect(tree.Root().Mass).To(BeZero())
		Expect(tree.Root().CoM).To(Equal(r3.Vec{}))
	})

	It("clamps the leaf capacity to one", func() {
		tree := buildTree(randomSources(10, 7), 0)
		Expect(tree.MaxPerNode()).To(Equal(1))
	})
})

var _ = Describe("Leaves", func() {
	var (
		sources []bhtree.Source
		tree    *bhtree.Tree
	)

	BeforeEach(func() {
		sources = randomSources(300, 8)
		tree = buildTree(sources, 1)
	})

	It("reaches every other body's leaf with theta zero", func() {
		target := sources[17]
		frontier := tree.Leaves(target.Pos, target.ID, 0)
		Expect(frontier).To(HaveLen(len(sources) - 1))
		for _, i := range frontier {
			n := tree.Node(i)
			Expect(n.IsLeaf()).To(BeTrue())
			Expect(tree.Sources(n)[0].ID).NotTo(Equal(target.ID))
		}
	})

	It("covers the whole mass exactly once minus the target", func() {
		target := sources[3]
		total := tree.Root().Mass
		for _, theta := range []float64{0.2, 0.5, 1.0, 2.0, 10.0} {
			sum := 0.0
			for _, i := range tree.Leaves(target.Pos, target.ID, theta) {
				sum += tree.Node(i).Mass
			}
			Expect(sum).To(BeNumerically("~", total-target.Mass, 1e-9), "theta=%v", theta)
		}
	})

	It("shrinks as theta grows", func() {
		far := r3.Vec{X: 50, Y: 50, Z: 50}
		exact := len(tree.Leaves(far, -1, 0))
		coarse := len(tree.Leaves(far, -1, 1))
		Expect(coarse).To(BeNumerically("<", exact))
		Expect(tree.Leaves(far, -1, 1)).To(Equal([]int{0}))
	})

	It("appends to an existing slice", func() {
		dst := []int{-1}
		dst = tree.AppendLeaves(dst, sources[0].Pos, sources[0].ID, 0.5)
		Expect(dst[0]).To(Equal(-1))
		Expect(len(dst)).To(BeNumerically(">", 1))
	})

	It("opens a node whose center of mass coincides with the target", func() {
		pair := []bhtree.Source{
			{ID: 0, Pos: r3.Vec{X: -1}, Mass: 1},
			{ID: 1, Pos: r3.Vec{X: 1}, Mass: 1},
		}
		t := buildTree(pair, 1)
		frontier := t.Leaves(r3.Vec{}, -1, 10)
		Expect(frontier).To(HaveLen(2))
	})

	It("never aggregates the target's own octant when queried just outside it", func() {
		trio := []bhtree.Source{
			{ID: 0, Pos: r3.Vec{X: 0.01, Y: 0.01, Z: 0.01}, Mass: 1},
			{ID: 1, Pos: r3.Vec{X: 1.99, Y: 1.99, Z: 1.99}, Mass: 100},
			{ID: 2, Pos: r3.Vec{X: -1.99, Y: -1.99, Z: -1.99}, Mass: 1},
		}
		t := bhtree.Build(trio, bhtree.Cube{Width: 4}, 1)
		shifted := r3.Vec{X: -0.01, Y: 0.01, Z: 0.01}

		sum := 0.0
		for _, i := range t.Leaves(shifted, 0, 0.7) {
			n := t.Node(i)
			for _, s := range t.Sources(n) {
				Expect(s.ID).NotTo(Equal(0), "node %d carries the target", i)
			}
			sum += n.Mass
		}
		Expect(sum).To(BeNumerically("~", 101, 1e-12))
	})

	It("reports build-time positions by id", func() {
		home, ok := tree.Home(sources[42].ID)
		Expect(ok).To(BeTrue())
		Expect(home).To(Equal(sources[42].Pos))
		_, ok = tree.Home(-1)
		Expect(ok).To(BeFalse())

		sparse := bhtree.Build([]bhtree.Source{{ID: 1000, Pos: r3.Vec{X: 2}, Mass: 1}}, bhtree.Cube{Width: 8}, 1)
		home, ok = sparse.Home(1000)
		Expect(ok).To(BeTrue())
		Expect(home.X).To(Equal(2.0))
	})
})
