package gravity_test

import (
	"math"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/gravsim/internal/bhtree"
	"github.com/san-kum/gravsim/internal/gravity"
)

func cluster(n int, seed int64) []bhtree.Source {
	rng := rand.New(rand.NewSource(seed))
	out := make([]bhtree.Source, n)
	for i := range out {
		out[i] = bhtree.Source{
			ID:   i,
			Pos:  r3.Vec{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()},
			Mass: 1.0 / float64(n),
		}
	}
	return out
}

func treeOf(sources []bhtree.Source) *bhtree.Tree {
	pos := make([]r3.Vec, len(sources))
	for i, s := range sources {
		pos[i] = s.Pos
	}
	cube, err := bhtree.CubeFromBodies(pos, 0.01, false)
	Expect(err).NotTo(HaveOccurred())
	return bhtree.Build(sources, cube, 1)
}

func finite(v r3.Vec) bool {
	for _, x := range []float64{v.X, v.Y, v.Z} {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// meanError is the mean relative L2 error of the tree sum against the
// direct sum over every body.
func meanError(sources []bhtree.Source, tree *bhtree.Tree, theta float64) float64 {
	p := gravity.Params{G: 1, Theta: theta, SofteningSq: 1e-4}
	e := gravity.NewEvaluator(p)
	sum := 0.0
	for _, s := range sources {
		exact := e.DirectSum(sources, s.Pos, s.ID)
		approx := e.Accelerate(tree, s.Pos, s.ID)
		sum += r3.Norm(r3.Sub(approx, exact)) / r3.Norm(exact)
	}
	return sum / float64(len(sources))
}

var _ = Describe("Accelerate", func() {
	newton := gravity.Params{G: 1, Theta: 0.5}

	Context("two unit masses one apart", func() {
		var (
			pair []bhtree.Source
			tree *bhtree.Tree
		)

		BeforeEach(func() {
			pair = []bhtree.Source{
				{ID: 0, Pos: r3.Vec{}, Mass: 1},
				{ID: 1, Pos: r3.Vec{X: 1}, Mass: 1},
			}
			tree = treeOf(pair)
		})

		It("pulls each body toward the other with unit magnitude", func() {
			a0 := gravity.Accelerate(tree, pair[0].Pos, 0, newton)
			a1 := gravity.Accelerate(tree, pair[1].Pos, 1, newton)

			Expect(a0.X).To(BeNumerically("~", 1, 1e-12))
			Expect(a1.X).To(BeNumerically("~", -1, 1e-12))
			Expect(r3.Norm(a0)).To(BeNumerically("~", 1, 1e-12))
			Expect(r3.Norm(r3.Add(a0, a1))).To(BeNumerically("<", 1e-12))
		})

		It("scales with G and is weakened by softening", func() {
			p := newton
			p.G = 2
			Expect(gravity.Accelerate(tree, pair[0].Pos, 0, p).X).To(BeNumerically("~", 2, 1e-12))

			p = newton
			p.SofteningSq = 1
			Expect(gravity.Accelerate(tree, pair[0].Pos, 0, p).X).To(BeNumerically("~", 0.5, 1e-12))
		})

		It("matches the direct sum", func() {
			for _, s := range pair {
				Expect(gravity.Accelerate(tree, s.Pos, s.ID, newton)).
					To(Equal(gravity.DirectSum(pair, s.Pos, s.ID, newton)))
			}
		})
	})

	It("returns zero for a lone body", func() {
		lone := []bhtree.Source{{ID: 0, Pos: r3.Vec{X: 3}, Mass: 5}}
		Expect(gravity.Accelerate(treeOf(lone), lone[0].Pos, 0, newton)).To(Equal(r3.Vec{}))
	})

	It("stays finite for coincident distinct bodies", func() {
		p := r3.Vec{X: 0.5, Y: 0.5, Z: 0.5}
		sources := []bhtree.Source{
			{ID: 0, Pos: p, Mass: 1},
			{ID: 1, Pos: p, Mass: 1},
			{ID: 2, Pos: r3.Vec{X: -1, Y: -1, Z: -1}, Mass: 1},
		}
		tree := treeOf(sources)
		for _, s := range sources {
			a := gravity.Accelerate(tree, s.Pos, s.ID, newton)
			Expect(finite(a)).To(BeTrue())
		}
		a := gravity.Accelerate(tree, p, 0, newton)
		want := gravity.DirectSum(sources, p, 0, newton)
		Expect(r3.Norm(r3.Sub(a, want))).To(BeNumerically("<", 1e-12))
	})

	It("excludes the target's own mass at a stage position outside its octant", func() {
		sources := []bhtree.Source{
			{ID: 0, Pos: r3.Vec{X: 0.01, Y: 0.01, Z: 0.01}, Mass: 1},
			{ID: 1, Pos: r3.Vec{X: 1.99, Y: 1.99, Z: 1.99}, Mass: 100},
			{ID: 2, Pos: r3.Vec{X: -1.99, Y: -1.99, Z: -1.99}, Mass: 1},
		}
		tree := bhtree.Build(sources, bhtree.Cube{Width: 4}, 1)
		shifted := r3.Vec{X: -0.01, Y: 0.01, Z: 0.01}
		p := gravity.Params{G: 1, Theta: 0.7}

		got := gravity.Accelerate(tree, shifted, 0, p)
		want := gravity.DirectSum(sources, shifted, 0, p)
		Expect(r3.Norm(r3.Sub(got, want)) / r3.Norm(want)).To(BeNumerically("<", 1e-12))
	})

	It("converges to the direct sum as theta goes to zero", func() {
		sources := cluster(150, 1)
		tree := treeOf(sources)
		Expect(meanError(sources, tree, 0)).To(BeNumerically("<", 1e-10))
	})

	It("loses accuracy as theta grows", func() {
		sources := cluster(150, 2)
		tree := treeOf(sources)
		fine := meanError(sources, tree, 0.2)
		mid := meanError(sources, tree, 0.6)
		coarse := meanError(sources, tree, 1.5)
		Expect(fine).To(BeNumerically("<", mid))
		Expect(mid).To(BeNumerically("<", coarse))
		Expect(mid).To(BeNumerically("<", 0.2))
	})

	It("sums large frontiers in parallel to the same result", func() {
		sources := cluster(gravity.ParallelReduceMin+200, 3)
		tree := treeOf(sources)
		p := gravity.Params{G: 1, Theta: 0, SofteningSq: 1e-4}
		for _, i := range []int{0, 7, 1000} {
			s := sources[i]
			got := gravity.Accelerate(tree, s.Pos, s.ID, p)
			want := gravity.DirectSum(sources, s.Pos, s.ID, p)
			Expect(r3.Norm(r3.Sub(got, want)) / r3.Norm(want)).To(BeNumerically("<", 1e-10))
		}
	})
})

var _ = Describe("Force models", func() {
	DescribeTable("parse",
		func(in string, want gravity.ForceModel) {
			got, err := gravity.ParseForceModel(in)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(want))
			Expect(got.String()).To(Equal(want.String()))
		},
		Entry("default", "", gravity.Newton),
		Entry("newton", "Newton", gravity.Newton),
		Entry("simple", "mond-simple", gravity.MondSimple),
		Entry("standard", " standard ", gravity.MondStandard),
	)

	It("rejects unknown names", func() {
		_, err := gravity.ParseForceModel("yukawa")
		Expect(err).To(HaveOccurred())
	})

	DescribeTable("interpolating function",
		func(m gravity.ForceModel, x, want float64) {
			Expect(m.Mu(x)).To(BeNumerically("~", want, 1e-12))
		},
		Entry("newton is one", gravity.Newton, 0.3, 1.0),
		Entry("simple at one", gravity.MondSimple, 1.0, 0.5),
		Entry("simple at three", gravity.MondSimple, 3.0, 0.75),
		Entry("standard at one", gravity.MondStandard, 1.0, 1/math.Sqrt2),
		Entry("standard large x", gravity.MondStandard, 1e6, 1.0),
	)

	It("has no correction for Newton", func() {
		Expect(gravity.Newton.Correction(1)).To(BeNil())
	})

	It("boosts weak fields and keeps direction", func() {
		correct := gravity.MondSimple.Correction(1)
		a := r3.Vec{X: 0.6, Y: 0.8}
		b := correct(a)
		Expect(r3.Norm(b)).To(BeNumerically("~", 2, 1e-12))
		Expect(r3.Dot(r3.Unit(a), r3.Unit(b))).To(BeNumerically("~", 1, 1e-12))
		Expect(correct(r3.Vec{})).To(Equal(r3.Vec{}))
	})

	It("applies to the summed acceleration", func() {
		pair := []bhtree.Source{
			{ID: 0, Pos: r3.Vec{}, Mass: 1},
			{ID: 1, Pos: r3.Vec{X: 1}, Mass: 1},
		}
		p := gravity.Params{G: 1, Theta: 0.5, A0: 1, Model: gravity.MondStandard}
		a := gravity.Accelerate(treeOf(pair), r3.Vec{}, 0, p)
		Expect(a.X).To(BeNumerically("~", math.Sqrt2, 1e-12))
	})

	It("corrects the net field rather than each pull", func() {
		opposed := []bhtree.Source{
			{ID: 0, Pos: r3.Vec{}, Mass: 1},
			{ID: 1, Pos: r3.Vec{X: 1}, Mass: 1},
			{ID: 2, Pos: r3.Vec{X: -1}, Mass: 0.5},
		}
		p := gravity.Params{G: 1, Theta: 0.5, A0: 1, Model: gravity.MondStandard}
		a := gravity.Accelerate(treeOf(opposed), r3.Vec{}, 0, p)
		// Net Newtonian pull is 0.5, and 0.5/μ(0.5) = √1.25.
		Expect(a.X).To(BeNumerically("~", math.Sqrt(1.25), 1e-12))
		Expect(a.Y).To(BeNumerically("~", 0, 1e-15))
	})
})
