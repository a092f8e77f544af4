package bhtree

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/gravsim/internal/dynamo"
)

// ZOffsetEpsilon is added to the max-Z bound when a cube is built with the
// z-offset flag, so a system lying in the z=0 plane does not straddle the
// octant split plane.
const ZOffsetEpsilon = 1e-6

// Cube is an axis-aligned bounding cube. Octree subdivision relies on equal
// edge lengths, so there is a single Width rather than per-axis extents.
type Cube struct {
	Center r3.Vec
	Width  float64
}

func (c Cube) half() float64 { return c.Width / 2 }

func (c Cube) Min() r3.Vec {
	h := c.half()
	return r3.Vec{X: c.Center.X - h, Y: c.Center.Y - h, Z: c.Center.Z - h}
}

func (c Cube) Max() r3.Vec {
	h := c.half()
	return r3.Vec{X: c.Center.X + h, Y: c.Center.Y + h, Z: c.Center.Z + h}
}

// Contains reports whether p lies inside the cube, boundaries included.
func (c Cube) Contains(p r3.Vec) bool {
	lo, hi := c.Min(), c.Max()
	return lo.X <= p.X && p.X <= hi.X &&
		lo.Y <= p.Y && p.Y <= hi.Y &&
		lo.Z <= p.Z && p.Z <= hi.Z
}

// OctantOf returns the child octant index of p:
// bit0 is x > center, bit1 is y > center, bit2 is z > center.
func (c Cube) OctantOf(p r3.Vec) int {
	oct := 0
	if p.X > c.Center.X {
		oct |= 1
	}
	if p.Y > c.Center.Y {
		oct |= 2
	}
	if p.Z > c.Center.Z {
		oct |= 4
	}
	return oct
}

// Octant returns the child cube for octant index oct. Each child sits a
// quarter of the parent's width from the parent's center on every axis.
func (c Cube) Octant(oct int) Cube {
	q := c.Width / 4
	sign := func(bit int) float64 {
		if oct&bit != 0 {
			return 1
		}
		return -1
	}
	return Cube{
		Center: r3.Vec{
			X: c.Center.X + sign(1)*q,
			Y: c.Center.Y + sign(2)*q,
			Z: c.Center.Z + sign(4)*q,
		},
		Width: c.Width / 2,
	}
}

// CubeFromBodies returns the smallest cube enclosing positions after each
// bound is pushed outward by pad. It returns dynamo.ErrEmptyInput when
// there are no positions.
func CubeFromBodies(positions []r3.Vec, pad float64, zOffset bool) (Cube, error) {
	if len(positions) == 0 {
		return Cube{}, dynamo.ErrEmptyInput
	}

	lo := r3.Vec{X: math.MaxFloat64, Y: math.MaxFloat64, Z: math.MaxFloat64}
	hi := r3.Vec{X: -math.MaxFloat64, Y: -math.MaxFloat64, Z: -math.MaxFloat64}
	for _, p := range positions {
		lo.X = math.Min(lo.X, p.X)
		lo.Y = math.Min(lo.Y, p.Y)
		lo.Z = math.Min(lo.Z, p.Z)
		hi.X = math.Max(hi.X, p.X)
		hi.Y = math.Max(hi.Y, p.Y)
		hi.Z = math.Max(hi.Z, p.Z)
	}

	lo = r3.Sub(lo, r3.Vec{X: pad, Y: pad, Z: pad})
	hi = r3.Add(hi, r3.Vec{X: pad, Y: pad, Z: pad})
	if zOffset {
		hi.Z += ZOffsetEpsilon
	}

	width := math.Max(hi.X-lo.X, math.Max(hi.Y-lo.Y, hi.Z-lo.Z))
	return Cube{
		Center: r3.Scale(0.5, r3.Add(lo, hi)),
		Width:  width,
	}, nil
}
