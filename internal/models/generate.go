package models

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/gravsim/internal/body"
	"github.com/san-kum/gravsim/internal/dynamo"
)

type Params struct {
	Radius      float64
	CentralMass float64
	// Speed scales the generated velocities. Its meaning depends on the kind.
	Speed        float64
	G            float64
	Eccentricity float64
	// Thickness is the full height of a disk. Zero gives a planar disk.
	Thickness float64
}

func DefaultParams() Params {
	return Params{
		Radius:      1.0,
		CentralMass: 0,
		Speed:       1.0,
		G:           1.0,
	}
}

type generator func(n int, rng *rand.Rand, p Params) []body.Body

var generators = map[string]generator{
	"binary": Binary,
	"sphere": Sphere,
	"disk":   Disk,
	"ring":   Ring,
}

// Generate builds n bodies of the named kind from a seeded source, so the
// same arguments always give the same set.
func Generate(kind string, n int, seed int64, p Params) (*body.Set, error) {
	gen, ok := generators[strings.ToLower(kind)]
	if !ok {
		return nil, fmt.Errorf("%w: unknown initial condition %q", dynamo.ErrParameterBounds, kind)
	}
	if n < 1 {
		return nil, fmt.Errorf("%w: num_bodies must be positive, got %d", dynamo.ErrParameterBounds, n)
	}
	if p.Radius <= 0 {
		p.Radius = 1
	}
	if p.G == 0 {
		p.G = 1
	}
	rng := rand.New(rand.NewSource(seed))
	return body.NewSet(gen(n, rng, p)), nil
}

func Kinds() []string {
	kinds := make([]string, 0, len(generators))
	for k := range generators {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Binary is two unit masses Radius apart on the x axis. Speed gives each a
// transverse velocity, opposite in sign; zero starts them at rest. n is
// ignored.
func Binary(n int, rng *rand.Rand, p Params) []body.Body {
	v := p.Speed
	return []body.Body{
		{Pos: r3.Vec{}, Vel: r3.Vec{Y: -v}, Mass: 1},
		{Pos: r3.Vec{X: p.Radius}, Vel: r3.Vec{Y: v}, Mass: 1},
	}
}

// Sphere fills a ball of radius Radius uniformly with bodies of equal mass
// summing to one, at rest.
func Sphere(n int, rng *rand.Rand, p Params) []body.Body {
	bodies := make([]body.Body, n)
	m := 1.0 / float64(n)
	for i := range bodies {
		r := p.Radius * math.Cbrt(rng.Float64())
		bodies[i] = body.Body{Pos: r3.Scale(r, randomDirection(rng)), Mass: m}
	}
	return bodies
}

// Disk places a central mass at the origin and n-1 bodies on circular
// orbits in an annulus around it. Orbital speed counts the central mass and
// the disk mass enclosed at each radius, scaled by Speed.
func Disk(n int, rng *rand.Rand, p Params) []body.Body {
	bodies := make([]body.Body, 0, n)
	central := p.CentralMass
	if central <= 0 {
		central = 1
	}
	bodies = append(bodies, body.Body{Mass: central})
	if n == 1 {
		return bodies
	}

	count := n - 1
	diskMass := 0.1 * central
	m := diskMass / float64(count)
	inner := 0.1 * p.Radius

	radii := make([]float64, count)
	for i := range radii {
		// Uniform in area between inner and Radius.
		u := rng.Float64()
		radii[i] = math.Sqrt(inner*inner + u*(p.Radius*p.Radius-inner*inner))
	}
	sort.Float64s(radii)

	scaleX := 1 - p.Eccentricity
	for i, r := range radii {
		theta := rng.Float64() * 2 * math.Pi
		enclosed := central + m*float64(i)
		v := p.Speed * math.Sqrt(p.G*enclosed/r)

		z := 0.0
		if p.Thickness > 0 {
			z = (rng.Float64() - 0.5) * p.Thickness
		}
		bodies = append(bodies, body.Body{
			Pos:  r3.Vec{X: r * math.Cos(theta) * scaleX, Y: r * math.Sin(theta), Z: z},
			Vel:  r3.Vec{X: -v * math.Sin(theta), Y: v * math.Cos(theta)},
			Mass: m,
		})
	}
	return bodies
}

// randomDirection samples the unit sphere with area weighting.
func randomDirection(rng *rand.Rand) r3.Vec {
	phi := math.Acos(2*rng.Float64() - 1)
	theta := rng.Float64() * 2 * math.Pi
	return r3.Vec{
		X: math.Sin(phi) * math.Cos(theta),
		Y: math.Sin(phi) * math.Sin(theta),
		Z: math.Cos(phi),
	}
}
