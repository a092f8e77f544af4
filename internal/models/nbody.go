package models

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/gravsim/internal/body"
)

// Ring spaces n unit masses evenly on a circle of radius Radius in the z=0
// plane, each moving tangentially at 0.5·Speed.
func Ring(n int, rng *rand.Rand, p Params) []body.Body {
	bodies := make([]body.Body, n)
	speed := 0.5 * p.Speed
	for i := 0; i < n; i++ {
		angle := float64(i) * 2.0 * math.Pi / float64(n)
		bodies[i] = body.Body{
			Pos:  r3.Vec{X: p.Radius * math.Cos(angle), Y: p.Radius * math.Sin(angle)},
			Vel:  r3.Vec{X: -math.Sin(angle) * speed, Y: math.Cos(angle) * speed},
			Mass: 1.0,
		}
	}
	return bodies
}
