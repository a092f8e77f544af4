package analysis

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/gravsim/internal/body"
)

// SamplePoints is the default number of radial shells.
const SamplePoints = 40

type ProfilePoint struct {
	R     float64
	Value float64
}

// shells groups bodies by distance from center. Shell i is centered at
// r = i·dr with dr = rMax/samples and half-width dr/2, so shells can share a
// boundary body.
func shells(set *body.Set, center r3.Vec, samples int) (dr float64, members [][]int) {
	if samples <= 0 {
		samples = SamplePoints
	}
	dist := make([]float64, set.Len())
	for i := range set.Bodies {
		dist[i] = r3.Norm(r3.Sub(set.Bodies[i].Pos, center))
	}
	rMax := 0.0
	if len(dist) > 0 {
		rMax = floats.Max(dist)
	}
	dr = rMax / float64(samples)

	members = make([][]int, samples)
	for s := range members {
		r := float64(s) * dr
		for i, d := range dist {
			if d-r <= dr/2 && r-d <= dr/2 {
				members[s] = append(members[s], i)
			}
		}
	}
	return dr, members
}

// RadialMassProfile returns the mass in each shell divided by the mass of the
// innermost shell. An empty innermost shell leaves the values unnormalized.
func RadialMassProfile(set *body.Set, center r3.Vec, samples int) []ProfilePoint {
	dr, members := shells(set, center, samples)
	out := make([]ProfilePoint, len(members))

	masses := make([]float64, 0)
	for s, idx := range members {
		masses = masses[:0]
		for _, i := range idx {
			masses = append(masses, set.Bodies[i].Mass)
		}
		out[s] = ProfilePoint{R: float64(s) * dr, Value: floats.Sum(masses)}
	}

	if len(out) > 0 && out[0].Value != 0 {
		rho0 := out[0].Value
		for s := range out {
			out[s].Value /= rho0
		}
	}
	return out
}

// RotationCurve returns the mean speed of the bodies in each shell; empty
// shells report zero.
func RotationCurve(set *body.Set, center r3.Vec, samples int) []ProfilePoint {
	dr, members := shells(set, center, samples)
	out := make([]ProfilePoint, len(members))

	speeds := make([]float64, 0)
	for s, idx := range members {
		out[s].R = float64(s) * dr
		if len(idx) == 0 {
			continue
		}
		speeds = speeds[:0]
		for _, i := range idx {
			speeds = append(speeds, r3.Norm(set.Bodies[i].Vel))
		}
		out[s].Value = stat.Mean(speeds, nil)
	}
	return out
}
