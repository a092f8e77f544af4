package body

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

type Body struct {
	ID   int
	Pos  r3.Vec
	Vel  r3.Vec
	Acc  r3.Vec // overwritten every step
	Mass float64
}

func (b Body) String() string {
	return fmt.Sprintf("m: %.4f p: [%.4f, %.4f, %.4f] v: [%.4f, %.4f, %.4f]",
		b.Mass, b.Pos.X, b.Pos.Y, b.Pos.Z, b.Vel.X, b.Vel.Y, b.Vel.Z)
}

// Set holds the physics-owned state of every body in a run. Only the
// integrator mutates it; everything else reads between steps.
type Set struct {
	Bodies []Body
}

// NewSet takes ownership of bodies and renumbers them so that ID equals the
// slice index.
func NewSet(bodies []Body) *Set {
	for i := range bodies {
		bodies[i].ID = i
	}
	return &Set{Bodies: bodies}
}

func (s *Set) Len() int { return len(s.Bodies) }

// Positions returns a copy of every body position, indexed by ID.
func (s *Set) Positions() []r3.Vec {
	out := make([]r3.Vec, len(s.Bodies))
	for i := range s.Bodies {
		out[i] = s.Bodies[i].Pos
	}
	return out
}

func (s *Set) Masses() []float64 {
	out := make([]float64, len(s.Bodies))
	for i := range s.Bodies {
		out[i] = s.Bodies[i].Mass
	}
	return out
}

func (s *Set) TotalMass() float64 {
	m := 0.0
	for i := range s.Bodies {
		m += s.Bodies[i].Mass
	}
	return m
}

// CenterOfMass returns the mass-weighted mean position. A massless set
// reports the origin.
func (s *Set) CenterOfMass() r3.Vec {
	var c r3.Vec
	m := 0.0
	for i := range s.Bodies {
		b := &s.Bodies[i]
		c = r3.Add(c, r3.Scale(b.Mass, b.Pos))
		m += b.Mass
	}
	if math.Abs(m) <= Epsilon {
		return r3.Vec{}
	}
	return r3.Scale(1/m, c)
}

func (s *Set) Momentum() r3.Vec {
	var p r3.Vec
	for i := range s.Bodies {
		p = r3.Add(p, r3.Scale(s.Bodies[i].Mass, s.Bodies[i].Vel))
	}
	return p
}

func (s *Set) Clone() *Set {
	c := make([]Body, len(s.Bodies))
	copy(c, s.Bodies)
	return &Set{Bodies: c}
}

func (s *Set) IsValid() bool {
	for i := range s.Bodies {
		b := &s.Bodies[i]
		if !finite(b.Pos) || !finite(b.Vel) || math.IsNaN(b.Mass) || math.IsInf(b.Mass, 0) {
			return false
		}
	}
	return true
}

// Epsilon is the tolerance below which an aggregate mass counts as zero.
const Epsilon = 2.220446049250313e-16

func finite(v r3.Vec) bool {
	for _, x := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
