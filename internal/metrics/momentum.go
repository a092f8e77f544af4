package metrics

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/gravsim/internal/body"
)

func MomentumNorm(set *body.Set) float64 {
	return r3.Norm(set.Momentum())
}

// MomentumDrift is the largest |P-P₀| seen, normalized by Σ mᵢ|vᵢ| at the
// first observation so that a system at rest does not divide by zero.
type MomentumDrift struct {
	name    string
	initial r3.Vec
	scale   float64
	max     float64
	samples int
}

func NewMomentumDrift() *MomentumDrift {
	return &MomentumDrift{
		name: "momentum_drift",
	}
}

func (m *MomentumDrift) Name() string {
	return m.name
}

func (m *MomentumDrift) Observe(set *body.Set, step int, t float64) {
	p := set.Momentum()
	if m.samples == 0 {
		m.initial = p
		m.scale = 0
		for i := range set.Bodies {
			m.scale += math.Abs(set.Bodies[i].Mass) * r3.Norm(set.Bodies[i].Vel)
		}
	}
	m.samples++

	d := r3.Norm(r3.Sub(p, m.initial))
	if m.scale > 0 {
		d /= m.scale
	}
	m.max = math.Max(m.max, d)
}

func (m *MomentumDrift) Value() float64 {
	return m.max
}

func (m *MomentumDrift) Reset() {
	m.initial = r3.Vec{}
	m.scale = 0
	m.max = 0
	m.samples = 0
}
