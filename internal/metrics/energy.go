package metrics

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/gravsim/internal/body"
	"github.com/san-kum/gravsim/internal/dynamo"
)

func KineticEnergy(set *body.Set) float64 {
	ke := 0.0
	for i := range set.Bodies {
		b := &set.Bodies[i]
		ke += 0.5 * b.Mass * r3.Norm2(b.Vel)
	}
	return ke
}

// PotentialEnergy is the pairwise Plummer-softened potential
// -G·mᵢ·mⱼ/√(r²+ε²), computed in parallel over i. Row i holds n-1-i pairs,
// so rows are folded as (k, n-1-k) to give every chunk the same work.
func PotentialEnergy(set *body.Set, g, softeningSq float64) float64 {
	n := set.Len()
	partial := make([]float64, n)
	row := func(i int) float64 {
		bi := &set.Bodies[i]
		pe := 0.0
		for j := i + 1; j < n; j++ {
			bj := &set.Bodies[j]
			r2 := r3.Norm2(r3.Sub(bj.Pos, bi.Pos)) + softeningSq
			if r2 == 0 {
				continue
			}
			pe -= g * bi.Mass * bj.Mass / math.Sqrt(r2)
		}
		return pe
	}
	dynamo.ParallelFor((n+1)/2, 16, func(start, end int) {
		for k := start; k < end; k++ {
			partial[k] = row(k)
			if mirror := n - 1 - k; mirror != k {
				partial[mirror] = row(mirror)
			}
		}
	})

	total := 0.0
	for _, pe := range partial {
		total += pe
	}
	return total
}

func TotalEnergy(set *body.Set, g, softeningSq float64) float64 {
	return KineticEnergy(set) + PotentialEnergy(set, g, softeningSq)
}

// Energy reports the total energy at the latest observation.
type Energy struct {
	name        string
	g           float64
	softeningSq float64
	current     float64
	samples     int
}

func NewEnergy(g, softeningSq float64) *Energy {
	return &Energy{
		name:        "energy",
		g:           g,
		softeningSq: softeningSq,
	}
}

func (e *Energy) Name() string { return e.name }

func (e *Energy) Observe(set *body.Set, step int, t float64) {
	e.current = TotalEnergy(set, e.g, e.softeningSq)
	e.samples++
}

func (e *Energy) Value() float64 { return e.current }

func (e *Energy) Reset() {
	e.current = 0
	e.samples = 0
}

// EnergyDrift tracks the largest relative deviation |E-E₀|/|E₀| from the
// first observed energy.
type EnergyDrift struct {
	name          string
	g             float64
	softeningSq   float64
	initialEnergy float64
	currentEnergy float64
	maxDrift      float64
	samples       int
}

func NewEnergyDrift(g, softeningSq float64) *EnergyDrift {
	return &EnergyDrift{
		name:        "energy_drift",
		g:           g,
		softeningSq: softeningSq,
	}
}

func (e *EnergyDrift) Name() string { return e.name }

func (e *EnergyDrift) Observe(set *body.Set, step int, t float64) {
	energy := TotalEnergy(set, e.g, e.softeningSq)

	if e.samples == 0 {
		e.initialEnergy = energy
	}

	e.currentEnergy = energy
	e.samples++

	if e.initialEnergy != 0 {
		drift := math.Abs(energy-e.initialEnergy) / math.Abs(e.initialEnergy)
		e.maxDrift = math.Max(e.maxDrift, drift)
	}
}

func (e *EnergyDrift) Value() float64 {
	return e.maxDrift
}

func (e *EnergyDrift) Current() float64 { return e.currentEnergy }

func (e *EnergyDrift) Reset() {
	e.initialEnergy = 0
	e.currentEnergy = 0
	e.maxDrift = 0
	e.samples = 0
}
