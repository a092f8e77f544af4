package integrators

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/gravsim/internal/body"
	"github.com/san-kum/gravsim/internal/dynamo"
)

// Leapfrog is kick-drift-kick. The closing kick is evaluated at the drifted
// position against the snapshot taken at the start of the step.
type Leapfrog struct{}

func NewLeapfrog() *Leapfrog {
	return &Leapfrog{}
}

func (l *Leapfrog) Name() string { return "leapfrog" }

func (l *Leapfrog) Step(set *body.Set, dt float64, acc dynamo.AccelFunc) {
	halfDt := 0.5 * dt
	dynamo.ParallelFor(set.Len(), MinChunk, func(start, end int) {
		for i := start; i < end; i++ {
			b := &set.Bodies[i]
			a := acc(b.ID, b.Pos)
			vHalf := r3.Add(b.Vel, r3.Scale(halfDt, a))
			b.Pos = r3.Add(b.Pos, r3.Scale(dt, vHalf))
			b.Acc = acc(b.ID, b.Pos)
			b.Vel = r3.Add(vHalf, r3.Scale(halfDt, b.Acc))
		}
	})
}
