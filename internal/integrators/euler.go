package integrators

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/gravsim/internal/body"
	"github.com/san-kum/gravsim/internal/dynamo"
)

// Euler is the semi-implicit (symplectic) Euler method: the velocity is
// kicked first and the position drifts with the new velocity.
type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Name() string { return "euler" }

func (e *Euler) Step(set *body.Set, dt float64, acc dynamo.AccelFunc) {
	dynamo.ParallelFor(set.Len(), MinChunk, func(start, end int) {
		for i := start; i < end; i++ {
			b := &set.Bodies[i]
			b.Acc = acc(b.ID, b.Pos)
			b.Vel = r3.Add(b.Vel, r3.Scale(dt, b.Acc))
			b.Pos = r3.Add(b.Pos, r3.Scale(dt, b.Vel))
		}
	})
}
