package integrators

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/gravsim/internal/body"
	"github.com/san-kum/gravsim/internal/dynamo"
)

// MinChunk is the smallest slice of bodies handed to one worker.
const MinChunk = 64

// RK4 advances every body with a classical fourth-order Runge-Kutta step.
// All four stages evaluate forces against the same snapshot taken at the
// start of the step, so the bodies are updated independently.
type RK4 struct{}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) Name() string { return "rk4" }

func (r *RK4) Step(set *body.Set, dt float64, acc dynamo.AccelFunc) {
	dynamo.ParallelFor(set.Len(), MinChunk, func(start, end int) {
		for i := start; i < end; i++ {
			r.stepBody(&set.Bodies[i], dt, acc)
		}
	})
}

func (r *RK4) stepBody(b *body.Body, dt float64, acc dynamo.AccelFunc) {
	x, v := b.Pos, b.Vel

	a1 := acc(b.ID, x)
	k1v := r3.Scale(dt, a1)
	k1x := r3.Scale(dt, v)

	k2v := r3.Scale(dt, acc(b.ID, r3.Add(x, r3.Scale(0.5, k1x))))
	k2x := r3.Scale(dt, r3.Add(v, r3.Scale(0.5, k1v)))

	k3v := r3.Scale(dt, acc(b.ID, r3.Add(x, r3.Scale(0.5, k2x))))
	k3x := r3.Scale(dt, r3.Add(v, r3.Scale(0.5, k2v)))

	k4v := r3.Scale(dt, acc(b.ID, r3.Add(x, k3x)))
	k4x := r3.Scale(dt, r3.Add(v, k3v))

	b.Vel = r3.Add(v, weighted(k1v, k2v, k3v, k4v))
	b.Pos = r3.Add(x, weighted(k1x, k2x, k3x, k4x))
	b.Acc = a1
}

// weighted is the RK4 combination (k1 + 2k2 + 2k3 + k4)/6.
func weighted(k1, k2, k3, k4 r3.Vec) r3.Vec {
	s := r3.Add(r3.Add(k1, k4), r3.Scale(2, r3.Add(k2, k3)))
	return r3.Scale(1.0/6.0, s)
}
