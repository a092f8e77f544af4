package dynamo

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/gravsim/internal/body"
)

// AccelFunc returns the acceleration acting on body id if it were at pos.
// Implementations read an immutable per-step snapshot, so a single AccelFunc
// may be called concurrently for different bodies.
type AccelFunc func(id int, pos r3.Vec) r3.Vec

type Integrator interface {
	Name() string
	Step(set *body.Set, dt float64, acc AccelFunc)
}

type Metric interface {
	Name() string
	Observe(set *body.Set, step int, t float64)
	Value() float64
	Reset()
}

// Observer is notified after each completed step. It must treat the set as
// read-only.
type Observer interface {
	OnStep(set *body.Set, step int, t float64) error
}
