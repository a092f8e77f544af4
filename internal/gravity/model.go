package gravity

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/gravsim/internal/dynamo"
)

// ForceModel selects the force law applied on top of the Newtonian sum.
type ForceModel int

const (
	Newton ForceModel = iota
	// MondSimple uses the Famaey & Binney interpolating function.
	MondSimple
	// MondStandard uses the Sanders & Noordermeer interpolating function.
	MondStandard
)

func (m ForceModel) String() string {
	switch m {
	case Newton:
		return "newton"
	case MondSimple:
		return "mond-simple"
	case MondStandard:
		return "mond-standard"
	default:
		return fmt.Sprintf("ForceModel(%d)", int(m))
	}
}

func ParseForceModel(s string) (ForceModel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "newton", "newtonian":
		return Newton, nil
	case "mond-simple", "simple":
		return MondSimple, nil
	case "mond-standard", "standard":
		return MondStandard, nil
	}
	return Newton, fmt.Errorf("%w: unknown force model %q", dynamo.ErrParameterBounds, s)
}

// Mu is the MOND interpolating function μ(x), x = |a_N|/a₀. Newton reports 1.
func (m ForceModel) Mu(x float64) float64 {
	switch m {
	case MondSimple:
		return x / (1 + x)
	case MondStandard:
		return x / math.Sqrt(1+x*x)
	default:
		return 1
	}
}

// Correction returns the post-hoc transform applied to a summed Newtonian
// acceleration, or nil for Newton. It is built once and shared by every
// evaluation.
func (m ForceModel) Correction(a0 float64) func(r3.Vec) r3.Vec {
	if m == Newton {
		return nil
	}
	return func(a r3.Vec) r3.Vec {
		mag := r3.Norm(a)
		if mag == 0 || a0 <= 0 {
			return a
		}
		mu := m.Mu(mag / a0)
		if mu <= 0 {
			return a
		}
		return r3.Scale(1/mu, a)
	}
}
