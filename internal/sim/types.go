package sim

import (
	"time"

	"github.com/san-kum/gravsim/internal/body"
)

type Config struct {
	Steps int
	Dt    float64
	// ValidateState aborts the run when a step leaves a NaN or Inf behind.
	ValidateState bool
	// MetricsEvery is the step interval between metric observations. The
	// initial and final states are always observed. Values below 1 mean
	// every step.
	MetricsEvery int
}

func DefaultConfig() Config {
	return Config{
		Steps:         1000,
		Dt:            0.01,
		ValidateState: true,
		MetricsEvery:  1,
	}
}

type Result struct {
	StepsTaken   int
	StepsSkipped int
	Times        []float64
	Metrics      map[string]float64
	EnergyDrift  float64
	Errors       []error
	Elapsed      time.Duration
	Final        *body.Set
}

// MsPerStep is the mean wall time of a completed step.
func (r *Result) MsPerStep() float64 {
	if r.StepsTaken == 0 {
		return 0
	}
	return float64(r.Elapsed.Microseconds()) / 1000 / float64(r.StepsTaken)
}
