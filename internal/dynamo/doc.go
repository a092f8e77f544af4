// Package dynamo provides the shared primitives of the simulation core.
//
// The package defines the contracts the other packages agree on:
//
//   - [AccelFunc]: per-step acceleration field, evaluated at arbitrary target positions
//   - [Integrator]: advances a body set by one timestep
//   - [Metric], [Observer]: read-only hooks run between steps
//   - [ParallelFor], [ParallelSum]: fork-join helpers over index ranges
//
// # Example
//
//	acc, err := backend.Prepare(set)
//	if errors.Is(err, dynamo.ErrEmptyInput) {
//	    return // nothing to simulate this step
//	}
//	integrators.NewRK4().Step(set, dt, acc)
//
// # Thread Safety
//
// An AccelFunc is safe for concurrent use. Integrators write only to the
// body slots their chunk owns, so no locks are taken during a step.
package dynamo
