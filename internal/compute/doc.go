// Package compute provides the force backends a simulation steps with.
//
//   - barnes-hut: octree approximation, O(N log N) per evaluation sweep
//   - direct: exact pairwise sum, O(N²)
//
// A backend is prepared once per timestep. Prepare snapshots the bodies and
// returns a closure that is safe to call from many goroutines:
//
//	backend, _ := compute.ByName("barnes-hut", opts)
//	acc, err := backend.Prepare(set)
//	if err != nil {
//	    return err
//	}
//	integrator.Step(set, dt, acc)
package compute
