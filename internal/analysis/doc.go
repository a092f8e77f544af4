// Package analysis provides diagnostics for simulated systems.
//
//   - [RadialMassProfile]: mass in thin shells, normalized to the innermost
//   - [RotationCurve]: mean speed per shell
//   - [ThetaSweep]: Barnes-Hut accuracy against the direct sum over θ
//
// # Accuracy Sweep
//
// The sweep builds one tree and one set of exact accelerations, then
// evaluates every θ concurrently against them:
//
//	points, err := analysis.ThetaSweep(ctx, set, []float64{0.3, 0.5, 1}, params, 1)
//	for _, p := range points {
//	    fmt.Printf("%.2f %.2e\n", p.Theta, p.RMSError)
//	}
package analysis
