// Package dynamo provides the core types shared by the simulation driver.
//
// The package defines the fundamental interfaces and types for simulating
// ordinary differential equations dx/dt = f(x, t, P) with sensitivities:
//
//   - [State]: vector representing system state (and tangents of it)
//   - [System]: derivative and observable maps over named state variables
//   - [Linearized]: optional Jacobian-vector products of those maps
//   - [Commander]: optional discrete mode / command schedule
//   - [Result], [TangentResult]: terminal values of one simulation
//
// # Example
//
//	sys := models.NewDecay(1.0)
//	res, err := sim.Simulate(ctx, sys, dynamo.State{1}, nil, sim.Options{
//	    Stop: stop.Seuil("x", 0.5),
//	})
//
// # Thread Safety
//
// The driver keeps no state between calls; the discrete mode is threaded
// through each run explicitly. A System is safe to share between concurrent
// runs as long as its own methods are free of side effects.
package dynamo
