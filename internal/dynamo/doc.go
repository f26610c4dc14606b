// Package dynamo provides the numeric primitives shared by the Cartesian
// controller and its internal forward-dynamics model.
//
//   - [State]: joint-space state vector [q, q̇]
//   - [Control]: wrench applied to a [System]
//   - [System]: interface for ODE systems (dX/dt = f(X, u, t))
//   - [Integrator]: fixed-step numerical integrator
//   - [Vector6]: Cartesian motion error or wrench, [translation, rotation]
//   - [Configurable]: runtime-tunable parameter sets
//
// # Example
//
//	integ := integrators.NewEuler()
//	x = integ.Step(model, x, wrench.Control(), t, 0.02)
//
// # Thread Safety
//
// Values are plain slices and arrays. Integrators with scratch buffers are
// NOT safe for concurrent use; give each solver its own instance.
package dynamo
