// Package solver implements the forward-dynamics model behind the Cartesian
// controller.
//
// A [Chain] describes the robot from base link to end effector. The
// [ForwardDynamics] model conditions that chain so that only the end
// effector carries mass, applies a Cartesian wrench, and integrates
// q̈ = H⁻¹ Jᵀ f with a [dynamo.Integrator]. After every step joint
// velocities are damped and positions clamped into the joint limits.
//
// Two robots ship built in, see [Lookup].
package solver
