package integrators

import "github.com/lkotsoni/cartesian-controllers/internal/dynamo"

// Euler is the explicit forward Euler method. For a joint-space state
// [q, q̇] it advances positions with the previous velocities and velocities
// with the freshly computed accelerations.
type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t float64, dt float64) dynamo.State {
	dx := dyn.Derive(x, u, t)
	result := make(dynamo.State, len(x))
	for i := range x {
		result[i] = x[i] + dt*dx[i]
	}
	return result
}
