package dynamo

import (
	"math"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

func (s State) Add(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] + other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

func (s State) Scale(factor float64) State {
	result := make(State, len(s))
	for i := range s {
		result[i] = s[i] * factor
	}
	return result
}

// Split returns the first n entries and the remainder. Joint-space states
// are laid out as [q, q̇].
func (s State) Split(n int) (State, State) {
	if n > len(s) {
		n = len(s)
	}
	return s[:n], s[n:]
}

// Control is the input applied to a System. For the joint-space model it is
// the Cartesian wrench [f, τ] acting on the end effector.
type Control []float64

// System is an ODE dX/dt = f(X, u, t).
type System interface {
	Derive(x State, u Control, t float64) State
	StateDim() int
	ControlDim() int
}

type Integrator interface {
	Step(dyn System, x State, u Control, t float64, dt float64) State
}

// Metric accumulates a scalar over the motion errors and joint commands of a
// controller run.
type Metric interface {
	Name() string
	Observe(e Vector6, cmd State, t float64)
	Value() float64
	Reset()
}

// Configurable is implemented by components with runtime-tunable parameters.
type Configurable interface {
	GetParams() map[string]float64
	SetParam(name string, value float64) error
}
