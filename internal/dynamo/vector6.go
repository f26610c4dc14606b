package dynamo

import (
	"math"

	"github.com/golang/geo/r3"
)

// Vector6 is a Cartesian six-vector laid out as [x, y, z, rx, ry, rz]. It
// carries motion errors, controller outputs and wrenches.
type Vector6 [6]float64

// NewVector6 packs a translational and a rotational part.
func NewVector6(trans, rot r3.Vector) Vector6 {
	return Vector6{trans.X, trans.Y, trans.Z, rot.X, rot.Y, rot.Z}
}

func (v Vector6) Translation() r3.Vector {
	return r3.Vector{X: v[0], Y: v[1], Z: v[2]}
}

func (v Vector6) Rotation() r3.Vector {
	return r3.Vector{X: v[3], Y: v[4], Z: v[5]}
}

func (v Vector6) Norm() float64 {
	sum := 0.0
	for _, c := range v {
		sum += c * c
	}
	return math.Sqrt(sum)
}

func (v Vector6) Scale(factor float64) Vector6 {
	for i := range v {
		v[i] *= factor
	}
	return v
}

func (v Vector6) Add(other Vector6) Vector6 {
	for i := range v {
		v[i] += other[i]
	}
	return v
}

func (v Vector6) Sub(other Vector6) Vector6 {
	for i := range v {
		v[i] -= other[i]
	}
	return v
}

func (v Vector6) IsValid() bool {
	return State(v[:]).IsValid()
}

// Control copies v into a Control slice.
func (v Vector6) Control() Control {
	u := make(Control, 6)
	copy(u, v[:])
	return u
}
