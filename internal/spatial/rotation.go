package spatial

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/rdk/spatialmath"
	"gonum.org/v1/gonum/num/quat"
)

// identityEps is the imaginary-part norm below which a rotation is treated
// as the identity.
const identityEps = 1e-12

// ErrDegenerateQuaternion is returned for zero-norm or non-finite quaternions.
var ErrDegenerateQuaternion = errors.New("spatial: degenerate quaternion")

// Identity returns the identity rotation.
func Identity() quat.Number {
	return quat.Number{Real: 1}
}

// AxisAngle extracts the rotation axis and angle of q. The shortest path is
// used, so the angle lies in [0, π]. Near the identity the axis is the zero
// vector and the angle is zero.
func AxisAngle(q quat.Number) (r3.Vector, float64) {
	if q.Real < 0 {
		q = quat.Scale(-1, q)
	}
	v := r3.Vector{X: q.Imag, Y: q.Jmag, Z: q.Kmag}
	s := v.Norm()
	if s <= identityEps {
		return r3.Vector{}, 0
	}
	return v.Mul(1 / s), 2 * math.Atan2(s, q.Real)
}

// FromAxisAngle builds the unit quaternion rotating by angle around axis.
// A zero axis yields the identity.
func FromAxisAngle(axis r3.Vector, angle float64) quat.Number {
	unit, n := Normalize(axis)
	if n == 0 {
		return Identity()
	}
	s, c := math.Sincos(angle / 2)
	return quat.Number{Real: c, Imag: unit.X * s, Jmag: unit.Y * s, Kmag: unit.Z * s}
}

// FromRPY builds a rotation from roll, pitch and yaw increments using the
// fixed-axis ZYX convention (yaw about z, then pitch about y, then roll about x).
func FromRPY(roll, pitch, yaw float64) quat.Number {
	ea := spatialmath.EulerAngles{Roll: roll, Pitch: pitch, Yaw: yaw}
	return ea.Quaternion()
}

// RotationVector returns the axis scaled by the angle of q.
func RotationVector(q quat.Number) r3.Vector {
	axis, angle := AxisAngle(q)
	return axis.Mul(angle)
}

// FromRotationVector is the inverse of RotationVector.
func FromRotationVector(v r3.Vector) quat.Number {
	return quat.Exp(quat.Number{Imag: v.X / 2, Jmag: v.Y / 2, Kmag: v.Z / 2})
}

// Rotate applies the unit quaternion q to v.
func Rotate(q quat.Number, v r3.Vector) r3.Vector {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return r3.Vector{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// NormalizeQuaternion scales q to unit length.
func NormalizeQuaternion(q quat.Number) (quat.Number, error) {
	for _, c := range []float64{q.Real, q.Imag, q.Jmag, q.Kmag} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return quat.Number{}, errors.Wrap(ErrDegenerateQuaternion, "non-finite component")
		}
	}
	n := quat.Abs(q)
	if n < identityEps {
		return quat.Number{}, errors.Wrap(ErrDegenerateQuaternion, "zero norm")
	}
	return quat.Scale(1/n, q), nil
}

// Orientation wraps q as an rdk orientation.
func Orientation(q quat.Number) spatialmath.Orientation {
	o := spatialmath.Quaternion(q)
	return &o
}
