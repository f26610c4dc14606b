package spatial

import (
	"math"

	"github.com/golang/geo/r3"
	"go.viam.com/rdk/spatialmath"
	"gonum.org/v1/gonum/num/quat"
)

// NewPose builds a pose from a position and a unit quaternion.
func NewPose(p r3.Vector, q quat.Number) spatialmath.Pose {
	return spatialmath.NewPose(p, Orientation(q))
}

// Inverse returns the exact inverse of p.
func Inverse(p spatialmath.Pose) spatialmath.Pose {
	return spatialmath.PoseInverse(p)
}

// Compose returns a∘b: b expressed in the frame of a.
func Compose(a, b spatialmath.Pose) spatialmath.Pose {
	return spatialmath.Compose(a, b)
}

// RelativeRotation returns target*inv(current), the rotation that carries the
// current orientation onto the target, expressed in the base frame.
func RelativeRotation(target, current spatialmath.Pose) quat.Number {
	return quat.Mul(target.Orientation().Quaternion(), quat.Conj(current.Orientation().Quaternion()))
}

// RelativeTranslation returns target.p - current.p.
func RelativeTranslation(target, current spatialmath.Pose) r3.Vector {
	return target.Point().Sub(current.Point())
}

// PoseIsFinite reports whether every position and orientation component of p
// is a finite number.
func PoseIsFinite(p spatialmath.Pose) bool {
	pt := p.Point()
	q := p.Orientation().Quaternion()
	for _, c := range []float64{pt.X, pt.Y, pt.Z, q.Real, q.Imag, q.Jmag, q.Kmag} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
