package controller

import (
	"go.viam.com/rdk/spatialmath"

	"github.com/lkotsoni/cartesian-controllers/internal/dynamo"
	"github.com/lkotsoni/cartesian-controllers/internal/spatial"
)

const (
	DefaultMaxAngle    = 1.0
	DefaultMaxDistance = 1.0
)

// Bounds caps how much error is fed into the solver per computation. They
// are not robot limits; residual error is picked up by later cycles.
type Bounds struct {
	MaxAngle    float64
	MaxDistance float64
}

func DefaultBounds() Bounds {
	return Bounds{MaxAngle: DefaultMaxAngle, MaxDistance: DefaultMaxDistance}
}

// MotionError returns [translation, rotation] from current to target. The
// rotation part is the axis-angle vector of target.R * inv(current.R); both
// parts are clamped to the bounds. At a rotation error of π the axis is
// ambiguous and whichever one falls out is used.
func MotionError(current, target spatialmath.Pose, b Bounds) dynamo.Vector6 {
	axis, angle := spatial.AxisAngle(spatial.RelativeRotation(target, current))
	dir, dist := spatial.Normalize(spatial.RelativeTranslation(target, current))

	angle = spatial.ClampSymmetric(angle, b.MaxAngle)
	dist = spatial.ClampSymmetric(dist, b.MaxDistance)

	return dynamo.NewVector6(dir.Mul(dist), axis.Mul(angle))
}

// Residual is MotionError without the bounds: the full remaining
// translation and axis-angle rotation from current to target.
func Residual(current, target spatialmath.Pose) dynamo.Vector6 {
	axis, angle := spatial.AxisAngle(spatial.RelativeRotation(target, current))
	return dynamo.NewVector6(spatial.RelativeTranslation(target, current), axis.Mul(angle))
}
