package solver

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/rdk/spatialmath"
	"gonum.org/v1/gonum/mat"

	"github.com/lkotsoni/cartesian-controllers/internal/spatial"
)

type JointType int

const (
	Revolute JointType = iota
	Prismatic
)

func (t JointType) String() string {
	switch t {
	case Revolute:
		return "revolute"
	case Prismatic:
		return "prismatic"
	default:
		return "unknown"
	}
}

// ParseJointType maps a config string onto a JointType.
func ParseJointType(s string) (JointType, error) {
	switch s {
	case "revolute", "continuous", "":
		return Revolute, nil
	case "prismatic":
		return Prismatic, nil
	default:
		return 0, errors.Errorf("unknown joint type %q", s)
	}
}

// Joint is one actuated degree of freedom. Origin is the fixed transform
// from the parent frame to the joint frame; Axis is expressed in the joint
// frame.
type Joint struct {
	Name    string
	Type    JointType
	Origin  spatialmath.Pose
	Axis    r3.Vector
	Limited bool
	Lower   float64
	Upper   float64
}

// Chain is a serial kinematic chain from the robot base link to the end
// effector link.
type Chain struct {
	BaseLink        string
	EndEffectorLink string
	Joints          []Joint
	// Tip is the fixed transform from the last joint frame to the end effector.
	Tip spatialmath.Pose
}

func (c *Chain) NumJoints() int {
	return len(c.Joints)
}

func (c *Chain) JointNames() []string {
	names := make([]string, len(c.Joints))
	for i, j := range c.Joints {
		names[i] = j.Name
	}
	return names
}

func (c *Chain) Validate() error {
	if len(c.Joints) == 0 {
		return errors.New("chain has no joints")
	}
	for i, j := range c.Joints {
		if j.Axis.Norm() == 0 {
			return errors.Errorf("joint %d (%s) has a zero axis", i, j.Name)
		}
		if j.Limited && j.Lower > j.Upper {
			return errors.Errorf("joint %d (%s) lower limit %.3f above upper limit %.3f", i, j.Name, j.Lower, j.Upper)
		}
	}
	return nil
}

// motion returns the transform produced by moving joint j to position q.
func (j *Joint) motion(q float64) spatialmath.Pose {
	if j.Type == Prismatic {
		unit, _ := spatial.Normalize(j.Axis)
		return spatialmath.NewPoseFromPoint(unit.Mul(q))
	}
	return spatial.NewPose(r3.Vector{}, spatial.FromAxisAngle(j.Axis, q))
}

// frames walks the chain and returns the world transform of each joint frame
// (before its own motion) together with the end effector pose.
func (c *Chain) frames(q []float64) ([]spatialmath.Pose, spatialmath.Pose) {
	frames := make([]spatialmath.Pose, len(c.Joints))
	t := spatialmath.NewZeroPose()
	for i := range c.Joints {
		j := &c.Joints[i]
		if j.Origin != nil {
			t = spatialmath.Compose(t, j.Origin)
		}
		frames[i] = t
		t = spatialmath.Compose(t, j.motion(q[i]))
	}
	if c.Tip != nil {
		t = spatialmath.Compose(t, c.Tip)
	}
	return frames, t
}

// ForwardKinematics returns the end effector pose in the base frame.
func (c *Chain) ForwardKinematics(q []float64) spatialmath.Pose {
	_, ee := c.frames(q)
	return ee
}

// Jacobian returns the 6×n geometric Jacobian, rows ordered as
// [linear, angular] in the base frame, and the end effector pose.
func (c *Chain) Jacobian(q []float64) (*mat.Dense, spatialmath.Pose) {
	frames, ee := c.frames(q)
	p := ee.Point()

	jac := mat.NewDense(6, len(c.Joints), nil)
	for i := range c.Joints {
		j := &c.Joints[i]
		axis, _ := spatial.Normalize(j.Axis)
		z := spatial.Rotate(frames[i].Orientation().Quaternion(), axis)

		var lin, ang r3.Vector
		if j.Type == Prismatic {
			lin = z
		} else {
			lin = z.Cross(p.Sub(frames[i].Point()))
			ang = z
		}
		jac.Set(0, i, lin.X)
		jac.Set(1, i, lin.Y)
		jac.Set(2, i, lin.Z)
		jac.Set(3, i, ang.X)
		jac.Set(4, i, ang.Y)
		jac.Set(5, i, ang.Z)
	}
	return jac, ee
}

// ClampToLimits forces q into the joint limits and reports whether any
// joint was clamped.
func (c *Chain) ClampToLimits(q []float64) bool {
	clamped := false
	for i, j := range c.Joints {
		if !j.Limited {
			continue
		}
		v := spatial.Clamp(q[i], j.Lower, j.Upper)
		if v != q[i] {
			q[i] = v
			clamped = true
		}
	}
	return clamped
}
