package solver

import (
	"math"
	"sort"

	"github.com/golang/geo/r3"
	"go.viam.com/rdk/spatialmath"

	"github.com/lkotsoni/cartesian-controllers/internal/spatial"
)

// Robot bundles a chain with the joint positions it starts from.
type Robot struct {
	Chain *Chain
	Home  []float64
}

var robots = map[string]func() Robot{
	"gantry": Gantry,
	"arm6":   Arm6,
}

// Lookup returns a built-in robot by name.
func Lookup(name string) (Robot, bool) {
	fn, ok := robots[name]
	if !ok {
		return Robot{}, false
	}
	return fn(), true
}

// RobotNames lists the built-in robots.
func RobotNames() []string {
	names := make([]string, 0, len(robots))
	for name := range robots {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func origin(x, y, z, roll, pitch, yaw float64) spatialmath.Pose {
	return spatial.NewPose(r3.Vector{X: x, Y: y, Z: z}, spatial.FromRPY(roll, pitch, yaw))
}

// Gantry is a Cartesian robot with three linear axes followed by a
// yaw-pitch-roll wrist. Its Jacobian is well conditioned away from pitch ±π/2.
func Gantry() Robot {
	lin := func(name string, axis r3.Vector) Joint {
		return Joint{Name: name, Type: Prismatic, Axis: axis, Limited: true, Lower: -2, Upper: 2}
	}
	rot := func(name string, axis r3.Vector) Joint {
		return Joint{Name: name, Type: Revolute, Axis: axis, Limited: true, Lower: -math.Pi, Upper: math.Pi}
	}
	return Robot{
		Chain: &Chain{
			BaseLink:        "base_link",
			EndEffectorLink: "tool0",
			Joints: []Joint{
				lin("x", r3.Vector{X: 1}),
				lin("y", r3.Vector{Y: 1}),
				lin("z", r3.Vector{Z: 1}),
				rot("yaw", r3.Vector{Z: 1}),
				rot("pitch", r3.Vector{Y: 1}),
				rot("roll", r3.Vector{X: 1}),
			},
		},
		Home: make([]float64, 6),
	}
}

// Arm6 is a six axis industrial arm with UR5 link geometry.
func Arm6() Robot {
	rev := func(name string, o spatialmath.Pose, axis r3.Vector) Joint {
		return Joint{Name: name, Type: Revolute, Origin: o, Axis: axis, Limited: true, Lower: -2 * math.Pi, Upper: 2 * math.Pi}
	}
	return Robot{
		Chain: &Chain{
			BaseLink:        "base_link",
			EndEffectorLink: "tool0",
			Joints: []Joint{
				rev("shoulder_pan_joint", origin(0, 0, 0.089159, 0, 0, 0), r3.Vector{Z: 1}),
				rev("shoulder_lift_joint", origin(0, 0.13585, 0, 0, math.Pi/2, 0), r3.Vector{Y: 1}),
				rev("elbow_joint", origin(0, -0.1197, 0.425, 0, 0, 0), r3.Vector{Y: 1}),
				rev("wrist_1_joint", origin(0, 0, 0.39225, 0, math.Pi/2, 0), r3.Vector{Y: 1}),
				rev("wrist_2_joint", origin(0, 0.093, 0, 0, 0, 0), r3.Vector{Z: 1}),
				rev("wrist_3_joint", origin(0, 0, 0.09465, 0, 0, 0), r3.Vector{Y: 1}),
			},
			Tip: origin(0, 0.0823, 0, 0, 0, math.Pi/2),
		},
		Home: []float64{0, -math.Pi / 2, math.Pi / 2, -math.Pi / 2, -math.Pi / 2, 0},
	}
}
