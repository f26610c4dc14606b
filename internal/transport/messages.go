package transport

import (
	"time"

	"github.com/golang/geo/r3"
	"go.viam.com/rdk/spatialmath"
	"gonum.org/v1/gonum/num/quat"

	"github.com/lkotsoni/cartesian-controllers/internal/controller"
	"github.com/lkotsoni/cartesian-controllers/internal/spatial"
)

type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vector3) r3() r3.Vector {
	return r3.Vector{X: v.X, Y: v.Y, Z: v.Z}
}

func vector3(v r3.Vector) Vector3 {
	return Vector3{X: v.X, Y: v.Y, Z: v.Z}
}

// Quaternion is ordered x, y, z, w on the wire.
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

type Pose struct {
	Position    Vector3    `json:"position"`
	Orientation Quaternion `json:"orientation"`
}

type Header struct {
	FrameID string    `json:"frame_id"`
	Stamp   time.Time `json:"stamp"`
}

type PoseStamped struct {
	Header Header `json:"header"`
	Pose   Pose   `json:"pose"`
}

type Twist struct {
	Linear  Vector3 `json:"linear"`
	Angular Vector3 `json:"angular"`
}

// ToPose converts the message into a pose with the orientation as sent. The
// controller checks the frame before it normalizes or rejects the
// orientation.
func (p PoseStamped) ToPose() spatialmath.Pose {
	o := p.Pose.Orientation
	return spatial.NewPose(p.Pose.Position.r3(), quat.Number{Real: o.W, Imag: o.X, Jmag: o.Y, Kmag: o.Z})
}

func FromPoseStamped(ps controller.PoseStamped) PoseStamped {
	q := ps.Pose.Orientation().Quaternion()
	return PoseStamped{
		Header: Header{FrameID: ps.FrameID, Stamp: ps.Stamp},
		Pose: Pose{
			Position:    vector3(ps.Pose.Point()),
			Orientation: Quaternion{X: q.Imag, Y: q.Jmag, Z: q.Kmag, W: q.Real},
		},
	}
}

func (t Twist) ToTwist() controller.Twist {
	return controller.Twist{Linear: t.Linear.r3(), Angular: t.Angular.r3()}
}

type statusResponse struct {
	State      string     `json:"state"`
	Mode       string     `json:"mode"`
	Paused     bool       `json:"paused"`
	Cycles     uint64     `json:"cycles"`
	ErrorScale float64    `json:"error_scale"`
	Iterations int        `json:"iterations"`
	BaseLink   string     `json:"robot_base_link"`
	LastError  [6]float64 `json:"last_error"`
	Loop       any        `json:"loop,omitempty"`
}

func newStatusResponse(st controller.Status) statusResponse {
	return statusResponse{
		State:      st.State.String(),
		Mode:       st.Mode,
		Paused:     st.Paused,
		Cycles:     st.Cycles,
		ErrorScale: st.ErrorScale,
		Iterations: st.Iterations,
		BaseLink:   st.BaseLink,
		LastError:  st.LastError,
	}
}
