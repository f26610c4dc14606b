package controller

import (
	"sync/atomic"
	"time"

	"github.com/golang/geo/r3"
	"go.viam.com/rdk/spatialmath"
)

// PoseStamped is an immutable pose snapshot.
type PoseStamped struct {
	FrameID string
	Stamp   time.Time
	Pose    spatialmath.Pose
}

// Twist is a one-shot pose increment: Linear is added to the position and
// Angular is applied as roll, pitch and yaw increments.
type Twist struct {
	Linear  r3.Vector
	Angular r3.Vector
}

// TargetHolder publishes pose snapshots between goroutines. Writers replace
// the whole snapshot, readers never see a partial write. The last writer
// wins.
type TargetHolder struct {
	p atomic.Pointer[PoseStamped]
}

// Load returns the current snapshot, or nil if none is held.
func (h *TargetHolder) Load() *PoseStamped {
	return h.p.Load()
}

func (h *TargetHolder) Store(ps PoseStamped) {
	h.p.Store(&ps)
}

func (h *TargetHolder) Clear() {
	h.p.Store(nil)
}
