package controller

import (
	"time"

	"go.viam.com/rdk/spatialmath"

	"github.com/lkotsoni/cartesian-controllers/internal/dynamo"
)

// Sample is what one motion error computation saw.
type Sample struct {
	Cycle   uint64
	Time    time.Time
	FrameID string
	Current spatialmath.Pose
	Target  spatialmath.Pose
	Error   dynamo.Vector6
}

// CurrentPose returns the sample's current pose as a stamped snapshot.
func (s Sample) CurrentPose() PoseStamped {
	return PoseStamped{FrameID: s.FrameID, Stamp: s.Time, Pose: s.Current}
}

// Observer receives every sample on the control goroutine and must not block.
type Observer interface {
	OnSample(s Sample)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Sample)

func (f ObserverFunc) OnSample(s Sample) { f(s) }

// PoseFeed is an Observer that buffers samples on a channel. When the
// buffer is full the oldest sample is dropped, so a slow reader never
// stalls the control loop.
type PoseFeed struct {
	ch chan Sample
}

func NewPoseFeed(size int) *PoseFeed {
	if size < 1 {
		size = 1
	}
	return &PoseFeed{ch: make(chan Sample, size)}
}

func (f *PoseFeed) OnSample(s Sample) {
	for {
		select {
		case f.ch <- s:
			return
		default:
		}
		select {
		case <-f.ch:
		default:
		}
	}
}

// C returns the receive side of the feed.
func (f *PoseFeed) C() <-chan Sample {
	return f.ch
}
