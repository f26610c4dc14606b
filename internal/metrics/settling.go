package metrics

import (
	"github.com/lkotsoni/cartesian-controllers/internal/dynamo"
)

const DefaultSettlingThreshold = 1e-3

// SettlingTime is the time after which the motion error norm stayed below
// the threshold, measured from the first sample. It is -1 if the error was
// still above the threshold at the last sample.
type SettlingTime struct {
	threshold float64
	start     float64
	settledAt float64
	started   bool
	settled   bool
}

func NewSettlingTime(threshold float64) *SettlingTime {
	if threshold <= 0 {
		threshold = DefaultSettlingThreshold
	}
	return &SettlingTime{threshold: threshold}
}

func (s *SettlingTime) Name() string { return "settling_time" }

func (s *SettlingTime) Observe(e dynamo.Vector6, cmd dynamo.State, t float64) {
	if !s.started {
		s.start = t
		s.started = true
	}
	if e.Norm() > s.threshold {
		s.settled = false
		return
	}
	if !s.settled {
		s.settled = true
		s.settledAt = t
	}
}

func (s *SettlingTime) Value() float64 {
	if !s.settled {
		return -1
	}
	return s.settledAt - s.start
}

func (s *SettlingTime) Reset() {
	*s = SettlingTime{threshold: s.threshold}
}
