package metrics

import (
	"github.com/lkotsoni/cartesian-controllers/internal/dynamo"
)

// Saturation is the fraction of samples whose residual reaches the
// translation or rotation bound, so the controller clamped it.
type Saturation struct {
	maxAngle    float64
	maxDistance float64
	clamped     int
	samples     int
}

func NewSaturation(maxAngle, maxDistance float64) *Saturation {
	return &Saturation{maxAngle: maxAngle, maxDistance: maxDistance}
}

func (s *Saturation) Name() string { return "saturation" }

func (s *Saturation) Observe(e dynamo.Vector6, cmd dynamo.State, t float64) {
	const tol = 1e-9
	s.samples++
	if e.Translation().Norm() >= s.maxDistance-tol || e.Rotation().Norm() >= s.maxAngle-tol {
		s.clamped++
	}
}

func (s *Saturation) Value() float64 {
	if s.samples == 0 {
		return 0
	}
	return float64(s.clamped) / float64(s.samples)
}

func (s *Saturation) Reset() {
	s.clamped = 0
	s.samples = 0
}
