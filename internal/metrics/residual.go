package metrics

import (
	"math"

	"github.com/lkotsoni/cartesian-controllers/internal/dynamo"
)

// Part selects which half of the motion error a metric looks at.
type Part int

const (
	Full Part = iota
	Translation
	Rotation
)

func (p Part) norm(e dynamo.Vector6) float64 {
	switch p {
	case Translation:
		return e.Translation().Norm()
	case Rotation:
		return e.Rotation().Norm()
	default:
		return e.Norm()
	}
}

func (p Part) suffix() string {
	switch p {
	case Translation:
		return "_translation"
	case Rotation:
		return "_rotation"
	default:
		return ""
	}
}

// FinalError is the norm of the last observed motion error.
type FinalError struct {
	part  Part
	value float64
}

func NewFinalError(p Part) *FinalError {
	return &FinalError{part: p}
}

func (f *FinalError) Name() string { return "final_error" + f.part.suffix() }

func (f *FinalError) Observe(e dynamo.Vector6, cmd dynamo.State, t float64) {
	f.value = f.part.norm(e)
}

func (f *FinalError) Value() float64 { return f.value }
func (f *FinalError) Reset()         { f.value = 0 }

// RMSError is the root mean square of the motion error norm.
type RMSError struct {
	sumSq   float64
	samples int
}

func NewRMSError() *RMSError {
	return &RMSError{}
}

func (r *RMSError) Name() string { return "rms_error" }

func (r *RMSError) Observe(e dynamo.Vector6, cmd dynamo.State, t float64) {
	n := e.Norm()
	r.sumSq += n * n
	r.samples++
}

func (r *RMSError) Value() float64 {
	if r.samples == 0 {
		return 0
	}
	return math.Sqrt(r.sumSq / float64(r.samples))
}

func (r *RMSError) Reset() {
	r.sumSq = 0
	r.samples = 0
}

// PeakError is the largest motion error norm seen.
type PeakError struct {
	peak float64
}

func NewPeakError() *PeakError {
	return &PeakError{}
}

func (p *PeakError) Name() string { return "peak_error" }

func (p *PeakError) Observe(e dynamo.Vector6, cmd dynamo.State, t float64) {
	p.peak = math.Max(p.peak, e.Norm())
}

func (p *PeakError) Value() float64 { return p.peak }
func (p *PeakError) Reset()         { p.peak = 0 }
