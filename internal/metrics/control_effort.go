package metrics

import (
	"math"

	"github.com/lkotsoni/cartesian-controllers/internal/dynamo"
)

// ControlEffort is the mean L1 norm of the joint velocities commanded after
// each cycle. It grows with aggressive gains even when the error settles.
type ControlEffort struct {
	total float64
	n     int
}

func NewControlEffort() *ControlEffort {
	return &ControlEffort{}
}

func (c *ControlEffort) Name() string { return "control_effort" }

func (c *ControlEffort) Observe(e dynamo.Vector6, cmd dynamo.State, t float64) {
	l1 := 0.0
	for _, qd := range cmd {
		l1 += math.Abs(qd)
	}
	c.total += l1
	c.n++
}

func (c *ControlEffort) Value() float64 {
	if c.n == 0 {
		return 0
	}
	return c.total / float64(c.n)
}

func (c *ControlEffort) Reset() {
	c.total = 0
	c.n = 0
}
