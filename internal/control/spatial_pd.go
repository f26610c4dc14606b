package control

import (
	"fmt"
	"sync"

	"github.com/lkotsoni/cartesian-controllers/internal/dynamo"
)

// Axis names in Vector6 order, used as parameter prefixes.
var axisNames = [6]string{"trans_x", "trans_y", "trans_z", "rot_x", "rot_y", "rot_z"}

const (
	DefaultTransP = 10.0
	DefaultRotP   = 10.0
)

// Gains holds per-axis proportional and derivative gains.
type Gains struct {
	P dynamo.Vector6
	D dynamo.Vector6
}

func DefaultGains() Gains {
	return Gains{
		P: dynamo.Vector6{DefaultTransP, DefaultTransP, DefaultTransP, DefaultRotP, DefaultRotP, DefaultRotP},
	}
}

// SpatialPD computes u = P∘e + D∘ė per Cartesian axis. The derivative is
// taken on the error, zero on the first call after Reset.
type SpatialPD struct {
	mu      sync.Mutex
	gains   Gains
	prevErr dynamo.Vector6
	first   bool
}

func NewSpatialPD(gains Gains) *SpatialPD {
	return &SpatialPD{
		gains: gains,
		first: true,
	}
}

func (c *SpatialPD) Compute(err dynamo.Vector6, period float64) dynamo.Vector6 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var derivative dynamo.Vector6
	if !c.first && period > 0 {
		derivative = err.Sub(c.prevErr).Scale(1 / period)
	}
	c.prevErr = err
	c.first = false

	var u dynamo.Vector6
	for i := range u {
		u[i] = c.gains.P[i]*err[i] + c.gains.D[i]*derivative[i]
	}
	return u
}

// Reset clears the derivative memory.
func (c *SpatialPD) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prevErr = dynamo.Vector6{}
	c.first = true
}

// Gains returns a copy of the current gains.
func (c *SpatialPD) Gains() Gains {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gains
}

// GetParams returns tunable parameters for live adjustment, keyed as
// "<axis>.p" and "<axis>.d".
func (c *SpatialPD) GetParams() map[string]float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	params := make(map[string]float64, 12)
	for i, axis := range axisNames {
		params[axis+".p"] = c.gains.P[i]
		params[axis+".d"] = c.gains.D[i]
	}
	return params
}

// SetParam adjusts a single gain. Gains must be non-negative.
func (c *SpatialPD) SetParam(name string, value float64) error {
	if value < 0 {
		return &dynamo.ParamError{Name: name, Value: value, Wrapped: dynamo.ErrParameterBounds}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, axis := range axisNames {
		switch name {
		case axis + ".p":
			c.gains.P[i] = value
			return nil
		case axis + ".d":
			c.gains.D[i] = value
			return nil
		}
	}
	return &dynamo.ParamError{Name: name, Value: value, Wrapped: dynamo.ErrUnknownParameter}
}

func (c *SpatialPD) String() string {
	g := c.Gains()
	return fmt.Sprintf("pd(p=%v d=%v)", g.P, g.D)
}
