package controller

import (
	"math"

	"github.com/lkotsoni/cartesian-controllers/internal/dynamo"
)

// GetParams returns the runtime-tunable parameters: error_scale, iterations
// and the PD gains.
func (c *Controller) GetParams() map[string]float64 {
	params := map[string]float64{
		"error_scale": c.ErrorScale(),
		"iterations":  float64(c.iterations.Load()),
	}
	c.mu.Lock()
	pd := c.pd
	c.mu.Unlock()
	if pd != nil {
		for k, v := range pd.GetParams() {
			params[k] = v
		}
	}
	return params
}

// SetParam tunes a parameter at runtime. error_scale and gains apply from the
// next cycle; iterations applies from the next Start so that a running
// activation keeps a fixed per-cycle budget.
func (c *Controller) SetParam(name string, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return &dynamo.ParamError{Name: name, Value: value, Wrapped: dynamo.ErrParameterBounds}
	}
	switch name {
	case "error_scale":
		if value <= 0 {
			return &dynamo.ParamError{Name: name, Value: value, Wrapped: dynamo.ErrParameterBounds}
		}
		c.setErrorScale(value)
	case "iterations":
		if value < 1 || value != math.Trunc(value) {
			return &dynamo.ParamError{Name: name, Value: value, Wrapped: dynamo.ErrParameterBounds}
		}
		c.iterations.Store(int64(value))
	default:
		c.mu.Lock()
		pd := c.pd
		c.mu.Unlock()
		if pd == nil {
			return ErrNotInitialized
		}
		if err := pd.SetParam(name, value); err != nil {
			return err
		}
	}
	c.logger.Debugw("parameter updated", "name", name, "value", value)
	return nil
}

var _ dynamo.Configurable = (*Controller)(nil)
