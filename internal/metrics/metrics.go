// Package metrics scores a controller run from its motion errors and joint
// commands.
package metrics

import "github.com/lkotsoni/cartesian-controllers/internal/dynamo"

// Default returns the metrics recorded for every offline run.
func Default(maxAngle, maxDistance float64) []dynamo.Metric {
	return []dynamo.Metric{
		NewFinalError(Translation),
		NewFinalError(Rotation),
		NewRMSError(),
		NewPeakError(),
		NewSettlingTime(DefaultSettlingThreshold),
		NewSaturation(maxAngle, maxDistance),
		NewControlEffort(),
	}
}
