// Package control provides the spatial feedback law that turns a Cartesian
// motion error into the wrench fed to the forward-dynamics model.
//
//   - [SpatialPD]: per-axis proportional-derivative controller on [dynamo.Vector6]
//
// # Usage
//
//	pd := control.NewSpatialPD(control.DefaultGains())
//	wrench := pd.Compute(motionError, 0.02).Scale(errorScale)
//
// [SpatialPD] implements [dynamo.Configurable] for live tuning.
package control
