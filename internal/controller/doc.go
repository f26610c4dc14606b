// Package controller is the Cartesian motion controller.
//
// A [Controller] tracks a target end effector pose. Every outer control
// cycle it computes a bounded six dimensional [MotionError] between the
// current and the target pose, feeds it through a spatial PD law into the
// forward-dynamics [Solver] for a fixed number of internal steps (see
// [Mode]), and commits the resulting joint command to the hardware once.
//
// The target is written by two producers that may run on any goroutine:
// [Controller.SetTargetFrame] replaces it with an absolute pose,
// [Controller.SetTargetTwist] nudges it relative to the last observed
// current pose. Both hand over immutable snapshots through atomic pointers,
// so the control goroutine never waits on them.
//
// Lifecycle:
//
//	Uninitialized --Init--> Idle --Start--> Running --Stop--> Idle
//
// [Controller.Update] is a no-op outside Running and while paused.
package controller
