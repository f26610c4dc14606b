// Package spatial holds the pose and orientation math used by the
// Cartesian controller.
//
// Poses are [spatialmath.Pose] values expressed in the robot base frame.
// Rotations are handled as unit quaternions ([quat.Number]) so that the
// hot path never allocates an [spatialmath.Orientation]:
//
//   - [RelativeRotation]: target rotation relative to current, target*inv(current)
//   - [AxisAngle]: Rodrigues extraction with angle in [0, π]
//   - [Normalize]: unit direction and length of a vector
//   - [Clamp]: symmetric bound applied to angles and distances
//   - [FromRPY]: roll-pitch-yaw increment, ZYX convention
//
// All functions are pure and safe for concurrent use.
package spatial
