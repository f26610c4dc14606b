package controller

import "errors"

var (
	ErrNotInitialized = errors.New("controller: not initialized")
	ErrRunning        = errors.New("controller: already running")
	ErrNotRunning     = errors.New("controller: not running")
	ErrFrameMismatch  = errors.New("controller: target frame does not match robot base link")
	ErrInvalidPose    = errors.New("controller: invalid pose")
	ErrInvalidTwist   = errors.New("controller: invalid twist")
	ErrNoCurrentPose  = errors.New("controller: no current pose published yet")
	ErrMissingParam   = errors.New("controller: missing required parameter")
)
