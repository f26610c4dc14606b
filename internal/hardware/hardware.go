// Package hardware is the joint write-back path of the controller: the
// command interface kinds, a recording fake, and a Feetech servo bus driver.
package hardware

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// Kind is the command interface exposed by the actuators.
type Kind int

const (
	Position Kind = iota
	Velocity
	Effort
)

func (k Kind) String() string {
	switch k {
	case Position:
		return "position"
	case Velocity:
		return "velocity"
	case Effort:
		return "effort"
	default:
		return "unknown"
	}
}

func ParseKind(s string) (Kind, error) {
	switch s {
	case "position", "":
		return Position, nil
	case "velocity":
		return Velocity, nil
	case "effort":
		return Effort, nil
	default:
		return 0, errors.Errorf("unknown hardware interface %q", s)
	}
}

// Command is what one control cycle commits to the actuators. Position and
// effort hardware consume Positions, velocity hardware consumes Velocities.
type Command struct {
	Positions  []float64
	Velocities []float64
	// Period is the outer control period the command is valid for.
	Period time.Duration
}

// JointState is a measured joint configuration. Velocities may be nil when
// the actuators do not report them.
type JointState struct {
	Positions  []float64
	Velocities []float64
}

// Interface is the narrow contract the controller needs from actuators.
type Interface interface {
	Kind() Kind
	State(ctx context.Context) (JointState, error)
	Write(ctx context.Context, cmd Command) error
	Close(ctx context.Context) error
}
