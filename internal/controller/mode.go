package controller

import (
	"fmt"

	"github.com/lkotsoni/cartesian-controllers/internal/hardware"
)

type modeKind int

const (
	iterative modeKind = iota
	singleStep
)

// Mode selects how many internal simulation steps run per outer cycle.
// It is chosen once at Init and stays fixed while running.
type Mode struct {
	kind       modeKind
	iterations int
}

// Iterative runs n internal steps per cycle, letting the internal model
// settle before the command is committed. n below one is treated as one.
func Iterative(n int) Mode {
	if n < 1 {
		n = 1
	}
	return Mode{kind: iterative, iterations: n}
}

// SingleStep runs exactly one internal step per cycle.
func SingleStep() Mode {
	return Mode{kind: singleStep, iterations: 1}
}

// ModeFor picks the mode matching a hardware interface: velocity hardware
// closes the loop itself and gets a single step, position and effort
// hardware iterate.
func ModeFor(kind hardware.Kind, iterations int) Mode {
	if kind == hardware.Velocity {
		return SingleStep()
	}
	return Iterative(iterations)
}

// Steps is the number of internal steps per outer cycle.
func (m Mode) Steps() int {
	return m.iterations
}

func (m Mode) IsSingleStep() bool {
	return m.kind == singleStep
}

func (m Mode) String() string {
	if m.kind == singleStep {
		return "single-step"
	}
	return fmt.Sprintf("iterative(%d)", m.iterations)
}
