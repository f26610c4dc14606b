package hardware

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// ErrClosed is returned by a Fake after Close.
var ErrClosed = errors.New("hardware: closed")

// Fake is an in-memory actuator set. Position and effort fakes jump to the
// commanded positions; velocity fakes integrate the commanded velocities
// over the command period.
type Fake struct {
	kind Kind

	mu       sync.Mutex
	state    JointState
	writes   int
	last     Command
	closed   bool
	writeErr error
}

func NewFake(kind Kind, positions []float64) *Fake {
	return &Fake{
		kind: kind,
		state: JointState{
			Positions:  append([]float64(nil), positions...),
			Velocities: make([]float64, len(positions)),
		},
	}
}

func (f *Fake) Kind() Kind {
	return f.kind
}

func (f *Fake) State(ctx context.Context) (JointState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return JointState{}, ErrClosed
	}
	return JointState{
		Positions:  append([]float64(nil), f.state.Positions...),
		Velocities: append([]float64(nil), f.state.Velocities...),
	}, nil
}

func (f *Fake) Write(ctx context.Context, cmd Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	if f.writeErr != nil {
		return f.writeErr
	}

	switch f.kind {
	case Velocity:
		if len(cmd.Velocities) != len(f.state.Positions) {
			return errors.Errorf("expected %d velocities, got %d", len(f.state.Positions), len(cmd.Velocities))
		}
		dt := cmd.Period.Seconds()
		for i, v := range cmd.Velocities {
			f.state.Positions[i] += v * dt
			f.state.Velocities[i] = v
		}
	default:
		if len(cmd.Positions) != len(f.state.Positions) {
			return errors.Errorf("expected %d positions, got %d", len(f.state.Positions), len(cmd.Positions))
		}
		copy(f.state.Positions, cmd.Positions)
		copy(f.state.Velocities, cmd.Velocities)
	}
	f.writes++
	f.last = cmd
	return nil
}

func (f *Fake) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Writes returns how many commands were committed.
func (f *Fake) Writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

// LastCommand returns the most recently committed command.
func (f *Fake) LastCommand() Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

// FailWrites makes subsequent writes return err; nil restores normal writes.
func (f *Fake) FailWrites(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeErr = err
}
