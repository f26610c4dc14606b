package hardware

import (
	"context"
	"math"

	"github.com/hipsterbrown/feetech-servo/feetech"
	"github.com/pkg/errors"
	"go.bug.st/serial"
	"go.uber.org/multierr"
)

const (
	// DefaultBaudRate is the STS3215 factory baud rate.
	DefaultBaudRate = 1_000_000
	ticksPerTurn    = 4096
	centerTick      = 2048
)

// Servo maps one joint onto a bus servo.
type Servo struct {
	ID       int
	Offset   int
	Inverted bool
}

// toTicks converts joint radians into a raw servo position.
func (s Servo) toTicks(rad float64) int {
	if s.Inverted {
		rad = -rad
	}
	raw := centerTick + s.Offset + int(math.Round(rad*ticksPerTurn/(2*math.Pi)))
	if raw < 0 {
		return 0
	}
	if raw > ticksPerTurn-1 {
		return ticksPerTurn - 1
	}
	return raw
}

// toRadians converts a raw servo position into joint radians.
func (s Servo) toRadians(raw int) float64 {
	rad := float64(raw-centerTick-s.Offset) * 2 * math.Pi / ticksPerTurn
	if s.Inverted {
		return -rad
	}
	return rad
}

type FeetechConfig struct {
	Port     string
	BaudRate int
	Servos   []Servo
}

// Feetech drives position-controlled STS servos over a serial bus.
type Feetech struct {
	bus    *feetech.Bus
	group  *feetech.ServoGroup
	servos []Servo
}

func OpenFeetech(ctx context.Context, cfg FeetechConfig) (*Feetech, error) {
	if len(cfg.Servos) == 0 {
		return nil, errors.New("no servos configured")
	}
	baud := cfg.BaudRate
	if baud == 0 {
		baud = DefaultBaudRate
	}

	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     cfg.Port,
		BaudRate: baud,
		Protocol: feetech.ProtocolSTS,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open bus on %s", cfg.Port)
	}

	ids := make([]int, len(cfg.Servos))
	for i, s := range cfg.Servos {
		ids[i] = s.ID
	}
	group := feetech.NewServoGroupByIDs(bus, ids...)
	if err := group.EnableAll(ctx); err != nil {
		bus.Close()
		return nil, errors.Wrap(err, "enable torque")
	}

	return &Feetech{
		bus:    bus,
		group:  group,
		servos: cfg.Servos,
	}, nil
}

func (f *Feetech) Kind() Kind {
	return Position
}

func (f *Feetech) State(ctx context.Context) (JointState, error) {
	raw, err := f.group.Positions(ctx)
	if err != nil {
		return JointState{}, errors.Wrap(err, "read positions")
	}

	positions := make([]float64, len(f.servos))
	for i, s := range f.servos {
		r, ok := raw[s.ID]
		if !ok {
			return JointState{}, errors.Errorf("servo %d did not report a position", s.ID)
		}
		positions[i] = s.toRadians(r)
	}
	return JointState{Positions: positions}, nil
}

func (f *Feetech) Write(ctx context.Context, cmd Command) error {
	if len(cmd.Positions) != len(f.servos) {
		return errors.Errorf("expected %d positions, got %d", len(f.servos), len(cmd.Positions))
	}

	raw := make(feetech.PositionMap, len(f.servos))
	for i, s := range f.servos {
		raw[s.ID] = s.toTicks(cmd.Positions[i])
	}
	if err := f.group.SetPositions(ctx, raw); err != nil {
		return errors.Wrap(err, "write positions")
	}
	return nil
}

func (f *Feetech) Close(ctx context.Context) error {
	return multierr.Combine(
		errors.Wrap(f.group.DisableAll(ctx), "disable torque"),
		errors.Wrap(f.bus.Close(), "close bus"),
	)
}

// ListPorts returns the serial ports present on this machine.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, errors.Wrap(err, "list serial ports")
	}
	return ports, nil
}
