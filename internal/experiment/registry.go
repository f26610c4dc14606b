package experiment

import (
	"context"
	"sort"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/spatialmath"

	"github.com/lkotsoni/cartesian-controllers/internal/config"
	"github.com/lkotsoni/cartesian-controllers/internal/control"
	"github.com/lkotsoni/cartesian-controllers/internal/controller"
	"github.com/lkotsoni/cartesian-controllers/internal/dynamo"
	"github.com/lkotsoni/cartesian-controllers/internal/hardware"
	"github.com/lkotsoni/cartesian-controllers/internal/integrators"
	"github.com/lkotsoni/cartesian-controllers/internal/solver"
	"github.com/lkotsoni/cartesian-controllers/internal/spatial"
)

type Registry struct {
	integrators map[string]func() dynamo.Integrator
}

func NewRegistry() *Registry {
	r := &Registry{
		integrators: make(map[string]func() dynamo.Integrator),
	}
	r.integrators["euler"] = func() dynamo.Integrator { return integrators.NewEuler() }
	r.integrators["rk4"] = func() dynamo.Integrator { return integrators.NewRK4() }
	r.integrators["semi_implicit"] = func() dynamo.Integrator { return integrators.NewSemiImplicitEuler() }
	return r
}

func (r *Registry) GetIntegrator(name string) (dynamo.Integrator, error) {
	if name == "" {
		name = config.DefaultIntegrator
	}
	fn, ok := r.integrators[name]
	if !ok {
		return nil, errors.Errorf("unknown integrator: %s", name)
	}
	return fn(), nil
}

func (r *Registry) ListIntegrators() []string {
	names := make([]string, 0, len(r.integrators))
	for name := range r.integrators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) GetRobot(name string) (solver.Robot, error) {
	robot, ok := solver.Lookup(name)
	if !ok {
		return solver.Robot{}, errors.Errorf("unknown robot: %s", name)
	}
	return robot, nil
}

func (r *Registry) ListRobots() []string {
	return solver.RobotNames()
}

func originPose(o config.OriginConfig) spatialmath.Pose {
	return spatial.NewPose(
		r3.Vector{X: o.XYZ[0], Y: o.XYZ[1], Z: o.XYZ[2]},
		spatial.FromRPY(o.RPY[0], o.RPY[1], o.RPY[2]),
	)
}

// BuildRobot turns the robot section into a chain and start positions.
func (r *Registry) BuildRobot(cfg *config.Config) (solver.Robot, error) {
	rc := cfg.Robot
	if name := rc.PresetName(); name != "" {
		robot, err := r.GetRobot(name)
		if err != nil {
			return solver.Robot{}, err
		}
		if len(rc.StartPositions) > 0 {
			if len(rc.StartPositions) != robot.Chain.NumJoints() {
				return solver.Robot{}, errors.Errorf("robot %s has %d joints, start_positions has %d",
					name, robot.Chain.NumJoints(), len(rc.StartPositions))
			}
			robot.Home = append([]float64(nil), rc.StartPositions...)
		}
		return robot, nil
	}

	chain := &solver.Chain{
		BaseLink:        cfg.Controller.RobotBaseLink,
		EndEffectorLink: cfg.Controller.EndEffectorLink,
		Joints:          make([]solver.Joint, len(rc.Joints)),
	}
	for i, jc := range rc.Joints {
		typ, err := solver.ParseJointType(jc.Type)
		if err != nil {
			return solver.Robot{}, errors.Wrapf(err, "joint %s", jc.Name)
		}
		j := solver.Joint{
			Name:   jc.Name,
			Type:   typ,
			Origin: originPose(jc.Origin),
			Axis:   r3.Vector{X: jc.Axis[0], Y: jc.Axis[1], Z: jc.Axis[2]},
		}
		if jc.Limits != nil {
			j.Limited, j.Lower, j.Upper = true, jc.Limits.Lower, jc.Limits.Upper
		}
		chain.Joints[i] = j
	}
	if rc.Tip != nil {
		chain.Tip = originPose(*rc.Tip)
	}
	if err := chain.Validate(); err != nil {
		return solver.Robot{}, err
	}

	home := make([]float64, len(chain.Joints))
	copy(home, rc.StartPositions)
	return solver.Robot{Chain: chain, Home: home}, nil
}

// BuildSolver creates the forward dynamics model for robot with the
// integrator and inertia settings of the robot section.
func (r *Registry) BuildSolver(rc config.RobotConfig, robot solver.Robot) (*solver.ForwardDynamics, error) {
	integ, err := r.GetIntegrator(rc.Integrator)
	if err != nil {
		return nil, err
	}
	params := solver.DefaultParams()
	if rc.Mass > 0 {
		params.Mass = rc.Mass
	}
	if rc.Inertia > 0 {
		params.Inertia = rc.Inertia
	}
	if rc.Damping != nil {
		params.Damping = *rc.Damping
	}
	return solver.New(robot.Chain, integ, params)
}

// BuildHardware opens the configured driver. Fake hardware starts at home.
func BuildHardware(ctx context.Context, hc config.HardwareConfig, home []float64) (hardware.Interface, error) {
	kind, err := hardware.ParseKind(hc.Interface)
	if err != nil {
		return nil, err
	}
	switch hc.Driver {
	case "", "fake":
		return hardware.NewFake(kind, home), nil
	case "feetech":
		if kind != hardware.Position {
			return nil, errors.Errorf("feetech servos only take position commands, not %s", kind)
		}
		servos := make([]hardware.Servo, len(hc.Servos))
		for i, s := range hc.Servos {
			servos[i] = hardware.Servo{ID: s.ID, Offset: s.Offset, Inverted: s.Inverted}
		}
		return hardware.OpenFeetech(ctx, hardware.FeetechConfig{
			Port:     hc.Port,
			BaudRate: hc.BaudRate,
			Servos:   servos,
		})
	default:
		return nil, errors.Errorf("unknown hardware driver: %s", hc.Driver)
	}
}

// ControllerConfig maps the controller section onto controller.Config.
func ControllerConfig(cc config.ControllerConfig) controller.Config {
	cfg := controller.Config{
		RobotBaseLink:    cc.RobotBaseLink,
		EndEffectorLink:  cc.EndEffectorLink,
		TargetFrameTopic: cc.TargetFrameTopic,
		TargetTwistTopic: cc.TargetTwistTopic,
		CurrentPoseTopic: cc.CurrentPoseTopic,
		ErrorScale:       cc.ErrorScale,
		Iterations:       cc.Iterations,
		Bounds:           controller.Bounds{MaxAngle: cc.MaxAngle, MaxDistance: cc.MaxDistance},
	}
	if len(cc.Gains.P) == 6 || len(cc.Gains.D) == 6 {
		gains := control.DefaultGains()
		copy(gains.P[:], cc.Gains.P)
		copy(gains.D[:], cc.Gains.D)
		cfg.Gains = gains
	}
	return cfg
}

// Rig is a controller wired to its solver and hardware.
type Rig struct {
	Robot      solver.Robot
	Solver     *solver.ForwardDynamics
	Hardware   hardware.Interface
	Controller *controller.Controller
}

// Build validates cfg and assembles a rig. The controller is initialized but
// not started.
func (r *Registry) Build(ctx context.Context, logger logging.Logger, cfg *config.Config) (*Rig, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	robot, err := r.BuildRobot(cfg)
	if err != nil {
		return nil, err
	}
	fd, err := r.BuildSolver(cfg.Robot, robot)
	if err != nil {
		return nil, err
	}
	hw, err := BuildHardware(ctx, cfg.Hardware, robot.Home)
	if err != nil {
		return nil, err
	}

	ctrl := controller.New(logger.Sublogger("controller"), fd, hw)
	if err := ctrl.Init(ControllerConfig(cfg.Controller)); err != nil {
		_ = hw.Close(ctx)
		return nil, err
	}
	return &Rig{Robot: robot, Solver: fd, Hardware: hw, Controller: ctrl}, nil
}

// Close releases the hardware.
func (rig *Rig) Close(ctx context.Context) error {
	return rig.Hardware.Close(ctx)
}
