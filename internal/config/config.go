package config

import (
	"os"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

const (
	DefaultRobot      = "gantry"
	DefaultIntegrator = "euler"
	DefaultInterface  = "position"
	DefaultDriver     = "fake"
	DefaultHz         = 50.0
	DefaultAddr       = ":8080"
	DefaultStreamHz   = 30.0
	DefaultBaudRate   = 1000000
	DefaultDuration   = 5.0
	MaxHz             = 1000.0
)

type Config struct {
	Controller ControllerConfig `yaml:"controller"`
	Robot      RobotConfig      `yaml:"robot"`
	Hardware   HardwareConfig   `yaml:"hardware"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Server     ServerConfig     `yaml:"server"`
	Scenario   ScenarioConfig   `yaml:"scenario"`
}

type ControllerConfig struct {
	RobotBaseLink    string      `yaml:"robot_base_link"`
	EndEffectorLink  string      `yaml:"end_effector_link"`
	TargetFrameTopic string      `yaml:"target_frame_topic,omitempty"`
	TargetTwistTopic string      `yaml:"target_twist_topic,omitempty"`
	CurrentPoseTopic string      `yaml:"current_pose_topic,omitempty"`
	ErrorScale       float64     `yaml:"error_scale,omitempty"`
	Iterations       int         `yaml:"iterations,omitempty"`
	MaxAngle         float64     `yaml:"max_angle,omitempty"`
	MaxDistance      float64     `yaml:"max_distance,omitempty"`
	Gains            GainsConfig `yaml:"pd_gains,omitempty"`
}

// GainsConfig holds per-axis gains ordered trans_x, trans_y, trans_z, rot_x,
// rot_y, rot_z. Empty lists keep the defaults.
type GainsConfig struct {
	P []float64 `yaml:"p,omitempty"`
	D []float64 `yaml:"d,omitempty"`
}

// RobotConfig describes the kinematic chain, either as a built-in preset or
// as an explicit joint list from base to end effector.
type RobotConfig struct {
	Preset         string        `yaml:"preset,omitempty"`
	Joints         []JointConfig `yaml:"joints,omitempty"`
	Tip            *OriginConfig `yaml:"tip,omitempty"`
	StartPositions []float64     `yaml:"start_positions,omitempty"`
	Integrator     string        `yaml:"integrator,omitempty"`
	Mass           float64       `yaml:"mass,omitempty"`
	Inertia        float64       `yaml:"inertia,omitempty"`
	// Damping is the fraction of joint velocity kept per internal step.
	// Unset keeps the solver default; 0 removes all velocity every step.
	Damping *float64 `yaml:"damping,omitempty"`
}

type JointConfig struct {
	Name   string       `yaml:"name"`
	Type   string       `yaml:"type"`
	Origin OriginConfig `yaml:"origin"`
	Axis   [3]float64   `yaml:"axis"`
	Limits *LimitConfig `yaml:"limits,omitempty"`
}

type OriginConfig struct {
	XYZ [3]float64 `yaml:"xyz"`
	RPY [3]float64 `yaml:"rpy"`
}

type LimitConfig struct {
	Lower float64 `yaml:"lower"`
	Upper float64 `yaml:"upper"`
}

type HardwareConfig struct {
	Interface string        `yaml:"interface"`
	Driver    string        `yaml:"driver"`
	Port      string        `yaml:"port,omitempty"`
	BaudRate  int           `yaml:"baud_rate,omitempty"`
	Servos    []ServoConfig `yaml:"servos,omitempty"`
}

type ServoConfig struct {
	ID       int  `yaml:"id"`
	Offset   int  `yaml:"offset,omitempty"`
	Inverted bool `yaml:"inverted,omitempty"`
}

type SchedulerConfig struct {
	Hz float64 `yaml:"hz"`
}

type ServerConfig struct {
	Addr     string  `yaml:"addr"`
	StreamHz float64 `yaml:"stream_hz,omitempty"`
}

// ScenarioConfig is an offline run: a timed list of target events played
// against the simulated robot.
type ScenarioConfig struct {
	Name     string        `yaml:"name,omitempty"`
	Duration float64       `yaml:"duration"`
	Events   []EventConfig `yaml:"events,omitempty"`
}

// EventConfig fires at At seconds with either an absolute pose or a twist.
type EventConfig struct {
	At    float64      `yaml:"at"`
	Frame string       `yaml:"frame,omitempty"`
	Pose  *PoseConfig  `yaml:"pose,omitempty"`
	Twist *TwistConfig `yaml:"twist,omitempty"`
}

type PoseConfig struct {
	Position [3]float64 `yaml:"position"`
	RPY      [3]float64 `yaml:"rpy"`
}

type TwistConfig struct {
	Linear  [3]float64 `yaml:"linear"`
	Angular [3]float64 `yaml:"angular"`
}

func DefaultConfig() *Config {
	return &Config{
		Controller: ControllerConfig{
			RobotBaseLink:   "base_link",
			EndEffectorLink: "tool0",
		},
		Robot: RobotConfig{
			Integrator: DefaultIntegrator,
		},
		Hardware: HardwareConfig{
			Interface: DefaultInterface,
			Driver:    DefaultDriver,
		},
		Scheduler: SchedulerConfig{Hz: DefaultHz},
		Server:    ServerConfig{Addr: DefaultAddr, StreamHz: DefaultStreamHz},
		Scenario:  ScenarioConfig{Duration: DefaultDuration},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate reports every problem in the configuration at once.
func (c *Config) Validate() error {
	var err error
	if c.Controller.RobotBaseLink == "" {
		err = multierr.Append(err, errors.New("controller.robot_base_link is required"))
	}
	if c.Controller.EndEffectorLink == "" {
		err = multierr.Append(err, errors.New("controller.end_effector_link is required"))
	}
	if c.Controller.ErrorScale < 0 {
		err = multierr.Append(err, errors.Errorf("controller.error_scale must not be negative, got %v", c.Controller.ErrorScale))
	}
	if c.Controller.Iterations < 0 {
		err = multierr.Append(err, errors.Errorf("controller.iterations must not be negative, got %d", c.Controller.Iterations))
	}
	if c.Controller.MaxAngle < 0 || c.Controller.MaxDistance < 0 {
		err = multierr.Append(err, errors.New("controller.max_angle and max_distance must not be negative"))
	}
	for name, g := range map[string][]float64{"p": c.Controller.Gains.P, "d": c.Controller.Gains.D} {
		if len(g) != 0 && len(g) != 6 {
			err = multierr.Append(err, errors.Errorf("controller.pd_gains.%s needs 6 values, got %d", name, len(g)))
		}
	}

	err = multierr.Append(err, c.Robot.validate())
	err = multierr.Append(err, c.Hardware.validate(c.Robot.NumJoints()))

	if c.Scheduler.Hz <= 0 || c.Scheduler.Hz > MaxHz {
		err = multierr.Append(err, errors.Errorf("scheduler.hz must be in (0, %.0f], got %v", MaxHz, c.Scheduler.Hz))
	}
	for i, ev := range c.Scenario.Events {
		if ev.At < 0 {
			err = multierr.Append(err, errors.Errorf("scenario.events[%d].at must not be negative", i))
		}
		if (ev.Pose == nil) == (ev.Twist == nil) {
			err = multierr.Append(err, errors.Errorf("scenario.events[%d] needs exactly one of pose or twist", i))
		}
	}
	if len(c.Scenario.Events) > 0 && c.Scenario.Duration <= 0 {
		err = multierr.Append(err, errors.New("scenario.duration must be positive"))
	}
	return err
}

// NumJoints is the number of explicit joints, or zero for a preset.
func (r *RobotConfig) NumJoints() int {
	return len(r.Joints)
}

// PresetName returns the preset to build, DefaultRobot when neither a preset
// nor joints are given, and "" for an explicit joint list.
func (r *RobotConfig) PresetName() string {
	if len(r.Joints) > 0 {
		return ""
	}
	if r.Preset == "" {
		return DefaultRobot
	}
	return r.Preset
}

func (r *RobotConfig) validate() error {
	var err error
	if r.Preset != "" && len(r.Joints) > 0 {
		err = multierr.Append(err, errors.New("robot.preset and robot.joints are mutually exclusive"))
	}
	for i, j := range r.Joints {
		switch j.Type {
		case "revolute", "continuous", "prismatic", "":
		default:
			err = multierr.Append(err, errors.Errorf("robot.joints[%d] (%s): unknown type %q", i, j.Name, j.Type))
		}
		if j.Axis == [3]float64{} {
			err = multierr.Append(err, errors.Errorf("robot.joints[%d] (%s): axis is zero", i, j.Name))
		}
		if j.Limits != nil && j.Limits.Lower > j.Limits.Upper {
			err = multierr.Append(err, errors.Errorf("robot.joints[%d] (%s): lower limit above upper", i, j.Name))
		}
	}
	if len(r.Joints) > 0 && len(r.StartPositions) != 0 && len(r.StartPositions) != len(r.Joints) {
		err = multierr.Append(err, errors.Errorf("robot.start_positions has %d values for %d joints", len(r.StartPositions), len(r.Joints)))
	}
	if r.Mass < 0 || r.Inertia < 0 {
		err = multierr.Append(err, errors.New("robot.mass and robot.inertia must not be negative"))
	}
	if r.Damping != nil && (*r.Damping < 0 || *r.Damping > 1) {
		err = multierr.Append(err, errors.Errorf("robot.damping must be in [0, 1], got %v", *r.Damping))
	}
	return err
}

func (h *HardwareConfig) validate(joints int) error {
	var err error
	switch h.Interface {
	case "position", "velocity", "effort", "":
	default:
		err = multierr.Append(err, errors.Errorf("hardware.interface: unknown interface %q", h.Interface))
	}
	switch h.Driver {
	case "fake", "":
	case "feetech":
		if h.Port == "" {
			err = multierr.Append(err, errors.New("hardware.port is required for the feetech driver"))
		}
		if len(h.Servos) == 0 {
			err = multierr.Append(err, errors.New("hardware.servos is required for the feetech driver"))
		}
		if joints > 0 && len(h.Servos) != joints {
			err = multierr.Append(err, errors.Errorf("hardware.servos has %d entries for %d joints", len(h.Servos), joints))
		}
	default:
		err = multierr.Append(err, errors.Errorf("hardware.driver: unknown driver %q", h.Driver))
	}
	return err
}
