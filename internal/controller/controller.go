package controller

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/spatialmath"
	"golang.org/x/time/rate"
	"gonum.org/v1/gonum/num/quat"

	"github.com/lkotsoni/cartesian-controllers/internal/control"
	"github.com/lkotsoni/cartesian-controllers/internal/dynamo"
	"github.com/lkotsoni/cartesian-controllers/internal/hardware"
	"github.com/lkotsoni/cartesian-controllers/internal/spatial"
)

const (
	DefaultTargetFrameTopic = "target_frame"
	DefaultTargetTwistTopic = "target_twist"
	DefaultCurrentPoseTopic = "current_pose"
	DefaultErrorScale       = 1.0
	DefaultIterations       = 1

	// InternalPeriod is the fixed step of the internal simulation,
	// independent of the outer control period.
	InternalPeriod = 20 * time.Millisecond

	warnInterval = 3 * time.Second
)

// Solver is the forward-dynamics model the controller drives.
type Solver interface {
	Advance(input dynamo.Vector6, dt float64) error
	EndEffectorPose() spatialmath.Pose
	SetStartState(positions []float64) error
	Sync(positions, velocities []float64) error
	Positions() []float64
	Velocities() []float64
}

type Config struct {
	RobotBaseLink    string
	EndEffectorLink  string
	TargetFrameTopic string
	TargetTwistTopic string
	CurrentPoseTopic string
	ErrorScale       float64
	Iterations       int
	Bounds           Bounds
	Gains            control.Gains
}

// validate fills defaults, logging each one, and rejects missing required
// parameters.
func (cfg *Config) validate(logger logging.Logger) error {
	if cfg.RobotBaseLink == "" {
		return errors.Wrap(ErrMissingParam, "robot_base_link")
	}
	if cfg.EndEffectorLink == "" {
		return errors.Wrap(ErrMissingParam, "end_effector_link")
	}
	if cfg.TargetFrameTopic == "" {
		cfg.TargetFrameTopic = DefaultTargetFrameTopic
		logger.Warnf("target_frame_topic not set, using default %q", cfg.TargetFrameTopic)
	}
	if cfg.TargetTwistTopic == "" {
		cfg.TargetTwistTopic = DefaultTargetTwistTopic
		logger.Infof("target_twist_topic not set, using default %q", cfg.TargetTwistTopic)
	}
	if cfg.CurrentPoseTopic == "" {
		cfg.CurrentPoseTopic = DefaultCurrentPoseTopic
		logger.Infof("current_pose_topic not set, using default %q", cfg.CurrentPoseTopic)
	}
	if cfg.ErrorScale <= 0 {
		cfg.ErrorScale = DefaultErrorScale
		logger.Infof("error_scale not set, using default %.2f", cfg.ErrorScale)
	}
	if cfg.Iterations < 1 {
		cfg.Iterations = DefaultIterations
		logger.Infof("iterations not set, using default %d", cfg.Iterations)
	}
	if cfg.Bounds.MaxAngle <= 0 {
		cfg.Bounds.MaxAngle = DefaultMaxAngle
	}
	if cfg.Bounds.MaxDistance <= 0 {
		cfg.Bounds.MaxDistance = DefaultMaxDistance
	}
	if cfg.Gains == (control.Gains{}) {
		cfg.Gains = control.DefaultGains()
	}
	return nil
}

type State int32

const (
	Uninitialized State = iota
	Idle
	Running
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Idle:
		return "idle"
	case Running:
		return "running"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Status is a point-in-time summary for monitoring.
type Status struct {
	State      State
	Mode       string
	Paused     bool
	Cycles     uint64
	ErrorScale float64
	Iterations int
	BaseLink   string
	LastError  dynamo.Vector6
}

// Controller is the Cartesian motion controller. Init, Start, Stop, Pause
// and Resume may be called from any goroutine; Update must be called from a
// single control goroutine.
type Controller struct {
	logger logging.Logger
	solver Solver
	hw     hardware.Interface

	// lifecycle transitions
	mu    sync.Mutex
	cfg   Config
	mode  Mode
	pd    *control.SpatialPD
	state atomic.Int32

	paused     atomic.Bool
	errorScale atomic.Uint64
	iterations atomic.Int64
	cycles     atomic.Uint64

	target    TargetHolder
	current   TargetHolder
	last      atomic.Pointer[Sample]
	observers atomic.Pointer[[]Observer]

	frameWarn rate.Sometimes
	inputWarn rate.Sometimes
	cycleWarn rate.Sometimes
}

func New(logger logging.Logger, solver Solver, hw hardware.Interface) *Controller {
	c := &Controller{
		logger:    logger,
		solver:    solver,
		hw:        hw,
		frameWarn: rate.Sometimes{Interval: warnInterval},
		inputWarn: rate.Sometimes{Interval: warnInterval},
		cycleWarn: rate.Sometimes{Interval: warnInterval},
	}
	c.observers.Store(&[]Observer{})
	return c
}

// Init validates the configuration and selects the simulation mode.
func (c *Controller) Init(cfg Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.State() == Running {
		return ErrRunning
	}
	if err := cfg.validate(c.logger); err != nil {
		return err
	}

	c.cfg = cfg
	c.pd = control.NewSpatialPD(cfg.Gains)
	c.setErrorScale(cfg.ErrorScale)
	c.iterations.Store(int64(cfg.Iterations))
	c.mode = ModeFor(c.hw.Kind(), cfg.Iterations)
	c.state.Store(int32(Idle))

	c.logger.Infof("initialized for %s -> %s with %s hardware, %s mode",
		cfg.RobotBaseLink, cfg.EndEffectorLink, c.hw.Kind(), c.mode)
	return nil
}

// Start copies the measured joint state into the simulation and seeds the
// target with the resulting end effector pose, so activation causes no jump.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.State() {
	case Uninitialized:
		return ErrNotInitialized
	case Running:
		return ErrRunning
	}

	st, err := c.hw.State(ctx)
	if err != nil {
		return errors.Wrap(err, "read joint state")
	}
	if err := c.solver.SetStartState(st.Positions); err != nil {
		return errors.Wrap(err, "seed simulation")
	}

	c.mode = ModeFor(c.hw.Kind(), int(c.iterations.Load()))
	c.pd.Reset()
	c.paused.Store(false)

	now := time.Now()
	seed := PoseStamped{FrameID: c.cfg.RobotBaseLink, Stamp: now, Pose: c.solver.EndEffectorPose()}
	c.current.Store(seed)
	c.target.Store(seed)
	c.state.Store(int32(Running))

	p := seed.Pose.Point()
	c.logger.Infof("started in %s mode at (%.3f, %.3f, %.3f)", c.mode, p.X, p.Y, p.Z)
	return nil
}

// Stop returns to Idle and drops the target. Velocity hardware is commanded
// to rest. Stopping an idle controller is a no-op.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.State() != Running {
		return nil
	}
	c.state.Store(int32(Idle))
	c.target.Clear()

	if c.hw.Kind() == hardware.Velocity {
		rest := hardware.Command{
			Positions:  c.solver.Positions(),
			Velocities: make([]float64, len(c.solver.Positions())),
		}
		if err := c.hw.Write(ctx, rest); err != nil {
			return errors.Wrap(err, "command rest")
		}
	}
	c.logger.Infof("stopped after %d cycles", c.cycles.Load())
	return nil
}

// Pause freezes command computation and write-back until Resume.
func (c *Controller) Pause() {
	if !c.paused.Swap(true) {
		c.logger.Info("paused")
	}
}

func (c *Controller) Resume() {
	if c.paused.Swap(false) {
		c.logger.Info("resumed")
	}
}

func (c *Controller) State() State {
	return State(c.state.Load())
}

func (c *Controller) Paused() bool {
	return c.paused.Load()
}

// Mode returns the simulation mode of the current activation.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Config returns the validated configuration.
func (c *Controller) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// Update runs one outer control cycle. Anomalies inside the cycle are
// logged and turn the cycle into a no-op; nothing is returned.
func (c *Controller) Update(ctx context.Context, now time.Time, period time.Duration) {
	if c.State() != Running || c.paused.Load() {
		return
	}

	if c.hw.Kind() == hardware.Velocity {
		st, err := c.hw.State(ctx)
		if err == nil {
			err = c.solver.Sync(st.Positions, st.Velocities)
		}
		if err != nil {
			c.cycleWarn.Do(func() { c.logger.Warnf("skipping cycle, cannot sync joint state: %v", err) })
			return
		}
	}

	target := c.target.Load()
	if target == nil {
		return
	}

	cycle := c.cycles.Add(1)
	scale := c.ErrorScale()
	dt := InternalPeriod.Seconds()
	for i := 0; i < c.mode.Steps(); i++ {
		e := c.computeMotionError(cycle, now, target.Pose)
		input := c.pd.Compute(e, dt).Scale(scale)
		if err := c.solver.Advance(input, dt); err != nil {
			c.cycleWarn.Do(func() { c.logger.Warnf("internal simulation step rejected: %v", err) })
			break
		}
	}

	cmd := hardware.Command{
		Positions:  c.solver.Positions(),
		Velocities: c.solver.Velocities(),
		Period:     period,
	}
	if err := c.hw.Write(ctx, cmd); err != nil {
		c.cycleWarn.Do(func() { c.logger.Warnf("joint command write failed: %v", err) })
	}
}

// computeMotionError samples the solver's current pose, publishes it and
// returns the bounded error towards target.
func (c *Controller) computeMotionError(cycle uint64, now time.Time, target spatialmath.Pose) dynamo.Vector6 {
	current := c.solver.EndEffectorPose()
	e := MotionError(current, target, c.cfg.Bounds)

	c.current.Store(PoseStamped{FrameID: c.cfg.RobotBaseLink, Stamp: now, Pose: current})
	s := Sample{
		Cycle:   cycle,
		Time:    now,
		FrameID: c.cfg.RobotBaseLink,
		Current: current,
		Target:  target,
		Error:   e,
	}
	c.last.Store(&s)
	for _, o := range *c.observers.Load() {
		o.OnSample(s)
	}
	return e
}

// SetTargetFrame replaces the target with an absolute pose given in frameID.
// Poses in any frame other than the robot base link are dropped with a
// throttled warning and the target stays unchanged.
func (c *Controller) SetTargetFrame(frameID string, pose spatialmath.Pose) error {
	if c.State() != Running {
		return ErrNotRunning
	}
	base := c.cfg.RobotBaseLink
	if frameID != base {
		c.frameWarn.Do(func() {
			c.logger.Warnf("got target pose in wrong reference frame, expected %q but got %q", base, frameID)
		})
		return ErrFrameMismatch
	}
	if pose == nil || !spatial.PoseIsFinite(pose) {
		c.inputWarn.Do(func() { c.logger.Warn("dropping target pose with non-finite components") })
		return ErrInvalidPose
	}
	q, err := spatial.NormalizeQuaternion(pose.Orientation().Quaternion())
	if err != nil {
		c.inputWarn.Do(func() { c.logger.Warnf("dropping target pose: %v", err) })
		return errors.Wrap(ErrInvalidPose, "orientation")
	}

	c.target.Store(PoseStamped{FrameID: frameID, Stamp: time.Now(), Pose: spatial.NewPose(pose.Point(), q)})
	return nil
}

// SetTargetTwist sets the target to the last published current pose moved
// by the twist: position plus linear, and orientation left-multiplied by the
// roll-pitch-yaw rotation of angular. This is a first-order increment; rapid
// large twists do not compose exactly.
func (c *Controller) SetTargetTwist(tw Twist) error {
	if c.State() != Running {
		return ErrNotRunning
	}
	last := c.current.Load()
	if last == nil {
		return ErrNoCurrentPose
	}
	if !dynamo.NewVector6(tw.Linear, tw.Angular).IsValid() {
		c.inputWarn.Do(func() { c.logger.Warn("dropping twist with non-finite components") })
		return ErrInvalidTwist
	}

	delta := spatial.FromRPY(tw.Angular.X, tw.Angular.Y, tw.Angular.Z)
	q, err := spatial.NormalizeQuaternion(quat.Mul(delta, last.Pose.Orientation().Quaternion()))
	if err != nil {
		return errors.Wrap(ErrInvalidTwist, "orientation")
	}
	p := last.Pose.Point().Add(tw.Linear)

	c.target.Store(PoseStamped{FrameID: last.FrameID, Stamp: time.Now(), Pose: spatial.NewPose(p, q)})
	return nil
}

// Target returns the current target snapshot, nil when not running.
func (c *Controller) Target() *PoseStamped {
	return c.target.Load()
}

// CurrentPose returns the last published current pose, nil before Start.
func (c *Controller) CurrentPose() *PoseStamped {
	return c.current.Load()
}

// LastSample returns the most recent motion error computation.
func (c *Controller) LastSample() (Sample, bool) {
	s := c.last.Load()
	if s == nil {
		return Sample{}, false
	}
	return *s, true
}

// AddObserver registers o for every subsequent sample.
func (c *Controller) AddObserver(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	old := *c.observers.Load()
	next := make([]Observer, len(old), len(old)+1)
	copy(next, old)
	next = append(next, o)
	c.observers.Store(&next)
}

func (c *Controller) ErrorScale() float64 {
	return math.Float64frombits(c.errorScale.Load())
}

func (c *Controller) setErrorScale(v float64) {
	c.errorScale.Store(math.Float64bits(v))
}

func (c *Controller) Status() Status {
	st := Status{
		State:      c.State(),
		Mode:       c.Mode().String(),
		Paused:     c.Paused(),
		Cycles:     c.cycles.Load(),
		ErrorScale: c.ErrorScale(),
		Iterations: int(c.iterations.Load()),
		BaseLink:   c.Config().RobotBaseLink,
	}
	if s, ok := c.LastSample(); ok {
		st.LastError = s.Error
	}
	return st
}
