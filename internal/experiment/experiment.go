package experiment

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"

	"github.com/lkotsoni/cartesian-controllers/internal/config"
	"github.com/lkotsoni/cartesian-controllers/internal/controller"
	"github.com/lkotsoni/cartesian-controllers/internal/dynamo"
	"github.com/lkotsoni/cartesian-controllers/internal/metrics"
	"github.com/lkotsoni/cartesian-controllers/internal/scheduler"
	"github.com/lkotsoni/cartesian-controllers/internal/spatial"
	"github.com/lkotsoni/cartesian-controllers/internal/storage"
)

// epoch is the virtual clock origin of offline runs, so that repeated runs
// produce identical samples.
var epoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

type Result struct {
	Samples  []storage.Sample
	Metrics  map[string]float64
	Cycles   int
	Rejected int
	Mode     string
}

// Experiment plays a scenario against a simulated robot on a virtual clock.
// The hardware is always a fake of the configured interface kind.
type Experiment struct {
	cfg     *config.Config
	logger  logging.Logger
	rig     *Rig
	metrics []dynamo.Metric
	events  []config.EventConfig
}

func New(ctx context.Context, logger logging.Logger, cfg *config.Config) (*Experiment, error) {
	offline := *cfg
	offline.Hardware.Driver = "fake"

	rig, err := NewRegistry().Build(ctx, logger, &offline)
	if err != nil {
		return nil, err
	}
	b := rig.Controller.Config().Bounds

	events := append([]config.EventConfig(nil), cfg.Scenario.Events...)
	sort.SliceStable(events, func(i, j int) bool { return events[i].At < events[j].At })

	return &Experiment{
		cfg:     &offline,
		logger:  logger,
		rig:     rig,
		metrics: metrics.Default(b.MaxAngle, b.MaxDistance),
		events:  events,
	}, nil
}

func (e *Experiment) Rig() *Rig {
	return e.rig
}

func (e *Experiment) AddMetric(m dynamo.Metric) {
	e.metrics = append(e.metrics, m)
}

func (e *Experiment) Run(ctx context.Context) (*Result, error) {
	ctrl := e.rig.Controller
	if err := ctrl.Start(ctx); err != nil {
		return nil, err
	}
	defer func() {
		if err := ctrl.Stop(ctx); err != nil {
			e.logger.Warnf("stopping controller: %v", err)
		}
	}()

	for _, m := range e.metrics {
		m.Reset()
	}

	hz := e.cfg.Scheduler.Hz
	period := time.Duration(float64(time.Second) / hz)
	cycles := int(math.Round(e.cfg.Scenario.Duration * hz))
	result := &Result{
		Samples: make([]storage.Sample, 0, cycles),
		Metrics: make(map[string]float64),
		Mode:    ctrl.Mode().String(),
	}

	next := 0
	step := scheduler.UpdaterFunc(func(ctx context.Context, now time.Time, period time.Duration) {
		t := now.Sub(epoch).Seconds()
		for next < len(e.events) && e.events[next].At <= t {
			if err := e.fire(e.events[next]); err != nil {
				result.Rejected++
				e.logger.Debugf("event at %.2fs rejected: %v", e.events[next].At, err)
			}
			next++
		}
		ctrl.Update(ctx, now, period)
		result.Samples = append(result.Samples, e.record(ctx, t))
		result.Cycles++
	})

	if _, err := scheduler.Drive(ctx, step, epoch, period, cycles); err != nil {
		return result, err
	}

	for _, m := range e.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	return result, nil
}

func (e *Experiment) fire(ev config.EventConfig) error {
	ctrl := e.rig.Controller
	switch {
	case ev.Pose != nil:
		frame := ev.Frame
		if frame == "" {
			frame = ctrl.Config().RobotBaseLink
		}
		p := ev.Pose
		pose := spatial.NewPose(
			r3.Vector{X: p.Position[0], Y: p.Position[1], Z: p.Position[2]},
			spatial.FromRPY(p.RPY[0], p.RPY[1], p.RPY[2]),
		)
		return ctrl.SetTargetFrame(frame, pose)
	case ev.Twist != nil:
		tw := ev.Twist
		return ctrl.SetTargetTwist(controller.Twist{
			Linear:  r3.Vector{X: tw.Linear[0], Y: tw.Linear[1], Z: tw.Linear[2]},
			Angular: r3.Vector{X: tw.Angular[0], Y: tw.Angular[1], Z: tw.Angular[2]},
		})
	default:
		return errors.New("event has neither pose nor twist")
	}
}

// record samples the state after a cycle and feeds the metrics. The
// metrics see the unbounded residual; the controller only ever sees it
// clamped.
func (e *Experiment) record(ctx context.Context, t float64) storage.Sample {
	ctrl := e.rig.Controller
	current := e.rig.Solver.EndEffectorPose()

	smp := storage.Sample{Time: t}
	p := current.Point()
	q := current.Orientation().Quaternion()
	smp.Position = [3]float64{p.X, p.Y, p.Z}
	smp.Orientation = [4]float64{q.Real, q.Imag, q.Jmag, q.Kmag}

	var errVec dynamo.Vector6
	if target := ctrl.Target(); target != nil {
		tp := target.Pose.Point()
		smp.TargetPosition = [3]float64{tp.X, tp.Y, tp.Z}
		errVec = controller.Residual(current, target.Pose)
	}
	smp.Error = errVec

	if st, err := e.rig.Hardware.State(ctx); err == nil {
		smp.Joints = st.Positions
	}

	cmd := dynamo.State(e.rig.Solver.Velocities())
	for _, m := range e.metrics {
		m.Observe(errVec, cmd, t)
	}
	return smp
}

// Metadata describes the run for storage.
func (e *Experiment) Metadata(res *Result) storage.RunMetadata {
	name := e.cfg.Robot.PresetName()
	if name == "" {
		name = "custom"
	}
	return storage.RunMetadata{
		Scenario:   e.cfg.Scenario.Name,
		Robot:      name,
		Interface:  e.rig.Hardware.Kind().String(),
		Mode:       res.Mode,
		Integrator: e.cfg.Robot.Integrator,
		Hz:         e.cfg.Scheduler.Hz,
		Duration:   e.cfg.Scenario.Duration,
		Cycles:     res.Cycles,
		Rejected:   res.Rejected,
		Joints:     e.rig.Robot.Chain.JointNames(),
		Metrics:    res.Metrics,
	}
}
