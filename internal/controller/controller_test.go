package controller_test

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/golang/geo/r3"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"gonum.org/v1/gonum/num/quat"

	"github.com/lkotsoni/cartesian-controllers/internal/controller"
	"github.com/lkotsoni/cartesian-controllers/internal/dynamo"
	"github.com/lkotsoni/cartesian-controllers/internal/hardware"
	"github.com/lkotsoni/cartesian-controllers/internal/integrators"
	"github.com/lkotsoni/cartesian-controllers/internal/solver"
	"github.com/lkotsoni/cartesian-controllers/internal/spatial"
)

const period = 20 * time.Millisecond

type rig struct {
	ctrl *controller.Controller
	fd   *solver.ForwardDynamics
	hw   *hardware.Fake
}

func newRig(logger logging.Logger, kind hardware.Kind, iterations int) rig {
	robot := solver.Gantry()
	fd, err := solver.New(robot.Chain, integrators.NewEuler(), solver.DefaultParams())
	Expect(err).NotTo(HaveOccurred())
	hw := hardware.NewFake(kind, robot.Home)
	c := controller.New(logger, fd, hw)
	Expect(c.Init(controller.Config{
		RobotBaseLink:   "base_link",
		EndEffectorLink: "tool0",
		Iterations:      iterations,
	})).To(Succeed())
	return rig{ctrl: c, fd: fd, hw: hw}
}

func (r rig) residual() float64 {
	return controller.MotionError(r.fd.EndEffectorPose(), r.ctrl.Target().Pose, controller.DefaultBounds()).Norm()
}

func (r rig) run(cycles int) {
	now := time.Now()
	for i := 0; i < cycles; i++ {
		r.ctrl.Update(context.Background(), now.Add(time.Duration(i)*period), period)
	}
}

var _ = Describe("Controller", func() {
	var (
		ctx context.Context
		r   rig
	)

	BeforeEach(func() {
		ctx = context.Background()
		r = newRig(logging.NewTestLogger(GinkgoTB()), hardware.Position, 1)
	})

	Describe("lifecycle", func() {
		It("refuses to start before Init", func() {
			c := controller.New(logging.NewTestLogger(GinkgoTB()), r.fd, r.hw)
			Expect(c.Start(ctx)).To(MatchError(controller.ErrNotInitialized))
			Expect(c.State()).To(Equal(controller.Uninitialized))
		})

		It("requires the robot base link and end effector link", func() {
			c := controller.New(logging.NewTestLogger(GinkgoTB()), r.fd, r.hw)
			err := c.Init(controller.Config{EndEffectorLink: "tool0"})
			Expect(errors.Is(err, controller.ErrMissingParam)).To(BeTrue())
			err = c.Init(controller.Config{RobotBaseLink: "base_link"})
			Expect(errors.Is(err, controller.ErrMissingParam)).To(BeTrue())
		})

		It("fills topic and tuning defaults", func() {
			cfg := r.ctrl.Config()
			Expect(cfg.TargetFrameTopic).To(Equal(controller.DefaultTargetFrameTopic))
			Expect(cfg.TargetTwistTopic).To(Equal(controller.DefaultTargetTwistTopic))
			Expect(cfg.CurrentPoseTopic).To(Equal(controller.DefaultCurrentPoseTopic))
			Expect(cfg.ErrorScale).To(Equal(controller.DefaultErrorScale))
			Expect(cfg.Bounds).To(Equal(controller.DefaultBounds()))
		})

		It("seeds the target with the current pose so starting causes no jump", func() {
			Expect(r.ctrl.Target()).To(BeNil())
			Expect(r.ctrl.Start(ctx)).To(Succeed())
			Expect(r.ctrl.State()).To(Equal(controller.Running))

			target := r.ctrl.Target()
			Expect(target).NotTo(BeNil())
			Expect(target.FrameID).To(Equal("base_link"))
			Expect(r.residual()).To(BeNumerically("<", 1e-9))

			r.run(5)
			Expect(r.residual()).To(BeNumerically("<", 1e-9))
			for _, q := range r.hw.LastCommand().Positions {
				Expect(q).To(BeNumerically("~", 0, 1e-9))
			}
		})

		It("rejects Start and Init while running", func() {
			Expect(r.ctrl.Start(ctx)).To(Succeed())
			Expect(r.ctrl.Start(ctx)).To(MatchError(controller.ErrRunning))
			Expect(r.ctrl.Init(controller.Config{RobotBaseLink: "a", EndEffectorLink: "b"})).To(MatchError(controller.ErrRunning))
		})

		It("does nothing while idle", func() {
			r.run(3)
			Expect(r.hw.Writes()).To(Equal(0))
			_, ok := r.ctrl.LastSample()
			Expect(ok).To(BeFalse())
		})

		It("drops the target on Stop and refuses producers afterwards", func() {
			Expect(r.ctrl.Start(ctx)).To(Succeed())
			Expect(r.ctrl.Stop(ctx)).To(Succeed())
			Expect(r.ctrl.State()).To(Equal(controller.Idle))
			Expect(r.ctrl.Target()).To(BeNil())

			err := r.ctrl.SetTargetFrame("base_link", spatial.NewPose(r3.Vector{X: 0.1}, spatial.Identity()))
			Expect(err).To(MatchError(controller.ErrNotRunning))
			Expect(r.ctrl.SetTargetTwist(controller.Twist{})).To(MatchError(controller.ErrNotRunning))
			Expect(r.ctrl.Stop(ctx)).To(Succeed())
		})

		It("can be restarted after Stop", func() {
			Expect(r.ctrl.Start(ctx)).To(Succeed())
			Expect(r.ctrl.Stop(ctx)).To(Succeed())
			Expect(r.ctrl.Start(ctx)).To(Succeed())
			Expect(r.ctrl.Target()).NotTo(BeNil())
		})
	})

	Describe("target frame producer", func() {
		BeforeEach(func() {
			Expect(r.ctrl.Start(ctx)).To(Succeed())
		})

		It("replaces the target with a pose in the base frame", func() {
			pose := spatial.NewPose(r3.Vector{X: 0.2, Z: -0.1}, spatial.FromRPY(0, 0, 0.3))
			Expect(r.ctrl.SetTargetFrame("base_link", pose)).To(Succeed())
			got := r.ctrl.Target().Pose
			Expect(got.Point().Sub(pose.Point()).Norm()).To(BeNumerically("<", 1e-12))
		})

		It("leaves the target untouched for a pose in another frame", func() {
			before := r.ctrl.Target()
			err := r.ctrl.SetTargetFrame("world", spatial.NewPose(r3.Vector{X: 1}, spatial.Identity()))
			Expect(err).To(MatchError(controller.ErrFrameMismatch))
			Expect(r.ctrl.Target()).To(BeIdenticalTo(before))
		})

		It("throttles the wrong frame warning", func() {
			logger, logs := logging.NewObservedTestLogger(GinkgoTB())
			r = newRig(logger, hardware.Position, 1)
			Expect(r.ctrl.Start(ctx)).To(Succeed())

			for i := 0; i < 10; i++ {
				_ = r.ctrl.SetTargetFrame("world", spatial.NewPose(r3.Vector{}, spatial.Identity()))
			}
			Expect(logs.FilterMessageSnippet("wrong reference frame").Len()).To(Equal(1))
		})

		It("normalizes the orientation", func() {
			pose := spatial.NewPose(r3.Vector{}, quat.Number{Real: 2})
			Expect(r.ctrl.SetTargetFrame("base_link", pose)).To(Succeed())
			Expect(quat.Abs(r.ctrl.Target().Pose.Orientation().Quaternion())).To(BeNumerically("~", 1, 1e-12))
		})

		It("rejects a degenerate orientation", func() {
			before := r.ctrl.Target()
			err := r.ctrl.SetTargetFrame("base_link", spatial.NewPose(r3.Vector{}, quat.Number{}))
			Expect(errors.Is(err, controller.ErrInvalidPose)).To(BeTrue())
			Expect(err).To(MatchError("orientation: controller: invalid pose"))
			Expect(r.ctrl.Target()).To(BeIdenticalTo(before))
		})

		It("reports a wrong frame before a degenerate orientation", func() {
			err := r.ctrl.SetTargetFrame("world", spatial.NewPose(r3.Vector{}, quat.Number{}))
			Expect(err).To(MatchError(controller.ErrFrameMismatch))
		})
	})

	Describe("target twist producer", func() {
		BeforeEach(func() {
			Expect(r.ctrl.Start(ctx)).To(Succeed())
		})

		It("moves the target relative to the current pose", func() {
			Expect(r.ctrl.SetTargetTwist(controller.Twist{Linear: r3.Vector{X: 1}})).To(Succeed())
			target := r.ctrl.Target()
			Expect(target.Pose.Point().X).To(BeNumerically("~", 1, 1e-12))
			Expect(target.Pose.Point().Y).To(BeNumerically("~", 0, 1e-12))
			_, angle := spatial.AxisAngle(target.Pose.Orientation().Quaternion())
			Expect(angle).To(BeNumerically("~", 0, 1e-9))
		})

		It("does not accumulate onto the previous target", func() {
			Expect(r.ctrl.SetTargetTwist(controller.Twist{Linear: r3.Vector{X: 1}})).To(Succeed())
			Expect(r.ctrl.SetTargetTwist(controller.Twist{Linear: r3.Vector{X: 1}})).To(Succeed())
			Expect(r.ctrl.Target().Pose.Point().X).To(BeNumerically("~", 1, 1e-12))
		})

		It("left-multiplies the orientation by the roll-pitch-yaw increment", func() {
			Expect(r.ctrl.SetTargetTwist(controller.Twist{Angular: r3.Vector{Z: 0.1}})).To(Succeed())
			axis, angle := spatial.AxisAngle(r.ctrl.Target().Pose.Orientation().Quaternion())
			Expect(angle).To(BeNumerically("~", 0.1, 1e-9))
			Expect(axis.Z).To(BeNumerically("~", 1, 1e-9))
		})

		It("rejects non-finite twists", func() {
			before := r.ctrl.Target()
			err := r.ctrl.SetTargetTwist(controller.Twist{Linear: r3.Vector{X: math.NaN()}})
			Expect(err).To(MatchError(controller.ErrInvalidTwist))
			Expect(r.ctrl.Target()).To(BeIdenticalTo(before))
		})

		It("tolerates producers racing the control loop", func() {
			var wg sync.WaitGroup
			stop := make(chan struct{})
			wg.Add(2)
			go func() {
				defer wg.Done()
				for {
					select {
					case <-stop:
						return
					default:
						_ = r.ctrl.SetTargetTwist(controller.Twist{Linear: r3.Vector{Y: 0.01}})
					}
				}
			}()
			go func() {
				defer wg.Done()
				for {
					select {
					case <-stop:
						return
					default:
						_ = r.ctrl.SetTargetFrame("base_link", spatial.NewPose(r3.Vector{X: 0.1}, spatial.Identity()))
					}
				}
			}()
			r.run(50)
			close(stop)
			wg.Wait()
			Expect(spatial.PoseIsFinite(r.ctrl.Target().Pose)).To(BeTrue())
		})
	})

	Describe("update cycle", func() {
		It("commits exactly one write per cycle whatever the iteration count", func() {
			r = newRig(logging.NewTestLogger(GinkgoTB()), hardware.Position, 5)
			Expect(r.ctrl.Start(ctx)).To(Succeed())
			Expect(r.ctrl.SetTargetFrame("base_link", spatial.NewPose(r3.Vector{X: 0.2}, spatial.Identity()))).To(Succeed())
			r.run(3)
			Expect(r.hw.Writes()).To(Equal(3))
			Expect(r.ctrl.Status().Cycles).To(Equal(uint64(3)))
		})

		It("emits one sample per internal iteration", func() {
			r = newRig(logging.NewTestLogger(GinkgoTB()), hardware.Position, 4)
			var samples []controller.Sample
			r.ctrl.AddObserver(controller.ObserverFunc(func(s controller.Sample) { samples = append(samples, s) }))
			Expect(r.ctrl.Start(ctx)).To(Succeed())
			r.run(1)
			Expect(samples).To(HaveLen(4))
			for _, s := range samples {
				Expect(s.Cycle).To(Equal(uint64(1)))
				Expect(s.FrameID).To(Equal("base_link"))
			}
			Expect(r.ctrl.CurrentPose()).NotTo(BeNil())
		})

		It("settles further per cycle when iterating than with a single step", func() {
			target := spatial.NewPose(r3.Vector{X: 0.2}, spatial.Identity())

			single := newRig(logging.NewTestLogger(GinkgoTB()), hardware.Velocity, 10)
			iter := newRig(logging.NewTestLogger(GinkgoTB()), hardware.Position, 10)
			Expect(single.ctrl.Mode().IsSingleStep()).To(BeTrue())
			Expect(iter.ctrl.Mode().Steps()).To(Equal(10))

			for _, x := range []rig{single, iter} {
				Expect(x.ctrl.Start(ctx)).To(Succeed())
				Expect(x.ctrl.SetTargetFrame("base_link", target)).To(Succeed())
				x.run(1)
			}
			Expect(iter.residual()).To(BeNumerically("<", single.residual()))
		})

		It("converges on a reachable target", func() {
			r = newRig(logging.NewTestLogger(GinkgoTB()), hardware.Position, 5)
			Expect(r.ctrl.Start(ctx)).To(Succeed())
			target := spatial.NewPose(r3.Vector{X: 0.2, Y: -0.1, Z: 0.05}, spatial.FromRPY(0.1, 0, 0.2))
			Expect(r.ctrl.SetTargetFrame("base_link", target)).To(Succeed())
			r.run(200)
			Expect(r.residual()).To(BeNumerically("<", 1e-4))

			st, err := r.hw.State(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(st.Positions[0]).To(BeNumerically("~", 0.2, 1e-3))
		})

		It("writes the simulated velocities to velocity hardware and syncs back", func() {
			r = newRig(logging.NewTestLogger(GinkgoTB()), hardware.Velocity, 1)
			Expect(r.ctrl.Start(ctx)).To(Succeed())
			Expect(r.ctrl.SetTargetFrame("base_link", spatial.NewPose(r3.Vector{X: 0.2}, spatial.Identity()))).To(Succeed())
			r.run(2)

			cmd := r.hw.LastCommand()
			Expect(cmd.Period).To(Equal(period))
			Expect(cmd.Velocities[0]).To(BeNumerically(">", 0))
			Expect(cmd.Velocities).To(Equal(r.fd.Velocities()))
		})

		It("commands velocity hardware to rest on Stop", func() {
			r = newRig(logging.NewTestLogger(GinkgoTB()), hardware.Velocity, 1)
			Expect(r.ctrl.Start(ctx)).To(Succeed())
			Expect(r.ctrl.SetTargetFrame("base_link", spatial.NewPose(r3.Vector{X: 0.2}, spatial.Identity()))).To(Succeed())
			r.run(3)
			Expect(r.ctrl.Stop(ctx)).To(Succeed())
			for _, v := range r.hw.LastCommand().Velocities {
				Expect(v).To(Equal(0.0))
			}
		})

		It("keeps cycling when the write fails", func() {
			Expect(r.ctrl.Start(ctx)).To(Succeed())
			r.hw.FailWrites(errors.New("bus timeout"))
			r.run(3)
			Expect(r.hw.Writes()).To(Equal(0))
			Expect(r.ctrl.Status().Cycles).To(Equal(uint64(3)))
			r.hw.FailWrites(nil)
			r.run(1)
			Expect(r.hw.Writes()).To(Equal(1))
		})

		It("freezes while paused", func() {
			Expect(r.ctrl.Start(ctx)).To(Succeed())
			r.ctrl.Pause()
			Expect(r.ctrl.Paused()).To(BeTrue())
			r.run(3)
			Expect(r.hw.Writes()).To(Equal(0))

			r.ctrl.Resume()
			r.run(1)
			Expect(r.hw.Writes()).To(Equal(1))
		})

		It("is deterministic for identical inputs", func() {
			a := newRig(logging.NewTestLogger(GinkgoTB()), hardware.Position, 3)
			b := newRig(logging.NewTestLogger(GinkgoTB()), hardware.Position, 3)
			target := spatial.NewPose(r3.Vector{X: 0.3, Z: 0.1}, spatial.FromRPY(0, 0.2, 0))
			for _, x := range []rig{a, b} {
				Expect(x.ctrl.Start(ctx)).To(Succeed())
				Expect(x.ctrl.SetTargetFrame("base_link", target)).To(Succeed())
				x.run(10)
			}
			Expect(a.fd.Positions()).To(Equal(b.fd.Positions()))
			Expect(a.hw.LastCommand().Positions).To(Equal(b.hw.LastCommand().Positions))
		})
	})

	Describe("parameters", func() {
		It("exposes error scale, iterations and gains", func() {
			params := r.ctrl.GetParams()
			Expect(params).To(HaveKeyWithValue("error_scale", 1.0))
			Expect(params).To(HaveKeyWithValue("iterations", 1.0))
			Expect(params).To(HaveKeyWithValue("trans_x.p", 10.0))
		})

		It("rejects out of range values", func() {
			var perr *dynamo.ParamError
			err := r.ctrl.SetParam("error_scale", -1)
			Expect(errors.As(err, &perr)).To(BeTrue())
			Expect(errors.Is(err, dynamo.ErrParameterBounds)).To(BeTrue())
			Expect(r.ctrl.SetParam("iterations", 2.5)).NotTo(Succeed())
			Expect(r.ctrl.SetParam("bogus", 1)).NotTo(Succeed())
		})

		It("applies a new iteration count from the next activation", func() {
			Expect(r.ctrl.Start(ctx)).To(Succeed())
			Expect(r.ctrl.SetParam("iterations", 3)).To(Succeed())
			Expect(r.ctrl.Mode().Steps()).To(Equal(1))

			Expect(r.ctrl.Stop(ctx)).To(Succeed())
			Expect(r.ctrl.Start(ctx)).To(Succeed())
			Expect(r.ctrl.Mode().Steps()).To(Equal(3))
			Expect(r.ctrl.Status().Iterations).To(Equal(3))
		})

		It("applies a new error scale immediately", func() {
			Expect(r.ctrl.SetParam("error_scale", 0.5)).To(Succeed())
			Expect(r.ctrl.ErrorScale()).To(Equal(0.5))
		})
	})
})
