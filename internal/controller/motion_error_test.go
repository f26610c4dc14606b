package controller_test

import (
	"math"
	"math/rand"

	"github.com/golang/geo/r3"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/num/quat"

	"github.com/lkotsoni/cartesian-controllers/internal/controller"
	"github.com/lkotsoni/cartesian-controllers/internal/dynamo"
	"github.com/lkotsoni/cartesian-controllers/internal/hardware"
	"github.com/lkotsoni/cartesian-controllers/internal/spatial"
)

var _ = Describe("MotionError", func() {
	bounds := controller.DefaultBounds()
	origin := spatial.NewPose(r3.Vector{}, spatial.Identity())

	It("is zero for identical poses", func() {
		p := spatial.NewPose(r3.Vector{X: 0.3, Y: -0.2, Z: 1}, spatial.FromRPY(0.1, 0.2, 0.3))
		Expect(controller.MotionError(p, p, bounds).Norm()).To(BeNumerically("<", 1e-9))
	})

	It("passes errors inside the bounds through unchanged", func() {
		target := spatial.NewPose(r3.Vector{X: 0.1}, spatial.FromAxisAngle(r3.Vector{X: 1}, 0.2))
		e := controller.MotionError(origin, target, bounds)
		Expect(e[0]).To(BeNumerically("~", 0.1, 1e-12))
		Expect(e[3]).To(BeNumerically("~", 0.2, 1e-12))
		Expect(e[1]).To(BeNumerically("~", 0, 1e-12))
		Expect(e[5]).To(BeNumerically("~", 0, 1e-12))
	})

	It("clamps the translation distance", func() {
		target := spatial.NewPose(r3.Vector{X: 3, Y: 4}, spatial.Identity())
		e := controller.MotionError(origin, target, bounds)
		Expect(e.Translation().X).To(BeNumerically("~", 0.6, 1e-12))
		Expect(e.Translation().Y).To(BeNumerically("~", 0.8, 1e-12))
	})

	It("clamps the rotation angle", func() {
		target := spatial.NewPose(r3.Vector{}, spatial.FromAxisAngle(r3.Vector{Z: 1}, 2.5))
		e := controller.MotionError(origin, target, bounds)
		Expect(e.Rotation().Z).To(BeNumerically("~", 1.0, 1e-12))
	})

	It("leaves the residual unbounded", func() {
		target := spatial.NewPose(r3.Vector{X: 3, Y: 4}, spatial.FromAxisAngle(r3.Vector{Z: 1}, 2.5))
		e := controller.Residual(origin, target)
		Expect(e.Translation().Norm()).To(BeNumerically("~", 5, 1e-12))
		Expect(e.Rotation().Z).To(BeNumerically("~", 2.5, 1e-9))
		Expect(controller.MotionError(origin, target, bounds).Translation().Norm()).To(BeNumerically("~", 1, 1e-12))
	})

	It("expresses the rotation as target relative to current", func() {
		current := spatial.NewPose(r3.Vector{}, spatial.FromAxisAngle(r3.Vector{Y: 1}, 0.5))
		target := spatial.NewPose(r3.Vector{}, quat.Mul(spatial.FromAxisAngle(r3.Vector{Z: 1}, 0.25), current.Orientation().Quaternion()))
		e := controller.MotionError(current, target, bounds)
		Expect(e.Rotation().Z).To(BeNumerically("~", 0.25, 1e-9))
		Expect(e.Rotation().Y).To(BeNumerically("~", 0, 1e-9))
	})

	It("tolerates a half turn", func() {
		target := spatial.NewPose(r3.Vector{}, spatial.FromAxisAngle(r3.Vector{X: 1}, math.Pi))
		e := controller.MotionError(origin, target, bounds)
		Expect(e.IsValid()).To(BeTrue())
		Expect(e.Rotation().Norm()).To(BeNumerically("~", bounds.MaxAngle, 1e-9))
	})

	It("is deterministic and respects the bounds for arbitrary poses", func() {
		r := rand.New(rand.NewSource(11))
		tight := controller.Bounds{MaxAngle: 0.3, MaxDistance: 0.05}
		randomPose := func() controller.PoseStamped {
			q, _ := spatial.NormalizeQuaternion(quat.Number{
				Real: r.NormFloat64(), Imag: r.NormFloat64(), Jmag: r.NormFloat64(), Kmag: r.NormFloat64(),
			})
			p := r3.Vector{X: r.NormFloat64(), Y: r.NormFloat64(), Z: r.NormFloat64()}
			return controller.PoseStamped{Pose: spatial.NewPose(p, q)}
		}

		for i := 0; i < 200; i++ {
			current, target := randomPose(), randomPose()
			e := controller.MotionError(current.Pose, target.Pose, tight)
			Expect(controller.MotionError(current.Pose, target.Pose, tight)).To(Equal(e))
			Expect(e.Rotation().Norm()).To(BeNumerically("<=", tight.MaxAngle+1e-12))
			Expect(e.Translation().Norm()).To(BeNumerically("<=", tight.MaxDistance+1e-12))
		}
	})
})

var _ = Describe("Mode", func() {
	It("uses a single step for velocity hardware", func() {
		m := controller.ModeFor(hardware.Velocity, 10)
		Expect(m.IsSingleStep()).To(BeTrue())
		Expect(m.Steps()).To(Equal(1))
	})

	It("iterates for position and effort hardware", func() {
		Expect(controller.ModeFor(hardware.Position, 10).Steps()).To(Equal(10))
		Expect(controller.ModeFor(hardware.Effort, 4).Steps()).To(Equal(4))
		Expect(controller.ModeFor(hardware.Position, 4).IsSingleStep()).To(BeFalse())
	})

	It("never iterates less than once", func() {
		Expect(controller.Iterative(0).Steps()).To(Equal(1))
		Expect(controller.Iterative(3).String()).To(Equal("iterative(3)"))
	})
})

var _ = Describe("PoseFeed", func() {
	It("drops the oldest sample when full", func() {
		feed := controller.NewPoseFeed(2)
		for i := uint64(1); i <= 3; i++ {
			feed.OnSample(controller.Sample{Cycle: i, Error: dynamo.Vector6{float64(i)}})
		}
		Expect((<-feed.C()).Cycle).To(Equal(uint64(2)))
		Expect((<-feed.C()).Cycle).To(Equal(uint64(3)))
		Expect(feed.C()).NotTo(Receive())
	})
})
