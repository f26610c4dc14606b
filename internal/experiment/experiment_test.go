package experiment

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.viam.com/rdk/logging"

	"github.com/lkotsoni/cartesian-controllers/internal/config"
	"github.com/lkotsoni/cartesian-controllers/internal/hardware"
	"github.com/lkotsoni/cartesian-controllers/internal/solver"
)

func runPreset(t *testing.T, robot, name string) *Result {
	t.Helper()
	cfg := config.GetPreset(robot, name)
	require.NotNil(t, cfg, "%s/%s", robot, name)
	exp, err := New(context.Background(), logging.NewTestLogger(t), cfg)
	require.NoError(t, err)
	res, err := exp.Run(context.Background())
	require.NoError(t, err)
	return res
}

func TestRegistryIntegrators(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{"euler", "rk4", "semi_implicit"}, r.ListIntegrators())

	for _, name := range append(r.ListIntegrators(), "") {
		integ, err := r.GetIntegrator(name)
		require.NoError(t, err, name)
		assert.NotNil(t, integ)
	}
	_, err := r.GetIntegrator("verlet")
	assert.Error(t, err)
}

func TestBuildRobotFromJoints(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Robot.Joints = []config.JointConfig{
		{Name: "slide", Type: "prismatic", Axis: [3]float64{1, 0, 0}, Limits: &config.LimitConfig{Lower: -1, Upper: 1}},
		{Name: "turn", Type: "revolute", Axis: [3]float64{0, 0, 1}, Origin: config.OriginConfig{XYZ: [3]float64{0, 0, 0.5}}},
	}
	cfg.Robot.Tip = &config.OriginConfig{XYZ: [3]float64{0.2, 0, 0}}
	cfg.Robot.StartPositions = []float64{0.3, 0}

	robot, err := NewRegistry().BuildRobot(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"slide", "turn"}, robot.Chain.JointNames())
	assert.Equal(t, solver.Prismatic, robot.Chain.Joints[0].Type)
	assert.True(t, robot.Chain.Joints[0].Limited)
	assert.Equal(t, []float64{0.3, 0}, robot.Home)

	ee := robot.Chain.ForwardKinematics(robot.Home).Point()
	assert.InDelta(t, 0.5, ee.X, 1e-9)
	assert.InDelta(t, 0.5, ee.Z, 1e-9)
}

func TestBuildRobotPresetStartPositions(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Robot.StartPositions = []float64{1, 2}
	_, err := NewRegistry().BuildRobot(cfg)
	assert.Error(t, err)

	cfg.Robot.Preset = "nope"
	cfg.Robot.StartPositions = nil
	_, err = NewRegistry().BuildRobot(cfg)
	assert.Error(t, err)
}

func TestBuildRig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Hardware.Interface = "velocity"
	cfg.Controller.Gains.P = []float64{1, 2, 3, 4, 5, 6}

	rig, err := NewRegistry().Build(context.Background(), logging.NewTestLogger(t), cfg)
	require.NoError(t, err)
	assert.Equal(t, hardware.Velocity, rig.Hardware.Kind())
	assert.True(t, rig.Controller.Mode().IsSingleStep())
	assert.Equal(t, 3.0, rig.Controller.GetParams()["trans_z.p"])
	require.NoError(t, rig.Close(context.Background()))

	cfg.Scheduler.Hz = -1
	_, err = NewRegistry().Build(context.Background(), logging.NewTestLogger(t), cfg)
	assert.Error(t, err)
}

func TestBuildSolverDamping(t *testing.T) {
	r := NewRegistry()
	robot := solver.Gantry()

	fd, err := r.BuildSolver(config.RobotConfig{}, robot)
	require.NoError(t, err)
	assert.Equal(t, solver.DefaultParams().Damping, fd.Params().Damping)

	none := 0.0
	fd, err = r.BuildSolver(config.RobotConfig{Damping: &none}, robot)
	require.NoError(t, err)
	assert.Zero(t, fd.Params().Damping)
}

func TestBuildHardwareRejectsVelocityFeetech(t *testing.T) {
	_, err := BuildHardware(context.Background(), config.HardwareConfig{
		Interface: "velocity",
		Driver:    "feetech",
		Port:      "/dev/null",
		Servos:    []config.ServoConfig{{ID: 1}},
	}, []float64{0})
	assert.Error(t, err)
}

func TestStepConverges(t *testing.T) {
	res := runPreset(t, "gantry", "step")

	assert.Equal(t, 150, res.Cycles)
	assert.Len(t, res.Samples, 150)
	assert.Equal(t, "iterative(10)", res.Mode)
	assert.Zero(t, res.Rejected)
	assert.Less(t, res.Metrics["final_error_translation"], 1e-4)
	assert.GreaterOrEqual(t, res.Metrics["settling_time"], 0.0)

	last := res.Samples[len(res.Samples)-1]
	assert.InDelta(t, 0.3, last.Position[0], 1e-4)
	assert.InDelta(t, 0.3, last.Joints[0], 1e-4)
}

func TestIterativeBeatsSingleStep(t *testing.T) {
	iter := runPreset(t, "gantry", "step")
	single := runPreset(t, "gantry", "step_single")
	assert.Less(t, iter.Metrics["rms_error"], single.Metrics["rms_error"])
}

func TestRotationConverges(t *testing.T) {
	res := runPreset(t, "gantry", "rotate")
	assert.Less(t, res.Metrics["final_error_rotation"], 1e-3)
}

func TestFarTargetIsBounded(t *testing.T) {
	res := runPreset(t, "gantry", "far")
	assert.Greater(t, res.Metrics["saturation"], 0.0)
	assert.Greater(t, res.Metrics["peak_error"], 1.0)
	assert.Less(t, res.Metrics["final_error"], 1e-2)
}

func TestMetricsReportUnboundedResidual(t *testing.T) {
	cfg := *config.GetPreset("gantry", "step")
	cfg.Controller.Iterations = 1
	cfg.Scenario = config.ScenarioConfig{
		Name:     "far_short",
		Duration: 0.1,
		Events:   []config.EventConfig{{At: 0, Pose: &config.PoseConfig{Position: [3]float64{1.8, 0, 0}}}},
	}

	exp, err := New(context.Background(), logging.NewTestLogger(t), &cfg)
	require.NoError(t, err)
	res, err := exp.Run(context.Background())
	require.NoError(t, err)

	last := res.Samples[len(res.Samples)-1]
	dist := math.Hypot(last.TargetPosition[0]-last.Position[0], last.TargetPosition[1]-last.Position[1])
	dist = math.Hypot(dist, last.TargetPosition[2]-last.Position[2])

	assert.Greater(t, dist, 1.5)
	assert.InDelta(t, dist, res.Metrics["final_error_translation"], 1e-9)
	assert.Greater(t, res.Metrics["peak_error"], 1.5)
	assert.Greater(t, res.Metrics["rms_error"], 1.5)
	assert.Equal(t, 1.0, res.Metrics["saturation"])
}

func TestVelocityInterface(t *testing.T) {
	res := runPreset(t, "gantry", "velocity")
	assert.Equal(t, "single-step", res.Mode)
	assert.Less(t, res.Metrics["final_error_translation"], 1e-2)
}

func TestWrongFrameIsIgnored(t *testing.T) {
	res := runPreset(t, "gantry", "wrong_frame")
	assert.Equal(t, 1, res.Rejected)
	assert.Less(t, res.Metrics["peak_error"], 1e-9)
}

func TestTwistScenario(t *testing.T) {
	res := runPreset(t, "gantry", "twist")
	assert.Zero(t, res.Rejected)
	last := res.Samples[len(res.Samples)-1]
	assert.InDelta(t, -0.1, last.TargetPosition[2], 0.02)
}

func TestArmNudge(t *testing.T) {
	res := runPreset(t, "arm6", "nudge")
	assert.Less(t, res.Metrics["final_error_translation"], 5e-3)
	for _, smp := range res.Samples {
		for _, q := range smp.Joints {
			require.False(t, math.IsNaN(q), "joint position is NaN")
		}
	}
}

func TestRunsAreDeterministic(t *testing.T) {
	a := runPreset(t, "gantry", "square")
	b := runPreset(t, "gantry", "square")
	assert.Equal(t, a.Samples, b.Samples)
	assert.Equal(t, a.Metrics, b.Metrics)
}

func TestRunHonoursCancellation(t *testing.T) {
	exp, err := New(context.Background(), logging.NewTestLogger(t), config.GetPreset("gantry", "step"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = exp.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMetadata(t *testing.T) {
	exp, err := New(context.Background(), logging.NewTestLogger(t), config.GetPreset("gantry", "step"))
	require.NoError(t, err)
	res, err := exp.Run(context.Background())
	require.NoError(t, err)

	meta := exp.Metadata(res)
	assert.Equal(t, "step", meta.Scenario)
	assert.Equal(t, "gantry", meta.Robot)
	assert.Equal(t, "position", meta.Interface)
	assert.Equal(t, 150, meta.Cycles)
	assert.Len(t, meta.Joints, 6)
}

func TestSweep(t *testing.T) {
	results, err := NewSweep(config.GetPreset("gantry", "step"), []int{1, 5, 20}).Run(context.Background(), logging.NewTestLogger(t))
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "iterative(1)", results[0].Mode)
	assert.Equal(t, "iterative(20)", results[2].Mode)
	assert.Greater(t, results[0].Metrics["rms_error"], results[1].Metrics["rms_error"])
	assert.Greater(t, results[1].Metrics["rms_error"], results[2].Metrics["rms_error"])
}
