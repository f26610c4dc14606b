package config

import "sort"

func pose(x, y, z, roll, pitch, yaw float64) *PoseConfig {
	return &PoseConfig{Position: [3]float64{x, y, z}, RPY: [3]float64{roll, pitch, yaw}}
}

func twist(lx, ly, lz, ax, ay, az float64) *TwistConfig {
	return &TwistConfig{Linear: [3]float64{lx, ly, lz}, Angular: [3]float64{ax, ay, az}}
}

func preset(robot, name, iface string, iterations int, duration float64, events ...EventConfig) *Config {
	cfg := DefaultConfig()
	cfg.Robot.Preset = robot
	cfg.Hardware.Interface = iface
	cfg.Controller.Iterations = iterations
	cfg.Scenario = ScenarioConfig{Name: name, Duration: duration, Events: events}
	return cfg
}

// Presets holds ready-made offline scenarios per robot.
var Presets = map[string]map[string]*Config{
	"gantry": {
		"step": preset("gantry", "step", "position", 10, 3.0,
			EventConfig{At: 0.1, Pose: pose(0.3, 0, 0, 0, 0, 0)},
		),
		"step_single": preset("gantry", "step_single", "position", 1, 3.0,
			EventConfig{At: 0.1, Pose: pose(0.3, 0, 0, 0, 0, 0)},
		),
		"square": preset("gantry", "square", "position", 10, 8.0,
			EventConfig{At: 0.0, Pose: pose(0.2, 0, 0, 0, 0, 0)},
			EventConfig{At: 2.0, Pose: pose(0.2, 0.2, 0, 0, 0, 0)},
			EventConfig{At: 4.0, Pose: pose(0, 0.2, 0, 0, 0, 0)},
			EventConfig{At: 6.0, Pose: pose(0, 0, 0, 0, 0, 0)},
		),
		"rotate": preset("gantry", "rotate", "position", 10, 4.0,
			EventConfig{At: 0.1, Pose: pose(0, 0, 0, 0.3, -0.2, 0.8)},
		),
		"far": preset("gantry", "far", "position", 10, 6.0,
			EventConfig{At: 0.1, Pose: pose(1.5, -1.0, 0.5, 0, 0, 2.5)},
		),
		"twist": preset("gantry", "twist", "position", 5, 4.0,
			EventConfig{At: 0.1, Twist: twist(0.1, 0, 0, 0, 0, 0)},
			EventConfig{At: 1.0, Twist: twist(0, 0.1, 0, 0, 0, 0.2)},
			EventConfig{At: 2.0, Twist: twist(0, 0, -0.1, 0, 0, 0)},
		),
		"velocity": preset("gantry", "velocity", "velocity", 1, 4.0,
			EventConfig{At: 0.1, Pose: pose(0.3, 0, 0, 0, 0, 0)},
		),
		"wrong_frame": preset("gantry", "wrong_frame", "position", 10, 2.0,
			EventConfig{At: 0.1, Frame: "world", Pose: pose(0.3, 0, 0, 0, 0, 0)},
		),
	},
	"arm6": {
		"nudge": preset("arm6", "nudge", "position", 10, 4.0,
			EventConfig{At: 0.1, Twist: twist(0.05, 0, 0, 0, 0, 0)},
		),
		"lift": preset("arm6", "lift", "position", 10, 4.0,
			EventConfig{At: 0.1, Twist: twist(0, 0, 0.1, 0, 0, 0)},
			EventConfig{At: 2.0, Twist: twist(0, 0, 0, 0, 0, 0.2)},
		),
		"velocity": preset("arm6", "velocity", "velocity", 1, 4.0,
			EventConfig{At: 0.1, Twist: twist(0.05, 0, 0, 0, 0, 0)},
		),
	},
}

func GetPreset(robot, name string) *Config {
	robotPresets, ok := Presets[robot]
	if !ok {
		return nil
	}
	cfg, ok := robotPresets[name]
	if !ok {
		return nil
	}
	return cfg
}

func ListPresets(robot string) []string {
	robotPresets, ok := Presets[robot]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(robotPresets))
	for name := range robotPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Robots lists the robots that have presets.
func Robots() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
