package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.viam.com/rdk/logging"

	"github.com/lkotsoni/cartesian-controllers/internal/config"
	"github.com/lkotsoni/cartesian-controllers/internal/experiment"
	"github.com/lkotsoni/cartesian-controllers/internal/storage"
	"github.com/lkotsoni/cartesian-controllers/internal/tui"
)

var (
	dataDir    string
	configFile string
	preset     string
	debug      bool

	hz         float64
	iterations int
	errorScale float64
	iface      string
	driver     string
	port       string
	integrator string
	duration   float64
	sweep      []int

	addr      string
	streamHz  float64
	liveView  bool
	outFile   string
	forceInit bool
)

// main registers the cartesian commands. Without a subcommand it opens the
// scenario picker.
func main() {
	rootCmd := &cobra.Command{
		Use:          "cartesian",
		Short:        "cartesian motion controller",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return tui.RunInteractive(runPreset)
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".cartesian", "data directory")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "debug logging")

	runCmd := &cobra.Command{
		Use:   "run [robot]",
		Short: "play a scenario offline and store the run",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runScenario,
	}
	addControllerFlags(runCmd)
	runCmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "scenario duration in seconds")
	runCmd.Flags().IntSliceVar(&sweep, "sweep", nil, "compare iteration counts, e.g. 1,5,10")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run results",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run metadata and samples as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default stdout)")

	scenariosCmd := &cobra.Command{
		Use:   "scenarios [robot]",
		Short: "list scenario presets",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listScenarios,
	}

	serveCmd := &cobra.Command{
		Use:   "serve [robot]",
		Short: "run the controller in real time behind an HTTP and websocket API",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runServe,
	}
	addControllerFlags(serveCmd)
	serveCmd.Flags().StringVar(&driver, "driver", config.DefaultDriver, "hardware driver (fake, feetech)")
	serveCmd.Flags().StringVar(&port, "port", "", "serial port for the feetech driver")
	serveCmd.Flags().StringVar(&addr, "addr", config.DefaultAddr, "listen address")
	serveCmd.Flags().Float64Var(&streamHz, "stream-hz", config.DefaultStreamHz, "current pose stream rate")
	serveCmd.Flags().BoolVar(&liveView, "live", false, "show the live view while serving")

	liveCmd := &cobra.Command{
		Use:   "live [robot]",
		Short: "drive the controller from the keyboard",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	addControllerFlags(liveCmd)

	watchCmd := &cobra.Command{
		Use:   "watch [url]",
		Short: "print the current pose stream of a running server",
		Args:  cobra.MaximumNArgs(1),
		RunE:  watchPoses,
	}

	portsCmd := &cobra.Command{
		Use:   "ports",
		Short: "list serial ports",
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := listPorts()
			if err != nil {
				return err
			}
			if len(ports) == 0 {
				fmt.Println("no serial ports found")
			}
			for _, p := range ports {
				fmt.Println(p)
			}
			return nil
		},
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "configuration files",
	}
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "write the default configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE:  initConfig,
	}
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "overwrite an existing file")
	configCmd.AddCommand(initCmd)

	rootCmd.AddCommand(runCmd, listCmd, plotCmd, exportCmd, scenariosCmd, newTuneCmd(), serveCmd, liveCmd, watchCmd, portsCmd, configCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func addControllerFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "config file path (yaml)")
	cmd.Flags().StringVarP(&preset, "preset", "p", "", "scenario preset")
	cmd.Flags().Float64Var(&hz, "hz", config.DefaultHz, "outer control rate")
	cmd.Flags().IntVar(&iterations, "iterations", 1, "internal steps per cycle")
	cmd.Flags().Float64Var(&errorScale, "error-scale", 1.0, "motion error scale")
	cmd.Flags().StringVar(&iface, "interface", config.DefaultInterface, "hardware interface (position, velocity, effort)")
	cmd.Flags().StringVar(&integrator, "integrator", config.DefaultIntegrator, "internal integrator")
}

func newLogger() logging.Logger {
	if debug {
		return logging.NewDebugLogger("cartesian")
	}
	return logging.NewLogger("cartesian")
}

// resolveConfig builds the configuration from, in increasing precedence,
// the defaults, a preset, a config file and explicitly set flags.
func resolveConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	robot := config.DefaultRobot
	if len(args) > 0 {
		robot = args[0]
	}

	cfg := config.DefaultConfig()
	cfg.Robot.Preset = robot
	if preset != "" {
		p := config.GetPreset(robot, preset)
		if p == nil {
			return nil, errors.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(robot))
		}
		c := *p
		cfg = &c
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, errors.Wrap(err, "failed to load config")
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("hz") {
		cfg.Scheduler.Hz = hz
	}
	if flags.Changed("iterations") {
		cfg.Controller.Iterations = iterations
	}
	if flags.Changed("error-scale") {
		cfg.Controller.ErrorScale = errorScale
	}
	if flags.Changed("interface") {
		cfg.Hardware.Interface = iface
	}
	if flags.Changed("integrator") {
		cfg.Robot.Integrator = integrator
	}
	if flags.Changed("time") {
		cfg.Scenario.Duration = duration
	}
	if flags.Changed("driver") {
		cfg.Hardware.Driver = driver
	}
	if flags.Changed("port") {
		cfg.Hardware.Port = port
	}
	if flags.Changed("addr") {
		cfg.Server.Addr = addr
	}
	if flags.Changed("stream-hz") {
		cfg.Server.StreamHz = streamHz
	}
	return cfg, nil
}

// runPreset plays a preset for the scenario picker. Logging is discarded so
// it does not tear the alt screen.
func runPreset(robot, name string) (*experiment.Result, error) {
	cfg := config.GetPreset(robot, name)
	if cfg == nil {
		return nil, errors.Errorf("unknown preset %s/%s", robot, name)
	}
	ctx := context.Background()
	exp, err := experiment.New(ctx, logging.NewBlankLogger("cartesian"), cfg)
	if err != nil {
		return nil, err
	}
	return exp.Run(ctx)
}

func runScenario(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	logger := newLogger()
	ctx := cmd.Context()

	if len(sweep) > 0 {
		return runSweep(ctx, logger, cfg)
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	exp, err := experiment.New(ctx, logger, cfg)
	if err != nil {
		return err
	}

	name := cfg.Scenario.Name
	if name == "" {
		name = "custom"
	}
	fmt.Printf("running %s on %s...\n", name, cfg.Robot.PresetName())
	start := time.Now()

	result, err := exp.Run(ctx)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	runID, err := st.Save(exp.Metadata(result), result.Samples)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("mode: %s\n", result.Mode)
	fmt.Printf("cycles: %d\n", result.Cycles)
	if result.Rejected > 0 {
		fmt.Printf("rejected targets: %d\n", result.Rejected)
	}
	fmt.Println("\nmetrics:")
	printMetrics(os.Stdout, result.Metrics)
	return nil
}

func runSweep(ctx context.Context, logger logging.Logger, cfg *config.Config) error {
	fmt.Printf("sweeping iterations %v\n\n", sweep)
	results, err := experiment.NewSweep(cfg, sweep).Run(ctx, logger)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ITER\tMODE\tFINAL\tRMS\tPEAK\tSETTLING")
	for i, res := range results {
		m := res.Metrics
		fmt.Fprintf(w, "%d\t%s\t%.6f\t%.6f\t%.6f\t%s\n",
			sweep[i], res.Mode, m["final_error"], m["rms_error"], m["peak_error"], settling(m["settling_time"]))
	}
	return w.Flush()
}

func settling(t float64) string {
	if t < 0 {
		return "-"
	}
	return fmt.Sprintf("%.2fs", t)
}

func printMetrics(w io.Writer, metrics map[string]float64) {
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %s: %.6f\n", name, metrics[name])
	}
}

func listScenarios(cmd *cobra.Command, args []string) error {
	robots := config.Robots()
	if len(args) > 0 {
		robots = args
	}
	for _, robot := range robots {
		presets := config.ListPresets(robot)
		if len(presets) == 0 {
			fmt.Printf("no presets for robot: %s\n", robot)
			continue
		}
		fmt.Printf("%s:\n", robot)
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for _, name := range presets {
			p := config.GetPreset(robot, name)
			fmt.Fprintf(w, "  %s\t%s\t%.1fs\t%d events\n", name, p.Hardware.Interface, p.Scenario.Duration, len(p.Scenario.Events))
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func initConfig(cmd *cobra.Command, args []string) error {
	path := "cartesian.yaml"
	if len(args) > 0 {
		path = args[0]
	}
	if _, err := os.Stat(path); err == nil && !forceInit {
		return errors.Errorf("%s already exists, use --force to overwrite", path)
	}
	if err := config.Save(path, config.DefaultConfig()); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}
