package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.viam.com/rdk/logging"

	"github.com/lkotsoni/cartesian-controllers/internal/config"
	"github.com/lkotsoni/cartesian-controllers/internal/experiment"
	"github.com/lkotsoni/cartesian-controllers/internal/optim"
)

var (
	grid   []string
	metric string
	top    int
)

func newTuneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tune [robot]",
		Short: "grid search controller parameters over a scenario",
		Long: "Replays the scenario once per grid point and ranks the points by a metric.\n" +
			"Tunable parameters: " + strings.Join(optim.Tunable, ", "),
		Example: "  cartesian tune gantry -p step --grid error_scale=0.5,1,2 --grid iterations=1,5,10",
		Args:    cobra.MaximumNArgs(1),
		RunE:    runTune,
	}
	addControllerFlags(cmd)
	cmd.Flags().StringArrayVar(&grid, "grid", nil, "parameter values as name=v1,v2,...")
	cmd.Flags().StringVar(&metric, "metric", "rms_error", "metric to minimise")
	cmd.Flags().IntVar(&top, "top", 5, "number of candidates to show")
	return cmd
}

func parseGrid(args []string) ([]string, [][]float64, error) {
	if len(args) == 0 {
		return nil, nil, errors.New("at least one --grid is required")
	}
	names := make([]string, 0, len(args))
	ranges := make([][]float64, 0, len(args))
	for _, arg := range args {
		name, list, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, nil, errors.Errorf("bad grid %q, want name=v1,v2", arg)
		}
		var values []float64
		for _, s := range strings.Split(list, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, nil, errors.Wrapf(err, "grid %s", name)
			}
			values = append(values, v)
		}
		names = append(names, strings.TrimSpace(name))
		ranges = append(ranges, values)
	}
	return names, ranges, nil
}

func runTune(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	names, ranges, err := parseGrid(grid)
	if err != nil {
		return err
	}
	g, err := optim.NewGridSearch(names, ranges)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	logger := logging.NewBlankLogger("cartesian")
	if debug {
		logger = newLogger()
	}
	run := func(c *config.Config) (*experiment.Result, error) {
		exp, err := experiment.New(ctx, logger, c)
		if err != nil {
			return nil, err
		}
		return exp.Run(ctx)
	}

	best, all, err := g.Search(ctx, run, cfg, metric)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "RANK\t%s\tPARAMS\n", strings.ToUpper(metric))
	for i, c := range all {
		if i >= top {
			break
		}
		value := fmt.Sprintf("%.6f", c.Value)
		if c.Err != nil {
			value = "failed: " + c.Err.Error()
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", i+1, value, formatParams(c.Params))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\nbest: %s\n", formatParams(best.Params))
	return nil
}

func formatParams(params map[string]float64) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%g", k, params[k])
	}
	return strings.Join(parts, " ")
}
