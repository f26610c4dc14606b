package main

import (
	"fmt"
	"math"
	"os"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/lkotsoni/cartesian-controllers/internal/storage"
)

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCENARIO\tROBOT\tTIME\tDURATION\tMODE\tFINAL")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2fs\t%s\t%.6f\n",
			run.ID,
			run.Scenario,
			run.Robot,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Duration,
			run.Mode,
			run.Metrics["final_error"],
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	samples, err := st.LoadSamples(runID)
	if err != nil {
		return err
	}

	if len(samples) == 0 {
		return errors.New("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("scenario: %s on %s (%s)\n", meta.Scenario, meta.Robot, meta.Mode)
	fmt.Printf("samples: %d\n\n", len(samples))

	trans := make([]float64, len(samples))
	rot := make([]float64, len(samples))
	xs := make([]float64, len(samples))
	ys := make([]float64, len(samples))
	zs := make([]float64, len(samples))
	for i, s := range samples {
		trans[i] = math.Sqrt(s.Error[0]*s.Error[0] + s.Error[1]*s.Error[1] + s.Error[2]*s.Error[2])
		rot[i] = math.Sqrt(s.Error[3]*s.Error[3] + s.Error[4]*s.Error[4] + s.Error[5]*s.Error[5])
		xs[i], ys[i], zs[i] = s.Position[0], s.Position[1], s.Position[2]
	}

	fmt.Println(asciigraph.PlotMany([][]float64{trans, rot},
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Precision(4),
		asciigraph.SeriesColors(asciigraph.Orange, asciigraph.Cyan),
		asciigraph.SeriesLegends("translation", "rotation"),
		asciigraph.Caption("motion error"),
	))
	fmt.Println()

	fmt.Println(asciigraph.PlotMany([][]float64{xs, ys, zs},
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Precision(3),
		asciigraph.SeriesColors(asciigraph.Red, asciigraph.Green, asciigraph.Blue),
		asciigraph.SeriesLegends("x", "y", "z"),
		asciigraph.Caption("end effector position"),
	))
	fmt.Println()

	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	data, err := storage.New(dataDir).Export(args[0])
	if err != nil {
		return err
	}
	if outFile == "" {
		return storage.ExportJSONStdout(data)
	}
	if err := storage.ExportJSON(outFile, data); err != nil {
		return err
	}
	fmt.Printf("exported %d samples to %s\n", len(data.Samples), outFile)
	return nil
}
