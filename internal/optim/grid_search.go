// Package optim tunes controller parameters by replaying a scenario.
package optim

import (
	"context"
	"math"
	"sort"

	"github.com/pkg/errors"

	"github.com/lkotsoni/cartesian-controllers/internal/config"
	"github.com/lkotsoni/cartesian-controllers/internal/control"
	"github.com/lkotsoni/cartesian-controllers/internal/experiment"
)

// Tunable parameter names accepted by Apply.
var Tunable = []string{"error_scale", "iterations", "p_trans", "p_rot", "d_trans", "d_rot"}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) (*GridSearch, error) {
	if len(params) != len(ranges) {
		return nil, errors.Errorf("%d parameters but %d ranges", len(params), len(ranges))
	}
	for i, name := range params {
		if !isTunable(name) {
			return nil, errors.Errorf("unknown parameter %q (tunable: %v)", name, Tunable)
		}
		if len(ranges[i]) == 0 {
			return nil, errors.Errorf("parameter %q has no values", name)
		}
	}
	return &GridSearch{paramNames: params, ranges: ranges}, nil
}

func isTunable(name string) bool {
	for _, t := range Tunable {
		if t == name {
			return true
		}
	}
	return false
}

// Candidate is one evaluated grid point.
type Candidate struct {
	Params map[string]float64
	Value  float64
	Err    error
}

// Search replays base once per grid point and returns the point that
// minimises metricName together with every candidate, best first. Failed
// candidates sort last.
func (g *GridSearch) Search(ctx context.Context, run func(cfg *config.Config) (*experiment.Result, error), base *config.Config, metricName string) (Candidate, []Candidate, error) {
	var all []Candidate
	if err := g.searchRecursive(ctx, 0, map[string]float64{}, run, base, metricName, &all); err != nil {
		return Candidate{}, nil, err
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].Value < all[j].Value })
	if len(all) == 0 || all[0].Err != nil {
		return Candidate{}, all, errors.New("no grid point completed")
	}
	return all[0], all, nil
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current map[string]float64,
	run func(*config.Config) (*experiment.Result, error),
	base *config.Config,
	metricName string,
	out *[]Candidate,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth == len(g.paramNames) {
		c := Candidate{Params: current, Value: math.Inf(1)}
		result, err := run(Apply(base, current))
		switch {
		case err != nil:
			c.Err = err
		default:
			val, ok := result.Metrics[metricName]
			if !ok {
				return errors.Errorf("run reported no metric %q", metricName)
			}
			c.Value = val
		}
		*out = append(*out, c)
		return nil
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64, len(current)+1)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		if err := g.searchRecursive(ctx, depth+1, newParams, run, base, metricName, out); err != nil {
			return err
		}
	}
	return nil
}

// Apply returns a copy of base with params written into its controller
// section. Gain parameters set every axis of their group.
func Apply(base *config.Config, params map[string]float64) *config.Config {
	cfg := *base
	cc := &cfg.Controller

	gains := control.DefaultGains()
	copy(gains.P[:], cc.Gains.P)
	copy(gains.D[:], cc.Gains.D)
	touched := false

	for name, v := range params {
		switch name {
		case "error_scale":
			cc.ErrorScale = v
		case "iterations":
			cc.Iterations = int(math.Round(v))
		case "p_trans":
			gains.P[0], gains.P[1], gains.P[2] = v, v, v
			touched = true
		case "p_rot":
			gains.P[3], gains.P[4], gains.P[5] = v, v, v
			touched = true
		case "d_trans":
			gains.D[0], gains.D[1], gains.D[2] = v, v, v
			touched = true
		case "d_rot":
			gains.D[3], gains.D[4], gains.D[5] = v, v, v
			touched = true
		}
	}
	if touched {
		cc.Gains = config.GainsConfig{
			P: append([]float64(nil), gains.P[:]...),
			D: append([]float64(nil), gains.D[:]...),
		}
	}
	return &cfg
}
