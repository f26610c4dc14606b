package experiment

import (
	"context"
	"sync"

	"go.uber.org/multierr"
	"go.viam.com/rdk/logging"

	"github.com/lkotsoni/cartesian-controllers/internal/config"
)

// Sweep runs the same scenario once per iteration count, in parallel.
type Sweep struct {
	base       *config.Config
	iterations []int
}

func NewSweep(base *config.Config, iterations []int) *Sweep {
	return &Sweep{base: base, iterations: iterations}
}

// Run returns one result per iteration count, in the order given.
func (s *Sweep) Run(ctx context.Context, logger logging.Logger) ([]*Result, error) {
	results := make([]*Result, len(s.iterations))
	errs := make([]error, len(s.iterations))

	var wg sync.WaitGroup
	for i, n := range s.iterations {
		wg.Add(1)
		go func(idx, iterations int) {
			defer wg.Done()

			cfg := *s.base
			cfg.Controller.Iterations = iterations

			exp, err := New(ctx, logger, &cfg)
			if err != nil {
				errs[idx] = err
				return
			}
			results[idx], errs[idx] = exp.Run(ctx)
		}(i, n)
	}
	wg.Wait()

	if err := multierr.Combine(errs...); err != nil {
		return nil, err
	}
	return results, nil
}
