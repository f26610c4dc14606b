// Package scheduler drives a controller at a fixed outer control rate.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"go.viam.com/utils"
	"golang.org/x/time/rate"
)

const (
	DefaultHz = 50.0
	MaxHz     = 1000.0
)

// Updater is anything that runs one control cycle per tick.
type Updater interface {
	Update(ctx context.Context, now time.Time, period time.Duration)
}

// UpdaterFunc adapts a function to Updater.
type UpdaterFunc func(ctx context.Context, now time.Time, period time.Duration)

func (f UpdaterFunc) Update(ctx context.Context, now time.Time, period time.Duration) {
	f(ctx, now, period)
}

type ticker struct {
	t    *time.Ticker
	stop chan struct{}
}

// Loop calls an Updater from a single background goroutine at a fixed rate.
// A cycle that outlasts the period is counted as an overrun; the ticker
// drops the ticks it missed.
type Loop struct {
	logger  logging.Logger
	updater Updater
	hz      float64
	period  time.Duration

	mu                      sync.Mutex
	ct                      ticker
	running                 bool
	activeBackgroundWorkers sync.WaitGroup
	cancelCtx               context.Context
	cancel                  context.CancelFunc

	ticks    atomic.Uint64
	overruns atomic.Uint64
	worst    atomic.Int64
	overWarn rate.Sometimes
}

func NewLoop(logger logging.Logger, hz float64, u Updater) (*Loop, error) {
	if hz <= 0 || hz > MaxHz {
		return nil, errors.Errorf("loop frequency must be in (0, %.0f] Hz, got %.2f", MaxHz, hz)
	}
	if u == nil {
		return nil, errors.New("loop needs an updater")
	}
	return &Loop{
		logger:   logger,
		updater:  u,
		hz:       hz,
		period:   time.Duration(float64(time.Second) / hz),
		overWarn: rate.Sometimes{Interval: 5 * time.Second},
	}, nil
}

func (l *Loop) Period() time.Duration {
	return l.period
}

func (l *Loop) Frequency() float64 {
	return l.hz
}

// Start launches the loop goroutine. The context bounds every Update call.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return errors.New("loop already running")
	}

	l.logger.Infof("running loop at %.1f Hz (%v)", l.hz, l.period)
	l.cancelCtx, l.cancel = context.WithCancel(ctx)
	l.ct = ticker{t: time.NewTicker(l.period), stop: make(chan struct{})}

	waitCh := make(chan struct{})
	l.activeBackgroundWorkers.Add(1)
	utils.ManagedGo(func() {
		ct := l.ct
		cancelCtx := l.cancelCtx
		close(waitCh)
		for {
			select {
			case now := <-ct.t.C:
				l.cycle(cancelCtx, now)
			case <-ct.stop:
				return
			case <-cancelCtx.Done():
				return
			}
		}
	}, l.activeBackgroundWorkers.Done)
	<-waitCh
	l.running = true
	return nil
}

func (l *Loop) cycle(ctx context.Context, now time.Time) {
	start := time.Now()
	l.updater.Update(ctx, now, l.period)
	l.ticks.Add(1)

	took := time.Since(start)
	if took > time.Duration(l.worst.Load()) {
		l.worst.Store(int64(took))
	}
	if took > l.period {
		n := l.overruns.Add(1)
		l.overWarn.Do(func() {
			l.logger.Warnf("control cycle took %v, longer than the %v period (%d overruns so far)", took, l.period, n)
		})
	}
}

// Stop halts the loop and waits for the in-flight cycle to finish.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.running {
		return
	}
	l.logger.Debug("closing loop")
	l.ct.t.Stop()
	close(l.ct.stop)
	l.cancel()
	l.activeBackgroundWorkers.Wait()
	l.running = false
}

func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Stats is a snapshot of loop timing.
type Stats struct {
	Hz       float64       `json:"hz"`
	Ticks    uint64        `json:"ticks"`
	Overruns uint64        `json:"overruns"`
	Worst    time.Duration `json:"worst_cycle"`
}

func (l *Loop) Stats() Stats {
	return Stats{
		Hz:       l.hz,
		Ticks:    l.ticks.Load(),
		Overruns: l.overruns.Load(),
		Worst:    time.Duration(l.worst.Load()),
	}
}

// Drive runs n cycles back to back on a virtual clock starting at start,
// without sleeping. It is used for offline runs and stops early when ctx is
// cancelled.
func Drive(ctx context.Context, u Updater, start time.Time, period time.Duration, n int) (time.Time, error) {
	now := start
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return now, err
		}
		now = now.Add(period)
		u.Update(ctx, now, period)
	}
	return now, nil
}
