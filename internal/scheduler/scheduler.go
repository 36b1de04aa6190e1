// Package scheduler drives all traders on a minute-aligned ticker, one
// goroutine per trader.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"binance-trade-engine/internal/domain"
	"binance-trade-engine/internal/observability"
)

// defaultTickDelay gives the exchange time to close the minute bar before
// the cycle asks for it.
const defaultTickDelay = 2 * time.Second

// gaugeInterval is how often the active/halted gauges are refreshed.
const gaugeInterval = 15 * time.Second

// Runner is the per-trader surface the scheduler drives.
type Runner interface {
	ID() string
	State() domain.TraderState
	Tick(ctx context.Context, asOf int64) error
}

// Scheduler runs each trader's tick cycle once per minute. Shutdown is
// graceful: cancelling the context lets in-flight cycles finish and Run
// returns once every trader goroutine has stopped.
type Scheduler struct {
	traders   []Runner
	log       *logrus.Entry
	interval  time.Duration
	tickDelay time.Duration
}

// Options configures a Scheduler.
type Options struct {
	Traders []Runner
	Log     *logrus.Entry

	// Interval between ticks. Zero means one minute.
	Interval time.Duration

	// TickDelay is the grace period after the boundary before the cycle
	// starts. Zero means the default.
	TickDelay time.Duration
}

// New creates a Scheduler.
func New(opts Options) *Scheduler {
	interval := opts.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	delay := opts.TickDelay
	if delay <= 0 {
		delay = defaultTickDelay
	}
	return &Scheduler{
		traders:   opts.Traders,
		log:       opts.Log,
		interval:  interval,
		tickDelay: delay,
	}
}

// Run blocks until ctx is cancelled and all trader goroutines have
// finished their current cycle.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.WithField("traders", len(s.traders)).Info("scheduler starting")

	var wg sync.WaitGroup
	for _, tr := range s.traders {
		wg.Add(1)
		go func(tr Runner) {
			defer wg.Done()
			s.runTrader(ctx, tr)
		}(tr)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.runGauges(ctx)
	}()

	<-ctx.Done()
	wg.Wait()
	s.log.Info("scheduler stopped")
	return ctx.Err()
}

// runTrader ticks one trader at each boundary until shutdown.
func (s *Scheduler) runTrader(ctx context.Context, tr Runner) {
	log := s.log.WithField("trader_id", tr.ID())
	log.Info("trader loop started")

	for {
		timer := time.NewTimer(time.Until(s.nextTick(time.Now())))
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info("trader loop stopped")
			return
		case now := <-timer.C:
			asOf := domain.AlignToMinute(now.UnixMilli())
			if err := tr.Tick(ctx, asOf); err != nil && ctx.Err() == nil {
				log.WithError(err).Error("tick cycle failed")
			}
		}
	}
}

// nextTick returns the next boundary plus the grace delay.
func (s *Scheduler) nextTick(now time.Time) time.Time {
	boundary := now.Truncate(s.interval).Add(s.interval)
	next := boundary.Add(s.tickDelay)
	if !next.After(now) {
		next = next.Add(s.interval)
	}
	return next
}

// runGauges refreshes the active/halted trader gauges.
func (s *Scheduler) runGauges(ctx context.Context) {
	ticker := time.NewTicker(gaugeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			active, halted := 0, 0
			for _, tr := range s.traders {
				if tr.State() == domain.TraderHalted {
					halted++
				} else {
					active++
				}
			}
			observability.UpdateTraderCounts(active, halted)
		}
	}
}
