package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked once per polling cycle.
type TickFunc func(ctx context.Context) error

// QuietWindow is a daily wall-clock window during which polling is
// suspended. Minutes are measured since local midnight; a window whose
// end precedes its start wraps around midnight.
type QuietWindow struct {
	StartMinute int
	EndMinute   int
}

// Contains reports whether t falls inside the window.
func (w QuietWindow) Contains(t time.Time) bool {
	minute := t.Hour()*60 + t.Minute()
	if w.StartMinute == w.EndMinute {
		return false
	}
	if w.StartMinute < w.EndMinute {
		return minute >= w.StartMinute && minute < w.EndMinute
	}
	return minute >= w.StartMinute || minute < w.EndMinute
}

// Options tune scheduler behaviour.
type Options struct {
	Interval     time.Duration
	StartupDelay time.Duration
	Quiet        *QuietWindow
	QuietRecheck time.Duration
	Now          func() time.Time
}

// Scheduler drives the polling loop at a fixed cadence, honouring the
// quiet window and shutdown before every blocking step.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	if opts.QuietRecheck <= 0 {
		opts.QuietRecheck = time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Run blocks, invoking the tick function every interval until ctx is
// cancelled. Tick errors are logged, never fatal: the loop retries on
// the next cycle.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		if err := sleepCtx(ctx, s.opts.StartupDelay); err != nil {
			return err
		}
	}

	for {
		if err := s.waitQuietWindow(ctx); err != nil {
			return err
		}

		start := s.opts.Now()
		s.logger.Debug().Time("cycle_start", start).Msg("executing polling cycle")

		if err := tick(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Error().Err(err).Msg("polling cycle failed")
		}

		if err := sleepCtx(ctx, s.opts.Interval); err != nil {
			return err
		}
	}
}

// waitQuietWindow suspends while the quiet window is active, re-checking
// at a bounded interval so cancellation is observed promptly instead of
// sleeping out the whole window in one step.
func (s *Scheduler) waitQuietWindow(ctx context.Context) error {
	if s.opts.Quiet == nil {
		return nil
	}

	for s.opts.Quiet.Contains(s.opts.Now()) {
		s.logger.Info().Msg("quiet window active; polling suspended")
		if err := sleepCtx(ctx, s.opts.QuietRecheck); err != nil {
			return err
		}
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
