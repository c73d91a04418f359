package advisory

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	minBackoff = 5 * time.Second
	maxBackoff = 5 * time.Minute
)

// Warmer keeps the engine's snapshot fresh in the background so request
// paths rarely wait on the provider.
type Warmer struct {
	engine   *Engine
	interval time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
}

// NewWarmer creates a Warmer that refreshes every interval.
func NewWarmer(engine *Engine, interval time.Duration, clock clockwork.Clock, logger *slog.Logger) *Warmer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Warmer{engine: engine, interval: interval, clock: clock, logger: logger}
}

// Run refreshes until the context is cancelled. Failed refreshes are retried
// with exponential backoff capped at the refresh interval.
func (w *Warmer) Run(ctx context.Context) error {
	if w.engine.FallbackMode() {
		w.logger.Info("snapshot warmer idle in fallback mode")
		return nil
	}
	w.logger.Info("snapshot warmer started", "interval", w.interval)

	backoff := minBackoff
	ceiling := min(w.interval, maxBackoff)

	for {
		wait := w.interval
		if err := w.engine.Warm(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Warn("snapshot warm failed", "error", err, "retry_in", backoff)
			wait = backoff
			backoff = nextBackoff(backoff, ceiling)
		} else {
			backoff = minBackoff
		}

		if !w.sleep(ctx, wait) {
			w.logger.Info("snapshot warmer stopping", "reason", ctx.Err())
			return nil
		}
	}
}

func (w *Warmer) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := w.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}

func nextBackoff(current, ceiling time.Duration) time.Duration {
	next := current * 2
	if next > ceiling {
		return ceiling
	}
	return next
}
