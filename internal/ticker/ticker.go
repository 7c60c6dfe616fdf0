package ticker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is called on every tick with the tick time
type TickFunc func(ctx context.Context, now time.Time)

// Ticker periodically calls a TickFunc until its context is cancelled.
//
// The first call happens on the ticker's own goroutine as soon as Start runs,
// not inside the caller that created it, so a component can hand its first
// wall-clock read to the ticker instead of doing it during construction.
type Ticker struct {
	name     string
	interval time.Duration
	fn       TickFunc
	now      func() time.Time
	logger   zerolog.Logger
}

// NewTicker creates a new Ticker
func NewTicker(name string, interval time.Duration, fn TickFunc, logger zerolog.Logger) *Ticker {
	return &Ticker{
		name:     name,
		interval: interval,
		fn:       fn,
		now:      time.Now,
		logger:   logger,
	}
}

// Start blocks, calling fn immediately and then every interval
func (t *Ticker) Start(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.logger.Debug().Str("ticker", t.name).Dur("interval", t.interval).Msg("ticker started")

	if ctx.Err() == nil {
		t.fn(ctx, t.now())
	}

	for {
		select {
		case <-ctx.Done():
			t.logger.Debug().Str("ticker", t.name).Msg("ticker stopped")
			return

		case now := <-ticker.C:
			t.fn(ctx, now)
		}
	}
}
