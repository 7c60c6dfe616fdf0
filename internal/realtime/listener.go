// Package realtime turns database change notifications into dashboard refreshes.
package realtime

import (
	"context"
	"fmt"
	"time"

	"github.com/dailywin/backend/internal/metrics"
	"github.com/dailywin/backend/internal/types"
	"github.com/dailywin/backend/pkg/eventbus"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// SourceListen labels events received over LISTEN/NOTIFY
const SourceListen = "listen"

const defaultRetryDelay = 2 * time.Second

// Listener holds a dedicated LISTEN connection and publishes every decoded
// notification on the bus.
type Listener struct {
	pool       *pgxpool.Pool
	channel    string
	bus        *eventbus.Bus
	retryDelay time.Duration
	logger     zerolog.Logger
}

// NewListener creates a listener for channel
func NewListener(pool *pgxpool.Pool, channel string, bus *eventbus.Bus, logger zerolog.Logger) *Listener {
	return &Listener{
		pool:       pool,
		channel:    channel,
		bus:        bus,
		retryDelay: defaultRetryDelay,
		logger:     logger.With().Str("component", "realtime_listener").Str("channel", channel).Logger(),
	}
}

// Start blocks, re-establishing the LISTEN connection after failures, until
// ctx is cancelled.
func (l *Listener) Start(ctx context.Context) {
	l.logger.Info().Msg("realtime listener started")

	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			l.logger.Info().Msg("realtime listener stopped")
			return
		}

		metrics.Get().RecordListenerReconnect()
		l.logger.Warn().Err(err).Dur("retry_in", l.retryDelay).Msg("realtime connection lost")

		select {
		case <-ctx.Done():
			l.logger.Info().Msg("realtime listener stopped")
			return
		case <-time.After(l.retryDelay):
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	pooled, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	// The LISTEN session must not go back into the pool
	conn := pooled.Hijack()
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	l.logger.Debug().Msg("listening for change notifications")

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		l.Handle(ctx, []byte(n.Payload))
	}
}

// Handle decodes one payload and publishes it
func (l *Listener) Handle(ctx context.Context, payload []byte) {
	m := metrics.Get()

	event, err := types.DecodeChangeEvent(payload)
	if err != nil {
		m.RecordChangeEventError()
		l.logger.Warn().Err(err).Msg("dropping change notification")
		return
	}
	event.ReceivedAt = time.Now()

	m.RecordChangeEvent(SourceListen, event.Table)
	l.bus.Publish(ctx, event)
}
