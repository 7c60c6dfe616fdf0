package scoreboard

import (
	"context"
	"sync"
	"time"

	"github.com/dailywin/backend/internal/cache"
	"github.com/dailywin/backend/internal/ticker"
	"github.com/dailywin/backend/internal/types"
	"github.com/rs/zerolog"
)

// Publisher delivers envelopes to websocket clients
type Publisher interface {
	Broadcast(env types.Envelope)
}

// ManagerOptions configures a Manager
type ManagerOptions struct {
	Location *time.Location
	// Interval is each tracker's rollover poll
	Interval time.Duration
	// IdleTimeout stops trackers nobody has read or written for this long
	IdleTimeout time.Duration
	Publisher   Publisher
	Now         func() time.Time
}

type trackerEntry struct {
	tracker *Tracker
	cancel  context.CancelFunc
}

// Manager owns one tracker per producer. Trackers start lazily, stop when
// idle, and otherwise run until the manager's context is cancelled.
type Manager struct {
	ctx       context.Context
	remote    RemoteStore
	cache     cache.HourCache
	loc       *time.Location
	interval  time.Duration
	idle      time.Duration
	publisher Publisher
	now       func() time.Time
	logger    zerolog.Logger

	mu       sync.Mutex
	trackers map[string]trackerEntry
}

// NewManager creates a manager whose trackers live at most as long as ctx
func NewManager(ctx context.Context, remote RemoteStore, hourCache cache.HourCache, opts ManagerOptions, logger zerolog.Logger) *Manager {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 30 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		ctx:       ctx,
		remote:    remote,
		cache:     hourCache,
		loc:       opts.Location,
		interval:  opts.Interval,
		idle:      opts.IdleTimeout,
		publisher: opts.Publisher,
		now:       opts.Now,
		logger:    logger,
		trackers:  make(map[string]trackerEntry),
	}
}

// Tracker returns the user's tracker, creating and starting it on first use
func (m *Manager) Tracker(userID string) *Tracker {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.trackers[userID]; ok {
		return e.tracker
	}

	t := NewTracker(userID, Options{
		Remote:   m.remote,
		Cache:    m.cache,
		Location: m.loc,
		Interval: m.interval,
		Now:      m.now,
		OnChange: m.publish,
	}, m.logger)

	ctx, cancel := context.WithCancel(m.ctx)
	m.trackers[userID] = trackerEntry{tracker: t, cancel: cancel}
	go t.Start(ctx)

	m.logger.Debug().Str("user_id", userID).Msg("scoreboard tracker started")
	return t
}

// Snapshot returns the user's current hour
func (m *Manager) Snapshot(ctx context.Context, userID string) Snapshot {
	return m.Tracker(userID).Snapshot(ctx)
}

// ApplyDelta applies a delta to the user's current hour
func (m *Manager) ApplyDelta(ctx context.Context, userID string, d Delta) (Snapshot, Mutation) {
	return m.Tracker(userID).ApplyDelta(ctx, d)
}

// Len returns the number of live trackers
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.trackers)
}

// Evict stops trackers idle since before now minus the idle timeout. Trackers
// with remote writes still queued are kept until the writes finish.
func (m *Manager) Evict(now time.Time) int {
	m.mu.Lock()
	var stale []trackerEntry
	for userID, e := range m.trackers {
		last, settled := e.tracker.idleSince()
		if settled && now.Sub(last) > m.idle {
			stale = append(stale, e)
			delete(m.trackers, userID)
		}
	}
	remaining := len(m.trackers)
	m.mu.Unlock()

	for _, e := range stale {
		e.cancel()
	}

	if len(stale) > 0 {
		m.logger.Debug().Int("evicted", len(stale)).Int("remaining", remaining).Msg("idle scoreboard trackers stopped")
	}
	return len(stale)
}

// Start evicts idle trackers until ctx is cancelled
func (m *Manager) Start(ctx context.Context) {
	interval := m.idle / 2
	if interval > time.Minute {
		interval = time.Minute
	}
	ticker.NewTicker("hour-eviction", interval, func(_ context.Context, _ time.Time) {
		m.Evict(m.now())
	}, m.logger).Start(ctx)
}

// Wait blocks until every tracker's background writes are done
func (m *Manager) Wait() {
	m.mu.Lock()
	trackers := make([]*Tracker, 0, len(m.trackers))
	for _, e := range m.trackers {
		trackers = append(trackers, e.tracker)
	}
	m.mu.Unlock()

	for _, t := range trackers {
		t.Wait()
	}
}

func (m *Manager) publish(s Snapshot) {
	if m.publisher == nil {
		return
	}
	m.publisher.Broadcast(types.Envelope{
		Type:      types.MessageHour,
		Timestamp: time.Now(),
		Payload:   s,
		Audience:  types.Audience{UserID: s.UserID},
	})
}
