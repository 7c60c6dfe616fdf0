package scoreboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dailywin/backend/internal/cache"
	"github.com/dailywin/backend/internal/metrics"
	"github.com/dailywin/backend/internal/storage"
	"github.com/dailywin/backend/internal/ticker"
	"github.com/dailywin/backend/internal/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const remoteWriteTimeout = 10 * time.Second

// RemoteStore persists hourly counters keyed by (user, date, hour)
type RemoteStore interface {
	GetHourly(ctx context.Context, userID, date string, hour int) (types.HourlyCounter, error)
	UpsertHourly(ctx context.Context, h types.HourlyCounter) error
}

// Snapshot is the tracker state pushed to clients
type Snapshot struct {
	UserID    string          `json:"userId"`
	HourKey   string          `json:"hourKey"`
	Stats     types.HourStats `json:"stats"`
	Won       bool            `json:"won"`
	Pending   int             `json:"pending"`
	Failed    int             `json:"failed"`
	Mutations []Mutation      `json:"mutations"`
}

// Options configures a Tracker
type Options struct {
	Remote   RemoteStore
	Cache    cache.HourCache
	Location *time.Location
	Interval time.Duration
	Now      func() time.Time
	OnChange func(Snapshot)
}

// Tracker is the live "Win the Hour" scoreboard of one producer
type Tracker struct {
	userID   string
	remote   RemoteStore
	cache    cache.HourCache
	loc      *time.Location
	interval time.Duration
	now      func() time.Time
	onChange func(Snapshot)
	logger   zerolog.Logger

	mu        sync.Mutex
	key       string
	stats     types.HourStats
	mutations mutationLog
	queue     []hourWrite
	writing   bool
	lastUsed  time.Time

	writes sync.WaitGroup
}

// hourWrite is the newest stats of one bucket waiting for the remote store,
// with every mutation the write will settle.
type hourWrite struct {
	key       string
	stats     types.HourStats
	mutations []string
}

// NewTracker creates a tracker with no bucket loaded
func NewTracker(userID string, opts Options, logger zerolog.Logger) *Tracker {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	return &Tracker{
		userID:   userID,
		remote:   opts.Remote,
		cache:    opts.Cache,
		loc:      opts.Location,
		interval: opts.Interval,
		now:      opts.Now,
		onChange: opts.OnChange,
		lastUsed: opts.Now(),
		logger:   logger.With().Str("component", "scoreboard").Str("user_id", userID).Logger(),
	}
}

// CurrentKey is the hour key of the tracker's clock
func (t *Tracker) CurrentKey() string {
	return HourKey(t.now().In(t.loc))
}

// Start polls for hour rollover until ctx is cancelled. The first check runs
// on the poller goroutine, then every interval.
func (t *Tracker) Start(ctx context.Context) {
	ticker.NewTicker("hour-rollover", t.interval, t.rollover, t.logger).Start(ctx)
}

func (t *Tracker) rollover(ctx context.Context, _ time.Time) {
	key := t.CurrentKey()

	t.mu.Lock()
	changed := key != t.key
	if changed {
		t.logger.Debug().Str("from", t.key).Str("to", key).Msg("hour rolled over")
		t.load(ctx, key)
	}
	snap := t.snapshotLocked()
	t.mu.Unlock()

	if changed {
		t.notify(snap)
	}
}

// Load switches to the bucket for key: remote row first, local cache when the
// remote is unavailable or has no row, zeros otherwise.
func (t *Tracker) Load(ctx context.Context, key string) Snapshot {
	t.mu.Lock()
	t.load(ctx, key)
	snap := t.snapshotLocked()
	t.mu.Unlock()

	t.notify(snap)
	return snap
}

func (t *Tracker) load(ctx context.Context, key string) {
	t.key = key
	t.stats = types.HourStats{}

	date, hour, err := ParseHourKey(key)
	if err != nil {
		t.logger.Warn().Err(err).Msg("cannot load hour bucket")
		return
	}

	if t.remote != nil {
		row, err := t.remote.GetHourly(ctx, t.userID, date, hour)
		switch {
		case err == nil:
			t.stats = types.HourStats{Calls: row.Calls, Quotes: row.Quotes, Sales: row.Sales}
			return
		case !errors.Is(err, storage.ErrNotFound):
			t.logger.Warn().Err(err).Str("hour_key", key).Msg("remote hour read failed, using cache")
		}
	}

	if t.cache != nil {
		if stats, ok := t.cache.Get(ctx, t.userID, key); ok {
			t.stats = stats
		}
	}
}

// Snapshot returns the current state, adopting the current hour when no
// bucket has been loaded yet.
func (t *Tracker) Snapshot(ctx context.Context) Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.lastUsed = t.now()
	if t.key == "" {
		t.load(ctx, t.CurrentKey())
	}
	return t.snapshotLocked()
}

// ApplyDelta updates the current bucket. The local cache is written before
// returning; the remote upsert runs in the background and its outcome is
// recorded on the returned mutation. Remote writes of one tracker are applied
// in order by a single writer, so the remote row always ends on the newest
// local stats.
func (t *Tracker) ApplyDelta(ctx context.Context, d Delta) (Snapshot, Mutation) {
	t.mu.Lock()
	t.lastUsed = t.now()
	if t.key == "" {
		t.load(ctx, t.CurrentKey())
	}

	t.stats = d.apply(t.stats)
	key, stats := t.key, t.stats

	if t.cache != nil {
		t.cache.Set(ctx, t.userID, key, stats)
	}

	m := Mutation{
		ID:        uuid.NewString(),
		HourKey:   key,
		Delta:     d,
		Status:    MutationPending,
		CreatedAt: t.now(),
	}
	t.mutations.add(m)
	t.enqueueLocked(context.WithoutCancel(ctx), key, stats, m.ID)
	snap := t.snapshotLocked()
	t.mu.Unlock()

	t.notify(snap)
	return snap, m
}

// enqueueLocked queues stats for the remote store. A write still waiting for
// the same bucket is replaced so only the newest stats are sent.
func (t *Tracker) enqueueLocked(ctx context.Context, key string, stats types.HourStats, mutationID string) {
	if n := len(t.queue); n > 0 && t.queue[n-1].key == key {
		last := &t.queue[n-1]
		last.stats = stats
		last.mutations = append(last.mutations, mutationID)
	} else {
		t.queue = append(t.queue, hourWrite{key: key, stats: stats, mutations: []string{mutationID}})
	}

	if !t.writing {
		t.writing = true
		t.writes.Add(1)
		go t.drain(ctx)
	}
}

// drain sends queued writes one at a time until the queue is empty
func (t *Tracker) drain(ctx context.Context) {
	defer t.writes.Done()

	for {
		t.mu.Lock()
		if len(t.queue) == 0 {
			t.writing = false
			t.mu.Unlock()
			return
		}
		w := t.queue[0]
		t.queue = t.queue[1:]
		t.mu.Unlock()

		t.commit(ctx, w)
	}
}

func (t *Tracker) commit(ctx context.Context, w hourWrite) {
	status, errMsg := MutationCommitted, ""
	err := t.upsert(ctx, w.key, w.stats)
	metrics.Get().RecordHourWrite(err)
	if err != nil {
		status, errMsg = MutationFailed, err.Error()
		t.logger.Warn().Err(err).Str("hour_key", w.key).Strs("mutation_ids", w.mutations).Msg("remote hour write failed")
	}

	t.mu.Lock()
	for _, id := range w.mutations {
		t.mutations.resolve(id, status, errMsg)
	}
	snap := t.snapshotLocked()
	t.mu.Unlock()

	t.notify(snap)
}

func (t *Tracker) upsert(ctx context.Context, key string, stats types.HourStats) error {
	if t.remote == nil {
		return nil
	}
	date, hour, err := ParseHourKey(key)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, remoteWriteTimeout)
	defer cancel()

	return t.remote.UpsertHourly(ctx, types.HourlyCounter{
		UserID: t.userID,
		Date:   date,
		Hour:   hour,
		Calls:  stats.Calls,
		Quotes: stats.Quotes,
		Sales:  stats.Sales,
		Won:    Won(stats),
	})
}

// Wait blocks until every background remote write has finished
func (t *Tracker) Wait() {
	t.writes.Wait()
}

// idleSince returns the last time the tracker was read or written, and false
// while remote writes are still queued.
func (t *Tracker) idleSince() (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastUsed, !t.writing && len(t.queue) == 0
}

func (t *Tracker) snapshotLocked() Snapshot {
	return Snapshot{
		UserID:    t.userID,
		HourKey:   t.key,
		Stats:     t.stats,
		Won:       Won(t.stats),
		Pending:   t.mutations.count(MutationPending),
		Failed:    t.mutations.count(MutationFailed),
		Mutations: t.mutations.snapshot(),
	}
}

func (t *Tracker) notify(s Snapshot) {
	if t.onChange != nil {
		t.onChange(s)
	}
}
