package aggregator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dailywin/backend/internal/dates"
	"github.com/dailywin/backend/internal/metrics"
	"github.com/dailywin/backend/internal/types"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Source is the row storage a dashboard reads from
type Source interface {
	ListProducers(ctx context.Context, agencyID string) ([]types.Producer, error)
	FetchDailyActivities(ctx context.Context, userIDs []string, r dates.Range) ([]types.DailyActivity, error)
	FetchAppointments(ctx context.Context, userIDs []string, from, to time.Time) ([]types.Appointment, error)
	FetchQuoteSales(ctx context.Context, userIDs []string, r dates.Range) ([]types.QuoteSale, error)
	RecentQuoteSales(ctx context.Context, userIDs []string, limit int) ([]types.QuoteSale, error)
	RecentAppointments(ctx context.Context, userIDs []string, limit int) ([]types.Appointment, error)
}

// Trigger re-runs a refresh when any of a producer set's rows change
type Trigger interface {
	SetProducers(ids []string)
	Close()
}

// TriggerFactory creates the realtime trigger of one agency's dashboard
type TriggerFactory func(agencyID, name string, refresh func(ctx context.Context)) Trigger

// Publisher delivers envelopes to websocket clients
type Publisher interface {
	Broadcast(env types.Envelope)
}

// Snapshot is the last computed state of a dashboard
type Snapshot struct {
	AgencyID   string              `json:"agencyId"`
	Range      dates.Range         `json:"range"`
	Rows       []types.ProducerRow `json:"rows"`
	TeamTotals types.Totals        `json:"teamTotals"`
	TeamRates  Rates               `json:"teamRates"`
	Feed       []types.FeedItem    `json:"feed"`
	Error      string              `json:"error,omitempty"`
	Loaded     bool                `json:"loaded"`
	UpdatedAt  time.Time           `json:"updatedAt"`
}

// Dashboard keeps one agency's rollup for one range up to date
type Dashboard struct {
	agencyID  string
	rng       dates.Range
	loc       *time.Location
	source    Source
	publisher Publisher
	logger    zerolog.Logger

	trigger Trigger

	refreshMu sync.Mutex

	mu       sync.RWMutex
	snap     Snapshot
	closed   bool
	lastUsed time.Time
}

func newDashboard(agencyID string, r dates.Range, loc *time.Location, source Source, publisher Publisher, logger zerolog.Logger) *Dashboard {
	return &Dashboard{
		agencyID:  agencyID,
		rng:       r,
		loc:       loc,
		source:    source,
		publisher: publisher,
		logger:    logger.With().Str("agency_id", agencyID).Str("range", r.Key()).Logger(),
		snap: Snapshot{
			AgencyID: agencyID,
			Range:    r,
			Rows:     []types.ProducerRow{},
			Feed:     []types.FeedItem{},
		},
	}
}

// Key identifies a dashboard by agency and range
func Key(agencyID string, r dates.Range) string {
	return agencyID + "|" + r.Key()
}

type fetched struct {
	producers    []types.Producer
	activities   []types.DailyActivity
	appointments []types.Appointment
	quoteSales   []types.QuoteSale
	recentQuotes []types.QuoteSale
	recentAppts  []types.Appointment
	from, to     time.Time
}

func (d *Dashboard) fetch(ctx context.Context) (fetched, error) {
	var f fetched

	from, to, err := dates.Window(d.rng, d.loc)
	if err != nil {
		return f, err
	}
	f.from, f.to = from, to

	f.producers, err = d.source.ListProducers(ctx, d.agencyID)
	if err != nil {
		return f, err
	}
	ids := make([]string, 0, len(f.producers))
	for _, p := range f.producers {
		ids = append(ids, p.ID)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		f.activities, err = d.source.FetchDailyActivities(gctx, ids, d.rng)
		return err
	})
	g.Go(func() (err error) {
		f.appointments, err = d.source.FetchAppointments(gctx, ids, from, to)
		return err
	})
	g.Go(func() (err error) {
		f.quoteSales, err = d.source.FetchQuoteSales(gctx, ids, d.rng)
		return err
	})
	g.Go(func() (err error) {
		f.recentQuotes, err = d.source.RecentQuoteSales(gctx, ids, FeedFetchLimit)
		return err
	})
	g.Go(func() (err error) {
		f.recentAppts, err = d.source.RecentAppointments(gctx, ids, FeedFetchLimit)
		return err
	})
	return f, g.Wait()
}

// Refresh recomputes the rollup. On a fetch failure the previous rows, totals
// and feed are kept and only Error is updated. Results arriving after Close
// are dropped.
func (d *Dashboard) Refresh(ctx context.Context) error {
	d.refreshMu.Lock()
	defer d.refreshMu.Unlock()

	if d.isClosed() {
		return nil
	}

	start := time.Now()
	f, err := d.fetch(ctx)
	metrics.Get().RecordDashboardRefresh(time.Since(start), err)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}

	if err != nil {
		d.snap.Error = err.Error()
		d.snap.UpdatedAt = time.Now()
		snap := d.copySnapshot()
		d.mu.Unlock()

		d.logger.Warn().Err(err).Msg("dashboard refresh failed, keeping previous rows")
		d.publish(snap)
		return fmt.Errorf("failed to refresh dashboard: %w", err)
	}

	result := Aggregate(Input{
		Producers:    f.producers,
		Activities:   f.activities,
		Appointments: f.appointments,
		QuoteSales:   f.quoteSales,
		Range:        d.rng,
		From:         f.from,
		To:           f.to,
	})

	d.snap = Snapshot{
		AgencyID:   d.agencyID,
		Range:      d.rng,
		Rows:       result.Rows,
		TeamTotals: result.TeamTotals,
		TeamRates:  TeamRates(result),
		Feed:       BuildFeed(f.recentQuotes, f.recentAppts, Names(f.producers), FeedSize),
		Loaded:     true,
		UpdatedAt:  time.Now(),
	}
	snap := d.copySnapshot()
	trigger := d.trigger
	d.mu.Unlock()

	if trigger != nil {
		ids := make([]string, 0, len(f.producers))
		for _, p := range f.producers {
			ids = append(ids, p.ID)
		}
		trigger.SetProducers(ids)
	}

	d.logger.Debug().
		Int("producers", len(f.producers)).
		Int("dials", result.TeamTotals.Dials).
		Dur("duration", time.Since(start)).
		Msg("dashboard refreshed")

	d.publish(snap)
	return nil
}

// Snapshot returns a copy of the last computed state
func (d *Dashboard) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.copySnapshot()
}

// Touch marks the dashboard as in use
func (d *Dashboard) Touch(now time.Time) {
	d.mu.Lock()
	d.lastUsed = now
	d.mu.Unlock()
}

func (d *Dashboard) idleSince() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastUsed
}

// Close stops the realtime trigger; later refresh results are discarded
func (d *Dashboard) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	trigger := d.trigger
	d.mu.Unlock()

	if trigger != nil {
		trigger.Close()
	}
}

func (d *Dashboard) isClosed() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.closed
}

func (d *Dashboard) copySnapshot() Snapshot {
	s := d.snap
	s.Rows = make([]types.ProducerRow, len(d.snap.Rows))
	copy(s.Rows, d.snap.Rows)
	s.Feed = make([]types.FeedItem, len(d.snap.Feed))
	copy(s.Feed, d.snap.Feed)
	return s
}

func (d *Dashboard) publish(s Snapshot) {
	if d.publisher == nil {
		return
	}
	d.publisher.Broadcast(types.Envelope{
		Type:      types.MessageDashboard,
		Timestamp: time.Now(),
		Payload:   s,
		Audience:  types.Audience{AgencyID: d.agencyID, RangeKey: d.rng.Key()},
	})
}
