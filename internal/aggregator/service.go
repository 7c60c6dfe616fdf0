package aggregator

import (
	"context"
	"sync"
	"time"

	"github.com/dailywin/backend/internal/dates"
	"github.com/dailywin/backend/internal/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// ServiceOptions configures the dashboard service
type ServiceOptions struct {
	Location    *time.Location
	IdleTimeout time.Duration
	Publisher   Publisher
	NewTrigger  TriggerFactory
	Now         func() time.Time
}

// Service keeps one Dashboard per agency and range, created on demand and
// closed after sitting idle.
type Service struct {
	source     Source
	loc        *time.Location
	idle       time.Duration
	publisher  Publisher
	newTrigger TriggerFactory
	now        func() time.Time
	logger     zerolog.Logger

	mu         sync.Mutex
	dashboards map[string]*Dashboard

	// first loads of the same dashboard share one fetch
	loads singleflight.Group
}

// NewService creates a new dashboard service
func NewService(source Source, opts ServiceOptions, logger zerolog.Logger) *Service {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 10 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		source:     source,
		loc:        opts.Location,
		idle:       opts.IdleTimeout,
		publisher:  opts.Publisher,
		newTrigger: opts.NewTrigger,
		now:        opts.Now,
		logger:     logger.With().Str("component", "dashboards").Logger(),
		dashboards: make(map[string]*Dashboard),
	}
}

// Location is the business time zone dashboards resolve ranges in
func (s *Service) Location() *time.Location {
	return s.loc
}

// Dashboard returns the dashboard for an agency and range, creating it when needed
func (s *Service) Dashboard(agencyID string, r dates.Range) (*Dashboard, bool) {
	key := Key(agencyID, r)

	s.mu.Lock()
	defer s.mu.Unlock()

	if d, ok := s.dashboards[key]; ok {
		d.Touch(s.now())
		return d, false
	}

	d := newDashboard(agencyID, r, s.loc, s.source, s.publisher, s.logger)
	if s.newTrigger != nil {
		d.trigger = s.newTrigger(agencyID, key, func(ctx context.Context) {
			if err := d.Refresh(ctx); err != nil {
				s.logger.Debug().Err(err).Str("dashboard", key).Msg("triggered refresh failed")
			}
		})
	}
	d.Touch(s.now())
	s.dashboards[key] = d
	metrics.Get().SetActiveDashboards(len(s.dashboards))

	s.logger.Debug().Str("dashboard", key).Msg("dashboard created")
	return d, true
}

// Get returns the current snapshot, loading the dashboard first if it has
// never loaded. An error is returned only when there is nothing to show.
func (s *Service) Get(ctx context.Context, agencyID string, r dates.Range) (Snapshot, error) {
	d, _ := s.Dashboard(agencyID, r)

	if snap := d.Snapshot(); snap.Loaded {
		return snap, nil
	}
	_, err, _ := s.loads.Do(Key(agencyID, r), func() (interface{}, error) {
		return nil, d.Refresh(ctx)
	})
	if err != nil {
		if snap := d.Snapshot(); snap.Loaded {
			return snap, nil
		}
		return Snapshot{}, err
	}
	return d.Snapshot(), nil
}

// Len returns the number of live dashboards
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.dashboards)
}

// Evict closes dashboards idle since before now minus the idle timeout
func (s *Service) Evict(now time.Time) int {
	s.mu.Lock()
	var stale []*Dashboard
	for key, d := range s.dashboards {
		if now.Sub(d.idleSince()) > s.idle {
			stale = append(stale, d)
			delete(s.dashboards, key)
		}
	}
	remaining := len(s.dashboards)
	s.mu.Unlock()

	for _, d := range stale {
		d.Close()
	}

	if len(stale) > 0 {
		m := metrics.Get()
		m.RecordDashboardsEvicted(len(stale))
		m.SetActiveDashboards(remaining)
		s.logger.Debug().Int("evicted", len(stale)).Int("remaining", remaining).Msg("idle dashboards closed")
	}
	return len(stale)
}

// Start evicts idle dashboards until ctx is cancelled, then closes the rest
func (s *Service) Start(ctx context.Context) {
	interval := s.idle / 2
	if interval > time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info().Dur("idle_timeout", s.idle).Msg("dashboard service started")

	for {
		select {
		case <-ctx.Done():
			s.Close()
			s.logger.Info().Msg("dashboard service stopped")
			return

		case <-ticker.C:
			s.Evict(s.now())
		}
	}
}

// Close closes every dashboard
func (s *Service) Close() {
	s.mu.Lock()
	dashboards := s.dashboards
	s.dashboards = make(map[string]*Dashboard)
	s.mu.Unlock()

	for _, d := range dashboards {
		d.Close()
	}
	metrics.Get().SetActiveDashboards(0)
}
