// Package activity records a producer's call outcomes, quotes and callbacks
// for the current day and keeps the hour scoreboard in step with them.
package activity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aarondl/null/v8"
	"github.com/dailywin/backend/internal/aggregator"
	"github.com/dailywin/backend/internal/dates"
	"github.com/dailywin/backend/internal/scoreboard"
	"github.com/dailywin/backend/internal/types"
	"github.com/dailywin/backend/pkg/validation"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrQuoteRequired means the increment must go through LogQuote
	ErrQuoteRequired = errors.New("quote details required")

	// ErrCallbackRequired means the increment must go through LogCallback
	ErrCallbackRequired = errors.New("callback details required")
)

// IsQuoteTrigger reports whether incrementing field requires quote details
func IsQuoteTrigger(field string) bool {
	switch field {
	case types.FieldQuotedCallback, types.FieldQuotedLost, types.FieldSales:
		return true
	}
	return false
}

// HourDelta is the scoreboard change for a plain counter edit
func HourDelta(field string, delta int) scoreboard.Delta {
	d := scoreboard.Delta{Calls: delta}
	if IsQuoteTrigger(field) {
		if field == types.FieldSales {
			d.Sales = delta
		} else {
			d.Quotes = delta
		}
	}
	return d
}

// updatesHour reports whether a plain counter edit moves the scoreboard.
// Positive trigger edits are counted when their form is saved instead.
func updatesHour(field string, delta int) bool {
	return delta < 0 || (!IsQuoteTrigger(field) && field != types.FieldCallbackScheduled)
}

// Store is the persistence the activity log needs
type Store interface {
	GetDailyActivity(ctx context.Context, userID, date string) (types.Counters, error)
	IncrementCounter(ctx context.Context, userID, date, field string, delta int) (types.Counters, error)
	InsertQuoteSale(ctx context.Context, q types.QuoteSale) (string, error)
	InsertAppointment(ctx context.Context, a types.Appointment) (string, error)
	RecentQuoteSales(ctx context.Context, userIDs []string, limit int) ([]types.QuoteSale, error)
	RecentAppointments(ctx context.Context, userIDs []string, limit int) ([]types.Appointment, error)
}

// HourTracker applies scoreboard deltas for a user
type HourTracker interface {
	ApplyDelta(ctx context.Context, userID string, d scoreboard.Delta) (scoreboard.Snapshot, scoreboard.Mutation)
}

// Result is today's counters after a write, plus the scoreboard when it moved
type Result struct {
	Counters types.Counters       `json:"counters"`
	Hour     *scoreboard.Snapshot `json:"hour,omitempty"`
	RecordID string               `json:"recordId,omitempty"`
}

// Service implements the activity log for the signed-in producer
type Service struct {
	store  Store
	hours  HourTracker
	loc    *time.Location
	now    func() time.Time
	logger zerolog.Logger
}

// NewService creates a Service; today is evaluated in loc
func NewService(store Store, hours HourTracker, loc *time.Location, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		hours:  hours,
		loc:    loc,
		now:    time.Now,
		logger: logger.With().Str("component", "activity").Logger(),
	}
}

func (s *Service) today() string {
	return dates.Today(s.now().In(s.loc))
}

func (s *Service) moveHour(ctx context.Context, userID string, d scoreboard.Delta) *scoreboard.Snapshot {
	if s.hours == nil || d.IsZero() {
		return nil
	}
	snap, _ := s.hours.ApplyDelta(ctx, userID, d)
	return &snap
}

// Today returns the caller's counters for today, zeros when nothing is logged
func (s *Service) Today(ctx context.Context, p types.Profile) (types.Counters, error) {
	c, err := s.store.GetDailyActivity(ctx, p.ID, s.today())
	if err != nil {
		return types.Counters{}, fmt.Errorf("load activity: %w", err)
	}
	return c, nil
}

// ApplyDelta changes one counter by delta, never below zero. Positive edits of
// quote-trigger fields and callback_scheduled are refused; they are logged
// through LogQuote and LogCallback so the details are captured.
func (s *Service) ApplyDelta(ctx context.Context, p types.Profile, field string, delta int) (Result, error) {
	if !types.IsCounterField(field) {
		return Result{}, validation.Errorf("Unknown activity field %q.", field)
	}
	if delta == 0 {
		c, err := s.Today(ctx, p)
		return Result{Counters: c}, err
	}
	if delta > 0 && IsQuoteTrigger(field) {
		return Result{}, ErrQuoteRequired
	}
	if delta > 0 && field == types.FieldCallbackScheduled {
		return Result{}, ErrCallbackRequired
	}

	var res Result
	if updatesHour(field, delta) {
		res.Hour = s.moveHour(ctx, p.ID, HourDelta(field, delta))
	}

	c, err := s.store.IncrementCounter(ctx, p.ID, s.today(), field, delta)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", p.ID).Str("field", field).Msg("failed to save activity")
		return res, fmt.Errorf("save activity: %w", err)
	}
	res.Counters = c
	return res, nil
}

// LogQuote records a quote or sale. When the request carries a trigger field,
// the counter is bumped by Delta and the scoreboard gains Delta calls plus one
// quote (or one sale for sales_count).
func (s *Service) LogQuote(ctx context.Context, p types.Profile, req QuoteRequest) (Result, error) {
	req.QuoteForm = req.QuoteForm.Normalize()
	if req.Policyholder == "" {
		return Result{}, validation.Errorf("Policyholder is required.")
	}

	var callbackAt time.Time
	if req.Field == types.FieldQuotedCallback {
		if strings.TrimSpace(req.CallbackDatetime) == "" {
			return Result{}, validation.Errorf("Callback date/time is required.")
		}
		t, err := ParseDatetime(req.CallbackDatetime, s.loc)
		if err != nil {
			return Result{}, err
		}
		callbackAt = t
	}
	if err := validation.Struct(req); err != nil {
		return Result{}, err
	}
	if req.Field != "" && req.Delta == 0 {
		req.Delta = 1
	}

	if !req.QuotedDate.Valid {
		req.QuotedDate = null.StringFrom(s.today())
	}
	id, err := s.store.InsertQuoteSale(ctx, req.Apply(types.QuoteSale{UserID: p.ID}))
	if err != nil {
		return Result{}, fmt.Errorf("save quote: %w", err)
	}
	res := Result{RecordID: id}

	if req.Field == types.FieldQuotedCallback {
		if _, err := s.store.InsertAppointment(ctx, types.Appointment{
			UserID:       p.ID,
			Datetime:     callbackAt,
			Policyholder: req.Policyholder,
		}); err != nil {
			return res, fmt.Errorf("save callback: %w", err)
		}
	}

	if req.Field == "" {
		res.Counters, err = s.Today(ctx, p)
		return res, err
	}

	res.Counters, err = s.store.IncrementCounter(ctx, p.ID, s.today(), req.Field, req.Delta)
	if err != nil {
		return res, fmt.Errorf("save activity: %w", err)
	}

	d := scoreboard.Delta{Calls: req.Delta, Quotes: 1}
	if req.Field == types.FieldSales {
		d = scoreboard.Delta{Calls: req.Delta, Sales: 1}
	}
	res.Hour = s.moveHour(ctx, p.ID, d)
	return res, nil
}

// LogCallback records a scheduled callback and bumps callback_scheduled
func (s *Service) LogCallback(ctx context.Context, p types.Profile, req CallbackRequest) (Result, error) {
	req.Policyholder = strings.TrimSpace(req.Policyholder)
	req.LOB = blankToNull(req.LOB)
	req.PolicyType = blankToNull(req.PolicyType)

	if req.Policyholder == "" {
		return Result{}, validation.Errorf("Policyholder is required.")
	}
	if strings.TrimSpace(req.Datetime) == "" {
		return Result{}, validation.Errorf("Callback date/time is required.")
	}
	at, err := ParseDatetime(req.Datetime, s.loc)
	if err != nil {
		return Result{}, err
	}
	if err := validation.Struct(req); err != nil {
		return Result{}, err
	}
	if req.Delta == 0 {
		req.Delta = 1
	}

	id, err := s.store.InsertAppointment(ctx, types.Appointment{
		UserID:       p.ID,
		Datetime:     at,
		Policyholder: req.Policyholder,
		LOB:          req.LOB,
		PolicyType:   req.PolicyType,
	})
	if err != nil {
		return Result{}, fmt.Errorf("save callback: %w", err)
	}
	res := Result{RecordID: id}

	res.Counters, err = s.store.IncrementCounter(ctx, p.ID, s.today(), types.FieldCallbackScheduled, req.Delta)
	if err != nil {
		return res, fmt.Errorf("save activity: %w", err)
	}
	res.Hour = s.moveHour(ctx, p.ID, scoreboard.Delta{Calls: req.Delta})
	return res, nil
}

// Feed returns the caller's most recent quotes, sales and callbacks
func (s *Service) Feed(ctx context.Context, p types.Profile) ([]types.FeedItem, error) {
	var (
		quotes []types.QuoteSale
		appts  []types.Appointment
	)
	ids := []string{p.ID}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		quotes, err = s.store.RecentQuoteSales(gctx, ids, aggregator.FeedFetchLimit)
		return err
	})
	g.Go(func() error {
		var err error
		appts, err = s.store.RecentAppointments(gctx, ids, aggregator.FeedFetchLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load feed: %w", err)
	}

	names := map[string]string{p.ID: p.DisplayName()}
	return aggregator.BuildFeed(quotes, appts, names, aggregator.FeedSize), nil
}
