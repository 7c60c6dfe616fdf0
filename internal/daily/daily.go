// Package daily serves a producer's per-day goals and the hour-by-hour review
// of the working day.
package daily

import (
	"context"
	"fmt"
	"time"

	"github.com/dailywin/backend/internal/dates"
	"github.com/dailywin/backend/internal/types"
	"github.com/dailywin/backend/pkg/validation"
	"github.com/rs/zerolog"
)

// Working hours shown in the review, inclusive
const (
	FirstHour = 9
	LastHour  = 17
)

// Store is the persistence for goals
type Store interface {
	GetGoals(ctx context.Context, userID, date string) (types.DailyGoals, error)
	UpsertGoals(ctx context.Context, g types.DailyGoals) error
}

// HourlyLister reads stored hour counters for a day
type HourlyLister interface {
	ListHourly(ctx context.Context, userID, date string) ([]types.HourlyCounter, error)
}

// HourRow is one working hour in the review
type HourRow struct {
	Hour   int  `json:"hour"`
	Calls  int  `json:"calls"`
	Quotes int  `json:"quotes"`
	Sales  int  `json:"sales"`
	Won    bool `json:"won"`
}

// Review is a day's hours and how many were won
type Review struct {
	Date  string    `json:"date"`
	Hours []HourRow `json:"hours"`
	Wins  int       `json:"wins"`
}

// Service implements goals and the daily review
type Service struct {
	store  Store
	hourly HourlyLister
	loc    *time.Location
	now    func() time.Time
	logger zerolog.Logger
}

// NewService creates a Service; a blank date means today in loc
func NewService(store Store, hourly HourlyLister, loc *time.Location, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		hourly: hourly,
		loc:    loc,
		now:    time.Now,
		logger: logger.With().Str("component", "daily").Logger(),
	}
}

// ResolveDate returns date, or today when blank, rejecting non-ISO values
func (s *Service) ResolveDate(date string) (string, error) {
	if date == "" {
		return dates.Today(s.now().In(s.loc)), nil
	}
	if _, err := dates.ParseDate(date, s.loc); err != nil {
		return "", validation.Errorf("date must be a date (YYYY-MM-DD).")
	}
	return date, nil
}

// Goals returns the user's goals for date, zeros when none were saved
func (s *Service) Goals(ctx context.Context, userID, date string) (types.DailyGoals, error) {
	date, err := s.ResolveDate(date)
	if err != nil {
		return types.DailyGoals{}, err
	}
	g, err := s.store.GetGoals(ctx, userID, date)
	if err != nil {
		return types.DailyGoals{}, fmt.Errorf("load goals: %w", err)
	}
	return g, nil
}

// SaveGoals upserts the user's goals; negative targets are rejected
func (s *Service) SaveGoals(ctx context.Context, userID string, g types.DailyGoals) (types.DailyGoals, error) {
	date, err := s.ResolveDate(g.Date)
	if err != nil {
		return types.DailyGoals{}, err
	}
	g.UserID = userID
	g.Date = date

	if err := validation.Struct(g); err != nil {
		return types.DailyGoals{}, err
	}
	if err := s.store.UpsertGoals(ctx, g); err != nil {
		return types.DailyGoals{}, fmt.Errorf("save goals: %w", err)
	}

	s.logger.Debug().Str("user_id", userID).Str("date", date).Msg("goals saved")
	return g, nil
}

// Review merges the stored hour counters into the 9..17 grid. Hours without
// a stored row are zeros and lost; hours outside the grid are ignored.
func (s *Service) Review(ctx context.Context, userID, date string) (Review, error) {
	date, err := s.ResolveDate(date)
	if err != nil {
		return Review{}, err
	}

	stored, err := s.hourly.ListHourly(ctx, userID, date)
	if err != nil {
		return Review{}, fmt.Errorf("load hours: %w", err)
	}
	byHour := make(map[int]types.HourlyCounter, len(stored))
	for _, h := range stored {
		byHour[h.Hour] = h
	}

	r := Review{Date: date, Hours: make([]HourRow, 0, LastHour-FirstHour+1)}
	for hour := FirstHour; hour <= LastHour; hour++ {
		row := HourRow{Hour: hour}
		if h, ok := byHour[hour]; ok {
			row = HourRow{Hour: hour, Calls: h.Calls, Quotes: h.Quotes, Sales: h.Sales, Won: h.Won}
		}
		if row.Won {
			r.Wins++
		}
		r.Hours = append(r.Hours, row)
	}
	return r, nil
}
