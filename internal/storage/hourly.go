package storage

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/dailywin/backend/internal/types"
	"github.com/jackc/pgx/v5"
)

var hourlyColumns = []string{"user_id", "date::text", "hour", "calls", "quotes", "sales", "won"}

func scanHourly(row pgx.Row) (types.HourlyCounter, error) {
	var h types.HourlyCounter
	err := row.Scan(&h.UserID, &h.Date, &h.Hour, &h.Calls, &h.Quotes, &h.Sales, &h.Won)
	return h, err
}

// GetHourly returns the counter row for one (user, date, hour); ErrNotFound when absent
func (s *Store) GetHourly(ctx context.Context, userID, date string, hour int) (types.HourlyCounter, error) {
	b := psql.Select(hourlyColumns...).
		From("hourly_activity").
		Where(sq.Eq{"user_id": userID, "date": date, "hour": hour})

	var h types.HourlyCounter
	err := s.queryRow(ctx, b, &h.UserID, &h.Date, &h.Hour, &h.Calls, &h.Quotes, &h.Sales, &h.Won)
	if errors.Is(err, ErrNotFound) {
		return types.HourlyCounter{}, ErrNotFound
	}
	if err != nil {
		return types.HourlyCounter{}, fmt.Errorf("failed to fetch hourly activity: %w", err)
	}
	return h, nil
}

func upsertHourlyQuery(h types.HourlyCounter) sq.InsertBuilder {
	return psql.Insert("hourly_activity").
		Columns("user_id", "date", "hour", "calls", "quotes", "sales", "won").
		Values(h.UserID, h.Date, h.Hour, h.Calls, h.Quotes, h.Sales, h.Won).
		Suffix("ON CONFLICT (user_id, date, hour) DO UPDATE SET " +
			"calls = EXCLUDED.calls, quotes = EXCLUDED.quotes, sales = EXCLUDED.sales, " +
			"won = EXCLUDED.won, updated_at = now()")
}

// UpsertHourly writes the full counter row keyed by (user, date, hour)
func (s *Store) UpsertHourly(ctx context.Context, h types.HourlyCounter) error {
	if _, err := s.exec(ctx, upsertHourlyQuery(h)); err != nil {
		return fmt.Errorf("failed to upsert hourly activity: %w", err)
	}
	return nil
}

// ListHourly returns every stored hour of one user's day ordered by hour
func (s *Store) ListHourly(ctx context.Context, userID, date string) ([]types.HourlyCounter, error) {
	b := psql.Select(hourlyColumns...).
		From("hourly_activity").
		Where(sq.Eq{"user_id": userID, "date": date}).
		OrderBy("hour ASC")

	rows, err := collect(ctx, s, b, scanHourly)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch hourly activity: %w", err)
	}
	return rows, nil
}
