package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/dailywin/backend/internal/types"
)

// ErrUnknownCounter is returned for a field outside the seven counters
var ErrUnknownCounter = errors.New("unknown counter field")

// GetDailyActivity returns one producer's counters for a date, zeros when absent
func (s *Store) GetDailyActivity(ctx context.Context, userID, date string) (types.Counters, error) {
	b := psql.Select(counterColumns...).
		From("daily_activities").
		Where(sq.Eq{"user_id": userID, "date": date})

	var c types.Counters
	err := s.queryRow(ctx, b, counterDests(&c)...)
	if errors.Is(err, ErrNotFound) {
		return types.Counters{}, nil
	}
	if err != nil {
		return types.Counters{}, fmt.Errorf("failed to fetch daily activity: %w", err)
	}
	return c, nil
}

func incrementCounterQuery(userID, date, field string, delta int) sq.InsertBuilder {
	return psql.Insert("daily_activities").
		Columns("user_id", "date", field).
		Values(userID, date, sq.Expr("GREATEST(?::int, 0)", delta)).
		Suffix(fmt.Sprintf(
			"ON CONFLICT (user_id, date) DO UPDATE SET %[1]s = GREATEST(daily_activities.%[1]s + ?::int, 0), updated_at = now() RETURNING %[2]s",
			field, strings.Join(counterColumns, ", "),
		), delta)
}

// IncrementCounter adds delta to one counter of the (user, date) row, creating
// it when absent; the stored value never drops below zero.
func (s *Store) IncrementCounter(ctx context.Context, userID, date, field string, delta int) (types.Counters, error) {
	if !types.IsCounterField(field) {
		return types.Counters{}, fmt.Errorf("%w: %s", ErrUnknownCounter, field)
	}

	var c types.Counters
	if err := s.queryRow(ctx, incrementCounterQuery(userID, date, field, delta), counterDests(&c)...); err != nil {
		return types.Counters{}, fmt.Errorf("failed to update daily activity: %w", err)
	}
	return c, nil
}

// InsertQuoteSale stores a quote/sale record and returns its id
func (s *Store) InsertQuoteSale(ctx context.Context, q types.QuoteSale) (string, error) {
	b := psql.Insert("quotes_sales").
		Columns(
			"user_id", "policyholder", "lob", "policy_type", "zipcode",
			"quoted_date", "quoted_premium",
			"written_date", "written_premium",
			"issued_date", "issued_premium",
		).
		Values(
			q.UserID, q.Policyholder, q.LOB, q.PolicyType, q.Zipcode,
			q.QuotedDate, q.QuotedPremium,
			q.WrittenDate, q.WrittenPremium,
			q.IssuedDate, q.IssuedPremium,
		).
		Suffix("RETURNING id")

	var id string
	if err := s.queryRow(ctx, b, &id); err != nil {
		return "", fmt.Errorf("failed to insert quote: %w", err)
	}
	return id, nil
}

// InsertAppointment stores a callback appointment and returns its id
func (s *Store) InsertAppointment(ctx context.Context, a types.Appointment) (string, error) {
	b := psql.Insert("daily_appointments").
		Columns("user_id", "datetime", "policyholder", "lob", "policy_type").
		Values(a.UserID, a.Datetime, a.Policyholder, a.LOB, a.PolicyType).
		Suffix("RETURNING id")

	var id string
	if err := s.queryRow(ctx, b, &id); err != nil {
		return "", fmt.Errorf("failed to insert appointment: %w", err)
	}
	return id, nil
}
