package storage

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/dailywin/backend/internal/dates"
	"github.com/dailywin/backend/internal/types"
	"github.com/jackc/pgx/v5"
)

const quoteSaleFetchLimit = 200

var counterColumns = types.CounterFields

var appointmentColumns = []string{
	"id", "user_id", "datetime", "policyholder", "lob", "policy_type", "created_at",
}

var quoteSaleColumns = []string{
	"id", "user_id", "policyholder", "lob", "policy_type", "zipcode",
	"quoted_date::text", "quoted_premium::float8",
	"written_date::text", "written_premium::float8",
	"issued_date::text", "issued_premium::float8",
	"created_at",
}

func counterDests(c *types.Counters) []any {
	return []any{
		&c.NoAnswer, &c.BadContact, &c.NotInterested, &c.CallbackScheduled,
		&c.QuotedCallback, &c.QuotedLost, &c.Sales,
	}
}

func scanDailyActivity(row pgx.Row) (types.DailyActivity, error) {
	var a types.DailyActivity
	dest := append([]any{&a.UserID, &a.Date}, counterDests(&a.Counters)...)
	err := row.Scan(dest...)
	return a, err
}

func scanAppointment(row pgx.Row) (types.Appointment, error) {
	var a types.Appointment
	err := row.Scan(&a.ID, &a.UserID, &a.Datetime, &a.Policyholder, &a.LOB, &a.PolicyType, &a.CreatedAt)
	return a, err
}

func quoteSaleDests(q *types.QuoteSale) []any {
	return []any{
		&q.ID, &q.UserID, &q.Policyholder, &q.LOB, &q.PolicyType, &q.Zipcode,
		&q.QuotedDate, &q.QuotedPremium,
		&q.WrittenDate, &q.WrittenPremium,
		&q.IssuedDate, &q.IssuedPremium,
		&q.CreatedAt,
	}
}

func scanQuoteSale(row pgx.Row) (types.QuoteSale, error) {
	var q types.QuoteSale
	err := row.Scan(quoteSaleDests(&q)...)
	return q, err
}

func producersQuery(agencyID string) sq.SelectBuilder {
	return psql.Select("id", "first_name", "last_name").
		From("profiles").
		Where(sq.Eq{"agency_id": agencyID}).
		OrderBy("last_name ASC NULLS LAST", "first_name ASC NULLS LAST")
}

// ListProducers returns the producers of one agency ordered by last name
func (s *Store) ListProducers(ctx context.Context, agencyID string) ([]types.Producer, error) {
	producers, err := collect(ctx, s, producersQuery(agencyID), func(row pgx.Row) (types.Producer, error) {
		var p types.Producer
		err := row.Scan(&p.ID, &p.FirstName, &p.LastName)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch producers: %w", err)
	}
	return producers, nil
}

func dailyActivitiesQuery(userIDs []string, r dates.Range) sq.SelectBuilder {
	return psql.Select(append([]string{"user_id", "date::text"}, counterColumns...)...).
		From("daily_activities").
		Where(sq.Eq{"user_id": userIDs}).
		Where(sq.GtOrEq{"date": r.StartDate}).
		Where(sq.LtOrEq{"date": r.EndDate})
}

// FetchDailyActivities returns counter rows with date inside the range
func (s *Store) FetchDailyActivities(ctx context.Context, userIDs []string, r dates.Range) ([]types.DailyActivity, error) {
	if len(userIDs) == 0 {
		return []types.DailyActivity{}, nil
	}
	rows, err := collect(ctx, s, dailyActivitiesQuery(userIDs, r), scanDailyActivity)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch daily activities: %w", err)
	}
	return rows, nil
}

func appointmentsQuery(userIDs []string, from, to time.Time) sq.SelectBuilder {
	return psql.Select(appointmentColumns...).
		From("daily_appointments").
		Where(sq.Eq{"user_id": userIDs}).
		Where(sq.GtOrEq{"datetime": from}).
		Where(sq.Lt{"datetime": to}).
		OrderBy("datetime ASC")
}

// FetchAppointments returns appointments in the half-open window [from, to)
func (s *Store) FetchAppointments(ctx context.Context, userIDs []string, from, to time.Time) ([]types.Appointment, error) {
	if len(userIDs) == 0 {
		return []types.Appointment{}, nil
	}
	rows, err := collect(ctx, s, appointmentsQuery(userIDs, from, to), scanAppointment)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch appointments: %w", err)
	}
	return rows, nil
}

func dateInRange(column string, r dates.Range) sq.And {
	return sq.And{sq.GtOrEq{column: r.StartDate}, sq.LtOrEq{column: r.EndDate}}
}

func quoteSalesQuery(userIDs []string, r dates.Range) sq.SelectBuilder {
	return psql.Select(quoteSaleColumns...).
		From("quotes_sales").
		Where(sq.Eq{"user_id": userIDs}).
		Where(sq.Or{
			dateInRange("quoted_date", r),
			dateInRange("written_date", r),
			dateInRange("issued_date", r),
		}).
		OrderBy("created_at DESC").
		Limit(quoteSaleFetchLimit)
}

// FetchQuoteSales returns records whose quoted, written or issued date falls in the range
func (s *Store) FetchQuoteSales(ctx context.Context, userIDs []string, r dates.Range) ([]types.QuoteSale, error) {
	if len(userIDs) == 0 {
		return []types.QuoteSale{}, nil
	}
	rows, err := collect(ctx, s, quoteSalesQuery(userIDs, r), scanQuoteSale)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch quotes and sales: %w", err)
	}
	return rows, nil
}

// RecentQuoteSales returns the newest records for the activity feed
func (s *Store) RecentQuoteSales(ctx context.Context, userIDs []string, limit int) ([]types.QuoteSale, error) {
	if len(userIDs) == 0 {
		return []types.QuoteSale{}, nil
	}
	b := psql.Select(quoteSaleColumns...).
		From("quotes_sales").
		Where(sq.Eq{"user_id": userIDs}).
		OrderBy("created_at DESC").
		Limit(uint64(limit))

	rows, err := collect(ctx, s, b, scanQuoteSale)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recent quotes: %w", err)
	}
	return rows, nil
}

// RecentAppointments returns the newest appointments for the activity feed
func (s *Store) RecentAppointments(ctx context.Context, userIDs []string, limit int) ([]types.Appointment, error) {
	if len(userIDs) == 0 {
		return []types.Appointment{}, nil
	}
	b := psql.Select(appointmentColumns...).
		From("daily_appointments").
		Where(sq.Eq{"user_id": userIDs}).
		OrderBy("created_at DESC").
		Limit(uint64(limit))

	rows, err := collect(ctx, s, b, scanAppointment)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recent appointments: %w", err)
	}
	return rows, nil
}
