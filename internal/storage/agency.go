package storage

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/dailywin/backend/internal/types"
	"github.com/jackc/pgx/v5"
)

func profileQuery(userID string) sq.SelectBuilder {
	return psql.Select(
		"p.id", "p.first_name", "p.last_name", "p.email", "p.agency_id", "p.role", "a.name",
	).
		From("profiles p").
		LeftJoin("agencies a ON a.id = p.agency_id").
		Where(sq.Eq{"p.id": userID})
}

// GetProfile returns the profile joined with its agency name
func (s *Store) GetProfile(ctx context.Context, userID string) (types.Profile, error) {
	var p types.Profile
	err := s.queryRow(ctx, profileQuery(userID),
		&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.AgencyID, &p.Role, &p.AgencyName)
	if errors.Is(err, ErrNotFound) {
		return types.Profile{}, ErrNotFound
	}
	if err != nil {
		return types.Profile{}, fmt.Errorf("failed to fetch profile: %w", err)
	}
	return p, nil
}

// EnsureProfile creates a bare profile for a first-time user and returns it
func (s *Store) EnsureProfile(ctx context.Context, userID, email string) (types.Profile, error) {
	b := psql.Insert("profiles").
		Columns("id", "email", "role").
		Values(userID, email, types.RoleProducer).
		Suffix("ON CONFLICT (id) DO NOTHING")

	if _, err := s.exec(ctx, b); err != nil {
		return types.Profile{}, fmt.Errorf("failed to create profile: %w", err)
	}
	return s.GetProfile(ctx, userID)
}

// ListAgencies returns every agency ordered by name
func (s *Store) ListAgencies(ctx context.Context) ([]types.Agency, error) {
	b := psql.Select("id", "name", "address1", "address2", "city", "state", "zip").
		From("agencies").
		OrderBy("name ASC")

	agencies, err := collect(ctx, s, b, func(row pgx.Row) (types.Agency, error) {
		var a types.Agency
		err := row.Scan(&a.ID, &a.Name, &a.Address1, &a.Address2, &a.City, &a.State, &a.Zip)
		return a, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch agencies: %w", err)
	}
	return agencies, nil
}

// CreateAgency inserts an agency and makes the creator its admin
func (s *Store) CreateAgency(ctx context.Context, a types.Agency, creatorID string) (types.Agency, error) {
	err := s.inTx(ctx, func(tx *Store) error {
		b := psql.Insert("agencies").
			Columns("name", "address1", "address2", "city", "state", "zip").
			Values(a.Name, a.Address1, a.Address2, a.City, a.State, a.Zip).
			Suffix("RETURNING id")
		if err := tx.queryRow(ctx, b, &a.ID); err != nil {
			return fmt.Errorf("failed to insert agency: %w", err)
		}
		return tx.setAgency(ctx, creatorID, a.ID, types.RoleAdmin)
	})
	if err != nil {
		return types.Agency{}, err
	}
	return a, nil
}

// JoinAgency sets the user's agency as a producer
func (s *Store) JoinAgency(ctx context.Context, userID, agencyID string) error {
	var one int
	b := psql.Select("1").From("agencies").Where(sq.Eq{"id": agencyID})
	if err := s.queryRow(ctx, b, &one); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to look up agency: %w", err)
	}
	return s.setAgency(ctx, userID, agencyID, types.RoleProducer)
}

func (s *Store) setAgency(ctx context.Context, userID, agencyID, role string) error {
	b := psql.Update("profiles").
		Set("agency_id", agencyID).
		Set("role", role).
		Where(sq.Eq{"id": userID})

	n, err := s.exec(ctx, b)
	if err != nil {
		return fmt.Errorf("failed to update profile agency: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanDNCDay(row pgx.Row) (types.DNCDay, error) {
	var d types.DNCDay
	err := row.Scan(&d.ID, &d.AgencyID, &d.Date, &d.HolidayName)
	return d, err
}

// ListDNCDays returns an agency's Do-Not-Call days ordered by date
func (s *Store) ListDNCDays(ctx context.Context, agencyID string) ([]types.DNCDay, error) {
	b := psql.Select("id", "agency_id", "date::text", "holiday_name").
		From("dnc_days").
		Where(sq.Eq{"agency_id": agencyID}).
		OrderBy("date ASC")

	days, err := collect(ctx, s, b, scanDNCDay)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch dnc days: %w", err)
	}
	return days, nil
}

// CreateDNCDay inserts a Do-Not-Call day for the agency
func (s *Store) CreateDNCDay(ctx context.Context, d types.DNCDay) (types.DNCDay, error) {
	b := psql.Insert("dnc_days").
		Columns("agency_id", "date", "holiday_name").
		Values(d.AgencyID, d.Date, d.HolidayName).
		Suffix("RETURNING id")

	if err := s.queryRow(ctx, b, &d.ID); err != nil {
		return types.DNCDay{}, fmt.Errorf("failed to insert dnc day: %w", err)
	}
	return d, nil
}

// UpdateDNCDay updates a day belonging to d.AgencyID
func (s *Store) UpdateDNCDay(ctx context.Context, d types.DNCDay) error {
	b := psql.Update("dnc_days").
		Set("date", d.Date).
		Set("holiday_name", d.HolidayName).
		Where(sq.Eq{"id": d.ID, "agency_id": d.AgencyID})

	n, err := s.exec(ctx, b)
	if err != nil {
		return fmt.Errorf("failed to update dnc day: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteDNCDay removes a day belonging to agencyID
func (s *Store) DeleteDNCDay(ctx context.Context, agencyID, id string) error {
	b := psql.Delete("dnc_days").Where(sq.Eq{"id": id, "agency_id": agencyID})

	n, err := s.exec(ctx, b)
	if err != nil {
		return fmt.Errorf("failed to delete dnc day: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// HolidayFor returns the holiday name of the agency's DNC day on date, or empty
func (s *Store) HolidayFor(ctx context.Context, agencyID, date string) (string, error) {
	b := psql.Select("holiday_name").
		From("dnc_days").
		Where(sq.Eq{"agency_id": agencyID, "date": date}).
		Limit(1)

	var name string
	err := s.queryRow(ctx, b, &name)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to fetch dnc day: %w", err)
	}
	return name, nil
}
