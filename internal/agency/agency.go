// Package agency manages tenants: profile membership, agency creation and
// joining, and the agency's Do-Not-Call calendar.
package agency

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aarondl/null/v8"
	"github.com/dailywin/backend/internal/dates"
	"github.com/dailywin/backend/internal/types"
	"github.com/dailywin/backend/pkg/validation"
	"github.com/rs/zerolog"
)

// Store is the persistence for profiles, agencies and DNC days
type Store interface {
	GetProfile(ctx context.Context, userID string) (types.Profile, error)
	EnsureProfile(ctx context.Context, userID, email string) (types.Profile, error)
	ListAgencies(ctx context.Context) ([]types.Agency, error)
	CreateAgency(ctx context.Context, a types.Agency, creatorID string) (types.Agency, error)
	JoinAgency(ctx context.Context, userID, agencyID string) error
	ListDNCDays(ctx context.Context, agencyID string) ([]types.DNCDay, error)
	CreateDNCDay(ctx context.Context, d types.DNCDay) (types.DNCDay, error)
	UpdateDNCDay(ctx context.Context, d types.DNCDay) error
	DeleteDNCDay(ctx context.Context, agencyID, id string) error
	HolidayFor(ctx context.Context, agencyID, date string) (string, error)
}

// CreateRequest is the new-agency form
type CreateRequest struct {
	Name     string      `json:"name" validate:"min=2"`
	Address1 null.String `json:"address1"`
	Address2 null.String `json:"address2"`
	City     null.String `json:"city"`
	State    null.String `json:"state"`
	Zip      null.String `json:"zip"`
}

// DNCRequest creates or edits a Do-Not-Call day
type DNCRequest struct {
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	HolidayName string `json:"holiday_name" validate:"required"`
}

// Service implements agency membership and DNC administration
type Service struct {
	store  Store
	loc    *time.Location
	now    func() time.Time
	logger zerolog.Logger
}

// NewService creates a Service; "today" for DNC lookups is evaluated in loc
func NewService(store Store, loc *time.Location, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		loc:    loc,
		now:    time.Now,
		logger: logger.With().Str("component", "agency").Logger(),
	}
}

// Profile loads the caller's profile, creating a bare one on first sign-in
func (s *Service) Profile(ctx context.Context, userID, email string) (types.Profile, error) {
	p, err := s.store.EnsureProfile(ctx, userID, email)
	if err != nil {
		return types.Profile{}, fmt.Errorf("load profile: %w", err)
	}
	return p, nil
}

// EnsureProfile satisfies the websocket handler's profile lookup
func (s *Service) EnsureProfile(ctx context.Context, userID, email string) (types.Profile, error) {
	return s.Profile(ctx, userID, email)
}

// ListForJoin returns every agency a new user may join
func (s *Service) ListForJoin(ctx context.Context) ([]types.Agency, error) {
	agencies, err := s.store.ListAgencies(ctx)
	if err != nil {
		return nil, fmt.Errorf("list agencies: %w", err)
	}
	return agencies, nil
}

// Create makes a new agency with the caller as its admin
func (s *Service) Create(ctx context.Context, p types.Profile, req CreateRequest) (types.Agency, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return types.Agency{}, validation.Errorf("Agency name is required.")
	}
	if err := validation.Struct(req); err != nil {
		return types.Agency{}, err
	}

	a, err := s.store.CreateAgency(ctx, types.Agency{
		Name:     req.Name,
		Address1: trimNull(req.Address1),
		Address2: trimNull(req.Address2),
		City:     trimNull(req.City),
		State:    trimNull(req.State),
		Zip:      trimNull(req.Zip),
	}, p.ID)
	if err != nil {
		return types.Agency{}, fmt.Errorf("create agency: %w", err)
	}

	s.logger.Info().Str("agency_id", a.ID).Str("user_id", p.ID).Msg("agency created")
	return a, nil
}

// Join attaches the caller to an existing agency as a producer
func (s *Service) Join(ctx context.Context, p types.Profile, agencyID string) (types.Profile, error) {
	if strings.TrimSpace(agencyID) == "" {
		return types.Profile{}, validation.Errorf("Choose an agency to join.")
	}
	if err := s.store.JoinAgency(ctx, p.ID, agencyID); err != nil {
		return types.Profile{}, fmt.Errorf("join agency: %w", err)
	}
	s.logger.Info().Str("agency_id", agencyID).Str("user_id", p.ID).Msg("joined agency")
	return s.store.GetProfile(ctx, p.ID)
}

func trimNull(s null.String) null.String {
	v := strings.TrimSpace(s.String)
	if !s.Valid || v == "" {
		return null.String{}
	}
	return null.StringFrom(v)
}

// RequireAgency returns the profile's agency id or ErrNoAgency
func RequireAgency(p types.Profile) (string, error) {
	if !p.AgencyID.Valid || p.AgencyID.String == "" {
		return "", types.ErrNoAgency
	}
	return p.AgencyID.String, nil
}

// requireAdmin returns the agency id of an admin profile
func requireAdmin(p types.Profile) (string, error) {
	agencyID, err := RequireAgency(p)
	if err != nil {
		return "", err
	}
	if !p.IsAdmin() {
		return "", types.ErrForbidden
	}
	return agencyID, nil
}

func (r DNCRequest) normalize() (DNCRequest, error) {
	r.Date = strings.TrimSpace(r.Date)
	r.HolidayName = strings.TrimSpace(r.HolidayName)
	if err := validation.Struct(r); err != nil {
		return DNCRequest{}, err
	}
	return r, nil
}

// ListDNCDays returns the admin's agency calendar
func (s *Service) ListDNCDays(ctx context.Context, p types.Profile) ([]types.DNCDay, error) {
	agencyID, err := requireAdmin(p)
	if err != nil {
		return nil, err
	}
	days, err := s.store.ListDNCDays(ctx, agencyID)
	if err != nil {
		return nil, fmt.Errorf("list dnc days: %w", err)
	}
	return days, nil
}

// CreateDNCDay adds a day to the admin's agency calendar
func (s *Service) CreateDNCDay(ctx context.Context, p types.Profile, req DNCRequest) (types.DNCDay, error) {
	agencyID, err := requireAdmin(p)
	if err != nil {
		return types.DNCDay{}, err
	}
	if req, err = req.normalize(); err != nil {
		return types.DNCDay{}, err
	}

	d, err := s.store.CreateDNCDay(ctx, types.DNCDay{AgencyID: agencyID, Date: req.Date, HolidayName: req.HolidayName})
	if err != nil {
		return types.DNCDay{}, fmt.Errorf("create dnc day: %w", err)
	}
	return d, nil
}

// UpdateDNCDay edits a day of the admin's agency
func (s *Service) UpdateDNCDay(ctx context.Context, p types.Profile, id string, req DNCRequest) (types.DNCDay, error) {
	agencyID, err := requireAdmin(p)
	if err != nil {
		return types.DNCDay{}, err
	}
	if req, err = req.normalize(); err != nil {
		return types.DNCDay{}, err
	}

	d := types.DNCDay{ID: id, AgencyID: agencyID, Date: req.Date, HolidayName: req.HolidayName}
	if err := s.store.UpdateDNCDay(ctx, d); err != nil {
		return types.DNCDay{}, fmt.Errorf("update dnc day: %w", err)
	}
	return d, nil
}

// DeleteDNCDay removes a day of the admin's agency
func (s *Service) DeleteDNCDay(ctx context.Context, p types.Profile, id string) error {
	agencyID, err := requireAdmin(p)
	if err != nil {
		return err
	}
	if err := s.store.DeleteDNCDay(ctx, agencyID, id); err != nil {
		return fmt.Errorf("delete dnc day: %w", err)
	}
	return nil
}

// HolidayToday returns the holiday name when today is a DNC day for the
// caller's agency, or empty. Profiles without an agency never have one.
func (s *Service) HolidayToday(ctx context.Context, p types.Profile) (string, error) {
	agencyID, err := RequireAgency(p)
	if err != nil {
		return "", nil
	}
	name, err := s.store.HolidayFor(ctx, agencyID, dates.Today(s.now().In(s.loc)))
	if err != nil {
		return "", fmt.Errorf("load dnc day: %w", err)
	}
	return name, nil
}
