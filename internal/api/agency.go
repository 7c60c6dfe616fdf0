package api

import (
	"context"
	"net/http"

	"github.com/dailywin/backend/internal/agency"
	"github.com/dailywin/backend/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// AgencyDirectory manages agency membership
type AgencyDirectory interface {
	ListForJoin(ctx context.Context) ([]types.Agency, error)
	Create(ctx context.Context, p types.Profile, req agency.CreateRequest) (types.Agency, error)
	Join(ctx context.Context, p types.Profile, agencyID string) (types.Profile, error)
	HolidayToday(ctx context.Context, p types.Profile) (string, error)
}

// MeResponse is the signed-in user's session
type MeResponse struct {
	Profile types.Profile `json:"profile"`
	Holiday string        `json:"holiday,omitempty"`
}

// AgencyHandler serves the session and agency onboarding endpoints
type AgencyHandler struct {
	agencies AgencyDirectory
	logger   zerolog.Logger
}

// NewAgencyHandler creates a new AgencyHandler
func NewAgencyHandler(agencies AgencyDirectory, logger zerolog.Logger) *AgencyHandler {
	return &AgencyHandler{
		agencies: agencies,
		logger:   logger.With().Str("component", "agency_handler").Logger(),
	}
}

// GetMe returns the caller's profile and today's holiday, if any
// GET /api/me
func (h *AgencyHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	p := ProfileFromContext(r.Context())
	holiday, err := h.agencies.HolidayToday(r.Context(), p)
	if err != nil {
		// The banner is optional
		h.logger.Warn().Err(err).Str("user_id", p.ID).Msg("failed to load dnc day")
	}
	writeJSON(w, http.StatusOK, MeResponse{Profile: p, Holiday: holiday})
}

// GetHolidayToday answers whether today is a DNC day
// GET /api/dnc-days/today
func (h *AgencyHandler) GetHolidayToday(w http.ResponseWriter, r *http.Request) {
	holiday, err := h.agencies.HolidayToday(r.Context(), ProfileFromContext(r.Context()))
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"is_dnc":       holiday != "",
		"holiday_name": holiday,
	})
}

// ListAgencies returns agencies the caller may join
// GET /api/agencies
func (h *AgencyHandler) ListAgencies(w http.ResponseWriter, r *http.Request) {
	list, err := h.agencies.ListForJoin(r.Context())
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	if list == nil {
		list = []types.Agency{}
	}
	writeJSON(w, http.StatusOK, list)
}

// CreateAgency creates an agency with the caller as admin
// POST /api/agencies
func (h *AgencyHandler) CreateAgency(w http.ResponseWriter, r *http.Request) {
	var req agency.CreateRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, h.logger, r, err)
		return
	}

	a, err := h.agencies.Create(r.Context(), ProfileFromContext(r.Context()), req)
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// JoinAgency moves the caller into an agency
// POST /api/agencies/{id}/join
func (h *AgencyHandler) JoinAgency(w http.ResponseWriter, r *http.Request) {
	p, err := h.agencies.Join(r.Context(), ProfileFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
