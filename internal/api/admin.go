package api

import (
	"context"
	"net/http"

	"github.com/dailywin/backend/internal/agency"
	"github.com/dailywin/backend/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// DNCAdmin manages an agency's Do-Not-Call calendar
type DNCAdmin interface {
	ListDNCDays(ctx context.Context, p types.Profile) ([]types.DNCDay, error)
	CreateDNCDay(ctx context.Context, p types.Profile, req agency.DNCRequest) (types.DNCDay, error)
	UpdateDNCDay(ctx context.Context, p types.Profile, id string, req agency.DNCRequest) (types.DNCDay, error)
	DeleteDNCDay(ctx context.Context, p types.Profile, id string) error
}

// AdminHandler serves the agency settings endpoints
type AdminHandler struct {
	dnc    DNCAdmin
	logger zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(dnc DNCAdmin, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		dnc:    dnc,
		logger: logger.With().Str("component", "admin_handler").Logger(),
	}
}

// RequireAdmin rejects non-admin profiles with 403
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !ProfileFromContext(r.Context()).IsAdmin() {
			writeError(w, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ListDNCDays returns the agency's DNC days
// GET /api/dnc-days
func (h *AdminHandler) ListDNCDays(w http.ResponseWriter, r *http.Request) {
	days, err := h.dnc.ListDNCDays(r.Context(), ProfileFromContext(r.Context()))
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	if days == nil {
		days = []types.DNCDay{}
	}
	writeJSON(w, http.StatusOK, days)
}

// CreateDNCDay adds a DNC day
// POST /api/dnc-days
func (h *AdminHandler) CreateDNCDay(w http.ResponseWriter, r *http.Request) {
	var req agency.DNCRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, h.logger, r, err)
		return
	}

	day, err := h.dnc.CreateDNCDay(r.Context(), ProfileFromContext(r.Context()), req)
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, day)
}

// UpdateDNCDay edits a DNC day
// PUT /api/dnc-days/{id}
func (h *AdminHandler) UpdateDNCDay(w http.ResponseWriter, r *http.Request) {
	var req agency.DNCRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, h.logger, r, err)
		return
	}

	day, err := h.dnc.UpdateDNCDay(r.Context(), ProfileFromContext(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, day)
}

// DeleteDNCDay removes a DNC day
// DELETE /api/dnc-days/{id}
func (h *AdminHandler) DeleteDNCDay(w http.ResponseWriter, r *http.Request) {
	if err := h.dnc.DeleteDNCDay(r.Context(), ProfileFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
