package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dailywin/backend/internal/aggregator"
	"github.com/dailywin/backend/internal/dates"
	"github.com/dailywin/backend/internal/report"
	"github.com/rs/zerolog"
)

// DashboardSource returns the agency dashboard for a range
type DashboardSource interface {
	Get(ctx context.Context, agencyID string, r dates.Range) (aggregator.Snapshot, error)
	Personal(ctx context.Context, userID string, r dates.Range) (aggregator.PersonalMetrics, error)
}

// DashboardHandler serves the team dashboard, its export and personal metrics
type DashboardHandler struct {
	dashboards DashboardSource
	loc        *time.Location
	logger     zerolog.Logger
}

// NewDashboardHandler creates a new DashboardHandler
func NewDashboardHandler(dashboards DashboardSource, loc *time.Location, logger zerolog.Logger) *DashboardHandler {
	return &DashboardHandler{
		dashboards: dashboards,
		loc:        loc,
		logger:     logger.With().Str("component", "dashboard_handler").Logger(),
	}
}

func (h *DashboardHandler) snapshot(r *http.Request) (aggregator.Snapshot, error) {
	rng, err := rangeFromQuery(r, h.loc)
	if err != nil {
		return aggregator.Snapshot{}, err
	}
	return h.dashboards.Get(r.Context(), ProfileFromContext(r.Context()).AgencyID.String, rng)
}

// GetDashboard returns the aggregated team dashboard
// GET /api/dashboard?preset=&start=&end=
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	snap, err := h.snapshot(r)
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// ExportDashboard streams the producer table as an xlsx workbook
// GET /api/dashboard/export?preset=&start=&end=
func (h *DashboardHandler) ExportDashboard(w http.ResponseWriter, r *http.Request) {
	snap, err := h.snapshot(r)
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}

	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Filename(snap)))
	if err := report.WriteProducerReport(w, snap); err != nil {
		// Headers are gone by now
		h.logger.Error().Err(err).Str("agency_id", snap.AgencyID).Msg("failed to write report")
	}
}

// GetPersonalMetrics returns the caller's own funnel for a range
// GET /api/metrics/personal?preset=&start=&end=
func (h *DashboardHandler) GetPersonalMetrics(w http.ResponseWriter, r *http.Request) {
	rng, err := rangeFromQuery(r, h.loc)
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}

	m, err := h.dashboards.Personal(r.Context(), ProfileFromContext(r.Context()).ID, rng)
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}
