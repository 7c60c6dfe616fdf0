package api

import (
	"context"
	"net/http"

	"github.com/dailywin/backend/internal/daily"
	"github.com/dailywin/backend/internal/types"
	"github.com/rs/zerolog"
)

// DailyPlanner holds goals and the end-of-day review
type DailyPlanner interface {
	Goals(ctx context.Context, userID, date string) (types.DailyGoals, error)
	SaveGoals(ctx context.Context, userID string, g types.DailyGoals) (types.DailyGoals, error)
	Review(ctx context.Context, userID, date string) (daily.Review, error)
}

// DailyHandler serves daily goals and the hourly review
type DailyHandler struct {
	planner DailyPlanner
	logger  zerolog.Logger
}

// NewDailyHandler creates a new DailyHandler
func NewDailyHandler(planner DailyPlanner, logger zerolog.Logger) *DailyHandler {
	return &DailyHandler{
		planner: planner,
		logger:  logger.With().Str("component", "daily_handler").Logger(),
	}
}

// GetReview returns the 9-to-5 hour grid for a day
// GET /api/daily-review?date=YYYY-MM-DD
func (h *DailyHandler) GetReview(w http.ResponseWriter, r *http.Request) {
	review, err := h.planner.Review(r.Context(), ProfileFromContext(r.Context()).ID, r.URL.Query().Get("date"))
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, review)
}

// GetGoals returns the caller's goals for a day
// GET /api/goals?date=YYYY-MM-DD
func (h *DailyHandler) GetGoals(w http.ResponseWriter, r *http.Request) {
	g, err := h.planner.Goals(r.Context(), ProfileFromContext(r.Context()).ID, r.URL.Query().Get("date"))
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// SaveGoals replaces the caller's goals for a day
// PUT /api/goals
func (h *DailyHandler) SaveGoals(w http.ResponseWriter, r *http.Request) {
	var g types.DailyGoals
	if err := decode(w, r, &g); err != nil {
		respondError(w, h.logger, r, err)
		return
	}

	saved, err := h.planner.SaveGoals(r.Context(), ProfileFromContext(r.Context()).ID, g)
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}
