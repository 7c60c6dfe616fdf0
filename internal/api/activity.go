package api

import (
	"context"
	"net/http"

	"github.com/dailywin/backend/internal/activity"
	"github.com/dailywin/backend/internal/types"
	"github.com/rs/zerolog"
)

// ActivityLog records the caller's outcomes for today
type ActivityLog interface {
	Today(ctx context.Context, p types.Profile) (types.Counters, error)
	ApplyDelta(ctx context.Context, p types.Profile, field string, delta int) (activity.Result, error)
	LogQuote(ctx context.Context, p types.Profile, req activity.QuoteRequest) (activity.Result, error)
	LogCallback(ctx context.Context, p types.Profile, req activity.CallbackRequest) (activity.Result, error)
	Feed(ctx context.Context, p types.Profile) ([]types.FeedItem, error)
}

// DeltaRequest is a plain counter edit
type DeltaRequest struct {
	Field string `json:"field"`
	Delta int    `json:"delta"`
}

// ActivityHandler serves the producer's activity log
type ActivityHandler struct {
	log    ActivityLog
	logger zerolog.Logger
}

// NewActivityHandler creates a new ActivityHandler
func NewActivityHandler(log ActivityLog, logger zerolog.Logger) *ActivityHandler {
	return &ActivityHandler{
		log:    log,
		logger: logger.With().Str("component", "activity_handler").Logger(),
	}
}

// GetToday returns today's counters
// GET /api/activity
func (h *ActivityHandler) GetToday(w http.ResponseWriter, r *http.Request) {
	c, err := h.log.Today(r.Context(), ProfileFromContext(r.Context()))
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// ApplyDelta changes one counter
// POST /api/activity/delta
func (h *ActivityHandler) ApplyDelta(w http.ResponseWriter, r *http.Request) {
	var req DeltaRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, h.logger, r, err)
		return
	}

	res, err := h.log.ApplyDelta(r.Context(), ProfileFromContext(r.Context()), req.Field, req.Delta)
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// LogQuote records a quote or sale
// POST /api/activity/quote
func (h *ActivityHandler) LogQuote(w http.ResponseWriter, r *http.Request) {
	var req activity.QuoteRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, h.logger, r, err)
		return
	}

	res, err := h.log.LogQuote(r.Context(), ProfileFromContext(r.Context()), req)
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// LogCallback records a scheduled callback
// POST /api/activity/callback
func (h *ActivityHandler) LogCallback(w http.ResponseWriter, r *http.Request) {
	var req activity.CallbackRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, h.logger, r, err)
		return
	}

	res, err := h.log.LogCallback(r.Context(), ProfileFromContext(r.Context()), req)
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// GetFeed returns the caller's recent quotes, sales and callbacks
// GET /api/activity/feed
func (h *ActivityHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	feed, err := h.log.Feed(r.Context(), ProfileFromContext(r.Context()))
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	if feed == nil {
		feed = []types.FeedItem{}
	}
	writeJSON(w, http.StatusOK, feed)
}
