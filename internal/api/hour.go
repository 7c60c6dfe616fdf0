package api

import (
	"context"
	"net/http"

	"github.com/dailywin/backend/internal/scoreboard"
	"github.com/rs/zerolog"
)

// HourBoard is the caller's current-hour scoreboard
type HourBoard interface {
	Snapshot(ctx context.Context, userID string) scoreboard.Snapshot
	ApplyDelta(ctx context.Context, userID string, d scoreboard.Delta) (scoreboard.Snapshot, scoreboard.Mutation)
}

// HourDeltaResponse carries the optimistic snapshot and the queued write
type HourDeltaResponse struct {
	Snapshot scoreboard.Snapshot `json:"snapshot"`
	Mutation scoreboard.Mutation `json:"mutation"`
}

type HourHandler struct {
	board  HourBoard
	logger zerolog.Logger
}

func NewHourHandler(board HourBoard, logger zerolog.Logger) *HourHandler {
	return &HourHandler{
		board:  board,
		logger: logger.With().Str("component", "hour_handler").Logger(),
	}
}

// GetHour returns the scoreboard for the current hour
// GET /api/hour
func (h *HourHandler) GetHour(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.board.Snapshot(r.Context(), ProfileFromContext(r.Context()).ID))
}

// ApplyDelta adjusts the current hour directly. The write is persisted in
// the background; its outcome arrives as a later hour push.
// POST /api/hour/delta
func (h *HourHandler) ApplyDelta(w http.ResponseWriter, r *http.Request) {
	var d scoreboard.Delta
	if err := decode(w, r, &d); err != nil {
		respondError(w, h.logger, r, err)
		return
	}

	snap, m := h.board.ApplyDelta(r.Context(), ProfileFromContext(r.Context()).ID, d)
	writeJSON(w, http.StatusAccepted, HourDeltaResponse{Snapshot: snap, Mutation: m})
}
