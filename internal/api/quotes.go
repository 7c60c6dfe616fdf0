package api

import (
	"context"
	"net/http"
	"time"

	"github.com/dailywin/backend/internal/activity"
	"github.com/dailywin/backend/internal/dates"
	"github.com/dailywin/backend/internal/quotes"
	"github.com/dailywin/backend/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// QuoteBook lists and edits quotes visible to the caller
type QuoteBook interface {
	List(ctx context.Context, p types.Profile, r dates.Range) (quotes.List, error)
	Get(ctx context.Context, p types.Profile, id string) (quotes.Row, error)
	Update(ctx context.Context, p types.Profile, id string, form activity.QuoteForm) (quotes.Row, error)
}

// QuotesHandler serves the quotes and sales tables
type QuotesHandler struct {
	book   QuoteBook
	loc    *time.Location
	logger zerolog.Logger
}

// NewQuotesHandler creates a new QuotesHandler
func NewQuotesHandler(book QuoteBook, loc *time.Location, logger zerolog.Logger) *QuotesHandler {
	return &QuotesHandler{
		book:   book,
		loc:    loc,
		logger: logger.With().Str("component", "quotes_handler").Logger(),
	}
}

// ListQuotes returns open quotes and sales in range
// GET /api/quotes?preset=&start=&end=
func (h *QuotesHandler) ListQuotes(w http.ResponseWriter, r *http.Request) {
	rng, err := rangeFromQuery(r, h.loc)
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}

	list, err := h.book.List(r.Context(), ProfileFromContext(r.Context()), rng)
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// GetQuote returns one record
// GET /api/quotes/{id}
func (h *QuotesHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	row, err := h.book.Get(r.Context(), ProfileFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

// UpdateQuote edits a record; filling written date and premium turns it into a sale
// PUT /api/quotes/{id}
func (h *QuotesHandler) UpdateQuote(w http.ResponseWriter, r *http.Request) {
	var form activity.QuoteForm
	if err := decode(w, r, &form); err != nil {
		respondError(w, h.logger, r, err)
		return
	}

	row, err := h.book.Update(r.Context(), ProfileFromContext(r.Context()), chi.URLParam(r, "id"), form)
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}
