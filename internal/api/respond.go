package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dailywin/backend/internal/activity"
	"github.com/dailywin/backend/internal/dates"
	"github.com/dailywin/backend/internal/storage"
	"github.com/dailywin/backend/internal/types"
	"github.com/dailywin/backend/pkg/validation"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// respondError maps a service error onto a status code. Unexpected errors are
// store failures; their detail is logged, not returned.
func respondError(w http.ResponseWriter, logger zerolog.Logger, r *http.Request, err error) {
	var ve *validation.Error
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Message)
	case errors.Is(err, activity.ErrQuoteRequired):
		writeError(w, http.StatusBadRequest, "Quote details are required for this outcome.")
	case errors.Is(err, activity.ErrCallbackRequired):
		writeError(w, http.StatusBadRequest, "Callback details are required for this outcome.")
	case errors.Is(err, dates.ErrUnknownPreset), errors.Is(err, dates.ErrInvalidRange):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, types.ErrNoAgency):
		writeError(w, http.StatusConflict, "Join an agency first.")
	case errors.Is(err, types.ErrForbidden):
		writeError(w, http.StatusForbidden, "Forbidden.")
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found.")
	default:
		logger.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusBadGateway, "The data store is unavailable. Please try again.")
	}
}

// decode reads a JSON body into v; failures are validation errors
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return validation.Errorf("Invalid request body.")
	}
	return nil
}

// rangeFromQuery resolves ?preset=&start=&end= against now in loc
func rangeFromQuery(r *http.Request, loc *time.Location) (dates.Range, error) {
	q := r.URL.Query()
	preset, err := dates.ParsePreset(q.Get("preset"))
	if err != nil {
		return dates.Range{}, err
	}
	rng := dates.Resolve(time.Now().In(loc), preset, q.Get("start"), q.Get("end"))
	if err := rng.Validate(); err != nil {
		return dates.Range{}, validation.Errorf("%s", err.Error())
	}
	return rng, nil
}
