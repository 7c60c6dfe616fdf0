package event

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dailywin/backend/internal/metrics"
	"github.com/dailywin/backend/internal/types"
	"github.com/dailywin/backend/pkg/eventbus"
	"github.com/rs/zerolog"
)

// SourceWebhook labels events received over HTTP
const SourceWebhook = "webhook"

// SecretHeader carries the shared webhook secret
const SecretHeader = "X-Webhook-Secret"

const maxPayloadBytes = 1 << 20

// webhookPayload accepts both the trigger payload ({table, op, user_id}) and
// the database-webhook shape ({type, table, record, old_record}).
type webhookPayload struct {
	Table      string         `json:"table"`
	Op         string         `json:"op"`
	Type       string         `json:"type"`
	UserID     string         `json:"user_id"`
	AgencyID   string         `json:"agency_id"`
	PrevAgency string         `json:"prev_agency_id"`
	Record     map[string]any `json:"record"`
	OldRecord  map[string]any `json:"old_record"`
}

func (p webhookPayload) toEvent() types.ChangeEvent {
	e := types.ChangeEvent{
		Table:      p.Table,
		Op:         strings.ToUpper(p.Op),
		UserID:     p.UserID,
		AgencyID:   p.AgencyID,
		PrevAgency: p.PrevAgency,
	}
	if e.Op == "" {
		e.Op = strings.ToUpper(p.Type)
	}

	// Profile rows are keyed by id rather than user_id
	owner := "user_id"
	if e.Table == types.TableProfiles {
		owner = "id"
		if e.AgencyID == "" {
			e.AgencyID = stringField(p.Record, "agency_id")
		}
		if e.PrevAgency == "" {
			e.PrevAgency = stringField(p.OldRecord, "agency_id")
		}
	}
	if e.UserID == "" {
		for _, rec := range []map[string]any{p.Record, p.OldRecord} {
			if id := stringField(rec, owner); id != "" {
				e.UserID = id
				break
			}
		}
	}
	return e
}

func stringField(rec map[string]any, key string) string {
	s, _ := rec[key].(string)
	return s
}

// Receiver handles change notifications posted by a database webhook
type Receiver struct {
	bus            *eventbus.Bus
	secret         string
	logger         zerolog.Logger
	eventsReceived int64
	lastReceived   time.Time
	mu             sync.RWMutex
}

// NewReceiver creates a new change receiver. An empty secret accepts every caller.
func NewReceiver(bus *eventbus.Bus, secret string, logger zerolog.Logger) *Receiver {
	return &Receiver{
		bus:    bus,
		secret: secret,
		logger: logger.With().Str("component", "change_receiver").Logger(),
	}
}

// HandleChange validates one change notification and publishes it
func (r *Receiver) HandleChange(w http.ResponseWriter, req *http.Request) {
	m := metrics.Get()

	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.secret != "" && subtle.ConstantTimeCompare([]byte(req.Header.Get(SecretHeader)), []byte(r.secret)) != 1 {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var payload webhookPayload
	if err := json.NewDecoder(io.LimitReader(req.Body, maxPayloadBytes)).Decode(&payload); err != nil {
		r.logger.Error().Err(err).Msg("failed to decode change")
		m.RecordChangeEventError()
		http.Error(w, "invalid change", http.StatusBadRequest)
		return
	}

	event := payload.toEvent()
	if err := event.Validate(); err != nil {
		r.logger.Warn().Err(err).Msg("rejecting change")
		m.RecordChangeEventError()
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	event.ReceivedAt = time.Now()

	m.RecordChangeEvent(SourceWebhook, event.Table)
	r.bus.Publish(req.Context(), event)

	// Update stats
	count := atomic.AddInt64(&r.eventsReceived, 1)
	r.mu.Lock()
	r.lastReceived = event.ReceivedAt
	r.mu.Unlock()

	// Log periodically
	if count%1000 == 0 {
		r.logger.Info().Int64("total_received", count).Msg("changes received")
	}

	w.WriteHeader(http.StatusAccepted)
}

// GetStats returns receiver statistics
func (r *Receiver) GetStats(w http.ResponseWriter, req *http.Request) {
	r.mu.RLock()
	lastReceived := r.lastReceived
	r.mu.RUnlock()

	stats := map[string]interface{}{
		"changes_received": atomic.LoadInt64(&r.eventsReceived),
		"last_received":    lastReceived,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}
