package websocket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aarondl/null/v8"
	"github.com/dailywin/backend/internal/aggregator"
	"github.com/dailywin/backend/internal/auth"
	"github.com/dailywin/backend/internal/config"
	"github.com/dailywin/backend/internal/dates"
	"github.com/dailywin/backend/internal/scoreboard"
	"github.com/dailywin/backend/internal/types"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDashboards struct{}

func (fakeDashboards) Get(_ context.Context, agencyID string, r dates.Range) (aggregator.Snapshot, error) {
	return aggregator.Snapshot{AgencyID: agencyID, Range: r, Loaded: true}, nil
}

type fakeHours struct{}

func (fakeHours) Snapshot(_ context.Context, userID string) scoreboard.Snapshot {
	return scoreboard.Snapshot{UserID: userID, HourKey: "2026-10-16-10", Stats: types.HourStats{Calls: 3}}
}

type fakeProfiles struct {
	profile types.Profile
	err     error
}

func (f fakeProfiles) EnsureProfile(_ context.Context, userID, email string) (types.Profile, error) {
	if f.err != nil {
		return types.Profile{}, f.err
	}
	p := f.profile
	p.ID = userID
	p.Email = email
	return p, nil
}

func testConfig() *config.Config {
	return &config.Config{
		PongWait:       time.Minute,
		PingPeriod:     50 * time.Second,
		WriteWait:      time.Second,
		MaxMessageSize: 512,
		Location:       time.UTC,
	}
}

// withUser stands in for auth.Middleware
func withUser(userID string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := &auth.Claims{Email: userID + "@agency.test", RegisteredClaims: jwt.RegisteredClaims{Subject: userID}}
		next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
	})
}

type wireEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func readEnvelope(t *testing.T, conn *websocket.Conn) wireEnvelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env wireEnvelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func TestHandlerSubscribeFlow(t *testing.T) {
	hub := runHub(t)
	profiles := fakeProfiles{profile: types.Profile{AgencyID: null.StringFrom("agency-1")}}
	h := NewHandler(hub, testConfig(), fakeDashboards{}, fakeHours{}, profiles, zerolog.New(&bytes.Buffer{}))

	srv := httptest.NewServer(withUser("ann", h))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	hour := readEnvelope(t, conn)
	assert.Equal(t, types.MessageHour, hour.Type)
	var hs scoreboard.Snapshot
	require.NoError(t, json.Unmarshal(hour.Payload, &hs))
	assert.Equal(t, "ann", hs.UserID)
	assert.Equal(t, 3, hs.Stats.Calls)

	require.NoError(t, conn.WriteJSON(types.ClientMessage{
		Type: types.ClientSubscribe, Preset: "custom", Start: "2026-10-01", End: "2026-10-15",
	}))

	dash := readEnvelope(t, conn)
	assert.Equal(t, types.MessageDashboard, dash.Type)
	var ds aggregator.Snapshot
	require.NoError(t, json.Unmarshal(dash.Payload, &ds))
	assert.Equal(t, "agency-1", ds.AgencyID)
	rng := dates.Range{StartDate: "2026-10-01", EndDate: "2026-10-15"}
	assert.Equal(t, rng, ds.Range)

	// Another agency's push is filtered out, ours arrives
	hub.Broadcast(types.Envelope{Type: types.MessageDashboard, Payload: "other", Audience: types.Audience{AgencyID: "agency-2", RangeKey: rng.Key()}})
	hub.Broadcast(types.Envelope{Type: types.MessageDashboard, Payload: "ours", Audience: types.Audience{AgencyID: "agency-1", RangeKey: rng.Key()}})

	pushed := readEnvelope(t, conn)
	assert.JSONEq(t, `"ours"`, string(pushed.Payload))
}

func TestHandlerRejectsBadSubscribe(t *testing.T) {
	hub := runHub(t)
	profiles := fakeProfiles{profile: types.Profile{AgencyID: null.StringFrom("agency-1")}}
	h := NewHandler(hub, testConfig(), fakeDashboards{}, fakeHours{}, profiles, zerolog.New(&bytes.Buffer{}))

	srv := httptest.NewServer(withUser("ann", h))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	readEnvelope(t, conn) // hour

	require.NoError(t, conn.WriteJSON(types.ClientMessage{
		Type: types.ClientSubscribe, Preset: "custom", Start: "2026-10-15", End: "2026-10-01",
	}))
	assert.Equal(t, types.MessageError, readEnvelope(t, conn).Type)

	require.NoError(t, conn.WriteJSON(types.ClientMessage{Type: "bogus"}))
	assert.Equal(t, types.MessageError, readEnvelope(t, conn).Type)
}

func TestHandlerPreconditions(t *testing.T) {
	tests := []struct {
		name     string
		profiles fakeProfiles
		authed   bool
		want     int
	}{
		{"no claims", fakeProfiles{}, false, http.StatusUnauthorized},
		{"profile store down", fakeProfiles{err: errors.New("boom")}, true, http.StatusBadGateway},
		{"no agency", fakeProfiles{}, true, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(NewHub(zerolog.New(&bytes.Buffer{})), testConfig(), fakeDashboards{}, fakeHours{}, tt.profiles, zerolog.New(&bytes.Buffer{}))
			var handler http.Handler = h
			if tt.authed {
				handler = withUser("ann", h)
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestCheckOrigin(t *testing.T) {
	cfg := testConfig()
	cfg.AllowedOrigins = []string{"http://localhost:3000"}
	h := NewHandler(NewHub(zerolog.New(&bytes.Buffer{})), cfg, fakeDashboards{}, fakeHours{}, fakeProfiles{}, zerolog.New(&bytes.Buffer{}))

	req := httptest.NewRequest(http.MethodGet, "http://api.test/ws", nil)
	assert.True(t, h.checkOrigin(req))

	req.Header.Set("Origin", "http://localhost:3000")
	assert.True(t, h.checkOrigin(req))

	req.Header.Set("Origin", "http://api.test")
	assert.True(t, h.checkOrigin(req))

	req.Header.Set("Origin", "http://evil.test")
	assert.False(t, h.checkOrigin(req))
}
