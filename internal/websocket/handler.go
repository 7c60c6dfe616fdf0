package websocket

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dailywin/backend/internal/auth"
	"github.com/dailywin/backend/internal/config"
	"github.com/dailywin/backend/internal/types"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// ProfileSource resolves the signed-in user's profile
type ProfileSource interface {
	EnsureProfile(ctx context.Context, userID, email string) (types.Profile, error)
}

// Handler handles WebSocket upgrade requests. It must run behind auth.Middleware.
type Handler struct {
	hub        *Hub
	config     *config.Config
	upgrader   websocket.Upgrader
	dashboards DashboardSource
	hours      HourSource
	profiles   ProfileSource
	logger     zerolog.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(hub *Hub, cfg *config.Config, dashboards DashboardSource, hours HourSource, profiles ProfileSource, logger zerolog.Logger) *Handler {
	h := &Handler{
		hub:        hub,
		config:     cfg,
		dashboards: dashboards,
		hours:      hours,
		profiles:   profiles,
		logger:     logger.With().Str("component", "ws").Logger(),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin accepts same-host requests, requests without an Origin, and
// the configured allowed origins
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.config.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// ServeHTTP handles WebSocket upgrade requests
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	profile, err := h.profiles.EnsureProfile(r.Context(), claims.UserID(), claims.Email)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", claims.UserID()).Msg("failed to load profile")
		writeError(w, http.StatusBadGateway, "Could not load profile.")
		return
	}
	if !profile.AgencyID.Valid || profile.AgencyID.String == "" {
		writeError(w, http.StatusConflict, "Join an agency first.")
		return
	}

	// Upgrade HTTP connection to WebSocket
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to upgrade connection")
		return
	}

	client := NewClient(h.hub, conn, h.config, profile.ID, profile.AgencyID.String, h.dashboards, h.hours, h.logger)

	h.hub.Register(client)
	client.Start()

	// The hour scoreboard does not depend on a range, so it goes out immediately
	client.sendHour(context.WithoutCancel(r.Context()))
}
