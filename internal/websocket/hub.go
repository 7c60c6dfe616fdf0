package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/dailywin/backend/internal/metrics"
	"github.com/dailywin/backend/internal/types"
	"github.com/rs/zerolog"
)

// Hub maintains the set of active clients and fans envelopes out to the
// clients whose subscription matches the envelope's audience
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Outbound envelopes from dashboards and scoreboards
	broadcast chan types.Envelope

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Closed when Run returns
	done chan struct{}

	// Mutex to protect clients map
	mu sync.RWMutex

	logger zerolog.Logger
}

// NewHub creates a new Hub
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan types.Envelope, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		logger:     logger.With().Str("component", "ws-hub").Logger(),
	}
}

// Run starts the hub's main loop and closes every client when ctx is done
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				client.closeSend()
				metrics.Get().RecordWebSocketDisconnect()
			}
			h.mu.Unlock()
			h.logger.Info().Msg("hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			metrics.Get().RecordWebSocketConnect()
			h.logger.Info().
				Str("client_id", client.id).
				Str("user_id", client.userID).
				Int("total_clients", total).
				Msg("client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.closeSend()
				metrics.Get().RecordWebSocketDisconnect()
				h.logger.Info().
					Str("client_id", client.id).
					Int("total_clients", len(h.clients)).
					Msg("client disconnected")
			}
			h.mu.Unlock()

		case env := <-h.broadcast:
			h.deliver(env)
		}
	}
}

// Register adds a client; it is a no-op once the hub has stopped
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.closeSend()
	}
}

// Unregister removes a client; it is a no-op once the hub has stopped
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Broadcast queues an envelope for delivery. When the queue is full the
// envelope is dropped; the next refresh supersedes it.
func (h *Hub) Broadcast(env types.Envelope) {
	select {
	case h.broadcast <- env:
	default:
		h.logger.Warn().Str("type", env.Type).Msg("broadcast queue full, dropping envelope")
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// deliver marshals once and sends to every matching client
func (h *Hub) deliver(env types.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		h.logger.Error().Err(err).Str("type", env.Type).Msg("failed to marshal envelope")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		if !client.Matches(env.Audience) {
			continue
		}
		if client.enqueue(data) {
			metrics.Get().RecordWebSocketMessage()
			continue
		}

		// Client's send buffer is full, close and remove it
		delete(h.clients, client)
		client.closeSend()
		m := metrics.Get()
		m.RecordWebSocketError()
		m.RecordWebSocketDisconnect()
		h.logger.Warn().
			Str("client_id", client.id).
			Msg("client send buffer full, closing connection")
	}
}
