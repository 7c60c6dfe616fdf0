package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dailywin/backend/internal/aggregator"
	"github.com/dailywin/backend/internal/config"
	"github.com/dailywin/backend/internal/dates"
	"github.com/dailywin/backend/internal/scoreboard"
	"github.com/dailywin/backend/internal/types"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const snapshotTimeout = 10 * time.Second

// DashboardSource serves the shared dashboard snapshot for an agency and range
type DashboardSource interface {
	Get(ctx context.Context, agencyID string, r dates.Range) (aggregator.Snapshot, error)
}

// HourSource serves a user's current hour scoreboard
type HourSource interface {
	Snapshot(ctx context.Context, userID string) scoreboard.Snapshot
}

// Client is a middleman between the websocket connection and the hub
type Client struct {
	// Unique client ID
	id string

	// Identity the connection was opened with
	userID   string
	agencyID string

	// The hub this client belongs to
	hub *Hub

	// The websocket connection
	conn *websocket.Conn

	// Buffered channel of outbound messages
	send chan []byte

	config     *config.Config
	dashboards DashboardSource
	hours      HourSource
	now        func() time.Time
	logger     zerolog.Logger

	// mu guards the subscription and the send channel's closed state
	mu       sync.Mutex
	sub      types.ClientMessage
	rng      dates.Range
	rangeKey string
	closed   bool
}

// NewClient creates a new Client for a user of an agency
func NewClient(hub *Hub, conn *websocket.Conn, cfg *config.Config, userID, agencyID string, dashboards DashboardSource, hours HourSource, logger zerolog.Logger) *Client {
	clientID := uuid.New().String()
	return &Client{
		id:         clientID,
		userID:     userID,
		agencyID:   agencyID,
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, 256),
		config:     cfg,
		dashboards: dashboards,
		hours:      hours,
		now:        time.Now,
		logger:     logger.With().Str("client_id", clientID).Str("user_id", userID).Logger(),
	}
}

// Matches reports whether an envelope addressed to a belongs on this connection
func (c *Client) Matches(a types.Audience) bool {
	if a.UserID != "" && a.UserID != c.userID {
		return false
	}
	if a.AgencyID != "" && a.AgencyID != c.agencyID {
		return false
	}
	if a.RangeKey != "" {
		c.mu.Lock()
		defer c.mu.Unlock()
		return a.RangeKey == c.rangeKey
	}
	return true
}

// Subscription returns the current range and whether one is set
func (c *Client) Subscription() (dates.Range, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rng, c.rangeKey != ""
}

// enqueue adds data to the send buffer; false means closed or full
func (c *Client) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) sendEnvelope(msgType string, payload any) {
	data, err := json.Marshal(types.Envelope{Type: msgType, Timestamp: time.Now(), Payload: payload})
	if err != nil {
		c.logger.Error().Err(err).Str("type", msgType).Msg("failed to marshal envelope")
		return
	}
	if !c.enqueue(data) {
		c.logger.Warn().Str("type", msgType).Msg("send buffer unavailable, dropping message")
	}
}

func (c *Client) sendError(msg string) {
	c.sendEnvelope(types.MessageError, map[string]string{"error": msg})
}

// handleMessage processes one frame read from the connection
func (c *Client) handleMessage(ctx context.Context, raw []byte) {
	var msg types.ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("invalid message")
		return
	}

	switch msg.Type {
	case types.ClientSubscribe:
		c.subscribe(ctx, msg)
	default:
		c.sendError(fmt.Sprintf("unknown message type %q", msg.Type))
	}
}

// subscribe switches the connection to a new range and sends its snapshot
func (c *Client) subscribe(ctx context.Context, msg types.ClientMessage) {
	preset, err := dates.ParsePreset(msg.Preset)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	r := dates.Resolve(c.clock().In(c.config.Location), preset, msg.Start, msg.End)
	if err := r.Validate(); err != nil {
		c.sendError(err.Error())
		return
	}

	c.mu.Lock()
	c.sub = msg
	c.rng = r
	c.rangeKey = r.Key()
	c.mu.Unlock()

	c.logger.Debug().Str("range", r.Key()).Msg("subscribed")
	c.sendDashboard(ctx, r)
}

func (c *Client) sendDashboard(ctx context.Context, r dates.Range) {
	ctx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()

	snap, err := c.dashboards.Get(ctx, c.agencyID, r)
	if err != nil {
		c.logger.Warn().Err(err).Str("range", r.Key()).Msg("dashboard snapshot failed")
		c.sendError("Could not load dashboard.")
		return
	}
	c.sendEnvelope(types.MessageDashboard, snap)
}

func (c *Client) sendHour(ctx context.Context) {
	if c.hours == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()
	c.sendEnvelope(types.MessageHour, c.hours.Snapshot(ctx, c.userID))
}

func (c *Client) clock() time.Time {
	if c.now == nil {
		return time.Now()
	}
	return c.now()
}

// resolveSubscription re-resolves the subscribed preset against the clock.
// moved is true when a relative preset crossed into new dates.
func (c *Client) resolveSubscription() (r dates.Range, moved, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rangeKey == "" {
		return dates.Range{}, false, false
	}
	preset, err := dates.ParsePreset(c.sub.Preset)
	if err != nil {
		return c.rng, false, true
	}
	next := dates.Resolve(c.clock().In(c.config.Location), preset, c.sub.Start, c.sub.End)
	if next.Validate() != nil || next.Key() == c.rangeKey {
		return c.rng, false, true
	}
	c.rng = next
	c.rangeKey = next.Key()
	return next, true, true
}

// keepAlive touches the subscribed dashboard and the user's hour tracker so
// idle eviction spares them, and moves a relative subscription to its new
// dates once they change.
func (c *Client) keepAlive() {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()

	if c.hours != nil {
		c.hours.Snapshot(ctx, c.userID)
	}

	r, moved, ok := c.resolveSubscription()
	if !ok {
		return
	}
	if moved {
		c.logger.Debug().Str("range", r.Key()).Msg("subscription moved to new dates")
		c.sendDashboard(ctx, r)
		return
	}
	if _, err := c.dashboards.Get(ctx, c.agencyID, r); err != nil {
		c.logger.Debug().Err(err).Msg("dashboard keepalive failed")
	}
}

// readPump pumps messages from the websocket connection to the client
//
// The application runs readPump in a per-connection goroutine. The application
// ensures that there is at most one reader on a connection by executing all
// reads from this goroutine.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error().Err(err).Msg("websocket read error")
			}
			break
		}
		c.handleMessage(context.Background(), message)
	}
}

// writePump pumps messages from the hub to the websocket connection
//
// A goroutine running writePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.config.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One envelope per frame so clients can JSON-decode each message
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			go c.keepAlive()
		}
	}
}

// Start starts the client's read and write pumps
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}
