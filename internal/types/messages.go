package types

import "time"

// Websocket message types
const (
	MessageDashboard = "dashboard"
	MessageHour      = "hour"
	MessageError     = "error"
)

// ClientSubscribe is the only message type clients send
const ClientSubscribe = "subscribe"

// Audience selects which websocket clients receive an envelope.
// Empty fields match every client.
type Audience struct {
	AgencyID string
	RangeKey string
	UserID   string
}

// Envelope is the JSON frame pushed to websocket clients
type Envelope struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
	Audience  Audience  `json:"-"`
}

// ClientMessage is sent by websocket clients
type ClientMessage struct {
	Type   string `json:"type"`
	Preset string `json:"preset"`
	Start  string `json:"start"`
	End    string `json:"end"`
}
