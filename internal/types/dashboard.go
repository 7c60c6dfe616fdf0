package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ProducerRow is one producer's rollup for a range
type ProducerRow struct {
	Producer
	Dials          int     `json:"dials"`
	Quotes         int     `json:"quotes"`
	Sales          int     `json:"sales"`
	Appointments   int     `json:"appointments"`
	ContactRate    float64 `json:"contactRate"`
	PitchRate      float64 `json:"pitchRate"`
	ConversionRate float64 `json:"conversionRate"`
	WrittenPremium float64 `json:"writtenPremium"`
}

// Totals are team-wide raw counts
type Totals struct {
	Dials        int `json:"dials"`
	Quotes       int `json:"quotes"`
	Sales        int `json:"sales"`
	Appointments int `json:"appointments"`
}

// Feed item kinds
const (
	FeedQuote       = "quote"
	FeedSale        = "sale"
	FeedAppointment = "appointment"
)

// FeedItem is one entry of the live activity feed
type FeedItem struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Detail    string `json:"detail"`
	UserName  string `json:"userName"`
	Timestamp string `json:"timestamp"`
}

// Tables that emit change notifications
const (
	TableDailyActivities   = "daily_activities"
	TableDailyAppointments = "daily_appointments"
	TableQuotesSales       = "quotes_sales"
	TableProfiles          = "profiles"
)

// WatchedTables are the tables the dashboard depends on. Profile changes
// carry the agency a producer joined or left.
var WatchedTables = []string{TableDailyActivities, TableDailyAppointments, TableQuotesSales, TableProfiles}

// ChangeEvent is an insert/update/delete notification on a watched table
type ChangeEvent struct {
	Table      string    `json:"table"`
	Op         string    `json:"op"`
	UserID     string    `json:"user_id"`
	AgencyID   string    `json:"agency_id,omitempty"`
	PrevAgency string    `json:"prev_agency_id,omitempty"`
	ReceivedAt time.Time `json:"-"`
}

// TouchesAgency reports whether a profile change moved a producer into or
// out of agencyID
func (e ChangeEvent) TouchesAgency(agencyID string) bool {
	return agencyID != "" && (e.AgencyID == agencyID || e.PrevAgency == agencyID)
}

// Name implements eventbus.Event; events are routed by table
func (e ChangeEvent) Name() string {
	return e.Table
}

// Change operations
const (
	OpInsert = "INSERT"
	OpUpdate = "UPDATE"
	OpDelete = "DELETE"
)

// IsWatchedTable reports whether table is one the dashboard depends on
func IsWatchedTable(table string) bool {
	for _, t := range WatchedTables {
		if t == table {
			return true
		}
	}
	return false
}

// Validate checks the table is watched and the operation is known
func (e ChangeEvent) Validate() error {
	if !IsWatchedTable(e.Table) {
		return fmt.Errorf("unwatched table %q", e.Table)
	}
	switch strings.ToUpper(e.Op) {
	case OpInsert, OpUpdate, OpDelete:
		return nil
	default:
		return fmt.Errorf("unknown operation %q", e.Op)
	}
}

// DecodeChangeEvent parses a notification payload emitted by the table triggers
func DecodeChangeEvent(payload []byte) (ChangeEvent, error) {
	var e ChangeEvent
	if err := json.Unmarshal(payload, &e); err != nil {
		return ChangeEvent{}, fmt.Errorf("invalid change payload: %w", err)
	}
	e.Op = strings.ToUpper(e.Op)
	if err := e.Validate(); err != nil {
		return ChangeEvent{}, err
	}
	return e, nil
}
