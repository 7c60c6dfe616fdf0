package types

import (
	"strings"
	"time"

	"github.com/aarondl/null/v8"
)

// Counter field names, as stored and as sent by clients
const (
	FieldNoAnswer          = "no_answer_count"
	FieldBadContact        = "bad_contact_count"
	FieldNotInterested     = "not_interested_count"
	FieldCallbackScheduled = "callback_scheduled"
	FieldQuotedCallback    = "quoted_callback_scheduled_count"
	FieldQuotedLost        = "quoted_lost_count"
	FieldSales             = "sales_count"
)

// CounterFields lists the seven counters in display order
var CounterFields = []string{
	FieldNoAnswer,
	FieldBadContact,
	FieldNotInterested,
	FieldCallbackScheduled,
	FieldQuotedCallback,
	FieldQuotedLost,
	FieldSales,
}

// IsCounterField reports whether field names one of the seven counters
func IsCounterField(field string) bool {
	for _, f := range CounterFields {
		if f == field {
			return true
		}
	}
	return false
}

// Counters holds the seven daily outcome counters
type Counters struct {
	NoAnswer          int `json:"no_answer_count"`
	BadContact        int `json:"bad_contact_count"`
	NotInterested     int `json:"not_interested_count"`
	CallbackScheduled int `json:"callback_scheduled"`
	QuotedCallback    int `json:"quoted_callback_scheduled_count"`
	QuotedLost        int `json:"quoted_lost_count"`
	Sales             int `json:"sales_count"`
}

// Add returns the elementwise sum
func (c Counters) Add(o Counters) Counters {
	return Counters{
		NoAnswer:          c.NoAnswer + o.NoAnswer,
		BadContact:        c.BadContact + o.BadContact,
		NotInterested:     c.NotInterested + o.NotInterested,
		CallbackScheduled: c.CallbackScheduled + o.CallbackScheduled,
		QuotedCallback:    c.QuotedCallback + o.QuotedCallback,
		QuotedLost:        c.QuotedLost + o.QuotedLost,
		Sales:             c.Sales + o.Sales,
	}
}

// Dials is every logged outcome
func (c Counters) Dials() int {
	return c.NoAnswer + c.BadContact + c.NotInterested + c.CallbackScheduled +
		c.QuotedCallback + c.QuotedLost + c.Sales
}

// DailyActivity is one row per (user, date)
type DailyActivity struct {
	UserID string `json:"user_id"`
	Date   string `json:"date"`
	Counters
}

// Appointment is a scheduled callback
type Appointment struct {
	ID           string      `json:"id"`
	UserID       string      `json:"user_id"`
	Datetime     time.Time   `json:"datetime"`
	Policyholder string      `json:"policyholder"`
	LOB          null.String `json:"lob"`
	PolicyType   null.String `json:"policy_type"`
	CreatedAt    time.Time   `json:"created_at"`
}

// Lines of business
const (
	LOBAuto   = "auto"
	LOBFire   = "fire"
	LOBLife   = "life"
	LOBHealth = "health"
)

// QuoteSale is one quote progressing through quoted -> written -> issued
type QuoteSale struct {
	ID             string       `json:"id"`
	UserID         string       `json:"user_id"`
	Policyholder   string       `json:"policyholder"`
	LOB            string       `json:"lob"`
	PolicyType     null.String  `json:"policy_type"`
	Zipcode        null.String  `json:"zipcode"`
	QuotedDate     null.String  `json:"quoted_date"`
	QuotedPremium  null.Float64 `json:"quoted_premium"`
	WrittenDate    null.String  `json:"written_date"`
	WrittenPremium null.Float64 `json:"written_premium"`
	IssuedDate     null.String  `json:"issued_date"`
	IssuedPremium  null.Float64 `json:"issued_premium"`
	CreatedAt      time.Time    `json:"created_at"`
}

// IsSale reports whether the written date and premium are both set
func (q QuoteSale) IsSale() bool {
	return q.WrittenDate.Valid && q.WrittenDate.String != "" && q.WrittenPremium.Valid
}

// LOBLabel is the upper-cased line of business, or Quote when unset
func (q QuoteSale) LOBLabel() string {
	if q.LOB == "" {
		return "Quote"
	}
	return strings.ToUpper(q.LOB)
}

// HourlyCounter is the remote row for one (user, date, hour)
type HourlyCounter struct {
	UserID string `json:"user_id" dynamodbav:"UserID"`
	Date   string `json:"date" dynamodbav:"Date"`
	Hour   int    `json:"hour" dynamodbav:"Hour"`
	Calls  int    `json:"calls" dynamodbav:"Calls"`
	Quotes int    `json:"quotes" dynamodbav:"Quotes"`
	Sales  int    `json:"sales" dynamodbav:"Sales"`
	Won    bool   `json:"won" dynamodbav:"Won"`
}

// DailyGoals is one row per (user, date)
type DailyGoals struct {
	UserID       string `json:"user_id"`
	Date         string `json:"date"`
	AutoQuotes   int    `json:"auto_quotes" validate:"gte=0"`
	FireQuotes   int    `json:"fire_quotes" validate:"gte=0"`
	LifeQuotes   int    `json:"life_quotes" validate:"gte=0"`
	HealthQuotes int    `json:"health_quotes" validate:"gte=0"`
	AutoSales    int    `json:"auto_sales" validate:"gte=0"`
	FireSales    int    `json:"fire_sales" validate:"gte=0"`
	LifeSales    int    `json:"life_sales" validate:"gte=0"`
	HealthSales  int    `json:"health_sales" validate:"gte=0"`
	Reviews      int    `json:"reviews" validate:"gte=0"`
	Referrals    int    `json:"referrals" validate:"gte=0"`
}

// HourStats is the live counter for one hour bucket
type HourStats struct {
	Calls  int `json:"calls"`
	Quotes int `json:"quotes"`
	Sales  int `json:"sales"`
}
