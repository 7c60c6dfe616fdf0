package activity

import (
	"strings"
	"time"

	"github.com/aarondl/null/v8"
	"github.com/dailywin/backend/internal/types"
	"github.com/dailywin/backend/pkg/validation"
)

// QuoteForm is the editable part of a quote/sale record
type QuoteForm struct {
	Policyholder   string       `json:"policyholder"`
	LOB            string       `json:"lob" validate:"oneof=auto fire life health"`
	PolicyType     null.String  `json:"policy_type"`
	Zipcode        null.String  `json:"zipcode"`
	QuotedDate     null.String  `json:"quoted_date" validate:"omitempty,datetime=2006-01-02"`
	QuotedPremium  null.Float64 `json:"quoted_premium" validate:"omitempty,gte=0"`
	WrittenDate    null.String  `json:"written_date" validate:"omitempty,datetime=2006-01-02"`
	WrittenPremium null.Float64 `json:"written_premium" validate:"omitempty,gte=0"`
	IssuedDate     null.String  `json:"issued_date" validate:"omitempty,datetime=2006-01-02"`
	IssuedPremium  null.Float64 `json:"issued_premium" validate:"omitempty,gte=0"`
}

// Normalize trims text fields and turns blank optional fields into nulls
func (f QuoteForm) Normalize() QuoteForm {
	f.Policyholder = strings.TrimSpace(f.Policyholder)
	f.LOB = strings.ToLower(strings.TrimSpace(f.LOB))
	for _, s := range []*null.String{&f.PolicyType, &f.Zipcode, &f.QuotedDate, &f.WrittenDate, &f.IssuedDate} {
		*s = blankToNull(*s)
	}
	return f
}

func blankToNull(s null.String) null.String {
	v := strings.TrimSpace(s.String)
	if !s.Valid || v == "" {
		return null.String{}
	}
	return null.StringFrom(v)
}

// Validate expects a normalized form
func (f QuoteForm) Validate() error {
	if f.Policyholder == "" {
		return validation.Errorf("Policyholder is required.")
	}
	return validation.Struct(f)
}

// Apply copies the form onto a record
func (f QuoteForm) Apply(q types.QuoteSale) types.QuoteSale {
	q.Policyholder = f.Policyholder
	q.LOB = f.LOB
	q.PolicyType = f.PolicyType
	q.Zipcode = f.Zipcode
	q.QuotedDate = f.QuotedDate
	q.QuotedPremium = f.QuotedPremium
	q.WrittenDate = f.WrittenDate
	q.WrittenPremium = f.WrittenPremium
	q.IssuedDate = f.IssuedDate
	q.IssuedPremium = f.IssuedPremium
	return q
}

// QuoteRequest logs a quote and, when Field is set, the counter bump that opened it
type QuoteRequest struct {
	QuoteForm
	Field            string `json:"field" validate:"omitempty,oneof=quoted_callback_scheduled_count quoted_lost_count sales_count"`
	Delta            int    `json:"delta" validate:"gte=0"`
	CallbackDatetime string `json:"callback_datetime"`
}

// CallbackRequest logs a scheduled callback
type CallbackRequest struct {
	Policyholder string      `json:"policyholder"`
	Datetime     string      `json:"datetime"`
	LOB          null.String `json:"lob" validate:"omitempty,oneof=auto fire life health"`
	PolicyType   null.String `json:"policy_type"`
	Delta        int         `json:"delta" validate:"gte=0"`
}

var datetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// ParseDatetime accepts RFC 3339 or a zone-less local datetime in loc
func ParseDatetime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range datetimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, validation.Errorf("Callback date/time is invalid.")
}
