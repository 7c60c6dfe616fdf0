package types

import (
	"strings"

	"github.com/aarondl/null/v8"
)

// Role values stored on profiles
const (
	RoleAdmin    = "admin"
	RoleProducer = "producer"
)

// Producer is a sales agent whose activity is tracked
type Producer struct {
	ID        string      `json:"id"`
	FirstName null.String `json:"first_name"`
	LastName  null.String `json:"last_name"`
}

// DisplayName returns "First Last", or Unknown when both are empty
func (p Producer) DisplayName() string {
	return displayName(p.FirstName, p.LastName, "")
}

// Profile is the signed-in user's row in profiles joined with the agency name
type Profile struct {
	ID         string      `json:"id"`
	FirstName  null.String `json:"first_name"`
	LastName   null.String `json:"last_name"`
	Email      string      `json:"email"`
	AgencyID   null.String `json:"agency_id"`
	Role       string      `json:"role"`
	AgencyName null.String `json:"agency_name"`
}

// DisplayName falls back to the email before Unknown
func (p Profile) DisplayName() string {
	return displayName(p.FirstName, p.LastName, p.Email)
}

// IsAdmin reports whether the profile role is admin (case-insensitive)
func (p Profile) IsAdmin() bool {
	return strings.EqualFold(p.Role, RoleAdmin)
}

func displayName(first, last null.String, fallback string) string {
	name := strings.TrimSpace(first.String + " " + last.String)
	if name != "" {
		return name
	}
	if fallback != "" {
		return fallback
	}
	return "Unknown"
}

// Agency is a tenant
type Agency struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Address1 null.String `json:"address1"`
	Address2 null.String `json:"address2"`
	City     null.String `json:"city"`
	State    null.String `json:"state"`
	Zip      null.String `json:"zip"`
}

// DNCDay is an agency-configured Do-Not-Call calendar date
type DNCDay struct {
	ID          string `json:"id"`
	AgencyID    string `json:"agency_id"`
	Date        string `json:"date"`
	HolidayName string `json:"holiday_name"`
}
