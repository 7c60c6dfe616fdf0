package scoreboard

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dailywin/backend/internal/types"
)

const hourKeyLayout = "2006-01-02-15"

// Win thresholds for one hour
const (
	WinCalls  = 40
	WinQuotes = 1
	WinSales  = 1
)

// HourKey identifies the hour bucket containing t, in t's location
func HourKey(t time.Time) string {
	return t.Format(hourKeyLayout)
}

// ParseHourKey splits a key into its ISO date and hour of day
func ParseHourKey(key string) (date string, hour int, err error) {
	if _, err := time.Parse(hourKeyLayout, key); err != nil {
		return "", 0, fmt.Errorf("invalid hour key %q: %w", key, err)
	}
	hour, err = strconv.Atoi(key[11:])
	if err != nil {
		return "", 0, fmt.Errorf("invalid hour key %q: %w", key, err)
	}
	return key[:10], hour, nil
}

// Won reports whether an hour is won
func Won(s types.HourStats) bool {
	return s.Calls >= WinCalls || s.Quotes >= WinQuotes || s.Sales >= WinSales
}

// Delta is a signed change to an hour bucket
type Delta struct {
	Calls  int `json:"calls"`
	Quotes int `json:"quotes"`
	Sales  int `json:"sales"`
}

// IsZero reports whether the delta changes nothing
func (d Delta) IsZero() bool {
	return d.Calls == 0 && d.Quotes == 0 && d.Sales == 0
}

// apply adds d to s, clamping each component at zero
func (d Delta) apply(s types.HourStats) types.HourStats {
	return types.HourStats{
		Calls:  max(0, s.Calls+d.Calls),
		Quotes: max(0, s.Quotes+d.Quotes),
		Sales:  max(0, s.Sales+d.Sales),
	}
}
