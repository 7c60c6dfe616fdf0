// Package dates converts calendar presets into concrete date ranges.
//
// Every function takes an explicit now; its location is the business time
// zone, so "today" matches the producer's wall clock rather than UTC.
package dates

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Layout is the ISO calendar date format used for date columns
const Layout = "2006-01-02"

// Preset names a range shortcut
type Preset string

const (
	PresetToday     Preset = "today"
	PresetThisWeek  Preset = "this_week"
	PresetThisMonth Preset = "this_month"
	PresetCustom    Preset = "custom"
)

var (
	ErrUnknownPreset = errors.New("unknown range preset")
	ErrInvalidRange  = errors.New("start date must not be after end date")
)

var validate = validator.New()

// Range is a pair of inclusive calendar dates
type Range struct {
	StartDate string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"endDate" validate:"required,datetime=2006-01-02"`
}

// Key identifies the range in maps and websocket subscriptions
func (r Range) Key() string {
	return r.StartDate + "|" + r.EndDate
}

// Validate checks both bounds are ISO dates and start <= end
func (r Range) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid range: %w", err)
	}
	if r.StartDate > r.EndDate {
		return ErrInvalidRange
	}
	return nil
}

// Contains reports whether date lies inside the range, bounds included.
// ISO dates order lexicographically, so no parsing is needed.
func (r Range) Contains(date string) bool {
	return date != "" && date >= r.StartDate && date <= r.EndDate
}

// ParsePreset maps a query value to a Preset; empty means today
func ParsePreset(s string) (Preset, error) {
	switch p := Preset(s); p {
	case "":
		return PresetToday, nil
	case PresetToday, PresetThisWeek, PresetThisMonth, PresetCustom:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPreset, s)
	}
}

// Today returns now's calendar date in now's location
func Today(now time.Time) string {
	return now.Format(Layout)
}

// Resolve turns a preset into a concrete range
func Resolve(now time.Time, preset Preset, customStart, customEnd string) Range {
	switch preset {
	case PresetThisWeek:
		start := startOfDay(now)
		// Monday is day 1; Sunday (0) belongs to the week that started six days earlier
		offset := (int(start.Weekday()) + 6) % 7
		start = start.AddDate(0, 0, -offset)
		return Range{StartDate: start.Format(Layout), EndDate: start.AddDate(0, 0, 6).Format(Layout)}
	case PresetThisMonth:
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		last := first.AddDate(0, 1, -1)
		return Range{StartDate: first.Format(Layout), EndDate: last.Format(Layout)}
	case PresetCustom:
		return Range{StartDate: customStart, EndDate: customEnd}
	default:
		today := Today(now)
		return Range{StartDate: today, EndDate: today}
	}
}

// Bound names the custom-range field a user just edited
type Bound int

const (
	BoundStart Bound = iota
	BoundEnd
)

// ClampCustom keeps start <= end after the user edits one bound:
// the other bound follows the edited one.
func ClampCustom(start, end string, changed Bound) Range {
	if start <= end {
		return Range{StartDate: start, EndDate: end}
	}
	if changed == BoundStart {
		return Range{StartDate: start, EndDate: start}
	}
	return Range{StartDate: end, EndDate: end}
}

// ParseDate parses an ISO date at local midnight in loc
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(Layout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// Window returns [start 00:00, end+1 day 00:00) in loc for timestamp filters
func Window(r Range, loc *time.Location) (from, to time.Time, err error) {
	from, err = ParseDate(r.StartDate, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := ParseDate(r.EndDate, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, end.AddDate(0, 0, 1), nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
