package aggregator

import (
	"sort"
	"strings"
	"time"

	"github.com/dailywin/backend/internal/dates"
	"github.com/dailywin/backend/internal/types"
)

// Feed sizes
const (
	FeedFetchLimit = 20
	FeedSize       = 12
)

// FormatAppointmentDetail joins the non-empty parts with " • ", upper-casing the LOB
func FormatAppointmentDetail(policyholder, lob, policyType string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{policyholder, strings.ToUpper(lob), policyType} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " • ")
}

type feedEntry struct {
	item types.FeedItem
	at   time.Time
}

// BuildFeed merges quotes and appointments into the newest-first activity
// feed. Items without any timestamp sort last.
func BuildFeed(quotes []types.QuoteSale, appts []types.Appointment, names map[string]string, limit int) []types.FeedItem {
	nameOf := func(userID string) string {
		if n, ok := names[userID]; ok && n != "" {
			return n
		}
		return "Unknown"
	}

	entries := make([]feedEntry, 0, len(quotes)+len(appts))

	for _, q := range quotes {
		item := types.FeedItem{
			ID:       q.ID,
			Type:     types.FeedQuote,
			Title:    "Quote created",
			Detail:   q.Policyholder + " • " + q.LOBLabel(),
			UserName: nameOf(q.UserID),
		}
		if q.IsSale() {
			item.Type = types.FeedSale
			item.Title = "Sale written"
		}

		at := q.CreatedAt
		if at.IsZero() {
			at = firstDate(q.WrittenDate.String, q.QuotedDate.String)
		}
		entries = append(entries, feedEntry{item: item, at: at})
	}

	for _, a := range appts {
		item := types.FeedItem{
			ID:       a.ID,
			Type:     types.FeedAppointment,
			Title:    "Appointment scheduled",
			Detail:   FormatAppointmentDetail(a.Policyholder, a.LOB.String, a.PolicyType.String),
			UserName: nameOf(a.UserID),
		}

		at := a.CreatedAt
		if at.IsZero() {
			at = a.Datetime
		}
		entries = append(entries, feedEntry{item: item, at: at})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].at, entries[j].at
		if a.IsZero() != b.IsZero() {
			return b.IsZero()
		}
		return a.After(b)
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	items := make([]types.FeedItem, 0, len(entries))
	for _, e := range entries {
		if !e.at.IsZero() {
			e.item.Timestamp = e.at.UTC().Format(time.RFC3339)
		}
		items = append(items, e.item)
	}
	return items
}

func firstDate(candidates ...string) time.Time {
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if t, err := time.Parse(dates.Layout, c); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Names maps producer ids to display names
func Names(producers []types.Producer) map[string]string {
	names := make(map[string]string, len(producers))
	for _, p := range producers {
		names[p.ID] = p.DisplayName()
	}
	return names
}
