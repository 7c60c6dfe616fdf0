package aggregator

import (
	"context"
	"fmt"

	"github.com/dailywin/backend/internal/dates"
	"github.com/dailywin/backend/internal/types"
	"golang.org/x/sync/errgroup"
)

// PersonalMetrics is one producer's funnel for a range
type PersonalMetrics struct {
	TotalCalls     int    `json:"totalCalls"`
	Contacts       int    `json:"contacts"`
	Pitches        int    `json:"pitches"`
	Sales          int    `json:"sales"`
	ContactRate    string `json:"contactRate"`
	PitchRate      string `json:"pitchRate"`
	ConversionRate string `json:"conversionRate"`
}

// Percent formats n/d with two decimals, "0%" when d is 0
func Percent(n, d int) string {
	if d == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.2f%%", Rate(n, d))
}

// Personal computes a producer's funnel from summed counters and the number
// of written sales in range. Written sales stand in for the sales counter.
func Personal(c types.Counters, sales int) PersonalMetrics {
	contacts := Contacts(c, sales)
	pitches := Pitches(c, sales)
	totalCalls := c.Dials() - c.Sales + sales

	return PersonalMetrics{
		TotalCalls:     totalCalls,
		Contacts:       contacts,
		Pitches:        pitches,
		Sales:          sales,
		ContactRate:    Percent(contacts, totalCalls),
		PitchRate:      Percent(pitches, contacts),
		ConversionRate: Percent(sales, pitches),
	}
}

// Personal loads one producer's counters and written sales for a range
func (s *Service) Personal(ctx context.Context, userID string, r dates.Range) (PersonalMetrics, error) {
	ids := []string{userID}

	var (
		activities []types.DailyActivity
		records    []types.QuoteSale
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		activities, err = s.source.FetchDailyActivities(gctx, ids, r)
		return err
	})
	g.Go(func() (err error) {
		records, err = s.source.FetchQuoteSales(gctx, ids, r)
		return err
	})
	if err := g.Wait(); err != nil {
		return PersonalMetrics{}, fmt.Errorf("failed to load personal metrics: %w", err)
	}

	var counters types.Counters
	for _, a := range activities {
		counters = counters.Add(a.Counters)
	}
	sales := 0
	for _, q := range records {
		if q.IsSale() && r.Contains(q.WrittenDate.String) {
			sales++
		}
	}
	return Personal(counters, sales), nil
}
