package aggregator

import (
	"time"

	"github.com/dailywin/backend/internal/dates"
	"github.com/dailywin/backend/internal/types"
)

// Input is everything needed to aggregate one agency over one range
type Input struct {
	Producers    []types.Producer
	Activities   []types.DailyActivity
	Appointments []types.Appointment
	QuoteSales   []types.QuoteSale
	Range        dates.Range

	// Appointment window; a zero From/To counts every appointment given
	From, To time.Time
}

// Result is the per-producer rollup plus team totals
type Result struct {
	Rows         []types.ProducerRow `json:"rows"`
	TeamTotals   types.Totals        `json:"teamTotals"`
	TeamCounters types.Counters      `json:"-"`
	TeamSales    int                 `json:"-"`
}

// Rates are the three funnel percentages
type Rates struct {
	ContactRate    float64 `json:"contactRate"`
	PitchRate      float64 `json:"pitchRate"`
	ConversionRate float64 `json:"conversionRate"`
}

// Rate returns n/d as a percentage, 0 when d is 0
func Rate(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d) * 100
}

// Contacts is the number of calls that reached a person, with sales taken
// from written records rather than the sales counter
func Contacts(c types.Counters, sales int) int {
	return c.CallbackScheduled + c.NotInterested + c.QuotedLost + c.QuotedCallback + sales
}

// Pitches is the number of contacts that received a quote
func Pitches(c types.Counters, sales int) int {
	return c.QuotedLost + c.QuotedCallback + sales
}

// FunnelRates computes contact, pitch and conversion rates
func FunnelRates(c types.Counters, sales int) Rates {
	contacts := Contacts(c, sales)
	pitches := Pitches(c, sales)
	return Rates{
		ContactRate:    Rate(contacts, c.Dials()),
		PitchRate:      Rate(pitches, contacts),
		ConversionRate: Rate(sales, pitches),
	}
}

// TeamRates recomputes the funnel rates over the whole team
func TeamRates(r Result) Rates {
	return FunnelRates(r.TeamCounters, r.TeamSales)
}

type tally struct {
	counters     types.Counters
	quotes       int
	sales        int
	appointments int
	premium      float64
}

// Aggregate rolls counters, quotes, sales and appointments up per producer.
// Rows follow the producer order; records of users outside the producer list
// are ignored. The input is not modified.
func Aggregate(in Input) Result {
	tallies := make(map[string]*tally, len(in.Producers))
	for _, p := range in.Producers {
		tallies[p.ID] = &tally{}
	}

	for _, a := range in.Activities {
		if t, ok := tallies[a.UserID]; ok {
			t.counters = t.counters.Add(a.Counters)
		}
	}

	for _, q := range in.QuoteSales {
		t, ok := tallies[q.UserID]
		if !ok {
			continue
		}
		if q.QuotedDate.Valid && in.Range.Contains(q.QuotedDate.String) {
			t.quotes++
		}
		if q.IsSale() && in.Range.Contains(q.WrittenDate.String) {
			t.sales++
			t.premium += q.WrittenPremium.Float64
		}
	}

	windowed := !in.From.IsZero() && !in.To.IsZero()
	for _, a := range in.Appointments {
		t, ok := tallies[a.UserID]
		if !ok {
			continue
		}
		if windowed && (a.Datetime.Before(in.From) || !a.Datetime.Before(in.To)) {
			continue
		}
		t.appointments++
	}

	result := Result{Rows: make([]types.ProducerRow, 0, len(in.Producers))}
	for _, p := range in.Producers {
		t := tallies[p.ID]
		rates := FunnelRates(t.counters, t.sales)

		result.Rows = append(result.Rows, types.ProducerRow{
			Producer:       p,
			Dials:          t.counters.Dials(),
			Quotes:         t.quotes,
			Sales:          t.sales,
			Appointments:   t.appointments,
			ContactRate:    rates.ContactRate,
			PitchRate:      rates.PitchRate,
			ConversionRate: rates.ConversionRate,
			WrittenPremium: t.premium,
		})

		result.TeamTotals.Dials += t.counters.Dials()
		result.TeamTotals.Quotes += t.quotes
		result.TeamTotals.Sales += t.sales
		result.TeamTotals.Appointments += t.appointments
		result.TeamCounters = result.TeamCounters.Add(t.counters)
		result.TeamSales += t.sales
	}

	return result
}
