package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/aarondl/null/v8"
	"github.com/dailywin/backend/internal/activity"
	"github.com/dailywin/backend/internal/agency"
	"github.com/dailywin/backend/internal/aggregator"
	"github.com/dailywin/backend/internal/daily"
	"github.com/dailywin/backend/internal/dates"
	"github.com/dailywin/backend/internal/quotes"
	"github.com/dailywin/backend/internal/report"
	"github.com/dailywin/backend/internal/scoreboard"
	"github.com/dailywin/backend/internal/storage"
	"github.com/dailywin/backend/internal/types"
	"github.com/dailywin/backend/pkg/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDashboards struct {
	gotAgency string
	gotRange  dates.Range
}

func (f *fakeDashboards) Get(_ context.Context, agencyID string, r dates.Range) (aggregator.Snapshot, error) {
	f.gotAgency = agencyID
	f.gotRange = r
	return aggregator.Snapshot{
		AgencyID: agencyID,
		Range:    r,
		Loaded:   true,
		Rows: []types.ProducerRow{{
			Producer: types.Producer{ID: "u1", FirstName: null.StringFrom("Ann")},
			Dials:    12,
			Sales:    1,
		}},
	}, nil
}

func (f *fakeDashboards) Personal(_ context.Context, userID string, r dates.Range) (aggregator.PersonalMetrics, error) {
	f.gotRange = r
	return aggregator.PersonalMetrics{TotalCalls: 10, ContactRate: "50.00%"}, nil
}

func TestGetDashboard(t *testing.T) {
	src := &fakeDashboards{}
	h := NewDashboardHandler(src, time.UTC, testLogger)

	rec := serve(t, http.MethodGet, "/api/dashboard", "/api/dashboard?preset=custom&start=2026-10-01&end=2026-10-15", nil, member, h.GetDashboard)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "agency-1", src.gotAgency)
	assert.Equal(t, dates.Range{StartDate: "2026-10-01", EndDate: "2026-10-15"}, src.gotRange)

	var snap aggregator.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Len(t, snap.Rows, 1)
	assert.Equal(t, 12, snap.Rows[0].Dials)
}

func TestGetDashboardBadRange(t *testing.T) {
	h := NewDashboardHandler(&fakeDashboards{}, time.UTC, testLogger)

	rec := serve(t, http.MethodGet, "/api/dashboard", "/api/dashboard?preset=fortnight", nil, member, h.GetDashboard)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, http.MethodGet, "/api/dashboard", "/api/dashboard?preset=custom&start=2026-10-15&end=2026-10-01", nil, member, h.GetDashboard)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportDashboard(t *testing.T) {
	h := NewDashboardHandler(&fakeDashboards{}, time.UTC, testLogger)

	rec := serve(t, http.MethodGet, "/api/dashboard/export", "/api/dashboard/export?preset=custom&start=2026-10-01&end=2026-10-15", nil, member, h.ExportDashboard)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, report.ContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "dailywin-2026-10-01_2026-10-15.xlsx")
	// xlsx is a zip archive
	assert.Equal(t, "PK", rec.Body.String()[:2])
}

func TestGetPersonalMetrics(t *testing.T) {
	h := NewDashboardHandler(&fakeDashboards{}, time.UTC, testLogger)

	rec := serve(t, http.MethodGet, "/api/metrics/personal", "/api/metrics/personal?preset=today", nil, member, h.GetPersonalMetrics)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"totalCalls":10,"contacts":0,"pitches":0,"sales":0,"contactRate":"50.00%","pitchRate":"","conversionRate":""}`, rec.Body.String())
}

type fakeLog struct {
	gotField string
	gotDelta int
	gotQuote activity.QuoteRequest
}

func (f *fakeLog) Today(context.Context, types.Profile) (types.Counters, error) {
	return types.Counters{NoAnswer: 4}, nil
}

func (f *fakeLog) ApplyDelta(_ context.Context, _ types.Profile, field string, delta int) (activity.Result, error) {
	f.gotField, f.gotDelta = field, delta
	if activity.IsQuoteTrigger(field) && delta > 0 {
		return activity.Result{}, activity.ErrQuoteRequired
	}
	return activity.Result{Counters: types.Counters{NoAnswer: 5}}, nil
}

func (f *fakeLog) LogQuote(_ context.Context, _ types.Profile, req activity.QuoteRequest) (activity.Result, error) {
	f.gotQuote = req
	if req.Policyholder == "" {
		return activity.Result{}, validation.Errorf("Policyholder is required.")
	}
	return activity.Result{RecordID: "q1", Counters: types.Counters{Sales: 1}}, nil
}

func (f *fakeLog) LogCallback(context.Context, types.Profile, activity.CallbackRequest) (activity.Result, error) {
	return activity.Result{RecordID: "a1"}, nil
}

func (f *fakeLog) Feed(context.Context, types.Profile) ([]types.FeedItem, error) {
	return nil, nil
}

func TestActivityHandler(t *testing.T) {
	log := &fakeLog{}
	h := NewActivityHandler(log, testLogger)

	rec := serve(t, http.MethodGet, "/api/activity", "/api/activity", nil, member, h.GetToday)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"no_answer_count":4`)

	rec = serve(t, http.MethodPost, "/api/activity/delta", "/api/activity/delta", DeltaRequest{Field: types.FieldNoAnswer, Delta: 1}, member, h.ApplyDelta)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, types.FieldNoAnswer, log.gotField)
	assert.Equal(t, 1, log.gotDelta)

	rec = serve(t, http.MethodPost, "/api/activity/delta", "/api/activity/delta", DeltaRequest{Field: types.FieldSales, Delta: 1}, member, h.ApplyDelta)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, http.MethodPost, "/api/activity/delta", "/api/activity/delta", "not json", member, h.ApplyDelta)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request body.", errorBody(t, rec))

	rec = serve(t, http.MethodGet, "/api/activity/feed", "/api/activity/feed", nil, member, h.GetFeed)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestActivityHandlerLogQuote(t *testing.T) {
	log := &fakeLog{}
	h := NewActivityHandler(log, testLogger)

	body := `{"policyholder":"Jane Doe","lob":"auto","field":"sales_count","delta":2,"written_premium":1200}`
	rec := serve(t, http.MethodPost, "/api/activity/quote", "/api/activity/quote", body, member, h.LogQuote)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Jane Doe", log.gotQuote.Policyholder)
	assert.Equal(t, types.FieldSales, log.gotQuote.Field)
	assert.Equal(t, 2, log.gotQuote.Delta)
	assert.Equal(t, null.Float64From(1200), log.gotQuote.WrittenPremium)

	rec = serve(t, http.MethodPost, "/api/activity/quote", "/api/activity/quote", `{"lob":"auto"}`, member, h.LogQuote)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Policyholder is required.", errorBody(t, rec))

	rec = serve(t, http.MethodPost, "/api/activity/callback", "/api/activity/callback", `{"policyholder":"Sam","datetime":"2026-10-17T09:00"}`, member, h.LogCallback)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

type fakeBoard struct {
	got scoreboard.Delta
}

func (f *fakeBoard) Snapshot(_ context.Context, userID string) scoreboard.Snapshot {
	return scoreboard.Snapshot{UserID: userID, HourKey: "2026-10-16-10"}
}

func (f *fakeBoard) ApplyDelta(_ context.Context, userID string, d scoreboard.Delta) (scoreboard.Snapshot, scoreboard.Mutation) {
	f.got = d
	return scoreboard.Snapshot{UserID: userID, Stats: types.HourStats{Calls: d.Calls}, Pending: 1},
		scoreboard.Mutation{ID: "m1", Status: scoreboard.MutationPending}
}

func TestHourHandler(t *testing.T) {
	board := &fakeBoard{}
	h := NewHourHandler(board, testLogger)

	rec := serve(t, http.MethodGet, "/api/hour", "/api/hour", nil, member, h.GetHour)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"userId":"u1"`)

	rec = serve(t, http.MethodPost, "/api/hour/delta", "/api/hour/delta", scoreboard.Delta{Calls: 1, Quotes: 1}, member, h.ApplyDelta)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, scoreboard.Delta{Calls: 1, Quotes: 1}, board.got)

	var resp HourDeltaResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Snapshot.Pending)
	assert.Equal(t, "m1", resp.Mutation.ID)
}

type fakePlanner struct {
	saved types.DailyGoals
}

func (f *fakePlanner) Goals(_ context.Context, userID, date string) (types.DailyGoals, error) {
	if date == "yesterday" {
		return types.DailyGoals{}, validation.Errorf("date must be a date (YYYY-MM-DD).")
	}
	return types.DailyGoals{UserID: userID, Date: date, AutoQuotes: 3}, nil
}

func (f *fakePlanner) SaveGoals(_ context.Context, userID string, g types.DailyGoals) (types.DailyGoals, error) {
	g.UserID = userID
	f.saved = g
	return g, nil
}

func (f *fakePlanner) Review(_ context.Context, _, date string) (daily.Review, error) {
	return daily.Review{Date: date, Hours: []daily.HourRow{{Hour: 9}}}, nil
}

func TestDailyHandler(t *testing.T) {
	planner := &fakePlanner{}
	h := NewDailyHandler(planner, testLogger)

	rec := serve(t, http.MethodGet, "/api/goals", "/api/goals?date=2026-10-16", nil, member, h.GetGoals)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"auto_quotes":3`)

	rec = serve(t, http.MethodGet, "/api/goals", "/api/goals?date=yesterday", nil, member, h.GetGoals)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, http.MethodPut, "/api/goals", "/api/goals", `{"date":"2026-10-16","life_sales":2}`, member, h.SaveGoals)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", planner.saved.UserID)
	assert.Equal(t, 2, planner.saved.LifeSales)

	rec = serve(t, http.MethodGet, "/api/daily-review", "/api/daily-review?date=2026-10-15", nil, member, h.GetReview)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"2026-10-15"`)
}

type fakeBook struct {
	gotID   string
	gotForm activity.QuoteForm
}

func (f *fakeBook) List(_ context.Context, _ types.Profile, r dates.Range) (quotes.List, error) {
	return quotes.List{Range: r}, nil
}

func (f *fakeBook) Get(_ context.Context, _ types.Profile, id string) (quotes.Row, error) {
	f.gotID = id
	switch id {
	case "missing":
		return quotes.Row{}, storage.ErrNotFound
	case "theirs":
		return quotes.Row{}, types.ErrForbidden
	}
	return quotes.Row{QuoteSale: types.QuoteSale{ID: id}}, nil
}

func (f *fakeBook) Update(_ context.Context, _ types.Profile, id string, form activity.QuoteForm) (quotes.Row, error) {
	f.gotID = id
	f.gotForm = form
	return quotes.Row{QuoteSale: types.QuoteSale{ID: id, Policyholder: form.Policyholder}}, nil
}

func TestQuotesHandler(t *testing.T) {
	book := &fakeBook{}
	h := NewQuotesHandler(book, time.UTC, testLogger)

	rec := serve(t, http.MethodGet, "/api/quotes", "/api/quotes?preset=custom&start=2026-10-01&end=2026-10-02", nil, member, h.ListQuotes)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, http.MethodGet, "/api/quotes/{id}", "/api/quotes/q7", nil, member, h.GetQuote)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "q7", book.gotID)

	rec = serve(t, http.MethodGet, "/api/quotes/{id}", "/api/quotes/missing", nil, member, h.GetQuote)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(t, http.MethodGet, "/api/quotes/{id}", "/api/quotes/theirs", nil, member, h.GetQuote)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(t, http.MethodPut, "/api/quotes/{id}", "/api/quotes/q7", `{"policyholder":"Jane","lob":"fire"}`, member, h.UpdateQuote)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fire", book.gotForm.LOB)
}

type fakeDirectory struct {
	holiday string
}

func (f *fakeDirectory) ListForJoin(context.Context) ([]types.Agency, error) {
	return []types.Agency{{ID: "agency-1", Name: "North"}}, nil
}

func (f *fakeDirectory) Create(_ context.Context, _ types.Profile, req agency.CreateRequest) (types.Agency, error) {
	return types.Agency{ID: "agency-9", Name: req.Name}, nil
}

func (f *fakeDirectory) Join(_ context.Context, p types.Profile, agencyID string) (types.Profile, error) {
	if agencyID == "nope" {
		return types.Profile{}, storage.ErrNotFound
	}
	p.AgencyID = null.StringFrom(agencyID)
	return p, nil
}

func (f *fakeDirectory) HolidayToday(context.Context, types.Profile) (string, error) {
	return f.holiday, nil
}

func TestAgencyHandler(t *testing.T) {
	dir := &fakeDirectory{holiday: "Thanksgiving"}
	h := NewAgencyHandler(dir, testLogger)
	fresh := types.Profile{ID: "u3", Email: "cat@agency.test"}

	rec := serve(t, http.MethodGet, "/api/me", "/api/me", nil, member, h.GetMe)
	require.Equal(t, http.StatusOK, rec.Code)
	var me MeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, "u1", me.Profile.ID)
	assert.Equal(t, "Thanksgiving", me.Holiday)

	rec = serve(t, http.MethodGet, "/api/dnc-days/today", "/api/dnc-days/today", nil, member, h.GetHolidayToday)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"is_dnc":true,"holiday_name":"Thanksgiving"}`, rec.Body.String())

	rec = serve(t, http.MethodGet, "/api/agencies", "/api/agencies", nil, fresh, h.ListAgencies)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"North"`)

	rec = serve(t, http.MethodPost, "/api/agencies", "/api/agencies", `{"name":"South"}`, fresh, h.CreateAgency)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"South"`)

	rec = serve(t, http.MethodPost, "/api/agencies/{id}/join", "/api/agencies/agency-1/join", nil, fresh, h.JoinAgency)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"agency_id":"agency-1"`)

	rec = serve(t, http.MethodPost, "/api/agencies/{id}/join", "/api/agencies/nope/join", nil, fresh, h.JoinAgency)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type fakeDNC struct {
	days    []types.DNCDay
	deleted string
}

func (f *fakeDNC) ListDNCDays(context.Context, types.Profile) ([]types.DNCDay, error) {
	return f.days, nil
}

func (f *fakeDNC) CreateDNCDay(_ context.Context, p types.Profile, req agency.DNCRequest) (types.DNCDay, error) {
	d := types.DNCDay{ID: "d1", AgencyID: p.AgencyID.String, Date: req.Date, HolidayName: req.HolidayName}
	f.days = append(f.days, d)
	return d, nil
}

func (f *fakeDNC) UpdateDNCDay(_ context.Context, p types.Profile, id string, req agency.DNCRequest) (types.DNCDay, error) {
	return types.DNCDay{ID: id, AgencyID: p.AgencyID.String, Date: req.Date, HolidayName: req.HolidayName}, nil
}

func (f *fakeDNC) DeleteDNCDay(_ context.Context, _ types.Profile, id string) error {
	f.deleted = id
	return nil
}

func TestAdminHandler(t *testing.T) {
	dnc := &fakeDNC{}
	h := NewAdminHandler(dnc, testLogger)

	rec := serve(t, http.MethodGet, "/api/dnc-days", "/api/dnc-days", nil, admin, h.ListDNCDays)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	body := `{"date":"2026-11-26","holiday_name":"Thanksgiving"}`
	rec = serve(t, http.MethodPost, "/api/dnc-days", "/api/dnc-days", body, admin, h.CreateDNCDay)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Len(t, dnc.days, 1)

	rec = serve(t, http.MethodPost, "/api/dnc-days", "/api/dnc-days", body, member, h.CreateDNCDay, RequireAdmin)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Len(t, dnc.days, 1)

	rec = serve(t, http.MethodPut, "/api/dnc-days/{id}", "/api/dnc-days/d1", body, admin, h.UpdateDNCDay)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"d1"`)

	rec = serve(t, http.MethodDelete, "/api/dnc-days/{id}", "/api/dnc-days/d1", nil, admin, h.DeleteDNCDay)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "d1", dnc.deleted)
}
