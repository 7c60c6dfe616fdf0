// Package quotes lists and edits quote/sale records. Admins work across their
// agency; everyone else sees only their own records.
package quotes

import (
	"context"
	"fmt"
	"slices"

	"github.com/dailywin/backend/internal/activity"
	"github.com/dailywin/backend/internal/aggregator"
	"github.com/dailywin/backend/internal/dates"
	"github.com/dailywin/backend/internal/types"
	"github.com/dailywin/backend/pkg/validation"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ListLimit caps each list
const ListLimit = 100

// Store is the persistence for quote/sale records
type Store interface {
	ListProducers(ctx context.Context, agencyID string) ([]types.Producer, error)
	ListOpenQuotes(ctx context.Context, userIDs []string, r dates.Range, limit int) ([]types.QuoteSale, error)
	ListSales(ctx context.Context, userIDs []string, r dates.Range, limit int) ([]types.QuoteSale, error)
	GetQuoteSale(ctx context.Context, id string) (types.QuoteSale, error)
	UpdateQuoteSale(ctx context.Context, q types.QuoteSale) error
}

// Row is a record with its producer's display name
type Row struct {
	types.QuoteSale
	ProducerName string `json:"producer_name"`
}

// List is the quotes/sales page for a range
type List struct {
	Range  dates.Range `json:"range"`
	Quotes []Row       `json:"quotes"`
	Sales  []Row       `json:"sales"`
}

// Service implements the quotes/sales surface
type Service struct {
	store  Store
	logger zerolog.Logger
}

// NewService creates a Service
func NewService(store Store, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger.With().Str("component", "quotes").Logger(),
	}
}

// scope returns the user ids p may see and their display names
func (s *Service) scope(ctx context.Context, p types.Profile) ([]string, map[string]string, error) {
	if !p.IsAdmin() || !p.AgencyID.Valid {
		return []string{p.ID}, map[string]string{p.ID: p.DisplayName()}, nil
	}

	producers, err := s.store.ListProducers(ctx, p.AgencyID.String)
	if err != nil {
		return nil, nil, fmt.Errorf("load producers: %w", err)
	}
	ids := make([]string, 0, len(producers))
	for _, pr := range producers {
		ids = append(ids, pr.ID)
	}
	return ids, aggregator.Names(producers), nil
}

func withNames(records []types.QuoteSale, names map[string]string) []Row {
	rows := make([]Row, 0, len(records))
	for _, q := range records {
		name := names[q.UserID]
		if name == "" {
			name = "Unknown"
		}
		rows = append(rows, Row{QuoteSale: q, ProducerName: name})
	}
	return rows
}

// List returns open quotes quoted in r and sales written in r
func (s *Service) List(ctx context.Context, p types.Profile, r dates.Range) (List, error) {
	if err := r.Validate(); err != nil {
		return List{}, validation.Errorf("%s", err.Error())
	}

	ids, names, err := s.scope(ctx, p)
	if err != nil {
		return List{}, err
	}

	var quotes, sales []types.QuoteSale
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		quotes, err = s.store.ListOpenQuotes(gctx, ids, r, ListLimit)
		return err
	})
	g.Go(func() error {
		var err error
		sales, err = s.store.ListSales(gctx, ids, r, ListLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return List{}, fmt.Errorf("load quotes: %w", err)
	}

	return List{Range: r, Quotes: withNames(quotes, names), Sales: withNames(sales, names)}, nil
}

// Get returns one record the caller may see
func (s *Service) Get(ctx context.Context, p types.Profile, id string) (Row, error) {
	q, err := s.store.GetQuoteSale(ctx, id)
	if err != nil {
		return Row{}, fmt.Errorf("load quote: %w", err)
	}

	ids, names, err := s.scope(ctx, p)
	if err != nil {
		return Row{}, err
	}
	if !slices.Contains(ids, q.UserID) {
		return Row{}, types.ErrForbidden
	}
	return withNames([]types.QuoteSale{q}, names)[0], nil
}

// Update overwrites the editable fields after the same validation as logging
func (s *Service) Update(ctx context.Context, p types.Profile, id string, form activity.QuoteForm) (Row, error) {
	form = form.Normalize()
	if err := form.Validate(); err != nil {
		return Row{}, err
	}

	row, err := s.Get(ctx, p, id)
	if err != nil {
		return Row{}, err
	}

	q := form.Apply(row.QuoteSale)
	if err := s.store.UpdateQuoteSale(ctx, q); err != nil {
		return Row{}, fmt.Errorf("update quote: %w", err)
	}

	s.logger.Debug().Str("quote_id", id).Str("user_id", p.ID).Msg("quote updated")
	row.QuoteSale = q
	return row, nil
}
