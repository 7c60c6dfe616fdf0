package storage

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/dailywin/backend/internal/dates"
	"github.com/dailywin/backend/internal/types"
)

func openQuotesQuery(userIDs []string, r dates.Range, limit int) sq.SelectBuilder {
	return psql.Select(quoteSaleColumns...).
		From("quotes_sales").
		Where(sq.Eq{"user_id": userIDs}).
		Where(dateInRange("quoted_date", r)).
		Where(sq.Eq{
			"written_date":    nil,
			"written_premium": nil,
			"issued_date":     nil,
			"issued_premium":  nil,
		}).
		OrderBy("quoted_date DESC", "created_at DESC").
		Limit(uint64(limit))
}

// ListOpenQuotes returns quotes in range that were never written or issued
func (s *Store) ListOpenQuotes(ctx context.Context, userIDs []string, r dates.Range, limit int) ([]types.QuoteSale, error) {
	if len(userIDs) == 0 {
		return []types.QuoteSale{}, nil
	}
	rows, err := collect(ctx, s, openQuotesQuery(userIDs, r, limit), scanQuoteSale)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch quotes: %w", err)
	}
	return rows, nil
}

func salesQuery(userIDs []string, r dates.Range, limit int) sq.SelectBuilder {
	return psql.Select(quoteSaleColumns...).
		From("quotes_sales").
		Where(sq.Eq{"user_id": userIDs}).
		Where(dateInRange("written_date", r)).
		OrderBy("written_date DESC", "created_at DESC").
		Limit(uint64(limit))
}

// ListSales returns records written inside the range
func (s *Store) ListSales(ctx context.Context, userIDs []string, r dates.Range, limit int) ([]types.QuoteSale, error) {
	if len(userIDs) == 0 {
		return []types.QuoteSale{}, nil
	}
	rows, err := collect(ctx, s, salesQuery(userIDs, r, limit), scanQuoteSale)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sales: %w", err)
	}
	return rows, nil
}

// GetQuoteSale returns one record by id
func (s *Store) GetQuoteSale(ctx context.Context, id string) (types.QuoteSale, error) {
	b := psql.Select(quoteSaleColumns...).
		From("quotes_sales").
		Where(sq.Eq{"id": id})

	var q types.QuoteSale
	err := s.queryRow(ctx, b, quoteSaleDests(&q)...)
	if errors.Is(err, ErrNotFound) {
		return types.QuoteSale{}, ErrNotFound
	}
	if err != nil {
		return types.QuoteSale{}, fmt.Errorf("failed to fetch quote: %w", err)
	}
	return q, nil
}

// UpdateQuoteSale overwrites the editable fields of a record
func (s *Store) UpdateQuoteSale(ctx context.Context, q types.QuoteSale) error {
	b := psql.Update("quotes_sales").
		SetMap(map[string]any{
			"policyholder":    q.Policyholder,
			"lob":             q.LOB,
			"policy_type":     q.PolicyType,
			"zipcode":         q.Zipcode,
			"quoted_date":     q.QuotedDate,
			"quoted_premium":  q.QuotedPremium,
			"written_date":    q.WrittenDate,
			"written_premium": q.WrittenPremium,
			"issued_date":     q.IssuedDate,
			"issued_premium":  q.IssuedPremium,
		}).
		Where(sq.Eq{"id": q.ID})

	n, err := s.exec(ctx, b)
	if err != nil {
		return fmt.Errorf("failed to update quote: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
