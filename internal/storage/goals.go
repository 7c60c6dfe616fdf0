package storage

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/dailywin/backend/internal/types"
)

var goalColumns = []string{
	"auto_quotes", "fire_quotes", "life_quotes", "health_quotes",
	"auto_sales", "fire_sales", "life_sales", "health_sales",
	"reviews", "referrals",
}

func goalValues(g *types.DailyGoals) []any {
	return []any{
		&g.AutoQuotes, &g.FireQuotes, &g.LifeQuotes, &g.HealthQuotes,
		&g.AutoSales, &g.FireSales, &g.LifeSales, &g.HealthSales,
		&g.Reviews, &g.Referrals,
	}
}

// GetGoals returns a user's goals for a date, zeros when none were saved
func (s *Store) GetGoals(ctx context.Context, userID, date string) (types.DailyGoals, error) {
	g := types.DailyGoals{UserID: userID, Date: date}
	b := psql.Select(goalColumns...).
		From("daily_goals").
		Where(sq.Eq{"user_id": userID, "date": date})

	err := s.queryRow(ctx, b, goalValues(&g)...)
	if errors.Is(err, ErrNotFound) {
		return g, nil
	}
	if err != nil {
		return types.DailyGoals{}, fmt.Errorf("failed to fetch goals: %w", err)
	}
	return g, nil
}

// UpsertGoals stores a user's goals keyed by (user, date)
func (s *Store) UpsertGoals(ctx context.Context, g types.DailyGoals) error {
	values := []any{g.UserID, g.Date}
	for _, v := range goalValues(&g) {
		values = append(values, *(v.(*int)))
	}

	set := ""
	for i, col := range goalColumns {
		if i > 0 {
			set += ", "
		}
		set += col + " = EXCLUDED." + col
	}

	b := psql.Insert("daily_goals").
		Columns(append([]string{"user_id", "date"}, goalColumns...)...).
		Values(values...).
		Suffix("ON CONFLICT (user_id, date) DO UPDATE SET " + set + ", updated_at = now()")

	if _, err := s.exec(ctx, b); err != nil {
		return fmt.Errorf("failed to save goals: %w", err)
	}
	return nil
}
