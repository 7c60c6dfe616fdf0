// Package cache holds the best-effort per-user hour counter cache.
package cache

import (
	"context"
	"fmt"

	"github.com/dailywin/backend/internal/types"
)

// HourCache is a synchronous key/value store for hour stats.
// Implementations degrade every failure to a miss; they never return errors.
type HourCache interface {
	Get(ctx context.Context, userID, hourKey string) (types.HourStats, bool)
	Set(ctx context.Context, userID, hourKey string, stats types.HourStats)
}

// Key is the storage key for one user's hour bucket
func Key(userID, hourKey string) string {
	return fmt.Sprintf("win-hour-%s-%s", userID, hourKey)
}
