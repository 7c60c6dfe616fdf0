package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dailywin/backend/internal/types"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisOptions configures the Redis connection
type RedisOptions struct {
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

// RedisHourCache stores hour stats as JSON strings with a TTL
type RedisHourCache struct {
	client redis.Cmdable
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedisHourCache connects and pings Redis
func NewRedisHourCache(ctx context.Context, opts RedisOptions, logger zerolog.Logger) (*RedisHourCache, *redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Address,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, err
	}

	return NewRedisHourCacheFromClient(client, opts.TTL, logger), client, nil
}

// NewRedisHourCacheFromClient wraps an existing client
func NewRedisHourCacheFromClient(client redis.Cmdable, ttl time.Duration, logger zerolog.Logger) *RedisHourCache {
	return &RedisHourCache{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "hour_cache").Logger(),
	}
}

func (c *RedisHourCache) Get(ctx context.Context, userID, hourKey string) (types.HourStats, bool) {
	val, err := c.client.Get(ctx, Key(userID, hourKey)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Str("user_id", userID).Str("hour_key", hourKey).Msg("hour cache read failed")
		}
		return types.HourStats{}, false
	}

	var stats types.HourStats
	if err := json.Unmarshal([]byte(val), &stats); err != nil {
		c.logger.Warn().Err(err).Str("user_id", userID).Msg("hour cache entry is corrupt")
		return types.HourStats{}, false
	}
	return stats, true
}

func (c *RedisHourCache) Set(ctx context.Context, userID, hourKey string, stats types.HourStats) {
	data, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, Key(userID, hourKey), data, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("user_id", userID).Str("hour_key", hourKey).Msg("hour cache write failed")
	}
}
