package cache

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dailywin/backend/internal/types"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "win-hour-u1-2026-10-16-09", Key("u1", "2026-10-16-09"))
}

func TestMemoryHourCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryHourCache(0)

	_, ok := c.Get(ctx, "u1", "2026-10-16-09")
	assert.False(t, ok)

	c.Set(ctx, "u1", "2026-10-16-09", types.HourStats{Calls: 3, Quotes: 1})
	got, ok := c.Get(ctx, "u1", "2026-10-16-09")
	require.True(t, ok)
	assert.Equal(t, types.HourStats{Calls: 3, Quotes: 1}, got)

	// Scoped per user
	_, ok = c.Get(ctx, "u2", "2026-10-16-09")
	assert.False(t, ok)
}

func TestMemoryHourCacheExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	c := NewMemoryHourCache(time.Hour)
	c.now = func() time.Time { return now }

	c.Set(ctx, "u1", "k", types.HourStats{Calls: 1})

	now = now.Add(30 * time.Minute)
	_, ok := c.Get(ctx, "u1", "k")
	assert.True(t, ok)

	now = now.Add(time.Hour)
	_, ok = c.Get(ctx, "u1", "k")
	assert.False(t, ok)

	assert.Equal(t, 1, c.Prune())
	assert.Equal(t, 0, c.Size())
}

type fakeRedis struct {
	redis.Cmdable
	data    map[string]string
	ttls    map[string]time.Duration
	failGet error
	failSet error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx, "get", key)
	switch v, ok := f.data[key]; {
	case f.failGet != nil:
		cmd.SetErr(f.failGet)
	case !ok:
		cmd.SetErr(redis.Nil)
	default:
		cmd.SetVal(v)
	}
	return cmd
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx, "set", key)
	if f.failSet != nil {
		cmd.SetErr(f.failSet)
		return cmd
	}
	f.data[key] = string(value.([]byte))
	f.ttls[key] = expiration
	cmd.SetVal("OK")
	return cmd
}

func TestRedisHourCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	c := NewRedisHourCacheFromClient(fake, 24*time.Hour, zerolog.New(&bytes.Buffer{}))

	c.Set(ctx, "u1", "2026-10-16-09", types.HourStats{Calls: 40})

	assert.JSONEq(t, `{"calls":40,"quotes":0,"sales":0}`, fake.data["win-hour-u1-2026-10-16-09"])
	assert.Equal(t, 24*time.Hour, fake.ttls["win-hour-u1-2026-10-16-09"])

	got, ok := c.Get(ctx, "u1", "2026-10-16-09")
	require.True(t, ok)
	assert.Equal(t, 40, got.Calls)
}

func TestRedisHourCacheFailuresAreMisses(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	fake := newFakeRedis()
	c := NewRedisHourCacheFromClient(fake, time.Hour, zerolog.New(&buf))

	_, ok := c.Get(ctx, "u1", "missing")
	assert.False(t, ok)
	assert.Empty(t, buf.String(), "a plain miss is not logged")

	fake.data[Key("u1", "bad")] = "{not json"
	_, ok = c.Get(ctx, "u1", "bad")
	assert.False(t, ok)

	fake.failGet = errors.New("connection refused")
	_, ok = c.Get(ctx, "u1", "any")
	assert.False(t, ok)
	assert.Contains(t, buf.String(), "hour cache read failed")

	fake.failSet = errors.New("connection refused")
	c.Set(ctx, "u1", "any", types.HourStats{Calls: 1})
	assert.Contains(t, buf.String(), "hour cache write failed")
}
