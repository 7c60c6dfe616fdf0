package eventbus

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type testEvent string

func (e testEvent) Name() string { return string(e) }

func TestPublishReachesSubscribers(t *testing.T) {
	bus := New(zerolog.New(&bytes.Buffer{}))

	var hits atomic.Int32
	bus.Subscribe("a", func(ctx context.Context, e Event) error {
		hits.Add(1)
		return nil
	})
	bus.Subscribe("a", func(ctx context.Context, e Event) error {
		hits.Add(1)
		return nil
	})
	bus.Subscribe("b", func(ctx context.Context, e Event) error {
		hits.Add(100)
		return nil
	})

	bus.Publish(context.Background(), testEvent("a"))
	bus.Wait()

	assert.Equal(t, int32(2), hits.Load())
}

func TestUnsubscribe(t *testing.T) {
	bus := New(zerolog.New(&bytes.Buffer{}))

	var hits atomic.Int32
	unsubscribe := bus.Subscribe("a", func(ctx context.Context, e Event) error {
		hits.Add(1)
		return nil
	})
	assert.Equal(t, 1, bus.ListenerCount("a"))

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 0, bus.ListenerCount("a"))

	bus.Publish(context.Background(), testEvent("a"))
	bus.Wait()
	assert.Equal(t, int32(0), hits.Load())
}

func TestListenerErrorIsLogged(t *testing.T) {
	var buf bytes.Buffer
	bus := New(zerolog.New(&buf))

	bus.Subscribe("a", func(ctx context.Context, e Event) error {
		return errors.New("boom")
	})

	bus.Publish(context.Background(), testEvent("a"))
	bus.Wait()

	assert.Contains(t, buf.String(), "event listener failed")
	assert.Contains(t, buf.String(), "boom")
}

func TestListenerOutlivesPublisherContext(t *testing.T) {
	bus := New(zerolog.New(&bytes.Buffer{}))

	var sawCancel atomic.Bool
	bus.Subscribe("a", func(ctx context.Context, e Event) error {
		sawCancel.Store(ctx.Err() != nil)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bus.Publish(ctx, testEvent("a"))
	bus.Wait()

	assert.False(t, sawCancel.Load())
}
