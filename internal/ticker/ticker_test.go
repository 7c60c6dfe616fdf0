package ticker

import (
	"bytes"
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNewTicker(t *testing.T) {
	logger := zerolog.New(&bytes.Buffer{})
	ticker := NewTicker("hour", 1*time.Second, func(context.Context, time.Time) {}, logger)

	if ticker == nil {
		t.Fatal("expected ticker to be created")
	}

	if ticker.interval != 1*time.Second {
		t.Errorf("expected interval 1s, got %v", ticker.interval)
	}

	if ticker.name != "hour" {
		t.Errorf("expected name hour, got %s", ticker.name)
	}
}

func TestTickerFirstTickIsImmediate(t *testing.T) {
	logger := zerolog.New(&bytes.Buffer{})

	first := make(chan time.Time, 1)
	ticker := NewTicker("hour", time.Hour, func(_ context.Context, now time.Time) {
		select {
		case first <- now:
		default:
		}
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ticker.Start(ctx)

	select {
	case <-first:
		// First tick did not wait for the hour-long interval
	case <-time.After(1 * time.Second):
		t.Fatal("expected an immediate first tick")
	}
}

func TestTickerTicksRepeatedly(t *testing.T) {
	logger := zerolog.New(&bytes.Buffer{})

	var ticks atomic.Int32
	ticker := NewTicker("hour", 20*time.Millisecond, func(context.Context, time.Time) {
		ticks.Add(1)
	}, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	done := make(chan bool)
	go func() {
		ticker.Start(ctx)
		done <- true
	}()
	<-done

	if ticks.Load() < 3 {
		t.Errorf("expected at least 3 ticks, got %d", ticks.Load())
	}
}

func TestTickerDoesNotTickWithCancelledContext(t *testing.T) {
	logger := zerolog.New(&bytes.Buffer{})

	var ticks atomic.Int32
	ticker := NewTicker("hour", 10*time.Millisecond, func(context.Context, time.Time) {
		ticks.Add(1)
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ticker.Start(ctx)

	if ticks.Load() != 0 {
		t.Errorf("expected no ticks, got %d", ticks.Load())
	}
}

func TestTickerStopsOnContextCancel(t *testing.T) {
	logger := zerolog.New(&bytes.Buffer{})

	ticker := NewTicker("hour", 100*time.Millisecond, func(context.Context, time.Time) {}, logger)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan bool)
	go func() {
		ticker.Start(ctx)
		done <- true
	}()

	// Let it run for a bit
	time.Sleep(200 * time.Millisecond)

	cancel()

	select {
	case <-done:
		// Success - ticker stopped
	case <-time.After(1 * time.Second):
		t.Error("ticker did not stop within timeout after context cancel")
	}
}
