package realtime

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dailywin/backend/internal/types"
	"github.com/dailywin/backend/pkg/eventbus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBus() *eventbus.Bus {
	return eventbus.New(zerolog.New(&bytes.Buffer{}))
}

func TestTriggerRefreshesForWatchedProducers(t *testing.T) {
	bus := newBus()
	var refreshes atomic.Int32
	tr := NewTrigger(bus, "agency", "agency|week", func(context.Context) { refreshes.Add(1) }, zerolog.New(&bytes.Buffer{}))
	tr.SetProducers([]string{"p1", "p2"})

	ctx := context.Background()
	bus.Publish(ctx, types.ChangeEvent{Table: types.TableQuotesSales, Op: types.OpInsert, UserID: "p2"})
	bus.Wait()
	assert.Equal(t, int32(1), refreshes.Load())

	bus.Publish(ctx, types.ChangeEvent{Table: types.TableDailyActivities, Op: types.OpUpdate, UserID: "someone-else"})
	bus.Wait()
	assert.Equal(t, int32(1), refreshes.Load())
}

func TestTriggerIdenticalSetKeepsSubscription(t *testing.T) {
	bus := newBus()
	tr := NewTrigger(bus, "agency", "d", func(context.Context) {}, zerolog.New(&bytes.Buffer{}))

	tr.SetProducers([]string{"p1", "p2"})
	tr.SetProducers([]string{"p2", "p1"})
	for _, table := range types.WatchedTables {
		assert.Equal(t, 1, bus.ListenerCount(table))
	}

	tr.SetProducers([]string{"p1"})
	for _, table := range types.WatchedTables {
		assert.Equal(t, 1, bus.ListenerCount(table))
	}

	tr.Close()
	for _, table := range types.WatchedTables {
		assert.Zero(t, bus.ListenerCount(table))
	}

	// No resubscription after close
	tr.SetProducers([]string{"p3"})
	assert.Zero(t, bus.ListenerCount(types.TableQuotesSales))
}

func TestTriggerCoalescesBursts(t *testing.T) {
	bus := newBus()

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	var refreshes atomic.Int32
	tr := NewTrigger(bus, "agency", "d", func(context.Context) {
		n := refreshes.Add(1)
		if n == 1 {
			started <- struct{}{}
			<-release
		}
	}, zerolog.New(&bytes.Buffer{}))
	tr.SetProducers([]string{"p1"})

	ctx := context.Background()
	bus.Publish(ctx, types.ChangeEvent{Table: types.TableDailyActivities, Op: types.OpUpdate, UserID: "p1"})
	<-started

	// These land while the first refresh is still running
	for i := 0; i < 5; i++ {
		bus.Publish(ctx, types.ChangeEvent{Table: types.TableDailyAppointments, Op: types.OpInsert, UserID: "p1"})
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	bus.Wait()

	assert.Equal(t, int32(2), refreshes.Load())
}

func TestTriggerRefreshesOnAgencyMembership(t *testing.T) {
	bus := newBus()
	var refreshes atomic.Int32
	tr := NewTrigger(bus, "a1", "a1|week", func(context.Context) { refreshes.Add(1) }, zerolog.New(&bytes.Buffer{}))
	tr.SetProducers([]string{"p1"})

	tests := []struct {
		name   string
		event  types.ChangeEvent
		wantUp bool
	}{
		{"producer joins", types.ChangeEvent{Table: types.TableProfiles, Op: types.OpUpdate, UserID: "p9", AgencyID: "a1"}, true},
		{"producer leaves", types.ChangeEvent{Table: types.TableProfiles, Op: types.OpUpdate, UserID: "p1", PrevAgency: "a1"}, true},
		{"producer deleted", types.ChangeEvent{Table: types.TableProfiles, Op: types.OpDelete, UserID: "p8", PrevAgency: "a1"}, true},
		{"member renamed", types.ChangeEvent{Table: types.TableProfiles, Op: types.OpUpdate, UserID: "p1", AgencyID: "a1", PrevAgency: "a1"}, true},
		{"other agency", types.ChangeEvent{Table: types.TableProfiles, Op: types.OpUpdate, UserID: "p9", AgencyID: "a2", PrevAgency: "a3"}, false},
		{"profile without agency", types.ChangeEvent{Table: types.TableProfiles, Op: types.OpInsert, UserID: "p7"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := refreshes.Load()
			bus.Publish(context.Background(), tt.event)
			bus.Wait()
			if tt.wantUp {
				assert.Equal(t, before+1, refreshes.Load())
			} else {
				assert.Equal(t, before, refreshes.Load())
			}
		})
	}
}

func TestTriggerFollowUpRefreshGetsFreshDeadline(t *testing.T) {
	bus := newBus()

	var mu sync.Mutex
	var errs []error
	var tr *Trigger
	tr = NewTrigger(bus, "a1", "d", func(ctx context.Context) {
		mu.Lock()
		errs = append(errs, ctx.Err())
		n := len(errs)
		mu.Unlock()

		if n < 3 {
			// another change lands while this refresh runs
			tr.fire(ctx)
			time.Sleep(30 * time.Millisecond)
		}
	}, zerolog.New(&bytes.Buffer{}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	tr.fire(ctx)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, errs, 3)
	for i, err := range errs {
		assert.NoError(t, err, "refresh %d", i)
	}
	assert.Error(t, ctx.Err())
}

func TestListenerHandlePublishesDecodedEvents(t *testing.T) {
	bus := newBus()
	l := NewListener(nil, "dailywin_changes", bus, zerolog.New(&bytes.Buffer{}))

	var mu sync.Mutex
	var got []types.ChangeEvent
	bus.Subscribe(types.TableQuotesSales, func(_ context.Context, e eventbus.Event) error {
		mu.Lock()
		got = append(got, e.(types.ChangeEvent))
		mu.Unlock()
		return nil
	})

	ctx := context.Background()
	l.Handle(ctx, []byte(`{"table":"quotes_sales","op":"insert","user_id":"p1"}`))
	l.Handle(ctx, []byte(`{"table":"agencies","op":"INSERT","user_id":"p1"}`))
	l.Handle(ctx, []byte(`not json`))
	bus.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, "p1", got[0].UserID)
	assert.Equal(t, types.OpInsert, got[0].Op)
	assert.False(t, got[0].ReceivedAt.IsZero())
}
