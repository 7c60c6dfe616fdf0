package realtime

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/dailywin/backend/internal/types"
	"github.com/dailywin/backend/pkg/eventbus"
	"github.com/rs/zerolog"
)

// Trigger runs a full refresh whenever a watched table changes for one of
// its producers, or a profile joins or leaves its agency. Events arriving
// while a refresh runs are coalesced into a single follow-up refresh.
type Trigger struct {
	bus      *eventbus.Bus
	agencyID string
	name     string
	refresh  func(ctx context.Context)
	logger   zerolog.Logger

	mu      sync.Mutex
	ids     map[string]struct{}
	key     string
	unsubs  []func()
	closed  bool
	running bool
	again   bool
}

// NewTrigger creates a trigger with no subscription
func NewTrigger(bus *eventbus.Bus, agencyID, name string, refresh func(ctx context.Context), logger zerolog.Logger) *Trigger {
	return &Trigger{
		bus:      bus,
		agencyID: agencyID,
		name:     name,
		refresh:  refresh,
		logger:   logger.With().Str("component", "realtime_trigger").Str("dashboard", name).Logger(),
	}
}

func setKey(ids []string) string {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

// SetProducers subscribes for the given producers. An identical set keeps the
// current subscription.
func (t *Trigger) SetProducers(ids []string) {
	key := setKey(ids)

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed || (t.unsubs != nil && key == t.key) {
		return
	}

	t.unsubscribeLocked()

	t.ids = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		t.ids[id] = struct{}{}
	}
	t.key = key

	t.unsubs = make([]func(), 0, len(types.WatchedTables))
	for _, table := range types.WatchedTables {
		t.unsubs = append(t.unsubs, t.bus.Subscribe(table, t.handle))
	}

	t.logger.Debug().Int("producers", len(ids)).Msg("realtime subscription replaced")
}

func (t *Trigger) handle(ctx context.Context, event eventbus.Event) error {
	change, ok := event.(types.ChangeEvent)
	if !ok {
		return nil
	}

	t.mu.Lock()
	_, watched := t.ids[change.UserID]
	closed := t.closed
	t.mu.Unlock()

	if closed {
		return nil
	}
	if change.Table == types.TableProfiles {
		if !watched && !change.TouchesAgency(t.agencyID) {
			return nil
		}
	} else if !watched && change.UserID != "" {
		// Deletes without a row owner still refresh
		return nil
	}

	t.fire(ctx)
	return nil
}

func (t *Trigger) fire(ctx context.Context) {
	t.mu.Lock()
	if t.running {
		t.again = true
		t.mu.Unlock()
		return
	}
	t.running = true
	t.mu.Unlock()

	for {
		t.refreshOnce(ctx)

		t.mu.Lock()
		if !t.again || t.closed {
			t.running = false
			t.again = false
			t.mu.Unlock()
			return
		}
		t.again = false
		t.mu.Unlock()
	}
}

// refreshOnce runs one refresh on its own deadline; batched follow-ups
// outlive the event that started them.
func (t *Trigger) refreshOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventbus.ListenerTimeout)
	defer cancel()
	t.refresh(ctx)
}

// Close removes the subscription; pending events are ignored
func (t *Trigger) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	t.unsubscribeLocked()
}

func (t *Trigger) unsubscribeLocked() {
	for _, unsub := range t.unsubs {
		unsub()
	}
	t.unsubs = nil
}
