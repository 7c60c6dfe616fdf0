// Package eventbus is an in-process publish/subscribe bus keyed by event name.
package eventbus

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ListenerTimeout bounds how long a single listener may run for one event
const ListenerTimeout = 1 * time.Minute

// Event is anything with a routing name
type Event interface {
	Name() string
}

// Listener handles one event
type Listener func(ctx context.Context, event Event) error

type subscription struct {
	id       uint64
	listener Listener
}

// Bus fans events out to the listeners subscribed to their name
type Bus struct {
	mu        sync.RWMutex
	listeners map[string][]subscription
	nextID    uint64
	wg        sync.WaitGroup
	logger    zerolog.Logger
}

// New creates a new bus
func New(logger zerolog.Logger) *Bus {
	return &Bus{
		listeners: make(map[string][]subscription),
		logger:    logger,
	}
}

// Subscribe registers a listener for an event name and returns a func that removes it
func (b *Bus) Subscribe(name string, listener Listener) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.listeners[name] = append(b.listeners[name], subscription{id: id, listener: listener})

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(name, id) })
	}
}

func (b *Bus) remove(name string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.listeners[name]
	for i, s := range subs {
		if s.id == id {
			b.listeners[name] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.listeners[name]) == 0 {
		delete(b.listeners, name)
	}
}

// Publish delivers the event to every current listener, each on its own goroutine.
// Listener errors are logged.
func (b *Bus) Publish(ctx context.Context, event Event) {
	b.mu.RLock()
	subs := append([]subscription(nil), b.listeners[event.Name()]...)
	b.mu.RUnlock()

	for _, s := range subs {
		b.wg.Add(1)
		go func(l Listener) {
			defer b.wg.Done()

			lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ListenerTimeout)
			defer cancel()

			if err := l(lctx, event); err != nil {
				b.logger.Error().
					Err(err).
					Str("event", event.Name()).
					Msg("event listener failed")
			}
		}(s.listener)
	}
}

// ListenerCount returns how many listeners are subscribed to name
func (b *Bus) ListenerCount(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[name])
}

// Wait blocks until every listener started so far has returned
func (b *Bus) Wait() {
	b.wg.Wait()
}
