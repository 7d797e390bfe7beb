package bus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

const (
	// DefaultHistorySize is the number of recent events retained for
	// replay to late subscribers.
	DefaultHistorySize = 100

	// DefaultChannelBuffer is the buffer size for subscriber channels.
	// A slow subscriber drops events rather than blocking publishers.
	DefaultChannelBuffer = 64
)

// SubscriptionID identifies one subscription.
type SubscriptionID string

type subscription struct {
	id        SubscriptionID
	eventType EventType
	handler   func(Event)
	ch        chan Event
	done      chan struct{}
}

// Bus is a thread-safe pub/sub hub with typed and wildcard
// subscriptions and a bounded event history.
type Bus struct {
	mu         sync.RWMutex
	subs       map[SubscriptionID]*subscription
	typed      map[EventType]map[SubscriptionID]*subscription
	wildcard   map[SubscriptionID]*subscription
	subCounter uint64

	historyMu   sync.RWMutex
	history     []Event
	historySize int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool
}

// New creates a bus with the default history size.
func New() *Bus {
	return NewWithHistory(DefaultHistorySize)
}

// NewWithHistory creates a bus retaining the given number of events.
func NewWithHistory(historySize int) *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		subs:        make(map[SubscriptionID]*subscription),
		typed:       make(map[EventType]map[SubscriptionID]*subscription),
		wildcard:    make(map[SubscriptionID]*subscription),
		history:     make([]Event, 0, historySize),
		historySize: historySize,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Subscribe registers a handler for one event type. The empty type
// subscribes to every event. The handler runs on its own goroutine.
func (b *Bus) Subscribe(eventType EventType, handler func(Event)) SubscriptionID {
	if b.closed.Load() {
		return ""
	}

	b.mu.Lock()
	b.subCounter++
	id := SubscriptionID(fmt.Sprintf("sub_%d", b.subCounter))
	sub := &subscription{
		id:        id,
		eventType: eventType,
		handler:   handler,
		ch:        make(chan Event, DefaultChannelBuffer),
		done:      make(chan struct{}),
	}
	b.subs[id] = sub
	if eventType == "" {
		b.wildcard[id] = sub
	} else {
		if b.typed[eventType] == nil {
			b.typed[eventType] = make(map[SubscriptionID]*subscription)
		}
		b.typed[eventType][id] = sub
	}
	b.mu.Unlock()

	b.wg.Add(1)
	go b.run(sub)
	return id
}

func (b *Bus) run(sub *subscription) {
	defer b.wg.Done()
	for {
		select {
		case ev := <-sub.ch:
			sub.handler(ev)
		case <-sub.done:
			return
		case <-b.ctx.Done():
			return
		}
	}
}

// Unsubscribe removes a subscription.
func (b *Bus) Unsubscribe(id SubscriptionID) error {
	if b.closed.Load() {
		return fmt.Errorf("bus is closed")
	}

	b.mu.Lock()
	sub, ok := b.subs[id]
	if !ok {
		b.mu.Unlock()
		return fmt.Errorf("subscription %s not found", id)
	}
	delete(b.subs, id)
	if sub.eventType == "" {
		delete(b.wildcard, id)
	} else if typed, ok := b.typed[sub.eventType]; ok {
		delete(typed, id)
		if len(typed) == 0 {
			delete(b.typed, sub.eventType)
		}
	}
	b.mu.Unlock()

	close(sub.done)
	return nil
}

// Publish delivers an event to every matching subscriber. Subscribers
// whose channel is full miss the event.
func (b *Bus) Publish(ev Event) error {
	if b.closed.Load() {
		return fmt.Errorf("bus is closed")
	}

	b.addToHistory(ev)

	b.mu.RLock()
	for _, sub := range b.wildcard {
		select {
		case sub.ch <- ev:
		default:
		}
	}
	for _, sub := range b.typed[ev.Type] {
		select {
		case sub.ch <- ev:
		default:
		}
	}
	b.mu.RUnlock()
	return nil
}

func (b *Bus) addToHistory(ev Event) {
	b.historyMu.Lock()
	defer b.historyMu.Unlock()
	b.history = append(b.history, ev)
	if len(b.history) > b.historySize {
		b.history = b.history[len(b.history)-b.historySize:]
	}
}

// History returns a copy of the retained event history.
func (b *Bus) History() []Event {
	b.historyMu.RLock()
	defer b.historyMu.RUnlock()
	out := make([]Event, len(b.history))
	copy(out, b.history)
	return out
}

// SubscriptionsCount returns the number of active subscriptions.
func (b *Bus) SubscriptionsCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close stops delivery and tears down all subscriptions.
func (b *Bus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("bus already closed")
	}
	b.cancel()
	b.wg.Wait()

	b.mu.Lock()
	b.subs = make(map[SubscriptionID]*subscription)
	b.typed = make(map[EventType]map[SubscriptionID]*subscription)
	b.wildcard = make(map[SubscriptionID]*subscription)
	b.mu.Unlock()
	return nil
}
