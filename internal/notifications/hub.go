package notifications

import (
	"context"
	"sync"

	"hushfeed/internal/models"
)

// listenerBuffer is how many events a slow listener may fall behind before
// new ones are dropped for it.
const listenerBuffer = 16

// CounterHub fans counter events received from redis out to local
// listeners, keyed by item.
type CounterHub struct {
	mu        sync.RWMutex
	listeners map[models.ItemRef]map[chan models.CounterEvent]struct{}
	closed    bool
}

// NewCounterHub creates an empty hub.
func NewCounterHub() *CounterHub {
	return &CounterHub{listeners: make(map[models.ItemRef]map[chan models.CounterEvent]struct{})}
}

// Subscribe registers a listener for ref. The returned func removes it and
// closes the channel; it is safe to call more than once. Subscribing to a
// closed hub yields an already closed channel.
func (h *CounterHub) Subscribe(ref models.ItemRef) (<-chan models.CounterEvent, func()) {
	ch := make(chan models.CounterEvent, listenerBuffer)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	if h.listeners[ref] == nil {
		h.listeners[ref] = make(map[chan models.CounterEvent]struct{})
	}
	h.listeners[ref][ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() { h.remove(ref, ch) })
	}
}

func (h *CounterHub) remove(ref models.ItemRef, ch chan models.CounterEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.listeners[ref]
	if !ok {
		return
	}
	if _, ok := set[ch]; !ok {
		return
	}
	delete(set, ch)
	if len(set) == 0 {
		delete(h.listeners, ref)
	}
	close(ch)
}

// Broadcast delivers event to every listener of its item. Listeners whose
// buffer is full miss the event.
func (h *CounterHub) Broadcast(event models.CounterEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.listeners[event.Item] {
		select {
		case ch <- event:
		default:
		}
	}
}

// Listeners reports how many listeners ref has.
func (h *CounterHub) Listeners(ref models.ItemRef) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners[ref])
}

// Close closes every listener channel and refuses new ones.
func (h *CounterHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ref, set := range h.listeners {
		for ch := range set {
			close(ch)
		}
		delete(h.listeners, ref)
	}
}

// StartWiring feeds the hub from n's item channels until ctx is done.
func (h *CounterHub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartCounterSubscriber(ctx, h.Broadcast)
}
