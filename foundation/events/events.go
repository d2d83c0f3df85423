// Package events fans node activity messages out to connected viewers.
package events

import "sync"

// Viewers that fall behind lose messages rather than stall the node, so
// the channel buffer only needs to absorb a slow websocket write.
const subscriberDepth = 100

// Hub broadcasts node event messages to every subscribed viewer.
type Hub struct {
	mu   sync.Mutex
	subs map[string]chan string
}

// New constructs a hub for broadcasting node events.
func New() *Hub {
	return &Hub{
		subs: make(map[string]chan string),
	}
}

// Subscribe registers the viewer under the specified id and returns the
// channel its messages are delivered on. Subscribing an id twice returns
// the channel already registered for it.
func (h *Hub) Subscribe(id string) chan string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, exists := h.subs[id]; exists {
		return ch
	}

	ch := make(chan string, subscriberDepth)
	h.subs[id] = ch

	return ch
}

// Unsubscribe removes the viewer and closes its channel. Unknown ids are a
// no-op so teardown paths can call this unconditionally.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, exists := h.subs[id]; exists {
		delete(h.subs, id)
		close(ch)
	}
}

// Publish delivers the message to every subscriber without blocking. A
// subscriber with a full buffer misses this message.
func (h *Hub) Publish(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Shutdown closes and removes every subscriber channel.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
