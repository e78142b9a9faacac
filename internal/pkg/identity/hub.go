package identity

import "sync"

// Hub fans auth-state events out to the listeners registered for a session key.
type Hub struct {
	mu        sync.RWMutex
	nextID    uint64
	listeners map[string]map[uint64]Listener
}

func NewHub() *Hub {
	return &Hub{listeners: make(map[string]map[uint64]Listener)}
}

func (h *Hub) Subscribe(key string, fn Listener) *Subscription {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	if h.listeners[key] == nil {
		h.listeners[key] = make(map[uint64]Listener)
	}
	h.listeners[key][id] = fn
	h.mu.Unlock()

	return &Subscription{cancel: func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.listeners[key], id)
		if len(h.listeners[key]) == 0 {
			delete(h.listeners, key)
		}
	}}
}

// Publish calls listeners outside the lock so they may subscribe or unsubscribe.
func (h *Hub) Publish(key string, event Event, session *Session) {
	h.mu.RLock()
	fns := make([]Listener, 0, len(h.listeners[key]))
	for _, fn := range h.listeners[key] {
		fns = append(fns, fn)
	}
	h.mu.RUnlock()

	for _, fn := range fns {
		fn(event, session)
	}
}

// ListenerCount reports how many listeners are registered for key.
func (h *Hub) ListenerCount(key string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners[key])
}
