package storage

import (
	"context"
	"sync"
)

const subscriberBuffer = 32

// hub fans events out to subscribers; a slow subscriber drops events
type hub struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	next   int
	closed bool
}

func newHub() *hub {
	return &hub{subs: make(map[int]chan Event)}
}

func (h *hub) subscribe(ctx context.Context) (<-chan Event, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}

	ch := make(chan Event, subscriberBuffer)
	key := h.next
	h.next++
	h.subs[key] = ch

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[key]; ok {
			delete(h.subs, key)
			close(sub)
		}
	}()
	return ch, nil
}

func (h *hub) publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for key, ch := range h.subs {
		delete(h.subs, key)
		close(ch)
	}
}
