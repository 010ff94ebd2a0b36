package broadcast

import (
	"context"
	"sync"
)

const subscriberBuffer = 32

// Hub is an in-process Bus shared by the tabs of one process
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[int]chan Message
	next   int
	closed bool
}

// NewHub creates an in-process bus
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[int]chan Message)}
}

func (h *Hub) Publish(_ context.Context, msg Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	for _, ch := range h.subs[msg.Channel] {
		select {
		case ch <- msg:
		default:
		}
	}
	return nil
}

func (h *Hub) Subscribe(ctx context.Context, channel string) (<-chan Message, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}

	ch := make(chan Message, subscriberBuffer)
	key := h.next
	h.next++
	if h.subs[channel] == nil {
		h.subs[channel] = make(map[int]chan Message)
	}
	h.subs[channel][key] = ch

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[channel][key]; ok {
			delete(h.subs[channel], key)
			close(sub)
		}
	}()
	return ch, nil
}

func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for name, subs := range h.subs {
		for key, ch := range subs {
			delete(subs, key)
			close(ch)
		}
		delete(h.subs, name)
	}
	return nil
}
