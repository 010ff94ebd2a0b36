package shell

import (
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/types"
	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/utils"
)

const defaultSubscriberBuffer = 32

// Bus fans shell events out to UI subscribers. An event identical to the
// last published event of the same type is dropped.
type Bus struct {
	mu     sync.RWMutex
	last   map[types.EventType]types.Event // Protected by mu
	hashes map[types.EventType]uint64      // Protected by mu
	subs   map[uint64]chan types.Event     // Protected by mu
	next   uint64                          // Protected by mu

	hasher *utils.Hasher
	logger *zap.Logger
}

// NewBus creates an event bus
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		last:   make(map[types.EventType]types.Event),
		hashes: make(map[types.EventType]uint64),
		subs:   make(map[uint64]chan types.Event),
		hasher: utils.DefaultHasher(),
		logger: logger,
	}
}

// Publish delivers ev to every subscriber. Slow subscribers miss events
// rather than block the publisher.
func (b *Bus) Publish(ev types.Event) {
	hash, err := b.hasher.HashJSON(ev)
	if err != nil {
		b.logger.Warn("Dropping unhashable event", zap.String("type", string(ev.Type)), zap.Error(err))
		return
	}

	b.mu.Lock()
	if prev, ok := b.hashes[ev.Type]; ok && prev == hash {
		b.mu.Unlock()
		return
	}
	b.hashes[ev.Type] = hash
	b.last[ev.Type] = ev
	subs := make([]chan types.Event, 0, len(b.subs))
	for _, ch := range b.subs {
		subs = append(subs, ch)
	}
	b.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
			b.logger.Debug("Subscriber buffer full, event dropped", zap.String("type", string(ev.Type)))
		}
	}
}

// Subscribe returns a channel of events and a cancel func that closes it
func (b *Bus) Subscribe(buffer int) (<-chan types.Event, func()) {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	ch := make(chan types.Event, buffer)

	b.mu.Lock()
	key := b.next
	b.next++
	b.subs[key] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, key)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Last returns the most recent event of type t
func (b *Bus) Last(t types.EventType) (types.Event, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ev, ok := b.last[t]
	return ev, ok
}

// Reset forgets the last events so a new page generation republishes
func (b *Bus) Reset() {
	b.mu.Lock()
	clear(b.last)
	clear(b.hashes)
	b.mu.Unlock()
}
