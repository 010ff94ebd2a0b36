package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/id"
)

// Memory is an in-process Backend
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
	hub  *hub
}

// NewMemory creates an empty in-process backend
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string), hub: newHub()}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string, source id.TabID) error {
	m.mu.Lock()
	m.data[key] = value
	m.mu.Unlock()

	m.hub.publish(Event{Key: key, Value: value, Source: source})
	return nil
}

func (m *Memory) Remove(_ context.Context, key string, source id.TabID) error {
	m.mu.Lock()
	_, existed := m.data[key]
	delete(m.data, key)
	m.mu.Unlock()

	if existed {
		m.hub.publish(Event{Key: key, Removed: true, Source: source})
	}
	return nil
}

func (m *Memory) Keys(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *Memory) Subscribe(ctx context.Context) (<-chan Event, error) {
	return m.hub.subscribe(ctx)
}

func (m *Memory) Close() error {
	m.hub.close()
	return nil
}
