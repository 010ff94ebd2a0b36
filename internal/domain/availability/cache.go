package availability

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/jonboulle/clockwork"

	"github.com/GriffinCanCode/AgentOS/shell/internal/domain/toggle"
	"github.com/GriffinCanCode/AgentOS/shell/internal/providers/storage"
	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/types"
)

// CacheKey is the session storage key of the snapshot
const CacheKey = "mfe-availability-cache"

// DefaultTTL is how long a snapshot stays fresh
const DefaultTTL = 30 * time.Second

// Snapshot is one reconciled availability result
type Snapshot struct {
	Timestamp    int64              `json:"timestamp"` // unix milliseconds
	Available    []string           `json:"available"`
	Disabled     []string           `json:"disabled"`
	DisabledMode types.DisabledMode `json:"disabledMode"`
}

// Toggle returns the snapshot's toggle state
func (s Snapshot) Toggle() types.ToggleState {
	return types.ToggleState{
		Disabled:     append([]string{}, s.Disabled...),
		DisabledMode: s.DisabledMode.Clone(),
	}
}

// Cache stores snapshots in session storage
type Cache struct {
	store *storage.Tab
	ttl   time.Duration
	clock clockwork.Clock
}

// NewCache creates a cache; a zero ttl uses DefaultTTL
func NewCache(store *storage.Tab, ttl time.Duration, clock clockwork.Clock) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Cache{store: store, ttl: ttl, clock: clock}
}

// TTL returns the freshness window
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Load returns the snapshot if present, well-formed and fresh
func (c *Cache) Load(ctx context.Context) (Snapshot, bool) {
	raw, ok := c.store.Lookup(ctx, CacheKey)
	if !ok {
		return Snapshot{}, false
	}
	snap, ok := decode(raw)
	if !ok {
		return Snapshot{}, false
	}
	age := c.clock.Now().Sub(time.UnixMilli(snap.Timestamp))
	if age < 0 || age > c.ttl {
		return Snapshot{}, false
	}
	return snap, true
}

// Save stamps snap with the current time and stores it
func (c *Cache) Save(ctx context.Context, snap Snapshot) Snapshot {
	snap.Timestamp = c.clock.Now().UnixMilli()
	if raw, err := sonic.MarshalString(snap); err == nil {
		c.store.Store(ctx, CacheKey, raw)
	}
	return snap
}

// Clear removes the snapshot
func (c *Cache) Clear(ctx context.Context) {
	_ = c.store.Remove(ctx, CacheKey)
}

func decode(raw string) (Snapshot, bool) {
	var v map[string]interface{}
	if err := sonic.UnmarshalString(raw, &v); err != nil {
		return Snapshot{}, false
	}
	ts, ok := v["timestamp"].(float64)
	if !ok {
		return Snapshot{}, false
	}
	return Snapshot{
		Timestamp:    int64(ts),
		Available:    toggle.NamesValue(v["available"]),
		Disabled:     toggle.NamesValue(v["disabled"]),
		DisabledMode: toggle.ModeValue(v["disabledMode"]),
	}, true
}
