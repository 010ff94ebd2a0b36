package crosstab

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/shell/internal/domain/toggle"
	"github.com/GriffinCanCode/AgentOS/shell/internal/providers/broadcast"
	"github.com/GriffinCanCode/AgentOS/shell/internal/providers/storage"
	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/types"
)

type reloadLog struct {
	mu      sync.Mutex
	reasons []string
}

func (r *reloadLog) Reload(reason string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reasons = append(r.reasons, reason)
	return true
}

func (r *reloadLog) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.reasons...)
}

type tab struct {
	sync    *Sync
	store   *storage.Tab
	reloads *reloadLog
}

func newTab(t *testing.T, ctx context.Context, hub broadcast.Bus, backend storage.Backend) *tab {
	t.Helper()
	tabID := id.NewTabID()
	store := storage.ForTab(backend, tabID, nil)
	reloads := &reloadLog{}
	s := New(broadcast.Open(hub, ChannelName, tabID), store, reloads, nil, nil)
	require.NoError(t, s.Listen(ctx))
	return &tab{sync: s, store: store, reloads: reloads}
}

func setup(t *testing.T) (context.Context, *tab, *tab) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := broadcast.NewHub()
	backend := storage.NewMemory()
	a := newTab(t, ctx, hub, backend)
	b := newTab(t, ctx, hub, backend)
	t.Cleanup(func() {
		cancel()
		a.sync.Wait()
		b.sync.Wait()
		_ = hub.Close()
		_ = backend.Close()
	})
	return ctx, a, b
}

func TestBroadcastReloadsOtherTabOnly(t *testing.T) {
	ctx, a, b := setup(t)

	require.NoError(t, a.sync.AnnounceToggle(ctx, types.ToggleState{Disabled: []string{"@org/foo"}}))

	require.Eventually(t, func() bool { return len(b.reloads.all()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{ReasonBroadcast}, b.reloads.all())
	assert.Never(t, func() bool { return len(a.reloads.all()) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestModeMessageReloads(t *testing.T) {
	ctx, a, b := setup(t)

	require.NoError(t, b.sync.AnnounceMode(ctx, "@org/foo", types.ModeHide))

	require.Eventually(t, func() bool { return len(a.reloads.all()) == 1 }, time.Second, time.Millisecond)
	assert.Empty(t, b.reloads.all())
}

func TestStorageChangeReloadsOtherTab(t *testing.T) {
	ctx, a, b := setup(t)

	a.store.Store(ctx, "unrelated-key", "1")
	a.store.Store(ctx, toggle.KeyDisabled, `["@org/foo"]`)

	require.Eventually(t, func() bool { return len(b.reloads.all()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{ReasonStorage}, b.reloads.all())
	assert.Empty(t, a.reloads.all())
}

func TestDecode(t *testing.T) {
	m, ok := Decode([]byte(`{"type":"mfe-toggle","disabled":["b","a",3],"disabledMode":"hide"}`))
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, m.Disabled)
	assert.Equal(t, types.ModeHide, m.DisabledMode.Default)

	m, ok = Decode([]byte(`{"type":"mfe-disabled-mode","app":"@org/foo","mode":"placeholder"}`))
	require.True(t, ok)
	assert.Equal(t, ModeMessage("@org/foo", types.ModePlaceholder), m)

	for _, raw := range []string{
		`{"type":"mfe-disabled-mode","app":"@org/foo","mode":"blink"}`,
		`{"type":"mfe-disabled-mode","mode":"hide"}`,
		`{"type":"theme","dark":true}`,
		`["mfe-toggle"]`,
		`garbage`,
	} {
		_, ok := Decode([]byte(raw))
		assert.False(t, ok, raw)
	}
}

func TestEncodeToggleShape(t *testing.T) {
	data, err := Encode(ToggleMessage(types.ToggleState{}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"mfe-toggle","disabled":[],"disabledMode":{}}`, string(data))
}

func TestAllowedOrigin(t *testing.T) {
	tests := []struct {
		origin, current string
		want            bool
	}{
		{"https://shell.example.com", "https://shell.example.com/catalog", true},
		{"https://evil.example.com", "https://shell.example.com", false},
		{"http://shell.example.com", "https://shell.example.com", false},
		{"http://localhost:9001", "http://localhost:9000/", true},
		{"http://127.0.0.1:5173", "http://localhost:9000", true},
		{"http://[::1]:3000", "http://127.0.0.1:9000", true},
		{"http://localhost:9001", "https://shell.example.com", false},
		{"https://shell.example.com", "http://localhost:9000", false},
		{"http://localhost.evil.com", "http://localhost:9000", false},
		{"", "http://localhost:9000", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AllowedOrigin(tt.origin, tt.current), "%s from %s", tt.origin, tt.current)
	}
}
