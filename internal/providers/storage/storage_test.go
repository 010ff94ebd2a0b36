package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/id"
)

func backends(t *testing.T) map[string]Backend {
	t.Helper()

	file, err := NewFile(t.TempDir())
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return map[string]Backend{
		"memory": NewMemory(),
		"file":   file,
		"redis":  NewRedis(rdb, "", nil),
	}
}

func TestBackendReadWrite(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			tab := id.NewTabID()

			_, ok, err := b.Get(ctx, "mfe-disabled")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, b.Set(ctx, "mfe-disabled", `["orders"]`, tab))
			require.NoError(t, b.Set(ctx, "mfe-disabled-mode", `"hide"`, tab))

			v, ok, err := b.Get(ctx, "mfe-disabled")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, `["orders"]`, v)

			keys, err := b.Keys(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"mfe-disabled", "mfe-disabled-mode"}, keys)

			require.NoError(t, b.Remove(ctx, "mfe-disabled", tab))
			require.NoError(t, b.Remove(ctx, "never-set", tab))
			_, ok, err = b.Get(ctx, "mfe-disabled")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestTabEventsExcludeOwnWrites(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			tabA := ForTab(b, id.NewTabID(), nil)
			tabB := ForTab(b, id.NewTabID(), nil)

			eventsA, err := tabA.Events(ctx)
			require.NoError(t, err)
			eventsB, err := tabB.Events(ctx)
			require.NoError(t, err)

			require.NoError(t, tabA.Set(ctx, "mfe-disabled", `["billing"]`))

			select {
			case ev := <-eventsB:
				assert.Equal(t, "mfe-disabled", ev.Key)
				assert.Equal(t, `["billing"]`, ev.Value)
				assert.Equal(t, tabA.ID(), ev.Source)
			case <-time.After(2 * time.Second):
				t.Fatal("tab B did not observe tab A's write")
			}

			select {
			case ev := <-eventsA:
				t.Fatalf("tab A observed its own write: %+v", ev)
			case <-time.After(50 * time.Millisecond):
			}
		})
	}
}

func TestTabLookupSwallowsErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()

	tab := ForTab(NewRedis(rdb, "", nil), id.NewTabID(), nil)
	mr.Close()

	ctx := context.Background()
	_, ok := tab.Lookup(ctx, "mfe-disabled")
	assert.False(t, ok)
	assert.NotPanics(t, func() { tab.Store(ctx, "mfe-disabled", "[]") })
}

func TestSubscriptionEndsWithContext(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := m.Subscribe(ctx)
	require.NoError(t, err)
	cancel()

	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, m.Close())
	_, err = m.Subscribe(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}
