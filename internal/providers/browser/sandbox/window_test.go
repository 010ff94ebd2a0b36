package sandbox

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWindow(t *testing.T, cfg Config) *Window {
	t.Helper()
	dom, err := ParseDocument(strings.NewReader(shellHTML))
	require.NoError(t, err)
	w, err := New(cfg, dom, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func TestWindowGlobalScope(t *testing.T) {
	w := newWindow(t, DefaultConfig())
	ctx := context.Background()

	tests := []struct {
		name   string
		script string
		want   interface{}
	}{
		{"window is global", "var x = 1; window.x", int64(1)},
		{"self is global", "self === window", true},
		{"no commonjs exports", "typeof exports", "undefined"},
		{"no require", "typeof require", "undefined"},
		{"document lookup", "document.getElementById('app-navbar').tagName", "DIV"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := w.Eval(ctx, tt.script)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWindowExecAndLookup(t *testing.T) {
	w := newWindow(t, DefaultConfig())

	err := w.Exec(context.Background(), `window.navbar = { mount: function () {} };`, "navbar.js")
	require.NoError(t, err)

	v, err := w.Lookup("navbar")
	require.NoError(t, err)
	assert.NotNil(t, v)

	_, err = w.Lookup("orders")
	assert.ErrorIs(t, err, ErrGlobalNotFound)
}

func TestWindowExecError(t *testing.T) {
	w := newWindow(t, DefaultConfig())

	err := w.Exec(context.Background(), `throw new Error("boom")`, "bad.js")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.js")
}

func TestWindowTimeout(t *testing.T) {
	w := newWindow(t, Config{Timeout: 50 * time.Millisecond})

	err := w.Exec(context.Background(), `while (true) {}`, "spin.js")
	assert.ErrorIs(t, err, ErrTimeout)

	// The interrupt must not leak into the next call
	got, err := w.Eval(context.Background(), "1 + 1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got)
}

func TestWindowCallSettlesPromises(t *testing.T) {
	w := newWindow(t, DefaultConfig())
	ctx := context.Background()

	require.NoError(t, w.Exec(ctx, `
		window.ok = async function (props) { return props.name; };
		window.bad = async function () { throw new Error("mount failed"); };
		window.never = function () { return new Promise(function () {}); };
	`, "lifecycles.js"))

	callable := func(name string) goja.Callable {
		v, err := w.Lookup(name)
		require.NoError(t, err)
		fn, ok := goja.AssertFunction(v)
		require.True(t, ok)
		return fn
	}

	v, err := w.Call(ctx, callable("ok"), map[string]interface{}{"name": "navbar"})
	require.NoError(t, err)
	assert.Equal(t, "navbar", v.String())

	_, err = w.Call(ctx, callable("bad"))
	var rejection *RejectionError
	require.ErrorAs(t, err, &rejection)
	assert.Equal(t, "mount failed", rejection.Reason)

	_, err = w.Call(ctx, callable("never"))
	assert.ErrorIs(t, err, ErrPending)
}

func TestWindowConsoleAndDocumentMutation(t *testing.T) {
	w := newWindow(t, DefaultConfig())

	_, err := w.Eval(context.Background(), `
		console.log('mounted', 1);
		console.warn('careful');
		document.getElementById('app-orders').textContent = 'Orders';
	`)
	require.NoError(t, err)

	logs := w.Console()
	require.Len(t, logs, 2)
	assert.Equal(t, "log", logs[0].Level)
	assert.Equal(t, "mounted 1", logs[0].Message)
	assert.Equal(t, "warn", logs[1].Level)

	slot := w.DOM().Query("#app-orders")[0]
	assert.Equal(t, "Orders", w.DOM().Text(slot))
}

func TestWindowClosed(t *testing.T) {
	w := newWindow(t, DefaultConfig())
	require.NoError(t, w.Close())

	assert.ErrorIs(t, w.Exec(context.Background(), "1", "x.js"), ErrClosed)
}
