package sandbox

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type importMap map[string]string

func (m importMap) Resolve(specifier string) (string, bool) {
	url, ok := m[specifier]
	return url, ok
}

type sources struct {
	files map[string]string
	calls atomic.Int32
}

func (s *sources) fetch(_ context.Context, url string) (string, error) {
	s.calls.Add(1)
	src, ok := s.files[url]
	if !ok {
		return "", fmt.Errorf("404 %s", url)
	}
	return src, nil
}

func TestSystemImportLinksDependencies(t *testing.T) {
	src := &sources{files: map[string]string{
		"https://cdn.example/utils.js": `
			System.register([], function (_export) {
				return { execute: function () { _export('greet', function (n) { return 'hi ' + n; }); } };
			});`,
		"https://cdn.example/navbar.js": `
			System.register(['utils'], function (_export, _context) {
				var greet;
				return {
					setters: [function (m) { greet = m.greet; }],
					execute: function () {
						_export({
							url: _context.meta.url,
							mount: function () { return greet('navbar'); }
						});
					}
				};
			});`,
	}}
	resolver := importMap{
		"utils":  "https://cdn.example/utils.js",
		"navbar": "https://cdn.example/navbar.js",
	}

	w := newWindow(t, DefaultConfig())
	require.NoError(t, w.EnableSystem(resolver, src.fetch))
	assert.True(t, w.HasSystem())

	ctx := context.Background()
	ns, err := w.SystemImport(ctx, "navbar")
	require.NoError(t, err)

	var mount goja.Callable
	require.NoError(t, w.Do(ctx, func(vm *goja.Runtime) error {
		assert.Equal(t, "https://cdn.example/navbar.js", ns.Get("url").String())
		var ok bool
		mount, ok = goja.AssertFunction(ns.Get("mount"))
		require.True(t, ok)
		return nil
	}))

	v, err := w.Call(ctx, mount)
	require.NoError(t, err)
	assert.Equal(t, "hi navbar", v.String())

	again, err := w.SystemImport(ctx, "https://cdn.example/navbar.js")
	require.NoError(t, err)
	assert.Same(t, ns, again)
	assert.Equal(t, int32(2), src.calls.Load(), "each module is fetched once")
}

func TestSystemImportConcurrentCallsShareInstance(t *testing.T) {
	src := &sources{files: map[string]string{
		"https://cdn.example/a.js": `System.register([], function (e) { return { execute: function () { e('n', 1); } }; });`,
	}}
	w := newWindow(t, DefaultConfig())
	require.NoError(t, w.EnableSystem(importMap{"a": "https://cdn.example/a.js"}, src.fetch))

	var wg sync.WaitGroup
	results := make([]*goja.Object, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ns, err := w.SystemImport(context.Background(), "a")
			assert.NoError(t, err)
			results[i] = ns
		}(i)
	}
	wg.Wait()

	for _, ns := range results {
		assert.Same(t, results[0], ns)
	}
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestSystemImportErrors(t *testing.T) {
	src := &sources{files: map[string]string{
		"https://cdn.example/plain.js": `window.plain = true;`,
		"https://cdn.example/a.js":     `System.register(['b'], function () { return {}; });`,
		"https://cdn.example/b.js":     `System.register(['a'], function () { return {}; });`,
	}}
	resolver := importMap{
		"plain": "https://cdn.example/plain.js",
		"a":     "https://cdn.example/a.js",
		"b":     "https://cdn.example/b.js",
		"gone":  "https://cdn.example/gone.js",
	}

	w := newWindow(t, DefaultConfig())
	ctx := context.Background()

	_, err := w.SystemImport(ctx, "plain")
	assert.ErrorIs(t, err, ErrNoSystem)

	require.NoError(t, w.EnableSystem(resolver, src.fetch))

	_, err = w.SystemImport(ctx, "unknown")
	assert.ErrorIs(t, err, ErrModuleNotFound)

	_, err = w.SystemImport(ctx, "plain")
	assert.ErrorIs(t, err, ErrNoRegistration)

	_, err = w.SystemImport(ctx, "gone")
	assert.ErrorContains(t, err, "404")

	_, err = w.SystemImport(ctx, "a")
	assert.ErrorContains(t, err, "circular dependency")
}

func TestSystemImportResolvesRelativeDependencies(t *testing.T) {
	src := &sources{files: map[string]string{
		"https://cdn.example/app/main.js": `
			System.register(['./chunk.js', '../shared/util.js', '/root.js'], function (_export) {
				var parts = [];
				function keep(m) { parts.push(m.name); }
				return {
					setters: [keep, keep, keep],
					execute: function () { _export('parts', parts.join(',')); }
				};
			});`,
		"https://cdn.example/app/chunk.js":   `System.register([], function (e) { return { execute: function () { e('name', 'chunk'); } }; });`,
		"https://cdn.example/shared/util.js": `System.register([], function (e) { return { execute: function () { e('name', 'util'); } }; });`,
		"https://cdn.example/root.js":        `System.register([], function (e) { return { execute: function () { e('name', 'root'); } }; });`,
	}}

	w := newWindow(t, DefaultConfig())
	require.NoError(t, w.EnableSystem(importMap{"app": "https://cdn.example/app/main.js"}, src.fetch))

	ctx := context.Background()
	ns, err := w.SystemImport(ctx, "app")
	require.NoError(t, err)
	require.NoError(t, w.Do(ctx, func(*goja.Runtime) error {
		assert.Equal(t, "chunk,util,root", ns.Get("parts").String())
		return nil
	}))

	chunk, err := w.SystemImport(ctx, "https://cdn.example/app/chunk.js")
	require.NoError(t, err)
	require.NoError(t, w.Do(ctx, func(*goja.Runtime) error {
		assert.Equal(t, "chunk", chunk.Get("name").String())
		return nil
	}))
	assert.Equal(t, int32(4), src.calls.Load(), "relative imports share the absolute URL's instance")

	v, err := w.Eval(ctx, `System.resolve('./chunk.js', 'https://cdn.example/app/main.js')`)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/app/chunk.js", v)
}

func TestSystemImportCycleAcrossConcurrentImports(t *testing.T) {
	src := &sources{files: map[string]string{
		"https://cdn.example/left.js":  `System.register(['right'], function () { return {}; });`,
		"https://cdn.example/right.js": `System.register(['left'], function () { return {}; });`,
	}}
	resolver := importMap{
		"left":  "https://cdn.example/left.js",
		"right": "https://cdn.example/right.js",
	}

	w := newWindow(t, DefaultConfig())
	require.NoError(t, w.EnableSystem(resolver, src.fetch))

	errs := make(chan error, 2)
	for _, name := range []string{"left", "right"} {
		go func(name string) {
			_, err := w.SystemImport(context.Background(), name)
			errs <- err
		}(name)
	}

	for i := 0; i < 2; i++ {
		select {
		case err := <-errs:
			assert.ErrorIs(t, err, ErrCircularImport)
		case <-time.After(5 * time.Second):
			t.Fatal("concurrent imports with a cross dependency did not finish")
		}
	}
}

func TestSystemImportCallerCancelDoesNotFailSharedLoad(t *testing.T) {
	release := make(chan struct{})
	fetch := func(ctx context.Context, url string) (string, error) {
		select {
		case <-release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
		return `System.register([], function (e) { return { execute: function () { e('ok', true); } }; });`, nil
	}

	w := newWindow(t, DefaultConfig())
	require.NoError(t, w.EnableSystem(importMap{"slow": "https://cdn.example/slow.js"}, fetch))

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := w.SystemImport(ctx, "slow")
		first <- err
	}()

	second := make(chan *goja.Object, 1)
	go func() {
		ns, err := w.SystemImport(context.Background(), "slow")
		assert.NoError(t, err)
		second <- ns
	}()

	cancel()
	assert.ErrorIs(t, <-first, context.Canceled)
	close(release)

	select {
	case ns := <-second:
		require.NotNil(t, ns)
	case <-time.After(5 * time.Second):
		t.Fatal("shared load did not finish")
	}
}
