package sandbox

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/dop251/goja"
)

// registration is one System.register call captured during script execution
type registration struct {
	deps    []string
	declare goja.Callable
}

// flight is one module being fetched, executed and linked. blockedOn is
// the flight it currently waits for; the chain of blockedOn links is the
// wait-for graph used to reject cycles spanning concurrent imports.
type flight struct {
	url       string
	done      chan struct{}
	ns        *goja.Object
	err       error
	blockedOn *flight // Protected by system.mu
}

// system is the legacy-registration module host
type system struct {
	resolver Resolver
	fetch    Fetcher

	mu      sync.Mutex
	modules map[string]*goja.Object
	flights map[string]*flight

	// written by System.register while the window lock is held
	pending []registration
}

// EnableSystem installs the System.register host. Specifiers are resolved
// through resolver and sources retrieved with fetch.
func (w *Window) EnableSystem(resolver Resolver, fetch Fetcher) error {
	sys := &system{
		resolver: resolver,
		fetch:    fetch,
		modules:  make(map[string]*goja.Object),
		flights:  make(map[string]*flight),
	}

	return w.run(context.Background(), func() error {
		obj := w.vm.NewObject()
		if err := obj.Set("register", sys.register(w.vm)); err != nil {
			return err
		}
		if err := obj.Set("resolve", func(specifier string, parent goja.Value) goja.Value {
			base := ""
			if parent != nil && !goja.IsUndefined(parent) && !goja.IsNull(parent) {
				base = parent.String()
			}
			if url, ok := sys.resolve(specifier, base); ok {
				return w.vm.ToValue(url)
			}
			return goja.Null()
		}); err != nil {
			return err
		}
		w.system = sys
		return w.vm.GlobalObject().Set("System", obj)
	})
}

// HasSystem reports whether a System host is installed
func (w *Window) HasSystem() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.system != nil
}

// SystemImport resolves, fetches, executes and links a registered module,
// returning its namespace object. Each URL is instantiated once; callers
// importing the same URL concurrently share one flight, and a caller whose
// ctx ends stops waiting without failing the others.
func (w *Window) SystemImport(ctx context.Context, specifier string) (*goja.Object, error) {
	w.mu.Lock()
	sys := w.system
	w.mu.Unlock()
	if sys == nil {
		return nil, ErrNoSystem
	}
	return w.importModule(ctx, sys, specifier, nil)
}

// importModule resolves specifier relative to the importing flight (nil for
// a top-level import), then joins or starts the flight for its URL
func (w *Window) importModule(ctx context.Context, sys *system, specifier string, from *flight) (*goja.Object, error) {
	parent := ""
	if from != nil {
		parent = from.url
	}
	url, ok := sys.resolve(specifier, parent)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, specifier)
	}

	sys.mu.Lock()
	if ns := sys.modules[url]; ns != nil {
		sys.mu.Unlock()
		return ns, nil
	}
	f, running := sys.flights[url]
	if running && from != nil && f.waitsFor(from) {
		sys.mu.Unlock()
		return nil, fmt.Errorf("%w: %s -> %s", ErrCircularImport, from.url, url)
	}
	if !running {
		f = &flight{url: url, done: make(chan struct{})}
		sys.flights[url] = f
		go w.fly(context.WithoutCancel(ctx), sys, f)
	}
	if from != nil {
		from.blockedOn = f
	}
	sys.mu.Unlock()

	if from != nil {
		defer func() {
			sys.mu.Lock()
			from.blockedOn = nil
			sys.mu.Unlock()
		}()
	}

	select {
	case <-f.done:
		return f.ns, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// waitsFor reports whether f is, directly or through the flights it waits
// on, blocked on target; must be called with system.mu held
func (f *flight) waitsFor(target *flight) bool {
	for cur := f; cur != nil; cur = cur.blockedOn {
		if cur == target {
			return true
		}
	}
	return false
}

// fly instantiates f and publishes the result. A failed module is not
// cached, so a later import retries it.
func (w *Window) fly(ctx context.Context, sys *system, f *flight) {
	ns, err := w.instantiate(ctx, sys, f)

	sys.mu.Lock()
	if err == nil {
		sys.modules[f.url] = ns
	}
	delete(sys.flights, f.url)
	f.ns, f.err = ns, err
	sys.mu.Unlock()
	close(f.done)
}

func (w *Window) instantiate(ctx context.Context, sys *system, f *flight) (*goja.Object, error) {
	url := f.url
	source, err := sys.fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}

	var reg registration
	err = w.run(ctx, func() error {
		sys.pending = nil
		if _, err := w.vm.RunScript(url, source); err != nil {
			return fmt.Errorf("execute %s: %w", url, err)
		}
		if len(sys.pending) == 0 {
			return fmt.Errorf("%w: %s", ErrNoRegistration, url)
		}
		reg = sys.pending[len(sys.pending)-1]
		sys.pending = nil
		return nil
	})
	if err != nil {
		return nil, err
	}

	deps := make([]*goja.Object, len(reg.deps))
	for i, dep := range reg.deps {
		if deps[i], err = w.importModule(ctx, sys, dep, f); err != nil {
			return nil, fmt.Errorf("dependency %s of %s: %w", dep, url, err)
		}
	}

	var ns *goja.Object
	err = w.run(ctx, func() error {
		var err error
		ns, err = w.link(url, reg, deps)
		return err
	})
	return ns, err
}

// link runs declare, feeds dependency namespaces to the setters and
// executes the module body; must be called with mu held
func (w *Window) link(url string, reg registration, deps []*goja.Object) (*goja.Object, error) {
	vm := w.vm
	ns := vm.NewObject()

	export := func(call goja.FunctionCall) goja.Value {
		if obj, ok := call.Argument(0).(*goja.Object); ok && len(call.Arguments) == 1 {
			for _, key := range obj.Keys() {
				_ = ns.Set(key, obj.Get(key))
			}
			return obj
		}
		value := call.Argument(1)
		_ = ns.Set(call.Argument(0).String(), value)
		return value
	}

	meta := vm.NewObject()
	_ = meta.Set("url", url)
	moduleCtx := vm.NewObject()
	_ = moduleCtx.Set("meta", meta)

	declared, err := reg.declare(goja.Undefined(), vm.ToValue(export), moduleCtx)
	if err != nil {
		return nil, fmt.Errorf("declare %s: %w", url, err)
	}
	decl, ok := declared.(*goja.Object)
	if !ok {
		return ns, nil
	}

	if setters, ok := decl.Get("setters").(*goja.Object); ok {
		n := int(setters.Get("length").ToInteger())
		for i := 0; i < n && i < len(deps); i++ {
			setter, ok := goja.AssertFunction(setters.Get(strconv.Itoa(i)))
			if !ok {
				continue
			}
			if _, err := setter(goja.Undefined(), deps[i]); err != nil {
				return nil, fmt.Errorf("link %s: %w", url, err)
			}
		}
	}

	if execute, ok := goja.AssertFunction(decl.Get("execute")); ok {
		v, err := execute(goja.Undefined())
		if err != nil {
			return nil, fmt.Errorf("evaluate %s: %w", url, err)
		}
		if _, err := w.settle(v); err != nil {
			return nil, fmt.Errorf("evaluate %s: %w", url, err)
		}
	}
	return ns, nil
}

// register implements System.register([name,] deps, declare)
func (s *system) register(vm *goja.Runtime) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		args := call.Arguments
		if len(args) == 3 {
			args = args[1:]
		}
		if len(args) < 2 {
			panic(vm.NewTypeError("System.register expects (deps, declare)"))
		}
		declare, ok := goja.AssertFunction(args[1])
		if !ok {
			panic(vm.NewTypeError("System.register declare must be a function"))
		}

		var deps []string
		if arr, ok := args[0].Export().([]interface{}); ok {
			for _, d := range arr {
				deps = append(deps, fmt.Sprint(d))
			}
		}
		s.pending = append(s.pending, registration{deps: deps, declare: declare})
		return goja.Undefined()
	}
}

// resolve maps a specifier to a URL. Relative (./, ../) and root-relative
// (/) specifiers resolve against parent, the importing module's URL; bare
// specifiers go through the import map.
func (s *system) resolve(specifier, parent string) (string, bool) {
	if isAbsoluteURL(specifier) {
		return specifier, true
	}
	if isRelative(specifier) {
		if parent == "" {
			return specifier, true
		}
		base, err := url.Parse(parent)
		if err != nil {
			return "", false
		}
		ref, err := url.Parse(specifier)
		if err != nil {
			return "", false
		}
		return base.ResolveReference(ref).String(), true
	}
	if s.resolver == nil {
		return "", false
	}
	return s.resolver.Resolve(specifier)
}

func isAbsoluteURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func isRelative(s string) bool {
	return strings.HasPrefix(s, "/") || strings.HasPrefix(s, "./") || strings.HasPrefix(s, "../")
}
