package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// Window is the page's global scope: a goja VM plus a document proxy.
// goja is single-threaded, so every VM access is serialized by mu.
type Window struct {
	vm     *goja.Runtime
	dom    *DOM
	config Config
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
	system *system

	// Console output
	console   []LogEntry
	consoleMu sync.Mutex
}

// New creates a window over dom. A nil dom gets an empty document.
func New(config Config, dom *DOM, logger *zap.Logger) (*Window, error) {
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if dom == nil {
		dom = NewDOM()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	w := &Window{
		vm:     goja.New(),
		dom:    dom,
		config: config,
		logger: logger,
	}

	if config.MaxCallStack > 0 {
		w.vm.SetMaxCallStackSize(config.MaxCallStack)
	}

	if err := w.setupGlobals(); err != nil {
		return nil, err
	}
	return w, nil
}

// DOM returns the window's document
func (w *Window) DOM() *DOM {
	return w.dom
}

// Exec runs a classic script in the global scope
func (w *Window) Exec(ctx context.Context, source, name string) error {
	return w.run(ctx, func() error {
		if _, err := w.vm.RunScript(name, source); err != nil {
			return fmt.Errorf("execute %s: %w", name, err)
		}
		return nil
	})
}

// Eval runs source and exports its completion value
func (w *Window) Eval(ctx context.Context, source string) (interface{}, error) {
	var out interface{}
	err := w.run(ctx, func() error {
		v, err := w.vm.RunString(source)
		if err != nil {
			return err
		}
		v, err = w.settle(v)
		if err != nil {
			return err
		}
		out = exportValue(v)
		return nil
	})
	return out, err
}

// Lookup returns the global named name
func (w *Window) Lookup(name string) (goja.Value, error) {
	var v goja.Value
	err := w.run(context.Background(), func() error {
		v = w.vm.GlobalObject().Get(name)
		if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
			return fmt.Errorf("%w: %s", ErrGlobalNotFound, name)
		}
		return nil
	})
	return v, err
}

// Do gives fn exclusive access to the VM under the execution timeout
func (w *Window) Do(ctx context.Context, fn func(vm *goja.Runtime) error) error {
	return w.run(ctx, func() error { return fn(w.vm) })
}

// Call invokes fn and, if it returns a promise, resolves it.
// The job queue is drained when the outermost call returns, so a promise
// still pending afterwards yields ErrPending.
func (w *Window) Call(ctx context.Context, fn goja.Callable, args ...interface{}) (goja.Value, error) {
	var out goja.Value
	err := w.run(ctx, func() error {
		vals := make([]goja.Value, len(args))
		for i, a := range args {
			vals[i] = w.vm.ToValue(a)
		}
		v, err := fn(goja.Undefined(), vals...)
		if err != nil {
			return err
		}
		out, err = w.settle(v)
		return err
	})
	return out, err
}

// Console returns captured console output
func (w *Window) Console() []LogEntry {
	w.consoleMu.Lock()
	defer w.consoleMu.Unlock()
	return append([]LogEntry{}, w.console...)
}

// Close releases the VM; later calls return ErrClosed
func (w *Window) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.closed = true
	return nil
}

// run serializes fn on the VM and interrupts it on timeout or ctx cancel
func (w *Window) run(ctx context.Context, fn func() error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}

	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		timer := time.NewTimer(w.config.Timeout)
		defer timer.Stop()
		select {
		case <-timer.C:
			w.vm.Interrupt(ErrTimeout)
		case <-ctx.Done():
			w.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	err := fn()

	close(done)
	<-exited
	w.vm.ClearInterrupt()

	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if cause, ok := interrupted.Value().(error); ok {
			return fmt.Errorf("%w: %v", cause, err)
		}
	}
	return err
}

// settle unwraps a promise value; must be called with mu held
func (w *Window) settle(v goja.Value) (goja.Value, error) {
	if v == nil {
		return goja.Undefined(), nil
	}
	p, ok := v.Export().(*goja.Promise)
	if !ok {
		return v, nil
	}
	switch p.State() {
	case goja.PromiseStateFulfilled:
		return p.Result(), nil
	case goja.PromiseStateRejected:
		return nil, &RejectionError{Reason: describe(p.Result())}
	default:
		return nil, ErrPending
	}
}

// setupGlobals configures the global scope
func (w *Window) setupGlobals() error {
	global := w.vm.GlobalObject()

	// Page scripts see a browser global scope, not a CommonJS one
	for _, name := range []string{"require", "process", "module", "exports"} {
		if err := global.Delete(name); err != nil {
			return err
		}
	}
	for _, name := range []string{"window", "self"} {
		if err := global.Set(name, global); err != nil {
			return err
		}
	}

	if w.config.EnableConsole {
		console := w.vm.NewObject()
		for _, level := range []string{"log", "info", "warn", "error", "debug"} {
			if err := console.Set(level, w.makeConsoleFunc(level)); err != nil {
				return err
			}
		}
		if err := global.Set("console", console); err != nil {
			return err
		}
	}

	// Timers are inert; lifecycles must settle within the job queue
	noop := func(goja.FunctionCall) goja.Value { return goja.Undefined() }
	for _, name := range []string{"setTimeout", "setInterval", "clearTimeout", "clearInterval"} {
		if err := global.Set(name, noop); err != nil {
			return err
		}
	}

	return w.injectDocument()
}

// makeConsoleFunc creates a console function
func (w *Window) makeConsoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		msg := strings.Join(parts, " ")

		w.consoleMu.Lock()
		w.console = append(w.console, LogEntry{Level: level, Message: msg, Time: time.Now()})
		w.consoleMu.Unlock()

		w.logger.Debug("console", zap.String("level", level), zap.String("message", msg))
		return goja.Undefined()
	}
}

// injectDocument installs the document proxy
func (w *Window) injectDocument() error {
	document := w.vm.NewObject()

	first := func(call goja.FunctionCall) goja.Value {
		els := w.dom.Query(call.Argument(0).String())
		if len(els) == 0 {
			return goja.Null()
		}
		return w.elementProxy(els[0])
	}
	all := func(call goja.FunctionCall) goja.Value {
		els := w.dom.Query(call.Argument(0).String())
		proxies := make([]interface{}, len(els))
		for i, el := range els {
			proxies[i] = w.elementProxy(el)
		}
		return w.vm.NewArray(proxies...)
	}

	_ = document.Set("querySelector", first)
	_ = document.Set("querySelectorAll", all)
	_ = document.Set("getElementById", func(id string) goja.Value {
		els := w.dom.Query("#" + id)
		if len(els) == 0 {
			return goja.Null()
		}
		return w.elementProxy(els[0])
	})
	_ = document.Set("getElementsByTagName", all)
	_ = document.Set("head", w.elementProxy(w.dom.Head()))
	_ = document.Set("body", w.elementProxy(w.dom.Body()))

	return w.vm.GlobalObject().Set("document", document)
}

// elementProxy exposes an element to page scripts
func (w *Window) elementProxy(el *Element) goja.Value {
	obj := w.vm.NewObject()
	_ = obj.Set("tagName", strings.ToUpper(el.TagName))
	_ = obj.Set("id", el.Attributes["id"])
	_ = obj.Set("getAttribute", func(name string) goja.Value {
		v, ok := el.Attributes[name]
		if !ok {
			return goja.Null()
		}
		return w.vm.ToValue(v)
	})
	_ = obj.Set("setAttribute", func(name, value string) {
		w.dom.SetAttribute(el, name, value)
	})
	getter := w.vm.ToValue(func(goja.FunctionCall) goja.Value {
		return w.vm.ToValue(w.dom.Text(el))
	})
	setter := w.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		w.dom.SetText(el, call.Argument(0).String())
		return goja.Undefined()
	})
	_ = obj.DefineAccessorProperty("textContent", getter, setter, goja.FLAG_TRUE, goja.FLAG_TRUE)
	return obj
}

// exportValue converts goja value to Go value
func exportValue(val goja.Value) interface{} {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil
	}
	return val.Export()
}

func describe(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) {
		return "undefined"
	}
	if obj, ok := v.(*goja.Object); ok {
		if msg := obj.Get("message"); msg != nil && !goja.IsUndefined(msg) {
			return msg.String()
		}
	}
	return v.String()
}
