package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/dop251/goja"

	"github.com/GriffinCanCode/AgentOS/shell/internal/providers/browser/sandbox"
)

// ErrInvalidLifecycles is returned when module exports lack a lifecycle
var ErrInvalidLifecycles = errors.New("invalid lifecycle exports")

// fromExports converts a module's exports into Lifecycles whose functions
// call back into the window. Each phase export may be a function or an
// array of functions; a module whose lifecycles live on its default export
// is unwrapped.
func fromExports(ctx context.Context, win *sandbox.Window, exports goja.Value) (Lifecycles, error) {
	var lc Lifecycles
	err := win.Do(ctx, func(vm *goja.Runtime) error {
		obj, ok := exports.(*goja.Object)
		if !ok || obj == nil {
			return fmt.Errorf("%w: exports are not an object", ErrInvalidLifecycles)
		}
		if isMissing(obj.Get("mount")) {
			if def, ok := obj.Get("default").(*goja.Object); ok {
				obj = def
			}
		}

		phases := []struct {
			name string
			dst  *[]LifecycleFunc
		}{
			{"bootstrap", &lc.Bootstrap},
			{"mount", &lc.Mount},
			{"unmount", &lc.Unmount},
		}
		for _, p := range phases {
			fns, err := callables(obj.Get(p.name))
			if err != nil {
				return fmt.Errorf("%w: %s %v", ErrInvalidLifecycles, p.name, err)
			}
			for _, fn := range fns {
				*p.dst = append(*p.dst, bind(win, fn))
			}
		}
		return nil
	})
	return lc, err
}

// callables must be called with the window lock held
func callables(v goja.Value) ([]goja.Callable, error) {
	if isMissing(v) {
		return nil, errors.New("is not exported")
	}
	if fn, ok := goja.AssertFunction(v); ok {
		return []goja.Callable{fn}, nil
	}
	arr, ok := v.(*goja.Object)
	if !ok || arr.ClassName() != "Array" {
		return nil, errors.New("must be a function or an array of functions")
	}
	n := int(arr.Get("length").ToInteger())
	out := make([]goja.Callable, 0, n)
	for i := 0; i < n; i++ {
		fn, ok := goja.AssertFunction(arr.Get(strconv.Itoa(i)))
		if !ok {
			return nil, fmt.Errorf("element %d is not a function", i)
		}
		out = append(out, fn)
	}
	return out, nil
}

func bind(win *sandbox.Window, fn goja.Callable) LifecycleFunc {
	return func(ctx context.Context, props Props) error {
		_, err := win.Call(ctx, fn, map[string]interface{}(props))
		return err
	}
}

func isMissing(v goja.Value) bool {
	return v == nil || goja.IsUndefined(v) || goja.IsNull(v)
}
