package registry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/types"
	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/utils"
)

var (
	ErrDuplicateApp   = errors.New("duplicate application name")
	ErrInvalidPattern = errors.New("invalid name pattern")
)

// Options controls how a manifest becomes a Registry
type Options struct {
	Env types.Env
	// Extra patterns appended to the manifest's lists
	AlwaysOn       []string
	FormatAdaptive []string
}

// Registry is the immutable, ordered application table
type Registry struct {
	env     types.Env
	order   []string
	apps    map[string]types.Descriptor
	imports map[string]string
}

// Build validates m and computes each application's strategy and
// always-on membership
func Build(m *Manifest, opts Options) (*Registry, error) {
	if opts.Env == "" {
		opts.Env = types.EnvProduction
	}

	alwaysOn := append(append([]string{}, m.AlwaysOn...), opts.AlwaysOn...)
	adaptive := append(append([]string{}, m.FormatAdaptive...), opts.FormatAdaptive...)
	for _, p := range append(append([]string{}, alwaysOn...), adaptive...) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPattern, p)
		}
	}

	r := &Registry{
		env:     opts.Env,
		apps:    make(map[string]types.Descriptor, len(m.Apps)),
		imports: make(map[string]string, len(m.Imports)),
	}

	for specifier, url := range m.Imports {
		if err := utils.ValidateModuleURL(url); err != nil {
			return nil, fmt.Errorf("import %q: %w", specifier, err)
		}
		r.imports[specifier] = url
	}

	for _, e := range m.Apps {
		if err := utils.ValidateAppName(e.Name); err != nil {
			return nil, err
		}
		if _, dup := r.apps[e.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateApp, e.Name)
		}

		urls := make(map[types.Env]string, len(e.URLs))
		for env, u := range e.URLs {
			if err := utils.ValidateModuleURL(u); err != nil {
				return nil, fmt.Errorf("app %s: %w", e.Name, err)
			}
			urls[normalizeEnv(env)] = u
		}

		strategy := types.ParseStrategy(e.Strategy)
		if e.Strategy == "" && matchAny(adaptive, e.Name) {
			strategy = types.StrategyFormatAdaptive
		}

		r.apps[e.Name] = types.Descriptor{
			Name:       e.Name,
			URLs:       urls,
			Global:     e.Global,
			Strategy:   strategy,
			AlwaysOn:   e.AlwaysOn || matchAny(alwaysOn, e.Name),
			ActiveWhen: e.ActiveWhen,
		}
		r.order = append(r.order, e.Name)
	}

	return r, nil
}

// Env returns the environment the registry was built for
func (r *Registry) Env() types.Env {
	return r.env
}

// Names returns application names in registration order
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Len returns the number of applications
func (r *Registry) Len() int {
	return len(r.order)
}

// Get returns one descriptor
func (r *Registry) Get(name string) (types.Descriptor, bool) {
	d, ok := r.apps[name]
	return d, ok
}

// All returns descriptors in registration order
func (r *Registry) All() []types.Descriptor {
	out := make([]types.Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.apps[name])
	}
	return out
}

// AlwaysOn returns the always-on names in registration order
func (r *Registry) AlwaysOn() []string {
	var out []string
	for _, name := range r.order {
		if r.apps[name].AlwaysOn {
			out = append(out, name)
		}
	}
	return out
}

// IsAlwaysOn reports whether name is exempt from disabling
func (r *Registry) IsAlwaysOn(name string) bool {
	return r.apps[name].AlwaysOn
}

// URL returns name's URL for the registry's environment
func (r *Registry) URL(name string) string {
	d, ok := r.apps[name]
	if !ok {
		return ""
	}
	return d.URL(r.env)
}

// URLs maps every application configured for this environment to its URL.
// In local mode only applications with an explicit local entry count; the
// production fallback of URL does not apply.
func (r *Registry) URLs() map[string]string {
	out := make(map[string]string, len(r.order))
	for _, name := range r.order {
		u := r.URL(name)
		if r.env.IsLocal() {
			u = r.apps[name].URLs[r.env]
		}
		if u != "" {
			out[name] = u
		}
	}
	return out
}

// Resolve implements the import map: explicit imports first, then
// application names
func (r *Registry) Resolve(specifier string) (string, bool) {
	if u, ok := r.imports[specifier]; ok {
		return u, true
	}
	if u := r.URL(specifier); u != "" {
		return u, true
	}
	return "", false
}

func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

func normalizeEnv(s string) types.Env {
	switch strings.ToLower(s) {
	case "local", "dev", "development":
		return types.EnvLocal
	default:
		return types.EnvProduction
	}
}
