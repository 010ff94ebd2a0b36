package types

import (
	"maps"
	"slices"
	"sort"
)

// RenderMode is the rendering policy applied to a disabled application.
type RenderMode string

const (
	ModeHide        RenderMode = "hide"
	ModePlaceholder RenderMode = "placeholder"
)

// Valid reports whether m is a known rendering mode
func (m RenderMode) Valid() bool {
	return m == ModeHide || m == ModePlaceholder
}

// DisabledMode holds a default rendering mode plus per-application overrides.
type DisabledMode struct {
	Default RenderMode            `json:"default,omitempty"`
	Apps    map[string]RenderMode `json:"apps,omitempty"`
}

// Empty reports whether no mode has been set
func (d DisabledMode) Empty() bool {
	return d.Default == "" && len(d.Apps) == 0
}

// For returns the effective rendering mode for name
func (d DisabledMode) For(name string) RenderMode {
	if m, ok := d.Apps[name]; ok {
		return m
	}
	if d.Default != "" {
		return d.Default
	}
	return ModePlaceholder
}

// Clone returns a deep copy
func (d DisabledMode) Clone() DisabledMode {
	out := DisabledMode{Default: d.Default}
	if len(d.Apps) > 0 {
		out.Apps = maps.Clone(d.Apps)
	}
	return out
}

// ToggleState is the merged disabled set and rendering modes.
type ToggleState struct {
	Disabled     []string     `json:"disabled"`
	DisabledMode DisabledMode `json:"disabledMode"`
}

// Clone returns a deep copy
func (s ToggleState) Clone() ToggleState {
	return ToggleState{
		Disabled:     slices.Clone(s.Disabled),
		DisabledMode: s.DisabledMode.Clone(),
	}
}

// IsDisabled reports whether name is in the disabled set
func (s ToggleState) IsDisabled(name string) bool {
	return slices.Contains(s.Disabled, name)
}

// SortedUnique returns names sorted with duplicates and empty strings removed
func SortedUnique(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n != "" {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return slices.Compact(out)
}
