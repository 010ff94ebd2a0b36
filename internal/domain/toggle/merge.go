package toggle

import (
	"slices"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/types"
)

// Sanitize returns names sorted and unique with every always-on name removed
func Sanitize(names, alwaysOn []string) []string {
	out := types.SortedUnique(names)
	if len(alwaysOn) == 0 {
		return out
	}
	return slices.DeleteFunc(out, func(n string) bool {
		return slices.Contains(alwaysOn, n)
	})
}

// Merge combines remote and local state: disabled is the union, modes are
// merged per key with local winning, and the result is sanitized
func Merge(remote, local types.ToggleState, alwaysOn []string) types.ToggleState {
	disabled := make([]string, 0, len(remote.Disabled)+len(local.Disabled))
	disabled = append(disabled, remote.Disabled...)
	disabled = append(disabled, local.Disabled...)

	return types.ToggleState{
		Disabled:     Sanitize(disabled, alwaysOn),
		DisabledMode: MergeModes(remote.DisabledMode, local.DisabledMode),
	}
}

// MergeModes overlays local onto remote key by key
func MergeModes(remote, local types.DisabledMode) types.DisabledMode {
	out := remote.Clone()
	if local.Default != "" {
		out.Default = local.Default
	}
	for name, m := range local.Apps {
		if out.Apps == nil {
			out.Apps = make(map[string]types.RenderMode, len(local.Apps))
		}
		out.Apps[name] = m
	}
	return out
}

var stateOpts = cmp.Options{cmpopts.EquateEmpty()}

// Equal compares states by value; nil and empty collections are equal
func Equal(a, b types.ToggleState) bool {
	return cmp.Equal(a, b, stateOpts)
}

// ModesEqual compares rendering modes by value
func ModesEqual(a, b types.DisabledMode) bool {
	return cmp.Equal(a, b, stateOpts)
}
