package reconcile

import (
	"github.com/GriffinCanCode/AgentOS/shell/internal/domain/availability"
	"github.com/GriffinCanCode/AgentOS/shell/internal/domain/toggle"
)

// Diverged reports whether next differs from prev in its available set,
// its disabled set or its disabled modes
func Diverged(prev, next availability.Snapshot) bool {
	return !sameSet(prev.Available, next.Available) ||
		!sameSet(prev.Disabled, next.Disabled) ||
		!toggle.ModesEqual(prev.DisabledMode, next.DisabledMode)
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	members := make(map[string]struct{}, len(a))
	for _, n := range a {
		members[n] = struct{}{}
	}
	for _, n := range b {
		if _, ok := members[n]; !ok {
			return false
		}
	}
	return true
}
