package toggle

import (
	"context"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/AgentOS/shell/internal/providers/storage"
	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/types"
)

// Overrides is the device-local disabled list and mode override
type Overrides struct {
	store *storage.Tab
}

// NewOverrides binds overrides to a tab's local storage
func NewOverrides(store *storage.Tab) *Overrides {
	return &Overrides{store: store}
}

// Load reads both keys; missing or malformed values decode to empty
func (o *Overrides) Load(ctx context.Context) types.ToggleState {
	state := Empty()
	if raw, ok := o.store.Lookup(ctx, KeyDisabled); ok {
		state.Disabled = DecodeNames([]byte(raw))
	}
	if raw, ok := o.store.Lookup(ctx, KeyDisabledMode); ok {
		state.DisabledMode = DecodeMode([]byte(raw))
	}
	return state
}

// Save writes both keys; failures are logged by the store and ignored
func (o *Overrides) Save(ctx context.Context, state types.ToggleState) {
	disabled := types.SortedUnique(state.Disabled)
	if raw, err := sonic.MarshalString(disabled); err == nil {
		o.store.Store(ctx, KeyDisabled, raw)
	}
	if raw, err := sonic.MarshalString(state.DisabledMode); err == nil {
		o.store.Store(ctx, KeyDisabledMode, raw)
	}
}

// SetMode updates one application's mode and returns the new local state
func (o *Overrides) SetMode(ctx context.Context, app string, mode types.RenderMode) types.ToggleState {
	state := o.Load(ctx)
	if state.DisabledMode.Apps == nil {
		state.DisabledMode.Apps = make(map[string]types.RenderMode)
	}
	state.DisabledMode.Apps[app] = mode
	if raw, err := sonic.MarshalString(state.DisabledMode); err == nil {
		o.store.Store(ctx, KeyDisabledMode, raw)
	}
	return state
}
