package crosstab

import (
	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/AgentOS/shell/internal/domain/toggle"
	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/types"
)

// ChannelName is the broadcast channel toggle messages travel on
const ChannelName = "mfe-toggle"

// Message types
const (
	TypeToggle = "mfe-toggle"
	TypeMode   = "mfe-disabled-mode"
)

// Message is a cross-tab toggle notification
type Message struct {
	Type         string              `json:"type"`
	Disabled     []string            `json:"disabled,omitempty"`
	DisabledMode *types.DisabledMode `json:"disabledMode,omitempty"`
	App          string              `json:"app,omitempty"`
	Mode         types.RenderMode    `json:"mode,omitempty"`
}

// ToggleMessage announces a full toggle state
func ToggleMessage(state types.ToggleState) Message {
	mode := state.DisabledMode.Clone()
	return Message{
		Type:         TypeToggle,
		Disabled:     types.SortedUnique(state.Disabled),
		DisabledMode: &mode,
	}
}

// ModeMessage announces one application's rendering mode
func ModeMessage(app string, mode types.RenderMode) Message {
	return Message{Type: TypeMode, App: app, Mode: mode}
}

// Encode serializes m
func Encode(m Message) ([]byte, error) {
	if m.Type == TypeToggle && m.Disabled == nil {
		m.Disabled = []string{}
	}
	return sonic.Marshal(m)
}

// Decode parses a message leniently. It reports false for payloads that
// are not a known message type.
func Decode(data []byte) (Message, bool) {
	var v map[string]interface{}
	if err := sonic.Unmarshal(data, &v); err != nil {
		return Message{}, false
	}
	kind, _ := v["type"].(string)
	switch kind {
	case TypeToggle:
		mode := toggle.ModeValue(v["disabledMode"])
		return Message{
			Type:         TypeToggle,
			Disabled:     toggle.NamesValue(v["disabled"]),
			DisabledMode: &mode,
		}, true
	case TypeMode:
		app, _ := v["app"].(string)
		mode, _ := v["mode"].(string)
		if app == "" || !types.RenderMode(mode).Valid() {
			return Message{}, false
		}
		return ModeMessage(app, types.RenderMode(mode)), true
	default:
		return Message{}, false
	}
}
