package toggle

import (
	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/types"
)

// Storage keys for device-local overrides
const (
	KeyDisabled     = "mfe-disabled"
	KeyDisabledMode = "mfe-disabled-mode"
)

// Empty returns the state a missing or malformed payload decodes to
func Empty() types.ToggleState {
	return types.ToggleState{Disabled: []string{}}
}

// Decode parses a toggle payload leniently: a body that is not a JSON
// object decodes to Empty, non-string disabled entries are dropped and
// unknown modes ignored
func Decode(raw []byte) types.ToggleState {
	var v interface{}
	if err := sonic.Unmarshal(raw, &v); err != nil {
		return Empty()
	}
	obj, ok := v.(map[string]interface{})
	if !ok {
		return Empty()
	}
	return types.ToggleState{
		Disabled:     names(obj["disabled"]),
		DisabledMode: mode(obj["disabledMode"]),
	}
}

// DecodeNames parses a JSON array of names, dropping non-string entries
func DecodeNames(raw []byte) []string {
	var v interface{}
	if err := sonic.Unmarshal(raw, &v); err != nil {
		return []string{}
	}
	return names(v)
}

// DecodeMode parses a disabledMode value: a bare mode string or an object
// with optional default and apps
func DecodeMode(raw []byte) types.DisabledMode {
	var v interface{}
	if err := sonic.Unmarshal(raw, &v); err != nil {
		return types.DisabledMode{}
	}
	return mode(v)
}

// Encode serializes a state in the remote endpoint's shape
func Encode(s types.ToggleState) ([]byte, error) {
	if s.Disabled == nil {
		s.Disabled = []string{}
	}
	return sonic.Marshal(s)
}

// ModeValue converts a decoded mode value (string or object) to a DisabledMode
func ModeValue(v interface{}) types.DisabledMode {
	return mode(v)
}

// NamesValue converts a decoded array value to sorted unique names
func NamesValue(v interface{}) []string {
	return names(v)
}

func names(v interface{}) []string {
	arr, ok := v.([]interface{})
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return types.SortedUnique(out)
}

func mode(v interface{}) types.DisabledMode {
	switch t := v.(type) {
	case string:
		if m := types.RenderMode(t); m.Valid() {
			return types.DisabledMode{Default: m}
		}
	case map[string]interface{}:
		var out types.DisabledMode
		if s, ok := t["default"].(string); ok && types.RenderMode(s).Valid() {
			out.Default = types.RenderMode(s)
		}
		if apps, ok := t["apps"].(map[string]interface{}); ok {
			for name, raw := range apps {
				s, ok := raw.(string)
				if !ok || name == "" || !types.RenderMode(s).Valid() {
					continue
				}
				if out.Apps == nil {
					out.Apps = make(map[string]types.RenderMode)
				}
				out.Apps[name] = types.RenderMode(s)
			}
		}
		return out
	}
	return types.DisabledMode{}
}
