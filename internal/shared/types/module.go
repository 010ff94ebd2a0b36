package types

// Env selects which URL table and timeouts the shell uses.
type Env string

const (
	EnvLocal      Env = "local"
	EnvProduction Env = "production"
)

// IsLocal reports whether the shell runs against local dev servers.
func (e Env) IsLocal() bool {
	return e == EnvLocal
}

// ModuleFormat is the bundle format a module URL is served in.
type ModuleFormat string

const (
	FormatLegacyRegistration ModuleFormat = "legacy-registration"
	FormatGlobalScript       ModuleFormat = "global-script"
	FormatNative             ModuleFormat = "native"
	FormatUnknown            ModuleFormat = "unknown"
)

// String returns the string representation of the format
func (f ModuleFormat) String() string {
	return string(f)
}

// Strategy is the loading strategy class declared for an application.
type Strategy string

const (
	// StrategyNative imports the application by name with a native import.
	StrategyNative Strategy = "native"
	// StrategyFormatAdaptive may be served in more than one format.
	StrategyFormatAdaptive Strategy = "format-adaptive"
	// StrategyGlobalScript loads a script that exposes a global.
	StrategyGlobalScript Strategy = "global-script"
)

// ParseStrategy converts a manifest value to a Strategy, defaulting to native
func ParseStrategy(s string) Strategy {
	switch Strategy(s) {
	case StrategyFormatAdaptive, StrategyGlobalScript:
		return Strategy(s)
	default:
		return StrategyNative
	}
}
