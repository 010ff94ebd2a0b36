package registry

// Manifest is the registry input as written on disk
type Manifest struct {
	AlwaysOn       []string          `json:"always_on" yaml:"always_on" toml:"always_on"`
	FormatAdaptive []string          `json:"format_adaptive" yaml:"format_adaptive" toml:"format_adaptive"`
	Imports        map[string]string `json:"imports" yaml:"imports" toml:"imports"`
	Apps           []AppEntry        `json:"apps" yaml:"apps" toml:"apps"`
}

// AppEntry is one application in a manifest
type AppEntry struct {
	Name       string            `json:"name" yaml:"name" toml:"name"`
	URLs       map[string]string `json:"urls" yaml:"urls" toml:"urls"`
	Global     string            `json:"global,omitempty" yaml:"global,omitempty" toml:"global,omitempty"`
	Strategy   string            `json:"strategy,omitempty" yaml:"strategy,omitempty" toml:"strategy,omitempty"`
	AlwaysOn   bool              `json:"always_on,omitempty" yaml:"always_on,omitempty" toml:"always_on,omitempty"`
	ActiveWhen string            `json:"active_when,omitempty" yaml:"active_when,omitempty" toml:"active_when,omitempty"`
}

// merge appends other's entries; imports in other win
func (m *Manifest) merge(other *Manifest) {
	m.AlwaysOn = append(m.AlwaysOn, other.AlwaysOn...)
	m.FormatAdaptive = append(m.FormatAdaptive, other.FormatAdaptive...)
	m.Apps = append(m.Apps, other.Apps...)
	if len(other.Imports) > 0 && m.Imports == nil {
		m.Imports = make(map[string]string, len(other.Imports))
	}
	for k, v := range other.Imports {
		m.Imports[k] = v
	}
}
