package types

// Descriptor is an immutable application registry entry.
type Descriptor struct {
	Name       string         `json:"name"`
	URLs       map[Env]string `json:"urls"`
	Global     string         `json:"global,omitempty"`
	Strategy   Strategy       `json:"strategy"`
	AlwaysOn   bool           `json:"always_on"`
	ActiveWhen string         `json:"active_when,omitempty"`
}

// URL returns the canonical URL for env, falling back to the production entry
func (d Descriptor) URL(env Env) string {
	if u, ok := d.URLs[env]; ok && u != "" {
		return u
	}
	return d.URLs[EnvProduction]
}

// GlobalName returns the configured global, falling back to the application name
func (d Descriptor) GlobalName() string {
	if d.Global != "" {
		return d.Global
	}
	return d.Name
}

// AppStatus is the layout engine's view of a registered application
type AppStatus string

const (
	StatusNotLoaded AppStatus = "not-loaded"
	StatusLoading   AppStatus = "loading"
	StatusMounted   AppStatus = "mounted"
	StatusUnmounted AppStatus = "unmounted"
	StatusBroken    AppStatus = "broken"
	StatusSkipped   AppStatus = "skipped"
)

// AppInfo describes a registered application for status listings
type AppInfo struct {
	Name     string    `json:"name"`
	Status   AppStatus `json:"status"`
	Strategy Strategy  `json:"strategy"`
	Disabled bool      `json:"disabled"`
	Noop     bool      `json:"noop"`
	Error    string    `json:"error,omitempty"`
}
