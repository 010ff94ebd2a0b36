package utils

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Size limits
const (
	MaxTogglePayloadSize = 256 * 1024 // remote toggle bodies
	MaxNameLength        = 214        // npm package name limit
	MaxErrorMessageRunes = 200        // load-error events
)

// AppNamePattern accepts plain or scoped package-style names ("catalog", "@org/catalog")
var AppNamePattern = regexp.MustCompile(`^(@[a-z0-9][a-z0-9._~-]*/)?[a-z0-9][a-z0-9._~-]*$`)

// ValidateAppName validates an application registry name
func ValidateAppName(name string) error {
	if name == "" {
		return fmt.Errorf("application name is required")
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("application name %q exceeds %d characters", name, MaxNameLength)
	}
	if !AppNamePattern.MatchString(name) {
		return fmt.Errorf("application name %q is not a valid package name", name)
	}
	return nil
}

// ValidateModuleURL validates an absolute http(s) module URL
func ValidateModuleURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid module URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("module URL %q must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("module URL %q has no host", raw)
	}
	return nil
}

// ValidateSize checks a payload against a byte limit
func ValidateSize(data []byte, max int) error {
	if len(data) > max {
		return fmt.Errorf("payload size %d bytes exceeds maximum %d bytes", len(data), max)
	}
	return nil
}

// Truncate shortens s to at most n runes, marking the cut with an ellipsis
func Truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-1]) + "…"
}

// WithQuery returns raw with key=value added to its query string
func WithQuery(raw, key, value string) string {
	u, err := url.Parse(raw)
	if err != nil {
		sep := "?"
		if strings.Contains(raw, "?") {
			sep = "&"
		}
		return raw + sep + url.QueryEscape(key) + "=" + url.QueryEscape(value)
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}
