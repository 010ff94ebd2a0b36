package crosstab

import (
	"net/url"
	"regexp"
	"strings"
)

var loopbackOrigin = regexp.MustCompile(`^https?://(localhost|127\.0\.0\.1|\[::1\])(:\d+)?$`)

// AllowedOrigin reports whether a message from origin may be accepted by a
// page served from current: the origins must match exactly, unless current
// is a loopback host, in which case any loopback origin on any port is
// accepted.
func AllowedOrigin(origin, current string) bool {
	origin = strings.TrimSuffix(origin, "/")
	current = originOf(current)
	if origin == "" || current == "" {
		return false
	}
	if origin == current {
		return true
	}
	return loopbackOrigin.MatchString(current) && loopbackOrigin.MatchString(origin)
}

// originOf reduces a URL to scheme://host[:port]
func originOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return strings.TrimSuffix(raw, "/")
	}
	return u.Scheme + "://" + u.Host
}
