// Package id provides identifier generation for the shell.
//
// Identifiers are prefixed ULIDs:
//   - Lexicographic sortability: IDs order by creation millisecond
//   - Prefixed types: tab_* and req_* are readable in logs
//   - Type safety: a request ID cannot be passed where a tab ID is expected
package id

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// TabID identifies one running tab of the shell. It is stamped on every
// storage write and broadcast so a tab can ignore its own echoes.
type TabID string

// RequestID identifies an incoming API request
type RequestID string

const (
	TabPrefix     = "tab"
	RequestPrefix = "req"
)

// ulid.Make draws from a process-wide monotonic source, so IDs minted in
// the same millisecond still sort in creation order
func newPrefixed(prefix string) string {
	return prefix + "_" + ulid.Make().String()
}

// NewTabID generates a new tab ID
func NewTabID() TabID {
	return TabID(newPrefixed(TabPrefix))
}

// NewRequestID generates a new request ID
func NewRequestID() RequestID {
	return RequestID(newPrefixed(RequestPrefix))
}

func (id TabID) String() string     { return string(id) }
func (id RequestID) String() string { return string(id) }

// Valid reports whether id is a tab ID minted by NewTabID
func (id TabID) Valid() bool {
	return hasPrefix(string(id), TabPrefix) && IsValid(string(id))
}

func hasPrefix(s, prefix string) bool {
	return strings.HasPrefix(s, prefix+"_")
}

// IsValid checks if a prefixed ID carries a valid ULID
func IsValid(prefixed string) bool {
	_, err := Parse(prefixed)
	return err == nil
}

// Parse extracts the ULID from a prefixed ID
func Parse(prefixed string) (ulid.ULID, error) {
	if i := strings.IndexByte(prefixed, '_'); i >= 0 {
		prefixed = prefixed[i+1:]
	}
	return ulid.ParseStrict(prefixed)
}

// Timestamp extracts the creation time from a prefixed ID
func Timestamp(prefixed string) (time.Time, error) {
	parsed, err := Parse(prefixed)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
