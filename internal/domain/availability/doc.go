// Package availability probes module URLs for reachability and caches the
// result per tab with a time-to-live.
package availability
