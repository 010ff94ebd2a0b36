// Package detect classifies module URLs by bundle format.
//
// Detection issues one ranged request for the first 8 KiB. A server that
// honors the range (206) gets a cheap prefix check and, only when that is
// inconclusive, one full-body fetch. A server that ignores the range (200)
// has already sent the whole body, which is classified directly. Any other
// outcome, including timeouts, is FormatUnknown. Results are memoized per
// URL for the detector's lifetime.
package detect
