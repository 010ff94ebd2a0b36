// Package storage provides the page's local and session storage.
//
// A Backend is a shared key-value store whose writes are tagged with the
// writing tab's ID and fanned out as change Events. Three backends exist:
//   - Memory: in-process map; also used for per-tab session storage
//   - File: one file per key under a directory
//   - Redis: keys under a prefix plus a pub/sub change channel, so several
//     shell processes share local storage
//
// A Tab binds a Backend to one tab ID. Like the browser's storage event,
// a Tab's event stream only carries changes made by other tabs.
//
// Storage is best-effort: callers log failures at debug and continue.
package storage
