// Package crosstab propagates toggle changes between tabs.
//
// Two channels are used: a named broadcast channel carrying typed messages
// and storage-change events on the two local override keys. A change from
// another tab reloads this tab; a tab never reacts to its own messages or
// writes. Every message is handled the same way regardless of content,
// so lost or duplicated messages are harmless.
package crosstab
