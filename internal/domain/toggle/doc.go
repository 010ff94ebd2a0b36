// Package toggle models the disabled-application state.
//
// Three pieces live here:
//   - the lenient payload codec shared by the remote endpoint, local
//     storage and cross-tab messages
//   - Sanitize and Merge, the only ways a published state is built
//   - Overrides (device-local state in storage) and Client (the remote
//     toggle endpoint)
//
// Merge semantics: the disabled set is the union of remote and local
// inputs; rendering modes are merged key by key with local values winning.
// Always-on names are removed from every disabled set Merge or Sanitize
// returns.
package toggle
