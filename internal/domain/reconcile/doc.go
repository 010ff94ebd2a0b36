// Package reconcile merges remote toggle state, device-local overrides and
// live reachability into the published disabled/available state.
//
// Lifecycle: uninitialized -> cache-hydrated (local mode, fresh cache only)
// -> reconciled -> watching.
//
// Production: fetch the remote state once, union it with the local list,
// publish, register every application, then poll the endpoint and reload
// when the raw payload changes.
//
// Local: publish a fresh availability snapshot immediately and schedule a
// background re-probe, or probe every URL concurrently with the remote
// fetch. Only available and always-on applications are registered. A
// re-probe that disagrees with the snapshot triggers one reload.
package reconcile
