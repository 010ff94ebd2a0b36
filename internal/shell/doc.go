// Package shell assembles one running tab of the orchestrator.
//
// A Context holds the process-wide collaborators (configuration, registry,
// storage, broadcast, event bus, visibility) and is initialized exactly
// once. A Tab runs page generations over that context: each generation
// builds a fresh window, loaders, reconciler and layout engine, starts
// them in order, and is torn down and rebuilt when its Reloader fires.
//
// Startup order within a generation:
//
//	reconcile (publish) -> register apps -> mount active route
//	-> listen for cross-tab changes -> watch (poll / re-probe / dev build)
package shell
