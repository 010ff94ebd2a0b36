// Package types provides shared data structures for the shell orchestrator.
//
// This package defines the value types exchanged between the registry, the
// loaders, the reconciler and the admin API, so that none of those packages
// has to import another just for its types.
//
// Core Types:
//   - Descriptor: Immutable application registry entry
//   - Strategy: Declared loading strategy class of an application
//   - ModuleFormat: Detected bundle format of a module URL
//   - ToggleState: Merged disabled set and disabled rendering modes
//   - Event: UI-facing notification published by the shell
//
// Request Types:
//   - ToggleRequest, ModeRequest: Device-local toggle changes
//   - VisibilityRequest, PanelState: Page-level UI state
//   - WSMessage: WebSocket event stream envelope
//
// Example Usage:
//
//	desc := types.Descriptor{
//	    Name:     "@org/catalog",
//	    Strategy: types.StrategyFormatAdaptive,
//	    URLs:     map[types.Env]string{types.EnvLocal: "http://localhost:9001/catalog.js"},
//	}
package types
