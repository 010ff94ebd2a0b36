// Package app loads applications and wraps their lifecycles.
//
// Loader.Load picks one handler per declared strategy and, for
// format-adaptive applications in local mode, one handler per detected
// module format:
//
//	disabled                 -> no-op handle, no network
//	global-script            -> script loader, then the configured global
//	format-adaptive (local)  -> legacy: System import
//	                            global: script loader + global (or name)
//	                            native/unknown: native import, then System import
//	format-adaptive (remote) -> System import if a host is installed, else native
//	native                   -> native import by name
//
// A failed load never reaches the caller: it is logged, published as an
// app-load-error event and replaced by the no-op handle.
//
// Every load records "<app>:load:start/end" marks and a measure; every
// lifecycle invocation does the same for its phase, whether or not it
// succeeds.
package app
