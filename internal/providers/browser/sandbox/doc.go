/*
Package sandbox provides the shell page's JavaScript global scope.

# Overview

A Window is one page generation: a goja VM acting as the browser's global
object plus a lightweight document proxy. Loaded scripts run in it, exposed
globals are looked up on it, and application lifecycles are invoked through
it. A page reload discards the Window and builds a fresh one.

# Architecture

 1. Window: goja VM with a browser-shaped global scope (window, self,
    document, console). CommonJS globals are removed so UMD bundles take
    their global-assignment branch.
 2. DOM: element tree seeded from the shell HTML with goquery. Script
    elements appended by the loader live in its head.
 3. System host: an optional System.register implementation. Specifiers are
    resolved through an import map, sources fetched by the caller-supplied
    Fetcher, and each URL instantiated once.

# Concurrency

goja is not goroutine-safe. Every VM access goes through the window lock
and runs under a timeout that interrupts runaway scripts.

# Usage Example

	dom, _ := sandbox.ParseDocument(strings.NewReader(html))
	win, _ := sandbox.New(sandbox.DefaultConfig(), dom, logger)

	if err := win.Exec(ctx, source, url); err != nil {
		return err
	}
	navbar, err := win.Lookup("navbar")
*/
package sandbox
