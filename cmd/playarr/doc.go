// Package main hosts the playarr CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into HTTP
// calls against the playarrd daemon: library registration, scan control,
// progress polling, analysis views, match runs, and configuration
// scaffolding. Handlers stay declarative; the heavy lifting lives in the
// internal packages and is reached through the api.Client.
package main
