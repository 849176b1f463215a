// Package logging builds slog loggers for the daemon and CLI.
//
// The console format renders a human-readable line per record; the json
// format emits standard slog JSON. Attr helpers and standardized field
// keys keep component logs consistent across packages.
package logging
