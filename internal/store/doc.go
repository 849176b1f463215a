// Package store persists library paths, scans, and per-file analysis
// records in SQLite. It is the single durable surface of the daemon; the
// progress registry and the rating engine are both rebuildable from what
// lives here.
package store
