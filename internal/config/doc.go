// Package config loads, validates, and normalizes the playarr TOML
// configuration. Rating weights, support sets, the client compatibility
// matrix, and Servarr connection settings all live here; callers snapshot
// what they need per operation rather than caching derived values.
package config
