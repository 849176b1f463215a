// Package preflight verifies the runtime environment before scans start:
// library roots are readable, the data directory is writable, the probe
// binary exists, and any enabled Servarr instance answers with a valid key.
package preflight
