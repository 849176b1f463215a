// Package daemon hosts the long-running playarrd process: it enforces
// single-instance execution with a lock file, reconciles scans interrupted
// by a previous shutdown, syncs library roots from Sonarr/Radarr, runs
// scheduled scans, and serves the HTTP polling API.
package daemon
