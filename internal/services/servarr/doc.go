// Package servarr provides thin read-only clients for the Sonarr and
// Radarr v3 APIs. The matcher consumes them as catalog sources; the daemon
// uses their root folders to register library paths automatically.
package servarr
