package preflight

import (
	"context"

	"playarr/internal/config"
	"playarr/internal/store"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, result := range results {
		if !result.Passed {
			return false
		}
	}
	return true
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config, libraries []*store.LibraryPath) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryWritable("Data directory", cfg.Paths.DataDir))
	results = append(results, CheckFFprobe(cfg.FFprobeBinary()))

	for _, lp := range libraries {
		results = append(results, CheckDirectoryReadable("Library "+lp.Path, lp.Path))
	}

	if cfg.Sonarr.Enabled {
		results = append(results, CheckServarr(ctx, "Sonarr", cfg.Sonarr))
	}
	if cfg.Radarr.Enabled {
		results = append(results, CheckServarr(ctx, "Radarr", cfg.Radarr))
	}

	return results
}
