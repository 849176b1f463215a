package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"playarr/internal/config"
	"playarr/internal/daemon"
	"playarr/internal/logging"
	"playarr/internal/matcher"
	"playarr/internal/media/ffprobe"
	"playarr/internal/preflight"
	"playarr/internal/progress"
	"playarr/internal/scanner"
	"playarr/internal/services/servarr"
	"playarr/internal/store"
)

// buildDaemon assembles the scanner, matcher, and origin-system clients
// around the shared store and progress tracker.
func buildDaemon(cfg *config.Config, st *store.Store, logger *slog.Logger) (*daemon.Daemon, error) {
	tracker := progress.NewTracker()
	extractor := ffprobe.NewExtractor(
		cfg.FFprobeBinary(),
		time.Duration(cfg.Scan.ProbeTimeoutSeconds)*time.Second,
	)
	sc := scanner.New(cfg, st, tracker, extractor, logger)

	var sources []matcher.Source
	var libraries []daemon.LibrarySource
	if cfg.Sonarr.Enabled {
		sonarr, err := servarr.NewSonarr(cfg.Sonarr)
		if err != nil {
			return nil, fmt.Errorf("sonarr client: %w", err)
		}
		sources = append(sources, sonarr)
		libraries = append(libraries, sonarr)
	}
	if cfg.Radarr.Enabled {
		radarr, err := servarr.NewRadarr(cfg.Radarr)
		if err != nil {
			return nil, fmt.Errorf("radarr client: %w", err)
		}
		sources = append(sources, radarr)
		libraries = append(libraries, radarr)
	}

	m := matcher.New(st, tracker, logger, sources...)
	return daemon.New(cfg, st, tracker, sc, m, logger, libraries...)
}

// reportPreflight logs check outcomes without blocking startup; a library
// that fails here will still fail its scan with a clear error.
func reportPreflight(ctx context.Context, cfg *config.Config, st *store.Store, logger *slog.Logger) {
	libraries, err := st.ListLibraryPaths(ctx)
	if err != nil {
		logger.Warn("preflight: list libraries", logging.Error(err))
	}
	for _, result := range preflight.RunAll(ctx, cfg, libraries) {
		if result.Passed {
			logger.Info("preflight check passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail))
			continue
		}
		logger.Warn("preflight check failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail))
	}
}
