package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"playarr/internal/config"
	"playarr/internal/discovery"
	"playarr/internal/logging"
	"playarr/internal/media"
	"playarr/internal/progress"
	"playarr/internal/store"
)

// Extractor produces technical attributes for a single file. A broken
// result means the file could not be parsed; it is data, not an error.
type Extractor interface {
	Extract(ctx context.Context, path string) (*media.TechnicalAttributes, *media.BrokenResult)
}

// ErrScanNotActive indicates a cancel request targeted a scan this process
// is not running.
var ErrScanNotActive = errors.New("scan not active")

// Scanner owns all in-flight scans for the process.
type Scanner struct {
	cfg       *config.Config
	store     *store.Store
	tracker   *progress.Tracker
	extractor Extractor
	logger    *slog.Logger

	mu     sync.Mutex
	active map[int64]context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Scanner.
func New(cfg *config.Config, st *store.Store, tracker *progress.Tracker, extractor Extractor, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scanner{
		cfg:       cfg,
		store:     st,
		tracker:   tracker,
		extractor: extractor,
		logger:    logger,
		active:    make(map[int64]context.CancelFunc),
	}
}

// StartScan begins a scan of one library path. It fails with
// store.ErrScanConflict while another scan of the same path is active.
// The scan itself runs on a background goroutine; callers poll progress
// through the returned scan's operation id.
func (s *Scanner) StartScan(ctx context.Context, libraryPathID int64) (*store.LibraryScan, error) {
	lp, err := s.store.GetLibraryPath(ctx, libraryPathID)
	if err != nil {
		return nil, fmt.Errorf("start scan: %w", err)
	}

	operationID := s.tracker.Create("scan")
	scan, err := s.store.CreateScan(ctx, lp.ID, operationID)
	if err != nil {
		_ = s.tracker.Fail(operationID, err.Error())
		return nil, err
	}
	if err := s.store.TransitionScan(ctx, scan.ID, store.ScanRunning, ""); err != nil {
		_ = s.tracker.Fail(operationID, err.Error())
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.active[scan.ID] = cancel
	s.mu.Unlock()

	logger := logging.NewComponentLogger(s.logger, "scanner").With(
		logging.Int64(logging.FieldLibrary, lp.ID),
		logging.Int64(logging.FieldScanID, scan.ID),
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.active, scan.ID)
			s.mu.Unlock()
			cancel()
		}()
		s.run(runCtx, logger, lp, scan.ID, operationID)
	}()

	return s.store.GetScan(ctx, scan.ID)
}

// CancelScan requests cooperative cancellation of an in-flight scan. The
// scan finishes its current file before transitioning to Cancelled.
func (s *Scanner) CancelScan(scanID int64) error {
	s.mu.Lock()
	cancel, ok := s.active[scanID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("scan %d: %w", scanID, ErrScanNotActive)
	}
	cancel()
	return nil
}

// Stop cancels every in-flight scan and waits for their goroutines to
// finish. Already-started files complete; their records are kept.
func (s *Scanner) Stop() {
	s.mu.Lock()
	for _, cancel := range s.active {
		cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Wait blocks until all in-flight scans have finished. Intended for tests
// and shutdown paths that already triggered cancellation.
func (s *Scanner) Wait() {
	s.wg.Wait()
}

func (s *Scanner) run(ctx context.Context, logger *slog.Logger, lp *store.LibraryPath, scanID int64, operationID string) {
	walker := &discovery.Walker{Root: lp.Path}

	// Warnings from the counting pass are only logged; the walk pass sees
	// the same paths and persists them once.
	total, _, err := walker.Count(ctx)
	if err != nil {
		s.finishFailed(logger, scanID, operationID, fmt.Sprintf("discovery failed: %v", err))
		return
	}
	_ = s.store.UpdateScanCounts(ctx, scanID, total, 0, 0, 0)
	_ = s.tracker.Update(operationID, 0, total, 0, 0, "")

	logger.Info("scan started",
		logging.String(logging.FieldFile, lp.Path),
		logging.Int("total_files", total),
	)

	var processed, broken, failed int
	warnings, walkErr := walker.Walk(ctx, func(candidate discovery.Candidate) error {
		wasBroken, err := s.analyzeFile(ctx, logger, lp.ID, scanID, candidate)
		switch {
		case errors.Is(err, context.Canceled):
			return err
		case err != nil:
			failed++
			if recErr := s.store.RecordFailedFile(ctx, scanID, candidate.VideoPath, "persistence", err.Error()); recErr != nil {
				logger.Error("record failed file", logging.Error(recErr))
			}
		case wasBroken:
			broken++
		}
		processed++
		if err := s.store.UpdateScanCounts(ctx, scanID, total, processed, broken, failed); err != nil {
			logger.Error("update scan counts", logging.Error(err))
		}
		_ = s.tracker.Update(operationID, processed, total, broken, failed, candidate.VideoPath)
		return nil
	})
	// Warnings persist even when the walk context was cancelled.
	s.recordWarnings(context.WithoutCancel(ctx), logger, scanID, warnings)

	switch {
	case walkErr == nil:
		if err := s.store.TransitionScan(ctx, scanID, store.ScanCompleted, ""); err != nil {
			logger.Error("finalize scan", logging.Error(err))
		}
		_ = s.tracker.Complete(operationID, broken, failed)
		logger.Info("scan completed",
			logging.Int("processed", processed),
			logging.Int("broken", broken),
			logging.Int("failed", failed),
		)
	case errors.Is(walkErr, context.Canceled):
		// Cancellation context is detached from the walk context here so
		// the final status write still lands.
		if err := s.store.TransitionScan(context.Background(), scanID, store.ScanCancelled, ""); err != nil {
			logger.Error("finalize cancelled scan", logging.Error(err))
		}
		_ = s.tracker.Complete(operationID, broken, failed)
		logger.Info("scan cancelled", logging.Int("processed", processed))
	default:
		s.finishFailed(logger, scanID, operationID, fmt.Sprintf("discovery failed: %v", walkErr))
	}
}

func (s *Scanner) finishFailed(logger *slog.Logger, scanID int64, operationID, reason string) {
	if err := s.store.TransitionScan(context.Background(), scanID, store.ScanFailed, reason); err != nil {
		logger.Error("finalize failed scan", logging.Error(err))
	}
	_ = s.tracker.Fail(operationID, reason)
	logger.Error("scan failed", logging.String("reason", reason))
}

func (s *Scanner) recordWarnings(ctx context.Context, logger *slog.Logger, scanID int64, warnings []discovery.Warning) {
	for _, warning := range warnings {
		logger.Warn("unreadable path skipped",
			logging.String(logging.FieldFile, warning.Path),
			logging.Error(warning.Err),
		)
		if err := s.store.RecordFailedFile(ctx, scanID, warning.Path, "discovery", warning.Err.Error()); err != nil {
			logger.Error("record discovery warning", logging.Error(err))
		}
	}
}
