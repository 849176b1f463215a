package api

import (
	"context"
	"errors"
	"fmt"

	"playarr/internal/matcher"
	"playarr/internal/progress"
	"playarr/internal/scanner"
	"playarr/internal/store"
)

// ErrOperationUnknown indicates no progress entry exists for an operation.
// Progress is in-memory only, so entries from a previous process are gone
// even though the scan row survives.
var ErrOperationUnknown = errors.New("operation unknown")

// Service is the operations facade shared by the HTTP server and the CLI.
type Service struct {
	store   *store.Store
	scanner *scanner.Scanner
	matcher *matcher.Matcher
	tracker *progress.Tracker
}

// NewService wires the facade.
func NewService(st *store.Store, sc *scanner.Scanner, m *matcher.Matcher, tracker *progress.Tracker) *Service {
	return &Service{store: st, scanner: sc, matcher: m, tracker: tracker}
}

// Libraries lists registered scan roots.
func (s *Service) Libraries(ctx context.Context) ([]Library, error) {
	paths, err := s.store.ListLibraryPaths(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Library, 0, len(paths))
	for _, lp := range paths {
		out = append(out, FromLibrary(lp))
	}
	return out, nil
}

// AddLibrary registers a scan root.
func (s *Service) AddLibrary(ctx context.Context, path, name string) (Library, error) {
	lp, err := s.store.AddLibraryPath(ctx, path, name, store.SourceManual)
	if err != nil {
		return Library{}, err
	}
	return FromLibrary(lp), nil
}

// RemoveLibrary deletes a scan root and its analysis history.
func (s *Service) RemoveLibrary(ctx context.Context, id int64) error {
	return s.store.RemoveLibraryPath(ctx, id)
}

// StartScan launches a background scan and returns it immediately.
func (s *Service) StartScan(ctx context.Context, libraryID int64) (Scan, error) {
	sc, err := s.scanner.StartScan(ctx, libraryID)
	if err != nil {
		return Scan{}, err
	}
	return FromScan(sc), nil
}

// CancelScan requests cooperative cancellation of a running scan.
func (s *Service) CancelScan(_ context.Context, scanID int64) error {
	return s.scanner.CancelScan(scanID)
}

// Scans lists recent scans, newest first.
func (s *Service) Scans(ctx context.Context, limit int) ([]Scan, error) {
	scans, err := s.store.ListScans(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Scan, 0, len(scans))
	for _, sc := range scans {
		out = append(out, FromScan(sc))
	}
	return out, nil
}

// GetScan fetches one scan.
func (s *Service) GetScan(ctx context.Context, scanID int64) (Scan, error) {
	sc, err := s.store.GetScan(ctx, scanID)
	if err != nil {
		return Scan{}, err
	}
	return FromScan(sc), nil
}

// GetScanProgress resolves a scan to its live progress entry. For scans
// whose progress entry is gone (swept, or from a previous process) it
// synthesizes a terminal view from the persisted row.
func (s *Service) GetScanProgress(ctx context.Context, scanID int64) (OperationProgress, error) {
	sc, err := s.store.GetScan(ctx, scanID)
	if err != nil {
		return OperationProgress{}, err
	}
	if snap, ok := s.tracker.Get(sc.OperationID); ok {
		return FromSnapshot(snap), nil
	}
	if !sc.Status.IsTerminal() {
		return OperationProgress{}, fmt.Errorf("scan %d: %w", scanID, ErrOperationUnknown)
	}
	view := OperationProgress{
		OperationID: sc.OperationID,
		Kind:        "scan",
		Processed:   sc.ProcessedFiles,
		Total:       sc.TotalFiles,
		Secondary:   sc.BrokenFiles,
		Errors:      sc.FailedFiles,
		Message:     sc.ErrorMessage,
		PerSecond:   sc.FilesPerSecond(),
	}
	if sc.Status == store.ScanFailed {
		view.Status = string(progress.StatusError)
	} else {
		view.Status = string(progress.StatusCompleted)
	}
	return view, nil
}

// GetOperationProgress fetches any live operation by its id.
func (s *Service) GetOperationProgress(_ context.Context, operationID string) (OperationProgress, error) {
	snap, ok := s.tracker.Get(operationID)
	if !ok {
		return OperationProgress{}, fmt.Errorf("operation %s: %w", operationID, ErrOperationUnknown)
	}
	return FromSnapshot(snap), nil
}

// StartMatch launches a background match run and returns its operation id.
func (s *Service) StartMatch(ctx context.Context) (string, error) {
	return s.matcher.Start(ctx)
}

// Records lists analyzed files.
func (s *Service) Records(ctx context.Context, filter store.RecordFilter) ([]Record, error) {
	records, err := s.store.ListRecords(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		out = append(out, FromRecord(rec))
	}
	return out, nil
}

// GetRecord fetches one analyzed file.
func (s *Service) GetRecord(ctx context.Context, id int64) (Record, error) {
	rec, err := s.store.GetRecord(ctx, id)
	if err != nil {
		return Record{}, err
	}
	return FromRecord(rec), nil
}

// RescanFile re-runs extraction and rating for one file. A file that has
// no Servarr match yet is matched against the current catalogs afterwards,
// so a rescan of a freshly imported file attaches its origin in one step.
func (s *Service) RescanFile(ctx context.Context, recordID int64) (Record, error) {
	rec, err := s.scanner.RescanFile(ctx, recordID)
	if err != nil {
		return Record{}, err
	}
	if rec.MatchedService == "" {
		if updated, err := s.matchRecord(ctx, rec); err == nil && updated != nil {
			rec = updated
		}
	}
	return FromRecord(rec), nil
}

// matchRecord resolves one record against the catalogs and persists a hit.
// A nil record with nil error means no catalog entry claimed the path.
func (s *Service) matchRecord(ctx context.Context, rec *store.AnalysisRecord) (*store.AnalysisRecord, error) {
	file, ok, err := s.matcher.MatchOne(ctx, rec)
	if err != nil || !ok {
		return nil, err
	}
	if err := s.store.SetMatch(ctx, rec.ID, file.Service, file.Title, file.ExternalID, file.Season, file.Episode, file.Year); err != nil {
		return nil, err
	}
	return s.store.GetRecord(ctx, rec.ID)
}

// RecalculateRating re-rates stored attributes without extraction.
func (s *Service) RecalculateRating(ctx context.Context, recordID int64) (Record, error) {
	rec, err := s.scanner.RecalculateRating(ctx, recordID)
	if err != nil {
		return Record{}, err
	}
	return FromRecord(rec), nil
}
