package scanner_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"playarr/internal/config"
	"playarr/internal/logging"
	"playarr/internal/media"
	"playarr/internal/progress"
	"playarr/internal/scanner"
	"playarr/internal/store"
	"playarr/internal/testsupport"
)

// stubExtractor hands back canned attributes without touching ffprobe.
// When gate is set, each extraction announces itself on started and then
// blocks until the test releases it or the scan context is cancelled.
type stubExtractor struct {
	mu      sync.Mutex
	calls   []string
	broken  map[string]string
	gate    chan struct{}
	started chan string
}

func (e *stubExtractor) Extract(ctx context.Context, path string) (*media.TechnicalAttributes, *media.BrokenResult) {
	if e.started != nil {
		e.started <- path
	}
	if e.gate != nil {
		select {
		case <-e.gate:
		case <-ctx.Done():
			return nil, &media.BrokenResult{Path: path, Reason: "aborted"}
		}
	}
	e.mu.Lock()
	e.calls = append(e.calls, path)
	e.mu.Unlock()

	if reason, ok := e.broken[path]; ok {
		return nil, &media.BrokenResult{Path: path, Reason: reason}
	}
	return &media.TechnicalAttributes{
		Path:            path,
		Container:       "mkv",
		SizeBytes:       1 << 30,
		DurationSeconds: 3600,
		VideoCodec:      "h264",
		CodecTag:        "avc1",
		CodecTagMatches: true,
		Width:           1920,
		Height:          1080,
		BitDepth:        8,
		Audio:           []media.AudioTrack{{Codec: "aac", Channels: 6}},
	}, nil
}

func (e *stubExtractor) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

type scanHarness struct {
	cfg     *config.Config
	store   *store.Store
	tracker *progress.Tracker
	scanner *scanner.Scanner
	library *store.LibraryPath
	root    string
}

func newScanHarness(t *testing.T, extractor scanner.Extractor, videos ...string) *scanHarness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	tracker := progress.NewTracker()

	root := t.TempDir()
	for _, name := range videos {
		testsupport.WriteFile(t, filepath.Join(root, name), 64)
	}
	lp := testsupport.NewLibraryPath(t, st, root)

	return &scanHarness{
		cfg:     cfg,
		store:   st,
		tracker: tracker,
		scanner: scanner.New(cfg, st, tracker, extractor, logging.NewNop()),
		library: lp,
		root:    root,
	}
}

func TestScanCompletesAndPersistsRecords(t *testing.T) {
	extractor := &stubExtractor{}
	h := newScanHarness(t, extractor, "a.mkv", "b.mp4", "c.mkv", "c.srt", ".hidden.mkv")
	ctx := context.Background()

	scan, err := h.scanner.StartScan(ctx, h.library.ID)
	if err != nil {
		t.Fatalf("StartScan: %v", err)
	}
	h.scanner.Wait()

	final, err := h.store.GetScan(ctx, scan.ID)
	if err != nil {
		t.Fatalf("GetScan: %v", err)
	}
	if final.Status != store.ScanCompleted {
		t.Fatalf("status = %s, want completed (%s)", final.Status, final.ErrorMessage)
	}
	if final.TotalFiles != 3 || final.ProcessedFiles != 3 {
		t.Errorf("counts = %d/%d, want 3/3", final.ProcessedFiles, final.TotalFiles)
	}

	records, err := h.store.ListRecords(ctx, store.RecordFilter{})
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("record count = %d, want 3", len(records))
	}
	for _, rec := range records {
		if rec.Broken {
			t.Errorf("record %s unexpectedly broken", rec.Path)
		}
		if rec.Score == 0 || rec.VerdictsJSON == "" {
			t.Errorf("record %s missing rating output: %+v", rec.Path, rec)
		}
	}

	snap, ok := h.tracker.Get(scan.OperationID)
	if !ok {
		t.Fatal("no progress entry for scan")
	}
	if snap.Status != progress.StatusCompleted || snap.Processed != 3 {
		t.Errorf("progress snapshot = %+v", snap)
	}
}

func TestScanRecordsBrokenFilesAsData(t *testing.T) {
	extractor := &stubExtractor{}
	h := newScanHarness(t, extractor, "good.mkv", "corrupt.mkv")
	extractor.broken = map[string]string{
		filepath.Join(h.root, "corrupt.mkv"): "ffprobe exit 1: moov atom not found",
	}
	ctx := context.Background()

	scan, err := h.scanner.StartScan(ctx, h.library.ID)
	if err != nil {
		t.Fatalf("StartScan: %v", err)
	}
	h.scanner.Wait()

	final, _ := h.store.GetScan(ctx, scan.ID)
	if final.Status != store.ScanCompleted {
		t.Fatalf("status = %s, want completed", final.Status)
	}
	if final.ProcessedFiles != 2 || final.BrokenFiles != 1 {
		t.Errorf("processed/broken = %d/%d, want 2/1", final.ProcessedFiles, final.BrokenFiles)
	}

	rec, err := h.store.GetRecordByPath(ctx, filepath.Join(h.root, "corrupt.mkv"))
	if err != nil {
		t.Fatalf("GetRecordByPath: %v", err)
	}
	if !rec.Broken || rec.BrokenReason == "" {
		t.Errorf("broken record not persisted: %+v", rec)
	}

	// Media-parse failures are data, not infrastructure failures.
	failed, err := h.store.ListFailedFiles(ctx, scan.ID)
	if err != nil {
		t.Fatalf("ListFailedFiles: %v", err)
	}
	if len(failed) != 0 {
		t.Errorf("failed files = %+v, want none", failed)
	}
}

func TestScanConflictAndRecoveryAfterCancel(t *testing.T) {
	extractor := &stubExtractor{
		gate:    make(chan struct{}),
		started: make(chan string, 8),
	}
	h := newScanHarness(t, extractor, "a.mkv", "b.mkv", "c.mkv")
	ctx := context.Background()

	scan, err := h.scanner.StartScan(ctx, h.library.ID)
	if err != nil {
		t.Fatalf("StartScan: %v", err)
	}
	waitForStart(t, extractor.started)

	if _, err := h.scanner.StartScan(ctx, h.library.ID); !errors.Is(err, store.ErrScanConflict) {
		t.Errorf("second StartScan = %v, want ErrScanConflict", err)
	}

	if err := h.scanner.CancelScan(scan.ID); err != nil {
		t.Fatalf("CancelScan: %v", err)
	}
	h.scanner.Wait()

	final, _ := h.store.GetScan(ctx, scan.ID)
	if final.Status != store.ScanCancelled {
		t.Fatalf("status = %s, want cancelled", final.Status)
	}

	// Once the first scan is terminal the same library accepts a new scan.
	extractor.gate = nil
	extractor.started = nil
	next, err := h.scanner.StartScan(ctx, h.library.ID)
	if err != nil {
		t.Fatalf("StartScan after cancel: %v", err)
	}
	h.scanner.Wait()
	finalNext, _ := h.store.GetScan(ctx, next.ID)
	if finalNext.Status != store.ScanCompleted {
		t.Errorf("second scan status = %s, want completed", finalNext.Status)
	}
}

func TestCancelStopsBetweenFiles(t *testing.T) {
	extractor := &stubExtractor{
		gate:    make(chan struct{}),
		started: make(chan string, 8),
	}
	h := newScanHarness(t, extractor, "a.mkv", "b.mkv", "c.mkv", "d.mkv", "e.mkv")
	ctx := context.Background()

	scan, err := h.scanner.StartScan(ctx, h.library.ID)
	if err != nil {
		t.Fatalf("StartScan: %v", err)
	}

	// Release exactly two files, then cancel while the third is in flight.
	for i := 0; i < 2; i++ {
		waitForStart(t, extractor.started)
		extractor.gate <- struct{}{}
	}
	waitForStart(t, extractor.started)
	if err := h.scanner.CancelScan(scan.ID); err != nil {
		t.Fatalf("CancelScan: %v", err)
	}
	h.scanner.Wait()

	final, _ := h.store.GetScan(ctx, scan.ID)
	if final.Status != store.ScanCancelled {
		t.Fatalf("status = %s, want cancelled", final.Status)
	}

	records, err := h.store.ListRecords(ctx, store.RecordFilter{})
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("records after cancel = %d, want 2", len(records))
	}
	if final.ProcessedFiles != 2 {
		t.Errorf("processed = %d, want 2", final.ProcessedFiles)
	}
	if err := h.scanner.CancelScan(scan.ID); !errors.Is(err, scanner.ErrScanNotActive) {
		t.Errorf("cancel of finished scan = %v, want ErrScanNotActive", err)
	}
}

func TestCancelledScanKeepsDiscoveryWarnings(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits do not apply to root")
	}
	extractor := &stubExtractor{
		gate:    make(chan struct{}),
		started: make(chan string, 8),
	}
	h := newScanHarness(t, extractor, "b.mkv", "c.mkv")
	ctx := context.Background()

	locked := filepath.Join(h.root, "a_locked")
	if err := os.Mkdir(locked, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.Chmod(locked, 0o000); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	scan, err := h.scanner.StartScan(ctx, h.library.ID)
	if err != nil {
		t.Fatalf("StartScan: %v", err)
	}

	// The locked directory sorts before the first video, so its warning is
	// collected before cancellation hits.
	waitForStart(t, extractor.started)
	if err := h.scanner.CancelScan(scan.ID); err != nil {
		t.Fatalf("CancelScan: %v", err)
	}
	h.scanner.Wait()

	final, _ := h.store.GetScan(ctx, scan.ID)
	if final.Status != store.ScanCancelled {
		t.Fatalf("status = %s, want cancelled", final.Status)
	}
	failed, err := h.store.ListFailedFiles(ctx, scan.ID)
	if err != nil {
		t.Fatalf("ListFailedFiles: %v", err)
	}
	if len(failed) != 1 || failed[0].Stage != "discovery" || failed[0].Path != locked {
		t.Errorf("discovery warning lost on cancellation: %+v", failed)
	}
}

func TestScanFailsWhenRootVanishes(t *testing.T) {
	extractor := &stubExtractor{}
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	tracker := progress.NewTracker()
	sc := scanner.New(cfg, st, tracker, extractor, logging.NewNop())
	ctx := context.Background()

	lp := testsupport.NewLibraryPath(t, st, filepath.Join(t.TempDir(), "missing"))
	scan, err := sc.StartScan(ctx, lp.ID)
	if err != nil {
		t.Fatalf("StartScan: %v", err)
	}
	sc.Wait()

	final, _ := st.GetScan(ctx, scan.ID)
	if final.Status != store.ScanFailed {
		t.Fatalf("status = %s, want failed", final.Status)
	}
	if final.ErrorMessage == "" {
		t.Error("failed scan missing reason")
	}
	snap, _ := tracker.Get(scan.OperationID)
	if snap.Status != progress.StatusError {
		t.Errorf("progress status = %s, want error", snap.Status)
	}
}

func TestRescanFileRefreshesRecord(t *testing.T) {
	extractor := &stubExtractor{}
	h := newScanHarness(t, extractor, "a.mkv")
	ctx := context.Background()

	if _, err := h.scanner.StartScan(ctx, h.library.ID); err != nil {
		t.Fatalf("StartScan: %v", err)
	}
	h.scanner.Wait()

	rec, err := h.store.GetRecordByPath(ctx, filepath.Join(h.root, "a.mkv"))
	if err != nil {
		t.Fatalf("GetRecordByPath: %v", err)
	}

	// The file degrades between scans; the rescan must replace the record.
	extractor.broken = map[string]string{rec.Path: "ffprobe exit 1: invalid data"}
	updated, err := h.scanner.RescanFile(ctx, rec.ID)
	if err != nil {
		t.Fatalf("RescanFile: %v", err)
	}
	if !updated.Broken {
		t.Errorf("rescan did not mark record broken: %+v", updated)
	}
	if updated.ID != rec.ID {
		t.Errorf("rescan created a new row: %d vs %d", updated.ID, rec.ID)
	}
}

func TestRecalculateRatingWithoutExtraction(t *testing.T) {
	extractor := &stubExtractor{}
	h := newScanHarness(t, extractor, "a.mkv")
	ctx := context.Background()

	if _, err := h.scanner.StartScan(ctx, h.library.ID); err != nil {
		t.Fatalf("StartScan: %v", err)
	}
	h.scanner.Wait()
	rec, err := h.store.GetRecordByPath(ctx, filepath.Join(h.root, "a.mkv"))
	if err != nil {
		t.Fatalf("GetRecordByPath: %v", err)
	}
	before := extractor.callCount()

	// Tighten the config so the same attributes now rate worse.
	h.cfg.Rating.SupportedVideoCodecs = []string{"av1"}
	updated, err := h.scanner.RecalculateRating(ctx, rec.ID)
	if err != nil {
		t.Fatalf("RecalculateRating: %v", err)
	}
	if updated.Score >= rec.Score {
		t.Errorf("score did not drop: %d -> %d", rec.Score, updated.Score)
	}
	if extractor.callCount() != before {
		t.Error("recalculation invoked extraction")
	}
}

func TestRecalculateRejectsBrokenRecord(t *testing.T) {
	extractor := &stubExtractor{}
	h := newScanHarness(t, extractor, "corrupt.mkv")
	extractor.broken = map[string]string{
		filepath.Join(h.root, "corrupt.mkv"): "ffprobe exit 1",
	}
	ctx := context.Background()

	if _, err := h.scanner.StartScan(ctx, h.library.ID); err != nil {
		t.Fatalf("StartScan: %v", err)
	}
	h.scanner.Wait()
	rec, err := h.store.GetRecordByPath(ctx, filepath.Join(h.root, "corrupt.mkv"))
	if err != nil {
		t.Fatalf("GetRecordByPath: %v", err)
	}
	if _, err := h.scanner.RecalculateRating(ctx, rec.ID); err == nil {
		t.Error("expected error recalculating a broken record")
	}
}

func waitForStart(t *testing.T, started <-chan string) {
	t.Helper()
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for extraction to start")
	}
}
