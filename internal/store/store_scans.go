package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrScanConflict indicates another scan is already active for the library.
var ErrScanConflict = errors.New("scan already active for library path")

const scanColumns = "id, library_path_id, operation_id, status, total_files, processed_files, broken_files, failed_files, error_message, started_at, finished_at, created_at, updated_at"

// CreateScan inserts a new scan in Pending. The insert and the one-active-
// scan check run in a single transaction so concurrent starters cannot both
// slip past the check.
func (s *Store) CreateScan(ctx context.Context, libraryPathID int64, operationID string) (*LibraryScan, error) {
	ctx = ensureContext(ctx)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin scan tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var active int
	err = tx.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM library_scans WHERE library_path_id = ? AND status IN (?, ?)",
		libraryPathID, ScanPending, ScanRunning,
	).Scan(&active)
	if err != nil {
		return nil, fmt.Errorf("check active scans: %w", err)
	}
	if active > 0 {
		return nil, fmt.Errorf("library path %d: %w", libraryPathID, ErrScanConflict)
	}

	now := timestamp(time.Now())
	res, err := tx.ExecContext(ctx,
		`INSERT INTO library_scans (library_path_id, operation_id, status, started_at, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		libraryPathID, operationID, ScanPending, now, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert scan: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit scan: %w", err)
	}
	return s.GetScan(ctx, id)
}

// GetScan fetches one scan by id.
func (s *Store) GetScan(ctx context.Context, id int64) (*LibraryScan, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT "+scanColumns+" FROM library_scans WHERE id = ?", id)
	return scanLibraryScan(row)
}

// ActiveScanForLibrary returns the Pending or Running scan for a library
// path, or ErrNotFound when none is active.
func (s *Store) ActiveScanForLibrary(ctx context.Context, libraryPathID int64) (*LibraryScan, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT "+scanColumns+" FROM library_scans WHERE library_path_id = ? AND status IN (?, ?) ORDER BY id DESC LIMIT 1",
		libraryPathID, ScanPending, ScanRunning)
	return scanLibraryScan(row)
}

// ListScans returns the most recent scans, newest first.
func (s *Store) ListScans(ctx context.Context, limit int) ([]*LibraryScan, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ensureContext(ctx),
		"SELECT "+scanColumns+" FROM library_scans ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*LibraryScan
	for rows.Next() {
		sc, err := scanLibraryScan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// TransitionScan moves a scan to a new status. Terminal rows never change:
// the WHERE clause only matches active statuses, and a zero-row update on a
// terminal scan reports an error so callers notice lost transitions.
func (s *Store) TransitionScan(ctx context.Context, id int64, status ScanStatus, errorMessage string) error {
	now := time.Now()
	var finished any
	if status.IsTerminal() {
		finished = timestamp(now)
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE library_scans
         SET status = ?, error_message = ?, finished_at = COALESCE(?, finished_at), updated_at = ?
         WHERE id = ? AND status IN (?, ?)`,
		status, nullableString(errorMessage), finished, timestamp(now),
		id, ScanPending, ScanRunning,
	)
	if err != nil {
		return fmt.Errorf("transition scan %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		current, getErr := s.GetScan(ctx, id)
		if getErr != nil {
			return fmt.Errorf("transition scan %d: %w", id, getErr)
		}
		return fmt.Errorf("transition scan %d to %s: scan already %s", id, status, current.Status)
	}
	return nil
}

// UpdateScanCounts refreshes progress counters on a running scan.
func (s *Store) UpdateScanCounts(ctx context.Context, id int64, total, processed, broken, failed int) error {
	if err := retryOnBusy(ensureContext(ctx), func() error {
		_, err := s.db.ExecContext(ensureContext(ctx),
			`UPDATE library_scans
             SET total_files = ?, processed_files = ?, broken_files = ?, failed_files = ?, updated_at = ?
             WHERE id = ?`,
			total, processed, broken, failed, timestamp(time.Now()), id)
		return err
	}); err != nil {
		return fmt.Errorf("update scan counts: %w", err)
	}
	return nil
}

// ReconcileInterrupted fails scans left Pending or Running by a previous
// process. Called once at daemon startup, before any new scan may begin.
func (s *Store) ReconcileInterrupted(ctx context.Context) (int64, error) {
	now := timestamp(time.Now())
	res, err := s.execWithRetry(ctx,
		`UPDATE library_scans
         SET status = ?, error_message = 'interrupted by daemon restart', finished_at = ?, updated_at = ?
         WHERE status IN (?, ?)`,
		ScanFailed, now, now, ScanPending, ScanRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("reconcile interrupted scans: %w", err)
	}
	return res.RowsAffected()
}

func scanLibraryScan(scanner interface{ Scan(dest ...any) error }) (*LibraryScan, error) {
	var (
		sc          LibraryScan
		statusStr   string
		operationID sql.NullString
		errMsg      sql.NullString
		startedRaw  sql.NullString
		finishedRaw sql.NullString
		createdRaw  sql.NullString
		updatedRaw  sql.NullString
	)
	if err := scanner.Scan(
		&sc.ID, &sc.LibraryPathID, &operationID, &statusStr,
		&sc.TotalFiles, &sc.ProcessedFiles, &sc.BrokenFiles, &sc.FailedFiles,
		&errMsg, &startedRaw, &finishedRaw, &createdRaw, &updatedRaw,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan library scan: %w", err)
	}
	status, ok := ParseScanStatus(statusStr)
	if !ok {
		return nil, fmt.Errorf("unknown scan status %q", statusStr)
	}
	sc.Status = status
	sc.OperationID = operationID.String
	sc.ErrorMessage = errMsg.String
	sc.StartedAt = parseTimestamp(startedRaw)
	if finishedRaw.Valid && finishedRaw.String != "" {
		finished := parseTimestamp(finishedRaw)
		sc.FinishedAt = &finished
	}
	sc.CreatedAt = parseTimestamp(createdRaw)
	sc.UpdatedAt = parseTimestamp(updatedRaw)
	return &sc, nil
}
