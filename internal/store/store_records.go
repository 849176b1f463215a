package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const recordColumns = "id, library_path_id, scan_id, path, broken, broken_reason, attributes_json, score, category, verdicts_json, direct_play_clients, remux_clients, transcode_clients, issues_json, recommendations_json, matched_service, matched_title, matched_external_id, matched_season, matched_episode, matched_year, matched_at, processing_status, analyzed_at, created_at, updated_at"

// UpsertRecord persists one analysis result keyed by path. Rescanning a
// file replaces its previous analysis in place; origin-match columns
// survive the upsert because a rescan does not invalidate where a file
// came from.
func (s *Store) UpsertRecord(ctx context.Context, rec *AnalysisRecord) (*AnalysisRecord, error) {
	if rec == nil || rec.Path == "" {
		return nil, fmt.Errorf("upsert record: missing path")
	}
	now := time.Now()
	analyzedAt := rec.AnalyzedAt
	if analyzedAt.IsZero() {
		analyzedAt = now
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO analysis_records (
            library_path_id, scan_id, path, broken, broken_reason,
            attributes_json, score, category, verdicts_json,
            direct_play_clients, remux_clients, transcode_clients,
            issues_json, recommendations_json,
            analyzed_at, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(path) DO UPDATE SET
            library_path_id = excluded.library_path_id,
            scan_id = excluded.scan_id,
            broken = excluded.broken,
            broken_reason = excluded.broken_reason,
            attributes_json = excluded.attributes_json,
            score = excluded.score,
            category = excluded.category,
            verdicts_json = excluded.verdicts_json,
            direct_play_clients = excluded.direct_play_clients,
            remux_clients = excluded.remux_clients,
            transcode_clients = excluded.transcode_clients,
            issues_json = excluded.issues_json,
            recommendations_json = excluded.recommendations_json,
            analyzed_at = excluded.analyzed_at,
            updated_at = excluded.updated_at`,
		rec.LibraryPathID, rec.ScanID, rec.Path, boolToInt(rec.Broken), nullableString(rec.BrokenReason),
		nullableString(rec.AttributesJSON), rec.Score, rec.Category, nullableString(rec.VerdictsJSON),
		rec.DirectPlayClients, rec.RemuxClients, rec.TranscodeClients,
		nullableString(rec.IssuesJSON), nullableString(rec.RecommendationsJSON),
		timestamp(analyzedAt), timestamp(now), timestamp(now),
	)
	if err != nil {
		return nil, fmt.Errorf("upsert record: %w", err)
	}
	return s.GetRecordByPath(ctx, rec.Path)
}

// UpdateRating rewrites only the rating columns of an existing record,
// leaving stored attributes untouched. This is the recalculation path.
func (s *Store) UpdateRating(ctx context.Context, id int64, score int, category, verdictsJSON, issuesJSON, recommendationsJSON string, directPlay, remux, transcode int) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE analysis_records
         SET score = ?, category = ?, verdicts_json = ?, issues_json = ?, recommendations_json = ?,
             direct_play_clients = ?, remux_clients = ?, transcode_clients = ?, updated_at = ?
         WHERE id = ? AND broken = 0`,
		score, category, nullableString(verdictsJSON), nullableString(issuesJSON), nullableString(recommendationsJSON),
		directPlay, remux, transcode, timestamp(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("update rating: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("update rating %d: %w", id, ErrNotFound)
	}
	return nil
}

// SetMatch records which Servarr item a file belongs to. Season and
// episode carry for series content, year for movies; the unused numbers
// stay zero.
func (s *Store) SetMatch(ctx context.Context, id int64, service, title, externalID string, season, episode, year int) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE analysis_records
         SET matched_service = ?, matched_title = ?, matched_external_id = ?,
             matched_season = ?, matched_episode = ?, matched_year = ?,
             matched_at = ?, updated_at = ?
         WHERE id = ?`,
		service, title, externalID, season, episode, year,
		timestamp(time.Now()), timestamp(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("set match: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("set match %d: %w", id, ErrNotFound)
	}
	return nil
}

// SetProcessingStatus flags a record as being reprocessed (or idle again).
func (s *Store) SetProcessingStatus(ctx context.Context, id int64, status string) error {
	if status != ProcessingIdle && status != ProcessingProcessing {
		return fmt.Errorf("set processing status: unknown status %q", status)
	}
	res, err := s.execWithRetry(ctx,
		"UPDATE analysis_records SET processing_status = ?, updated_at = ? WHERE id = ?",
		status, timestamp(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("set processing status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("set processing status %d: %w", id, ErrNotFound)
	}
	return nil
}

// GetRecord fetches one record by id.
func (s *Store) GetRecord(ctx context.Context, id int64) (*AnalysisRecord, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT "+recordColumns+" FROM analysis_records WHERE id = ?", id)
	return scanRecord(row)
}

// GetRecordByPath fetches one record by file path.
func (s *Store) GetRecordByPath(ctx context.Context, path string) (*AnalysisRecord, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT "+recordColumns+" FROM analysis_records WHERE path = ?", path)
	return scanRecord(row)
}

// RecordFilter narrows ListRecords.
type RecordFilter struct {
	LibraryPathID int64 // 0 means all libraries
	BrokenOnly    bool
	UnmatchedOnly bool
}

// ListRecords returns records ordered by path.
func (s *Store) ListRecords(ctx context.Context, filter RecordFilter) ([]*AnalysisRecord, error) {
	query := "SELECT " + recordColumns + " FROM analysis_records WHERE 1=1"
	var args []any
	if filter.LibraryPathID != 0 {
		query += " AND library_path_id = ?"
		args = append(args, filter.LibraryPathID)
	}
	if filter.BrokenOnly {
		query += " AND broken = 1"
	}
	if filter.UnmatchedOnly {
		query += " AND (matched_service IS NULL OR matched_service = '')"
	}
	query += " ORDER BY path"

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*AnalysisRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RecordFailedFile logs an infrastructure failure against a scan. A path
// already logged for the scan keeps its row; the retry count climbs and
// the stage/reason reflect the latest attempt.
func (s *Store) RecordFailedFile(ctx context.Context, scanID int64, path, stage, reason string) error {
	_, err := s.execWithRetry(ctx,
		`INSERT INTO failed_files (scan_id, path, stage, reason, created_at) VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(scan_id, path) DO UPDATE SET
             stage = excluded.stage,
             reason = excluded.reason,
             retry_count = retry_count + 1`,
		scanID, path, stage, reason, timestamp(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("record failed file: %w", err)
	}
	return nil
}

// ListFailedFiles returns the infrastructure failures for one scan.
func (s *Store) ListFailedFiles(ctx context.Context, scanID int64) ([]*FailedFile, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		"SELECT id, scan_id, path, stage, reason, retry_count, created_at FROM failed_files WHERE scan_id = ? ORDER BY id", scanID)
	if err != nil {
		return nil, fmt.Errorf("list failed files: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*FailedFile
	for rows.Next() {
		var (
			ff         FailedFile
			createdRaw sql.NullString
		)
		if err := rows.Scan(&ff.ID, &ff.ScanID, &ff.Path, &ff.Stage, &ff.Reason, &ff.RetryCount, &createdRaw); err != nil {
			return nil, fmt.Errorf("scan failed file: %w", err)
		}
		ff.CreatedAt = parseTimestamp(createdRaw)
		out = append(out, &ff)
	}
	return out, rows.Err()
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*AnalysisRecord, error) {
	var (
		rec             AnalysisRecord
		broken          int
		brokenReason    sql.NullString
		attributes      sql.NullString
		verdicts        sql.NullString
		issues          sql.NullString
		recommendations sql.NullString
		matchedService  sql.NullString
		matchedTitle    sql.NullString
		matchedExternal sql.NullString
		matchedRaw      sql.NullString
		analyzedRaw     sql.NullString
		createdRaw      sql.NullString
		updatedRaw      sql.NullString
	)
	if err := scanner.Scan(
		&rec.ID, &rec.LibraryPathID, &rec.ScanID, &rec.Path, &broken, &brokenReason,
		&attributes, &rec.Score, &rec.Category, &verdicts,
		&rec.DirectPlayClients, &rec.RemuxClients, &rec.TranscodeClients,
		&issues, &recommendations,
		&matchedService, &matchedTitle, &matchedExternal,
		&rec.MatchedSeason, &rec.MatchedEpisode, &rec.MatchedYear, &matchedRaw,
		&rec.ProcessingStatus,
		&analyzedRaw, &createdRaw, &updatedRaw,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan analysis record: %w", err)
	}
	rec.Broken = broken != 0
	rec.BrokenReason = brokenReason.String
	rec.AttributesJSON = attributes.String
	rec.VerdictsJSON = verdicts.String
	rec.IssuesJSON = issues.String
	rec.RecommendationsJSON = recommendations.String
	rec.MatchedService = matchedService.String
	rec.MatchedTitle = matchedTitle.String
	rec.MatchedExternalID = matchedExternal.String
	if matchedRaw.Valid && matchedRaw.String != "" {
		matched := parseTimestamp(matchedRaw)
		rec.MatchedAt = &matched
	}
	rec.AnalyzedAt = parseTimestamp(analyzedRaw)
	rec.CreatedAt = parseTimestamp(createdRaw)
	rec.UpdatedAt = parseTimestamp(updatedRaw)
	return &rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
