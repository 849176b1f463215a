package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound indicates the requested row does not exist.
var ErrNotFound = errors.New("not found")

const libraryColumns = "id, path, name, source, created_at, updated_at"

// AddLibraryPath registers a new scan root. Paths are unique; registering
// an existing path updates its name and source instead of failing, which is
// what the Servarr sync relies on.
func (s *Store) AddLibraryPath(ctx context.Context, path, name, source string) (*LibraryPath, error) {
	if path == "" {
		return nil, fmt.Errorf("add library path: empty path")
	}
	if source == "" {
		source = SourceManual
	}
	now := timestamp(time.Now())
	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO library_paths (path, name, source, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(path) DO UPDATE SET name = excluded.name, source = excluded.source, updated_at = excluded.updated_at`,
		path, name, source, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert library path: %w", err)
	}
	return s.GetLibraryPathByPath(ctx, path)
}

// GetLibraryPath fetches one library root by id.
func (s *Store) GetLibraryPath(ctx context.Context, id int64) (*LibraryPath, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT "+libraryColumns+" FROM library_paths WHERE id = ?", id)
	return scanLibraryPath(row)
}

// GetLibraryPathByPath fetches one library root by its filesystem path.
func (s *Store) GetLibraryPathByPath(ctx context.Context, path string) (*LibraryPath, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT "+libraryColumns+" FROM library_paths WHERE path = ?", path)
	return scanLibraryPath(row)
}

// ListLibraryPaths returns all registered roots ordered by path.
func (s *Store) ListLibraryPaths(ctx context.Context) ([]*LibraryPath, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		"SELECT "+libraryColumns+" FROM library_paths ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("list library paths: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*LibraryPath
	for rows.Next() {
		lp, err := scanLibraryPath(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, lp)
	}
	return out, rows.Err()
}

// RemoveLibraryPath deletes a root and, via cascade, its scans and records.
func (s *Store) RemoveLibraryPath(ctx context.Context, id int64) error {
	res, err := s.execWithRetry(ctx, "DELETE FROM library_paths WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete library path: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("delete library path %d: %w", id, ErrNotFound)
	}
	return nil
}

func scanLibraryPath(scanner interface{ Scan(dest ...any) error }) (*LibraryPath, error) {
	var (
		lp         LibraryPath
		name       sql.NullString
		source     sql.NullString
		createdRaw sql.NullString
		updatedRaw sql.NullString
	)
	if err := scanner.Scan(&lp.ID, &lp.Path, &name, &source, &createdRaw, &updatedRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan library path: %w", err)
	}
	lp.Name = name.String
	lp.Source = source.String
	lp.CreatedAt = parseTimestamp(createdRaw)
	lp.UpdatedAt = parseTimestamp(updatedRaw)
	return &lp, nil
}
