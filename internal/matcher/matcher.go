// Package matcher links analyzed files back to the Servarr catalog that
// manages them. Matching is exact: reported paths are translated through
// configured path mappings, normalized, and compared to stored record
// paths. Anything ambiguous or missing stays unmatched and is counted;
// the matcher never guesses.
package matcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/text/cases"

	"playarr/internal/config"
	"playarr/internal/logging"
	"playarr/internal/progress"
	"playarr/internal/store"
)

// MediaFile is one catalog entry reported by an origin system.
type MediaFile struct {
	Service    string
	ExternalID string
	Path       string
	Title      string
	Season     int
	Episode    int
	Year       int
}

// Source supplies catalog entries. Reported paths are in the origin
// system's own filesystem view; the matcher translates them locally.
type Source interface {
	Name() string
	Mappings() []config.PathMapping
	MediaFiles(ctx context.Context) ([]MediaFile, error)
}

// ErrMatchRunning indicates a match run is already in flight.
var ErrMatchRunning = errors.New("match already running")

var foldCaser = cases.Fold()

// ApplyMappings rewrites a reported path into local form. Mappings are
// ordered and the first matching prefix wins; a path no mapping covers is
// returned unchanged.
func ApplyMappings(path string, mappings []config.PathMapping) string {
	normalized := filepath.ToSlash(path)
	for _, mapping := range mappings {
		from := filepath.ToSlash(mapping.From)
		if strings.HasPrefix(normalized, from) {
			return filepath.ToSlash(mapping.To) + strings.TrimPrefix(normalized, from)
		}
	}
	return path
}

// NormalizePath produces the comparison key for exact matching: forward
// slashes, trailing separator trimmed, Unicode case folded.
func NormalizePath(path string) string {
	normalized := filepath.ToSlash(path)
	normalized = strings.TrimRight(normalized, "/")
	return foldCaser.String(normalized)
}

// Matcher runs match passes over unmatched analysis records.
type Matcher struct {
	store   *store.Store
	tracker *progress.Tracker
	sources []Source
	logger  *slog.Logger

	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup
}

// New constructs a Matcher over the given sources.
func New(st *store.Store, tracker *progress.Tracker, logger *slog.Logger, sources ...Source) *Matcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Matcher{
		store:   st,
		tracker: tracker,
		sources: sources,
		logger:  logging.NewComponentLogger(logger, "matcher"),
	}
}

// Start launches a match run on a background goroutine and returns its
// operation id for polling. Only one run may be active at a time.
func (m *Matcher) Start(ctx context.Context) (string, error) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return "", ErrMatchRunning
	}
	m.running = true
	m.mu.Unlock()

	operationID := m.tracker.Create("match")
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer func() {
			m.mu.Lock()
			m.running = false
			m.mu.Unlock()
		}()
		m.run(context.WithoutCancel(ctx), operationID)
	}()
	return operationID, nil
}

// Wait blocks until the current match run finishes.
func (m *Matcher) Wait() {
	m.wg.Wait()
}

func (m *Matcher) run(ctx context.Context, operationID string) {
	index, sourceErrors := m.buildIndex(ctx)
	if index == nil {
		m.tracker.Fail(operationID, "no origin system reachable")
		return
	}

	records, err := m.store.ListRecords(ctx, store.RecordFilter{UnmatchedOnly: true})
	if err != nil {
		_ = m.tracker.Fail(operationID, err.Error())
		return
	}

	var processed, matched, unmatched, errorCount int
	errorCount = sourceErrors
	total := len(records)
	_ = m.tracker.Update(operationID, 0, total, 0, errorCount, "")

	for _, record := range records {
		if ctx.Err() != nil {
			break
		}
		file, ok := index[NormalizePath(record.Path)]
		switch {
		case !ok || file == nil:
			// nil marks an ambiguous key under which two catalog entries
			// collided; both cases stay unmatched.
			unmatched++
		default:
			if err := m.store.SetMatch(ctx, record.ID, file.Service, file.Title, file.ExternalID, file.Season, file.Episode, file.Year); err != nil {
				m.logger.Error("persist match", logging.Error(err),
					logging.String(logging.FieldFile, record.Path))
				errorCount++
			} else {
				matched++
			}
		}
		processed++
		_ = m.tracker.Update(operationID, processed, total, unmatched, errorCount, record.Path)
	}

	_ = m.tracker.Complete(operationID, unmatched, errorCount)
	m.logger.Info("match run finished",
		logging.Int("processed", processed),
		logging.Int("matched", matched),
		logging.Int("unmatched", unmatched),
		logging.Int("errors", errorCount),
	)
}

// MatchOne resolves a single record against the current catalogs without
// persisting anything.
func (m *Matcher) MatchOne(ctx context.Context, record *store.AnalysisRecord) (*MediaFile, bool, error) {
	if record == nil {
		return nil, false, fmt.Errorf("match one: nil record")
	}
	index, sourceErrors := m.buildIndex(ctx)
	if index == nil {
		return nil, false, fmt.Errorf("match one: no origin system reachable (%d errors)", sourceErrors)
	}
	file, ok := index[NormalizePath(record.Path)]
	if !ok || file == nil {
		return nil, false, nil
	}
	return file, true, nil
}

// buildIndex fetches every source's catalog and keys it by normalized
// local path. A nil index means every source failed. Keys claimed by more
// than one entry are poisoned with nil so they can never match.
func (m *Matcher) buildIndex(ctx context.Context) (map[string]*MediaFile, int) {
	var (
		index      map[string]*MediaFile
		errorCount int
	)
	for _, source := range m.sources {
		files, err := source.MediaFiles(ctx)
		if err != nil {
			m.logger.Warn("origin system unavailable",
				logging.String("service", source.Name()),
				logging.Error(err),
			)
			errorCount++
			continue
		}
		if index == nil {
			index = make(map[string]*MediaFile)
		}
		mappings := source.Mappings()
		for _, file := range files {
			file := file
			key := NormalizePath(ApplyMappings(file.Path, mappings))
			if _, exists := index[key]; exists {
				index[key] = nil
				continue
			}
			index[key] = &file
		}
	}
	return index, errorCount
}
