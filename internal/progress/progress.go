// Package progress tracks long-running operations in a concurrency-safe
// in-memory registry shared by scans, matches, and any future bulk job.
// Entries are polled over the API rather than streamed, so the registry
// only ever holds the latest snapshot per operation.
package progress

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status of a tracked operation.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// DefaultRetention is how long terminal entries survive before sweep
// removes them.
const DefaultRetention = time.Hour

// Snapshot is a point-in-time copy of one operation's progress. Secondary
// counts items that finished with a domain outcome short of success
// (broken files on a scan, unmatched records on a match); Errors counts
// infrastructure failures.
type Snapshot struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	Status      Status    `json:"status"`
	Processed   int       `json:"processed"`
	Total       int       `json:"total"`
	Secondary   int       `json:"secondary"`
	Errors      int       `json:"errors"`
	CurrentItem string    `json:"current_item,omitempty"`
	Message     string    `json:"message,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	FinishedAt  time.Time `json:"finished_at,omitzero"`
}

// PerSecond is the observed processing rate since the operation started.
func (s Snapshot) PerSecond() float64 {
	elapsed := s.UpdatedAt.Sub(s.StartedAt).Seconds()
	if elapsed <= 0 || s.Processed == 0 {
		return 0
	}
	return float64(s.Processed) / elapsed
}

// ETA estimates remaining time from the observed rate. Zero when the total
// is unknown or the rate cannot be computed yet.
func (s Snapshot) ETA() time.Duration {
	rate := s.PerSecond()
	if rate == 0 || s.Total <= s.Processed {
		return 0
	}
	return time.Duration(float64(s.Total-s.Processed)/rate) * time.Second
}

// Tracker is the process-wide registry. The zero value is not usable; use
// NewTracker.
type Tracker struct {
	mu        sync.Mutex
	entries   map[string]*Snapshot
	retention time.Duration
	now       func() time.Time
}

// NewTracker returns a registry with the default retention window.
func NewTracker() *Tracker {
	return &Tracker{
		entries:   make(map[string]*Snapshot),
		retention: DefaultRetention,
		now:       time.Now,
	}
}

// Create registers a new running operation and returns its id. Stale
// terminal entries are swept here so the registry cannot grow without
// bound in a long-lived daemon, without needing a timer of its own.
func (t *Tracker) Create(kind string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sweepLocked()

	id := uuid.New().String()
	now := t.now()
	t.entries[id] = &Snapshot{
		ID:        id,
		Kind:      kind,
		Status:    StatusRunning,
		StartedAt: now,
		UpdatedAt: now,
	}
	return id
}

// Update replaces the counters on a running operation.
func (t *Tracker) Update(id string, processed, total, secondary, errors int, currentItem string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, err := t.runningLocked(id)
	if err != nil {
		return err
	}
	entry.Processed = processed
	entry.Total = total
	entry.Secondary = secondary
	entry.Errors = errors
	entry.CurrentItem = currentItem
	entry.UpdatedAt = t.now()
	return nil
}

// Complete marks the operation finished. Processed is pinned to total when
// a total was known so pollers never see a completed bar short of 100%.
func (t *Tracker) Complete(id string, secondary, errors int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, err := t.runningLocked(id)
	if err != nil {
		return err
	}
	if entry.Total > 0 {
		entry.Processed = entry.Total
	}
	entry.Secondary = secondary
	entry.Errors = errors
	entry.CurrentItem = ""
	entry.Status = StatusCompleted
	entry.UpdatedAt = t.now()
	entry.FinishedAt = entry.UpdatedAt
	return nil
}

// Fail marks the operation as errored with a message for pollers.
func (t *Tracker) Fail(id, message string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, err := t.runningLocked(id)
	if err != nil {
		return err
	}
	entry.Status = StatusError
	entry.Message = message
	entry.CurrentItem = ""
	entry.UpdatedAt = t.now()
	entry.FinishedAt = entry.UpdatedAt
	return nil
}

// Get returns a copy of the entry, so callers can read it without holding
// any lock.
func (t *Tracker) Get(id string) (Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.entries[id]
	if !ok {
		return Snapshot{}, false
	}
	return *entry, true
}

// List returns copies of every live entry.
func (t *Tracker) List() []Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Snapshot, 0, len(t.entries))
	for _, entry := range t.entries {
		out = append(out, *entry)
	}
	return out
}

// Sweep drops terminal entries older than the retention window and reports
// how many were removed.
func (t *Tracker) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sweepLocked()
}

func (t *Tracker) sweepLocked() int {
	cutoff := t.now().Add(-t.retention)
	removed := 0
	for id, entry := range t.entries {
		if entry.Status != StatusRunning && entry.FinishedAt.Before(cutoff) {
			delete(t.entries, id)
			removed++
		}
	}
	return removed
}

func (t *Tracker) runningLocked(id string) (*Snapshot, error) {
	entry, ok := t.entries[id]
	if !ok {
		return nil, fmt.Errorf("progress: unknown operation %s", id)
	}
	if entry.Status != StatusRunning {
		return nil, fmt.Errorf("progress: operation %s already %s", id, entry.Status)
	}
	return entry, nil
}
