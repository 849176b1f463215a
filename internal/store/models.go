package store

import (
	"strings"
	"time"
)

// ScanStatus is the lifecycle of a LibraryScan.
type ScanStatus string

const (
	ScanPending   ScanStatus = "pending"
	ScanRunning   ScanStatus = "running"
	ScanCompleted ScanStatus = "completed"
	ScanFailed    ScanStatus = "failed"
	ScanCancelled ScanStatus = "cancelled"
)

var scanStatuses = map[ScanStatus]struct{}{
	ScanPending:   {},
	ScanRunning:   {},
	ScanCompleted: {},
	ScanFailed:    {},
	ScanCancelled: {},
}

// ParseScanStatus converts a string into a known ScanStatus.
func ParseScanStatus(value string) (ScanStatus, bool) {
	normalized := ScanStatus(strings.ToLower(strings.TrimSpace(value)))
	_, ok := scanStatuses[normalized]
	return normalized, ok
}

// IsTerminal reports whether no further transition is permitted.
func (s ScanStatus) IsTerminal() bool {
	switch s {
	case ScanCompleted, ScanFailed, ScanCancelled:
		return true
	default:
		return false
	}
}

// IsActive reports whether the status blocks a new scan on the same library.
func (s ScanStatus) IsActive() bool {
	return s == ScanPending || s == ScanRunning
}

// Library path sources.
const (
	SourceManual = "manual"
	SourceSonarr = "sonarr"
	SourceRadarr = "radarr"
)

// LibraryPath is a registered scan root.
type LibraryPath struct {
	ID        int64
	Path      string
	Name      string
	Source    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LibraryScan is one scan run over a library path.
type LibraryScan struct {
	ID            int64
	LibraryPathID int64
	OperationID   string
	Status        ScanStatus
	TotalFiles    int
	ProcessedFiles int
	BrokenFiles   int
	FailedFiles   int
	ErrorMessage  string
	StartedAt     time.Time
	FinishedAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// FilesPerSecond is the observed scan throughput, zero until files finish.
func (s LibraryScan) FilesPerSecond() float64 {
	end := time.Now().UTC()
	if s.FinishedAt != nil {
		end = *s.FinishedAt
	}
	elapsed := end.Sub(s.StartedAt).Seconds()
	if elapsed <= 0 || s.ProcessedFiles == 0 {
		return 0
	}
	return float64(s.ProcessedFiles) / elapsed
}

// AnalysisRecord is the durable per-file analysis result, upserted by path.
// Broken files keep the row with Broken set and empty rating columns;
// attributes and rating output are stored as JSON documents so schema
// changes in those shapes do not require table migrations.
type AnalysisRecord struct {
	ID            int64
	LibraryPathID int64
	ScanID        int64
	Path          string

	Broken       bool
	BrokenReason string

	AttributesJSON string
	Score          int
	Category       string
	VerdictsJSON   string
	DirectPlayClients int
	RemuxClients      int
	TranscodeClients  int
	IssuesJSON          string
	RecommendationsJSON string

	MatchedService    string
	MatchedTitle      string
	MatchedExternalID string
	MatchedSeason     int
	MatchedEpisode    int
	MatchedYear       int
	MatchedAt         *time.Time

	ProcessingStatus string

	AnalyzedAt time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Processing statuses for an analysis record. Processing marks a record
// whose file is being re-examined or replaced; everything else is Idle.
const (
	ProcessingIdle       = "idle"
	ProcessingProcessing = "processing"
)

// FailedFile records an infrastructure failure during a scan. Media-parse
// failures never land here; those become broken AnalysisRecords. A path
// failing repeatedly within one scan keeps a single row whose RetryCount
// climbs.
type FailedFile struct {
	ID         int64
	ScanID     int64
	Path       string
	Stage      string
	Reason     string
	RetryCount int
	CreatedAt  time.Time
}
