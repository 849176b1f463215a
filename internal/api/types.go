package api

import (
	"encoding/json"
	"time"

	"playarr/internal/progress"
	"playarr/internal/store"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Library describes a registered scan root.
type Library struct {
	ID        int64  `json:"id"`
	Path      string `json:"path"`
	Name      string `json:"name,omitempty"`
	Source    string `json:"source"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// Scan describes one scan run in a transport-friendly format.
type Scan struct {
	ID             int64   `json:"id"`
	LibraryID      int64   `json:"libraryId"`
	OperationID    string  `json:"operationId"`
	Status         string  `json:"status"`
	TotalFiles     int     `json:"totalFiles"`
	ProcessedFiles int     `json:"processedFiles"`
	BrokenFiles    int     `json:"brokenFiles"`
	FailedFiles    int     `json:"failedFiles"`
	FilesPerSecond float64 `json:"filesPerSecond"`
	ErrorMessage   string  `json:"errorMessage,omitempty"`
	StartedAt      string  `json:"startedAt,omitempty"`
	FinishedAt     string  `json:"finishedAt,omitempty"`
}

// Record describes one analyzed file.
type Record struct {
	ID                int64           `json:"id"`
	LibraryID         int64           `json:"libraryId"`
	Path              string          `json:"path"`
	Broken            bool            `json:"broken"`
	BrokenReason      string          `json:"brokenReason,omitempty"`
	Score             int             `json:"score"`
	Category          string          `json:"category,omitempty"`
	DirectPlayClients int             `json:"directPlayClients"`
	RemuxClients      int             `json:"remuxClients"`
	TranscodeClients  int             `json:"transcodeClients"`
	Verdicts          json.RawMessage `json:"verdicts,omitempty"`
	Issues            json.RawMessage `json:"issues,omitempty"`
	Recommendations   json.RawMessage `json:"recommendations,omitempty"`
	Attributes        json.RawMessage `json:"attributes,omitempty"`
	MatchedService    string          `json:"matchedService,omitempty"`
	MatchedTitle      string          `json:"matchedTitle,omitempty"`
	MatchedExternalID string          `json:"matchedExternalId,omitempty"`
	MatchedSeason     int             `json:"matchedSeason,omitempty"`
	MatchedEpisode    int             `json:"matchedEpisode,omitempty"`
	MatchedYear       int             `json:"matchedYear,omitempty"`
	MatchedAt         string          `json:"matchedAt,omitempty"`
	ProcessingStatus  string          `json:"processingStatus,omitempty"`
	AnalyzedAt        string          `json:"analyzedAt,omitempty"`
}

// OperationProgress is the polling view of a long-running operation.
// Errors counts infrastructure failures; Secondary counts domain outcomes
// short of success (broken files, unmatched records), so callers can tell
// "some files are unplayable" from "the operation is unhealthy".
type OperationProgress struct {
	OperationID string  `json:"operationId"`
	Kind        string  `json:"kind"`
	Status      string  `json:"status"`
	Processed   int     `json:"processed"`
	Total       int     `json:"total"`
	Secondary   int     `json:"secondary"`
	Errors      int     `json:"errors"`
	CurrentItem string  `json:"currentItem,omitempty"`
	Message     string  `json:"message,omitempty"`
	PerSecond   float64 `json:"perSecond"`
	ETASeconds  int     `json:"etaSeconds"`
}

// DaemonStatus is the /api/status payload.
type DaemonStatus struct {
	Running      bool                `json:"running"`
	PID          int                 `json:"pid"`
	DatabasePath string              `json:"databasePath"`
	LockFilePath string              `json:"lockFilePath"`
	APIAddress   string              `json:"apiAddress,omitempty"`
	Libraries    int                 `json:"libraries"`
	Operations   []OperationProgress `json:"operations,omitempty"`
}

// AddLibraryRequest registers a new scan root.
type AddLibraryRequest struct {
	Path string `json:"path"`
	Name string `json:"name,omitempty"`
}

// LibraryListResponse wraps the library listing.
type LibraryListResponse struct {
	Libraries []Library `json:"libraries"`
}

// ScanListResponse wraps the scan listing.
type ScanListResponse struct {
	Scans []Scan `json:"scans"`
}

// RecordListResponse wraps the record listing.
type RecordListResponse struct {
	Records []Record `json:"records"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateTimeFormat)
}

// FromLibrary converts a stored library path.
func FromLibrary(lp *store.LibraryPath) Library {
	return Library{
		ID:        lp.ID,
		Path:      lp.Path,
		Name:      lp.Name,
		Source:    lp.Source,
		CreatedAt: formatTime(lp.CreatedAt),
	}
}

// FromScan converts a stored scan.
func FromScan(sc *store.LibraryScan) Scan {
	out := Scan{
		ID:             sc.ID,
		LibraryID:      sc.LibraryPathID,
		OperationID:    sc.OperationID,
		Status:         string(sc.Status),
		TotalFiles:     sc.TotalFiles,
		ProcessedFiles: sc.ProcessedFiles,
		BrokenFiles:    sc.BrokenFiles,
		FailedFiles:    sc.FailedFiles,
		FilesPerSecond: sc.FilesPerSecond(),
		ErrorMessage:   sc.ErrorMessage,
		StartedAt:      formatTime(sc.StartedAt),
	}
	if sc.FinishedAt != nil {
		out.FinishedAt = formatTime(*sc.FinishedAt)
	}
	return out
}

// FromRecord converts a stored analysis record.
func FromRecord(rec *store.AnalysisRecord) Record {
	out := Record{
		ID:                rec.ID,
		LibraryID:         rec.LibraryPathID,
		Path:              rec.Path,
		Broken:            rec.Broken,
		BrokenReason:      rec.BrokenReason,
		Score:             rec.Score,
		Category:          rec.Category,
		DirectPlayClients: rec.DirectPlayClients,
		RemuxClients:      rec.RemuxClients,
		TranscodeClients:  rec.TranscodeClients,
		Verdicts:          rawJSON(rec.VerdictsJSON),
		Issues:            rawJSON(rec.IssuesJSON),
		Recommendations:   rawJSON(rec.RecommendationsJSON),
		Attributes:        rawJSON(rec.AttributesJSON),
		MatchedService:    rec.MatchedService,
		MatchedTitle:      rec.MatchedTitle,
		MatchedExternalID: rec.MatchedExternalID,
		MatchedSeason:     rec.MatchedSeason,
		MatchedEpisode:    rec.MatchedEpisode,
		MatchedYear:       rec.MatchedYear,
		ProcessingStatus:  rec.ProcessingStatus,
		AnalyzedAt:        formatTime(rec.AnalyzedAt),
	}
	if rec.MatchedAt != nil {
		out.MatchedAt = formatTime(*rec.MatchedAt)
	}
	return out
}

// FromSnapshot converts a progress snapshot.
func FromSnapshot(snap progress.Snapshot) OperationProgress {
	return OperationProgress{
		OperationID: snap.ID,
		Kind:        snap.Kind,
		Status:      string(snap.Status),
		Processed:   snap.Processed,
		Total:       snap.Total,
		Secondary:   snap.Secondary,
		Errors:      snap.Errors,
		CurrentItem: snap.CurrentItem,
		Message:     snap.Message,
		PerSecond:   snap.PerSecond(),
		ETASeconds:  int(snap.ETA().Seconds()),
	}
}

func rawJSON(value string) json.RawMessage {
	if value == "" {
		return nil
	}
	return json.RawMessage(value)
}
