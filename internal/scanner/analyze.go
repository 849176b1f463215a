package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"playarr/internal/discovery"
	"playarr/internal/language"
	"playarr/internal/logging"
	"playarr/internal/media"
	"playarr/internal/rating"
	"playarr/internal/store"
)

var sidecarFormats = map[string]string{
	".srt": "subrip",
	".ass": "ass",
	".ssa": "ass",
	".sub": "microdvd",
	".vtt": "webvtt",
	".sup": "hdmv_pgs_subtitle",
}

// analyzeFile runs one file through extraction, rating, and persistence.
// The returned bool reports whether the file was recorded as broken; the
// returned error is an infrastructure failure (rating config, persistence)
// that belongs in failed_files.
func (s *Scanner) analyzeFile(ctx context.Context, logger *slog.Logger, libraryPathID, scanID int64, candidate discovery.Candidate) (bool, error) {
	attrs, brokenResult := s.extractor.Extract(ctx, candidate.VideoPath)
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if brokenResult != nil {
		_, err := s.store.UpsertRecord(ctx, &store.AnalysisRecord{
			LibraryPathID: libraryPathID,
			ScanID:        scanID,
			Path:          candidate.VideoPath,
			Broken:        true,
			BrokenReason:  brokenResult.Reason,
			AnalyzedAt:    time.Now(),
		})
		if err != nil {
			return false, err
		}
		logger.Debug("broken file recorded",
			logging.String(logging.FieldFile, candidate.VideoPath),
			logging.String("reason", brokenResult.Reason),
		)
		return true, nil
	}

	if candidate.SubtitlePath != "" {
		attrs.Subtitles = append(attrs.Subtitles, sidecarSubtitle(candidate.SubtitlePath))
	}

	record, err := s.buildRecord(libraryPathID, scanID, attrs)
	if err != nil {
		return false, err
	}
	if _, err := s.store.UpsertRecord(ctx, record); err != nil {
		return false, err
	}
	logger.Debug("file analyzed",
		logging.String(logging.FieldFile, candidate.VideoPath),
		logging.Int("score", record.Score),
		logging.String("category", record.Category),
	)
	return false, nil
}

// buildRecord rates extracted attributes and shapes them into a record.
// The rating configuration is rebuilt from the live config on every call,
// so threshold or matrix edits apply to the very next file.
func (s *Scanner) buildRecord(libraryPathID, scanID int64, attrs *media.TechnicalAttributes) (*store.AnalysisRecord, error) {
	ratingCfg, err := rating.BuildConfig(s.cfg)
	if err != nil {
		return nil, fmt.Errorf("build rating config: %w", err)
	}
	result, err := rating.Rate(attrs, ratingCfg)
	if err != nil {
		return nil, fmt.Errorf("rate %s: %w", attrs.Path, err)
	}

	attributesJSON, err := json.Marshal(attrs)
	if err != nil {
		return nil, fmt.Errorf("marshal attributes: %w", err)
	}
	verdictsJSON, issuesJSON, recommendationsJSON, err := marshalRating(result)
	if err != nil {
		return nil, err
	}

	return &store.AnalysisRecord{
		LibraryPathID:       libraryPathID,
		ScanID:              scanID,
		Path:                attrs.Path,
		AttributesJSON:      string(attributesJSON),
		Score:               result.Score,
		Category:            string(result.Category),
		VerdictsJSON:        verdictsJSON,
		DirectPlayClients:   result.DirectPlayClients,
		RemuxClients:        result.RemuxClients,
		TranscodeClients:    result.TranscodeClients,
		IssuesJSON:          issuesJSON,
		RecommendationsJSON: recommendationsJSON,
		AnalyzedAt:          time.Now(),
	}, nil
}

// RescanFile re-runs extraction and rating for a single known record. The
// record is flagged as processing for the duration so API consumers can
// tell a file being re-examined from a settled one.
func (s *Scanner) RescanFile(ctx context.Context, recordID int64) (*store.AnalysisRecord, error) {
	record, err := s.store.GetRecord(ctx, recordID)
	if err != nil {
		return nil, fmt.Errorf("rescan file: %w", err)
	}
	logger := logging.NewComponentLogger(s.logger, "scanner")

	if err := s.store.SetProcessingStatus(ctx, record.ID, store.ProcessingProcessing); err != nil {
		return nil, fmt.Errorf("rescan file: %w", err)
	}

	candidate := discovery.Candidate{
		VideoPath:    record.Path,
		SubtitlePath: discovery.FindSidecarSubtitle(record.Path),
	}
	_, analyzeErr := s.analyzeFile(ctx, logger, record.LibraryPathID, record.ScanID, candidate)

	// The reset must land even when the rescan context was cancelled.
	if err := s.store.SetProcessingStatus(context.WithoutCancel(ctx), record.ID, store.ProcessingIdle); err != nil {
		logger.Error("reset processing status", logging.Error(err))
	}
	if analyzeErr != nil {
		return nil, analyzeErr
	}
	return s.store.GetRecordByPath(ctx, record.Path)
}

// RecalculateRating re-applies the rating engine to already-stored
// attributes without touching the file. Broken records cannot be rated.
func (s *Scanner) RecalculateRating(ctx context.Context, recordID int64) (*store.AnalysisRecord, error) {
	record, err := s.store.GetRecord(ctx, recordID)
	if err != nil {
		return nil, fmt.Errorf("recalculate rating: %w", err)
	}
	if record.Broken {
		return nil, fmt.Errorf("recalculate rating: record %d is broken (%s)", recordID, record.BrokenReason)
	}

	var attrs media.TechnicalAttributes
	if err := json.Unmarshal([]byte(record.AttributesJSON), &attrs); err != nil {
		return nil, fmt.Errorf("recalculate rating: unmarshal attributes: %w", err)
	}
	ratingCfg, err := rating.BuildConfig(s.cfg)
	if err != nil {
		return nil, fmt.Errorf("recalculate rating: %w", err)
	}
	result, err := rating.Rate(&attrs, ratingCfg)
	if err != nil {
		return nil, fmt.Errorf("recalculate rating: %w", err)
	}
	verdictsJSON, issuesJSON, recommendationsJSON, err := marshalRating(result)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateRating(ctx, record.ID,
		result.Score, string(result.Category), verdictsJSON, issuesJSON, recommendationsJSON,
		result.DirectPlayClients, result.RemuxClients, result.TranscodeClients,
	); err != nil {
		return nil, err
	}
	return s.store.GetRecord(ctx, record.ID)
}

func marshalRating(result rating.Result) (verdicts, issues, recommendations string, err error) {
	verdictsRaw, err := json.Marshal(result.Verdicts)
	if err != nil {
		return "", "", "", fmt.Errorf("marshal verdicts: %w", err)
	}
	issuesRaw, err := json.Marshal(result.Issues)
	if err != nil {
		return "", "", "", fmt.Errorf("marshal issues: %w", err)
	}
	recommendationsRaw, err := json.Marshal(result.Recommendations)
	if err != nil {
		return "", "", "", fmt.Errorf("marshal recommendations: %w", err)
	}
	return string(verdictsRaw), string(issuesRaw), string(recommendationsRaw), nil
}

// sidecarSubtitle shapes an external subtitle file into a track. A language
// token in the file name ("film.en.srt") is normalized when recognized.
func sidecarSubtitle(path string) media.SubtitleTrack {
	ext := strings.ToLower(filepath.Ext(path))
	format := sidecarFormats[ext]
	if format == "" {
		format = strings.TrimPrefix(ext, ".")
	}

	lang := ""
	base := strings.TrimSuffix(filepath.Base(path), ext)
	if idx := strings.LastIndex(base, "."); idx >= 0 {
		lang = language.Canonical(base[idx+1:])
	}
	return media.SubtitleTrack{Format: format, Language: lang, External: true}
}
