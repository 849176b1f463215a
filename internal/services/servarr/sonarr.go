package servarr

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"playarr/internal/config"
	"playarr/internal/matcher"
)

// Sonarr exposes the subset of the Sonarr v3 API the matcher needs.
type Sonarr struct {
	client *Client
}

// NewSonarr creates a Sonarr catalog source.
func NewSonarr(cfg config.Servarr, opts ...Option) (*Sonarr, error) {
	client, err := NewClient(cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("sonarr: %w", err)
	}
	return &Sonarr{client: client}, nil
}

var _ matcher.Source = (*Sonarr)(nil)

// Series is one show known to Sonarr.
type Series struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Year  int    `json:"year"`
	Path  string `json:"path"`
}

type episode struct {
	ID            int64 `json:"id"`
	SeriesID      int64 `json:"seriesId"`
	SeasonNumber  int   `json:"seasonNumber"`
	EpisodeNumber int   `json:"episodeNumber"`
	EpisodeFileID int64 `json:"episodeFileId"`
	HasFile       bool  `json:"hasFile"`
}

type episodeFile struct {
	ID       int64  `json:"id"`
	SeriesID int64  `json:"seriesId"`
	Path     string `json:"path"`
}

// Name implements matcher.Source.
func (s *Sonarr) Name() string { return "sonarr" }

// Mappings implements matcher.Source.
func (s *Sonarr) Mappings() []config.PathMapping { return s.client.mappings }

// Series lists every show on the instance.
func (s *Sonarr) Series(ctx context.Context) ([]Series, error) {
	var series []Series
	if err := s.client.get(ctx, "/api/v3/series", nil, &series); err != nil {
		return nil, err
	}
	return series, nil
}

// RootFolders lists the instance's storage roots.
func (s *Sonarr) RootFolders(ctx context.Context) ([]RootFolder, error) {
	return s.client.RootFolders(ctx)
}

// MediaFiles returns one entry per on-disk episode file. Episode numbering
// comes from the episode list; files without a corresponding episode row
// are skipped rather than reported with bogus numbering.
func (s *Sonarr) MediaFiles(ctx context.Context) ([]matcher.MediaFile, error) {
	series, err := s.Series(ctx)
	if err != nil {
		return nil, err
	}

	var out []matcher.MediaFile
	for _, show := range series {
		params := url.Values{}
		params.Set("seriesId", strconv.FormatInt(show.ID, 10))

		var episodes []episode
		if err := s.client.get(ctx, "/api/v3/episode", params, &episodes); err != nil {
			return nil, fmt.Errorf("series %d episodes: %w", show.ID, err)
		}
		byFileID := make(map[int64]episode, len(episodes))
		for _, ep := range episodes {
			if ep.HasFile && ep.EpisodeFileID != 0 {
				byFileID[ep.EpisodeFileID] = ep
			}
		}

		var files []episodeFile
		if err := s.client.get(ctx, "/api/v3/episodefile", params, &files); err != nil {
			return nil, fmt.Errorf("series %d episode files: %w", show.ID, err)
		}
		for _, file := range files {
			ep, ok := byFileID[file.ID]
			if !ok {
				continue
			}
			out = append(out, matcher.MediaFile{
				Service:    s.Name(),
				ExternalID: strconv.FormatInt(file.ID, 10),
				Path:       file.Path,
				Title:      show.Title,
				Season:     ep.SeasonNumber,
				Episode:    ep.EpisodeNumber,
			})
		}
	}
	return out, nil
}
