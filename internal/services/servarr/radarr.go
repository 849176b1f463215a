package servarr

import (
	"context"
	"fmt"
	"strconv"

	"playarr/internal/config"
	"playarr/internal/matcher"
)

// Radarr exposes the subset of the Radarr v3 API the matcher needs.
type Radarr struct {
	client *Client
}

// NewRadarr creates a Radarr catalog source.
func NewRadarr(cfg config.Servarr, opts ...Option) (*Radarr, error) {
	client, err := NewClient(cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("radarr: %w", err)
	}
	return &Radarr{client: client}, nil
}

var _ matcher.Source = (*Radarr)(nil)

// Movie is one film known to Radarr.
type Movie struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Year      int    `json:"year"`
	HasFile   bool   `json:"hasFile"`
	MovieFile struct {
		ID   int64  `json:"id"`
		Path string `json:"path"`
	} `json:"movieFile"`
}

// Name implements matcher.Source.
func (r *Radarr) Name() string { return "radarr" }

// Mappings implements matcher.Source.
func (r *Radarr) Mappings() []config.PathMapping { return r.client.mappings }

// Movies lists every film on the instance.
func (r *Radarr) Movies(ctx context.Context) ([]Movie, error) {
	var movies []Movie
	if err := r.client.get(ctx, "/api/v3/movie", nil, &movies); err != nil {
		return nil, err
	}
	return movies, nil
}

// RootFolders lists the instance's storage roots.
func (r *Radarr) RootFolders(ctx context.Context) ([]RootFolder, error) {
	return r.client.RootFolders(ctx)
}

// MediaFiles returns one entry per on-disk movie file.
func (r *Radarr) MediaFiles(ctx context.Context) ([]matcher.MediaFile, error) {
	movies, err := r.Movies(ctx)
	if err != nil {
		return nil, err
	}
	var out []matcher.MediaFile
	for _, movie := range movies {
		if !movie.HasFile || movie.MovieFile.Path == "" {
			continue
		}
		out = append(out, matcher.MediaFile{
			Service:    r.Name(),
			ExternalID: strconv.FormatInt(movie.MovieFile.ID, 10),
			Path:       movie.MovieFile.Path,
			Title:      movie.Title,
			Year:       movie.Year,
		})
	}
	return out, nil
}
