package servarr_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"playarr/internal/config"
	"playarr/internal/services/servarr"
)

func testConfig(url string) config.Servarr {
	return config.Servarr{
		Enabled:        true,
		URL:            url,
		APIKey:         "secret",
		TimeoutSeconds: 5,
	}
}

func TestSonarrMediaFiles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Api-Key"); got != "secret" {
			t.Errorf("X-Api-Key = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v3/series":
			_, _ = w.Write([]byte(`[{"id": 3, "title": "Show", "year": 2021, "path": "/data/tv/Show"}]`))
		case "/api/v3/episode":
			if got := r.URL.Query().Get("seriesId"); got != "3" {
				t.Errorf("seriesId = %q", got)
			}
			_, _ = w.Write([]byte(`[
                {"id": 100, "seriesId": 3, "seasonNumber": 1, "episodeNumber": 2, "episodeFileId": 55, "hasFile": true},
                {"id": 101, "seriesId": 3, "seasonNumber": 1, "episodeNumber": 3, "episodeFileId": 0, "hasFile": false}
            ]`))
		case "/api/v3/episodefile":
			_, _ = w.Write([]byte(`[
                {"id": 55, "seriesId": 3, "path": "/data/tv/Show/S01E02.mkv"},
                {"id": 56, "seriesId": 3, "path": "/data/tv/Show/extra.mkv"}
            ]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	sonarr, err := servarr.NewSonarr(testConfig(server.URL))
	if err != nil {
		t.Fatalf("NewSonarr: %v", err)
	}
	files, err := sonarr.MediaFiles(context.Background())
	if err != nil {
		t.Fatalf("MediaFiles: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("file count = %d, want 1 (orphan episode files skipped)", len(files))
	}
	file := files[0]
	if file.Service != "sonarr" || file.ExternalID != "55" || file.Path != "/data/tv/Show/S01E02.mkv" {
		t.Errorf("unexpected file: %+v", file)
	}
	if file.Title != "Show" || file.Season != 1 || file.Episode != 2 {
		t.Errorf("unexpected numbering: %+v", file)
	}
}

func TestRadarrMediaFiles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/movie" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
            {"id": 1, "title": "Film", "year": 2020, "hasFile": true, "movieFile": {"id": 9, "path": "/data/movies/Film (2020)/film.mkv"}},
            {"id": 2, "title": "Missing", "year": 2021, "hasFile": false}
        ]`))
	}))
	defer server.Close()

	radarr, err := servarr.NewRadarr(testConfig(server.URL))
	if err != nil {
		t.Fatalf("NewRadarr: %v", err)
	}
	files, err := radarr.MediaFiles(context.Background())
	if err != nil {
		t.Fatalf("MediaFiles: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("file count = %d, want 1 (fileless movies skipped)", len(files))
	}
	if files[0].ExternalID != "9" || files[0].Year != 2020 {
		t.Errorf("unexpected file: %+v", files[0])
	}
}

func TestRootFolders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/rootfolder" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id": 1, "path": "/data/movies", "accessible": true}]`))
	}))
	defer server.Close()

	radarr, err := servarr.NewRadarr(testConfig(server.URL))
	if err != nil {
		t.Fatalf("NewRadarr: %v", err)
	}
	folders, err := radarr.RootFolders(context.Background())
	if err != nil {
		t.Fatalf("RootFolders: %v", err)
	}
	if len(folders) != 1 || folders[0].Path != "/data/movies" || !folders[0].Accessible {
		t.Errorf("unexpected folders: %+v", folders)
	}
}

func TestClientSurfacesHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	radarr, err := servarr.NewRadarr(testConfig(server.URL))
	if err != nil {
		t.Fatalf("NewRadarr: %v", err)
	}
	if _, err := radarr.Movies(context.Background()); err == nil {
		t.Error("expected error for 401 response")
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := servarr.NewSonarr(config.Servarr{APIKey: "k"}); err == nil {
		t.Error("expected error for missing url")
	}
	if _, err := servarr.NewRadarr(config.Servarr{URL: "http://radarr:7878"}); err == nil {
		t.Error("expected error for missing api key")
	}
}
