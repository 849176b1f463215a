package matcher_test

import (
	"context"
	"errors"
	"testing"

	"playarr/internal/config"
	"playarr/internal/logging"
	"playarr/internal/matcher"
	"playarr/internal/progress"
	"playarr/internal/store"
	"playarr/internal/testsupport"
)

type fakeSource struct {
	name     string
	mappings []config.PathMapping
	files    []matcher.MediaFile
	err      error
}

func (f *fakeSource) Name() string                   { return f.name }
func (f *fakeSource) Mappings() []config.PathMapping { return f.mappings }
func (f *fakeSource) MediaFiles(context.Context) ([]matcher.MediaFile, error) {
	return f.files, f.err
}

func TestApplyMappings(t *testing.T) {
	mappings := []config.PathMapping{
		{From: "/data/tv", To: "/library/shows"},
		{From: "/data", To: "/library"},
	}
	cases := []struct {
		in, want string
	}{
		{"/data/tv/show/ep.mkv", "/library/shows/show/ep.mkv"},
		{"/data/movies/film.mkv", "/library/movies/film.mkv"},
		{"/other/film.mkv", "/other/film.mkv"},
	}
	for _, tc := range cases {
		if got := matcher.ApplyMappings(tc.in, mappings); got != tc.want {
			t.Errorf("ApplyMappings(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizePath(t *testing.T) {
	a := matcher.NormalizePath(`/Library/Movies/Film.MKV/`)
	b := matcher.NormalizePath("/library/movies/film.mkv")
	if a != b {
		t.Errorf("normalized paths differ: %q vs %q", a, b)
	}
}

func TestMatchRunLinksRecordsExactly(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	tracker := progress.NewTracker()
	ctx := context.Background()
	lp := testsupport.NewLibraryPath(t, st, "/library")

	for _, path := range []string{
		"/library/shows/show/s01e01.mkv",
		"/library/movies/film.mkv",
		"/library/movies/orphan.mkv",
	} {
		if _, err := st.UpsertRecord(ctx, &store.AnalysisRecord{LibraryPathID: lp.ID, Path: path}); err != nil {
			t.Fatalf("UpsertRecord: %v", err)
		}
	}

	sonarr := &fakeSource{
		name:     "sonarr",
		mappings: []config.PathMapping{{From: "/data/tv", To: "/library/shows"}},
		files: []matcher.MediaFile{
			{Service: "sonarr", ExternalID: "11", Path: "/data/tv/show/S01E01.mkv", Title: "Show", Season: 1, Episode: 1},
		},
	}
	radarr := &fakeSource{
		name: "radarr",
		files: []matcher.MediaFile{
			{Service: "radarr", ExternalID: "7", Path: "/library/movies/film.mkv", Title: "Film", Year: 2020},
		},
	}

	m := matcher.New(st, tracker, logging.NewNop(), sonarr, radarr)
	opID, err := m.Start(ctx)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	m.Wait()

	snap, ok := tracker.Get(opID)
	if !ok || snap.Status != progress.StatusCompleted {
		t.Fatalf("progress snapshot = %+v", snap)
	}
	if snap.Processed != 3 || snap.Secondary != 1 {
		t.Errorf("processed/unmatched = %d/%d, want 3/1", snap.Processed, snap.Secondary)
	}

	episode, err := st.GetRecordByPath(ctx, "/library/shows/show/s01e01.mkv")
	if err != nil {
		t.Fatalf("GetRecordByPath: %v", err)
	}
	if episode.MatchedService != "sonarr" || episode.MatchedTitle != "Show" || episode.MatchedExternalID != "11" {
		t.Errorf("episode match = %+v", episode)
	}
	if episode.MatchedSeason != 1 || episode.MatchedEpisode != 1 {
		t.Errorf("episode numbers not persisted: %+v", episode)
	}
	movie, _ := st.GetRecordByPath(ctx, "/library/movies/film.mkv")
	if movie.MatchedService != "radarr" || movie.MatchedTitle != "Film" || movie.MatchedYear != 2020 {
		t.Errorf("movie match = %+v", movie)
	}
	orphan, _ := st.GetRecordByPath(ctx, "/library/movies/orphan.mkv")
	if orphan.MatchedService != "" {
		t.Errorf("orphan unexpectedly matched: %+v", orphan)
	}
}

func TestMatchRunIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	tracker := progress.NewTracker()
	ctx := context.Background()
	lp := testsupport.NewLibraryPath(t, st, "/library")

	if _, err := st.UpsertRecord(ctx, &store.AnalysisRecord{LibraryPathID: lp.ID, Path: "/library/movies/film.mkv"}); err != nil {
		t.Fatalf("UpsertRecord: %v", err)
	}
	source := &fakeSource{
		name: "radarr",
		files: []matcher.MediaFile{
			{Service: "radarr", ExternalID: "7", Path: "/library/movies/film.mkv", Title: "Film", Year: 2020},
		},
	}
	m := matcher.New(st, tracker, logging.NewNop(), source)

	if _, err := m.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	m.Wait()
	first, _ := st.GetRecordByPath(ctx, "/library/movies/film.mkv")

	opID, err := m.Start(ctx)
	if err != nil {
		t.Fatalf("second Start: %v", err)
	}
	m.Wait()
	snap, _ := tracker.Get(opID)
	if snap.Processed != 0 {
		t.Errorf("second run processed %d records, want 0", snap.Processed)
	}
	second, _ := st.GetRecordByPath(ctx, "/library/movies/film.mkv")
	if second.MatchedAt == nil || !second.MatchedAt.Equal(*first.MatchedAt) {
		t.Errorf("second run touched matched record: %+v vs %+v", first.MatchedAt, second.MatchedAt)
	}
}

func TestAmbiguousPathsStayUnmatched(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	tracker := progress.NewTracker()
	ctx := context.Background()
	lp := testsupport.NewLibraryPath(t, st, "/library")

	if _, err := st.UpsertRecord(ctx, &store.AnalysisRecord{LibraryPathID: lp.ID, Path: "/library/movies/film.mkv"}); err != nil {
		t.Fatalf("UpsertRecord: %v", err)
	}
	source := &fakeSource{
		name: "radarr",
		files: []matcher.MediaFile{
			{Service: "radarr", ExternalID: "7", Path: "/library/movies/film.mkv", Title: "Film"},
			{Service: "radarr", ExternalID: "8", Path: "/library/movies/FILM.mkv", Title: "Duplicate"},
		},
	}
	m := matcher.New(st, tracker, logging.NewNop(), source)
	opID, err := m.Start(ctx)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	m.Wait()

	snap, _ := tracker.Get(opID)
	if snap.Secondary != 1 {
		t.Errorf("unmatched = %d, want 1", snap.Secondary)
	}
	rec, _ := st.GetRecordByPath(ctx, "/library/movies/film.mkv")
	if rec.MatchedService != "" {
		t.Errorf("ambiguous record was matched: %+v", rec)
	}
}

func TestMatchOneResolvesSingleRecord(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	tracker := progress.NewTracker()
	ctx := context.Background()
	lp := testsupport.NewLibraryPath(t, st, "/library")

	rec, err := st.UpsertRecord(ctx, &store.AnalysisRecord{LibraryPathID: lp.ID, Path: "/library/movies/film.mkv"})
	if err != nil {
		t.Fatalf("UpsertRecord: %v", err)
	}
	orphan, err := st.UpsertRecord(ctx, &store.AnalysisRecord{LibraryPathID: lp.ID, Path: "/library/movies/orphan.mkv"})
	if err != nil {
		t.Fatalf("UpsertRecord: %v", err)
	}
	source := &fakeSource{
		name: "radarr",
		files: []matcher.MediaFile{
			{Service: "radarr", ExternalID: "7", Path: "/library/movies/film.mkv", Title: "Film", Year: 2020},
		},
	}
	m := matcher.New(st, tracker, logging.NewNop(), source)

	file, ok, err := m.MatchOne(ctx, rec)
	if err != nil || !ok {
		t.Fatalf("MatchOne = %v, %v", ok, err)
	}
	if file.Title != "Film" || file.Year != 2020 {
		t.Errorf("matched file = %+v", file)
	}

	if _, ok, err := m.MatchOne(ctx, orphan); err != nil || ok {
		t.Errorf("orphan MatchOne = %v, %v, want no match", ok, err)
	}

	// MatchOne resolves only; nothing is persisted.
	stored, _ := st.GetRecordByPath(ctx, rec.Path)
	if stored.MatchedService != "" {
		t.Errorf("MatchOne persisted a match: %+v", stored)
	}
}

func TestMatchFailsWhenAllSourcesUnreachable(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	tracker := progress.NewTracker()
	m := matcher.New(st, tracker, logging.NewNop(), &fakeSource{
		name: "sonarr",
		err:  errors.New("connection refused"),
	})

	opID, err := m.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	m.Wait()
	snap, _ := tracker.Get(opID)
	if snap.Status != progress.StatusError {
		t.Errorf("progress status = %s, want error", snap.Status)
	}
}

func TestOnlyOneMatchRunAtATime(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	tracker := progress.NewTracker()

	release := make(chan struct{})
	source := &blockingSource{release: release}
	m := matcher.New(st, tracker, logging.NewNop(), source)

	if _, err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := m.Start(context.Background()); !errors.Is(err, matcher.ErrMatchRunning) {
		t.Errorf("concurrent Start = %v, want ErrMatchRunning", err)
	}
	close(release)
	m.Wait()

	if _, err := m.Start(context.Background()); err != nil {
		t.Errorf("Start after completion: %v", err)
	}
	m.Wait()
}

type blockingSource struct {
	release chan struct{}
}

func (b *blockingSource) Name() string                   { return "blocking" }
func (b *blockingSource) Mappings() []config.PathMapping { return nil }
func (b *blockingSource) MediaFiles(context.Context) ([]matcher.MediaFile, error) {
	<-b.release
	return nil, nil
}
