package rating

import (
	"reflect"
	"strings"
	"testing"

	"playarr/internal/config"
	"playarr/internal/media"
)

func defaultRatingConfig(t *testing.T) Config {
	t.Helper()
	cfg := config.Default()
	built, err := BuildConfig(&cfg)
	if err != nil {
		t.Fatalf("BuildConfig: %v", err)
	}
	return built
}

func hevcMKVWithDTS() *media.TechnicalAttributes {
	return &media.TechnicalAttributes{
		Path:            "/library/movies/film.mkv",
		Container:       "mkv",
		SizeBytes:       8 << 30,
		DurationSeconds: 7200,
		VideoCodec:      "hevc",
		CodecTag:        "hvc1",
		CodecTagMatches: true,
		Width:           3840,
		Height:          2160,
		BitDepth:        10,
		HDR:             true,
		HDRType:         "HDR10",
		Audio:           []media.AudioTrack{{Codec: "dts", Channels: 6}},
	}
}

func TestRateMixedClientMatrix(t *testing.T) {
	cfg := defaultRatingConfig(t)
	result, err := Rate(hevcMKVWithDTS(), cfg)
	if err != nil {
		t.Fatalf("Rate: %v", err)
	}
	if got := result.Verdicts["WebClient"]; got != VerdictTranscode {
		t.Errorf("WebClient verdict = %s, want %s", got, VerdictTranscode)
	}
	if got := result.Verdicts["NativeApp"]; got != VerdictDirectPlay {
		t.Errorf("NativeApp verdict = %s, want %s", got, VerdictDirectPlay)
	}
}

func TestRateVerdictCountsMatchClientCount(t *testing.T) {
	cfg := defaultRatingConfig(t)
	result, err := Rate(hevcMKVWithDTS(), cfg)
	if err != nil {
		t.Fatalf("Rate: %v", err)
	}
	total := result.DirectPlayClients + result.RemuxClients + result.TranscodeClients
	if total != len(cfg.Clients) {
		t.Errorf("verdict counts sum to %d, want %d", total, len(cfg.Clients))
	}
	if len(result.Verdicts) != len(cfg.Clients) {
		t.Errorf("Verdicts has %d entries, want %d", len(result.Verdicts), len(cfg.Clients))
	}
}

func TestRateIsDeterministic(t *testing.T) {
	cfg := defaultRatingConfig(t)
	attrs := hevcMKVWithDTS()
	attrs.Audio = append(attrs.Audio, media.AudioTrack{Codec: "truehd", Channels: 8}, media.AudioTrack{Codec: "pcm_s24le", Channels: 2})
	attrs.Subtitles = []media.SubtitleTrack{{Format: "hdmv_pgs_subtitle"}, {Format: "subrip"}}

	first, err := Rate(attrs, cfg)
	if err != nil {
		t.Fatalf("Rate: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := Rate(attrs, cfg)
		if err != nil {
			t.Fatalf("Rate (repeat %d): %v", i, err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("repeat %d differs:\nfirst: %+v\nagain: %+v", i, first, again)
		}
	}
}

func TestRateScoreStaysInBounds(t *testing.T) {
	cfg := defaultRatingConfig(t)
	hostile := &media.TechnicalAttributes{
		Path:            "/library/old/rip.avi",
		Container:       "avi",
		SizeBytes:       90 << 30,
		DurationSeconds: 3600,
		VideoCodec:      "mpeg4",
		CodecTag:        "XVID",
		CodecTagMatches: false,
		BitDepth:        12,
		Audio: []media.AudioTrack{
			{Codec: "dts", Channels: 2},
			{Codec: "truehd", Channels: 2},
			{Codec: "mp2", Channels: 2},
		},
		Subtitles: []media.SubtitleTrack{{Format: "hdmv_pgs_subtitle"}, {Format: "dvd_subtitle"}},
	}
	result, err := Rate(hostile, cfg)
	if err != nil {
		t.Fatalf("Rate: %v", err)
	}
	if result.Score < 0 || result.Score > 100 {
		t.Errorf("score %d outside [0,100]", result.Score)
	}
	if result.Score != 0 {
		t.Errorf("score = %d, want 0 after stacked deductions", result.Score)
	}
	if result.Category != CategoryPoor {
		t.Errorf("category = %s, want %s", result.Category, CategoryPoor)
	}
}

func TestRateCleanFileHasNoIssues(t *testing.T) {
	cfg := defaultRatingConfig(t)
	attrs := &media.TechnicalAttributes{
		Path:            "/library/movies/clean.mkv",
		Container:       "mkv",
		SizeBytes:       4 << 30,
		DurationSeconds: 6000,
		VideoCodec:      "hevc",
		CodecTag:        "hvc1",
		CodecTagMatches: true,
		BitDepth:        10,
		HDR:             true,
		HDRType:         "HDR10",
		Audio:           []media.AudioTrack{{Codec: "eac3", Channels: 6}},
		Subtitles:       []media.SubtitleTrack{{Format: "subrip"}},
	}
	result, err := Rate(attrs, cfg)
	if err != nil {
		t.Fatalf("Rate: %v", err)
	}
	if len(result.Issues) != 0 {
		t.Errorf("issues = %v, want none", result.Issues)
	}
	if len(result.Recommendations) != 0 {
		t.Errorf("recommendations = %v, want none", result.Recommendations)
	}
	if result.Score != 100 {
		t.Errorf("score = %d, want 100", result.Score)
	}
	if result.Category != CategoryOptimal {
		t.Errorf("category = %s, want %s", result.Category, CategoryOptimal)
	}
}

func TestRateContainerOnlyShortfallIsRemux(t *testing.T) {
	cfg := defaultRatingConfig(t)
	attrs := &media.TechnicalAttributes{
		Path:            "/library/shows/ep.mkv",
		Container:       "mkv",
		SizeBytes:       1 << 30,
		DurationSeconds: 2600,
		VideoCodec:      "h264",
		CodecTag:        "avc1",
		CodecTagMatches: true,
		BitDepth:        8,
		Audio:           []media.AudioTrack{{Codec: "aac", Channels: 6}},
	}
	result, err := Rate(attrs, cfg)
	if err != nil {
		t.Fatalf("Rate: %v", err)
	}
	// mkv is only partial for the web client while every codec dimension
	// is supported, so the container rewrite path applies.
	if got := result.Verdicts["WebClient"]; got != VerdictRemux {
		t.Errorf("WebClient verdict = %s, want %s", got, VerdictRemux)
	}
	if got := result.Verdicts["NativeApp"]; got != VerdictDirectPlay {
		t.Errorf("NativeApp verdict = %s, want %s", got, VerdictDirectPlay)
	}
}

func TestRateUnsupportedAudioForcesTranscode(t *testing.T) {
	cfg := defaultRatingConfig(t)
	attrs := &media.TechnicalAttributes{
		Path:            "/library/movies/dts.mp4",
		Container:       "mp4",
		SizeBytes:       1 << 30,
		DurationSeconds: 5400,
		VideoCodec:      "h264",
		CodecTag:        "avc1",
		CodecTagMatches: true,
		BitDepth:        8,
		Audio:           []media.AudioTrack{{Codec: "dts", Channels: 6}},
	}
	result, err := Rate(attrs, cfg)
	if err != nil {
		t.Fatalf("Rate: %v", err)
	}
	// Remux cannot change codecs, so an unsupported audio codec wins over
	// the supported container.
	if got := result.Verdicts["WebClient"]; got != VerdictTranscode {
		t.Errorf("WebClient verdict = %s, want %s", got, VerdictTranscode)
	}
}

func TestRateSecondaryDeductions(t *testing.T) {
	cfg := defaultRatingConfig(t)
	attrs := &media.TechnicalAttributes{
		Path:            "/library/movies/heavy.mp4",
		Container:       "mp4",
		SizeBytes:       60 << 30,
		DurationSeconds: 7200, // ~71 Mbps, over the 40 Mbps ceiling
		VideoCodec:      "h264",
		CodecTag:        "hvc1",
		CodecTagMatches: false,
		BitDepth:        8,
		Audio:           []media.AudioTrack{{Codec: "aac", Channels: 2}},
	}
	result, err := Rate(attrs, cfg)
	if err != nil {
		t.Fatalf("Rate: %v", err)
	}
	want := 100 - cfg.Weights.HDR - cfg.Weights.Surround - cfg.Weights.Bitrate - cfg.Weights.CodecTag
	if result.Score != want {
		t.Errorf("score = %d, want %d\nissues: %v", result.Score, want, result.Issues)
	}
	for _, needle := range []string{"SDR", "surround", "bitrate", "codec tag"} {
		if !containsSubstring(result.Issues, needle) {
			t.Errorf("issues missing %q: %v", needle, result.Issues)
		}
	}
}

func TestRecommendationsDeduplicated(t *testing.T) {
	cfg := defaultRatingConfig(t)
	attrs := hevcMKVWithDTS()
	attrs.Audio = append(attrs.Audio, media.AudioTrack{Codec: "truehd", Channels: 8})
	result, err := Rate(attrs, cfg)
	if err != nil {
		t.Fatalf("Rate: %v", err)
	}
	audioAdvice := 0
	for _, rec := range result.Recommendations {
		if strings.Contains(rec, "audio") {
			audioAdvice++
		}
	}
	if audioAdvice != 1 {
		t.Errorf("audio recommendations = %d, want 1: %v", audioAdvice, result.Recommendations)
	}
}

func TestRateRejectsInvalidInput(t *testing.T) {
	cfg := defaultRatingConfig(t)
	if _, err := Rate(nil, cfg); err == nil {
		t.Error("expected error for nil attributes")
	}
	empty := cfg
	empty.Clients = nil
	if _, err := Rate(hevcMKVWithDTS(), empty); err == nil {
		t.Error("expected error for config with no clients")
	}
}

func TestBuildConfigRejectsUnknownSupportLevel(t *testing.T) {
	cfg := config.Default()
	cfg.Matrix.Defaults["video"]["h264"] = "sometimes"
	if _, err := BuildConfig(&cfg); err == nil {
		t.Error("expected error for unknown support level")
	}
}

func TestMatrixOverrideWinsOverDefault(t *testing.T) {
	cfg := defaultRatingConfig(t)
	if got := cfg.Matrix.Lookup("NativeApp", CategoryVideo, "hevc"); got != Supported {
		t.Errorf("NativeApp hevc = %s, want supported", got)
	}
	if got := cfg.Matrix.Lookup("WebClient", CategoryVideo, "hevc"); got != Partial {
		t.Errorf("WebClient hevc = %s, want partial", got)
	}
	if got := cfg.Matrix.Lookup("WebClient", CategoryVideo, "vc1"); got != Unsupported {
		t.Errorf("WebClient vc1 = %s, want unsupported", got)
	}
}

func containsSubstring(haystack []string, needle string) bool {
	for _, s := range haystack {
		if strings.Contains(s, needle) {
			return true
		}
	}
	return false
}
