package rating

import (
	"fmt"
	"sort"
	"strings"

	"playarr/internal/media"
)

// Verdict is a single client's per-file playback outcome.
type Verdict string

const (
	VerdictDirectPlay Verdict = "direct_play"
	VerdictRemux      Verdict = "remux"
	VerdictTranscode  Verdict = "transcode"
)

// Category buckets a score for display.
type Category string

const (
	CategoryOptimal Category = "Optimal"
	CategoryGood    Category = "Good"
	CategoryPoor    Category = "Poor"
)

// Result is the full outcome of rating one file.
type Result struct {
	Score    int
	Category Category

	Verdicts          map[string]Verdict
	DirectPlayClients int
	RemuxClients      int
	TranscodeClients  int

	Issues          []string
	Recommendations []string
}

// Rate scores attrs against cfg. It touches no shared state and performs
// no I/O; callers rebuild cfg from live configuration before each pass so
// threshold and matrix edits take effect without a restart.
func Rate(attrs *media.TechnicalAttributes, cfg Config) (Result, error) {
	if attrs == nil {
		return Result{}, fmt.Errorf("rate: nil attributes")
	}
	if err := cfg.validate(); err != nil {
		return Result{}, err
	}

	score := 100
	var issues []string
	deduct := func(weight int, issue string) {
		score -= weight
		issues = append(issues, issue)
	}

	container := strings.ToLower(attrs.Container)
	videoCodec := strings.ToLower(attrs.VideoCodec)
	audioCodecs := distinctAudioCodecs(attrs.Audio)
	subtitleFormats := distinctSubtitleFormats(attrs.Subtitles)

	if container != "" && !cfg.SupportedContainers[container] {
		deduct(cfg.Weights.Container, "unsupported container: "+container)
	}
	if videoCodec != "" && !cfg.SupportedVideoCodecs[videoCodec] {
		deduct(cfg.Weights.VideoCodec, "unsupported video codec: "+videoCodec)
	}
	for _, codec := range audioCodecs {
		if !cfg.SupportedAudioCodecs[codec] {
			deduct(cfg.Weights.AudioCodec, "unsupported audio codec: "+codec)
		}
	}
	for _, format := range subtitleFormats {
		if !cfg.SupportedSubtitles[format] {
			deduct(cfg.Weights.SubtitleFormat, "unsupported subtitle format: "+format)
		}
	}
	if attrs.BitDepth > 0 && !cfg.SupportedBitDepths[attrs.BitDepth] {
		deduct(cfg.Weights.BitDepth, fmt.Sprintf("unsupported bit depth: %d", attrs.BitDepth))
	}

	// Secondary deductions. SDR and stereo-only are scoring signals, not
	// playback problems, but they still surface as issues so operators can
	// see why a score fell short.
	if !attrs.HDR {
		deduct(cfg.Weights.HDR, "no HDR metadata (SDR)")
	}
	if len(attrs.Audio) > 0 && !attrs.HasSurround() {
		deduct(cfg.Weights.Surround, "no surround audio track")
	}
	if bitrate := attrs.BitrateMbps(); bitrate > cfg.MaxBitrateMbps {
		deduct(cfg.Weights.Bitrate, fmt.Sprintf("estimated bitrate %.1f Mbps exceeds %.1f Mbps ceiling", bitrate, cfg.MaxBitrateMbps))
	}
	if !attrs.CodecTagMatches && attrs.CodecTag != "" {
		deduct(cfg.Weights.CodecTag, fmt.Sprintf("codec tag %q does not match codec %q", attrs.CodecTag, videoCodec))
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	result := Result{
		Score:    score,
		Verdicts: make(map[string]Verdict, len(cfg.Clients)),
		Issues:   issues,
	}
	for _, client := range cfg.Clients {
		verdict := clientVerdict(client, cfg.Matrix, container, videoCodec, audioCodecs, subtitleFormats, attrs.BitDepth)
		result.Verdicts[client] = verdict
		switch verdict {
		case VerdictDirectPlay:
			result.DirectPlayClients++
		case VerdictRemux:
			result.RemuxClients++
		default:
			result.TranscodeClients++
		}
	}

	result.Recommendations = recommend(issues)
	result.Category = categorize(score, cfg)
	return result, nil
}

// clientVerdict applies one client's matrix row. Every checked dimension
// Supported means Direct Play. A container-only shortfall with all codecs,
// subtitles and bit depth Supported means Remux, since rewriting the
// container needs no re-encode. Anything else is Transcode: remux cannot
// change codecs, and bit-depth or subtitle-only shortfalls resolve
// conservatively the same way.
func clientVerdict(client string, matrix Matrix, container, videoCodec string, audioCodecs, subtitleFormats []string, bitDepth int) Verdict {
	containerOK := container == "" || matrix.Lookup(client, CategoryContainer, container) == Supported

	codecsOK := true
	if videoCodec != "" && matrix.Lookup(client, CategoryVideo, videoCodec) != Supported {
		codecsOK = false
	}
	for _, codec := range audioCodecs {
		if matrix.Lookup(client, CategoryAudio, codec) != Supported {
			codecsOK = false
		}
	}
	for _, format := range subtitleFormats {
		if matrix.Lookup(client, CategorySubtitle, format) != Supported {
			codecsOK = false
		}
	}
	if bitDepth > 0 && matrix.Lookup(client, CategoryBitDepth, fmt.Sprintf("%d", bitDepth)) != Supported {
		codecsOK = false
	}

	switch {
	case containerOK && codecsOK:
		return VerdictDirectPlay
	case codecsOK:
		return VerdictRemux
	default:
		return VerdictTranscode
	}
}

func categorize(score int, cfg Config) Category {
	switch {
	case score >= cfg.OptimalThreshold:
		return CategoryOptimal
	case score >= cfg.GoodThreshold:
		return CategoryGood
	default:
		return CategoryPoor
	}
}

func distinctAudioCodecs(tracks []media.AudioTrack) []string {
	return distinct(tracks, func(t media.AudioTrack) string { return t.Codec })
}

func distinctSubtitleFormats(tracks []media.SubtitleTrack) []string {
	return distinct(tracks, func(t media.SubtitleTrack) string { return t.Format })
}

func distinct[T any](items []T, key func(T) string) []string {
	seen := make(map[string]bool, len(items))
	var out []string
	for _, item := range items {
		value := strings.ToLower(key(item))
		if value == "" || seen[value] {
			continue
		}
		seen[value] = true
		out = append(out, value)
	}
	sort.Strings(out)
	return out
}
