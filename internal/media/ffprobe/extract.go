package ffprobe

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"playarr/internal/language"
	"playarr/internal/media"
)

// DefaultTimeout bounds a single ffprobe invocation.
const DefaultTimeout = 60 * time.Second

// Extractor adapts ffprobe into the extract(path) contract the scanner
// consumes. It performs no rating logic.
type Extractor struct {
	Binary  string
	Timeout time.Duration
}

// NewExtractor builds an Extractor with the given binary and timeout.
// Zero values fall back to PATH lookup and DefaultTimeout.
func NewExtractor(binary string, timeout time.Duration) *Extractor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Extractor{Binary: binary, Timeout: timeout}
}

// Extract inspects path and returns either its technical attributes or a
// broken result. It never returns both.
func (e *Extractor) Extract(ctx context.Context, path string) (*media.TechnicalAttributes, *media.BrokenResult) {
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := Inspect(probeCtx, e.Binary, path)
	if err != nil {
		reason := err.Error()
		if probeCtx.Err() == context.DeadlineExceeded {
			reason = "ffprobe timed out after " + timeout.String()
		}
		return nil, &media.BrokenResult{Path: path, Reason: reason}
	}

	video := result.FirstVideoStream()
	if video == nil {
		return nil, &media.BrokenResult{Path: path, Reason: "no video stream"}
	}

	attrs := &media.TechnicalAttributes{
		Path:            path,
		Container:       containerName(path, result.Format.FormatName),
		SizeBytes:       result.SizeBytes(),
		DurationSeconds: result.DurationSeconds(),
		VideoCodec:      strings.ToLower(video.CodecName),
		CodecTag:        strings.ToLower(video.CodecTag),
		Width:           video.Width,
		Height:          video.Height,
		FrameRate:       parseFrameRate(video.RFrameRate),
		BitDepth:        bitDepth(*video),
	}
	attrs.CodecTagMatches = media.CodecTagCorrect(attrs.VideoCodec, attrs.CodecTag)
	attrs.HDRType = hdrType(*video)
	attrs.HDR = attrs.HDRType != ""

	for _, s := range result.AudioStreams() {
		sampleRate, _ := strconv.Atoi(s.SampleRate)
		attrs.Audio = append(attrs.Audio, media.AudioTrack{
			Codec:      strings.ToLower(s.CodecName),
			Channels:   s.Channels,
			SampleRate: sampleRate,
			Language:   language.Canonical(s.Tags["language"]),
		})
	}
	for _, s := range result.SubtitleStreams() {
		attrs.Subtitles = append(attrs.Subtitles, media.SubtitleTrack{
			Format:   strings.ToLower(s.CodecName),
			Language: language.Canonical(s.Tags["language"]),
		})
	}

	return attrs, nil
}

func containerName(path, formatName string) string {
	if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."); ext != "" {
		return ext
	}
	if formatName == "" {
		return ""
	}
	return strings.ToLower(strings.SplitN(formatName, ",", 2)[0])
}

func parseFrameRate(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	num, den, found := strings.Cut(raw, "/")
	if !found {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0
		}
		return parsed
	}
	n, errN := strconv.ParseFloat(num, 64)
	d, errD := strconv.ParseFloat(den, 64)
	if errN != nil || errD != nil || d == 0 {
		return 0
	}
	return n / d
}

func bitDepth(s Stream) int {
	if parsed, err := strconv.Atoi(strings.TrimSpace(s.BitsPerRawSample)); err == nil && parsed > 0 {
		return parsed
	}
	pix := strings.ToLower(s.PixFmt)
	switch {
	case strings.Contains(pix, "12le"), strings.Contains(pix, "12be"):
		return 12
	case strings.Contains(pix, "10le"), strings.Contains(pix, "10be"):
		return 10
	case pix != "":
		return 8
	default:
		return 0
	}
}

// hdrType classifies the dynamic range of a video stream. Dolby Vision is
// detected via side data; PQ transfer with BT.2020 primaries is HDR10; bare
// PQ and HLG are reported as such. SDR yields an empty string.
func hdrType(s Stream) string {
	for _, sd := range s.SideDataList {
		t := strings.ToLower(sd.SideDataType)
		if strings.Contains(t, "dovi") || strings.Contains(t, "dolby vision") {
			return "Dolby Vision"
		}
	}
	switch s.ColorTransfer {
	case "smpte2084":
		if s.ColorPrimaries == "bt2020" {
			return "HDR10"
		}
		return "PQ"
	case "arib-std-b67":
		return "HLG"
	}
	return ""
}
