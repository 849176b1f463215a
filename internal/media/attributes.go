package media

import "strings"

// AudioTrack describes one audio stream.
type AudioTrack struct {
	Codec      string `json:"codec"`
	Channels   int    `json:"channels"`
	SampleRate int    `json:"sample_rate"`
	Language   string `json:"language"`
}

// SubtitleTrack describes one subtitle stream. External tracks come from
// sidecar files discovered next to the video rather than embedded streams.
type SubtitleTrack struct {
	Format   string `json:"format"`
	Language string `json:"language"`
	External bool   `json:"external"`
}

// TechnicalAttributes is the full extraction result for a playable file.
type TechnicalAttributes struct {
	Path            string          `json:"path"`
	Container       string          `json:"container"`
	SizeBytes       int64           `json:"size_bytes"`
	DurationSeconds float64         `json:"duration_seconds"`
	VideoCodec      string          `json:"video_codec"`
	CodecTag        string          `json:"codec_tag"`
	CodecTagMatches bool            `json:"codec_tag_matches"`
	Width           int             `json:"width"`
	Height          int             `json:"height"`
	FrameRate       float64         `json:"frame_rate"`
	BitDepth        int             `json:"bit_depth"`
	HDR             bool            `json:"hdr"`
	HDRType         string          `json:"hdr_type"`
	Audio           []AudioTrack    `json:"audio"`
	Subtitles       []SubtitleTrack `json:"subtitles"`
}

// BrokenResult records a file whose metadata could not be extracted.
type BrokenResult struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Resolution returns a display label derived from the frame dimensions.
// Slightly letterboxed content still classifies at its nominal resolution
// (1920x1036 is 1080p).
func (a TechnicalAttributes) Resolution() string {
	switch {
	case a.Height >= 2160 || a.Width >= 3840:
		return "4K"
	case a.Height >= 900 || a.Width >= 1800:
		return "1080p"
	case a.Height >= 600 || a.Width >= 1200:
		return "720p"
	case a.Height >= 400:
		return "480p"
	case a.Height > 0:
		return "SD"
	default:
		return ""
	}
}

// BitrateMbps estimates the stream bitrate in megabits per second from the
// file size and duration. Returns 0 when the duration is unknown.
func (a TechnicalAttributes) BitrateMbps() float64 {
	if a.DurationSeconds <= 0 || a.SizeBytes <= 0 {
		return 0
	}
	return float64(a.SizeBytes) * 8 / a.DurationSeconds / 1_000_000
}

// HasSurround reports whether any audio track carries more than two channels.
func (a TechnicalAttributes) HasSurround() bool {
	for _, track := range a.Audio {
		if track.Channels > 2 {
			return true
		}
	}
	return false
}

// expectedCodecTags maps a video codec to the container tags that correctly
// describe it. An empty tag is never a mismatch; many containers omit tags.
var expectedCodecTags = map[string][]string{
	"h264": {"avc1", "h264", "x264"},
	"hevc": {"hvc1", "hev1", "hevc", "x265"},
	"av1":  {"av01"},
	"vp9":  {"vp09"},
}

// CodecTagCorrect reports whether tag plausibly describes codec. Unknown
// codecs and absent tags are treated as correct.
func CodecTagCorrect(codec, tag string) bool {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" || tag == "[0][0][0][0]" {
		return true
	}
	expected, known := expectedCodecTags[strings.ToLower(codec)]
	if !known {
		return true
	}
	for _, candidate := range expected {
		if tag == candidate {
			return true
		}
	}
	return false
}
