package rating

import "strings"

// recommendation prefixes keyed by the issue strings Rate emits. Issues
// without an entry (SDR, no surround) carry no actionable fix and produce
// nothing.
var recommendationTable = []struct {
	prefix string
	advice string
}{
	{"unsupported container", "remux into a widely supported container such as MP4"},
	{"unsupported video codec", "re-encode video to H.264 for broad client support"},
	{"unsupported audio codec", "re-encode audio to AAC or add a compatible fallback track"},
	{"unsupported subtitle format", "convert subtitles to SRT"},
	{"unsupported bit depth", "tone-map to 8-bit for clients without 10-bit decoders"},
	{"codec tag", "rewrite the container to correct the codec tag"},
	{"estimated bitrate", "re-encode at a lower bitrate to stay below the configured ceiling"},
}

// recommend maps issues to advice with a fixed lookup, deduplicating so a
// file with three unsupported audio tracks yields one audio recommendation.
func recommend(issues []string) []string {
	var out []string
	seen := make(map[string]bool, len(recommendationTable))
	for _, issue := range issues {
		for _, entry := range recommendationTable {
			if strings.HasPrefix(issue, entry.prefix) && !seen[entry.advice] {
				seen[entry.advice] = true
				out = append(out, entry.advice)
			}
		}
	}
	return out
}
