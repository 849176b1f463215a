package rating

import (
	"fmt"
	"strings"

	"playarr/internal/config"
)

// Support is the compatibility level a client matrix assigns to a single
// property value.
type Support int

const (
	Unsupported Support = iota
	Partial
	Supported
)

func (s Support) String() string {
	switch s {
	case Supported:
		return "supported"
	case Partial:
		return "partial"
	default:
		return "unsupported"
	}
}

// ParseSupport converts the textual levels used in configuration files.
func ParseSupport(value string) (Support, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "supported":
		return Supported, nil
	case "partial":
		return Partial, nil
	case "unsupported":
		return Unsupported, nil
	default:
		return Unsupported, fmt.Errorf("unknown support level %q", value)
	}
}

// Matrix categories. Values in the matrix are lowercase.
const (
	CategoryContainer = "container"
	CategoryVideo     = "video"
	CategoryAudio     = "audio"
	CategorySubtitle  = "subtitle"
	CategoryBitDepth  = "bitdepth"
)

// Matrix holds per-client support tables. Defaults apply to every client;
// a client override for the same category and value wins. Values absent
// from both tables are treated as Unsupported.
type Matrix struct {
	defaults  map[string]map[string]Support
	overrides map[string]map[string]map[string]Support
}

// Lookup resolves the support level for one property value on one client.
func (m Matrix) Lookup(client, category, value string) Support {
	value = strings.ToLower(value)
	if byCategory, ok := m.overrides[client]; ok {
		if byValue, ok := byCategory[category]; ok {
			if level, ok := byValue[value]; ok {
				return level
			}
		}
	}
	if byValue, ok := m.defaults[category]; ok {
		if level, ok := byValue[value]; ok {
			return level
		}
	}
	return Unsupported
}

// Weights mirrors config.Weights as plain score deductions.
type Weights struct {
	VideoCodec     int
	AudioCodec     int
	Container      int
	SubtitleFormat int
	BitDepth       int
	HDR            int
	Surround       int
	Bitrate        int
	CodecTag       int
}

// Config is an immutable snapshot of everything Rate needs. Build one with
// BuildConfig; a zero Config fails validation.
type Config struct {
	SupportedContainers  map[string]bool
	SupportedVideoCodecs map[string]bool
	SupportedAudioCodecs map[string]bool
	SupportedSubtitles   map[string]bool
	SupportedBitDepths   map[int]bool

	Weights          Weights
	MaxBitrateMbps   float64
	OptimalThreshold int
	GoodThreshold    int

	Clients []string
	Matrix  Matrix
}

func (c Config) validate() error {
	if len(c.Clients) == 0 {
		return fmt.Errorf("rating config: no clients defined")
	}
	if c.OptimalThreshold < c.GoodThreshold {
		return fmt.Errorf("rating config: optimal threshold %d below good threshold %d", c.OptimalThreshold, c.GoodThreshold)
	}
	if c.MaxBitrateMbps <= 0 {
		return fmt.Errorf("rating config: max bitrate must be positive")
	}
	return nil
}

// BuildConfig snapshots the relevant parts of the application configuration.
// The returned Config shares nothing mutable with cfg, so later config
// reloads cannot change an in-flight rating pass.
func BuildConfig(cfg *config.Config) (Config, error) {
	out := Config{
		SupportedContainers:  toSet(cfg.Rating.SupportedContainers),
		SupportedVideoCodecs: toSet(cfg.Rating.SupportedVideoCodecs),
		SupportedAudioCodecs: toSet(cfg.Rating.SupportedAudioCodecs),
		SupportedSubtitles:   toSet(cfg.Rating.SupportedSubtitles),
		SupportedBitDepths:   make(map[int]bool, len(cfg.Rating.SupportedBitDepths)),
		Weights: Weights{
			VideoCodec:     cfg.Rating.Weights.VideoCodec,
			AudioCodec:     cfg.Rating.Weights.AudioCodec,
			Container:      cfg.Rating.Weights.Container,
			SubtitleFormat: cfg.Rating.Weights.SubtitleFormat,
			BitDepth:       cfg.Rating.Weights.BitDepth,
			HDR:            cfg.Rating.Weights.HDR,
			Surround:       cfg.Rating.Weights.Surround,
			Bitrate:        cfg.Rating.Weights.Bitrate,
			CodecTag:       cfg.Rating.Weights.CodecTag,
		},
		MaxBitrateMbps:   cfg.Rating.MaxBitrateMbps,
		OptimalThreshold: cfg.Rating.OptimalThreshold,
		GoodThreshold:    cfg.Rating.GoodThreshold,
		Clients:          append([]string(nil), cfg.Matrix.Clients...),
	}
	for _, depth := range cfg.Rating.SupportedBitDepths {
		out.SupportedBitDepths[depth] = true
	}

	matrix := Matrix{
		defaults:  make(map[string]map[string]Support, len(cfg.Matrix.Defaults)),
		overrides: make(map[string]map[string]map[string]Support, len(cfg.Matrix.Overrides)),
	}
	for category, values := range cfg.Matrix.Defaults {
		table := make(map[string]Support, len(values))
		for value, level := range values {
			parsed, err := ParseSupport(level)
			if err != nil {
				return Config{}, fmt.Errorf("matrix defaults %s/%s: %w", category, value, err)
			}
			table[strings.ToLower(value)] = parsed
		}
		matrix.defaults[strings.ToLower(category)] = table
	}
	for client, byCategory := range cfg.Matrix.Overrides {
		clientTable := make(map[string]map[string]Support, len(byCategory))
		for category, values := range byCategory {
			table := make(map[string]Support, len(values))
			for value, level := range values {
				parsed, err := ParseSupport(level)
				if err != nil {
					return Config{}, fmt.Errorf("matrix override %s/%s/%s: %w", client, category, value, err)
				}
				table[strings.ToLower(value)] = parsed
			}
			clientTable[strings.ToLower(category)] = table
		}
		matrix.overrides[client] = clientTable
	}
	out.Matrix = matrix

	if err := out.validate(); err != nil {
		return Config{}, err
	}
	return out, nil
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, value := range values {
		set[strings.ToLower(value)] = true
	}
	return set
}
