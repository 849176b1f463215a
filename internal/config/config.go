package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
	APIBind string `toml:"api_bind"`
}

// Logging contains log output configuration.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Scan contains scanning and metadata extraction settings.
type Scan struct {
	FFprobeBinary       string `toml:"ffprobe_binary"`
	ProbeTimeoutSeconds int    `toml:"probe_timeout_seconds"`
	Schedule            string `toml:"schedule"`
}

// Weights lists the score deduction applied per unsupported property.
type Weights struct {
	VideoCodec     int `toml:"video_codec"`
	AudioCodec     int `toml:"audio_codec"`
	Container      int `toml:"container"`
	SubtitleFormat int `toml:"subtitle_format"`
	BitDepth       int `toml:"bit_depth"`
	HDR            int `toml:"hdr"`
	Surround       int `toml:"surround"`
	Bitrate        int `toml:"bitrate"`
	CodecTag       int `toml:"codec_tag"`
}

// Rating contains the globally supported sets, deduction weights, and
// category thresholds used by the compatibility rating engine.
type Rating struct {
	OptimalThreshold     int      `toml:"optimal_threshold"`
	GoodThreshold        int      `toml:"good_threshold"`
	MaxBitrateMbps       float64  `toml:"max_bitrate_mbps"`
	SupportedVideoCodecs []string `toml:"supported_video_codecs"`
	SupportedAudioCodecs []string `toml:"supported_audio_codecs"`
	SupportedContainers  []string `toml:"supported_containers"`
	SupportedSubtitles   []string `toml:"supported_subtitle_formats"`
	SupportedBitDepths   []int    `toml:"supported_bit_depths"`
	Weights              Weights  `toml:"weights"`
}

// Matrix describes per-client codec support: a default table shared by all
// clients plus sparse per-client overrides. Category keys are "container",
// "video", "audio", "subtitle", and "bitdepth".
type Matrix struct {
	Clients   []string                                `toml:"clients"`
	Defaults  map[string]map[string]string            `toml:"defaults"`
	Overrides map[string]map[string]map[string]string `toml:"overrides"`
}

// PathMapping translates an externally reported path prefix into a locally
// visible one. Mappings apply in order; the first matching prefix wins.
type PathMapping struct {
	From string `toml:"from"`
	To   string `toml:"to"`
}

// Servarr contains connection settings for a Sonarr or Radarr instance.
type Servarr struct {
	Enabled        bool          `toml:"enabled"`
	URL            string        `toml:"url"`
	APIKey         string        `toml:"api_key"`
	TimeoutSeconds int           `toml:"timeout_seconds"`
	PathMappings   []PathMapping `toml:"path_mappings"`
}

// Config is the root configuration document.
type Config struct {
	Paths   Paths   `toml:"paths"`
	Logging Logging `toml:"logging"`
	Scan    Scan    `toml:"scan"`
	Rating  Rating  `toml:"rating"`
	Matrix  Matrix  `toml:"matrix"`
	Sonarr  Servarr `toml:"sonarr"`
	Radarr  Servarr `toml:"radarr"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/playarr/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. A missing file yields
// defaults rather than an error so the daemon can run unconfigured.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		data, err := os.ReadFile(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("read config: %w", err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}

		// Decoding onto the defaults merges map fields, which would leave
		// built-in matrix entries behind a user-narrowed client list. The
		// file's matrix tables replace the built-ins wholesale instead.
		var supplied struct {
			Matrix Matrix `toml:"matrix"`
		}
		if err := toml.Unmarshal(data, &supplied); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
		if supplied.Matrix.Clients != nil {
			cfg.Matrix.Clients = supplied.Matrix.Clients
		}
		if supplied.Matrix.Defaults != nil {
			cfg.Matrix.Defaults = supplied.Matrix.Defaults
		}
		if supplied.Matrix.Overrides != nil {
			cfg.Matrix.Overrides = supplied.Matrix.Overrides
		} else if supplied.Matrix.Clients != nil {
			// The built-in overrides only target the built-in client list;
			// drop the ones a narrowed list no longer names.
			known := make(map[string]struct{}, len(cfg.Matrix.Clients))
			for _, client := range cfg.Matrix.Clients {
				known[client] = struct{}{}
			}
			for client := range cfg.Matrix.Overrides {
				if _, ok := known[client]; !ok {
					delete(cfg.Matrix.Overrides, client)
				}
			}
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if os.IsNotExist(err) {
				return expanded, false, fmt.Errorf("config file not found: %s", expanded)
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if _, err := os.Stat(defaultPath); err != nil {
		if os.IsNotExist(err) {
			return defaultPath, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	return defaultPath, true, nil
}

// WriteSample writes the embedded sample configuration to path, refusing to
// overwrite an existing file.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config already exists: %s", expanded)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("ensure config directory: %w", err)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// EnsureDirectories creates the data and log directories if missing.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the sqlite database location under the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "playarr.db")
}

// LockPath returns the daemon instance lock location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "playarrd.lock")
}

// FFprobeBinary returns the configured ffprobe binary, defaulting to PATH lookup.
func (c *Config) FFprobeBinary() string {
	if strings.TrimSpace(c.Scan.FFprobeBinary) == "" {
		return "ffprobe"
	}
	return c.Scan.FFprobeBinary
}
