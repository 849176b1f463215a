package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

var validSupportLevels = map[string]struct{}{
	"supported":   {},
	"partial":     {},
	"unsupported": {},
}

var validMatrixCategories = map[string]struct{}{
	"container": {},
	"video":     {},
	"audio":     {},
	"subtitle":  {},
	"bitdepth":  {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateScan(); err != nil {
		return err
	}
	if err := c.validateRating(); err != nil {
		return err
	}
	if err := c.validateMatrix(); err != nil {
		return err
	}
	if err := c.validateServarr("sonarr", &c.Sonarr); err != nil {
		return err
	}
	if err := c.validateServarr("radarr", &c.Radarr); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateScan() error {
	if c.Scan.ProbeTimeoutSeconds <= 0 {
		return errors.New("scan.probe_timeout_seconds must be positive")
	}
	if schedule := strings.TrimSpace(c.Scan.Schedule); schedule != "" {
		if _, err := cron.ParseStandard(schedule); err != nil {
			return fmt.Errorf("scan.schedule: %w", err)
		}
	}
	return nil
}

func (c *Config) validateRating() error {
	r := c.Rating
	if r.GoodThreshold < 0 || r.GoodThreshold > 100 {
		return errors.New("rating.good_threshold must be between 0 and 100")
	}
	if r.OptimalThreshold < 0 || r.OptimalThreshold > 100 {
		return errors.New("rating.optimal_threshold must be between 0 and 100")
	}
	if r.OptimalThreshold < r.GoodThreshold {
		return errors.New("rating.optimal_threshold must be >= rating.good_threshold")
	}
	if r.MaxBitrateMbps <= 0 {
		return errors.New("rating.max_bitrate_mbps must be positive")
	}
	for name, weight := range map[string]int{
		"video_codec":     r.Weights.VideoCodec,
		"audio_codec":     r.Weights.AudioCodec,
		"container":       r.Weights.Container,
		"subtitle_format": r.Weights.SubtitleFormat,
		"bit_depth":       r.Weights.BitDepth,
		"hdr":             r.Weights.HDR,
		"surround":        r.Weights.Surround,
		"bitrate":         r.Weights.Bitrate,
		"codec_tag":       r.Weights.CodecTag,
	} {
		if weight < 0 || weight > 100 {
			return fmt.Errorf("rating.weights.%s must be between 0 and 100", name)
		}
	}
	return nil
}

func (c *Config) validateMatrix() error {
	if len(c.Matrix.Clients) == 0 {
		return errors.New("matrix.clients must name at least one playback client")
	}
	seen := make(map[string]struct{}, len(c.Matrix.Clients))
	for _, client := range c.Matrix.Clients {
		name := strings.TrimSpace(client)
		if name == "" {
			return errors.New("matrix.clients must not contain empty names")
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("matrix.clients lists %q twice", name)
		}
		seen[name] = struct{}{}
	}

	if err := validateMatrixTable("matrix.defaults", c.Matrix.Defaults); err != nil {
		return err
	}
	for client, table := range c.Matrix.Overrides {
		if _, known := seen[client]; !known {
			return fmt.Errorf("matrix.overrides references unknown client %q", client)
		}
		if err := validateMatrixTable("matrix.overrides."+client, table); err != nil {
			return err
		}
	}
	return nil
}

func validateMatrixTable(prefix string, table map[string]map[string]string) error {
	for category, row := range table {
		if _, ok := validMatrixCategories[category]; !ok {
			return fmt.Errorf("%s: unknown category %q", prefix, category)
		}
		for value, level := range row {
			if _, ok := validSupportLevels[level]; !ok {
				return fmt.Errorf("%s.%s.%s: unknown support level %q", prefix, category, value, level)
			}
		}
	}
	return nil
}

func (c *Config) validateServarr(name string, s *Servarr) error {
	if !s.Enabled {
		return nil
	}
	if strings.TrimSpace(s.URL) == "" {
		return fmt.Errorf("%s.url must be set when %s.enabled is true", name, name)
	}
	if strings.TrimSpace(s.APIKey) == "" {
		return fmt.Errorf("%s.api_key must be set when %s.enabled is true (or via PLAYARR_%s_API_KEY)", name, name, strings.ToUpper(name))
	}
	for i, mapping := range s.PathMappings {
		if mapping.From == "" || mapping.To == "" {
			return fmt.Errorf("%s.path_mappings[%d]: from and to must both be set", name, i)
		}
	}
	return nil
}
