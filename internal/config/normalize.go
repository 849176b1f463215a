package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	c.normalizeRating()
	c.normalizeMatrix()
	c.normalizeServarr(&c.Sonarr, "PLAYARR_SONARR_API_KEY")
	c.normalizeServarr(&c.Radarr, "PLAYARR_RADARR_API_KEY")
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
}

func (c *Config) normalizeRating() {
	c.Rating.SupportedVideoCodecs = lowerAll(c.Rating.SupportedVideoCodecs)
	c.Rating.SupportedAudioCodecs = lowerAll(c.Rating.SupportedAudioCodecs)
	c.Rating.SupportedContainers = lowerAll(c.Rating.SupportedContainers)
	c.Rating.SupportedSubtitles = lowerAll(c.Rating.SupportedSubtitles)
}

func (c *Config) normalizeMatrix() {
	c.Matrix.Defaults = lowerMatrix(c.Matrix.Defaults)
	for client, table := range c.Matrix.Overrides {
		c.Matrix.Overrides[client] = lowerMatrix(table)
	}
}

func (c *Config) normalizeServarr(s *Servarr, keyEnv string) {
	s.URL = strings.TrimRight(strings.TrimSpace(s.URL), "/")
	if env := os.Getenv(keyEnv); env != "" {
		s.APIKey = env
	}
	if s.TimeoutSeconds <= 0 {
		s.TimeoutSeconds = defaultServarrTimeout
	}
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func lowerMatrix(table map[string]map[string]string) map[string]map[string]string {
	if table == nil {
		return nil
	}
	normalized := make(map[string]map[string]string, len(table))
	for category, row := range table {
		category = strings.ToLower(strings.TrimSpace(category))
		cleaned := make(map[string]string, len(row))
		for value, level := range row {
			cleaned[strings.ToLower(strings.TrimSpace(value))] = strings.ToLower(strings.TrimSpace(level))
		}
		normalized[category] = cleaned
	}
	return normalized
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		return filepath.Join(home, trimmed[2:]), nil
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve path %q: %w", trimmed, err)
	}
	return abs, nil
}
