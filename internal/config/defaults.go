package config

const (
	defaultDataDir             = "~/.local/share/playarr"
	defaultLogDir              = "~/.local/share/playarr/logs"
	defaultAPIBind             = "127.0.0.1:7733"
	defaultLogLevel            = "info"
	defaultLogFormat           = "auto"
	defaultProbeTimeoutSeconds = 60
	defaultOptimalThreshold    = 80
	defaultGoodThreshold       = 60
	defaultMaxBitrateMbps      = 40.0
	defaultServarrTimeout      = 30
)

// Default returns a Config populated with repository defaults. The default
// matrix covers the broadly deployed web and native clients; site-specific
// clients are added through the overrides table.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
		Scan: Scan{
			ProbeTimeoutSeconds: defaultProbeTimeoutSeconds,
		},
		Rating: Rating{
			OptimalThreshold:     defaultOptimalThreshold,
			GoodThreshold:        defaultGoodThreshold,
			MaxBitrateMbps:       defaultMaxBitrateMbps,
			SupportedVideoCodecs: []string{"h264", "hevc", "av1"},
			SupportedAudioCodecs: []string{"aac", "ac3", "eac3", "mp3", "opus", "flac"},
			SupportedContainers:  []string{"mp4", "mkv", "webm"},
			SupportedSubtitles:   []string{"subrip", "ass", "mov_text"},
			SupportedBitDepths:   []int{8, 10},
			Weights: Weights{
				VideoCodec:     25,
				AudioCodec:     15,
				Container:      10,
				SubtitleFormat: 5,
				BitDepth:       10,
				HDR:            5,
				Surround:       5,
				Bitrate:        10,
				CodecTag:       5,
			},
		},
		Matrix: Matrix{
			Clients: []string{"WebClient", "NativeApp"},
			Defaults: map[string]map[string]string{
				"container": {
					"mp4":  "supported",
					"mkv":  "partial",
					"webm": "supported",
				},
				"video": {
					"h264": "supported",
					"hevc": "partial",
					"av1":  "partial",
				},
				"audio": {
					"aac":  "supported",
					"mp3":  "supported",
					"ac3":  "partial",
					"eac3": "partial",
					"opus": "supported",
					"flac": "supported",
				},
				"subtitle": {
					"subrip":   "supported",
					"ass":      "partial",
					"mov_text": "supported",
				},
				"bitdepth": {
					"8":  "supported",
					"10": "partial",
				},
			},
			Overrides: map[string]map[string]map[string]string{
				"NativeApp": {
					"container": {"mkv": "supported"},
					"video":     {"hevc": "supported", "av1": "supported"},
					"audio":     {"ac3": "supported", "eac3": "supported", "dts": "supported"},
					"subtitle":  {"ass": "supported"},
					"bitdepth":  {"10": "supported"},
				},
			},
		},
		Sonarr: Servarr{TimeoutSeconds: defaultServarrTimeout},
		Radarr: Servarr{TimeoutSeconds: defaultServarrTimeout},
	}
}
