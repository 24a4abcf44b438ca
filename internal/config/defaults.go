package config

const (
	defaultDataDir         = "~/.local/share/tabcap"
	defaultLogDir          = "~/.local/share/tabcap/logs"
	defaultTokenPath       = "~/.config/tabcap/token"
	defaultUploadTimeout   = 10
	defaultChunkIntervalMs = 1000
	defaultLevelIntervalMs = 100
	defaultDenoiseFrameMs  = 10
	defaultStartTimeout    = 10
	defaultStopTimeout     = 15
	defaultCommandTimeout  = 5
	defaultPageBind        = "127.0.0.1:7821"
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			LogDir:    defaultLogDir,
			TokenPath: defaultTokenPath,
		},
		Upload: Upload{
			RequestTimeout: defaultUploadTimeout,
		},
		Capture: Capture{
			ChunkIntervalMs:   defaultChunkIntervalMs,
			LevelIntervalMs:   defaultLevelIntervalMs,
			MicrophoneEnabled: true,
			EchoCancellation:  true,
			NoiseSuppression:  true,
			AutoGainControl:   true,
			DeviceMonitor:     true,
		},
		Denoise: Denoise{
			Enabled: false,
			FrameMs: defaultDenoiseFrameMs,
		},
		Timeouts: Timeouts{
			Start:   defaultStartTimeout,
			Stop:    defaultStopTimeout,
			Command: defaultCommandTimeout,
		},
		Bridge: Bridge{
			PageBind: defaultPageBind,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
