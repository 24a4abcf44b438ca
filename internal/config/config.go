package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and socket configuration.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	LogDir    string `toml:"log_dir"`
	TokenPath string `toml:"token_path"`
}

// Upload contains configuration for the recording upload API.
type Upload struct {
	Endpoint       string `toml:"endpoint"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Capture contains configuration for the offscreen capture engine.
type Capture struct {
	ChunkIntervalMs   int  `toml:"chunk_interval_ms"`
	LevelIntervalMs   int  `toml:"level_interval_ms"`
	MicrophoneEnabled bool `toml:"microphone_enabled"`
	EchoCancellation  bool `toml:"echo_cancellation"`
	NoiseSuppression  bool `toml:"noise_suppression"`
	AutoGainControl   bool `toml:"auto_gain_control"`
	DeviceMonitor     bool `toml:"device_monitor"`
}

// Denoise contains configuration for the frame denoise processor.
type Denoise struct {
	Enabled bool `toml:"enabled"`
	FrameMs int  `toml:"frame_ms"`
}

// Timeouts contains per-call deadlines for cross-context commands, in seconds.
type Timeouts struct {
	Start   int `toml:"start"`
	Stop    int `toml:"stop"`
	Command int `toml:"command"`
}

// Bridge contains configuration for the page-level channel.
type Bridge struct {
	PageBind   string `toml:"page_bind"`
	PageOrigin string `toml:"page_origin"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for tabcap.
//
// Configuration sections by subsystem:
//   - Paths: data/log directories and auth token location
//   - Upload: recording upload API endpoint and timeout
//   - Capture: chunk/level intervals and microphone constraints
//   - Denoise: frame denoise processor settings
//   - Timeouts: popup-side and coordinator-side command deadlines
//   - Bridge: page channel bind address and allowed origin
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Upload   Upload   `toml:"upload"`
	Capture  Capture  `toml:"capture"`
	Denoise  Denoise  `toml:"denoise"`
	Timeouts Timeouts `toml:"timeouts"`
	Bridge   Bridge   `toml:"bridge"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/tabcap/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized. The boolean reports whether a
// config file was found on disk.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
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
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

// WriteSample writes the embedded sample configuration to the given path,
// refusing to overwrite an existing file.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config already exists at %s", expanded)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(expanded, []byte(sampleConfig), 0o644)
}

// EnsureDirectories creates the directories the daemon writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// SocketPath returns the daemon control socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.DataDir, "tabcap.sock")
}

// LockPath returns the daemon single-instance lock location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "tabcapd.lock")
}

// JournalPath returns the recording journal database location.
func (c *Config) JournalPath() string {
	return filepath.Join(c.Paths.DataDir, "journal.db")
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		return filepath.Join(home, trimmed[2:]), nil
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve path %s: %w", trimmed, err)
	}
	return abs, nil
}
