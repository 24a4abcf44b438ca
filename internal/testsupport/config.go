// Package testsupport provides helpers shared by package tests.
package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"tabcap/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.TokenPath = filepath.Join(base, "token")
	cfg.Bridge.PageBind = "127.0.0.1:0"
	cfg.Bridge.PageOrigin = "https://meet.google.com"
	cfg.Capture.DeviceMonitor = false

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithToken writes the given token to the config's token path.
func WithToken(token string) ConfigOption {
	return func(cfg *config.Config) {
		if err := os.MkdirAll(filepath.Dir(cfg.Paths.TokenPath), 0o755); err != nil {
			panic(err)
		}
		if err := os.WriteFile(cfg.Paths.TokenPath, []byte(token+"\n"), 0o600); err != nil {
			panic(err)
		}
	}
}

// WithUploadEndpoint points the upload API at the given URL.
func WithUploadEndpoint(endpoint string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Upload.Endpoint = endpoint
	}
}

// WithMicrophoneDisabled turns ambient microphone capture off.
func WithMicrophoneDisabled() ConfigOption {
	return func(cfg *config.Config) {
		cfg.Capture.MicrophoneEnabled = false
	}
}
