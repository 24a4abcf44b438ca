package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tabcap/internal/config"
)

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("exists should be false for missing file")
	}
	if resolved == "" {
		t.Fatal("resolved path should be reported")
	}
	if cfg.Capture.ChunkIntervalMs != 1000 {
		t.Fatalf("chunk interval = %d", cfg.Capture.ChunkIntervalMs)
	}
	if !cfg.Capture.MicrophoneEnabled {
		t.Fatal("microphone should default enabled")
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
data_dir = "` + filepath.Join(dir, "data") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"

[upload]
endpoint = "  https://api.example.com/recordings  "
request_timeout = 20

[bridge]
page_bind = "127.0.0.1:9000"
page_origin = "https://meet.google.com/"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("exists should be true")
	}
	if cfg.Upload.Endpoint != "https://api.example.com/recordings" {
		t.Fatalf("endpoint = %q", cfg.Upload.Endpoint)
	}
	if cfg.Bridge.PageOrigin != "https://meet.google.com" {
		t.Fatalf("origin = %q, want trailing slash stripped", cfg.Bridge.PageOrigin)
	}
	if cfg.Upload.RequestTimeout != 20 {
		t.Fatalf("timeout = %d", cfg.Upload.RequestTimeout)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "bad endpoint",
			content: "[upload]\nendpoint = \"not a url\"\n",
			wantErr: "upload.endpoint",
		},
		{
			name:    "bad page bind",
			content: "[bridge]\npage_bind = \"no-port\"\n",
			wantErr: "bridge.page_bind",
		},
		{
			name:    "zero chunk interval",
			content: "[capture]\nchunk_interval_ms = 0\n",
			wantErr: "chunk_interval_ms",
		},
		{
			name:    "stop shorter than command",
			content: "[timeouts]\nstop = 1\ncommand = 5\n",
			wantErr: "timeouts.stop",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			_, _, _, err := config.Load(path)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.WriteSample(path); err != nil {
		t.Fatalf("WriteSample: %v", err)
	}
	if err := config.WriteSample(path); err == nil {
		t.Fatal("second WriteSample should refuse to overwrite")
	}

	// The sample must itself load cleanly.
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config does not load: %v", err)
	}
}

func TestDerivedPaths(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.DataDir = "/tmp/tabcap-test"

	if got := cfg.SocketPath(); got != "/tmp/tabcap-test/tabcap.sock" {
		t.Fatalf("socket = %q", got)
	}
	if got := cfg.LockPath(); got != "/tmp/tabcap-test/tabcapd.lock" {
		t.Fatalf("lock = %q", got)
	}
	if got := cfg.JournalPath(); got != "/tmp/tabcap-test/journal.db" {
		t.Fatalf("journal = %q", got)
	}
}
