package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"blindtest/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "blindtest")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.HistoryDBPath() != filepath.Join(wantData, "history.db") {
		t.Fatalf("unexpected history path: %q", cfg.HistoryDBPath())
	}
	if cfg.Tools.FFmpeg != "ffmpeg" || cfg.Tools.FFprobe != "ffprobe" {
		t.Fatalf("unexpected tool defaults: %+v", cfg.Tools)
	}
	if cfg.Archive.Compression != config.CompressionNone {
		t.Fatalf("expected no archive compression by default, got %q", cfg.Archive.Compression)
	}
	if cfg.Server.Bind != "127.0.0.1:7590" {
		t.Fatalf("unexpected server bind: %q", cfg.Server.Bind)
	}
	if cfg.Export.ProbeConcurrency != config.Default().Export.ProbeConcurrency {
		t.Fatalf("unexpected probe concurrency: %d", cfg.Export.ProbeConcurrency)
	}
	if cfg.Metrics.TextfilePath != "" {
		t.Fatalf("expected metrics textfile disabled, got %q", cfg.Metrics.TextfilePath)
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(t.TempDir(), "blindtest.toml")
	cfg := config.Default()
	cfg.Paths.DataDir = "~/blindtest-data"
	cfg.Tools.FFmpeg = " /opt/ffmpeg/bin/ffmpeg "
	cfg.Export.Threads = 4
	cfg.Archive.Compression = "ZSTD"
	cfg.Metrics.TextfilePath = "~/metrics/blindtest.prom"
	cfg.Logging.Format = "JSON"

	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	loaded, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if loaded.Paths.DataDir != filepath.Join(tempHome, "blindtest-data") {
		t.Fatalf("unexpected data dir: %q", loaded.Paths.DataDir)
	}
	if loaded.Tools.FFmpeg != "/opt/ffmpeg/bin/ffmpeg" {
		t.Fatalf("expected trimmed ffmpeg path, got %q", loaded.Tools.FFmpeg)
	}
	if loaded.Archive.Compression != config.CompressionZstd {
		t.Fatalf("expected zstd compression, got %q", loaded.Archive.Compression)
	}
	if loaded.Metrics.TextfilePath != filepath.Join(tempHome, "metrics", "blindtest.prom") {
		t.Fatalf("unexpected textfile path: %q", loaded.Metrics.TextfilePath)
	}
	if loaded.Logging.Format != "json" {
		t.Fatalf("expected lowercased log format, got %q", loaded.Logging.Format)
	}
	args := loaded.ExportArgs(0)
	if len(args) != 2 || args[0] != "-threads" || args[1] != "4" {
		t.Fatalf("unexpected export args: %v", args)
	}
	if override := loaded.ExportArgs(8); override[1] != "8" {
		t.Fatalf("expected threads override, got %v", override)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"negative threads", func(c *config.Config) { c.Export.Threads = -1 }, "export.threads"},
		{"compression", func(c *config.Config) { c.Archive.Compression = "lz4" }, "archive.compression"},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"log level", func(c *config.Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"ntfy topic", func(c *config.Config) { c.Notifications.NtfyTopic = "ntfy.sh/quiz" }, "notifications.ntfy_topic"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestExportArgsOmittedWithoutThreads(t *testing.T) {
	cfg := config.Default()
	if args := cfg.ExportArgs(0); args != nil {
		t.Fatalf("expected no resource hints, got %v", args)
	}
}

func TestCreateSampleWritesEmbeddedConfig(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(target); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if string(data) != config.SampleConfig() {
		t.Fatal("sample config content mismatch")
	}

	var decoded config.Config
	if err := toml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("sample config does not parse: %v", err)
	}
	if decoded.Tools.FFprobe != "ffprobe" {
		t.Fatalf("unexpected sample ffprobe: %q", decoded.Tools.FFprobe)
	}
}
