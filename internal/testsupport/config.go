package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"blindtest/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Export.DefaultOutput = filepath.Join(base, "out", "output.mp4")
	cfgVal.Server.Bind = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithThreads sets the configured encoder thread count.
func WithThreads(threads int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Export.Threads = threads
	}
}

// WithStubbedTools writes ffmpeg and ffprobe stub scripts under the config's
// base directory and points the config at them. Each script body runs under
// /bin/sh.
func WithStubbedTools(ffmpegScript, ffprobeScript string) ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		write := func(name, body string) string {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
			return target
		}
		b.cfg.Tools.FFmpeg = write("ffmpeg", ffmpegScript)
		b.cfg.Tools.FFprobe = write("ffprobe", ffprobeScript)
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
