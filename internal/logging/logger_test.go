package logging_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"blindtest/internal/config"
	"blindtest/internal/logging"
)

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("export started")

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "blindtest.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "export started") {
		t.Fatalf("expected message in log file, got %q", content)
	}
}

func TestConsoleLoggerFormatsComponentAndExportID(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{
		Format: "console",
		Level:  "info",
		Outputs: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := logging.WithExportID(context.Background(), "0f8fad5b-d9cb-469f-a165-70867728950e")
	component := logging.NewComponentLogger(logger, "export")
	logging.WithContext(ctx, component).Info("frame progress", logging.Uint64("frame", 250))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	if !strings.Contains(line, "INFO [0f8fad5b] export: frame progress frame=250") {
		t.Fatalf("unexpected console line: %q", line)
	}
	if strings.Contains(line, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", line)
	}
}

func TestJSONLoggerUsesShortKeys(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{
		Format: "json",
		Level:  "info",
		Outputs: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "probe failed", "probe_failed")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(content, &payload); err != nil {
		t.Fatalf("decode json log: %v (%q)", err, content)
	}
	if payload["level"] != "warn" || payload["msg"] != "probe failed" {
		t.Fatalf("unexpected payload: %v", payload)
	}
	if payload[logging.FieldEventType] != "probe_failed" {
		t.Fatalf("expected event_type, got %v", payload)
	}
	if _, ok := payload[logging.FieldImpact]; !ok {
		t.Fatalf("expected default impact field, got %v", payload)
	}
	if _, ok := payload["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", payload)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestDebugLevelAddsSource(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "debug.log")
	logger, err := logging.New(logging.Options{
		Format: "console",
		Level:  "debug",
		Outputs: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("skipping frame value")
	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "logger_test.go:") {
		t.Fatalf("expected caller information at debug level, got %q", content)
	}
}

func TestConsoleLoggerJoinsFrameTotals(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "frames.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", Outputs: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.WithGroup("encoder").Info("export progress",
		logging.Uint64("frame", 250),
		logging.Uint64("total_frames", 3000),
	)
	logger.Info("export running", logging.Uint64("total_frames", 3000), logging.String("output", "quiz final.mp4"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two lines, got %q", content)
	}
	if !strings.HasSuffix(lines[0], "export progress encoder.frame=250 encoder.total_frames=3000") {
		t.Fatalf("grouped attributes should keep their prefix, got %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], `export running output="quiz final.mp4" total_frames=3000`) {
		t.Fatalf("unexpected line %q", lines[1])
	}
}

func TestConsoleLoggerJoinsFrameAndTotal(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "join.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", Outputs: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("export progress", logging.Uint64("frame", 250), logging.Uint64("total_frames", 3000))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "export progress frame=250/3000\n") {
		t.Fatalf("unexpected line %q", content)
	}
}
