package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"blindtest/internal/api"
	"blindtest/internal/project"
	"blindtest/internal/testsupport"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.configPath)

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting an existing file")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigShowPrintsEffectiveConfig(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "[tools]")
	requireContains(t, out, env.cfg.Tools.FFmpeg)
}

func TestArchiveCreateAndOpen(t *testing.T) {
	env := setupCLITestEnv(t)
	docPath := testsupport.WriteProject(t, filepath.Join(env.baseDir, "project"), 2)
	archivePath := filepath.Join(env.baseDir, "quiz.bta")

	out, _, err := runCLI(t, []string{"archive", "create", "-i", docPath, "-o", archivePath, "--compression", "zstd"}, env.configPath)
	if err != nil {
		t.Fatalf("archive create: %v", err)
	}
	requireContains(t, out, "Archived 2 clips")

	dest := filepath.Join(env.baseDir, "opened")
	out, _, err = runCLI(t, []string{"archive", "open", "-i", archivePath, "-o", dest}, env.configPath)
	if err != nil {
		t.Fatalf("archive open: %v", err)
	}
	requireContains(t, out, "Extracted project to")

	proj, err := project.Open(filepath.Join(dest, "save.bt"))
	if err != nil {
		t.Fatalf("open extracted project: %v", err)
	}
	if proj.Registry.Len() != 2 {
		t.Fatalf("expected 2 clips, got %d", proj.Registry.Len())
	}
	clip, _ := proj.Registry.Get("Track 1")
	if !strings.HasPrefix(clip.MusicPath, dest) {
		t.Fatalf("expected music under %s, got %s", dest, clip.MusicPath)
	}
}

func TestArchiveCreateDefaultsNextToDocument(t *testing.T) {
	env := setupCLITestEnv(t)
	docPath := testsupport.WriteProject(t, filepath.Join(env.baseDir, "project"), 1)

	if _, _, err := runCLI(t, []string{"archive", "create", "-i", docPath}, env.configPath); err != nil {
		t.Fatalf("archive create: %v", err)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(docPath), "quiz.bta")); err != nil {
		t.Fatalf("expected default archive next to document: %v", err)
	}
}

func TestProjectShowRendersTimeline(t *testing.T) {
	env := setupCLITestEnv(t)
	docPath := testsupport.WriteProject(t, filepath.Join(env.baseDir, "project"), 2)

	out, _, err := runCLI(t, []string{"project", "show", "-i", docPath, "--countdown-seconds", "5"}, env.configPath)
	if err != nil {
		t.Fatalf("project show: %v", err)
	}
	requireContains(t, out, "Track 1")
	requireContains(t, out, "Track 2")
	requireContains(t, out, "Total length: 1:00")

	out, _, err = runCLI(t, []string{"project", "show", "-i", docPath}, env.configPath)
	if err != nil {
		t.Fatalf("project show with probed countdown: %v", err)
	}
	requireContains(t, out, "(5s)")
}

func TestProjectProbeReportsLengths(t *testing.T) {
	env := setupCLITestEnv(t)
	docPath := testsupport.WriteProject(t, filepath.Join(env.baseDir, "project"), 1)

	out, _, err := runCLI(t, []string{"project", "probe", "-i", docPath}, env.configPath)
	if err != nil {
		t.Fatalf("project probe: %v", err)
	}
	requireContains(t, out, "0:05")
}

func TestExportRecordsHistory(t *testing.T) {
	env := setupCLITestEnv(t)
	docPath := testsupport.WriteProject(t, filepath.Join(env.baseDir, "project"), 2)
	output := filepath.Join(env.baseDir, "quiz.mp4")

	out, _, err := runCLI(t, []string{"export", "-i", docPath, "-o", output, "-t", "2"}, env.configPath)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	requireContains(t, out, "Exported 2 clips")

	out, _, err = runCLI(t, []string{"history", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	var runs []api.ExportRun
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("decode history: %v\n%s", err, out)
	}
	if len(runs) != 1 || runs[0].Status != "completed" || runs[0].Output != output {
		t.Fatalf("unexpected history: %+v", runs)
	}

	out, _, err = runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history table: %v", err)
	}
	requireContains(t, out, "completed")
}

func TestExportFailsWithoutCountdown(t *testing.T) {
	env := setupCLITestEnv(t)
	docPath := testsupport.WriteProject(t, filepath.Join(env.baseDir, "project"), 1)
	proj, err := project.Open(docPath)
	if err != nil {
		t.Fatalf("open project: %v", err)
	}
	proj.Settings.Countdown = ""
	if err := proj.Save(); err != nil {
		t.Fatalf("save project: %v", err)
	}

	_, _, err = runCLI(t, []string{"export", "-i", docPath}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), project.ErrNoCountdown.Error()) {
		t.Fatalf("expected missing countdown error, got %v", err)
	}
}

func TestHistoryEmpty(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "No exports recorded")
}

func TestDoctorReportsTools(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"doctor"}, env.configPath)
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}
	requireContains(t, out, "ffmpeg version stub")
	requireContains(t, out, "All checks passed")
}

func TestTestNotifyDisabledWithoutTopic(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"test-notify"}, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Notifications disabled")
}

func TestLogsFiltersByExport(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.MkdirAll(env.cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatalf("mkdir log dir: %v", err)
	}
	content := "2026-01-02T20:00:00Z INFO [1a2b3c4d] exportrun: export running\n" +
		"2026-01-02T20:00:01Z INFO [9f8e7d6c] exportrun: export running\n" +
		`{"ts":"2026-01-02T20:00:02Z","level":"info","msg":"export complete","export_id":"1a2b3c4d-0000-4000-8000-000000000000"}` + "\n"
	if err := os.WriteFile(env.cfg.LogPath(), []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, _, err := runCLI(t, []string{"logs", "--export", "1a2b3c4d-0000-4000-8000-000000000000"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "[1a2b3c4d] exportrun: export running")
	requireContains(t, out, `"msg":"export complete"`)
	if strings.Contains(out, "9f8e7d6c") {
		t.Fatalf("expected other export filtered out, got:\n%s", out)
	}
}
