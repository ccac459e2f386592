package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"blindtest/internal/logs"
)

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blindtest.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func appendLog(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("append log: %v", err)
	}
}

func TestTailLastLines(t *testing.T) {
	path := writeLog(t, "a\nb\nc\n")

	result, err := logs.Tail(path, logs.Options{Limit: 2})
	if err != nil {
		t.Fatalf("Tail returned error: %v", err)
	}
	if !slices.Equal(result.Lines, []string{"b", "c"}) {
		t.Fatalf("unexpected lines: %#v", result.Lines)
	}
	if result.Offset != 6 {
		t.Fatalf("expected offset at end of file, got %d", result.Offset)
	}
}

func TestTailFiltersByMatch(t *testing.T) {
	path := writeLog(t, "export_id=aa frame 1\nexport_id=bb frame 1\nexport_id=aa frame 2\n")

	result, err := logs.Tail(path, logs.Options{Limit: 10, Match: "export_id=aa"})
	if err != nil {
		t.Fatalf("Tail returned error: %v", err)
	}
	if !slices.Equal(result.Lines, []string{"export_id=aa frame 1", "export_id=aa frame 2"}) {
		t.Fatalf("unexpected lines: %#v", result.Lines)
	}
}

func TestTailMissingFileIsEmpty(t *testing.T) {
	result, err := logs.Tail(filepath.Join(t.TempDir(), "absent.log"), logs.Options{Limit: 5})
	if err != nil {
		t.Fatalf("Tail returned error: %v", err)
	}
	if len(result.Lines) != 0 || result.Offset != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
}

func TestReadFromKeepsPartialLine(t *testing.T) {
	path := writeLog(t, "one\ntw")

	result, err := logs.ReadFrom(path, 0, "")
	if err != nil {
		t.Fatalf("ReadFrom returned error: %v", err)
	}
	if !slices.Equal(result.Lines, []string{"one"}) || result.Offset != 4 {
		t.Fatalf("unexpected result: %+v", result)
	}

	appendLog(t, path, "o\n")
	result, err = logs.ReadFrom(path, result.Offset, "")
	if err != nil {
		t.Fatalf("ReadFrom returned error: %v", err)
	}
	if !slices.Equal(result.Lines, []string{"two"}) {
		t.Fatalf("unexpected continuation: %+v", result)
	}
}

func TestReadFromRestartsAfterTruncation(t *testing.T) {
	path := writeLog(t, "fresh\n")

	result, err := logs.ReadFrom(path, 1000, "")
	if err != nil {
		t.Fatalf("ReadFrom returned error: %v", err)
	}
	if !slices.Equal(result.Lines, []string{"fresh"}) {
		t.Fatalf("expected restart from beginning, got %+v", result)
	}
}

func TestFollowEmitsAppendedLines(t *testing.T) {
	path := writeLog(t, "start\n")
	initial, err := logs.Tail(path, logs.Options{Limit: 1})
	if err != nil {
		t.Fatalf("Tail returned error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	lines := make(chan string, 4)
	done := make(chan error, 1)
	go func() {
		done <- logs.Follow(ctx, path, initial.Offset, "", 20*time.Millisecond, func(line string) { lines <- line })
	}()

	appendLog(t, path, "later\n")
	select {
	case line := <-lines:
		if line != "later" {
			t.Fatalf("unexpected followed line %q", line)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("follow did not emit appended line")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Follow returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("follow did not stop after cancel")
	}
}
