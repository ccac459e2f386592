package testsupport

import (
	"context"
	"testing"

	"blindtest/internal/config"
	"blindtest/internal/history"
)

// MustOpenHistory opens a history.Store for tests and registers cleanup.
func MustOpenHistory(t testing.TB, cfg *config.Config) *history.Store {
	t.Helper()

	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// BeginRun records a running export for tests using the provided store.
func BeginRun(t testing.TB, store *history.Store, output string, items int) history.Run {
	t.Helper()

	run, err := store.Begin(context.Background(), history.Run{Output: output, Items: items, ClipDuration: 30})
	if err != nil {
		t.Fatalf("store.Begin: %v", err)
	}
	return run
}
