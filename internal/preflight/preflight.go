package preflight

import (
	"context"

	"blindtest/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the filesystem checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	if cfg.Export.DefaultOutput != "" {
		results = append(results, CheckOutput(cfg.Export.DefaultOutput))
	}
	if cfg.Metrics.TextfilePath != "" {
		results = append(results, CheckOutput(cfg.Metrics.TextfilePath))
	}
	return results
}
