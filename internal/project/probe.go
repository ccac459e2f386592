package project

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"blindtest/internal/logging"
)

// DurationProber reads media durations in fractional seconds.
type DurationProber interface {
	DurationSeconds(ctx context.Context, path string) (float64, error)
}

// ProbeFailure names a clip whose music could not be probed.
type ProbeFailure struct {
	Title string
	Err   error
}

// ProbeDurations probes every clip's music file with at most limit probes in
// flight and stores the results on the registry. Individual failures are
// logged and returned; only cancellation aborts the whole pass.
func ProbeDurations(ctx context.Context, prober DurationProber, reg *Registry, limit int, logger *slog.Logger) ([]ProbeFailure, error) {
	if limit <= 0 {
		limit = 1
	}
	logger = logging.NewComponentLogger(logger, "project")

	var (
		mu       sync.Mutex
		failures []ProbeFailure
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, clip := range reg.Clips() {
		g.Go(func() error {
			seconds, err := prober.DurationSeconds(gctx, clip.MusicPath)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				logging.WarnWithContext(logger, "music probe failed", "probe_failed",
					logging.String("title", clip.Title),
					logging.String("path", clip.MusicPath),
					logging.Error(err),
					logging.String(logging.FieldImpact, "offset range unknown for this clip"),
				)
				mu.Lock()
				failures = append(failures, ProbeFailure{Title: clip.Title, Err: err})
				mu.Unlock()
				return nil
			}
			duration := time.Duration(seconds * float64(time.Second))
			if err := reg.SetSourceDuration(clip.Title, duration); err != nil {
				logger.Debug("clip removed while probing", logging.String("title", clip.Title))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return failures, err
	}
	sortFailures(failures)
	return failures, nil
}

func sortFailures(failures []ProbeFailure) {
	titles := make([]string, len(failures))
	byTitle := make(map[string]ProbeFailure, len(failures))
	for i, f := range failures {
		titles[i] = f.Title
		byTitle[f.Title] = f
	}
	sortNatural(titles)
	for i, title := range titles {
		failures[i] = byTitle[title]
	}
}
