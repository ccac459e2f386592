package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"blindtest/internal/export"
	"blindtest/internal/history"
	"blindtest/internal/logging"
	"blindtest/internal/metrics"
)

// ErrOutputBusy is returned when another export already writes the same output.
var ErrOutputBusy = errors.New("output is locked by another export")

// errNoResult reports a driver that finished without a terminal event.
var errNoResult = errors.New("export ended without a result")

const defaultFrameFlushInterval = 2 * time.Second

// EventSource yields export events; *export.Driver satisfies it.
type EventSource interface {
	Next(ctx context.Context) (export.Event, bool)
	Close() error
}

// Recorder persists export runs; *history.Store satisfies it.
type Recorder interface {
	Begin(ctx context.Context, run history.Run) (history.Run, error)
	UpdateFrame(ctx context.Context, id string, frame uint64) error
	Finish(ctx context.Context, id string, status history.Status, frame uint64, runErr error) error
}

// Sink observes every update of a session in order.
type Sink func(Update)

// SessionOptions configures a Session.
type SessionOptions struct {
	// Project names the project document the export came from.
	Project  string
	Recorder Recorder
	Logger   *slog.Logger
	Sinks    []Sink
	// FrameFlushInterval bounds how often frame progress is written to history.
	FrameFlushInterval time.Duration
}

// Session runs a single export and keeps its observers in sync.
type Session struct {
	req    export.Request
	source EventSource
	opts   SessionOptions
	logger *slog.Logger

	tracker *Tracker
	lock    *flock.Flock

	mu       sync.Mutex
	id       string
	prepared bool
	done     chan struct{}
}

// NewSession wires source to a tracker sized from req.
func NewSession(req export.Request, source EventSource, opts SessionOptions) *Session {
	if opts.FrameFlushInterval <= 0 {
		opts.FrameFlushInterval = defaultFrameFlushInterval
	}
	return &Session{
		req:     req,
		source:  source,
		opts:    opts,
		logger:  logging.NewComponentLogger(opts.Logger, "bridge"),
		tracker: NewTracker("", EstimateTotalFrames(req.ClipDuration, len(req.Items))),
		lock:    flock.New(req.Output + ".lock"),
		done:    make(chan struct{}),
	}
}

// ID returns the run identifier, empty until Prepare succeeds.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Tracker exposes the live progress state.
func (s *Session) Tracker() *Tracker {
	return s.tracker
}

// Done is closed when Run returns.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Prepare takes the output lock and records the run. It is called by Run
// when needed; callers that need the run ID before the export starts call it
// first. On failure the source is closed.
func (s *Session) Prepare(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.prepared {
		return s.id, nil
	}

	locked, err := s.lock.TryLock()
	if err != nil {
		_ = s.source.Close()
		return "", fmt.Errorf("lock output %s: %w", s.req.Output, err)
	}
	if !locked {
		_ = s.source.Close()
		return "", fmt.Errorf("%w: %s", ErrOutputBusy, s.req.Output)
	}

	id := uuid.NewString()
	if s.opts.Recorder != nil {
		run, err := s.opts.Recorder.Begin(ctx, history.Run{
			Project:      s.opts.Project,
			Output:       s.req.Output,
			Items:        len(s.req.Items),
			ClipDuration: s.req.ClipDuration,
			TotalFrames:  s.tracker.Snapshot().TotalFrames,
		})
		if err != nil {
			s.unlock()
			_ = s.source.Close()
			return "", fmt.Errorf("record export: %w", err)
		}
		id = run.ID
	}
	s.id = id
	s.prepared = true
	s.tracker.setRunID(id)
	return id, nil
}

// Run pumps the source until it finishes and returns the final state. The
// returned error is the export failure, nil when the export completed.
func (s *Session) Run(ctx context.Context) (State, error) {
	defer close(s.done)
	id, err := s.Prepare(ctx)
	if err != nil {
		return s.tracker.Fail(err), err
	}
	defer s.unlock()
	defer s.source.Close()

	ctx = logging.WithExportID(ctx, id)
	logger := logging.WithContext(ctx, s.logger)
	sampler := logging.NewProgressSampler(10)
	metrics.ExportStarted()
	started := time.Now()
	var lastFlush time.Time

	var final State
	var runErr error
	terminal := false
	for !terminal {
		event, ok := s.source.Next(ctx)
		if !ok {
			break
		}
		state := s.tracker.Apply(event)
		switch event.Kind {
		case export.EventStarted:
			logger.Info("export running",
				logging.String("output", s.req.Output),
				logging.Uint64("total_frames", state.TotalFrames),
			)
		case export.EventFrame:
			metrics.ExportFrames.Set(float64(event.Frame))
			if sampler.ShouldLog(event.Frame, state.TotalFrames) {
				logger.Info("export progress",
					logging.Uint64("frame", event.Frame),
					logging.Uint64("total_frames", state.TotalFrames),
					logging.String("percent", fmt.Sprintf("%.0f%%", state.Percent)),
				)
			}
			if s.opts.Recorder != nil && time.Since(lastFlush) >= s.opts.FrameFlushInterval {
				lastFlush = time.Now()
				if err := s.opts.Recorder.UpdateFrame(ctx, id, event.Frame); err != nil {
					logger.Debug("history frame update failed", logging.Error(err))
				}
			}
		case export.EventError:
			runErr = event.Err
			terminal = true
		case export.EventDone:
			terminal = true
		}
		s.notify(Update{Event: event, State: state})
		final = state
	}

	if !terminal {
		runErr = errNoResult
		if ctxErr := ctx.Err(); ctxErr != nil {
			runErr = ctxErr
		}
		final = s.tracker.Fail(runErr)
		s.notify(Update{Event: export.Event{Kind: export.EventError, Err: runErr}, State: final})
	}

	if errors.Is(runErr, export.ErrProbeFailed) {
		metrics.ProbeFailuresTotal.Inc()
	}
	elapsed := time.Since(started)
	metrics.ExportFinished(metricResult(final.Status), elapsed)
	switch {
	case runErr == nil || final.Status == StatusCancelled:
		logger.Info("export finished",
			logging.String("status", string(final.Status)),
			logging.Uint64("frame", final.Frame),
			logging.Duration("elapsed", elapsed.Round(time.Millisecond)),
		)
	default:
		logging.ErrorWithContext(logger, "export finished", "export_failed",
			logging.String("status", string(final.Status)),
			logging.Uint64("frame", final.Frame),
			logging.Duration("elapsed", elapsed.Round(time.Millisecond)),
			logging.Error(runErr),
			logging.String(logging.FieldErrorHint, "the error field ends with the encoder stderr tail"),
		)
	}
	s.record(context.WithoutCancel(ctx), logger, id, final, runErr)
	return final, runErr
}

func (s *Session) notify(update Update) {
	for _, sink := range s.opts.Sinks {
		if sink != nil {
			sink(update)
		}
	}
}

func (s *Session) record(ctx context.Context, logger *slog.Logger, id string, final State, runErr error) {
	if s.opts.Recorder == nil {
		return
	}
	status := history.StatusFailed
	switch final.Status {
	case StatusCompleted:
		status = history.StatusCompleted
	case StatusCancelled:
		status = history.StatusCancelled
	}
	if err := s.opts.Recorder.Finish(ctx, id, status, final.Frame, runErr); err != nil {
		logging.WarnWithContext(logger, "history update failed", "history_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "export history may show the run as running"),
		)
	}
}

func (s *Session) unlock() {
	if err := s.lock.Unlock(); err != nil {
		s.logger.Debug("release output lock", logging.Error(err))
		return
	}
	_ = os.Remove(s.lock.Path())
}

func metricResult(status Status) string {
	switch status {
	case StatusCompleted:
		return metrics.ResultCompleted
	case StatusCancelled:
		return metrics.ResultCancelled
	default:
		return metrics.ResultFailed
	}
}
