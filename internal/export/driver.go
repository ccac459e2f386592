package export

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"blindtest/internal/filtergraph"
	"blindtest/internal/logging"
)

// DurationProber reads the whole-second duration of a media file.
type DurationProber interface {
	Duration(ctx context.Context, path string) (uint32, error)
}

type state int

const (
	stateReady state = iota
	stateExporting
	stateFinished
)

// Option configures a Driver.
type Option func(*Driver)

// WithRunner injects the process runner (primarily for tests).
func WithRunner(runner Runner) Option {
	return func(d *Driver) {
		if runner != nil {
			d.runner = runner
		}
	}
}

// WithLogger sets the driver logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) {
		if logger != nil {
			d.logger = logger
		}
	}
}

type lineResult struct {
	text string
	err  error
}

// Driver runs one export. Next must be called from a single goroutine;
// Close may be called from any goroutine.
type Driver struct {
	req    Request
	binary string
	prober DurationProber
	runner Runner
	logger *slog.Logger

	state state
	lines chan lineResult

	mu        sync.Mutex
	proc      Process
	stopProc  context.CancelFunc
	done      chan struct{}
	released  bool
	waitErr   error
	closing   chan struct{}
	closeOnce sync.Once
}

// NewDriver prepares an export of req using the ffmpeg binary. Nothing runs
// until the first call to Next.
func NewDriver(req Request, binary string, prober DurationProber, opts ...Option) *Driver {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	d := &Driver{
		req:     NewRequest(req.Countdown, req.Output, req.ClipDuration, req.Items, req.ExtraArgs),
		binary:  binary,
		prober:  prober,
		runner:  ExecRunner{},
		logger:  logging.NewNop(),
		done:    make(chan struct{}),
		closing: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = logging.NewComponentLogger(d.logger, "export")
	return d
}

// Request returns the snapshot the driver was built from.
func (d *Driver) Request() Request {
	return NewRequest(d.req.Countdown, d.req.Output, d.req.ClipDuration, d.req.Items, d.req.ExtraArgs)
}

// Next advances the export and returns the next event. It reports false once
// the export has finished; a terminal Done or Error event is always returned
// before that. Cancelling ctx terminates the encoder and yields Error(ctx.Err()).
func (d *Driver) Next(ctx context.Context) (Event, bool) {
	d.mu.Lock()
	released := d.released
	d.mu.Unlock()
	if released && d.state != stateExporting {
		d.state = stateFinished
	}

	switch d.state {
	case stateReady:
		return d.start(ctx), true
	case stateExporting:
		return d.step(ctx), true
	default:
		return Event{}, false
	}
}

// Events drains Next on a dedicated goroutine. The channel closes after the
// terminal event, when ctx is cancelled, or when Close is called; the driver
// is closed in every case. A consumer that stops reading must cancel ctx or
// call Close to release the goroutine.
func (d *Driver) Events(ctx context.Context) <-chan Event {
	ch := make(chan Event)
	go func() {
		defer close(ch)
		defer d.Close()
		for {
			event, ok := d.Next(ctx)
			if !ok {
				return
			}
			select {
			case <-d.closing:
				return
			default:
			}
			select {
			case ch <- event:
			case <-ctx.Done():
				return
			case <-d.closing:
				return
			}
		}
	}()
	return ch
}

// Close terminates the encoder if it is still running and reaps it. It is
// safe to call more than once and returns the encoder's exit status.
func (d *Driver) Close() error {
	d.closeOnce.Do(func() { close(d.closing) })
	return d.release(true)
}

func (d *Driver) start(ctx context.Context) Event {
	if d.prober == nil {
		return d.fail(fmt.Errorf("%w: no prober configured", ErrProbeFailed))
	}
	countdown, err := d.prober.Duration(ctx, d.req.Countdown)
	if err != nil {
		if !errors.Is(err, ErrProbeFailed) {
			err = fmt.Errorf("%w: %w", ErrProbeFailed, err)
		}
		return d.fail(err)
	}

	args, err := filtergraph.Build(d.req.Params(countdown))
	if err != nil {
		return d.fail(err)
	}

	d.logger.Debug("spawning encoder",
		logging.String("binary", d.binary),
		logging.Int("items", len(d.req.Items)),
		logging.Any("args", args),
	)

	// The encoder outlives this call's ctx; only release ends it.
	procCtx, stopProc := context.WithCancel(context.WithoutCancel(ctx))
	proc, err := d.runner.Start(procCtx, d.binary, args)
	if err != nil {
		stopProc()
		return d.fail(fmt.Errorf("%w: %w", ErrSpawnFailed, err))
	}

	d.mu.Lock()
	if d.released {
		d.mu.Unlock()
		_ = proc.Terminate()
		stopProc()
		_ = proc.Wait()
		return d.fail(fmt.Errorf("%w: driver closed", ErrSpawnFailed))
	}
	d.proc = proc
	d.stopProc = stopProc
	d.mu.Unlock()

	d.lines = make(chan lineResult)
	go readLines(proc.Stdout(), d.lines, d.done)

	d.state = stateExporting
	d.logger.Info("export started",
		logging.String("output", d.req.Output),
		logging.Int("items", len(d.req.Items)),
		logging.Int("countdown_seconds", int(countdown)),
		logging.Int("clip_seconds", int(d.req.ClipDuration)),
	)
	return startedEvent()
}

func (d *Driver) step(ctx context.Context) Event {
	for {
		select {
		case <-ctx.Done():
			d.release(true)
			return d.finish(errorEvent(ctx.Err()))
		case res, ok := <-d.lines:
			if !ok {
				return d.endOfStream()
			}
			if res.err != nil {
				d.release(true)
				return d.finish(errorEvent(fmt.Errorf("%w: read: %w", ErrStreamFormat, res.err)))
			}
			line := strings.TrimSpace(res.text)
			if line == "" {
				continue
			}
			key, value, found := strings.Cut(line, "=")
			if !found {
				d.release(true)
				return d.finish(errorEvent(fmt.Errorf("%w: %q", ErrStreamFormat, line)))
			}
			key = strings.TrimSpace(key)
			value = strings.TrimSpace(value)
			switch key {
			case "frame":
				frame, err := strconv.ParseUint(value, 10, 64)
				if err != nil {
					d.logger.Debug("skipping unparseable frame value", logging.String("value", value))
					continue
				}
				return frameEvent(frame)
			case "progress":
				if value != "end" {
					continue
				}
				if err := d.release(false); err != nil {
					d.logger.Debug("encoder exit status after end marker", logging.Error(err))
				}
				return d.finish(doneEvent())
			}
		}
	}
}

// endOfStream handles stdout closing without a progress=end marker.
func (d *Driver) endOfStream() Event {
	if err := d.release(false); err != nil {
		return d.finish(errorEvent(fmt.Errorf("%w: %w", ErrEncoderExited, err)))
	}
	d.logger.Debug("progress stream ended without end marker")
	return d.finish(doneEvent())
}

func (d *Driver) fail(err error) Event {
	d.release(true)
	return d.finish(errorEvent(err))
}

func (d *Driver) finish(event Event) Event {
	d.state = stateFinished
	switch event.Kind {
	case EventDone:
		d.logger.Info("export complete", logging.String("output", d.req.Output))
	case EventError:
		if errors.Is(event.Err, context.Canceled) {
			d.logger.Info("export cancelled", logging.String("output", d.req.Output))
			break
		}
		logging.WarnWithContext(d.logger, "export failed", "export_failed",
			logging.String("output", d.req.Output),
			logging.Error(event.Err),
			logging.String(logging.FieldErrorHint, errorHint(event.Err)),
			logging.String(logging.FieldImpact, "no video was produced"),
		)
	}
	return event
}

// release stops the reader, optionally terminates the encoder, and reaps it.
func (d *Driver) release(terminate bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return d.waitErr
	}
	d.released = true
	close(d.done)
	if d.proc == nil {
		return nil
	}
	if terminate {
		if err := d.proc.Terminate(); err != nil {
			d.logger.Debug("terminate encoder", logging.Error(err))
		}
		d.stopProc()
	}
	d.waitErr = d.proc.Wait()
	d.stopProc()
	return d.waitErr
}

// readLines forwards stdout lines until EOF. Once done is closed it discards
// the rest of the stream so the encoder never blocks on a full pipe.
func readLines(r io.Reader, lines chan<- lineResult, done <-chan struct{}) {
	defer close(lines)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		select {
		case lines <- lineResult{text: scanner.Text()}:
		case <-done:
			_, _ = io.Copy(io.Discard, r)
			return
		}
	}
	if err := scanner.Err(); err != nil {
		select {
		case lines <- lineResult{err: err}:
		case <-done:
		}
	}
}

func errorHint(err error) string {
	switch {
	case errors.Is(err, ErrInvalidDuration):
		return "raise the clip duration or pick a shorter countdown"
	case errors.Is(err, ErrProbeFailed):
		return "check that ffprobe is installed and the countdown file is readable"
	case errors.Is(err, ErrSpawnFailed):
		return "check that ffmpeg is installed and on PATH"
	case errors.Is(err, ErrEncoderExited):
		return "inspect the ffmpeg error output in the logs"
	case errors.Is(err, ErrStreamFormat):
		return "ffmpeg progress output was not understood; rerun with --log-level debug"
	default:
		return "check logs for details"
	}
}
