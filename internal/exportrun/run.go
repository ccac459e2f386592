package exportrun

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"blindtest/internal/bridge"
	"blindtest/internal/config"
	"blindtest/internal/export"
	"blindtest/internal/logging"
	"blindtest/internal/media/ffprobe"
	"blindtest/internal/notifications"
	"blindtest/internal/preflight"
	"blindtest/internal/project"
)

// ErrPreflight is returned when the output location cannot take an export.
var ErrPreflight = errors.New("preflight failed")

// Options controls how a project export is assembled.
type Options struct {
	Config      *config.Config
	ProjectPath string
	// Output overrides the configured default output path.
	Output string
	// Threads overrides the configured encoder thread count when positive.
	Threads  int
	Recorder bridge.Recorder
	Logger   *slog.Logger
	Sinks    []bridge.Sink
	// Notifier receives the export outcome; it defaults to the configured
	// ntfy service.
	Notifier notifications.Service
	// Runner and Prober replace the ffmpeg and ffprobe subprocesses (tests).
	Runner        export.Runner
	Prober        export.DurationProber
	SkipPreflight bool
}

// Job is an assembled export ready to run.
type Job struct {
	Session *bridge.Session
	Request export.Request
	// Missing lists timeline titles whose clip no longer exists.
	Missing []string
	Project string
}

// Prepare loads the project, snapshots it into an export request and wires
// the driver into a bridge session. Nothing is started and no lock is held.
func Prepare(opts Options) (*Job, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	projectPath, err := config.ExpandPath(strings.TrimSpace(opts.ProjectPath))
	if err != nil {
		return nil, err
	}
	if projectPath == "" {
		return nil, fmt.Errorf("project path is required")
	}
	output := strings.TrimSpace(opts.Output)
	if output == "" {
		output = opts.Config.Export.DefaultOutput
	}
	if output == "" {
		return nil, fmt.Errorf("no output path given and export.default_output is unset")
	}
	output, err = config.ExpandPath(output)
	if err != nil {
		return nil, err
	}

	logger := logging.NewComponentLogger(opts.Logger, "exportrun")

	proj, err := project.Open(projectPath)
	if err != nil {
		return nil, err
	}
	if !opts.SkipPreflight {
		if check := preflight.CheckOutput(output); !check.Passed {
			return nil, fmt.Errorf("%w: %s", ErrPreflight, check.Detail)
		}
	}

	req, missing, err := proj.Snapshot(output, opts.Config.ExportArgs(opts.Threads))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", projectPath, err)
	}
	if len(missing) > 0 {
		logging.WarnWithContext(logger, "timeline references deleted clips", "timeline_missing_clips",
			logging.String("project", projectPath),
			logging.String("titles", strings.Join(missing, ", ")),
			logging.String(logging.FieldImpact, "those slots are left out of the export"),
		)
	}

	prober := opts.Prober
	if prober == nil {
		prober = ffprobe.New(opts.Config.Tools.FFprobe)
	}
	runner := opts.Runner
	if runner == nil {
		runner = export.ExecRunner{Grace: opts.Config.TerminateGrace()}
	}
	driver := export.NewDriver(req, opts.Config.Tools.FFmpeg, prober,
		export.WithRunner(runner),
		export.WithLogger(opts.Logger),
	)
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notifications.NewService(opts.Config)
	}
	sinks := append(append([]bridge.Sink(nil), opts.Sinks...), notifications.Sink(notifier, req, opts.Logger))
	session := bridge.NewSession(req, driver, bridge.SessionOptions{
		Project:  projectPath,
		Recorder: opts.Recorder,
		Logger:   opts.Logger,
		Sinks:    sinks,
	})

	logger.Info("export prepared",
		logging.String(logging.FieldEventType, "export_prepare"),
		logging.String("project", projectPath),
		logging.String("output", output),
		logging.Int("items", len(req.Items)),
		logging.Int("skipped", len(missing)),
	)
	return &Job{Session: session, Request: req, Missing: missing, Project: projectPath}, nil
}
