package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"blindtest/internal/bridge"
	"blindtest/internal/export"
	"blindtest/internal/exportrun"
	"blindtest/internal/logging"
	"blindtest/internal/metrics"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var projectPath string
	var outputPath string
	var threads int
	var noProgress bool

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a project to a video file",
		Long: "Export renders every filled timeline slot of the project: the countdown\n" +
			"over the clip's music, then the clip's image for the rest of the slot.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			store, err := ctx.openHistory()
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			var bar *progressbar.ProgressBar
			sinks := []bridge.Sink{}
			if !noProgress && isTerminal(out) {
				sinks = append(sinks, progressSink(out, &bar))
			}

			job, err := exportrun.Prepare(exportrun.Options{
				Config:      cfg,
				ProjectPath: projectPath,
				Output:      outputPath,
				Threads:     threads,
				Recorder:    store,
				Logger:      logger,
				Sinks:       sinks,
			})
			if err != nil {
				return err
			}
			for _, title := range job.Missing {
				fmt.Fprintf(cmd.ErrOrStderr(), "Skipping %q: clip no longer exists\n", title)
			}

			state, runErr := job.Session.Run(cmd.Context())
			if bar != nil {
				_ = bar.Exit()
				fmt.Fprintln(out)
			}
			if err := metrics.WriteTextfile(cfg.Metrics.TextfilePath); err != nil {
				logging.WarnWithContext(logger, "metrics textfile not written", "metrics_write_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "node exporter shows stale export metrics"),
				)
			}
			if runErr != nil {
				if errors.Is(runErr, context.Canceled) {
					fmt.Fprintf(out, "Export %s cancelled at frame %d\n", state.RunID, state.Frame)
				}
				return fmt.Errorf("export %s failed: %w", state.RunID, runErr)
			}

			elapsed := time.Duration(0)
			if !state.StartedAt.IsZero() && !state.FinishedAt.IsZero() {
				elapsed = state.FinishedAt.Sub(state.StartedAt).Round(time.Second)
			}
			fmt.Fprintf(out, "Exported %d clips to %s (%d frames, %s)\n", len(job.Request.Items), job.Request.Output, state.Frame, elapsed)
			return nil
		},
	}

	cmd.Flags().StringVarP(&projectPath, "input", "i", "", "Project document to export")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output video path (defaults to export.default_output)")
	cmd.Flags().IntVarP(&threads, "threads", "t", 0, "Encoder thread count (overrides export.threads)")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the progress bar")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

// progressSink drives a terminal progress bar from session updates. The bar
// is created on the first update once the total frame estimate is known.
func progressSink(w io.Writer, bar **progressbar.ProgressBar) bridge.Sink {
	return func(update bridge.Update) {
		if *bar == nil {
			*bar = progressbar.NewOptions64(int64(update.State.TotalFrames),
				progressbar.OptionSetWriter(w),
				progressbar.OptionSetDescription("Exporting"),
				progressbar.OptionShowCount(),
				progressbar.OptionShowIts(),
				progressbar.OptionSetItsString("frames"),
				progressbar.OptionSetWidth(40),
				progressbar.OptionThrottle(100*time.Millisecond),
				progressbar.OptionSetRenderBlankState(true),
			)
		}
		switch update.Event.Kind {
		case export.EventFrame:
			frame := min(update.Event.Frame, update.State.TotalFrames)
			_ = (*bar).Set64(int64(frame))
		case export.EventDone:
			_ = (*bar).Finish()
		}
	}
}
