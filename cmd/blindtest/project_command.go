package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"blindtest/internal/config"
	"blindtest/internal/logging"
	"blindtest/internal/media/ffprobe"
	"blindtest/internal/metrics"
	"blindtest/internal/project"
)

func newProjectCommand(ctx *commandContext) *cobra.Command {
	projectCmd := &cobra.Command{
		Use:   "project",
		Short: "Inspect project documents",
	}
	projectCmd.AddCommand(newProjectShowCommand(ctx))
	projectCmd.AddCommand(newProjectProbeCommand(ctx))
	return projectCmd
}

func openProject(docPath string) (*project.Project, error) {
	path, err := config.ExpandPath(strings.TrimSpace(docPath))
	if err != nil {
		return nil, fmt.Errorf("resolve project path: %w", err)
	}
	return project.Open(path)
}

func newProjectShowCommand(ctx *commandContext) *cobra.Command {
	var docPath string
	var countdownSeconds int

	cmd := &cobra.Command{
		Use:   "show",
		Short: "List clips and the exported timeline layout",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			proj, err := openProject(docPath)
			if err != nil {
				return err
			}

			countdown := uint32(0)
			switch {
			case countdownSeconds >= 0:
				countdown = uint32(countdownSeconds)
			case proj.Settings.Countdown != "":
				prober := ffprobe.New(cfg.Tools.FFprobe)
				seconds, err := prober.Duration(cmd.Context(), proj.Settings.Countdown)
				if err != nil {
					return fmt.Errorf("probe countdown: %w", err)
				}
				countdown = seconds
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Project:   %s\n", proj.Path)
			fmt.Fprintf(out, "Duration:  %ds per slot\n", proj.Settings.Duration)
			fmt.Fprintf(out, "Countdown: %s (%ds)\n\n", valueOrNone(proj.Settings.Countdown), countdown)

			clipRows := make([][]string, 0, proj.Registry.Len())
			for _, clip := range proj.Registry.Clips() {
				clipRows = append(clipRows, []string{clip.Title, clip.MusicPath, clip.ImagePath, formatClock(clip.Offset)})
			}
			fmt.Fprint(out, renderTable(
				[]string{"Title", "Music", "Image", "Offset"},
				clipRows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
			))

			slots, total := project.Preview(proj.Registry, proj.Timeline, proj.Settings, countdown)
			slotRows := make([][]string, 0, len(slots))
			for _, slot := range slots {
				if slot.Skipped {
					slotRows = append(slotRows, []string{strconv.Itoa(slot.Index + 1), valueOrNone(slot.Title), "-", "-", "-", slot.Reason})
					continue
				}
				note := ""
				if slot.ShortMusic {
					note = "music ends early"
				}
				slotRows = append(slotRows, []string{
					strconv.Itoa(slot.Index + 1),
					slot.Title,
					formatClock(slot.Start),
					formatClock(slot.End),
					formatClock(slot.MusicFrom) + "-" + formatClock(slot.MusicTo),
					note,
				})
			}
			fmt.Fprintln(out)
			fmt.Fprint(out, renderTable(
				[]string{"#", "Title", "Start", "End", "Music", "Note"},
				slotRows,
				[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
			))
			fmt.Fprintf(out, "\nTotal length: %s\n", formatClock(total))
			return nil
		},
	}

	cmd.Flags().StringVarP(&docPath, "input", "i", "", "Project document")
	cmd.Flags().IntVar(&countdownSeconds, "countdown-seconds", -1, "Countdown length to assume instead of probing it")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func newProjectProbeCommand(ctx *commandContext) *cobra.Command {
	var docPath string

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Probe every clip's music and report its length",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			proj, err := openProject(docPath)
			if err != nil {
				return err
			}

			prober := ffprobe.New(cfg.Tools.FFprobe)
			failures, err := project.ProbeDurations(cmd.Context(), prober, proj.Registry, cfg.Export.ProbeConcurrency, logger)
			if err != nil {
				return err
			}
			failed := make(map[string]error, len(failures))
			for _, f := range failures {
				failed[f.Title] = f.Err
				metrics.ProbeFailuresTotal.Inc()
			}

			rows := make([][]string, 0, proj.Registry.Len())
			for _, clip := range proj.Registry.Clips() {
				status := formatClock(clip.SourceDuration)
				fits := yesNo(clip.Offset+time.Duration(proj.Settings.Duration)*time.Second <= clip.SourceDuration)
				if err, ok := failed[clip.Title]; ok {
					status = "error: " + err.Error()
					fits = "-"
				}
				rows = append(rows, []string{clip.Title, status, formatClock(clip.Offset), fits})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable(
				[]string{"Title", "Length", "Offset", "Fits slot"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft},
			))

			if err := metrics.WriteTextfile(cfg.Metrics.TextfilePath); err != nil {
				logging.WarnWithContext(logger, "metrics textfile not written", "metrics_write_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "node exporter shows stale probe metrics"),
				)
			}
			if len(failures) > 0 {
				return fmt.Errorf("%d of %d clips could not be probed: %w", len(failures), proj.Registry.Len(), errors.Join(collectErrors(failures)...))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&docPath, "input", "i", "", "Project document")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func collectErrors(failures []project.ProbeFailure) []error {
	errs := make([]error, 0, len(failures))
	for _, f := range failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// formatClock renders d as m:ss, or h:mm:ss past the hour.
func formatClock(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func valueOrNone(value string) string {
	if strings.TrimSpace(value) == "" {
		return "(none)"
	}
	return value
}
