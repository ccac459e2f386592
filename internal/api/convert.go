package api

import (
	"time"

	"blindtest/internal/bridge"
	"blindtest/internal/export"
	"blindtest/internal/history"
	"blindtest/internal/logging"
)

// FromRun converts a history record to its API representation.
func FromRun(run history.Run) ExportRun {
	dto := ExportRun{
		ID:           run.ID,
		Status:       string(run.Status),
		Project:      run.Project,
		Output:       run.Output,
		Items:        run.Items,
		ClipDuration: run.ClipDuration,
		Frame:        run.Frame,
		TotalFrames:  run.TotalFrames,
		Percent:      logging.Percent(run.Frame, run.TotalFrames),
		Error:        run.Error,
		StartedAt:    formatTime(run.StartedAt),
	}
	if run.Status == history.StatusCompleted {
		dto.Percent = 100
	}
	if run.FinishedAt != nil {
		dto.FinishedAt = formatTime(*run.FinishedAt)
	}
	return dto
}

// FromState converts live tracker state for a request into its API representation.
func FromState(state bridge.State, req export.Request, projectPath string) ExportRun {
	return ExportRun{
		ID:           state.RunID,
		Status:       string(state.Status),
		Project:      projectPath,
		Output:       req.Output,
		Items:        len(req.Items),
		ClipDuration: req.ClipDuration,
		Frame:        state.Frame,
		TotalFrames:  state.TotalFrames,
		Percent:      state.Percent,
		Error:        state.Error,
		StartedAt:    formatTime(state.StartedAt),
		FinishedAt:   formatTime(state.FinishedAt),
		Live:         !state.Status.Terminal(),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
