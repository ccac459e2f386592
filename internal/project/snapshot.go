package project

import (
	"blindtest/internal/export"
	"blindtest/internal/filtergraph"
)

// Snapshot copies everything an export needs out of the live project state.
// Filled slots whose clip no longer exists are skipped; their titles are
// returned so callers can report them. Empty slots are skipped silently.
func Snapshot(reg *Registry, tl *Timeline, settings Settings, output string, extraArgs []string) (export.Request, []string, error) {
	if err := settings.Validate(); err != nil {
		return export.Request{}, nil, err
	}
	var (
		items   []filtergraph.Item
		missing []string
	)
	for _, title := range tl.Titles() {
		clip, ok := reg.Get(title)
		if !ok {
			missing = append(missing, title)
			continue
		}
		items = append(items, filtergraph.Item{
			Offset:    clip.Offset,
			MusicPath: clip.MusicPath,
			ImagePath: clip.ImagePath,
		})
	}
	return export.NewRequest(settings.Countdown, output, settings.Duration, items, extraArgs), missing, nil
}

// Snapshot builds an export request from the project.
func (p *Project) Snapshot(output string, extraArgs []string) (export.Request, []string, error) {
	return Snapshot(p.Registry, p.Timeline, p.Settings, output, extraArgs)
}
