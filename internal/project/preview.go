package project

import "time"

// PreviewSlot describes where one timeline slot lands in the exported video.
type PreviewSlot struct {
	Index int
	Title string
	// Skipped is set for empty slots and slots naming a deleted clip.
	Skipped bool
	Reason  string

	Start        time.Duration
	CountdownEnd time.Duration
	End          time.Duration
	MusicFrom    time.Duration
	MusicTo      time.Duration
	// ShortMusic is set when the music ends before the slot does.
	ShortMusic bool
}

// Preview lays out the timeline as it will be exported, given the probed
// countdown duration in seconds.
func Preview(reg *Registry, tl *Timeline, settings Settings, countdownSeconds uint32) ([]PreviewSlot, time.Duration) {
	slotLength := time.Duration(settings.Duration) * time.Second
	countdown := min(time.Duration(countdownSeconds)*time.Second, slotLength)

	var (
		out    []PreviewSlot
		cursor time.Duration
	)
	for i, slot := range tl.Slots() {
		entry := PreviewSlot{Index: i, Title: slot.Title}
		if slot.Empty() {
			entry.Skipped = true
			entry.Reason = "empty slot"
			out = append(out, entry)
			continue
		}
		clip, ok := reg.Get(slot.Title)
		if !ok {
			entry.Skipped = true
			entry.Reason = "clip deleted"
			out = append(out, entry)
			continue
		}
		entry.Start = cursor
		entry.CountdownEnd = cursor + countdown
		entry.End = cursor + slotLength
		entry.MusicFrom = clip.Offset
		entry.MusicTo = clip.Offset + slotLength
		if clip.SourceDuration > 0 && entry.MusicTo > clip.SourceDuration {
			entry.ShortMusic = true
			entry.MusicTo = clip.SourceDuration
		}
		cursor = entry.End
		out = append(out, entry)
	}
	return out, cursor
}
