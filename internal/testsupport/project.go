package testsupport

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"blindtest/internal/project"
)

// WriteProject stores a project with the given number of clips, each placed
// on the timeline, and returns the document path. Media files are small
// placeholders under dir.
func WriteProject(t testing.TB, dir string, clips int) string {
	t.Helper()

	proj := project.New(filepath.Join(dir, "quiz.bt"))
	for i := range clips {
		title := fmt.Sprintf("Track %d", i+1)
		music := filepath.Join(dir, "media", fmt.Sprintf("track-%d.mp3", i+1))
		image := filepath.Join(dir, "media", fmt.Sprintf("track-%d.png", i+1))
		WriteFile(t, music, 1024, byte(i))
		WriteFile(t, image, 512, byte(i+100))
		if err := proj.Registry.Add(project.Clip{Title: title, MusicPath: music, ImagePath: image, Offset: time.Duration(i) * time.Second}); err != nil {
			t.Fatalf("add clip %q: %v", title, err)
		}
		proj.Timeline.AddEnd()
		if err := proj.Timeline.Set(i, title); err != nil {
			t.Fatalf("set slot %d: %v", i, err)
		}
	}
	countdown := filepath.Join(dir, "media", "countdown.mp4")
	WriteFile(t, countdown, 2048, 7)
	proj.Settings = project.Settings{Duration: 30, Countdown: countdown}
	if err := proj.Save(); err != nil {
		t.Fatalf("save project: %v", err)
	}
	return proj.Path
}
