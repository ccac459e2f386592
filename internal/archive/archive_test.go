package archive_test

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"blindtest/internal/archive"
	"blindtest/internal/config"
	"blindtest/internal/logging"
	"blindtest/internal/project"
	"blindtest/internal/testsupport"
)

func writeProject(t *testing.T) (string, map[string]string) {
	t.Helper()
	dir := t.TempDir()
	media := map[string]string{
		"music-a":   filepath.Join(dir, "media", "a.mp3"),
		"image-a":   filepath.Join(dir, "media", "a.png"),
		"music-b":   filepath.Join(dir, "other", "a.mp3"),
		"image-b":   filepath.Join(dir, "other", "b.jpg"),
		"countdown": filepath.Join(dir, "countdown.mp4"),
	}
	seed := byte(1)
	for _, p := range media {
		testsupport.WriteFile(t, p, 40*1024+int64(seed), seed)
		seed += 7
	}

	proj := project.New(filepath.Join(dir, "quiz.bt"))
	if err := proj.Registry.Add(project.Clip{Title: "Déjà Vu", MusicPath: media["music-a"], ImagePath: media["image-a"], Offset: 1500 * time.Millisecond}); err != nil {
		t.Fatalf("add clip: %v", err)
	}
	// Folds to the same folder name as the first clip.
	if err := proj.Registry.Add(project.Clip{Title: "Deja Vu", MusicPath: media["music-b"], ImagePath: media["image-b"], Offset: 42 * time.Second}); err != nil {
		t.Fatalf("add clip: %v", err)
	}
	proj.Timeline = project.NewTimeline(project.Slot{Title: "Deja Vu"}, project.Slot{}, project.Slot{Title: "Déjà Vu"})
	proj.Settings = project.Settings{Duration: 25, Countdown: media["countdown"]}
	if err := proj.Save(); err != nil {
		t.Fatalf("save project: %v", err)
	}
	return proj.Path, media
}

func TestPackUnpackRoundTrip(t *testing.T) {
	for _, compression := range []string{config.CompressionNone, config.CompressionZstd} {
		t.Run(compression, func(t *testing.T) {
			docPath, media := writeProject(t)
			archivePath := archive.DefaultArchivePath(docPath)
			if filepath.Ext(archivePath) != archive.Extension {
				t.Fatalf("unexpected default archive path %q", archivePath)
			}

			summary, err := archive.Pack(context.Background(), docPath, archivePath, archive.Options{Compression: compression, Logger: logging.NewNop()})
			if err != nil {
				t.Fatalf("Pack returned error: %v", err)
			}
			if summary.Clips != 2 || summary.Files != 6 {
				t.Fatalf("unexpected summary: %+v", summary)
			}
			if summary.Compressed != (compression == config.CompressionZstd) {
				t.Fatalf("unexpected compression flag: %+v", summary)
			}

			dest := filepath.Join(t.TempDir(), archive.DefaultOpenDir)
			opened, err := archive.Unpack(context.Background(), archivePath, dest, logging.NewNop())
			if err != nil {
				t.Fatalf("Unpack returned error: %v", err)
			}

			original, err := project.Open(docPath)
			if err != nil {
				t.Fatalf("open original: %v", err)
			}
			restored, err := project.Open(opened)
			if err != nil {
				t.Fatalf("open restored: %v", err)
			}
			if !reflect.DeepEqual(original.Registry.Titles(), restored.Registry.Titles()) {
				t.Fatalf("titles differ: %v vs %v", original.Registry.Titles(), restored.Registry.Titles())
			}
			if !reflect.DeepEqual(original.Timeline.Slots(), restored.Timeline.Slots()) {
				t.Fatalf("timeline differs: %+v vs %+v", original.Timeline.Slots(), restored.Timeline.Slots())
			}
			if restored.Settings.Duration != 25 {
				t.Fatalf("unexpected duration %d", restored.Settings.Duration)
			}
			if !bytes.Equal(testsupport.ReadFile(t, restored.Settings.Countdown), testsupport.ReadFile(t, media["countdown"])) {
				t.Fatal("countdown content differs")
			}

			for _, before := range original.Registry.Clips() {
				after, ok := restored.Registry.Get(before.Title)
				if !ok {
					t.Fatalf("clip %q missing after round trip", before.Title)
				}
				if after.Offset != before.Offset {
					t.Fatalf("offset differs for %q: %s vs %s", before.Title, after.Offset, before.Offset)
				}
				for _, pair := range [][2]string{{before.MusicPath, after.MusicPath}, {before.ImagePath, after.ImagePath}} {
					if !filepath.IsAbs(pair[1]) || !strings.HasPrefix(pair[1], filepath.Dir(opened)) {
						t.Fatalf("restored path %q not under %q", pair[1], filepath.Dir(opened))
					}
					if !bytes.Equal(testsupport.ReadFile(t, pair[0]), testsupport.ReadFile(t, pair[1])) {
						t.Fatalf("content differs between %q and %q", pair[0], pair[1])
					}
				}
			}

			a, _ := restored.Registry.Get("Déjà Vu")
			b, _ := restored.Registry.Get("Deja Vu")
			if filepath.Dir(filepath.Dir(a.MusicPath)) == filepath.Dir(filepath.Dir(b.MusicPath)) {
				t.Fatalf("expected distinct folders, both in %q", filepath.Dir(filepath.Dir(a.MusicPath)))
			}
		})
	}
}

func TestPackMissingMediaLeavesNoArchive(t *testing.T) {
	docPath, media := writeProject(t)
	if err := os.Remove(media["image-b"]); err != nil {
		t.Fatalf("remove media: %v", err)
	}
	archivePath := filepath.Join(t.TempDir(), "out.bta")
	if _, err := archive.Pack(context.Background(), docPath, archivePath, archive.Options{}); err == nil {
		t.Fatal("expected error for missing media")
	}
	if _, err := os.Stat(archivePath); !os.IsNotExist(err) {
		t.Fatalf("expected no archive, stat err %v", err)
	}
	entries, _ := os.ReadDir(filepath.Dir(archivePath))
	if len(entries) != 0 {
		t.Fatalf("expected temp file cleaned up, found %d entries", len(entries))
	}
}

func TestPackRejectsUnknownCompression(t *testing.T) {
	docPath, _ := writeProject(t)
	if _, err := archive.Pack(context.Background(), docPath, filepath.Join(t.TempDir(), "x.bta"), archive.Options{Compression: "lz4"}); err == nil {
		t.Fatal("expected compression error")
	}
}

func writeTar(t *testing.T, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "crafted.bta")
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for name, body := range entries {
		if err := tw.WriteHeader(&tar.Header{Typeflag: tar.TypeReg, Name: name, Mode: 0o644, Size: int64(len(body))}); err != nil {
			t.Fatalf("write header: %v", err)
		}
		if _, err := tw.Write([]byte(body)); err != nil {
			t.Fatalf("write body: %v", err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("close tar: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write tar: %v", err)
	}
	return path
}

func TestUnpackRejectsTraversal(t *testing.T) {
	archivePath := writeTar(t, map[string]string{"../escape.txt": "nope"})
	dest := t.TempDir()
	if _, err := archive.Unpack(context.Background(), archivePath, dest, nil); !errors.Is(err, archive.ErrUnsafeEntry) {
		t.Fatalf("expected ErrUnsafeEntry, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(dest), "escape.txt")); !os.IsNotExist(err) {
		t.Fatal("traversal entry was written outside the destination")
	}
}

func TestUnpackRejectsDocumentPathTraversal(t *testing.T) {
	doc := `{"clips":[{"title":"x","image_path":"../../etc/passwd","music_path":"x/music/a.mp3"}],"timeline":[],"settings":{"duration":30,"countdown":null}}`
	archivePath := writeTar(t, map[string]string{archive.DocumentName: doc})
	if _, err := archive.Unpack(context.Background(), archivePath, t.TempDir(), nil); !errors.Is(err, archive.ErrUnsafeEntry) {
		t.Fatalf("expected ErrUnsafeEntry, got %v", err)
	}
}

func TestUnpackWithoutDocument(t *testing.T) {
	archivePath := writeTar(t, map[string]string{"a/music/a.mp3": "data"})
	if _, err := archive.Unpack(context.Background(), archivePath, t.TempDir(), nil); !errors.Is(err, archive.ErrNoDocument) {
		t.Fatalf("expected ErrNoDocument, got %v", err)
	}
}

func TestPackNamesMediaWhenSanitizingLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	music := filepath.Join(dir, "??")
	image := filepath.Join(dir, "??.png")
	countdown := filepath.Join(dir, "countdown.mp4")
	testsupport.WriteFile(t, music, 2048, 3)
	testsupport.WriteFile(t, image, 1024, 5)
	testsupport.WriteFile(t, countdown, 512, 9)

	proj := project.New(filepath.Join(dir, "quiz.bt"))
	if err := proj.Registry.Add(project.Clip{Title: "Mystery", MusicPath: music, ImagePath: image}); err != nil {
		t.Fatalf("add clip: %v", err)
	}
	proj.Settings = project.Settings{Duration: 20, Countdown: countdown}
	if err := proj.Save(); err != nil {
		t.Fatalf("save project: %v", err)
	}

	archivePath := filepath.Join(t.TempDir(), "quiz.bta")
	if _, err := archive.Pack(context.Background(), proj.Path, archivePath, archive.Options{}); err != nil {
		t.Fatalf("Pack returned error: %v", err)
	}

	f, err := os.Open(archivePath)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer f.Close()
	var names []string
	tr := tar.NewReader(f)
	for {
		hdr, err := tr.Next()
		if err != nil {
			break
		}
		names = append(names, hdr.Name)
	}
	want := []string{"Mystery/music/music", "Mystery/image/image.png", "countdown/countdown.mp4", archive.DocumentName}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("unexpected entries:\n got %q\nwant %q", names, want)
	}

	opened, err := archive.Unpack(context.Background(), archivePath, t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Unpack returned error: %v", err)
	}
	restored, err := project.Open(opened)
	if err != nil {
		t.Fatalf("open restored: %v", err)
	}
	clip, _ := restored.Registry.Get("Mystery")
	if !bytes.Equal(testsupport.ReadFile(t, clip.MusicPath), testsupport.ReadFile(t, music)) {
		t.Fatal("music content differs after round trip")
	}
}
