package project

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Offset is the save-file encoding of a duration as whole seconds plus nanoseconds.
type Offset struct {
	Secs  uint64 `json:"secs"`
	Nanos uint32 `json:"nanos"`
}

// OffsetFrom converts d into its save-file form; negative values become zero.
func OffsetFrom(d time.Duration) Offset {
	if d <= 0 {
		return Offset{}
	}
	return Offset{Secs: uint64(d / time.Second), Nanos: uint32(d % time.Second)}
}

// Duration converts the offset back into a time.Duration.
func (o Offset) Duration() time.Duration {
	return time.Duration(o.Secs)*time.Second + time.Duration(o.Nanos)
}

// ClipRecord is one clip entry of the save document.
type ClipRecord struct {
	Title     string `json:"title"`
	ImagePath string `json:"image_path"`
	MusicPath string `json:"music_path"`
	Offset    Offset `json:"offset"`
}

// SettingsRecord is the settings entry of the save document.
type SettingsRecord struct {
	Duration  uint32  `json:"duration"`
	Countdown *string `json:"countdown"`
}

// Document is the JSON save file. Timeline entries are clip titles or null
// for empty slots.
type Document struct {
	Clips    []ClipRecord   `json:"clips"`
	Timeline []*string      `json:"timeline"`
	Settings SettingsRecord `json:"settings"`
}

// Decode reads a document from r.
func Decode(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode project document: %w", err)
	}
	if doc.Clips == nil {
		doc.Clips = []ClipRecord{}
	}
	if doc.Timeline == nil {
		doc.Timeline = []*string{}
	}
	return &doc, nil
}

// Load reads the document stored at path.
func Load(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open project: %w", err)
	}
	defer f.Close()
	doc, err := Decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Encode writes the document to w.
func (d *Document) Encode(w io.Writer) error {
	if err := json.NewEncoder(w).Encode(d); err != nil {
		return fmt.Errorf("encode project document: %w", err)
	}
	return nil
}

// Store writes the document to path, replacing any existing file atomically.
func (d *Document) Store(path string) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".blindtest-*.tmp")
	if err != nil {
		return fmt.Errorf("store project: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()
	if err := d.Encode(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store project: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("store project: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("store project: %w", err)
	}
	return nil
}

// Countdown returns the countdown path, empty when unset.
func (d *Document) Countdown() string {
	if d.Settings.Countdown == nil {
		return ""
	}
	return *d.Settings.Countdown
}

// RewritePaths applies fn to every media path in the document.
func (d *Document) RewritePaths(fn func(string) (string, error)) error {
	for i := range d.Clips {
		music, err := fn(d.Clips[i].MusicPath)
		if err != nil {
			return err
		}
		image, err := fn(d.Clips[i].ImagePath)
		if err != nil {
			return err
		}
		d.Clips[i].MusicPath = music
		d.Clips[i].ImagePath = image
	}
	if d.Settings.Countdown != nil && *d.Settings.Countdown != "" {
		countdown, err := fn(*d.Settings.Countdown)
		if err != nil {
			return err
		}
		d.Settings.Countdown = &countdown
	}
	return nil
}

// FromDocument builds live project state from a decoded document.
func FromDocument(doc *Document) (*Registry, *Timeline, Settings, error) {
	if doc == nil {
		return nil, nil, Settings{}, errors.New("nil project document")
	}
	reg := NewRegistry()
	for _, record := range doc.Clips {
		clip := Clip{
			Title:     record.Title,
			MusicPath: record.MusicPath,
			ImagePath: record.ImagePath,
			Offset:    record.Offset.Duration(),
		}
		if err := reg.Add(clip); err != nil {
			return nil, nil, Settings{}, fmt.Errorf("load clip %q: %w", record.Title, err)
		}
	}
	slots := make([]Slot, len(doc.Timeline))
	for i, title := range doc.Timeline {
		if title != nil {
			slots[i] = Slot{Title: *title}
		}
	}
	settings := Settings{Duration: doc.Settings.Duration, Countdown: doc.Countdown()}
	return reg, NewTimeline(slots...), settings, nil
}

// ToDocument captures live project state as a save document.
func ToDocument(reg *Registry, tl *Timeline, settings Settings) *Document {
	doc := &Document{
		Clips:    []ClipRecord{},
		Timeline: []*string{},
		Settings: SettingsRecord{Duration: settings.Duration},
	}
	if settings.Countdown != "" {
		countdown := settings.Countdown
		doc.Settings.Countdown = &countdown
	}
	if reg != nil {
		for _, clip := range reg.Clips() {
			doc.Clips = append(doc.Clips, ClipRecord{
				Title:     clip.Title,
				ImagePath: clip.ImagePath,
				MusicPath: clip.MusicPath,
				Offset:    OffsetFrom(clip.Offset),
			})
		}
	}
	if tl != nil {
		for _, slot := range tl.Slots() {
			if slot.Empty() {
				doc.Timeline = append(doc.Timeline, nil)
				continue
			}
			title := slot.Title
			doc.Timeline = append(doc.Timeline, &title)
		}
	}
	return doc
}
