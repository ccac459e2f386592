package project

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

var (
	ErrEmptyTitle    = errors.New("clip title is empty")
	ErrClipExists    = errors.New("clip already exists")
	ErrClipNotFound  = errors.New("clip not found")
	ErrInvalidOffset = errors.New("invalid music offset")
)

// Clip pairs a music file with an image shown while it plays.
type Clip struct {
	Title     string
	MusicPath string
	ImagePath string
	// Offset is where playback starts inside the music file.
	Offset time.Duration
	// SourceDuration is the probed length of the music file, zero when unknown.
	SourceDuration time.Duration
}

// Registry is the versioned set of clips keyed by title.
type Registry struct {
	mu      sync.RWMutex
	clips   map[string]Clip
	version uint64
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{clips: make(map[string]Clip)}
}

// Version increments on every successful mutation.
func (r *Registry) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// Len returns the number of clips.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clips)
}

// Add inserts a new clip. Titles are trimmed and must be unique.
func (r *Registry) Add(clip Clip) error {
	clip.Title = strings.TrimSpace(clip.Title)
	if clip.Title == "" {
		return ErrEmptyTitle
	}
	if err := validateOffset(clip.Offset, clip.SourceDuration); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clips[clip.Title]; ok {
		return fmt.Errorf("%w: %q", ErrClipExists, clip.Title)
	}
	r.clips[clip.Title] = clip
	r.version++
	return nil
}

// Get returns a copy of the clip with title.
func (r *Registry) Get(title string) (Clip, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clip, ok := r.clips[title]
	return clip, ok
}

// SetOffset changes where playback of a clip's music starts.
func (r *Registry) SetOffset(title string, offset time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clip, ok := r.clips[title]
	if !ok {
		return fmt.Errorf("%w: %q", ErrClipNotFound, title)
	}
	if err := validateOffset(offset, clip.SourceDuration); err != nil {
		return err
	}
	clip.Offset = offset
	r.clips[title] = clip
	r.version++
	return nil
}

// SetSourceDuration records the probed length of a clip's music file.
func (r *Registry) SetSourceDuration(title string, duration time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clip, ok := r.clips[title]
	if !ok {
		return fmt.Errorf("%w: %q", ErrClipNotFound, title)
	}
	clip.SourceDuration = duration
	r.clips[title] = clip
	r.version++
	return nil
}

// Delete removes a clip. Timeline slots naming it become dangling and are
// skipped when an export request is built.
func (r *Registry) Delete(title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clips[title]; !ok {
		return fmt.Errorf("%w: %q", ErrClipNotFound, title)
	}
	delete(r.clips, title)
	r.version++
	return nil
}

// Titles returns every title in natural order ("Track 2" before "Track 10").
func (r *Registry) Titles() []string {
	r.mu.RLock()
	titles := make([]string, 0, len(r.clips))
	for title := range r.clips {
		titles = append(titles, title)
	}
	r.mu.RUnlock()
	sortNatural(titles)
	return titles
}

// Clips returns copies of every clip in title order.
func (r *Registry) Clips() []Clip {
	titles := r.Titles()
	r.mu.RLock()
	defer r.mu.RUnlock()
	clips := make([]Clip, 0, len(titles))
	for _, title := range titles {
		if clip, ok := r.clips[title]; ok {
			clips = append(clips, clip)
		}
	}
	return clips
}

func validateOffset(offset, source time.Duration) error {
	if offset < 0 {
		return fmt.Errorf("%w: %s is negative", ErrInvalidOffset, offset)
	}
	if source > 0 && offset > source {
		return fmt.Errorf("%w: %s is past the end of the music (%s)", ErrInvalidOffset, offset, source)
	}
	return nil
}

func sortNatural(values []string) {
	c := collate.New(language.Und, collate.Numeric, collate.IgnoreCase)
	slices.SortStableFunc(values, func(a, b string) int {
		if cmp := c.CompareString(a, b); cmp != 0 {
			return cmp
		}
		return strings.Compare(a, b)
	})
}
