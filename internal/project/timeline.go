package project

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrSlotOutOfRange is returned for timeline indexes outside the slot list.
var ErrSlotOutOfRange = errors.New("timeline slot out of range")

// Slot is one timeline position. An empty Title is an unfilled slot.
type Slot struct {
	Title string
}

// Empty reports whether no clip is bound to the slot.
func (s Slot) Empty() bool {
	return s.Title == ""
}

// Timeline is the ordered list of slots exported in sequence.
type Timeline struct {
	mu    sync.Mutex
	slots []Slot
}

// NewTimeline returns a timeline holding a copy of slots.
func NewTimeline(slots ...Slot) *Timeline {
	return &Timeline{slots: append([]Slot(nil), slots...)}
}

// Len returns the number of slots, filled or not.
func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.slots)
}

// AddStart inserts an empty slot at the front.
func (t *Timeline) AddStart() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.slots = append([]Slot{{}}, t.slots...)
}

// AddEnd appends an empty slot.
func (t *Timeline) AddEnd() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.slots = append(t.slots, Slot{})
}

// Set binds the slot at index to title.
func (t *Timeline) Set(index int, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrEmptyTitle
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkIndex(index); err != nil {
		return err
	}
	t.slots[index].Title = title
	return nil
}

// Clear unbinds the slot at index.
func (t *Timeline) Clear(index int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkIndex(index); err != nil {
		return err
	}
	t.slots[index] = Slot{}
	return nil
}

// MoveUp swaps the slot at index with the one before it.
func (t *Timeline) MoveUp(index int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkIndex(index); err != nil {
		return err
	}
	if index == 0 {
		return fmt.Errorf("%w: slot 0 is already first", ErrSlotOutOfRange)
	}
	t.slots[index], t.slots[index-1] = t.slots[index-1], t.slots[index]
	return nil
}

// MoveDown swaps the slot at index with the one after it.
func (t *Timeline) MoveDown(index int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkIndex(index); err != nil {
		return err
	}
	if index == len(t.slots)-1 {
		return fmt.Errorf("%w: slot %d is already last", ErrSlotOutOfRange, index)
	}
	t.slots[index], t.slots[index+1] = t.slots[index+1], t.slots[index]
	return nil
}

// Remove deletes the slot at index.
func (t *Timeline) Remove(index int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkIndex(index); err != nil {
		return err
	}
	t.slots = append(t.slots[:index], t.slots[index+1:]...)
	return nil
}

// Slots returns a copy of every slot.
func (t *Timeline) Slots() []Slot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Slot(nil), t.slots...)
}

// Titles returns the titles of filled slots in order.
func (t *Timeline) Titles() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	titles := make([]string, 0, len(t.slots))
	for _, slot := range t.slots {
		if !slot.Empty() {
			titles = append(titles, slot.Title)
		}
	}
	return titles
}

func (t *Timeline) checkIndex(index int) error {
	if index < 0 || index >= len(t.slots) {
		return fmt.Errorf("%w: %d (have %d slots)", ErrSlotOutOfRange, index, len(t.slots))
	}
	return nil
}
