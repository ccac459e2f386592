package bridge

import (
	"context"
	"errors"
	"sync"
	"time"

	"blindtest/internal/export"
	"blindtest/internal/logging"
)

// Status is the UI-facing phase of an export.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// State is a point-in-time view of an export.
type State struct {
	RunID       string    `json:"id"`
	Status      Status    `json:"status"`
	Frame       uint64    `json:"frame"`
	TotalFrames uint64    `json:"total_frames"`
	Percent     float64   `json:"percent"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at,omitzero"`
	FinishedAt  time.Time `json:"finished_at,omitzero"`
}

// Update pairs an event with the state it produced.
type Update struct {
	Event export.Event
	State State
}

// Tracker is the mutex-protected progress state of one export.
type Tracker struct {
	mu     sync.Mutex
	state  State
	subs   map[int]chan Update
	nextID int
	closed bool
	now    func() time.Time
}

// NewTracker creates a pending tracker expecting totalFrames frames.
func NewTracker(runID string, totalFrames uint64) *Tracker {
	return &Tracker{
		state: State{RunID: runID, Status: StatusPending, TotalFrames: totalFrames},
		subs:  make(map[int]chan Update),
		now:   time.Now,
	}
}

// Apply folds event into the state, notifies subscribers and returns the new state.
func (t *Tracker) Apply(event export.Event) State {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.Status.Terminal() {
		return t.state
	}
	switch event.Kind {
	case export.EventStarted:
		t.state.Status = StatusRunning
		t.state.StartedAt = t.now().UTC()
	case export.EventFrame:
		t.state.Status = StatusRunning
		t.state.Frame = event.Frame
		t.state.Percent = logging.Percent(event.Frame, t.state.TotalFrames)
	case export.EventDone:
		t.state.Status = StatusCompleted
		t.state.Percent = 100
		t.state.FinishedAt = t.now().UTC()
	case export.EventError:
		t.state.Status = statusForError(event.Err)
		if event.Err != nil {
			t.state.Error = event.Err.Error()
		}
		t.state.FinishedAt = t.now().UTC()
	}

	update := Update{Event: event, State: t.state}
	for _, ch := range t.subs {
		// Full buffers drop the update; the final state stays readable through
		// Snapshot after the channel closes.
		select {
		case ch <- update:
		default:
		}
	}
	if t.state.Status.Terminal() {
		t.closeSubscribersLocked()
	}
	return t.state
}

// Fail records err as the terminal outcome of a tracker that never saw one.
func (t *Tracker) Fail(err error) State {
	return t.Apply(export.Event{Kind: export.EventError, Err: err})
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Subscribe returns a channel of updates and a function that cancels the
// subscription. The channel is closed once the export reaches a terminal
// state; frame updates are dropped when the buffer is full.
func (t *Tracker) Subscribe(buffer int) (<-chan Update, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Update, buffer)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		close(ch)
		return ch, func() {}
	}
	id := t.nextID
	t.nextID++
	t.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			if sub, ok := t.subs[id]; ok {
				delete(t.subs, id)
				close(sub)
			}
		})
	}
}

func (t *Tracker) closeSubscribersLocked() {
	t.closed = true
	for id, ch := range t.subs {
		delete(t.subs, id)
		close(ch)
	}
}

func (t *Tracker) setRunID(id string) {
	t.mu.Lock()
	t.state.RunID = id
	t.mu.Unlock()
}

func statusForError(err error) Status {
	if errors.Is(err, context.Canceled) {
		return StatusCancelled
	}
	return StatusFailed
}
