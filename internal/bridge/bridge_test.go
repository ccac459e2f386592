package bridge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"blindtest/internal/export"
	"blindtest/internal/filtergraph"
	"blindtest/internal/history"
)

type stubSource struct {
	events []export.Event
	pos    int
	closed int
}

func (s *stubSource) Next(context.Context) (export.Event, bool) {
	if s.pos >= len(s.events) {
		return export.Event{}, false
	}
	event := s.events[s.pos]
	s.pos++
	return event, true
}

func (s *stubSource) Close() error {
	s.closed++
	return nil
}

type stubRecorder struct {
	mu       sync.Mutex
	begun    []history.Run
	frames   []uint64
	status   history.Status
	finalErr error
	frame    uint64
}

func (r *stubRecorder) Begin(_ context.Context, run history.Run) (history.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run.ID = "run-1"
	r.begun = append(r.begun, run)
	return run, nil
}

func (r *stubRecorder) UpdateFrame(_ context.Context, _ string, frame uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, frame)
	return nil
}

func (r *stubRecorder) Finish(_ context.Context, _ string, status history.Status, frame uint64, runErr error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = status
	r.frame = frame
	r.finalErr = runErr
	return nil
}

func testRequest(t *testing.T, items int) export.Request {
	t.Helper()
	list := make([]filtergraph.Item, items)
	return export.NewRequest("cd.mp4", filepath.Join(t.TempDir(), "out.mp4"), 30, list, nil)
}

func TestEstimateTotalFrames(t *testing.T) {
	if got := EstimateTotalFrames(30, 4); got != 3000 {
		t.Fatalf("expected 3000 frames, got %d", got)
	}
	if got := EstimateTotalFrames(30, 0); got != 0 {
		t.Fatalf("expected zero frames without items, got %d", got)
	}
}

func TestTrackerAppliesEvents(t *testing.T) {
	tracker := NewTracker("run", 1000)
	tracker.Apply(export.Event{Kind: export.EventStarted})
	state := tracker.Apply(export.Event{Kind: export.EventFrame, Frame: 250})
	if state.Status != StatusRunning || state.Frame != 250 || state.Percent != 25 {
		t.Fatalf("unexpected running state: %+v", state)
	}
	state = tracker.Apply(export.Event{Kind: export.EventDone})
	if state.Status != StatusCompleted || state.Percent != 100 || state.FinishedAt.IsZero() {
		t.Fatalf("unexpected completed state: %+v", state)
	}
	after := tracker.Apply(export.Event{Kind: export.EventFrame, Frame: 999})
	if after.Frame != 250 {
		t.Fatalf("terminal tracker must ignore later events, got %+v", after)
	}
}

func TestTrackerClassifiesCancellation(t *testing.T) {
	tracker := NewTracker("run", 10)
	state := tracker.Fail(context.Canceled)
	if state.Status != StatusCancelled {
		t.Fatalf("expected cancelled status, got %q", state.Status)
	}
	other := NewTracker("run", 10).Fail(export.ErrEncoderExited)
	if other.Status != StatusFailed || other.Error == "" {
		t.Fatalf("expected failed status with message, got %+v", other)
	}
}

func TestTrackerSubscribersReceiveUpdatesAndClose(t *testing.T) {
	tracker := NewTracker("run", 100)
	updates, cancel := tracker.Subscribe(8)
	defer cancel()

	tracker.Apply(export.Event{Kind: export.EventStarted})
	tracker.Apply(export.Event{Kind: export.EventFrame, Frame: 5})
	tracker.Apply(export.Event{Kind: export.EventDone})

	var kinds []export.EventKind
	for update := range updates {
		kinds = append(kinds, update.Event.Kind)
	}
	want := []export.EventKind{export.EventStarted, export.EventFrame, export.EventDone}
	if len(kinds) != len(want) {
		t.Fatalf("unexpected updates: %v", kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("unexpected updates: %v", kinds)
		}
	}

	late, lateCancel := tracker.Subscribe(1)
	defer lateCancel()
	if _, ok := <-late; ok {
		t.Fatal("expected subscription after completion to be closed")
	}
}

func TestTrackerDropsFramesForSlowSubscribers(t *testing.T) {
	tracker := NewTracker("run", 100)
	updates, cancel := tracker.Subscribe(1)
	defer cancel()
	for i := uint64(1); i <= 5; i++ {
		tracker.Apply(export.Event{Kind: export.EventFrame, Frame: i})
	}
	first := <-updates
	if first.Event.Frame != 1 {
		t.Fatalf("expected first buffered frame, got %+v", first)
	}
	if got := tracker.Snapshot().Frame; got != 5 {
		t.Fatalf("expected snapshot to hold latest frame, got %d", got)
	}
}

func TestSessionRunCompletes(t *testing.T) {
	source := &stubSource{events: []export.Event{
		{Kind: export.EventStarted},
		{Kind: export.EventFrame, Frame: 100},
		{Kind: export.EventFrame, Frame: 200},
		{Kind: export.EventDone},
	}}
	recorder := &stubRecorder{}
	var seen []export.EventKind
	req := testRequest(t, 2)
	session := NewSession(req, source, SessionOptions{
		Project:  "quiz.bt",
		Recorder: recorder,
		Sinks:    []Sink{func(u Update) { seen = append(seen, u.Event.Kind) }},
	})

	state, err := session.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if state.Status != StatusCompleted || state.RunID != "run-1" || state.TotalFrames != 1500 {
		t.Fatalf("unexpected final state: %+v", state)
	}
	if len(seen) != 4 {
		t.Fatalf("expected every event to reach sinks, got %v", seen)
	}
	if source.closed == 0 {
		t.Fatal("expected source to be closed")
	}
	if recorder.status != history.StatusCompleted || recorder.frame != 200 {
		t.Fatalf("unexpected history finish: %+v", recorder)
	}
	if len(recorder.begun) != 1 || recorder.begun[0].Project != "quiz.bt" || recorder.begun[0].Items != 2 {
		t.Fatalf("unexpected history begin: %+v", recorder.begun)
	}
	if len(recorder.frames) == 0 || recorder.frames[0] != 100 {
		t.Fatalf("expected first frame flushed to history, got %v", recorder.frames)
	}
	if _, err := os.Stat(req.Output + ".lock"); !os.IsNotExist(err) {
		t.Fatalf("expected lock file removed, stat err=%v", err)
	}
	select {
	case <-session.Done():
	default:
		t.Fatal("expected Done to be closed after Run")
	}
}

func TestSessionRunReportsFailure(t *testing.T) {
	source := &stubSource{events: []export.Event{
		{Kind: export.EventError, Err: export.ErrInvalidDuration},
	}}
	recorder := &stubRecorder{}
	session := NewSession(testRequest(t, 1), source, SessionOptions{Recorder: recorder})

	state, err := session.Run(context.Background())
	if !errors.Is(err, export.ErrInvalidDuration) {
		t.Fatalf("expected invalid duration error, got %v", err)
	}
	if state.Status != StatusFailed {
		t.Fatalf("expected failed state, got %+v", state)
	}
	if recorder.status != history.StatusFailed || !errors.Is(recorder.finalErr, export.ErrInvalidDuration) {
		t.Fatalf("unexpected history finish: %+v", recorder)
	}
}

func TestSessionRunWithoutTerminalEvent(t *testing.T) {
	source := &stubSource{events: []export.Event{{Kind: export.EventStarted}}}
	session := NewSession(testRequest(t, 1), source, SessionOptions{})
	state, err := session.Run(context.Background())
	if err == nil || state.Status != StatusFailed {
		t.Fatalf("expected failure without terminal event, got %+v %v", state, err)
	}
	if session.ID() == "" {
		t.Fatal("expected generated run id without a recorder")
	}
}

func TestSessionRejectsBusyOutput(t *testing.T) {
	req := testRequest(t, 1)
	first := NewSession(req, &stubSource{}, SessionOptions{})
	if _, err := first.Prepare(context.Background()); err != nil {
		t.Fatalf("first Prepare returned error: %v", err)
	}
	defer first.unlock()

	secondSource := &stubSource{}
	second := NewSession(req, secondSource, SessionOptions{})
	if _, err := second.Prepare(context.Background()); !errors.Is(err, ErrOutputBusy) {
		t.Fatalf("expected ErrOutputBusy, got %v", err)
	}
	if secondSource.closed == 0 {
		t.Fatal("expected rejected session to close its source")
	}
}
