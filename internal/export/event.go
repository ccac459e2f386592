package export

import "fmt"

// EventKind identifies a progress event.
type EventKind int

const (
	EventStarted EventKind = iota + 1
	EventFrame
	EventDone
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventFrame:
		return "frame"
	case EventDone:
		return "done"
	case EventError:
		return "error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Event is one unit of export progress. Frame is set for EventFrame and Err
// for EventError.
type Event struct {
	Kind  EventKind
	Frame uint64
	Err   error
}

// Terminal reports whether no further events follow e.
func (e Event) Terminal() bool {
	return e.Kind == EventDone || e.Kind == EventError
}

// Message renders a short human-readable description of the event.
func (e Event) Message() string {
	switch e.Kind {
	case EventStarted:
		return "export started"
	case EventFrame:
		return fmt.Sprintf("frame %d", e.Frame)
	case EventDone:
		return "export complete"
	case EventError:
		if e.Err == nil {
			return "export failed"
		}
		return "export failed: " + e.Err.Error()
	default:
		return e.Kind.String()
	}
}

func startedEvent() Event { return Event{Kind: EventStarted} }

func frameEvent(frame uint64) Event { return Event{Kind: EventFrame, Frame: frame} }

func doneEvent() Event { return Event{Kind: EventDone} }

func errorEvent(err error) Event { return Event{Kind: EventError, Err: err} }
