package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"blindtest/internal/bridge"
	"blindtest/internal/export"
	"blindtest/internal/exportrun"
	"blindtest/internal/logging"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsBuffer     = 64
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// exportEvents streams one export's progress. The first message is a
// snapshot; frame events are throttled; the stream ends with the terminal
// event followed by a close frame.
func (h *routes) exportEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, ok := h.manager.Lookup(id)
	if !ok {
		WriteError(w, http.StatusNotFound, ErrNotFound.Error(), "NOT_FOUND")
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", logging.Error(err))
		return
	}
	defer conn.Close()

	tracker := job.Session.Tracker()
	updates, unsubscribe := tracker.Subscribe(wsBuffer)
	defer unsubscribe()

	closed := make(chan struct{})
	go readPump(conn, closed)

	initial := tracker.Snapshot()
	if err := writeMessage(conn, EventMessage{Type: "snapshot", Run: runFor(job, initial)}); err != nil {
		return
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if eps := h.cfg.eventsPerSecond(); eps > 0 {
		limiter = rate.NewLimiter(rate.Limit(eps), 1)
	}
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	terminalSent := initial.Status.Terminal()
	for !terminalSent {
		select {
		case <-closed:
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case update, ok := <-updates:
			if !ok {
				// Buffered-out terminal updates are recovered from the snapshot.
				final := tracker.Snapshot()
				if err := writeMessage(conn, terminalMessage(job, final)); err != nil {
					return
				}
				terminalSent = true
				continue
			}
			if update.Event.Kind == export.EventFrame && !limiter.Allow() {
				continue
			}
			if err := writeMessage(conn, EventMessage{
				Type:    update.Event.Kind.String(),
				Frame:   update.Event.Frame,
				Message: update.Event.Message(),
				Run:     runFor(job, update.State),
			}); err != nil {
				return
			}
			terminalSent = update.Event.Terminal()
		}
	}

	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "export finished"),
		time.Now().Add(wsWriteWait),
	)
}

func terminalMessage(job *exportrun.Job, state bridge.State) EventMessage {
	kind := export.EventDone
	if state.Status != bridge.StatusCompleted {
		kind = export.EventError
	}
	return EventMessage{Type: kind.String(), Message: state.Error, Run: runFor(job, state)}
}

func runFor(job *exportrun.Job, state bridge.State) ExportRun {
	return FromState(state, job.Request, job.Project)
}

func writeMessage(conn *websocket.Conn, msg EventMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(msg)
}

// readPump discards client messages and reports when the peer goes away.
func readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
