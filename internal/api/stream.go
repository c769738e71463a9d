package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"authflow/pkg/flow"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// StreamHandler pushes flow events to browsers over a websocket.
type StreamHandler struct {
	ctrl     FlowController
	upgrader websocket.Upgrader
}

// NewStreamHandler creates a new StreamHandler.
func NewStreamHandler(ctrl FlowController) *StreamHandler {
	return &StreamHandler{
		ctrl: ctrl,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

// StreamMessage is one websocket frame. The first frame of a connection is
// a snapshot; the rest are events.
type StreamMessage struct {
	Snapshot *flow.Snapshot `json:"snapshot,omitempty"`
	Event    *flow.Event    `json:"event,omitempty"`
}

// HandleEvents handles GET /api/flow/events
func (h *StreamHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client
		slog.Warn("API: websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	events, unsubscribe := h.ctrl.Subscribe(64)
	defer unsubscribe()

	snap := h.ctrl.Snapshot()
	if err := writeFrame(conn, StreamMessage{Snapshot: &snap}); err != nil {
		return
	}

	closed := make(chan struct{})
	go readPump(conn, closed)

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := writeFrame(conn, StreamMessage{Event: &ev}); err != nil {
				slog.Debug("API: websocket write failed", "error", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

func writeFrame(conn *websocket.Conn, msg StreamMessage) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}

// readPump discards client frames and reports when the peer goes away.
func readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}
