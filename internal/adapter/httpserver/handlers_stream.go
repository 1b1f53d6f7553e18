package httpserver

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/ognjhunt/blueprintxr/internal/app"
)

const (
	streamWriteDeadline = 5 * time.Second
	streamPingInterval  = 30 * time.Second
	streamPongDeadline  = 60 * time.Second
)

// handleStream upgrades to a WebSocket and pushes every snapshot of the screen,
// starting with the current one. The stream ends when the client goes away or
// the screen closes.
func (s *Server) handleStream(c echo.Context) error {
	coord, err := s.screen(c)
	if err != nil {
		return err
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		slog.WarnContext(c.Request().Context(), "State stream upgrade failed", "error", err)
		return nil
	}
	defer func() { _ = conn.Close() }()

	// The request context is cancelled once the handler returns, so the
	// subscription is tied to the handler lifetime.
	snapshots, cancel, err := coord.Subscribe(c.Request().Context())
	if err != nil {
		closeStream(conn, websocket.CloseGoingAway, "screen closed")
		return nil
	}
	defer cancel()

	if s.screenMetrics != nil {
		s.screenMetrics.ActiveStreams.Inc()
		defer s.screenMetrics.ActiveStreams.Dec()
	}

	readDone := make(chan struct{})
	go readPump(conn, readDone)

	s.writePump(conn, snapshots, readDone)
	return nil
}

// readPump discards client frames so control frames are processed, and
// signals when the connection is gone.
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	_ = conn.SetReadDeadline(time.Now().Add(streamPongDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongDeadline))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writePump(conn *websocket.Conn, snapshots <-chan app.Snapshot, readDone <-chan struct{}) {
	ticker := time.NewTicker(streamPingInterval)
	defer ticker.Stop()

	for {
		select {
		case snap, ok := <-snapshots:
			if !ok {
				closeStream(conn, websocket.CloseGoingAway, "screen closed")
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteDeadline))
			if err := conn.WriteJSON(snap); err != nil {
				return
			}
			if s.screenMetrics != nil {
				s.screenMetrics.SnapshotsPushed.Inc()
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteDeadline))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-readDone:
			return
		}
	}
}

func closeStream(conn *websocket.Conn, code int, reason string) {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteDeadline))
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
}
