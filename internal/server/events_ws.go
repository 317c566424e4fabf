package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/tuneport/tuneport/internal/events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API binds to localhost; the UI shell connects from a file:// or
	// dev-server origin, so origin checking buys nothing here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
	wsSendBuffer = 64
)

// eventStream upgrades the connection and forwards every bus event to the
// client as JSON. A client that cannot keep up gets disconnected rather
// than allowed to stall the bus.
func (s *Server) eventStream(c *gin.Context) {
	if s.deps.Bus == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event bus not running"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	send := make(chan events.Event, wsSendBuffer)
	subID := s.deps.Bus.Subscribe(func(event events.Event) {
		select {
		case send <- event:
		default:
			// Drop rather than block the dispatcher.
		}
	})

	go s.writeEvents(conn, send, subID)
	go s.readUntilClosed(conn)
}

func (s *Server) writeEvents(conn *websocket.Conn, send chan events.Event, subID string) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		s.deps.Bus.Unsubscribe(subID)
		conn.Close()
	}()

	for {
		select {
		case event := <-send:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readUntilClosed drains client frames so close handshakes and pongs are
// processed; the stream is one-way otherwise.
func (s *Server) readUntilClosed(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
