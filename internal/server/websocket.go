package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/atikulmunna/poplog/internal/parser"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleWebSocket upgrades to WebSocket and streams forwarded entries to
// the client as JSON. ?group= and ?level= narrow the stream.
func (s *Server) handleWebSocket(c *gin.Context) {
	group := c.Query("group")
	minLevel := parser.Debug
	if name := c.Query("level"); name != "" {
		lvl, err := parser.ParseThreshold(name)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		minLevel = lvl
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	entries := s.deps.Hub.Subscribe()
	defer s.deps.Hub.Unsubscribe(entries)

	// Read pump: detect client disconnect.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Write pump.
	for {
		select {
		case <-gone:
			return
		case entry, ok := <-entries:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return
			}
			if group != "" && !strings.EqualFold(entry.Group, group) {
				continue
			}
			if parser.LevelOf(entry.Level) < minLevel {
				continue
			}
			if err := conn.WriteJSON(entry); err != nil {
				s.logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		}
	}
}
