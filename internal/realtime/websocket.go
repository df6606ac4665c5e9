package realtime

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/capitalize-ai/support-chat/internal/model"
	"github.com/capitalize-ai/support-chat/internal/service"
	"github.com/capitalize-ai/support-chat/pkg/logger"
	"github.com/capitalize-ai/support-chat/pkg/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 64 * 1024
	defaultBufSize = 64
)

// WebSocketServer upgrades HTTP requests into realtime sessions.
type WebSocketServer struct {
	hub        *Hub
	sender     MessageSender
	upgrader   websocket.Upgrader
	sendBuffer int
	logger     *logger.Logger
}

// NewWebSocketServer creates the websocket endpoint. sendBuffer bounds each
// connection's outbound queue.
func NewWebSocketServer(hub *Hub, sender MessageSender, sendBuffer int, log *logger.Logger) *WebSocketServer {
	if sendBuffer <= 0 {
		sendBuffer = defaultBufSize
	}
	return &WebSocketServer{
		hub:        hub,
		sender:     sender,
		sendBuffer: sendBuffer,
		logger:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP handles GET /ws.
func (s *WebSocketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	session := NewSession(NewConn(s.sendBuffer), s.hub, s.sender, s.logger)
	metrics.ConnectionOpened(service.TransportWebSocket)
	s.logger.Info("client connected",
		zap.String("connection_id", session.Conn().ID()),
		zap.String("remote_addr", r.RemoteAddr),
	)

	session.Conn().Deliver(model.Event{
		Type: model.EventConnected,
		Data: map[string]string{"connectionId": session.Conn().ID()},
	})

	go s.writePump(ws, session.Conn())
	s.readPump(ws, session)

	metrics.ConnectionClosed(service.TransportWebSocket)
	s.logger.Info("client disconnected", zap.String("connection_id", session.Conn().ID()))
}

// readPump dispatches frames in arrival order until the socket fails, then
// tears the session down.
func (s *WebSocketServer) readPump(ws *websocket.Conn, session *Session) {
	defer func() {
		session.Close()
		ws.Close()
	}()

	ws.SetReadLimit(maxFrameSize)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	ctx := context.Background()
	for {
		var frame model.Frame
		if err := ws.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read failed",
					zap.String("connection_id", session.Conn().ID()),
					zap.Error(err),
				)
			}
			return
		}
		session.Handle(ctx, frame)
	}
}

// writePump is the only writer on ws.
func (s *WebSocketServer) writePump(ws *websocket.Conn, conn *Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case <-conn.Done():
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case ev := <-conn.Events():
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteJSON(ev); err != nil {
				conn.Close()
				return
			}

		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		}
	}
}
