package realtime

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/capitalize-ai/support-chat/internal/model"
	"github.com/capitalize-ai/support-chat/internal/service"
	"github.com/capitalize-ai/support-chat/pkg/logger"
)

// MessageSender is the ingestion entry point used by the live channel.
type MessageSender interface {
	Send(ctx context.Context, transport string, req *model.SendMessageRequest) (*service.SendResult, error)
}

// Session dispatches client frames for one connection. Failures are logged
// and never reported back over the channel.
type Session struct {
	conn   *Conn
	hub    *Hub
	sender MessageSender
	logger *logger.Logger
}

// NewSession binds a connection to the hub and the ingestion path.
func NewSession(conn *Conn, hub *Hub, sender MessageSender, log *logger.Logger) *Session {
	return &Session{
		conn:   conn,
		hub:    hub,
		sender: sender,
		logger: log.WithConnection(conn.ID()),
	}
}

// Conn returns the session's connection.
func (s *Session) Conn() *Conn {
	return s.conn
}

// Handle processes one client frame.
func (s *Session) Handle(ctx context.Context, frame model.Frame) {
	switch frame.Event {
	case model.EventJoinRoom:
		if id, ok := s.roomID(frame); ok {
			s.hub.Join(s.conn, id)
		}

	case model.EventLeaveRoom:
		if id, ok := s.roomID(frame); ok {
			s.hub.Leave(s.conn.ID(), id)
		}

	case model.EventSendMessage:
		var req model.SendMessageRequest
		if err := json.Unmarshal(frame.Data, &req); err != nil {
			s.logger.Warn("malformed send_message payload", zap.Error(err))
			return
		}
		if _, err := s.sender.Send(ctx, service.TransportWebSocket, &req); err != nil {
			s.logger.Warn("failed to send message via realtime channel",
				zap.String("conversation_id", req.ConversationID),
				zap.String("kind", string(model.KindOf(err))),
				zap.Error(err),
			)
		}

	case model.EventTyping:
		s.presence(frame, model.EventUserTyping)

	case model.EventStopTyping:
		s.presence(frame, model.EventUserStopTyping)

	default:
		s.logger.Debug("ignoring unknown event", zap.String("event", string(frame.Event)))
	}
}

// Close removes the connection from every room and stops deliveries.
func (s *Session) Close() {
	rooms := s.hub.Disconnect(s.conn.ID())
	s.conn.Close()
	s.logger.Debug("session closed", zap.Strings("rooms", rooms))
}

func (s *Session) presence(frame model.Frame, out model.EventType) {
	var p model.TypingPayload
	if err := json.Unmarshal(frame.Data, &p); err != nil || p.ConversationID == "" {
		s.logger.Warn("malformed typing payload", zap.String("event", string(frame.Event)))
		return
	}

	var party any
	if len(p.Party) > 0 {
		party = p.Party
	}
	s.hub.BroadcastPresence(p.ConversationID, s.conn.ID(), out, party)
}

// roomID accepts either a bare JSON string or {"conversationId": "..."}.
func (s *Session) roomID(frame model.Frame) (string, bool) {
	var id string
	if err := json.Unmarshal(frame.Data, &id); err != nil {
		var p model.RoomPayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			s.logger.Warn("malformed room payload", zap.String("event", string(frame.Event)))
			return "", false
		}
		id = p.ConversationID
	}

	id = strings.TrimSpace(id)
	if !model.ValidID(id) {
		s.logger.Warn("invalid conversation ID in room event",
			zap.String("event", string(frame.Event)),
			zap.String("conversation_id", id),
		)
		return "", false
	}
	return id, true
}
