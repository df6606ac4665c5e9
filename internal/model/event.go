package model

import (
	"encoding/json"
	"time"
)

// EventType names a real-time channel event.
type EventType string

const (
	// client -> server
	EventJoinRoom    EventType = "join_room"
	EventLeaveRoom   EventType = "leave_room"
	EventSendMessage EventType = "send_message"
	EventTyping      EventType = "typing"
	EventStopTyping  EventType = "stop_typing"

	// server -> client
	EventNewMessage     EventType = "new_message"
	EventUserTyping     EventType = "user_typing"
	EventUserStopTyping EventType = "user_stop_typing"
	EventConnected      EventType = "connected"
	EventHeartbeat      EventType = "heartbeat"
)

// Frame is the envelope of every real-time channel payload.
type Frame struct {
	Event EventType       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Event is a server-to-client notification queued for a connection.
type Event struct {
	Type EventType `json:"event"`
	Data any       `json:"data,omitempty"`
}

// TypingPayload is the client payload of typing and stop_typing.
type TypingPayload struct {
	ConversationID string          `json:"conversationId"`
	Party          json.RawMessage `json:"party"`
}

// RoomPayload is the client payload of join_room and leave_room.
type RoomPayload struct {
	ConversationID string `json:"conversationId"`
}

// HeartbeatEvent keeps idle streams alive.
type HeartbeatEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

// MessageCreatedEvent is recorded in the event log after a message is persisted.
type MessageCreatedEvent struct {
	Message      Message `json:"message"`
	Transport    string  `json:"transport"`
	SummaryStale bool    `json:"summaryStale,omitempty"`
}

// MessagesReadEvent is recorded in the event log after read marking.
type MessagesReadEvent struct {
	ConversationID string    `json:"conversationId"`
	ReaderRole     Role      `json:"readerRole"`
	ModifiedCount  int64     `json:"modifiedCount"`
	At             time.Time `json:"at"`
}
