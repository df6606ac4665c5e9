// Package realtime implements conversation rooms and the live event channel.
package realtime

import (
	"sync"

	"go.uber.org/zap"

	"github.com/capitalize-ai/support-chat/internal/model"
	"github.com/capitalize-ai/support-chat/pkg/logger"
	"github.com/capitalize-ai/support-chat/pkg/metrics"
)

// Client is a live connection that can receive room events.
type Client interface {
	ID() string
	// Deliver queues ev without blocking and reports whether it was accepted.
	Deliver(ev model.Event) bool
}

// Hub maps conversation ids to the connections currently joined to them.
// A room exists while it has at least one member.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]Client
	joined map[string]map[string]struct{}
	logger *logger.Logger
}

// NewHub creates an empty room registry.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		rooms:  make(map[string]map[string]Client),
		joined: make(map[string]map[string]struct{}),
		logger: log,
	}
}

// Join adds c to the room of conversationID. Joining twice is harmless.
func (h *Hub) Join(c Client, conversationID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[conversationID]
	if !ok {
		room = make(map[string]Client)
		h.rooms[conversationID] = room
		metrics.RoomsActive.Inc()
	}
	room[c.ID()] = c

	rooms, ok := h.joined[c.ID()]
	if !ok {
		rooms = make(map[string]struct{})
		h.joined[c.ID()] = rooms
	}
	rooms[conversationID] = struct{}{}

	h.logger.Debug("joined room",
		zap.String("connection_id", c.ID()),
		zap.String("conversation_id", conversationID),
		zap.Int("members", len(room)),
	)
}

// Leave removes a connection from one room.
func (h *Hub) Leave(connectionID, conversationID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeLocked(connectionID, conversationID)
	if rooms, ok := h.joined[connectionID]; ok && len(rooms) == 0 {
		delete(h.joined, connectionID)
	}
}

// Disconnect removes a connection from every room it joined and returns those rooms.
func (h *Hub) Disconnect(connectionID string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	rooms := h.joined[connectionID]
	left := make([]string, 0, len(rooms))
	for conversationID := range rooms {
		h.removeLocked(connectionID, conversationID)
		left = append(left, conversationID)
	}
	delete(h.joined, connectionID)
	return left
}

func (h *Hub) removeLocked(connectionID, conversationID string) {
	if room, ok := h.rooms[conversationID]; ok {
		delete(room, connectionID)
		if len(room) == 0 {
			delete(h.rooms, conversationID)
			metrics.RoomsActive.Dec()
		}
	}
	if rooms, ok := h.joined[connectionID]; ok {
		delete(rooms, conversationID)
	}
}

// BroadcastMessage delivers a new_message event to every member of the room,
// the sender's own connections included. It returns the number of
// connections that accepted the event.
func (h *Hub) BroadcastMessage(conversationID string, msg *model.Message) int {
	return h.broadcast(conversationID, "", model.Event{Type: model.EventNewMessage, Data: msg})
}

// BroadcastPresence delivers a typing notice to every member of the room
// except the sending connection.
func (h *Hub) BroadcastPresence(conversationID, senderConnectionID string, event model.EventType, payload any) int {
	return h.broadcast(conversationID, senderConnectionID, model.Event{Type: event, Data: payload})
}

func (h *Hub) broadcast(conversationID, exclude string, ev model.Event) int {
	h.mu.RLock()
	room := h.rooms[conversationID]
	targets := make([]Client, 0, len(room))
	for id, c := range room {
		if id != exclude {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		if c.Deliver(ev) {
			delivered++
		}
	}

	dropped := len(targets) - delivered
	metrics.RecordDelivery(string(ev.Type), delivered, dropped)
	if dropped > 0 {
		h.logger.Warn("dropped room events",
			zap.String("conversation_id", conversationID),
			zap.String("event", string(ev.Type)),
			zap.Int("dropped", dropped),
		)
	}
	return delivered
}

// Members returns the number of connections in a room.
func (h *Hub) Members(conversationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[conversationID])
}

// RoomCount returns the number of non-empty rooms.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// RoomsOf returns the rooms a connection has joined.
func (h *Hub) RoomsOf(connectionID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]string, 0, len(h.joined[connectionID]))
	for id := range h.joined[connectionID] {
		out = append(out, id)
	}
	return out
}
