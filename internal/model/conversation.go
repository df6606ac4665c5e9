package model

import (
	"time"
)

// ConversationStatus is the soft lifecycle state of a conversation.
type ConversationStatus string

const (
	StatusActive   ConversationStatus = "active"
	StatusArchived ConversationStatus = "archived"
)

// Valid reports whether s is a known status.
func (s ConversationStatus) Valid() bool {
	return s == StatusActive || s == StatusArchived
}

// LastMessage is the denormalized summary of the newest message.
type LastMessage struct {
	Text      string    `json:"text" bson:"text"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// Conversation is the unique pairing of one user and one agent.
type Conversation struct {
	ID          string             `json:"id" bson:"_id"`
	UserID      string             `json:"userId" bson:"user_id"`
	AgentID     string             `json:"agentId" bson:"agent_id"`
	LastMessage *LastMessage       `json:"lastMessage" bson:"last_message"`
	Status      ConversationStatus `json:"status" bson:"status"`
	CreatedAt   time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt   time.Time          `json:"updatedAt" bson:"updated_at"`

	// Populated on read, never persisted.
	User  *PartySummary `json:"user,omitempty" bson:"-"`
	Agent *PartySummary `json:"agent,omitempty" bson:"-"`
}

// ParticipantFor returns the participant id holding role.
func (c *Conversation) ParticipantFor(role Role) string {
	if role == RoleAgent {
		return c.AgentID
	}
	return c.UserID
}

// ConversationFilter narrows conversation listings.
type ConversationFilter struct {
	UserID  string
	AgentID string
	Status  ConversationStatus
}

// CreateConversationRequest is the request to find or create a conversation.
type CreateConversationRequest struct {
	UserID  string `json:"userId"`
	AgentID string `json:"agentId"`
}

// UpdateStatusRequest is the request to change a conversation status.
type UpdateStatusRequest struct {
	Status ConversationStatus `json:"status"`
}

// ConversationResponse wraps a single conversation.
type ConversationResponse struct {
	*Conversation
	Created bool `json:"created"`
}

// ListConversationsResponse is the response for listing conversations.
type ListConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
	Total         int            `json:"total"`
}
