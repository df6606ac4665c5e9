// Package model defines data structures for the support chat service.
package model

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role is the role a party plays in a conversation.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Valid reports whether r is one of the two conversation roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAgent
}

// Opposite returns the counterpart role.
func (r Role) Opposite() Role {
	if r == RoleUser {
		return RoleAgent
	}
	return RoleUser
}

// Party is a user or agent known to the identity directory.
type Party struct {
	ID    string `json:"id" bson:"_id"`
	Role  Role   `json:"role" bson:"role"`
	Name  string `json:"name" bson:"name"`
	Email string `json:"email" bson:"email"`
}

// Summary returns the minimal profile attached to conversations.
func (p *Party) Summary() *PartySummary {
	return &PartySummary{ID: p.ID, Name: p.Name, Email: p.Email}
}

// PartySummary is the minimal profile of a conversation participant.
type PartySummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// NewID returns a fresh identifier.
func NewID() string {
	return primitive.NewObjectID().Hex()
}

// ValidID reports whether id has the shape of an identifier.
func ValidID(id string) bool {
	return primitive.IsValidObjectID(id)
}

// ListAgentsResponse is the response for the agent directory.
type ListAgentsResponse struct {
	Agents []PartySummary `json:"agents"`
}
