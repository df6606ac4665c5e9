package model

import (
	"time"
)

// Message is one immutable entry of a conversation log. Only Read changes after creation.
type Message struct {
	ID             string    `json:"id" bson:"_id"`
	ConversationID string    `json:"conversationId" bson:"conversation_id"`
	SenderID       string    `json:"senderId" bson:"sender_id"`
	SenderRole     Role      `json:"senderRole" bson:"sender_role"`
	Text           string    `json:"text" bson:"text"`
	Read           bool      `json:"read" bson:"read"`
	CreatedAt      time.Time `json:"createdAt" bson:"created_at"`
}

// NewMessage is the input for appending a message to a conversation log.
type NewMessage struct {
	ConversationID string
	SenderID       string
	SenderRole     Role
	Text           string
}

// SendMessageRequest is the request to send a message. Both transports use it.
type SendMessageRequest struct {
	ConversationID string `json:"conversationId"`
	SenderID       string `json:"senderId"`
	SenderRole     Role   `json:"senderRole"`
	Text           string `json:"text"`
}

// SendMessageResponse is the response after sending a message.
type SendMessageResponse struct {
	Message      *Message `json:"message"`
	SummaryStale bool     `json:"summaryStale"`
}

// ListMessagesResponse is the response for listing messages.
type ListMessagesResponse struct {
	Messages []Message `json:"messages"`
}

// MarkReadRequest is the request to mark the counterpart's messages read.
type MarkReadRequest struct {
	ConversationID string `json:"conversationId"`
	ReaderRole     Role   `json:"readerRole"`
}

// MarkReadResponse reports how many messages changed state.
type MarkReadResponse struct {
	ModifiedCount int64 `json:"modifiedCount"`
}

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Code    ErrorKind `json:"code"`
	Message string    `json:"error"`
}
