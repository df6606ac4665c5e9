package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/capitalize-ai/support-chat/internal/model"
)

const (
	// StreamName is the JetStream stream holding chat events.
	StreamName = "SUPPORT_CHAT"

	// SubjectPrefix is the prefix for all chat event subjects.
	SubjectPrefix = "chat"
)

// Event names, used as the last subject token.
const (
	EventMessageCreated = "message.created"
	EventMessagesRead   = "messages.read"
)

// EventLog appends chat events to a JetStream stream. It is an audit trail
// and a feed for downstream consumers; the database stays authoritative.
type EventLog struct {
	client *Client
}

// NewEventLog creates an event log on top of client.
func NewEventLog(client *Client) *EventLog {
	return &EventLog{client: client}
}

// EnsureStream creates the chat stream when it does not exist yet.
func (l *EventLog) EnsureStream(ctx context.Context) error {
	js := l.client.JetStream()

	if _, err := js.Stream(ctx, StreamName); err == nil {
		return nil
	}

	_, err := js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      90 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Duplicates:  2 * time.Minute,
		Description: "Support chat message and read-receipt events",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// Subject returns the subject of event for a conversation.
func Subject(conversationID, event string) string {
	return fmt.Sprintf("%s.%s.%s", SubjectPrefix, conversationID, event)
}

// PublishMessageCreated records a persisted message. The message id doubles
// as the JetStream dedup id.
func (l *EventLog) PublishMessageCreated(ctx context.Context, event *model.MessageCreatedEvent) error {
	return l.publish(ctx, Subject(event.Message.ConversationID, EventMessageCreated), event, event.Message.ID)
}

// PublishMessagesRead records a read-marking batch.
func (l *EventLog) PublishMessagesRead(ctx context.Context, event *model.MessagesReadEvent) error {
	return l.publish(ctx, Subject(event.ConversationID, EventMessagesRead), event, "")
}

func (l *EventLog) publish(ctx context.Context, subject string, v any, msgID string) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := nats.NewMsg(subject)
	msg.Data = data
	var opts []jetstream.PublishOpt
	if msgID != "" {
		opts = append(opts, jetstream.WithMsgID(msgID))
	}

	if _, err := l.client.JetStream().PublishMsg(ctx, msg, opts...); err != nil {
		return fmt.Errorf("failed to publish %s: %w", subject, err)
	}
	return nil
}
