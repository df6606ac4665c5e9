package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/capitalize-ai/support-chat/internal/model"
	"github.com/capitalize-ai/support-chat/pkg/logger"
	"github.com/capitalize-ai/support-chat/pkg/metrics"
)

// Transports that feed the coordinator.
const (
	TransportHTTP      = "http"
	TransportWebSocket = "websocket"
)

// Broadcaster fans a persisted message out to the live members of its room.
type Broadcaster interface {
	BroadcastMessage(conversationID string, msg *model.Message) int
}

// SendResult is the outcome of a successful send.
type SendResult struct {
	Message *model.Message
	// SummaryStale is set when the message is durable but the conversation
	// summary update failed.
	SummaryStale bool
	// Delivered is the number of live connections the message was queued for.
	Delivered int
}

// Coordinator is the only place where sending a message is defined. Every
// transport calls Send with the same input.
type Coordinator struct {
	conversations *ConversationService
	messages      *MessageService
	broadcaster   Broadcaster
	events        EventPublisher
	logger        *logger.Logger
	writeTimeout  time.Duration
}

// NewCoordinator wires the ingestion path. events may be nil.
func NewCoordinator(
	conversations *ConversationService,
	messages *MessageService,
	broadcaster Broadcaster,
	events EventPublisher,
	log *logger.Logger,
) *Coordinator {
	if events == nil {
		events = nopPublisher{}
	}
	return &Coordinator{
		conversations: conversations,
		messages:      messages,
		broadcaster:   broadcaster,
		events:        events,
		logger:        log,
		writeTimeout:  10 * time.Second,
	}
}

// Send validates, persists, summarizes and fans out one message.
//
// The append is authoritative. A summary failure after a successful append is
// logged and reported through SendResult.SummaryStale instead of an error.
// Store writes run on a context detached from the caller so a disconnecting
// sender never aborts a write that already started.
func (c *Coordinator) Send(ctx context.Context, transport string, req *model.SendMessageRequest) (*SendResult, error) {
	ctx, span := tracer.Start(ctx, "Coordinator.Send")
	defer span.End()
	span.SetAttributes(
		attribute.String("chat.transport", transport),
		attribute.String("chat.conversation_id", req.ConversationID),
		attribute.String("chat.sender_role", string(req.SenderRole)),
	)

	result, err := c.send(ctx, transport, req)
	if err != nil {
		metrics.MessagesRejected.WithLabelValues(string(model.KindOf(err)), transport).Inc()
		span.SetStatus(codes.Error, model.MessageOf(err))
		return nil, err
	}
	return result, nil
}

func (c *Coordinator) send(ctx context.Context, transport string, req *model.SendMessageRequest) (*SendResult, error) {
	if err := validateSend(req); err != nil {
		return nil, err
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.writeTimeout)
	defer cancel()

	conv, err := c.conversations.lookup(writeCtx, req.ConversationID)
	if err != nil {
		return nil, err
	}
	if conv.ParticipantFor(req.SenderRole) != req.SenderID {
		return nil, model.Validationf("sender is not the %s of this conversation", req.SenderRole)
	}

	msg, err := c.messages.append(writeCtx, model.NewMessage{
		ConversationID: req.ConversationID,
		SenderID:       req.SenderID,
		SenderRole:     req.SenderRole,
		Text:           req.Text,
	})
	if err != nil {
		return nil, err
	}
	metrics.MessagesTotal.WithLabelValues(string(msg.SenderRole), transport).Inc()

	log := c.logger.With(
		zap.String("conversation_id", msg.ConversationID),
		zap.String("message_id", msg.ID),
		zap.String("transport", transport),
	)

	result := &SendResult{Message: msg}
	if err := c.conversations.recordNewMessage(writeCtx, msg.ConversationID, msg.Text, msg.CreatedAt); err != nil {
		result.SummaryStale = true
		metrics.SummaryUpdateFailures.Inc()
		log.Error("message persisted but conversation summary update failed", zap.Error(err))
	}

	if c.broadcaster != nil {
		result.Delivered = c.broadcaster.BroadcastMessage(msg.ConversationID, msg)
	}

	event := &model.MessageCreatedEvent{
		Message:      *msg,
		Transport:    transport,
		SummaryStale: result.SummaryStale,
	}
	if err := c.events.PublishMessageCreated(writeCtx, event); err != nil {
		metrics.EventLogPublishFailures.WithLabelValues("message.created").Inc()
		log.Warn("failed to record message event", zap.Error(err))
	}

	log.Debug("message sent",
		zap.String("sender_role", string(msg.SenderRole)),
		zap.Int("delivered", result.Delivered),
	)
	return result, nil
}
