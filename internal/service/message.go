package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/support-chat/internal/model"
	"github.com/capitalize-ai/support-chat/internal/store"
	"github.com/capitalize-ai/support-chat/pkg/logger"
	"github.com/capitalize-ai/support-chat/pkg/metrics"
)

// EventPublisher records chat events in a durable log.
type EventPublisher interface {
	PublishMessageCreated(ctx context.Context, event *model.MessageCreatedEvent) error
	PublishMessagesRead(ctx context.Context, event *model.MessagesReadEvent) error
}

type nopPublisher struct{}

func (nopPublisher) PublishMessageCreated(context.Context, *model.MessageCreatedEvent) error {
	return nil
}

func (nopPublisher) PublishMessagesRead(context.Context, *model.MessagesReadEvent) error {
	return nil
}

// MessageService handles message history and read state.
type MessageService struct {
	store               store.MessageStore
	conversationService *ConversationService
	events              EventPublisher
	logger              *logger.Logger
}

// NewMessageService creates a new message service. events may be nil.
func NewMessageService(
	st store.MessageStore,
	conversationService *ConversationService,
	events EventPublisher,
	log *logger.Logger,
) *MessageService {
	if events == nil {
		events = nopPublisher{}
	}
	return &MessageService{
		store:               st,
		conversationService: conversationService,
		events:              events,
		logger:              log,
	}
}

// List returns the full message log of a conversation, oldest first.
func (s *MessageService) List(ctx context.Context, conversationID string) ([]model.Message, error) {
	if _, err := s.conversationService.lookup(ctx, conversationID); err != nil {
		return nil, err
	}

	messages, err := s.store.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []model.Message{}
	}
	return messages, nil
}

// MarkRead marks every unread message written by the reader's counterpart as
// read and returns how many changed. Calling it again with nothing unread
// returns zero.
func (s *MessageService) MarkRead(ctx context.Context, conversationID string, readerRole model.Role) (int64, error) {
	ctx, span := tracer.Start(ctx, "MessageService.MarkRead")
	defer span.End()

	if conversationID == "" || readerRole == "" {
		return 0, model.Validationf("conversation ID and reader role are required")
	}
	if !readerRole.Valid() {
		return 0, model.Validationf(`reader role must be either "user" or "agent"`)
	}
	if _, err := s.conversationService.lookup(ctx, conversationID); err != nil {
		return 0, err
	}

	n, err := s.store.MarkRead(ctx, conversationID, readerRole.Opposite())
	if err != nil {
		return 0, err
	}
	metrics.MessagesMarkedRead.Add(float64(n))

	if n > 0 {
		event := &model.MessagesReadEvent{
			ConversationID: conversationID,
			ReaderRole:     readerRole,
			ModifiedCount:  n,
			At:             time.Now().UTC(),
		}
		if err := s.events.PublishMessagesRead(ctx, event); err != nil {
			metrics.EventLogPublishFailures.WithLabelValues("messages.read").Inc()
			s.logger.Warn("failed to record read event",
				zap.String("conversation_id", conversationID),
				zap.Error(err),
			)
		}
	}
	return n, nil
}

// append is the single write path for message creation. It has no side
// effects beyond the message log.
func (s *MessageService) append(ctx context.Context, msg model.NewMessage) (*model.Message, error) {
	return s.store.AppendMessage(ctx, msg)
}
