// Package service provides business logic for the support chat service.
package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/capitalize-ai/support-chat/internal/identity"
	"github.com/capitalize-ai/support-chat/internal/model"
	"github.com/capitalize-ai/support-chat/internal/store"
	"github.com/capitalize-ai/support-chat/pkg/logger"
	"github.com/capitalize-ai/support-chat/pkg/metrics"
	"github.com/capitalize-ai/support-chat/pkg/tracing"
)

var tracer = tracing.Tracer("github.com/capitalize-ai/support-chat/internal/service")

// ConversationService handles conversation operations.
type ConversationService struct {
	store    store.ConversationStore
	resolver *identity.Resolver
	logger   *logger.Logger
}

// NewConversationService creates a new conversation service.
func NewConversationService(st store.ConversationStore, resolver *identity.Resolver, log *logger.Logger) *ConversationService {
	return &ConversationService{
		store:    st,
		resolver: resolver,
		logger:   log,
	}
}

// ListByUser returns the user's conversations with agent summaries attached,
// most recently active first.
func (s *ConversationService) ListByUser(ctx context.Context, userID string, status model.ConversationStatus) ([]model.Conversation, error) {
	if !model.ValidID(userID) {
		return nil, model.Validationf("invalid user ID")
	}
	return s.list(ctx, model.ConversationFilter{UserID: userID, Status: status}, model.RoleAgent)
}

// ListByAgent returns the agent's conversations with user summaries attached,
// most recently active first.
func (s *ConversationService) ListByAgent(ctx context.Context, agentID string, status model.ConversationStatus) ([]model.Conversation, error) {
	if !model.ValidID(agentID) {
		return nil, model.Validationf("invalid agent ID")
	}
	return s.list(ctx, model.ConversationFilter{AgentID: agentID, Status: status}, model.RoleUser)
}

func (s *ConversationService) list(ctx context.Context, filter model.ConversationFilter, counterpart model.Role) ([]model.Conversation, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, model.Validationf("unknown status %q", filter.Status)
	}

	convs, err := s.store.ListConversations(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(convs) == 0 {
		return []model.Conversation{}, nil
	}

	ids := make([]string, 0, len(convs))
	for i := range convs {
		ids = append(ids, convs[i].ParticipantFor(counterpart))
	}
	summaries, err := s.resolver.Summaries(ctx, ids...)
	if err != nil {
		return nil, err
	}

	for i := range convs {
		p := summaries[convs[i].ParticipantFor(counterpart)]
		if counterpart == model.RoleAgent {
			convs[i].Agent = p
		} else {
			convs[i].User = p
		}
	}
	return convs, nil
}

// FindOrCreate returns the conversation between userID and agentID, creating
// it on first contact. Both parties must exist with the matching role.
func (s *ConversationService) FindOrCreate(ctx context.Context, userID, agentID string) (*model.Conversation, bool, error) {
	ctx, span := tracer.Start(ctx, "ConversationService.FindOrCreate")
	defer span.End()

	if !model.ValidID(userID) || !model.ValidID(agentID) {
		return nil, false, model.InvalidIdentifierf("invalid user or agent ID")
	}
	if err := s.resolver.Resolve(ctx, userID, model.RoleUser); err != nil {
		return nil, false, err
	}
	if err := s.resolver.Resolve(ctx, agentID, model.RoleAgent); err != nil {
		return nil, false, err
	}

	conv, created, err := s.store.FindOrCreateConversation(ctx, userID, agentID)
	if err != nil {
		return nil, false, err
	}
	span.SetAttributes(
		attribute.String("conversation.id", conv.ID),
		attribute.Bool("conversation.created", created),
	)

	if err := s.annotate(ctx, conv); err != nil {
		return nil, false, err
	}

	if created {
		metrics.ConversationsCreated.Inc()
		s.logger.Info("conversation created",
			zap.String("conversation_id", conv.ID),
			zap.String("user_id", userID),
			zap.String("agent_id", agentID),
		)
	}
	return conv, created, nil
}

// Get returns a conversation with both party summaries attached.
func (s *ConversationService) Get(ctx context.Context, conversationID string) (*model.Conversation, error) {
	conv, err := s.lookup(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if err := s.annotate(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// SetStatus moves a conversation to status. Conversations are never deleted.
func (s *ConversationService) SetStatus(ctx context.Context, conversationID string, status model.ConversationStatus) (*model.Conversation, error) {
	if !status.Valid() {
		return nil, model.Validationf("unknown status %q", status)
	}
	if !model.ValidID(conversationID) {
		return nil, model.InvalidIdentifierf("invalid conversation ID")
	}

	conv, err := s.store.SetConversationStatus(ctx, conversationID, status)
	if err != nil {
		return nil, err
	}
	if err := s.annotate(ctx, conv); err != nil {
		return nil, err
	}

	s.logger.Info("conversation status changed",
		zap.String("conversation_id", conversationID),
		zap.String("status", string(status)),
	)
	return conv, nil
}

// lookup fetches the bare conversation record.
func (s *ConversationService) lookup(ctx context.Context, conversationID string) (*model.Conversation, error) {
	if !model.ValidID(conversationID) {
		return nil, model.InvalidIdentifierf("invalid conversation ID")
	}
	return s.store.GetConversation(ctx, conversationID)
}

func (s *ConversationService) annotate(ctx context.Context, conv *model.Conversation) error {
	summaries, err := s.resolver.Summaries(ctx, conv.UserID, conv.AgentID)
	if err != nil {
		return err
	}
	conv.User = summaries[conv.UserID]
	conv.Agent = summaries[conv.AgentID]
	return nil
}

// recordNewMessage keeps the conversation summary in line with the message
// log. Only the coordinator calls it.
func (s *ConversationService) recordNewMessage(ctx context.Context, conversationID, text string, at time.Time) error {
	return s.store.SetLastMessage(ctx, conversationID, text, at)
}
