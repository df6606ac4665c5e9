package service_test

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/gomega"

	"github.com/capitalize-ai/support-chat/internal/identity"
	"github.com/capitalize-ai/support-chat/internal/model"
	"github.com/capitalize-ai/support-chat/internal/service"
	"github.com/capitalize-ai/support-chat/internal/store"
	"github.com/capitalize-ai/support-chat/pkg/logger"
)

// brokenSummaries fails every summary update and delegates everything else.
type brokenSummaries struct {
	*store.MemoryStore
}

func (brokenSummaries) SetLastMessage(context.Context, string, string, time.Time) error {
	return errors.New("summary write refused")
}

type recordingBroadcaster struct {
	mu   sync.Mutex
	sent []*model.Message
}

func (b *recordingBroadcaster) BroadcastMessage(conversationID string, msg *model.Message) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, msg)
	return 1
}

func (b *recordingBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sent)
}

type recordingPublisher struct {
	mu      sync.Mutex
	created []*model.MessageCreatedEvent
	read    []*model.MessagesReadEvent
	fail    bool
}

func (p *recordingPublisher) PublishMessageCreated(ctx context.Context, event *model.MessageCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("event log unavailable")
	}
	p.created = append(p.created, event)
	return nil
}

func (p *recordingPublisher) PublishMessagesRead(ctx context.Context, event *model.MessagesReadEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("event log unavailable")
	}
	p.read = append(p.read, event)
	return nil
}

type fixture struct {
	store         *store.MemoryStore
	conversations *service.ConversationService
	messages      *service.MessageService
	coordinator   *service.Coordinator
	broadcaster   *recordingBroadcaster
	events        *recordingPublisher
	userID        string
	agentID       string
}

// newFixture wires the services over a memory store seeded with one user and
// one agent. wrap, when set, decorates the store seen by the conversation service.
func newFixture(wrap func(*store.MemoryStore) store.ConversationStore) *fixture {
	ctx := context.Background()
	f := &fixture{
		store:       store.NewMemoryStore(),
		broadcaster: &recordingBroadcaster{},
		events:      &recordingPublisher{},
		userID:      model.NewID(),
		agentID:     model.NewID(),
	}
	Expect(f.store.UpsertParty(ctx, &model.Party{ID: f.userID, Role: model.RoleUser, Name: "Ada", Email: "ada@example.com"})).To(Succeed())
	Expect(f.store.UpsertParty(ctx, &model.Party{ID: f.agentID, Role: model.RoleAgent, Name: "Zed", Email: "zed@example.com"})).To(Succeed())

	var convStore store.ConversationStore = f.store
	if wrap != nil {
		convStore = wrap(f.store)
	}
	log := logger.NewNop()
	resolver := identity.NewResolver(f.store)
	f.conversations = service.NewConversationService(convStore, resolver, log)
	f.messages = service.NewMessageService(f.store, f.conversations, f.events, log)
	f.coordinator = service.NewCoordinator(f.conversations, f.messages, f.broadcaster, f.events, log)
	return f
}

func (f *fixture) conversation() *model.Conversation {
	conv, _, err := f.conversations.FindOrCreate(context.Background(), f.userID, f.agentID)
	Expect(err).ToNot(HaveOccurred())
	return conv
}
