package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/capitalize-ai/support-chat/internal/model"
)

type pairKey struct {
	userID  string
	agentID string
}

// MemoryStore keeps everything in process memory. A single mutex serializes
// writes, which gives the same guarantees as the unique indexes of the
// database backends.
type MemoryStore struct {
	mu            sync.RWMutex
	parties       map[string]*model.Party
	conversations map[string]*model.Conversation
	pairs         map[pairKey]string
	messages      map[string][]*model.Message
	lastWrite     time.Time
	now           func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		parties:       make(map[string]*model.Party),
		conversations: make(map[string]*model.Conversation),
		pairs:         make(map[pairKey]string),
		messages:      make(map[string][]*model.Message),
		now:           time.Now,
	}
}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}

// PartyExists reports whether a party with id and role exists.
func (s *MemoryStore) PartyExists(ctx context.Context, id string, role model.Role) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.parties[id]
	return ok && p.Role == role, nil
}

// GetParties returns the parties found among ids.
func (s *MemoryStore) GetParties(ctx context.Context, ids []string) (map[string]*model.Party, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*model.Party, len(ids))
	for _, id := range ids {
		if p, ok := s.parties[id]; ok {
			cp := *p
			out[id] = &cp
		}
	}
	return out, nil
}

// ListParties returns all parties with role ordered by name.
func (s *MemoryStore) ListParties(ctx context.Context, role model.Role) ([]model.Party, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Party
	for _, p := range s.parties {
		if p.Role == role {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// UpsertParty creates or replaces a party.
func (s *MemoryStore) UpsertParty(ctx context.Context, p *model.Party) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *p
	s.parties[p.ID] = &cp
	return nil
}

// FindOrCreateConversation returns the conversation for the pair, creating it when missing.
func (s *MemoryStore) FindOrCreateConversation(ctx context.Context, userID, agentID string) (*model.Conversation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{userID: userID, agentID: agentID}
	if id, ok := s.pairs[key]; ok {
		return copyConversation(s.conversations[id]), false, nil
	}

	now := s.tick()
	conv := &model.Conversation{
		ID:        model.NewID(),
		UserID:    userID,
		AgentID:   agentID,
		Status:    model.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.conversations[conv.ID] = conv
	s.pairs[key] = conv.ID

	return copyConversation(conv), true, nil
}

// GetConversation returns a conversation by id.
func (s *MemoryStore) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, model.NotFoundf("conversation not found")
	}
	return copyConversation(conv), nil
}

// ListConversations returns matching conversations, most recently active first.
func (s *MemoryStore) ListConversations(ctx context.Context, filter model.ConversationFilter) ([]model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Conversation
	for _, conv := range s.conversations {
		if filter.UserID != "" && conv.UserID != filter.UserID {
			continue
		}
		if filter.AgentID != "" && conv.AgentID != filter.AgentID {
			continue
		}
		if filter.Status != "" && conv.Status != filter.Status {
			continue
		}
		out = append(out, *copyConversation(conv))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// SetLastMessage records the message summary unless a newer one is already set.
func (s *MemoryStore) SetLastMessage(ctx context.Context, id, text string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return model.NotFoundf("conversation not found")
	}
	if conv.LastMessage != nil && at.Before(conv.LastMessage.Timestamp) {
		return nil
	}
	conv.LastMessage = &model.LastMessage{Text: text, Timestamp: at}
	conv.UpdatedAt = at
	return nil
}

// SetConversationStatus changes the soft status of a conversation.
func (s *MemoryStore) SetConversationStatus(ctx context.Context, id string, status model.ConversationStatus) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, model.NotFoundf("conversation not found")
	}
	conv.Status = status
	conv.UpdatedAt = s.tick()
	return copyConversation(conv), nil
}

// AppendMessage persists a message at the end of its conversation log.
func (s *MemoryStore) AppendMessage(ctx context.Context, in model.NewMessage) (*model.Message, error) {
	if err := validateNewMessage(in); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	msg := &model.Message{
		ID:             model.NewID(),
		ConversationID: in.ConversationID,
		SenderID:       in.SenderID,
		SenderRole:     in.SenderRole,
		Text:           in.Text,
		CreatedAt:      s.tick(),
	}
	s.messages[in.ConversationID] = append(s.messages[in.ConversationID], msg)

	cp := *msg
	return &cp, nil
}

// ListMessages returns the conversation log in write order.
func (s *MemoryStore) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.messages[conversationID]
	out := make([]model.Message, len(log))
	for i, m := range log {
		out[i] = *m
	}
	return out, nil
}

// MarkRead flips read on all unread messages written by authorRole.
func (s *MemoryStore) MarkRead(ctx context.Context, conversationID string, authorRole model.Role) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, m := range s.messages[conversationID] {
		if m.SenderRole == authorRole && !m.Read {
			m.Read = true
			n++
		}
	}
	return n, nil
}

// tick returns a timestamp strictly after the previous one. Caller holds mu.
func (s *MemoryStore) tick() time.Time {
	now := s.now().UTC().Truncate(time.Microsecond)
	if !now.After(s.lastWrite) {
		now = s.lastWrite.Add(time.Microsecond)
	}
	s.lastWrite = now
	return now
}

func copyConversation(c *model.Conversation) *model.Conversation {
	cp := *c
	if c.LastMessage != nil {
		lm := *c.LastMessage
		cp.LastMessage = &lm
	}
	return &cp
}
