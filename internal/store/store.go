// Package store provides persistence for parties, conversations and messages.
package store

import (
	"context"
	"time"

	"github.com/capitalize-ai/support-chat/internal/model"
)

// PartyStore is the read side of the identity directory.
type PartyStore interface {
	// PartyExists reports whether a party with id and role exists.
	PartyExists(ctx context.Context, id string, role model.Role) (bool, error)
	// GetParties returns the parties found among ids, keyed by id.
	GetParties(ctx context.Context, ids []string) (map[string]*model.Party, error)
	// ListParties returns all parties with role ordered by name.
	ListParties(ctx context.Context, role model.Role) ([]model.Party, error)
	// UpsertParty creates or replaces a party record.
	UpsertParty(ctx context.Context, p *model.Party) error
}

// ConversationStore persists conversations. Implementations enforce the
// (user, agent) uniqueness themselves.
type ConversationStore interface {
	// FindOrCreateConversation atomically returns the conversation for the
	// pair, inserting it when missing. created reports whether this call inserted it.
	FindOrCreateConversation(ctx context.Context, userID, agentID string) (conv *model.Conversation, created bool, err error)
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	// ListConversations returns matches ordered by updated_at descending.
	ListConversations(ctx context.Context, filter model.ConversationFilter) ([]model.Conversation, error)
	// SetLastMessage records the message summary and bumps updated_at. A
	// summary older than the stored one is ignored.
	SetLastMessage(ctx context.Context, id, text string, at time.Time) error
	SetConversationStatus(ctx context.Context, id string, status model.ConversationStatus) (*model.Conversation, error)
}

// MessageStore persists the append-only message log.
type MessageStore interface {
	// AppendMessage persists msg, assigning its id and created_at.
	AppendMessage(ctx context.Context, msg model.NewMessage) (*model.Message, error)
	// ListMessages returns the log ascending by created_at, ties in insertion order.
	ListMessages(ctx context.Context, conversationID string) ([]model.Message, error)
	// MarkRead flips read on every unread message by authorRole in one batch.
	MarkRead(ctx context.Context, conversationID string, authorRole model.Role) (int64, error)
}

// Store bundles every persistence concern behind one connection.
type Store interface {
	PartyStore
	ConversationStore
	MessageStore

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Driver names accepted by Open.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Options configures Open.
type Options struct {
	Driver        string
	DatabaseURL   string
	MongoURI      string
	MongoDatabase string
}

// Open connects to the backend named by opts.Driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case DriverPostgres:
		pg, err := NewPostgresStore(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return pg, nil
	case DriverMongo:
		mg, err := NewMongoStore(ctx, opts.MongoURI, opts.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return mg, nil
	case DriverMemory, "":
		return NewMemoryStore(), nil
	default:
		return nil, model.Validationf("unknown store driver %q", opts.Driver)
	}
}

func validateNewMessage(msg model.NewMessage) error {
	switch {
	case msg.ConversationID == "":
		return model.Validationf("conversation id is required")
	case msg.SenderID == "":
		return model.Validationf("sender id is required")
	case msg.SenderRole == "":
		return model.Validationf("sender role is required")
	case msg.Text == "":
		return model.Validationf("text is required")
	}
	return nil
}
