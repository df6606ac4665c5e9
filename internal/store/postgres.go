package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/capitalize-ai/support-chat/internal/model"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS parties (
	id    TEXT PRIMARY KEY,
	role  TEXT NOT NULL CHECK (role IN ('user', 'agent')),
	name  TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS conversations (
	id                TEXT PRIMARY KEY,
	user_id           TEXT NOT NULL REFERENCES parties (id),
	agent_id          TEXT NOT NULL REFERENCES parties (id),
	last_message_text TEXT,
	last_message_at   TIMESTAMPTZ,
	status            TEXT NOT NULL DEFAULT 'active',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
	UNIQUE (user_id, agent_id)
);

CREATE INDEX IF NOT EXISTS conversations_status_updated_idx ON conversations (status, updated_at DESC);

CREATE TABLE IF NOT EXISTS messages (
	seq             BIGSERIAL PRIMARY KEY,
	id              TEXT UNIQUE NOT NULL,
	conversation_id TEXT NOT NULL REFERENCES conversations (id),
	sender_id       TEXT NOT NULL,
	sender_role     TEXT NOT NULL,
	text            TEXT NOT NULL,
	read            BOOLEAN NOT NULL DEFAULT false,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
);

CREATE INDEX IF NOT EXISTS messages_conversation_created_idx ON messages (conversation_id, created_at, seq);
`

const conversationColumns = `id, user_id, agent_id, last_message_text, last_message_at, status, created_at, updated_at`

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool and
// makes sure the schema exists.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, model.Internal("failed to create postgres pool", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, model.Internal("failed to reach postgres", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, model.Internal("failed to apply postgres schema", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close(ctx context.Context) error {
	s.pool.Close()
	return nil
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// PartyExists reports whether a party with id and role exists.
func (s *PostgresStore) PartyExists(ctx context.Context, id string, role model.Role) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM parties WHERE id = $1 AND role = $2)
	`, id, string(role)).Scan(&exists)
	if err != nil {
		return false, model.Internal("failed to look up party", err)
	}
	return exists, nil
}

// GetParties returns the parties found among ids.
func (s *PostgresStore) GetParties(ctx context.Context, ids []string) (map[string]*model.Party, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, role, name, email FROM parties WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, model.Internal("failed to load parties", err)
	}
	defer rows.Close()

	out := make(map[string]*model.Party, len(ids))
	for rows.Next() {
		p := &model.Party{}
		if err := rows.Scan(&p.ID, &p.Role, &p.Name, &p.Email); err != nil {
			return nil, model.Internal("failed to scan party", err)
		}
		out[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, model.Internal("failed to load parties", err)
	}
	return out, nil
}

// ListParties returns all parties with role ordered by name.
func (s *PostgresStore) ListParties(ctx context.Context, role model.Role) ([]model.Party, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, role, name, email FROM parties WHERE role = $1 ORDER BY name ASC
	`, string(role))
	if err != nil {
		return nil, model.Internal("failed to list parties", err)
	}
	defer rows.Close()

	var out []model.Party
	for rows.Next() {
		var p model.Party
		if err := rows.Scan(&p.ID, &p.Role, &p.Name, &p.Email); err != nil {
			return nil, model.Internal("failed to scan party", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, model.Internal("failed to list parties", err)
	}
	return out, nil
}

// UpsertParty creates or replaces a party.
func (s *PostgresStore) UpsertParty(ctx context.Context, p *model.Party) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO parties (id, role, name, email)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET role = EXCLUDED.role, name = EXCLUDED.name, email = EXCLUDED.email
	`, p.ID, string(p.Role), p.Name, p.Email)
	if err != nil {
		return model.Internal("failed to upsert party", err)
	}
	return nil
}

// FindOrCreateConversation inserts the pair unless the unique key already
// holds it, then reads back whichever row won.
func (s *PostgresStore) FindOrCreateConversation(ctx context.Context, userID, agentID string) (*model.Conversation, bool, error) {
	conv, err := scanConversation(s.pool.QueryRow(ctx, `
		INSERT INTO conversations (id, user_id, agent_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, agent_id) DO NOTHING
		RETURNING `+conversationColumns,
		model.NewID(), userID, agentID))
	if err == nil {
		return conv, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, model.Internal("failed to create conversation", err)
	}

	conv, err = scanConversation(s.pool.QueryRow(ctx, `
		SELECT `+conversationColumns+` FROM conversations WHERE user_id = $1 AND agent_id = $2
	`, userID, agentID))
	if err != nil {
		return nil, false, model.Internal("failed to load existing conversation", err)
	}
	return conv, false, nil
}

// GetConversation returns a conversation by id.
func (s *PostgresStore) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	conv, err := scanConversation(s.pool.QueryRow(ctx, `
		SELECT `+conversationColumns+` FROM conversations WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.NotFoundf("conversation not found")
		}
		return nil, model.Internal("failed to load conversation", err)
	}
	return conv, nil
}

// ListConversations returns matching conversations, most recently active first.
func (s *PostgresStore) ListConversations(ctx context.Context, filter model.ConversationFilter) ([]model.Conversation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+conversationColumns+` FROM conversations
		WHERE ($1 = '' OR user_id = $1)
		  AND ($2 = '' OR agent_id = $2)
		  AND ($3 = '' OR status = $3)
		ORDER BY updated_at DESC, id DESC
	`, filter.UserID, filter.AgentID, string(filter.Status))
	if err != nil {
		return nil, model.Internal("failed to list conversations", err)
	}
	defer rows.Close()

	var out []model.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, model.Internal("failed to scan conversation", err)
		}
		out = append(out, *conv)
	}
	if err := rows.Err(); err != nil {
		return nil, model.Internal("failed to list conversations", err)
	}
	return out, nil
}

// SetLastMessage records the message summary unless a newer one is already set.
func (s *PostgresStore) SetLastMessage(ctx context.Context, id, text string, at time.Time) error {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		WITH updated AS (
			UPDATE conversations
			SET last_message_text = $2, last_message_at = $3, updated_at = $3
			WHERE id = $1 AND (last_message_at IS NULL OR last_message_at <= $3)
			RETURNING id
		)
		SELECT EXISTS (SELECT 1 FROM updated) OR EXISTS (SELECT 1 FROM conversations WHERE id = $1)
	`, id, text, at).Scan(&exists)
	if err != nil {
		return model.Internal("failed to update conversation summary", err)
	}
	if !exists {
		return model.NotFoundf("conversation not found")
	}
	return nil
}

// SetConversationStatus changes the soft status of a conversation.
func (s *PostgresStore) SetConversationStatus(ctx context.Context, id string, status model.ConversationStatus) (*model.Conversation, error) {
	conv, err := scanConversation(s.pool.QueryRow(ctx, `
		UPDATE conversations SET status = $2, updated_at = clock_timestamp()
		WHERE id = $1
		RETURNING `+conversationColumns,
		id, string(status)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.NotFoundf("conversation not found")
		}
		return nil, model.Internal("failed to update conversation status", err)
	}
	return conv, nil
}

// AppendMessage inserts a message; created_at comes from the database clock.
func (s *PostgresStore) AppendMessage(ctx context.Context, in model.NewMessage) (*model.Message, error) {
	if err := validateNewMessage(in); err != nil {
		return nil, err
	}

	msg := &model.Message{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, sender_role, text)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, conversation_id, sender_id, sender_role, text, read, created_at
	`, model.NewID(), in.ConversationID, in.SenderID, string(in.SenderRole), in.Text).Scan(
		&msg.ID,
		&msg.ConversationID,
		&msg.SenderID,
		&msg.SenderRole,
		&msg.Text,
		&msg.Read,
		&msg.CreatedAt,
	)
	if err != nil {
		return nil, model.Internal("failed to append message", err)
	}
	return msg, nil
}

// ListMessages returns the conversation log in write order.
func (s *PostgresStore) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, conversation_id, sender_id, sender_role, text, read, created_at
		FROM messages WHERE conversation_id = $1
		ORDER BY created_at ASC, seq ASC
	`, conversationID)
	if err != nil {
		return nil, model.Internal("failed to list messages", err)
	}
	defer rows.Close()

	out := []model.Message{}
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.SenderRole, &m.Text, &m.Read, &m.CreatedAt); err != nil {
			return nil, model.Internal("failed to scan message", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, model.Internal("failed to list messages", err)
	}
	return out, nil
}

// MarkRead flips read on all unread messages written by authorRole.
func (s *PostgresStore) MarkRead(ctx context.Context, conversationID string, authorRole model.Role) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE messages SET read = true
		WHERE conversation_id = $1 AND sender_role = $2 AND read = false
	`, conversationID, string(authorRole))
	if err != nil {
		return 0, model.Internal("failed to mark messages read", err)
	}
	return tag.RowsAffected(), nil
}

func scanConversation(row pgx.Row) (*model.Conversation, error) {
	var (
		conv     model.Conversation
		lastText *string
		lastAt   *time.Time
	)
	if err := row.Scan(
		&conv.ID,
		&conv.UserID,
		&conv.AgentID,
		&lastText,
		&lastAt,
		&conv.Status,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if lastText != nil && lastAt != nil {
		conv.LastMessage = &model.LastMessage{Text: *lastText, Timestamp: *lastAt}
	}
	return &conv, nil
}
