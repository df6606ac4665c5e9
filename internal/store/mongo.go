package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/capitalize-ai/support-chat/internal/model"
)

const (
	partiesCollection       = "parties"
	conversationsCollection = "conversations"
	messagesCollection      = "messages"
)

// MongoStore handles MongoDB operations.
type MongoStore struct {
	client        *mongo.Client
	parties       *mongo.Collection
	conversations *mongo.Collection
	messages      *mongo.Collection
}

// NewMongoStore connects to MongoDB and ensures the indexes the store relies on.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	if database == "" {
		database = "support_chat"
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, model.Internal("failed to connect to mongo", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, model.Internal("failed to reach mongo", err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client:        client,
		parties:       db.Collection(partiesCollection),
		conversations: db.Collection(conversationsCollection),
		messages:      db.Collection(messagesCollection),
	}

	if err := s.ensureIndexes(ctx); err != nil {
		client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.conversations.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "agent_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "updated_at", Value: -1}}},
	})
	if err != nil {
		return model.Internal("failed to create conversation indexes", err)
	}

	_, err = s.messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: 1}, {Key: "_id", Value: 1}},
	})
	if err != nil {
		return model.Internal("failed to create message indexes", err)
	}

	_, err = s.parties.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "role", Value: 1}, {Key: "name", Value: 1}},
	})
	if err != nil {
		return model.Internal("failed to create party indexes", err)
	}
	return nil
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Ping checks the connection.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// PartyExists reports whether a party with id and role exists.
func (s *MongoStore) PartyExists(ctx context.Context, id string, role model.Role) (bool, error) {
	n, err := s.parties.CountDocuments(ctx, bson.M{"_id": id, "role": role}, options.Count().SetLimit(1))
	if err != nil {
		return false, model.Internal("failed to look up party", err)
	}
	return n > 0, nil
}

// GetParties returns the parties found among ids.
func (s *MongoStore) GetParties(ctx context.Context, ids []string) (map[string]*model.Party, error) {
	cur, err := s.parties.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, model.Internal("failed to load parties", err)
	}

	var found []model.Party
	if err := cur.All(ctx, &found); err != nil {
		return nil, model.Internal("failed to decode parties", err)
	}

	out := make(map[string]*model.Party, len(found))
	for i := range found {
		out[found[i].ID] = &found[i]
	}
	return out, nil
}

// ListParties returns all parties with role ordered by name.
func (s *MongoStore) ListParties(ctx context.Context, role model.Role) ([]model.Party, error) {
	cur, err := s.parties.Find(ctx, bson.M{"role": role}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, model.Internal("failed to list parties", err)
	}

	var out []model.Party
	if err := cur.All(ctx, &out); err != nil {
		return nil, model.Internal("failed to decode parties", err)
	}
	return out, nil
}

// UpsertParty creates or replaces a party.
func (s *MongoStore) UpsertParty(ctx context.Context, p *model.Party) error {
	_, err := s.parties.ReplaceOne(ctx, bson.M{"_id": p.ID}, p, options.Replace().SetUpsert(true))
	if err != nil {
		return model.Internal("failed to upsert party", err)
	}
	return nil
}

// FindOrCreateConversation upserts on the unique (user_id, agent_id) index.
// A duplicate-key error from a racing upsert means the other writer won, so
// the existing document is returned instead.
func (s *MongoStore) FindOrCreateConversation(ctx context.Context, userID, agentID string) (*model.Conversation, bool, error) {
	id := model.NewID()
	now := time.Now().UTC().Truncate(time.Millisecond)
	filter := bson.M{"user_id": userID, "agent_id": agentID}
	update := bson.M{"$setOnInsert": bson.M{
		"_id":          id,
		"last_message": nil,
		"status":       model.StatusActive,
		"created_at":   now,
		"updated_at":   now,
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var conv model.Conversation
	err := s.conversations.FindOneAndUpdate(ctx, filter, update, opts).Decode(&conv)
	if err == nil {
		return &conv, conv.ID == id, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return nil, false, model.Internal("failed to create conversation", err)
	}

	if err := s.conversations.FindOne(ctx, filter).Decode(&conv); err != nil {
		return nil, false, model.Internal("failed to load existing conversation", err)
	}
	return &conv, false, nil
}

// GetConversation returns a conversation by id.
func (s *MongoStore) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	var conv model.Conversation
	if err := s.conversations.FindOne(ctx, bson.M{"_id": id}).Decode(&conv); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.NotFoundf("conversation not found")
		}
		return nil, model.Internal("failed to load conversation", err)
	}
	return &conv, nil
}

// ListConversations returns matching conversations, most recently active first.
func (s *MongoStore) ListConversations(ctx context.Context, filter model.ConversationFilter) ([]model.Conversation, error) {
	q := bson.M{}
	if filter.UserID != "" {
		q["user_id"] = filter.UserID
	}
	if filter.AgentID != "" {
		q["agent_id"] = filter.AgentID
	}
	if filter.Status != "" {
		q["status"] = filter.Status
	}

	cur, err := s.conversations.Find(ctx, q, options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}, {Key: "_id", Value: -1}}))
	if err != nil {
		return nil, model.Internal("failed to list conversations", err)
	}

	var out []model.Conversation
	if err := cur.All(ctx, &out); err != nil {
		return nil, model.Internal("failed to decode conversations", err)
	}
	return out, nil
}

// SetLastMessage records the message summary unless a newer one is already set.
func (s *MongoStore) SetLastMessage(ctx context.Context, id, text string, at time.Time) error {
	filter := bson.M{
		"_id": id,
		"$or": bson.A{
			bson.M{"last_message": nil},
			bson.M{"last_message.timestamp": bson.M{"$lte": at}},
		},
	}
	res, err := s.conversations.UpdateOne(ctx, filter, bson.M{"$set": bson.M{
		"last_message": model.LastMessage{Text: text, Timestamp: at},
		"updated_at":   at,
	}})
	if err != nil {
		return model.Internal("failed to update conversation summary", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	n, err := s.conversations.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return model.Internal("failed to look up conversation", err)
	}
	if n == 0 {
		return model.NotFoundf("conversation not found")
	}
	return nil
}

// SetConversationStatus changes the soft status of a conversation.
func (s *MongoStore) SetConversationStatus(ctx context.Context, id string, status model.ConversationStatus) (*model.Conversation, error) {
	var conv model.Conversation
	err := s.conversations.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": status, "updated_at": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&conv)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.NotFoundf("conversation not found")
		}
		return nil, model.Internal("failed to update conversation status", err)
	}
	return &conv, nil
}

// AppendMessage inserts a message stamped with the write time.
func (s *MongoStore) AppendMessage(ctx context.Context, in model.NewMessage) (*model.Message, error) {
	if err := validateNewMessage(in); err != nil {
		return nil, err
	}

	msg := &model.Message{
		ID:             model.NewID(),
		ConversationID: in.ConversationID,
		SenderID:       in.SenderID,
		SenderRole:     in.SenderRole,
		Text:           in.Text,
		CreatedAt:      time.Now().UTC().Truncate(time.Millisecond),
	}
	if _, err := s.messages.InsertOne(ctx, msg); err != nil {
		return nil, model.Internal("failed to append message", err)
	}
	return msg, nil
}

// ListMessages returns the conversation log in write order. Object ids
// break created_at ties since they embed an increasing counter.
func (s *MongoStore) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	cur, err := s.messages.Find(ctx,
		bson.M{"conversation_id": conversationID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, model.Internal("failed to list messages", err)
	}

	out := []model.Message{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, model.Internal("failed to decode messages", err)
	}
	return out, nil
}

// MarkRead flips read on all unread messages written by authorRole.
func (s *MongoStore) MarkRead(ctx context.Context, conversationID string, authorRole model.Role) (int64, error) {
	res, err := s.messages.UpdateMany(ctx,
		bson.M{"conversation_id": conversationID, "sender_role": authorRole, "read": false},
		bson.M{"$set": bson.M{"read": true}},
	)
	if err != nil {
		return 0, model.Internal("failed to mark messages read", err)
	}
	return res.ModifiedCount, nil
}
