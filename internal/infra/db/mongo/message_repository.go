package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainconv "vinci/internal/domain/conversation"
)

const messagesCollection = "messages"

type MessageRepository struct {
	col *mongo.Collection
}

func NewMessageRepository(db *mongo.Database) *MessageRepository {
	return &MessageRepository{col: db.Collection(messagesCollection)}
}

type messageDocument struct {
	ID             string         `bson:"_id"`
	ConversationID string         `bson:"conversation_id"`
	SenderID       string         `bson:"sender_id"`
	Text           string         `bson:"text"`
	ReadBy         []string       `bson:"read_by"`
	IsSystem       bool           `bson:"is_system,omitempty"`
	Meta           map[string]any `bson:"meta,omitempty"`
	CreatedAt      int64          `bson:"created_at"`
}

func newMessageDocument(m *domainconv.Message) messageDocument {
	return messageDocument{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Text:           m.Text,
		ReadBy:         append([]string{}, m.ReadBy...),
		IsSystem:       m.IsSystem,
		Meta:           m.Meta,
		CreatedAt:      timeToMillis(m.CreatedAt),
	}
}

func (d messageDocument) toEntity() *domainconv.Message {
	return &domainconv.Message{
		ID:             d.ID,
		ConversationID: d.ConversationID,
		SenderID:       d.SenderID,
		Text:           d.Text,
		ReadBy:         append([]string(nil), d.ReadBy...),
		IsSystem:       d.IsSystem,
		Meta:           d.Meta,
		CreatedAt:      millisToTime(d.CreatedAt),
	}
}

func (r *MessageRepository) Append(ctx context.Context, msg *domainconv.Message) error {
	_, err := r.col.InsertOne(ctx, newMessageDocument(msg))
	return err
}

// List pages from the end: the newest page is fetched descending and reversed
// so callers always receive oldest-first order.
func (r *MessageRepository) List(ctx context.Context, conversationID string, limit int, before time.Time) ([]*domainconv.Message, error) {
	filter := bson.M{"conversation_id": conversationID}
	if !before.IsZero() {
		filter["created_at"] = bson.M{"$lt": timeToMillis(before)}
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}
	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	page := make([]*domainconv.Message, 0)
	for cursor.Next(ctx) {
		var doc messageDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		page = append(page, doc.toEntity())
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
		page[i], page[j] = page[j], page[i]
	}
	return page, nil
}

func (r *MessageRepository) MarkReadAll(ctx context.Context, conversationID, readerID string) error {
	_, err := r.col.UpdateMany(ctx,
		bson.M{"conversation_id": conversationID, "read_by": bson.M{"$ne": readerID}},
		bson.M{"$addToSet": bson.M{"read_by": readerID}},
	)
	return err
}

var _ domainconv.MessageRepository = (*MessageRepository)(nil)
