package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainconv "vinci/internal/domain/conversation"
)

const conversationsCollection = "conversations"

type ConversationRepository struct {
	col *mongo.Collection
}

func NewConversationRepository(db *mongo.Database) *ConversationRepository {
	return &ConversationRepository{col: db.Collection(conversationsCollection)}
}

type conversationDocument struct {
	ID              string   `bson:"_id"`
	PairKey         string   `bson:"pair_key"`
	Participants    []string `bson:"participants"`
	Kind            string   `bson:"kind"`
	Status          string   `bson:"status"`
	OwnerID         string   `bson:"owner_id,omitempty"`
	RequesterID     string   `bson:"requester_id,omitempty"`
	PostID          string   `bson:"post_id,omitempty"`
	InterestID      string   `bson:"interest_id,omitempty"`
	RequestedBy     string   `bson:"requested_by,omitempty"`
	RequestMessage  string   `bson:"request_message,omitempty"`
	LastMessageText string   `bson:"last_message_text,omitempty"`
	LastSenderID    string   `bson:"last_sender_id,omitempty"`
	LastMessageAt   int64    `bson:"last_message_at,omitempty"`
	UnreadBy        []string `bson:"unread_by"`
	AcceptedAt      int64    `bson:"accepted_at,omitempty"`
	IgnoredAt       int64    `bson:"ignored_at,omitempty"`
	CreatedAt       int64    `bson:"created_at"`
	UpdatedAt       int64    `bson:"updated_at"`
}

func newConversationDocument(c *domainconv.Conversation) conversationDocument {
	return conversationDocument{
		ID:              c.ID,
		PairKey:         c.Key(),
		Participants:    append([]string(nil), c.Participants...),
		Kind:            string(c.Kind),
		Status:          string(c.Status),
		OwnerID:         c.OwnerID,
		RequesterID:     c.RequesterID,
		PostID:          c.PostID,
		InterestID:      c.InterestID,
		RequestedBy:     c.RequestedBy,
		RequestMessage:  c.RequestMessage,
		LastMessageText: c.LastMessageText,
		LastSenderID:    c.LastSenderID,
		LastMessageAt:   timeToMillis(c.LastMessageAt),
		UnreadBy:        append([]string{}, c.UnreadBy...),
		AcceptedAt:      timeToMillis(c.AcceptedAt),
		IgnoredAt:       timeToMillis(c.IgnoredAt),
		CreatedAt:       timeToMillis(c.CreatedAt),
		UpdatedAt:       timeToMillis(c.UpdatedAt),
	}
}

func (d conversationDocument) toEntity() *domainconv.Conversation {
	return &domainconv.Conversation{
		ID:              d.ID,
		Participants:    append([]string(nil), d.Participants...),
		Kind:            domainconv.Kind(d.Kind),
		Status:          domainconv.Status(d.Status),
		OwnerID:         d.OwnerID,
		RequesterID:     d.RequesterID,
		PostID:          d.PostID,
		InterestID:      d.InterestID,
		RequestedBy:     d.RequestedBy,
		RequestMessage:  d.RequestMessage,
		LastMessageText: d.LastMessageText,
		LastSenderID:    d.LastSenderID,
		LastMessageAt:   millisToTime(d.LastMessageAt),
		UnreadBy:        append([]string(nil), d.UnreadBy...),
		AcceptedAt:      millisToTime(d.AcceptedAt),
		IgnoredAt:       millisToTime(d.IgnoredAt),
		CreatedAt:       millisToTime(d.CreatedAt),
		UpdatedAt:       millisToTime(d.UpdatedAt),
	}
}

func timeToMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func millisToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func (r *ConversationRepository) ByID(ctx context.Context, id string) (*domainconv.Conversation, error) {
	var doc conversationDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainconv.ErrNotFound
		}
		return nil, err
	}
	return doc.toEntity(), nil
}

func (r *ConversationRepository) ByParticipants(ctx context.Context, a, b string) (*domainconv.Conversation, error) {
	var doc conversationDocument
	if err := r.col.FindOne(ctx, bson.M{"pair_key": domainconv.PairKey(a, b)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainconv.ErrNotFound
		}
		return nil, err
	}
	return doc.toEntity(), nil
}

func (r *ConversationRepository) ListForUser(ctx context.Context, userID string) ([]*domainconv.Conversation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	cursor, err := r.col.Find(ctx, bson.M{"participants": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	result := make([]*domainconv.Conversation, 0)
	for cursor.Next(ctx) {
		var doc conversationDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		result = append(result, doc.toEntity())
	}
	return result, cursor.Err()
}

func (r *ConversationRepository) Insert(ctx context.Context, conv *domainconv.Conversation) error {
	_, err := r.col.InsertOne(ctx, newConversationDocument(conv))
	if mongo.IsDuplicateKeyError(err) {
		return domainconv.ErrPairExists
	}
	return err
}

func (r *ConversationRepository) Reopen(ctx context.Context, id string, params domainconv.ReopenParams) (*domainconv.Conversation, error) {
	update := bson.M{
		"$set": bson.M{
			"kind":            string(domainconv.KindCollaboration),
			"status":          string(domainconv.StatusPending),
			"owner_id":        params.OwnerID,
			"requester_id":    params.RequesterID,
			"post_id":         params.PostID,
			"interest_id":     params.InterestID,
			"requested_by":    params.RequesterID,
			"request_message": params.RequestMessage,
			"updated_at":      timeToMillis(params.At),
		},
		"$addToSet": bson.M{"unread_by": params.OwnerID},
	}
	return r.findOneAndUpdate(ctx, id, update)
}

func (r *ConversationRepository) LinkInterest(ctx context.Context, id, interestID string) error {
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"interest_id": interestID}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domainconv.ErrNotFound
	}
	return nil
}

func (r *ConversationRepository) Accept(ctx context.Context, id, ownerID, counterpartID string, at time.Time) (*domainconv.Conversation, error) {
	update := bson.M{
		"$set": bson.M{
			"kind":         string(domainconv.KindCollaboration),
			"status":       string(domainconv.StatusActive),
			"owner_id":     ownerID,
			"requester_id": counterpartID,
			"accepted_at":  timeToMillis(at),
			"updated_at":   timeToMillis(at),
		},
	}
	return r.findOneAndUpdate(ctx, id, update)
}

func (r *ConversationRepository) Ignore(ctx context.Context, id string, at time.Time) (*domainconv.Conversation, error) {
	update := bson.M{
		"$set": bson.M{
			"status":     string(domainconv.StatusIgnored),
			"ignored_at": timeToMillis(at),
			"updated_at": timeToMillis(at),
			"unread_by":  []string{},
		},
	}
	return r.findOneAndUpdate(ctx, id, update)
}

func (r *ConversationRepository) SetPreview(ctx context.Context, id string, update domainconv.PreviewUpdate) error {
	unread := update.UnreadBy
	if unread == nil {
		unread = []string{}
	}
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"last_message_text": update.Text,
		"last_sender_id":    update.SenderID,
		"last_message_at":   timeToMillis(update.At),
		"updated_at":        timeToMillis(update.At),
		"unread_by":         unread,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domainconv.ErrNotFound
	}
	return nil
}

func (r *ConversationRepository) ClearUnread(ctx context.Context, id, userID string) error {
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$pull": bson.M{"unread_by": userID}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domainconv.ErrNotFound
	}
	return nil
}

func (r *ConversationRepository) findOneAndUpdate(ctx context.Context, id string, update bson.M) (*domainconv.Conversation, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc conversationDocument
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainconv.ErrNotFound
		}
		return nil, err
	}
	return doc.toEntity(), nil
}

var _ domainconv.Repository = (*ConversationRepository)(nil)
