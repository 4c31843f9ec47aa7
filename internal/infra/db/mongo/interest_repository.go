package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domaininterest "vinci/internal/domain/interest"
)

const interestsCollection = "interests"

type InterestRepository struct {
	col *mongo.Collection
}

func NewInterestRepository(db *mongo.Database) *InterestRepository {
	return &InterestRepository{col: db.Collection(interestsCollection)}
}

type interestDocument struct {
	ID             string `bson:"_id"`
	PostID         string `bson:"post_id"`
	OwnerID        string `bson:"owner_id"`
	InterestedID   string `bson:"interested_id"`
	Status         string `bson:"status"`
	ConversationID string `bson:"conversation_id,omitempty"`
	CreatedAt      int64  `bson:"created_at"`
	UpdatedAt      int64  `bson:"updated_at"`
}

func (d interestDocument) toEntity() *domaininterest.Record {
	return &domaininterest.Record{
		ID:             d.ID,
		PostID:         d.PostID,
		OwnerID:        d.OwnerID,
		InterestedID:   d.InterestedID,
		Status:         domaininterest.Status(d.Status),
		ConversationID: d.ConversationID,
		CreatedAt:      millisToTime(d.CreatedAt),
		UpdatedAt:      millisToTime(d.UpdatedAt),
	}
}

func (r *InterestRepository) ByID(ctx context.Context, id string) (*domaininterest.Record, error) {
	var doc interestDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domaininterest.ErrNotFound
		}
		return nil, err
	}
	return doc.toEntity(), nil
}

func (r *InterestRepository) ByPostAndUser(ctx context.Context, postID, interestedID string) (*domaininterest.Record, error) {
	var doc interestDocument
	filter := bson.M{"post_id": postID, "interested_id": interestedID}
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domaininterest.ErrNotFound
		}
		return nil, err
	}
	return doc.toEntity(), nil
}

// UpsertPending creates the record or resets a rejected one back to pending.
// The status guard in the filter keeps an accepted record out of the match;
// the upsert then trips the unique (post, interested) index, and the fallback
// refreshes only the conversation pointer on the accepted record.
func (r *InterestRepository) UpsertPending(ctx context.Context, params domaininterest.UpsertParams) (*domaininterest.Record, error) {
	filter := bson.M{
		"post_id":       params.PostID,
		"interested_id": params.InterestedID,
		"status":        bson.M{"$ne": string(domaininterest.StatusAccepted)},
	}
	update := bson.M{
		"$set": bson.M{
			"status":          string(domaininterest.StatusPending),
			"owner_id":        params.OwnerID,
			"conversation_id": params.ConversationID,
			"updated_at":      timeToMillis(params.At),
		},
		"$setOnInsert": bson.M{
			"_id":           uuid.NewString(),
			"post_id":       params.PostID,
			"interested_id": params.InterestedID,
			"created_at":    timeToMillis(params.At),
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var doc interestDocument
	err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err == nil {
		return doc.toEntity(), nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return nil, err
	}
	// Accepted record already holds the pair; never downgrade it.
	touch := bson.M{"$set": bson.M{"conversation_id": params.ConversationID}}
	pair := bson.M{"post_id": params.PostID, "interested_id": params.InterestedID}
	if err := r.col.FindOneAndUpdate(ctx, pair, touch, options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc); err != nil {
		return nil, err
	}
	return doc.toEntity(), nil
}

func (r *InterestRepository) Accept(ctx context.Context, params domaininterest.UpsertParams) (*domaininterest.Record, error) {
	filter := bson.M{"post_id": params.PostID, "interested_id": params.InterestedID}
	update := bson.M{
		"$set": bson.M{
			"status":          string(domaininterest.StatusAccepted),
			"owner_id":        params.OwnerID,
			"conversation_id": params.ConversationID,
			"updated_at":      timeToMillis(params.At),
		},
		"$setOnInsert": bson.M{
			"_id":           uuid.NewString(),
			"post_id":       params.PostID,
			"interested_id": params.InterestedID,
			"created_at":    timeToMillis(params.At),
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var doc interestDocument
	if err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		return nil, err
	}
	return doc.toEntity(), nil
}

func (r *InterestRepository) Reject(ctx context.Context, id string, at time.Time) (*domaininterest.Record, error) {
	update := bson.M{"$set": bson.M{
		"status":     string(domaininterest.StatusRejected),
		"updated_at": timeToMillis(at),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc interestDocument
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domaininterest.ErrNotFound
		}
		return nil, err
	}
	return doc.toEntity(), nil
}

func (r *InterestRepository) ListByPost(ctx context.Context, postID string, status domaininterest.Status) ([]*domaininterest.Record, error) {
	cursor, err := r.col.Find(ctx, bson.M{"post_id": postID, "status": string(status)})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	result := make([]*domaininterest.Record, 0)
	for cursor.Next(ctx) {
		var doc interestDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		result = append(result, doc.toEntity())
	}
	return result, cursor.Err()
}

var _ domaininterest.Repository = (*InterestRepository)(nil)
