package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainnotif "vinci/internal/domain/notification"
)

const notificationsCollection = "notification_ledgers"

// NotificationRepository stores one ledger document per recipient; records are
// an embedded array so read flags and the watermark mutate with positional and
// $max operators instead of document round-trips.
type NotificationRepository struct {
	col *mongo.Collection
}

func NewNotificationRepository(db *mongo.Database) *NotificationRepository {
	return &NotificationRepository{col: db.Collection(notificationsCollection)}
}

type ledgerDocument struct {
	UserID       string           `bson:"_id"`
	Records      []recordDocument `bson:"records"`
	LastOpenedAt int64            `bson:"last_opened_at,omitempty"`
}

type recordDocument struct {
	ID        string `bson:"id"`
	Type      string `bson:"type"`
	Message   string `bson:"message"`
	Read      bool   `bson:"read"`
	CreatedAt int64  `bson:"created_at"`
}

func (d ledgerDocument) toEntity() *domainnotif.Ledger {
	ledger := &domainnotif.Ledger{
		UserID:       d.UserID,
		Records:      make([]domainnotif.Record, 0, len(d.Records)),
		LastOpenedAt: millisToTime(d.LastOpenedAt),
	}
	for _, rec := range d.Records {
		ledger.Records = append(ledger.Records, domainnotif.Record{
			ID:        rec.ID,
			Type:      rec.Type,
			Message:   rec.Message,
			Read:      rec.Read,
			CreatedAt: millisToTime(rec.CreatedAt),
		})
	}
	return ledger
}

func (r *NotificationRepository) Ledger(ctx context.Context, userID string) (*domainnotif.Ledger, error) {
	var doc ledgerDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return &domainnotif.Ledger{UserID: userID}, nil
		}
		return nil, err
	}
	return doc.toEntity(), nil
}

func (r *NotificationRepository) Append(ctx context.Context, userID string, rec domainnotif.Record) error {
	update := bson.M{
		"$push": bson.M{"records": recordDocument{
			ID:        rec.ID,
			Type:      rec.Type,
			Message:   rec.Message,
			Read:      rec.Read,
			CreatedAt: timeToMillis(rec.CreatedAt),
		}},
	}
	opts := options.Update().SetUpsert(true)
	_, err := r.col.UpdateOne(ctx, bson.M{"_id": userID}, update, opts)
	return err
}

func (r *NotificationRepository) MarkRead(ctx context.Context, userID, recordID string) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": userID, "records.id": recordID},
		bson.M{"$set": bson.M{"records.$.read": true}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domainnotif.ErrRecordNotFound
	}
	return nil
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) error {
	// $[] fails on an absent or empty array, so the filter skips ledgers with
	// nothing to mark instead of absorbing the error afterwards.
	_, err := r.col.UpdateOne(ctx,
		bson.M{"_id": userID, "records.0": bson.M{"$exists": true}},
		bson.M{"$set": bson.M{"records.$[].read": true}},
	)
	return err
}

func (r *NotificationRepository) Acknowledge(ctx context.Context, userID string, at time.Time) error {
	update := bson.M{
		"$max":         bson.M{"last_opened_at": timeToMillis(at)},
		"$setOnInsert": bson.M{"records": []recordDocument{}},
	}
	opts := options.Update().SetUpsert(true)
	_, err := r.col.UpdateOne(ctx, bson.M{"_id": userID}, update, opts)
	return err
}

var _ domainnotif.Repository = (*NotificationRepository)(nil)
