package memory

import (
	"context"
	"sync"
	"time"

	domainnotif "vinci/internal/domain/notification"
)

// NotificationRepository holds one ledger per recipient.
type NotificationRepository struct {
	mu      sync.RWMutex
	ledgers map[string]*domainnotif.Ledger
}

func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{ledgers: make(map[string]*domainnotif.Ledger)}
}

func (r *NotificationRepository) ledger(userID string) *domainnotif.Ledger {
	l, ok := r.ledgers[userID]
	if !ok {
		l = &domainnotif.Ledger{UserID: userID}
		r.ledgers[userID] = l
	}
	return l
}

func (r *NotificationRepository) Ledger(ctx context.Context, userID string) (*domainnotif.Ledger, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.ledgers[userID]
	if !ok {
		return &domainnotif.Ledger{UserID: userID}, nil
	}
	out := &domainnotif.Ledger{
		UserID:       l.UserID,
		Records:      append([]domainnotif.Record(nil), l.Records...),
		LastOpenedAt: l.LastOpenedAt,
	}
	return out, nil
}

func (r *NotificationRepository) Append(ctx context.Context, userID string, rec domainnotif.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l := r.ledger(userID)
	l.Records = append(l.Records, rec)
	return nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, userID, recordID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.ledgers[userID]
	if !ok {
		return domainnotif.ErrRecordNotFound
	}
	for i := range l.Records {
		if l.Records[i].ID == recordID {
			l.Records[i].Read = true
			return nil
		}
	}
	return domainnotif.ErrRecordNotFound
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l := r.ledger(userID)
	for i := range l.Records {
		l.Records[i].Read = true
	}
	return nil
}

func (r *NotificationRepository) Acknowledge(ctx context.Context, userID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l := r.ledger(userID)
	// watermark only moves forward
	if at.After(l.LastOpenedAt) {
		l.LastOpenedAt = at
	}
	return nil
}

var _ domainnotif.Repository = (*NotificationRepository)(nil)
