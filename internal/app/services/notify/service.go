package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	domainnotif "vinci/internal/domain/notification"
	"vinci/internal/domain/shared/fault"
	"vinci/internal/infra/realtime"
)

// Counts carries the two independently computed values over a ledger:
// Unread counts sticky read=false records, Badge counts records newer than
// the last-opened watermark.
type Counts struct {
	Unread int `json:"unread_count"`
	Badge  int `json:"badge_count"`
}

// Overview is the ledger plus its derived counts, computed at read time.
type Overview struct {
	Records []domainnotif.Record
	Counts  Counts
}

// Service owns the per-recipient notification ledger: appends from producers
// (this engine's match events, external likes/comments), read/acknowledge
// actions, and the counter push over realtime fan-out.
type Service struct {
	Ledgers domainnotif.Repository
	Fanout  realtime.Publisher
	Logger  *slog.Logger

	Now func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// List returns the ledger newest-first with both counts.
func (s *Service) List(ctx context.Context, userID string) (*Overview, error) {
	ledger, err := s.Ledgers.Ledger(ctx, userID)
	if err != nil {
		return nil, err
	}
	records := make([]domainnotif.Record, len(ledger.Records))
	for i, rec := range ledger.Records {
		records[len(records)-1-i] = rec
	}
	return &Overview{
		Records: records,
		Counts:  Counts{Unread: ledger.UnreadCount(), Badge: ledger.BadgeCount()},
	}, nil
}

// Push appends a record to the recipient's ledger and republishes the counts.
func (s *Service) Push(ctx context.Context, userID, notifType, message string) (*domainnotif.Record, error) {
	rec := domainnotif.Record{
		ID:        uuid.NewString(),
		Type:      notifType,
		Message:   message,
		CreatedAt: s.now(),
	}
	if err := s.Ledgers.Append(ctx, userID, rec); err != nil {
		return nil, err
	}
	s.publishCounts(ctx, userID)
	return &rec, nil
}

// MarkRead sets the sticky read flag on one record.
func (s *Service) MarkRead(ctx context.Context, userID, recordID string) error {
	if err := s.Ledgers.MarkRead(ctx, userID, recordID); err != nil {
		if errors.Is(err, domainnotif.ErrRecordNotFound) {
			return fault.NotFound("notification not found")
		}
		return err
	}
	s.publishCounts(ctx, userID)
	return nil
}

// MarkAllRead flags the whole ledger read.
func (s *Service) MarkAllRead(ctx context.Context, userID string) error {
	if err := s.Ledgers.MarkAllRead(ctx, userID); err != nil {
		return err
	}
	s.publishCounts(ctx, userID)
	return nil
}

// Acknowledge advances the last-opened watermark, zeroing the badge count
// without touching per-record read flags.
func (s *Service) Acknowledge(ctx context.Context, userID string) error {
	if err := s.Ledgers.Acknowledge(ctx, userID, s.now()); err != nil {
		return err
	}
	s.publishCounts(ctx, userID)
	return nil
}

// publishCounts recomputes and fans out the counter whenever the underlying
// set changes. Failures here never fail the mutation.
func (s *Service) publishCounts(ctx context.Context, userID string) {
	if s.Fanout == nil {
		return
	}
	ledger, err := s.Ledgers.Ledger(ctx, userID)
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warn("notification count reload failed", "error", err, "user_id", userID)
		}
		return
	}
	s.Fanout.Publish(ctx, realtime.UserChannel(userID), realtime.Event{
		Type:    realtime.EventNotificationCount,
		Payload: Counts{Unread: ledger.UnreadCount(), Badge: ledger.BadgeCount()},
		At:      s.now(),
	})
}
