package dto

import (
	"time"

	domainnotif "vinci/internal/domain/notification"
)

// Notification is one ledger record.
type Notification struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

func FromNotification(rec domainnotif.Record) Notification {
	return Notification{
		ID:        rec.ID,
		Type:      rec.Type,
		Message:   rec.Message,
		Read:      rec.Read,
		CreatedAt: rec.CreatedAt,
	}
}

// NotificationList carries the ledger newest-first plus both derived counts.
type NotificationList struct {
	Items       []Notification `json:"items"`
	UnreadCount int            `json:"unread_count"`
	BadgeCount  int            `json:"badge_count"`
}
