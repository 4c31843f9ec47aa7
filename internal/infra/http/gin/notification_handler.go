package ginserver

import (
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"vinci/internal/app/dto"
	"vinci/internal/app/services/notify"
)

// NotificationHTTP exposes the notification ledger endpoints.
type NotificationHTTP interface {
	List(c *gin.Context)
	MarkRead(c *gin.Context)
	MarkAllRead(c *gin.Context)
	Acknowledge(c *gin.Context)
}

type NotificationHandler struct {
	Notify *notify.Service
	Logger *slog.Logger
}

// List returns the caller's ledger newest-first with both derived counts.
func (h NotificationHandler) List(c *gin.Context) {
	p, ok := requireIdentity(c)
	if !ok {
		return
	}
	overview, err := h.Notify.List(c.Request.Context(), p.ID)
	if err != nil {
		respondFault(c, h.Logger, err, "list notifications", "user_id", p.ID)
		return
	}
	collection := dto.NotificationList{
		Items:       make([]dto.Notification, 0, len(overview.Records)),
		UnreadCount: overview.Counts.Unread,
		BadgeCount:  overview.Counts.Badge,
	}
	for _, rec := range overview.Records {
		collection.Items = append(collection.Items, dto.FromNotification(rec))
	}
	c.JSON(http.StatusOK, collection)
}

// MarkRead sets the sticky read flag on one record.
func (h NotificationHandler) MarkRead(c *gin.Context) {
	p, ok := requireIdentity(c)
	if !ok {
		return
	}
	recordID := strings.TrimSpace(c.Param("id"))
	if recordID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "notification id is required"})
		return
	}
	if err := h.Notify.MarkRead(c.Request.Context(), p.ID, recordID); err != nil {
		respondFault(c, h.Logger, err, "mark notification read", "user_id", p.ID, "notification_id", recordID)
		return
	}
	c.Status(http.StatusNoContent)
}

// MarkAllRead flags the caller's whole ledger read.
func (h NotificationHandler) MarkAllRead(c *gin.Context) {
	p, ok := requireIdentity(c)
	if !ok {
		return
	}
	if err := h.Notify.MarkAllRead(c.Request.Context(), p.ID); err != nil {
		respondFault(c, h.Logger, err, "mark all notifications read", "user_id", p.ID)
		return
	}
	c.Status(http.StatusNoContent)
}

// Acknowledge advances the last-opened watermark, zeroing the badge count.
func (h NotificationHandler) Acknowledge(c *gin.Context) {
	p, ok := requireIdentity(c)
	if !ok {
		return
	}
	if err := h.Notify.Acknowledge(c.Request.Context(), p.ID); err != nil {
		respondFault(c, h.Logger, err, "acknowledge notifications", "user_id", p.ID)
		return
	}
	c.Status(http.StatusNoContent)
}

var _ NotificationHTTP = (*NotificationHandler)(nil)
