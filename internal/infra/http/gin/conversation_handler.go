package ginserver

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"

	"vinci/internal/app/dto"
	"vinci/internal/app/services/chat"
)

// ConversationHTTP exposes the conversation lifecycle endpoints.
type ConversationHTTP interface {
	List(c *gin.Context)
	StartDirect(c *gin.Context)
	RequestCollaboration(c *gin.Context)
	Accept(c *gin.Context)
	Ignore(c *gin.Context)
	SendMessage(c *gin.Context)
	ListMessages(c *gin.Context)
	MarkRead(c *gin.Context)
}

// ConversationHandler bridges HTTP with the lifecycle manager.
type ConversationHandler struct {
	Chat   *chat.Service
	Logger *slog.Logger
}

// List returns the caller's conversations, most recently active first.
func (h ConversationHandler) List(c *gin.Context) {
	p, ok := requireIdentity(c)
	if !ok {
		return
	}
	conversations, err := h.Chat.ListConversations(c.Request.Context(), p.ID)
	if err != nil {
		respondFault(c, h.Logger, err, "list conversations", "user_id", p.ID)
		return
	}
	collection := dto.ConversationList{Items: make([]dto.Conversation, 0, len(conversations))}
	for _, conv := range conversations {
		collection.Items = append(collection.Items, dto.FromConversation(conv, p.ID))
	}
	c.JSON(http.StatusOK, collection)
}

// StartDirect opens or returns the plain direct thread with another user.
func (h ConversationHandler) StartDirect(c *gin.Context) {
	p, ok := requireIdentity(c)
	if !ok {
		return
	}
	var req struct {
		UserID string `json:"user_id"`
		Text   string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	conv, err := h.Chat.StartDirect(c.Request.Context(), p.ID, strings.TrimSpace(req.UserID), strings.TrimSpace(req.Text))
	if err != nil {
		respondFault(c, h.Logger, err, "start direct conversation", "user_id", p.ID, "peer_id", req.UserID)
		return
	}
	c.JSON(http.StatusOK, dto.FromConversation(conv, p.ID))
}

// RequestCollaboration opens or reopens the requester/owner thread as pending.
func (h ConversationHandler) RequestCollaboration(c *gin.Context) {
	p, ok := requireIdentity(c)
	if !ok {
		return
	}
	var req struct {
		PostID  string `json:"post_id"`
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	req.PostID = strings.TrimSpace(req.PostID)
	if req.PostID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "post_id is required"})
		return
	}
	conv, err := h.Chat.RequestCollaboration(c.Request.Context(), chat.RequestCollaborationParams{
		RequesterID: p.ID,
		PostID:      req.PostID,
		Message:     strings.TrimSpace(req.Message),
	})
	if err != nil {
		respondFault(c, h.Logger, err, "request collaboration", "user_id", p.ID, "post_id", req.PostID)
		return
	}
	c.JSON(http.StatusCreated, dto.FromConversation(conv, p.ID))
}

// Accept approves a pending collaboration request.
func (h ConversationHandler) Accept(c *gin.Context) {
	p, ok := requireIdentity(c)
	if !ok {
		return
	}
	conversationID := strings.TrimSpace(c.Param("id"))
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation id is required"})
		return
	}
	result, err := h.Chat.AcceptCollaboration(c.Request.Context(), conversationID, p.ID)
	if err != nil {
		respondFault(c, h.Logger, err, "accept collaboration", "conversation_id", conversationID, "user_id", p.ID)
		return
	}
	response := gin.H{"conversation": dto.FromConversation(result.Conversation, p.ID)}
	if result.Message != nil {
		response["message"] = dto.FromMessage(result.Message)
	}
	if result.Interest != nil {
		response["interest"] = dto.FromInterest(result.Interest)
	}
	c.JSON(http.StatusOK, response)
}

// Ignore declines a pending collaboration request.
func (h ConversationHandler) Ignore(c *gin.Context) {
	p, ok := requireIdentity(c)
	if !ok {
		return
	}
	conversationID := strings.TrimSpace(c.Param("id"))
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation id is required"})
		return
	}
	conv, err := h.Chat.IgnoreCollaboration(c.Request.Context(), conversationID, p.ID)
	if err != nil {
		respondFault(c, h.Logger, err, "ignore collaboration", "conversation_id", conversationID, "user_id", p.ID)
		return
	}
	c.JSON(http.StatusOK, dto.FromConversation(conv, p.ID))
}

// SendMessage posts a message to a conversation the caller participates in.
func (h ConversationHandler) SendMessage(c *gin.Context) {
	p, ok := requireIdentity(c)
	if !ok {
		return
	}
	conversationID := strings.TrimSpace(c.Param("id"))
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation id is required"})
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	msg, _, err := h.Chat.SendMessage(c.Request.Context(), conversationID, p.ID, strings.TrimSpace(req.Text))
	if err != nil {
		respondFault(c, h.Logger, err, "send message", "conversation_id", conversationID, "user_id", p.ID)
		return
	}
	c.JSON(http.StatusCreated, dto.FromMessage(msg))
}

// ListMessages returns one oldest-first page and marks the thread read.
func (h ConversationHandler) ListMessages(c *gin.Context) {
	p, ok := requireIdentity(c)
	if !ok {
		return
	}
	conversationID := strings.TrimSpace(c.Param("id"))
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation id is required"})
		return
	}
	limit := parsePositiveIntStrict(c.Query("limit"), 50)
	var before time.Time
	if raw := strings.TrimSpace(c.Query("before")); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid before cursor"})
			return
		}
		before = parsed
	}
	conv, messages, err := h.Chat.GetMessages(c.Request.Context(), conversationID, p.ID, limit, before)
	if err != nil {
		respondFault(c, h.Logger, err, "list messages", "conversation_id", conversationID, "user_id", p.ID)
		return
	}
	collection := dto.MessageList{
		Conversation: dto.FromConversation(conv, p.ID),
		Items:        make([]dto.Message, 0, len(messages)),
	}
	for _, msg := range messages {
		collection.Items = append(collection.Items, dto.FromMessage(msg))
	}
	c.JSON(http.StatusOK, collection)
}

// MarkRead marks the conversation read for the caller.
func (h ConversationHandler) MarkRead(c *gin.Context) {
	p, ok := requireIdentity(c)
	if !ok {
		return
	}
	conversationID := strings.TrimSpace(c.Param("id"))
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation id is required"})
		return
	}
	if err := h.Chat.MarkRead(c.Request.Context(), conversationID, p.ID); err != nil {
		respondFault(c, h.Logger, err, "mark read", "conversation_id", conversationID, "user_id", p.ID)
		return
	}
	c.Status(http.StatusNoContent)
}

func parsePositiveIntStrict(raw string, def int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return def
	}
	return value
}

var _ ConversationHTTP = (*ConversationHandler)(nil)
