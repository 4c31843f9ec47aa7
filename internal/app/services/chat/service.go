package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"vinci/internal/app/dto"
	"vinci/internal/app/services/notify"
	domainconv "vinci/internal/domain/conversation"
	domaininterest "vinci/internal/domain/interest"
	domainnotif "vinci/internal/domain/notification"
	domainpost "vinci/internal/domain/post"
	"vinci/internal/domain/shared/fault"
	"vinci/internal/infra/realtime"
)

const previewLimit = 500

// Service is the conversation lifecycle manager. It owns the
// request/accept/ignore state machine, message append/read semantics, and
// orchestrates the interest ledger, notification ledger, post snapshot
// refresh, and realtime fan-out around every mutation.
type Service struct {
	Conversations domainconv.Repository
	Messages      domainconv.MessageRepository
	Interests     domaininterest.Repository
	Posts         domainpost.Store
	Notifications *notify.Service
	Snapshots     *SnapshotRefresher
	Fanout        realtime.Publisher
	Logger        *slog.Logger

	Now func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// RequestCollaborationParams describes a collaboration request against a post.
type RequestCollaborationParams struct {
	RequesterID string
	PostID      string
	Message     string
}

// RequestCollaboration opens (or reopens) the requester/owner conversation in
// pending state, upserts the interest ledger record for (post, requester), and
// fans the request out to the owner. A new request always reopens the thread,
// whatever state it was left in.
func (s *Service) RequestCollaboration(ctx context.Context, params RequestCollaborationParams) (*domainconv.Conversation, error) {
	pst, err := s.Posts.GetPost(ctx, params.PostID)
	if err != nil {
		if errors.Is(err, domainpost.ErrPostNotFound) {
			return nil, fault.NotFound("post not found")
		}
		return nil, err
	}
	ownerID := pst.AuthorID
	if ownerID == "" {
		return nil, fault.NotFound("post has no author")
	}
	if params.RequesterID == ownerID {
		return nil, fault.Invalid("cannot request collaboration on your own post")
	}
	if !pst.SeeksCollaboration() {
		return nil, fault.InvalidState("post does not accept collaboration requests")
	}

	now := s.now()
	conv, err := s.Conversations.ByParticipants(ctx, params.RequesterID, ownerID)
	switch {
	case errors.Is(err, domainconv.ErrNotFound):
		conv, err = s.createCollaborationThread(ctx, params, ownerID, now)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		conv, err = s.reopenThread(ctx, conv.ID, params, ownerID, now)
		if err != nil {
			return nil, err
		}
	}

	rec, err := s.Interests.UpsertPending(ctx, domaininterest.UpsertParams{
		PostID:         params.PostID,
		OwnerID:        ownerID,
		InterestedID:   params.RequesterID,
		ConversationID: conv.ID,
		At:             now,
	})
	if err != nil {
		return nil, err
	}
	if err := s.Conversations.LinkInterest(ctx, conv.ID, rec.ID); err != nil {
		return nil, err
	}
	conv.InterestID = rec.ID

	text := params.Message
	if text == "" {
		text = fmt.Sprintf("wants to collaborate on %q", pst.Title)
	}
	msg, err := s.appendSystemMessage(ctx, conv, params.RequesterID, text, map[string]any{
		"kind":       "collaboration_request",
		"post_id":    pst.ID,
		"post_title": pst.Title,
	}, []string{ownerID}, now)
	if err != nil {
		return nil, err
	}

	// Request events go to the owner's channel only.
	ownerChannel := realtime.UserChannel(ownerID)
	s.publish(ctx, ownerChannel, realtime.Event{
		Type:    realtime.EventMessageNew,
		Payload: dto.FromMessage(msg),
		At:      now,
	})
	s.publish(ctx, ownerChannel, realtime.Event{
		Type:    realtime.EventCollabRequest,
		Payload: dto.FromConversation(conv, ownerID),
		At:      now,
	})
	return conv, nil
}

// createCollaborationThread inserts a fresh pending thread; when a concurrent
// identical request wins the unique-pair race, the loser falls back to the
// reopen branch against the now-existing record.
func (s *Service) createCollaborationThread(ctx context.Context, params RequestCollaborationParams, ownerID string, now time.Time) (*domainconv.Conversation, error) {
	conv := &domainconv.Conversation{
		ID:             uuid.NewString(),
		Participants:   domainconv.CanonicalPair(params.RequesterID, ownerID),
		Kind:           domainconv.KindCollaboration,
		Status:         domainconv.StatusPending,
		OwnerID:        ownerID,
		RequesterID:    params.RequesterID,
		PostID:         params.PostID,
		RequestedBy:    params.RequesterID,
		RequestMessage: params.Message,
		UnreadBy:       []string{ownerID},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err := s.Conversations.Insert(ctx, conv)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, domainconv.ErrPairExists) {
		return nil, err
	}
	existing, lookupErr := s.Conversations.ByParticipants(ctx, params.RequesterID, ownerID)
	if lookupErr != nil {
		return nil, fault.Wrap(fault.CodeConflict, "conversation pair race lost and re-read failed", lookupErr)
	}
	return s.reopenThread(ctx, existing.ID, params, ownerID, now)
}

func (s *Service) reopenThread(ctx context.Context, id string, params RequestCollaborationParams, ownerID string, now time.Time) (*domainconv.Conversation, error) {
	conv, err := s.Conversations.Reopen(ctx, id, domainconv.ReopenParams{
		OwnerID:        ownerID,
		RequesterID:    params.RequesterID,
		PostID:         params.PostID,
		RequestMessage: params.Message,
		At:             now,
	})
	if err != nil {
		if errors.Is(err, domainconv.ErrNotFound) {
			return nil, fault.NotFound("conversation not found")
		}
		return nil, err
	}
	return conv, nil
}

// AcceptResult bundles the state an accept produces. Message is nil on an
// idempotent retry, which appends nothing.
type AcceptResult struct {
	Conversation *domainconv.Conversation
	Message      *domainconv.Message
	Interest     *domaininterest.Record
}

// AcceptCollaboration lets the project owner approve a pending request:
// interest goes accepted, the thread goes active, the post snapshot is
// refreshed, the counterpart is notified persistently, and a match event fans
// out to both sides.
func (s *Service) AcceptCollaboration(ctx context.Context, conversationID, actorID string) (*AcceptResult, error) {
	conv, pst, counterpart, err := s.authorizeOwnerAction(ctx, conversationID, actorID)
	if err != nil {
		return nil, err
	}

	if conv.Status == domainconv.StatusActive && conv.PostID == pst.ID {
		// Retry of an accept that already landed. Same terminal state, no
		// duplicate system message.
		rec, err := s.Interests.ByPostAndUser(ctx, pst.ID, counterpart)
		if err != nil && !errors.Is(err, domaininterest.ErrNotFound) {
			return nil, err
		}
		return &AcceptResult{Conversation: conv, Interest: rec}, nil
	}

	now := s.now()
	rec, err := s.Interests.Accept(ctx, domaininterest.UpsertParams{
		PostID:         pst.ID,
		OwnerID:        actorID,
		InterestedID:   counterpart,
		ConversationID: conv.ID,
		At:             now,
	})
	if err != nil {
		return nil, err
	}

	conv, err = s.Conversations.Accept(ctx, conv.ID, actorID, counterpart, now)
	if err != nil {
		return nil, err
	}

	s.refreshSnapshot(ctx, pst.ID)

	text := fmt.Sprintf("accepted the collaboration request for %q", pst.Title)
	msg, err := s.appendSystemMessage(ctx, conv, actorID, text, map[string]any{
		"kind":       "collaboration_accepted",
		"post_id":    pst.ID,
		"post_title": pst.Title,
	}, []string{counterpart}, now)
	if err != nil {
		return nil, err
	}

	if s.Notifications != nil {
		notifText := fmt.Sprintf("Your collaboration request for %q was accepted", pst.Title)
		if _, err := s.Notifications.Push(ctx, counterpart, domainnotif.TypeMatch, notifText); err != nil {
			s.logWarn("match notification append failed", err, "conversation_id", conv.ID, "user_id", counterpart)
		}
	}

	matchEvent := realtime.Event{
		Type:    realtime.EventCollabMatch,
		Payload: dto.FromConversation(conv, ""),
		At:      now,
	}
	s.publish(ctx, realtime.UserChannel(actorID), matchEvent)
	s.publish(ctx, realtime.UserChannel(counterpart), matchEvent)
	s.publish(ctx, realtime.ConversationChannel(conv.ID), realtime.Event{
		Type:    realtime.EventMessageNew,
		Payload: dto.FromMessage(msg),
		At:      now,
	})

	return &AcceptResult{Conversation: conv, Message: msg, Interest: rec}, nil
}

// IgnoreCollaboration declines a pending request without deleting the thread;
// a later request between the same pair reopens it.
func (s *Service) IgnoreCollaboration(ctx context.Context, conversationID, actorID string) (*domainconv.Conversation, error) {
	conv, pst, counterpart, err := s.authorizeOwnerAction(ctx, conversationID, actorID)
	if err != nil {
		return nil, err
	}
	if conv.Status == domainconv.StatusIgnored {
		return conv, nil
	}
	if conv.Status == domainconv.StatusActive {
		return nil, fault.InvalidState("cannot ignore an active collaboration")
	}

	now := s.now()
	conv, err = s.Conversations.Ignore(ctx, conv.ID, now)
	if err != nil {
		return nil, err
	}

	// Resolve the ledger record via the back-pointer, falling back to the
	// (post, counterpart) pair.
	var rec *domaininterest.Record
	if conv.InterestID != "" {
		rec, err = s.Interests.ByID(ctx, conv.InterestID)
		if err != nil && !errors.Is(err, domaininterest.ErrNotFound) {
			return nil, err
		}
	}
	if rec == nil {
		rec, err = s.Interests.ByPostAndUser(ctx, pst.ID, counterpart)
		if err != nil && !errors.Is(err, domaininterest.ErrNotFound) {
			return nil, err
		}
	}
	if rec != nil {
		if _, err := s.Interests.Reject(ctx, rec.ID, now); err != nil {
			return nil, err
		}
	}

	s.refreshSnapshot(ctx, pst.ID)

	ignoredEvent := realtime.Event{
		Type:    realtime.EventCollabIgnored,
		Payload: dto.FromConversation(conv, ""),
		At:      now,
	}
	s.publish(ctx, realtime.UserChannel(actorID), ignoredEvent)
	s.publish(ctx, realtime.UserChannel(counterpart), ignoredEvent)

	return conv, nil
}

// authorizeOwnerAction loads the conversation plus its post and checks the
// actor is the project author acting on an intact two-party thread.
func (s *Service) authorizeOwnerAction(ctx context.Context, conversationID, actorID string) (*domainconv.Conversation, *domainpost.Post, string, error) {
	conv, err := s.Conversations.ByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, domainconv.ErrNotFound) {
			return nil, nil, "", fault.NotFound("conversation not found")
		}
		return nil, nil, "", err
	}
	if len(conv.Participants) != 2 {
		return nil, nil, "", fault.InvalidState("conversation participant pair incomplete")
	}
	if conv.PostID == "" {
		return nil, nil, "", fault.InvalidState("conversation has no linked post")
	}
	pst, err := s.Posts.GetPost(ctx, conv.PostID)
	if err != nil {
		if errors.Is(err, domainpost.ErrPostNotFound) {
			return nil, nil, "", fault.InvalidState("linked post no longer exists")
		}
		return nil, nil, "", err
	}
	if !pst.SeeksCollaboration() {
		return nil, nil, "", fault.InvalidState("post does not accept collaboration requests")
	}
	if actorID != pst.AuthorID {
		return nil, nil, "", fault.Forbidden("only the project owner can decide on a request")
	}
	counterpart, err := conv.Counterpart(actorID)
	if err != nil {
		return nil, nil, "", fault.Forbidden("actor is not a participant of this conversation")
	}
	return conv, pst, counterpart, nil
}

// SendMessage appends a user message and overwrites the unread set to
// "participants minus sender": unread means "has not seen the latest state",
// never a counter.
func (s *Service) SendMessage(ctx context.Context, conversationID, senderID, text string) (*domainconv.Message, *domainconv.Conversation, error) {
	conv, err := s.Conversations.ByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, domainconv.ErrNotFound) {
			return nil, nil, fault.NotFound("conversation not found")
		}
		return nil, nil, err
	}
	if !conv.HasParticipant(senderID) {
		return nil, nil, fault.Forbidden("sender is not a participant")
	}
	if err := domainconv.ValidateText(text); err != nil {
		return nil, nil, fault.Wrap(fault.CodeValidation, "invalid message text", err)
	}

	now := s.now()
	unread := participantsExcept(conv.Participants, senderID)
	msg := &domainconv.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		SenderID:       senderID,
		Text:           text,
		ReadBy:         []string{senderID},
		CreatedAt:      now,
	}
	if err := s.Messages.Append(ctx, msg); err != nil {
		return nil, nil, err
	}
	if err := s.Conversations.SetPreview(ctx, conv.ID, domainconv.PreviewUpdate{
		Text:     trimSnippet(text, previewLimit),
		SenderID: senderID,
		At:       now,
		UnreadBy: unread,
	}); err != nil {
		return nil, nil, err
	}
	conv.LastMessageText = trimSnippet(text, previewLimit)
	conv.LastSenderID = senderID
	conv.LastMessageAt = now
	conv.UpdatedAt = now
	conv.UnreadBy = unread

	messageEvent := realtime.Event{
		Type:    realtime.EventMessageNew,
		Payload: dto.FromMessage(msg),
		At:      now,
	}
	s.publish(ctx, realtime.ConversationChannel(conv.ID), messageEvent)
	// Personal channels carry the full message too: the default subscription
	// holds only the user channel, and the preview is truncated.
	for _, participant := range conv.Participants {
		s.publish(ctx, realtime.UserChannel(participant), messageEvent)
		s.publish(ctx, realtime.UserChannel(participant), realtime.Event{
			Type:    realtime.EventConversationUpdated,
			Payload: dto.FromConversation(conv, participant),
			At:      now,
		})
	}
	return msg, conv, nil
}

// GetMessages returns one oldest-first page and, as a side effect, marks the
// conversation read for the requester with atomic set updates.
func (s *Service) GetMessages(ctx context.Context, conversationID, requesterID string, limit int, before time.Time) (*domainconv.Conversation, []*domainconv.Message, error) {
	conv, err := s.Conversations.ByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, domainconv.ErrNotFound) {
			return nil, nil, fault.NotFound("conversation not found")
		}
		return nil, nil, err
	}
	if !conv.HasParticipant(requesterID) {
		return nil, nil, fault.Forbidden("requester is not a participant")
	}
	if err := s.MarkRead(ctx, conversationID, requesterID); err != nil {
		return nil, nil, err
	}
	messages, err := s.Messages.List(ctx, conversationID, limit, before)
	if err != nil {
		return nil, nil, err
	}
	conv.UnreadBy = participantsExcept(conv.UnreadBy, requesterID)
	return conv, messages, nil
}

// MarkRead removes the requester from the conversation's unread set and adds
// it to ReadBy on every previously-unread message. Safe to repeat.
func (s *Service) MarkRead(ctx context.Context, conversationID, requesterID string) error {
	conv, err := s.Conversations.ByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, domainconv.ErrNotFound) {
			return fault.NotFound("conversation not found")
		}
		return err
	}
	if !conv.HasParticipant(requesterID) {
		return fault.Forbidden("requester is not a participant")
	}
	if err := s.Conversations.ClearUnread(ctx, conversationID, requesterID); err != nil {
		return err
	}
	return s.Messages.MarkReadAll(ctx, conversationID, requesterID)
}

// ListConversations returns the caller's threads, most recently active first.
func (s *Service) ListConversations(ctx context.Context, userID string) ([]*domainconv.Conversation, error) {
	return s.Conversations.ListForUser(ctx, userID)
}

// StartDirect opens (or returns) the plain direct-message thread between two
// identities; no approval workflow applies.
func (s *Service) StartDirect(ctx context.Context, userID, peerID, text string) (*domainconv.Conversation, error) {
	if peerID == "" || peerID == userID {
		return nil, fault.Invalid("peer must be another user")
	}
	now := s.now()
	conv, err := s.Conversations.ByParticipants(ctx, userID, peerID)
	if errors.Is(err, domainconv.ErrNotFound) {
		conv = &domainconv.Conversation{
			ID:           uuid.NewString(),
			Participants: domainconv.CanonicalPair(userID, peerID),
			Kind:         domainconv.KindDirect,
			Status:       domainconv.StatusActive,
			UnreadBy:     []string{},
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if insertErr := s.Conversations.Insert(ctx, conv); insertErr != nil {
			if !errors.Is(insertErr, domainconv.ErrPairExists) {
				return nil, insertErr
			}
			conv, err = s.Conversations.ByParticipants(ctx, userID, peerID)
			if err != nil {
				return nil, fault.Wrap(fault.CodeConflict, "conversation pair race lost and re-read failed", err)
			}
		}
	} else if err != nil {
		return nil, err
	}
	if text != "" {
		if _, updated, err := s.SendMessage(ctx, conv.ID, userID, text); err != nil {
			return nil, err
		} else {
			conv = updated
		}
	}
	return conv, nil
}

// appendSystemMessage writes a lifecycle message and refreshes the preview
// fields plus the unread overwrite in one step.
func (s *Service) appendSystemMessage(ctx context.Context, conv *domainconv.Conversation, senderID, text string, meta map[string]any, unreadBy []string, now time.Time) (*domainconv.Message, error) {
	msg := &domainconv.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		SenderID:       senderID,
		Text:           text,
		ReadBy:         []string{senderID},
		IsSystem:       true,
		Meta:           meta,
		CreatedAt:      now,
	}
	if err := s.Messages.Append(ctx, msg); err != nil {
		return nil, err
	}
	if err := s.Conversations.SetPreview(ctx, conv.ID, domainconv.PreviewUpdate{
		Text:     trimSnippet(text, previewLimit),
		SenderID: senderID,
		At:       now,
		UnreadBy: unreadBy,
	}); err != nil {
		return nil, err
	}
	conv.LastMessageText = trimSnippet(text, previewLimit)
	conv.LastSenderID = senderID
	conv.LastMessageAt = now
	conv.UpdatedAt = now
	conv.UnreadBy = append([]string(nil), unreadBy...)
	return msg, nil
}

func (s *Service) refreshSnapshot(ctx context.Context, postID string) {
	if s.Snapshots == nil {
		return
	}
	if err := s.Snapshots.Refresh(ctx, postID); err != nil {
		s.logWarn("post snapshot refresh failed", err, "post_id", postID)
	}
}

func (s *Service) publish(ctx context.Context, channel string, event realtime.Event) {
	if s.Fanout == nil {
		return
	}
	s.Fanout.Publish(ctx, channel, event)
}

func (s *Service) logWarn(msg string, err error, attrs ...any) {
	if s.Logger != nil {
		s.Logger.Warn(msg, append([]any{"error", err}, attrs...)...)
	}
}

func participantsExcept(ids []string, excluded string) []string {
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != excluded {
			result = append(result, id)
		}
	}
	return result
}

func trimSnippet(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
