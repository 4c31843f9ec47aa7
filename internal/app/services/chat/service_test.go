package chat

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"vinci/internal/app/dto"
	domainconv "vinci/internal/domain/conversation"
	domaininterest "vinci/internal/domain/interest"
	domainnotif "vinci/internal/domain/notification"
	domainpost "vinci/internal/domain/post"
	"vinci/internal/domain/shared/fault"
	"vinci/internal/infra/realtime"
	"vinci/internal/infra/storage/memory"

	"vinci/internal/app/services/notify"
)

type recordedEvent struct {
	Channel string
	Event   realtime.Event
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, channel string, event realtime.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{Channel: channel, Event: event})
}

func (p *recordingPublisher) byType(eventType string) []recordedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []recordedEvent
	for _, e := range p.events {
		if e.Event.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	service   *Service
	posts     *memory.PostStore
	interests domaininterest.Repository
	notifs    domainnotif.Repository
	publisher *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	posts := memory.NewPostStore()
	posts.Seed(domainpost.Post{ID: "post-1", AuthorID: "owner", Title: "Synth project", Category: "collaboration"})
	posts.Seed(domainpost.Post{ID: "post-sale", AuthorID: "owner", Title: "Old amp", Category: "marketplace"})

	interests := memory.NewInterestRepository()
	notifs := memory.NewNotificationRepository()
	publisher := &recordingPublisher{}

	svc := &Service{
		Conversations: memory.NewConversationRepository(),
		Messages:      memory.NewMessageRepository(),
		Interests:     interests,
		Posts:         posts,
		Notifications: &notify.Service{Ledgers: notifs, Fanout: publisher},
		Fanout:        publisher,
	}
	svc.Snapshots = &SnapshotRefresher{Interests: interests, Posts: posts, Fanout: publisher}
	return &fixture{service: svc, posts: posts, interests: interests, notifs: notifs, publisher: publisher}
}

func TestRequestCollaborationCreatesPendingThread(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	conv, err := fx.service.RequestCollaboration(ctx, RequestCollaborationParams{
		RequesterID: "requester",
		PostID:      "post-1",
		Message:     "let me in",
	})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if conv.Status != domainconv.StatusPending {
		t.Fatalf("status = %s, want pending", conv.Status)
	}
	if conv.Kind != domainconv.KindCollaboration {
		t.Fatalf("kind = %s, want collaboration", conv.Kind)
	}
	if conv.OwnerID != "owner" || conv.RequesterID != "requester" {
		t.Fatalf("roles = %s/%s", conv.OwnerID, conv.RequesterID)
	}
	if len(conv.UnreadBy) != 1 || conv.UnreadBy[0] != "owner" {
		t.Fatalf("unread = %v, want [owner]", conv.UnreadBy)
	}

	rec, err := fx.interests.ByPostAndUser(ctx, "post-1", "requester")
	if err != nil {
		t.Fatalf("interest lookup: %v", err)
	}
	if rec.Status != domaininterest.StatusPending {
		t.Fatalf("interest status = %s, want pending", rec.Status)
	}
	if conv.InterestID != rec.ID {
		t.Fatalf("conversation not linked to interest record")
	}

	_, msgs, err := fx.service.GetMessages(ctx, conv.ID, "owner", 10, time.Time{})
	if err != nil {
		t.Fatalf("get messages: %v", err)
	}
	if len(msgs) != 1 || !msgs[0].IsSystem {
		t.Fatalf("expected one system message, got %d", len(msgs))
	}
	if msgs[0].Text != "let me in" {
		t.Fatalf("request message text = %q", msgs[0].Text)
	}

	requests := fx.publisher.byType(realtime.EventCollabRequest)
	if len(requests) != 1 {
		t.Fatalf("collab.request events = %d, want 1", len(requests))
	}
	if requests[0].Channel != realtime.UserChannel("owner") {
		t.Fatalf("request event went to %s, want the owner channel", requests[0].Channel)
	}
}

func TestRequestCollaborationValidation(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.service.RequestCollaboration(ctx, RequestCollaborationParams{RequesterID: "owner", PostID: "post-1"})
	if fault.CodeOf(err) != fault.CodeValidation {
		t.Fatalf("self-request code = %v, want validation", fault.CodeOf(err))
	}

	_, err = fx.service.RequestCollaboration(ctx, RequestCollaborationParams{RequesterID: "requester", PostID: "post-sale"})
	if fault.CodeOf(err) != fault.CodeInvalidState {
		t.Fatalf("non-collaboration post code = %v, want invalid state", fault.CodeOf(err))
	}

	_, err = fx.service.RequestCollaboration(ctx, RequestCollaborationParams{RequesterID: "requester", PostID: "missing"})
	if fault.CodeOf(err) != fault.CodeNotFound {
		t.Fatalf("missing post code = %v, want not found", fault.CodeOf(err))
	}
}

func TestRepeatedRequestReusesPair(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	first, err := fx.service.RequestCollaboration(ctx, RequestCollaborationParams{RequesterID: "requester", PostID: "post-1"})
	if err != nil {
		t.Fatalf("first request: %v", err)
	}
	second, err := fx.service.RequestCollaboration(ctx, RequestCollaborationParams{RequesterID: "requester", PostID: "post-1"})
	if err != nil {
		t.Fatalf("second request: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("requests produced two conversations: %s vs %s", first.ID, second.ID)
	}
	convs, err := fx.service.ListConversations(ctx, "owner")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(convs) != 1 {
		t.Fatalf("owner sees %d conversations, want 1", len(convs))
	}
}

func TestConcurrentRequestsSamePair(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	const n = 8
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conv, err := fx.service.RequestCollaboration(ctx, RequestCollaborationParams{RequesterID: "requester", PostID: "post-1"})
			if err != nil {
				t.Errorf("concurrent request: %v", err)
				return
			}
			ids <- conv.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		seen[id] = true
	}
	if len(seen) != 1 {
		t.Fatalf("concurrent requests produced %d distinct conversations, want 1", len(seen))
	}
}

func TestAcceptCollaboration(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	conv, err := fx.service.RequestCollaboration(ctx, RequestCollaborationParams{RequesterID: "requester", PostID: "post-1"})
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	if _, err := fx.service.AcceptCollaboration(ctx, conv.ID, "requester"); fault.CodeOf(err) != fault.CodeForbidden {
		t.Fatalf("requester accept code = %v, want forbidden", fault.CodeOf(err))
	}

	res, err := fx.service.AcceptCollaboration(ctx, conv.ID, "owner")
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if res.Conversation.Status != domainconv.StatusActive {
		t.Fatalf("status = %s, want active", res.Conversation.Status)
	}
	if res.Message == nil || !res.Message.IsSystem {
		t.Fatalf("accept should append a system message")
	}
	if res.Interest.Status != domaininterest.StatusAccepted {
		t.Fatalf("interest status = %s, want accepted", res.Interest.Status)
	}

	snap, ok := fx.posts.Snapshot("post-1")
	if !ok {
		t.Fatalf("post snapshot not refreshed")
	}
	if len(snap.AcceptedIDs) != 1 || snap.AcceptedIDs[0] != "requester" {
		t.Fatalf("accepted ids = %v, want [requester]", snap.AcceptedIDs)
	}
	if len(snap.PendingIDs) != 0 {
		t.Fatalf("pending ids = %v, want empty", snap.PendingIDs)
	}

	ledger, err := fx.notifs.Ledger(ctx, "requester")
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	if len(ledger.Records) != 1 || ledger.Records[0].Type != domainnotif.TypeMatch {
		t.Fatalf("requester ledger = %+v, want one match record", ledger.Records)
	}
	ownerLedger, err := fx.notifs.Ledger(ctx, "owner")
	if err != nil {
		t.Fatalf("owner ledger: %v", err)
	}
	if len(ownerLedger.Records) != 0 {
		t.Fatalf("accept notified the acting owner: %+v", ownerLedger.Records)
	}

	matches := fx.publisher.byType(realtime.EventCollabMatch)
	if len(matches) != 2 {
		t.Fatalf("collab.match events = %d, want one per participant", len(matches))
	}
}

func TestAcceptIsIdempotent(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	conv, err := fx.service.RequestCollaboration(ctx, RequestCollaborationParams{RequesterID: "requester", PostID: "post-1"})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := fx.service.AcceptCollaboration(ctx, conv.ID, "owner"); err != nil {
		t.Fatalf("first accept: %v", err)
	}

	retry, err := fx.service.AcceptCollaboration(ctx, conv.ID, "owner")
	if err != nil {
		t.Fatalf("retry accept: %v", err)
	}
	if retry.Message != nil {
		t.Fatalf("retry appended a duplicate system message")
	}
	if retry.Conversation.Status != domainconv.StatusActive {
		t.Fatalf("retry status = %s, want active", retry.Conversation.Status)
	}

	_, msgs, err := fx.service.GetMessages(ctx, conv.ID, "owner", 10, time.Time{})
	if err != nil {
		t.Fatalf("get messages: %v", err)
	}
	// One request message plus one accept message, no duplicates.
	if len(msgs) != 2 {
		t.Fatalf("message count = %d, want 2", len(msgs))
	}

	ledger, err := fx.notifs.Ledger(ctx, "requester")
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	if len(ledger.Records) != 1 {
		t.Fatalf("retry pushed a duplicate notification: %d records", len(ledger.Records))
	}
}

func TestIgnoreKeepsThreadAndRequestReopensIt(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	conv, err := fx.service.RequestCollaboration(ctx, RequestCollaborationParams{RequesterID: "requester", PostID: "post-1"})
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	ignored, err := fx.service.IgnoreCollaboration(ctx, conv.ID, "owner")
	if err != nil {
		t.Fatalf("ignore: %v", err)
	}
	if ignored.Status != domainconv.StatusIgnored {
		t.Fatalf("status = %s, want ignored", ignored.Status)
	}
	if len(ignored.UnreadBy) != 0 {
		t.Fatalf("unread after ignore = %v, want empty", ignored.UnreadBy)
	}
	rec, err := fx.interests.ByPostAndUser(ctx, "post-1", "requester")
	if err != nil {
		t.Fatalf("interest lookup: %v", err)
	}
	if rec.Status != domaininterest.StatusRejected {
		t.Fatalf("interest status = %s, want rejected", rec.Status)
	}
	if snap, _ := fx.posts.Snapshot("post-1"); len(snap.PendingIDs) != 0 {
		t.Fatalf("pending ids = %v after ignore, want empty", snap.PendingIDs)
	}

	// Repeating the ignore is a no-op, not an error.
	if _, err := fx.service.IgnoreCollaboration(ctx, conv.ID, "owner"); err != nil {
		t.Fatalf("repeat ignore: %v", err)
	}

	reopened, err := fx.service.RequestCollaboration(ctx, RequestCollaborationParams{RequesterID: "requester", PostID: "post-1"})
	if err != nil {
		t.Fatalf("re-request: %v", err)
	}
	if reopened.ID != conv.ID {
		t.Fatalf("re-request created a new conversation")
	}
	if reopened.Status != domainconv.StatusPending {
		t.Fatalf("reopened status = %s, want pending", reopened.Status)
	}
	rec, err = fx.interests.ByPostAndUser(ctx, "post-1", "requester")
	if err != nil {
		t.Fatalf("interest lookup after reopen: %v", err)
	}
	if rec.Status != domaininterest.StatusPending {
		t.Fatalf("interest status after reopen = %s, want pending", rec.Status)
	}
}

func TestIgnoreActiveThreadFails(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	conv, err := fx.service.RequestCollaboration(ctx, RequestCollaborationParams{RequesterID: "requester", PostID: "post-1"})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := fx.service.AcceptCollaboration(ctx, conv.ID, "owner"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := fx.service.IgnoreCollaboration(ctx, conv.ID, "owner"); fault.CodeOf(err) != fault.CodeInvalidState {
		t.Fatalf("ignore active code = %v, want invalid state", fault.CodeOf(err))
	}
}

func TestAcceptNeverDowngradedByNewRequest(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	conv, err := fx.service.RequestCollaboration(ctx, RequestCollaborationParams{RequesterID: "requester", PostID: "post-1"})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := fx.service.AcceptCollaboration(ctx, conv.ID, "owner"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := fx.service.RequestCollaboration(ctx, RequestCollaborationParams{RequesterID: "requester", PostID: "post-1"}); err != nil {
		t.Fatalf("request after accept: %v", err)
	}
	rec, err := fx.interests.ByPostAndUser(ctx, "post-1", "requester")
	if err != nil {
		t.Fatalf("interest lookup: %v", err)
	}
	if rec.Status != domaininterest.StatusAccepted {
		t.Fatalf("interest status = %s, accepted must never downgrade", rec.Status)
	}
}

func TestSendMessageOverwritesUnreadSet(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	conv, err := fx.service.StartDirect(ctx, "alice", "bob", "")
	if err != nil {
		t.Fatalf("start direct: %v", err)
	}

	_, updated, err := fx.service.SendMessage(ctx, conv.ID, "alice", "hello")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(updated.UnreadBy) != 1 || updated.UnreadBy[0] != "bob" {
		t.Fatalf("unread = %v, want [bob]", updated.UnreadBy)
	}
	if updated.LastMessageText != "hello" || updated.LastSenderID != "alice" {
		t.Fatalf("preview = %q by %s", updated.LastMessageText, updated.LastSenderID)
	}

	// A reply flips the set to the other side, it does not accumulate.
	_, updated, err = fx.service.SendMessage(ctx, conv.ID, "bob", "hi back")
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if len(updated.UnreadBy) != 1 || updated.UnreadBy[0] != "alice" {
		t.Fatalf("unread after reply = %v, want [alice]", updated.UnreadBy)
	}

	if _, _, err := fx.service.SendMessage(ctx, conv.ID, "mallory", "hi"); fault.CodeOf(err) != fault.CodeForbidden {
		t.Fatalf("outsider send code = %v, want forbidden", fault.CodeOf(err))
	}
	long := strings.Repeat("x", domainconv.MaxMessageLen+1)
	if _, _, err := fx.service.SendMessage(ctx, conv.ID, "alice", long); fault.CodeOf(err) != fault.CodeValidation {
		t.Fatalf("oversized send code = %v, want validation", fault.CodeOf(err))
	}
}

func TestSendMessageFansOutToPersonalChannels(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	conv, err := fx.service.StartDirect(ctx, "alice", "bob", "")
	if err != nil {
		t.Fatalf("start direct: %v", err)
	}
	msg, _, err := fx.service.SendMessage(ctx, conv.ID, "alice", strings.Repeat("x", previewLimit+100))
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	channels := map[string]bool{}
	for _, e := range fx.publisher.byType(realtime.EventMessageNew) {
		channels[e.Channel] = true
		// The event carries the full text, not the truncated preview.
		if payload, ok := e.Event.Payload.(dto.Message); ok && payload.ID == msg.ID {
			if payload.Text != msg.Text {
				t.Fatalf("event text truncated to %d runes", len([]rune(payload.Text)))
			}
		}
	}
	for _, want := range []string{
		realtime.ConversationChannel(conv.ID),
		realtime.UserChannel("alice"),
		realtime.UserChannel("bob"),
	} {
		if !channels[want] {
			t.Fatalf("message.new missing on %s (got %v)", want, channels)
		}
	}
}

func TestPreviewSnippetIsBounded(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	conv, err := fx.service.StartDirect(ctx, "alice", "bob", "")
	if err != nil {
		t.Fatalf("start direct: %v", err)
	}
	text := strings.Repeat("é", 900)
	_, updated, err := fx.service.SendMessage(ctx, conv.ID, "alice", text)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if got := len([]rune(updated.LastMessageText)); got != previewLimit {
		t.Fatalf("preview length = %d runes, want %d", got, previewLimit)
	}
}

func TestMarkReadIsIdempotent(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	conv, err := fx.service.StartDirect(ctx, "alice", "bob", "hello")
	if err != nil {
		t.Fatalf("start direct: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := fx.service.MarkRead(ctx, conv.ID, "bob"); err != nil {
			t.Fatalf("mark read %d: %v", i, err)
		}
	}
	updated, msgs, err := fx.service.GetMessages(ctx, conv.ID, "bob", 10, time.Time{})
	if err != nil {
		t.Fatalf("get messages: %v", err)
	}
	if updated.UnreadFor("bob") {
		t.Fatalf("bob still unread after mark read")
	}
	if len(msgs) != 1 || !msgs[0].ReadByUser("bob") {
		t.Fatalf("message not marked read for bob")
	}
}

func TestGetMessagesPagination(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	conv, err := fx.service.StartDirect(ctx, "alice", "bob", "")
	if err != nil {
		t.Fatalf("start direct: %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, _, err := fx.service.SendMessage(ctx, conv.ID, "alice", strings.Repeat("m", i+1)); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
		time.Sleep(time.Millisecond)
	}

	_, page, err := fx.service.GetMessages(ctx, conv.ID, "bob", 2, time.Time{})
	if err != nil {
		t.Fatalf("latest page: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("page size = %d, want 2", len(page))
	}
	if !page[0].CreatedAt.Before(page[1].CreatedAt) {
		t.Fatalf("page not oldest-first")
	}
	if page[1].Text != "mmmmm" {
		t.Fatalf("latest page missing newest message, got %q", page[1].Text)
	}

	_, older, err := fx.service.GetMessages(ctx, conv.ID, "bob", 2, page[0].CreatedAt)
	if err != nil {
		t.Fatalf("older page: %v", err)
	}
	if len(older) != 2 || !older[1].CreatedAt.Before(page[0].CreatedAt) {
		t.Fatalf("older page did not respect the cursor")
	}
}

func TestStartDirectReusesExistingThread(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	first, err := fx.service.StartDirect(ctx, "alice", "bob", "hey")
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	if first.Kind != domainconv.KindDirect || first.Status != domainconv.StatusActive {
		t.Fatalf("direct thread = %s/%s, want direct/active", first.Kind, first.Status)
	}
	second, err := fx.service.StartDirect(ctx, "bob", "alice", "")
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("direct threads diverged: %s vs %s", first.ID, second.ID)
	}

	if _, err := fx.service.StartDirect(ctx, "alice", "alice", ""); fault.CodeOf(err) != fault.CodeValidation {
		t.Fatalf("self direct code = %v, want validation", fault.CodeOf(err))
	}
}
