package memory

import (
	"context"
	"testing"
	"time"

	domaininterest "vinci/internal/domain/interest"
)

func TestUpsertPendingLifecycle(t *testing.T) {
	repo := NewInterestRepository()
	ctx := context.Background()
	now := time.Now().UTC()
	params := domaininterest.UpsertParams{
		PostID:         "post-1",
		OwnerID:        "owner",
		InterestedID:   "requester",
		ConversationID: "c1",
		At:             now,
	}

	first, err := repo.UpsertPending(ctx, params)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if first.Status != domaininterest.StatusPending {
		t.Fatalf("status = %s, want pending", first.Status)
	}

	// Upserting the same pair reuses the record.
	second, err := repo.UpsertPending(ctx, params)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("upsert created a second record for the pair")
	}

	// A rejected record resets back to pending.
	if _, err := repo.Reject(ctx, first.ID, now.Add(time.Minute)); err != nil {
		t.Fatalf("reject: %v", err)
	}
	reset, err := repo.UpsertPending(ctx, params)
	if err != nil {
		t.Fatalf("upsert after reject: %v", err)
	}
	if reset.ID != first.ID || reset.Status != domaininterest.StatusPending {
		t.Fatalf("rejected record not reset: %+v", reset)
	}

	// An accepted record never downgrades.
	if _, err := repo.Accept(ctx, params); err != nil {
		t.Fatalf("accept: %v", err)
	}
	kept, err := repo.UpsertPending(ctx, params)
	if err != nil {
		t.Fatalf("upsert after accept: %v", err)
	}
	if kept.Status != domaininterest.StatusAccepted {
		t.Fatalf("accepted record downgraded to %s", kept.Status)
	}
}

func TestListByPostFiltersStatus(t *testing.T) {
	repo := NewInterestRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := repo.UpsertPending(ctx, domaininterest.UpsertParams{PostID: "post-1", OwnerID: "owner", InterestedID: "a", At: now}); err != nil {
		t.Fatalf("upsert a: %v", err)
	}
	if _, err := repo.Accept(ctx, domaininterest.UpsertParams{PostID: "post-1", OwnerID: "owner", InterestedID: "b", At: now}); err != nil {
		t.Fatalf("accept b: %v", err)
	}
	if _, err := repo.UpsertPending(ctx, domaininterest.UpsertParams{PostID: "post-2", OwnerID: "owner", InterestedID: "c", At: now}); err != nil {
		t.Fatalf("upsert c: %v", err)
	}

	pending, err := repo.ListByPost(ctx, "post-1", domaininterest.StatusPending)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].InterestedID != "a" {
		t.Fatalf("pending = %+v", pending)
	}
	accepted, err := repo.ListByPost(ctx, "post-1", domaininterest.StatusAccepted)
	if err != nil {
		t.Fatalf("list accepted: %v", err)
	}
	if len(accepted) != 1 || accepted[0].InterestedID != "b" {
		t.Fatalf("accepted = %+v", accepted)
	}
}
