package chat

import (
	"context"
	"log/slog"
	"time"

	"vinci/internal/app/dto"
	domaininterest "vinci/internal/domain/interest"
	domainpost "vinci/internal/domain/post"
	"vinci/internal/infra/realtime"
)

// SnapshotRefresher recomputes a post's cached pending/accepted id lists from
// the interest ledger and republishes the snapshot. The lists are a derived
// read-model: always rebuilt wholesale, never patched incrementally.
type SnapshotRefresher struct {
	Interests domaininterest.Repository
	Posts     domainpost.Store
	Fanout    realtime.Publisher
	Logger    *slog.Logger
}

// Refresh rebuilds the lists for postID, persists them on the post's cached
// fields, and republishes the snapshot to the post room, the global feed, and
// the author's personal channel.
func (r *SnapshotRefresher) Refresh(ctx context.Context, postID string) error {
	pendingIDs, err := r.interestedIDs(ctx, postID, domaininterest.StatusPending)
	if err != nil {
		return err
	}
	acceptedIDs, err := r.interestedIDs(ctx, postID, domaininterest.StatusAccepted)
	if err != nil {
		return err
	}
	if err := r.Posts.SetInterestSnapshot(ctx, postID, pendingIDs, acceptedIDs); err != nil {
		return err
	}

	pst, err := r.Posts.GetPost(ctx, postID)
	if err != nil {
		return err
	}
	if r.Fanout == nil {
		return nil
	}
	event := realtime.Event{
		Type: realtime.EventPostSnapshot,
		Payload: dto.PostSnapshot{
			PostID:      pst.ID,
			AuthorID:    pst.AuthorID,
			Title:       pst.Title,
			Category:    pst.Category,
			PendingIDs:  pendingIDs,
			AcceptedIDs: acceptedIDs,
		},
		At: time.Now().UTC(),
	}
	r.Fanout.Publish(ctx, realtime.PostChannel(postID), event)
	r.Fanout.Publish(ctx, realtime.Feed, event)
	r.Fanout.Publish(ctx, realtime.UserChannel(pst.AuthorID), event)
	return nil
}

func (r *SnapshotRefresher) interestedIDs(ctx context.Context, postID string, status domaininterest.Status) ([]string, error) {
	records, err := r.Interests.ListByPost(ctx, postID, status)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.InterestedID)
	}
	return ids, nil
}
