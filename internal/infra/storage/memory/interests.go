package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	domaininterest "vinci/internal/domain/interest"
)

// InterestRepository keys records by the (post, interested) pair.
type InterestRepository struct {
	mu     sync.RWMutex
	items  map[string]*domaininterest.Record
	byPair map[string]string // postID+"|"+interestedID -> record id
}

func NewInterestRepository() *InterestRepository {
	return &InterestRepository{
		items:  make(map[string]*domaininterest.Record),
		byPair: make(map[string]string),
	}
}

func interestPairKey(postID, interestedID string) string {
	return postID + "|" + interestedID
}

func cloneInterest(rec *domaininterest.Record) *domaininterest.Record {
	out := *rec
	return &out
}

func (r *InterestRepository) ByID(ctx context.Context, id string) (*domaininterest.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.items[id]
	if !ok {
		return nil, domaininterest.ErrNotFound
	}
	return cloneInterest(rec), nil
}

func (r *InterestRepository) ByPostAndUser(ctx context.Context, postID, interestedID string) (*domaininterest.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byPair[interestPairKey(postID, interestedID)]
	if !ok {
		return nil, domaininterest.ErrNotFound
	}
	return cloneInterest(r.items[id]), nil
}

func (r *InterestRepository) UpsertPending(ctx context.Context, params domaininterest.UpsertParams) (*domaininterest.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byPair[interestPairKey(params.PostID, params.InterestedID)]; ok {
		rec := r.items[id]
		// An accepted record is never downgraded by a re-request.
		if rec.Status != domaininterest.StatusAccepted {
			rec.Status = domaininterest.StatusPending
			rec.UpdatedAt = params.At
		}
		rec.ConversationID = params.ConversationID
		return cloneInterest(rec), nil
	}
	return r.insert(params, domaininterest.StatusPending), nil
}

func (r *InterestRepository) Accept(ctx context.Context, params domaininterest.UpsertParams) (*domaininterest.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byPair[interestPairKey(params.PostID, params.InterestedID)]; ok {
		rec := r.items[id]
		rec.Status = domaininterest.StatusAccepted
		rec.ConversationID = params.ConversationID
		rec.UpdatedAt = params.At
		return cloneInterest(rec), nil
	}
	return r.insert(params, domaininterest.StatusAccepted), nil
}

func (r *InterestRepository) insert(params domaininterest.UpsertParams, status domaininterest.Status) *domaininterest.Record {
	rec := &domaininterest.Record{
		ID:             uuid.NewString(),
		PostID:         params.PostID,
		OwnerID:        params.OwnerID,
		InterestedID:   params.InterestedID,
		Status:         status,
		ConversationID: params.ConversationID,
		CreatedAt:      params.At,
		UpdatedAt:      params.At,
	}
	r.items[rec.ID] = rec
	r.byPair[interestPairKey(rec.PostID, rec.InterestedID)] = rec.ID
	return cloneInterest(rec)
}

func (r *InterestRepository) Reject(ctx context.Context, id string, at time.Time) (*domaininterest.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.items[id]
	if !ok {
		return nil, domaininterest.ErrNotFound
	}
	rec.Status = domaininterest.StatusRejected
	rec.UpdatedAt = at
	return cloneInterest(rec), nil
}

func (r *InterestRepository) ListByPost(ctx context.Context, postID string, status domaininterest.Status) ([]*domaininterest.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*domaininterest.Record, 0)
	for _, rec := range r.items {
		if rec.PostID == postID && rec.Status == status {
			result = append(result, cloneInterest(rec))
		}
	}
	return result, nil
}

var _ domaininterest.Repository = (*InterestRepository)(nil)
