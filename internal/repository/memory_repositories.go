package repository

import (
	"context"
	"sync"

	"gift-backend/internal/errs"
	"gift-backend/internal/models"
)

// MemoryNullifierRepository process-local nullifier set
type MemoryNullifierRepository struct {
	mu          sync.Mutex
	records     map[string]models.ConsumedNullifier
	commitments map[string]struct{}
}

func NewMemoryNullifierRepository() *MemoryNullifierRepository {
	return &MemoryNullifierRepository{
		records:     make(map[string]models.ConsumedNullifier),
		commitments: make(map[string]struct{}),
	}
}

func (r *MemoryNullifierRepository) Consume(_ context.Context, nullifier *models.ConsumedNullifier) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.records[nullifier.Nullifier]; exists {
		return errs.ErrNullifierReused
	}
	if _, exists := r.commitments[nullifier.CommitmentHash]; exists {
		return errs.ErrNullifierReused
	}
	r.records[nullifier.Nullifier] = *nullifier
	r.commitments[nullifier.CommitmentHash] = struct{}{}
	return nil
}

func (r *MemoryNullifierRepository) GetByNullifier(_ context.Context, nullifier string) (*models.ConsumedNullifier, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[nullifier]
	if !ok {
		return nil, ErrNotFound
	}
	return &record, nil
}

// MemoryClaimRepository process-local claim registry
type MemoryClaimRepository struct {
	mu     sync.Mutex
	claims map[string]models.GiftClaim
}

func NewMemoryClaimRepository() *MemoryClaimRepository {
	return &MemoryClaimRepository{claims: make(map[string]models.GiftClaim)}
}

func (r *MemoryClaimRepository) Record(_ context.Context, claim *models.GiftClaim) (*models.GiftClaim, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.claims[claim.CommitmentHash]; ok {
		return &existing, false, nil
	}
	r.claims[claim.CommitmentHash] = *claim
	stored := *claim
	return &stored, true, nil
}

func (r *MemoryClaimRepository) GetByCommitmentHash(_ context.Context, commitmentHash string) (*models.GiftClaim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	claim, ok := r.claims[commitmentHash]
	if !ok {
		return nil, ErrNotFound
	}
	return &claim, nil
}

// MemoryGiftAuditRepository process-local audit log
type MemoryGiftAuditRepository struct {
	mu     sync.Mutex
	events []models.GiftAuditEvent
}

func NewMemoryGiftAuditRepository() *MemoryGiftAuditRepository {
	return &MemoryGiftAuditRepository{}
}

func (r *MemoryGiftAuditRepository) Append(_ context.Context, event *models.GiftAuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *event)
	return nil
}

func (r *MemoryGiftAuditRepository) ListByCommitmentHash(_ context.Context, commitmentHash string) ([]*models.GiftAuditEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.GiftAuditEvent
	for i := range r.events {
		if r.events[i].CommitmentHash == commitmentHash {
			e := r.events[i]
			out = append(out, &e)
		}
	}
	return out, nil
}
