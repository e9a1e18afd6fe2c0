package repository

import (
	"context"

	"gift-backend/internal/models"

	"gorm.io/gorm"
)

// GiftAuditRepository append-only lifecycle log
type GiftAuditRepository interface {
	Append(ctx context.Context, event *models.GiftAuditEvent) error
	ListByCommitmentHash(ctx context.Context, commitmentHash string) ([]*models.GiftAuditEvent, error)
}

type giftAuditRepository struct {
	db *gorm.DB
}

// NewGiftAuditRepository creates a new GiftAuditRepository instance
func NewGiftAuditRepository(db *gorm.DB) GiftAuditRepository {
	return &giftAuditRepository{db: db}
}

func (r *giftAuditRepository) Append(ctx context.Context, event *models.GiftAuditEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// ListByCommitmentHash oldest first
func (r *giftAuditRepository) ListByCommitmentHash(ctx context.Context, commitmentHash string) ([]*models.GiftAuditEvent, error) {
	var events []*models.GiftAuditEvent
	err := r.db.WithContext(ctx).
		Where("commitment_hash = ?", commitmentHash).
		Order("created_at ASC").
		Find(&events).Error
	return events, err
}
