package repository

import (
	"context"
	"errors"

	"gift-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ClaimRepository claim registry keyed by commitment hash
type ClaimRepository interface {
	// Record stores the claim if none exists and returns the stored claim.
	// created is false when an earlier claim already owned the commitment hash.
	Record(ctx context.Context, claim *models.GiftClaim) (stored *models.GiftClaim, created bool, err error)
	GetByCommitmentHash(ctx context.Context, commitmentHash string) (*models.GiftClaim, error)
}

type claimRepository struct {
	db *gorm.DB
}

// NewClaimRepository creates a new ClaimRepository instance
func NewClaimRepository(db *gorm.DB) ClaimRepository {
	return &claimRepository{db: db}
}

func (r *claimRepository) Record(ctx context.Context, claim *models.GiftClaim) (*models.GiftClaim, bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "commitment_hash"}}, DoNothing: true}).
		Create(claim)
	if result.Error != nil {
		return nil, false, result.Error
	}
	if result.RowsAffected == 1 {
		return claim, true, nil
	}

	existing, err := r.GetByCommitmentHash(ctx, claim.CommitmentHash)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *claimRepository) GetByCommitmentHash(ctx context.Context, commitmentHash string) (*models.GiftClaim, error) {
	var claim models.GiftClaim
	err := r.db.WithContext(ctx).Where("commitment_hash = ?", commitmentHash).First(&claim).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &claim, nil
}
