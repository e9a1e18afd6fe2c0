package repository

import (
	"context"
	"errors"

	"gift-backend/internal/errs"
	"gift-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound no row matched the lookup
var ErrNotFound = errors.New("record not found")

// NullifierRepository consumed-nullifier set with atomic insert-if-absent
type NullifierRepository interface {
	// Consume records the nullifier. errs.ErrNullifierReused when the nullifier
	// or the commitment hash was already consumed.
	Consume(ctx context.Context, nullifier *models.ConsumedNullifier) error
	GetByNullifier(ctx context.Context, nullifier string) (*models.ConsumedNullifier, error)
}

// nullifierRepository implements NullifierRepository
type nullifierRepository struct {
	db *gorm.DB
}

// NewNullifierRepository creates a new NullifierRepository instance
func NewNullifierRepository(db *gorm.DB) NullifierRepository {
	return &nullifierRepository{db: db}
}

// Consume inserts with ON CONFLICT DO NOTHING over both unique keys; zero rows
// affected means another submission won.
func (r *nullifierRepository) Consume(ctx context.Context, nullifier *models.ConsumedNullifier) error {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(nullifier)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errs.ErrNullifierReused
	}
	return nil
}

// GetByNullifier retrieves a consumed nullifier
func (r *nullifierRepository) GetByNullifier(ctx context.Context, nullifier string) (*models.ConsumedNullifier, error) {
	var record models.ConsumedNullifier
	err := r.db.WithContext(ctx).Where("nullifier = ?", nullifier).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}
