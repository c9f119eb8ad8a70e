package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/tphakala/alertflow/internal/datastore/v2/entities"
	"gorm.io/gorm"
)

type suppressionRepository struct {
	db *gorm.DB
}

// NewSuppressionRepository creates a new SuppressionRepository.
func NewSuppressionRepository(db *gorm.DB) SuppressionRepository {
	return &suppressionRepository{db: db}
}

func (r *suppressionRepository) ActiveSuppression(ctx context.Context, policyID, key string, now time.Time) (*entities.SuppressionRecord, error) {
	var rec entities.SuppressionRecord
	result := r.db.WithContext(ctx).
		Where("policy_id = ? AND suppression_key = ? AND suppressed_until > ?", policyID, key, now.UTC()).
		Order("suppressed_until DESC").
		Limit(1).
		Find(&rec)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to look up suppression for policy %s: %w", policyID, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &rec, nil
}

func (r *suppressionRepository) CreateSuppression(ctx context.Context, rec *entities.SuppressionRecord, now time.Time) error {
	rec.SuppressedUntil = rec.SuppressedUntil.UTC()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("policy_id = ? AND suppression_key = ? AND suppressed_until > ?",
			rec.PolicyID, rec.SuppressionKey, now.UTC()).
			Delete(&entities.SuppressionRecord{}).Error; err != nil {
			return fmt.Errorf("failed to replace active suppression: %w", err)
		}
		if err := tx.Create(rec).Error; err != nil {
			return fmt.Errorf("failed to create suppression: %w", err)
		}
		return nil
	})
}

func (r *suppressionRepository) ListSuppressions(ctx context.Context, filter SuppressionFilter) ([]entities.SuppressionRecord, error) {
	var recs []entities.SuppressionRecord
	query := r.db.WithContext(ctx)
	if len(filter.PolicyIDs) > 0 {
		query = query.Where("policy_id IN ?", filter.PolicyIDs)
	}
	if filter.ActiveAt != nil {
		query = query.Where("suppressed_until > ?", filter.ActiveAt.UTC())
	}
	if err := query.Order("suppressed_until DESC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list suppressions: %w", err)
	}
	return recs, nil
}

func (r *suppressionRepository) DeleteSuppression(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&entities.SuppressionRecord{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete suppression %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrSuppressionNotFound
	}
	return nil
}
