package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/tphakala/alertflow/internal/datastore/v2/entities"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type throttleRepository struct {
	db *gorm.DB
}

// NewThrottleRepository creates a SQL-backed ThrottleRepository.
func NewThrottleRepository(db *gorm.DB) ThrottleRepository {
	return &throttleRepository{db: db}
}

func (r *throttleRepository) LastAlertTime(ctx context.Context, policyID string) (*time.Time, error) {
	var bucket entities.ThrottleBucket
	result := r.db.WithContext(ctx).
		Where("policy_id = ? AND last_alert_at IS NOT NULL", policyID).
		Order("last_alert_at DESC").
		Limit(1).
		Find(&bucket)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get last alert time for policy %s: %w", policyID, result.Error)
	}
	if result.RowsAffected == 0 || bucket.LastAlertAt == nil {
		return nil, nil
	}
	last := bucket.LastAlertAt.UTC()
	return &last, nil
}

func (r *throttleRepository) HourBucketCount(ctx context.Context, policyID string, hourStart time.Time) (int, error) {
	var bucket entities.ThrottleBucket
	result := r.db.WithContext(ctx).
		Where("policy_id = ? AND hour_start = ?", policyID, hourStart.UTC()).
		Limit(1).
		Find(&bucket)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to get hour bucket for policy %s: %w", policyID, result.Error)
	}
	return bucket.AlertCount, nil
}

// TryIncrementHourBucket ensures the bucket row exists, then applies a
// single conditional UPDATE. The database evaluates the cap and cutoff
// against the row it modifies, so concurrent callers cannot overshoot.
func (r *throttleRepository) TryIncrementHourBucket(ctx context.Context, policyID string, hourStart time.Time, limit int, lastAlertCutoff *time.Time, at time.Time) (bool, error) {
	hourStart = hourStart.UTC()
	db := r.db.WithContext(ctx)

	seed := entities.ThrottleBucket{PolicyID: policyID, HourStart: hourStart}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "policy_id"}, {Name: "hour_start"}},
		DoNothing: true,
	}).Create(&seed).Error; err != nil {
		return false, fmt.Errorf("failed to create hour bucket for policy %s: %w", policyID, err)
	}

	query := db.Model(&entities.ThrottleBucket{}).
		Where("policy_id = ? AND hour_start = ?", policyID, hourStart)
	if limit > 0 {
		query = query.Where("alert_count < ?", limit)
	}
	if lastAlertCutoff != nil {
		query = query.Where("(last_alert_at IS NULL OR last_alert_at <= ?)", lastAlertCutoff.UTC())
	}
	result := query.Updates(map[string]any{
		"alert_count":   gorm.Expr("alert_count + ?", 1),
		"last_alert_at": at.UTC(),
	})
	if result.Error != nil {
		return false, fmt.Errorf("failed to increment hour bucket for policy %s: %w", policyID, result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *throttleRepository) DecrementHourBucket(ctx context.Context, policyID string, hourStart time.Time) error {
	result := r.db.WithContext(ctx).Model(&entities.ThrottleBucket{}).
		Where("policy_id = ? AND hour_start = ? AND alert_count > 0", policyID, hourStart.UTC()).
		Update("alert_count", gorm.Expr("alert_count - ?", 1))
	if result.Error != nil {
		return fmt.Errorf("failed to decrement hour bucket for policy %s: %w", policyID, result.Error)
	}
	return nil
}
