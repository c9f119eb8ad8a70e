package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tphakala/alertflow/internal/datastore/v2/entities"
	"github.com/tphakala/alertflow/internal/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type alertRepository struct {
	db *gorm.DB
}

// NewAlertRepository creates a new AlertRepository.
func NewAlertRepository(db *gorm.DB) AlertRepository {
	return &alertRepository{db: db}
}

func (r *alertRepository) CreateAlert(ctx context.Context, alert *entities.Alert) error {
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	if alert.Status == "" {
		alert.Status = entities.AlertStatusActive
	}
	if alert.DeliveryStatus == nil {
		alert.DeliveryStatus = map[string]string{}
	}
	if err := r.db.WithContext(ctx).Create(alert).Error; err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

func (r *alertRepository) GetAlert(ctx context.Context, id string) (*entities.Alert, error) {
	var alert entities.Alert
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&alert).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlertNotFound
		}
		return nil, fmt.Errorf("failed to get alert %s: %w", id, err)
	}
	return &alert, nil
}

func (r *alertRepository) ListAlerts(ctx context.Context, filter AlertFilter) ([]entities.Alert, int64, error) {
	var items []entities.Alert
	var total int64

	scope := func(db *gorm.DB) *gorm.DB {
		if filter.TenantID != "" {
			db = db.Where("tenant_id = ?", filter.TenantID)
		}
		if filter.PolicyID != "" {
			db = db.Where("policy_id = ?", filter.PolicyID)
		}
		if filter.Status != "" {
			db = db.Where("status = ?", filter.Status)
		}
		return db
	}

	if err := r.db.WithContext(ctx).Model(&entities.Alert{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count alerts: %w", err)
	}

	query := r.db.WithContext(ctx).Scopes(scope).Order("triggered_at DESC, id ASC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	if err := query.Find(&items).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list alerts: %w", err)
	}
	return items, total, nil
}

// UpdateDeliveryStatus merges status into the stored map. A queued entry
// never replaces a final outcome a mail worker already recorded.
func (r *alertRepository) UpdateDeliveryStatus(ctx context.Context, id string, status map[string]string) error {
	return r.patchDeliveryStatus(ctx, id, func(current map[string]string) {
		for providerID, s := range status {
			if s == entities.DeliveryQueued && isFinalDelivery(current[providerID]) {
				continue
			}
			current[providerID] = s
		}
	})
}

// SetProviderStatus locks the row so concurrent patches from the mail
// workers do not overwrite each other.
func (r *alertRepository) SetProviderStatus(ctx context.Context, id, providerID, status string) error {
	return r.patchDeliveryStatus(ctx, id, func(current map[string]string) {
		current[providerID] = status
	})
}

func (r *alertRepository) patchDeliveryStatus(ctx context.Context, id string, apply func(map[string]string)) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var alert entities.Alert
		if err := tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
			Where("id = ?", id).First(&alert).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAlertNotFound
			}
			return fmt.Errorf("failed to load alert %s: %w", id, err)
		}
		if alert.DeliveryStatus == nil {
			alert.DeliveryStatus = map[string]string{}
		}
		apply(alert.DeliveryStatus)
		if err := tx.Model(&alert).Select("DeliveryStatus").
			Updates(&entities.Alert{DeliveryStatus: alert.DeliveryStatus}).Error; err != nil {
			return fmt.Errorf("failed to update delivery status for alert %s: %w", id, err)
		}
		return nil
	})
}

func isFinalDelivery(status string) bool {
	return status == entities.DeliverySent || status == entities.DeliveryFailed
}

func (r *alertRepository) Acknowledge(ctx context.Context, id, by string, at time.Time) (*entities.Alert, error) {
	return r.transition(ctx, id, []string{entities.AlertStatusActive}, map[string]any{
		"status":          entities.AlertStatusAcknowledged,
		"acknowledged_at": at,
		"acknowledged_by": by,
	})
}

func (r *alertRepository) Resolve(ctx context.Context, id string, at time.Time) (*entities.Alert, error) {
	return r.transition(ctx, id, []string{entities.AlertStatusActive, entities.AlertStatusAcknowledged}, map[string]any{
		"status":      entities.AlertStatusResolved,
		"resolved_at": at,
	})
}

// transition applies updates only when the alert is in one of the from
// states. The status check is part of the UPDATE so concurrent transitions
// cannot both succeed.
func (r *alertRepository) transition(ctx context.Context, id string, from []string, updates map[string]any) (*entities.Alert, error) {
	result := r.db.WithContext(ctx).Model(&entities.Alert{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to transition alert %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		// Distinguish a missing alert from a disallowed transition.
		if _, err := r.GetAlert(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrInvalidTransition
	}
	return r.GetAlert(ctx, id)
}
