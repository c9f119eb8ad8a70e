package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tphakala/alertflow/internal/datastore/v2/entities"
	"github.com/tphakala/alertflow/internal/errors"
	"gorm.io/gorm"
)

type policyRepository struct {
	db *gorm.DB
}

// NewPolicyRepository creates a new PolicyRepository.
func NewPolicyRepository(db *gorm.DB) PolicyRepository {
	return &policyRepository{db: db}
}

func (r *policyRepository) ListPolicies(ctx context.Context, filter PolicyFilter) ([]entities.Policy, error) {
	var policies []entities.Policy
	query := r.db.WithContext(ctx)
	if filter.TenantID != "" {
		query = query.Where("tenant_id = ?", filter.TenantID)
	}
	if filter.Enabled != nil {
		query = query.Where("enabled = ?", *filter.Enabled)
	}
	if err := query.Order("created_at ASC, id ASC").Find(&policies).Error; err != nil {
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}
	return policies, nil
}

// GetPolicy returns ErrPolicyNotFound if the policy does not exist.
func (r *policyRepository) GetPolicy(ctx context.Context, id string) (*entities.Policy, error) {
	var policy entities.Policy
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&policy).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPolicyNotFound
		}
		return nil, fmt.Errorf("failed to get policy %s: %w", id, err)
	}
	return &policy, nil
}

// CreatePolicy assigns an ID when the caller did not supply one.
func (r *policyRepository) CreatePolicy(ctx context.Context, policy *entities.Policy) error {
	if policy.ID == "" {
		policy.ID = uuid.NewString()
	}
	if err := r.db.WithContext(ctx).Create(policy).Error; err != nil {
		return fmt.Errorf("failed to create policy: %w", err)
	}
	return nil
}

func (r *policyRepository) UpdatePolicy(ctx context.Context, policy *entities.Policy) error {
	if policy.ID == "" {
		return fmt.Errorf("failed to update policy: missing policy ID")
	}
	result := r.db.WithContext(ctx).Model(&entities.Policy{}).Where("id = ?", policy.ID).
		Select("*").Omit("id", "created_at").Updates(policy)
	if result.Error != nil {
		return fmt.Errorf("failed to update policy %s: %w", policy.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrPolicyNotFound
	}
	return nil
}

func (r *policyRepository) DeletePolicy(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&entities.Policy{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete policy %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrPolicyNotFound
	}
	return nil
}

func (r *policyRepository) TogglePolicy(ctx context.Context, id string, enabled bool) error {
	result := r.db.WithContext(ctx).Model(&entities.Policy{}).Where("id = ?", id).Update("enabled", enabled)
	if result.Error != nil {
		return fmt.Errorf("failed to toggle policy %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrPolicyNotFound
	}
	return nil
}

func (r *policyRepository) GetEnabledPolicies(ctx context.Context, tenantID string) ([]entities.Policy, error) {
	enabled := true
	return r.ListPolicies(ctx, PolicyFilter{TenantID: tenantID, Enabled: &enabled})
}

func (r *policyRepository) CountPoliciesByName(ctx context.Context, tenantID, name string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&entities.Policy{}).
		Where("tenant_id = ? AND name = ?", tenantID, name).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count policies by name: %w", err)
	}
	return count, nil
}
