package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tphakala/alertflow/internal/datastore/v2/entities"
	"github.com/tphakala/alertflow/internal/errors"
	"gorm.io/gorm"
)

type providerRepository struct {
	db *gorm.DB
}

// NewProviderRepository creates a new ProviderRepository.
func NewProviderRepository(db *gorm.DB) ProviderRepository {
	return &providerRepository{db: db}
}

func (r *providerRepository) ListProviders(ctx context.Context, tenantID string) ([]entities.Provider, error) {
	var providers []entities.Provider
	query := r.db.WithContext(ctx)
	if tenantID != "" {
		query = query.Where("tenant_id = ?", tenantID)
	}
	if err := query.Order("created_at ASC, id ASC").Find(&providers).Error; err != nil {
		return nil, fmt.Errorf("failed to list providers: %w", err)
	}
	return providers, nil
}

func (r *providerRepository) GetProvider(ctx context.Context, id string) (*entities.Provider, error) {
	var provider entities.Provider
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&provider).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProviderNotFound
		}
		return nil, fmt.Errorf("failed to get provider %s: %w", id, err)
	}
	return &provider, nil
}

func (r *providerRepository) CreateProvider(ctx context.Context, provider *entities.Provider) error {
	if provider.ID == "" {
		provider.ID = uuid.NewString()
	}
	if err := r.db.WithContext(ctx).Create(provider).Error; err != nil {
		return fmt.Errorf("failed to create provider: %w", err)
	}
	return nil
}

func (r *providerRepository) DeleteProvider(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&entities.Provider{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete provider %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrProviderNotFound
	}
	return nil
}

func (r *providerRepository) GetProvidersByIDs(ctx context.Context, tenantID string, ids []string) ([]entities.Provider, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var providers []entities.Provider
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id IN ?", tenantID, ids).
		Find(&providers).Error; err != nil {
		return nil, fmt.Errorf("failed to load providers: %w", err)
	}
	return providers, nil
}
