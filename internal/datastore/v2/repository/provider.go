package repository

import (
	"context"

	"github.com/tphakala/alertflow/internal/datastore/v2/entities"
)

// ProviderRepository handles delivery provider records.
type ProviderRepository interface {
	ListProviders(ctx context.Context, tenantID string) ([]entities.Provider, error)
	GetProvider(ctx context.Context, id string) (*entities.Provider, error)
	CreateProvider(ctx context.Context, provider *entities.Provider) error
	DeleteProvider(ctx context.Context, id string) error

	// GetProvidersByIDs returns the providers among ids that belong to
	// tenantID. Unknown IDs and other tenants' providers are left out.
	GetProvidersByIDs(ctx context.Context, tenantID string, ids []string) ([]entities.Provider, error)
}
