package repository

import (
	"context"

	"github.com/tphakala/alertflow/internal/datastore/v2/entities"
)

// PolicyRepository handles policy CRUD.
type PolicyRepository interface {
	ListPolicies(ctx context.Context, filter PolicyFilter) ([]entities.Policy, error)
	GetPolicy(ctx context.Context, id string) (*entities.Policy, error)
	CreatePolicy(ctx context.Context, policy *entities.Policy) error
	UpdatePolicy(ctx context.Context, policy *entities.Policy) error
	DeletePolicy(ctx context.Context, id string) error
	TogglePolicy(ctx context.Context, id string, enabled bool) error

	// GetEnabledPolicies returns the enabled policies of one tenant, in a
	// stable order.
	GetEnabledPolicies(ctx context.Context, tenantID string) ([]entities.Policy, error)
	CountPoliciesByName(ctx context.Context, tenantID, name string) (int64, error)
}

// PolicyFilter controls policy listing queries.
type PolicyFilter struct {
	TenantID string
	Enabled  *bool
}
