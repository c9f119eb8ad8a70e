package repository

import (
	"context"
	"time"

	"github.com/tphakala/alertflow/internal/datastore/v2/entities"
)

// AlertRepository persists alerts and their lifecycle transitions.
type AlertRepository interface {
	CreateAlert(ctx context.Context, alert *entities.Alert) error
	GetAlert(ctx context.Context, id string) (*entities.Alert, error)
	ListAlerts(ctx context.Context, filter AlertFilter) ([]entities.Alert, int64, error)

	// UpdateDeliveryStatus merges entries into the alert's delivery status map.
	UpdateDeliveryStatus(ctx context.Context, id string, status map[string]string) error
	// SetProviderStatus patches a single provider entry of the delivery
	// status map, leaving the others untouched.
	SetProviderStatus(ctx context.Context, id, providerID, status string) error

	// Acknowledge moves an ACTIVE alert to ACKNOWLEDGED.
	Acknowledge(ctx context.Context, id, by string, at time.Time) (*entities.Alert, error)
	// Resolve moves an ACTIVE or ACKNOWLEDGED alert to RESOLVED.
	Resolve(ctx context.Context, id string, at time.Time) (*entities.Alert, error)
}

// AlertFilter controls alert listing queries.
type AlertFilter struct {
	TenantID string
	PolicyID string
	Status   string
	Limit    int
	Offset   int
}
