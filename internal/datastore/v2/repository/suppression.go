package repository

import (
	"context"
	"time"

	"github.com/tphakala/alertflow/internal/datastore/v2/entities"
)

// SuppressionRepository stores suppression records. A record is active
// while SuppressedUntil is after the reference time.
type SuppressionRepository interface {
	// ActiveSuppression returns the active record for the pair, or nil.
	ActiveSuppression(ctx context.Context, policyID, key string, now time.Time) (*entities.SuppressionRecord, error)
	// CreateSuppression stores rec, replacing any record that is active for
	// the same pair at now.
	CreateSuppression(ctx context.Context, rec *entities.SuppressionRecord, now time.Time) error
	ListSuppressions(ctx context.Context, filter SuppressionFilter) ([]entities.SuppressionRecord, error)
	DeleteSuppression(ctx context.Context, id uint) error
}

// SuppressionFilter controls suppression listing. ActiveAt limits results
// to records active at that time.
type SuppressionFilter struct {
	PolicyIDs []string
	ActiveAt  *time.Time
}
