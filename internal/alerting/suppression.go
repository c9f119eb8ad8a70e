package alerting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tphakala/alertflow/internal/datastore/v2/entities"
)

// SuppressionStore looks up active suppression records.
type SuppressionStore interface {
	ActiveSuppression(ctx context.Context, policyID, key string, now time.Time) (*entities.SuppressionRecord, error)
}

// SuppressionKey derives the key for a policy and event: the policy id
// followed by field:value for each of user_id, ip_address, event_type and
// service_name present at the top level of the event.
func SuppressionKey(policyID string, event map[string]any) string {
	parts := make([]string, 0, len(SuppressionKeyFields)+1)
	parts = append(parts, policyID)
	for _, field := range SuppressionKeyFields {
		if v, ok := event[field]; ok {
			parts = append(parts, field+":"+stringify(v))
		}
	}
	return strings.Join(parts, suppressionKeySeparator)
}

// Suppressor checks suppression records. It never writes.
type Suppressor struct {
	store SuppressionStore
}

// NewSuppressor creates a Suppressor backed by store.
func NewSuppressor(store SuppressionStore) *Suppressor {
	return &Suppressor{store: store}
}

// IsSuppressed reports whether an unexpired record exists for the policy
// and the event's suppression key.
func (s *Suppressor) IsSuppressed(ctx context.Context, policy *entities.Policy, event map[string]any, now time.Time) (bool, error) {
	key := SuppressionKey(policy.ID, event)
	rec, err := s.store.ActiveSuppression(ctx, policy.ID, key, now)
	if err != nil {
		return false, fmt.Errorf("failed to look up suppression: %w", err)
	}
	return rec != nil && rec.SuppressedUntil.After(now), nil
}
