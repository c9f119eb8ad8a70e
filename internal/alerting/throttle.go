package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/tphakala/alertflow/internal/datastore/v2/entities"
)

// ThrottleStore persists per-policy hourly counters and the most recent
// alert time. Implementations must make TryIncrementHourBucket atomic.
type ThrottleStore interface {
	LastAlertTime(ctx context.Context, policyID string) (*time.Time, error)
	HourBucketCount(ctx context.Context, policyID string, hourStart time.Time) (int, error)
	TryIncrementHourBucket(ctx context.Context, policyID string, hourStart time.Time, limit int, lastAlertCutoff *time.Time, at time.Time) (bool, error)
	DecrementHourBucket(ctx context.Context, policyID string, hourStart time.Time) error
}

// Throttler applies a policy's minimum interval and hourly cap.
type Throttler struct {
	store ThrottleStore
}

// NewThrottler creates a Throttler backed by store.
func NewThrottler(store ThrottleStore) *Throttler {
	return &Throttler{store: store}
}

// HourStart returns the UTC hour bucket containing t.
func HourStart(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}

// ShouldThrottle is a read-only check of both limits. It does not reserve
// anything, so two callers can both see false; Reserve is the gate that
// cannot be overshot.
func (t *Throttler) ShouldThrottle(ctx context.Context, policy *entities.Policy, now time.Time) (bool, error) {
	if !policy.RateLimited() {
		return false, nil
	}

	if policy.ThrottleMinutes > 0 {
		last, err := t.store.LastAlertTime(ctx, policy.ID)
		if err != nil {
			return false, fmt.Errorf("failed to read last alert time: %w", err)
		}
		if last != nil && now.Sub(*last) < minInterval(policy) {
			return true, nil
		}
	}

	if policy.MaxAlertsPerHour > 0 {
		count, err := t.store.HourBucketCount(ctx, policy.ID, HourStart(now))
		if err != nil {
			return false, fmt.Errorf("failed to read hour bucket: %w", err)
		}
		if count >= policy.MaxAlertsPerHour {
			return true, nil
		}
	}
	return false, nil
}

// Reserve atomically claims one slot in the current hour bucket and records
// now as the last alert time. It returns false when the hourly cap is
// reached or another alert fired inside the minimum interval within the
// same bucket. Policies without limits always succeed without touching the
// store.
func (t *Throttler) Reserve(ctx context.Context, policy *entities.Policy, now time.Time) (bool, error) {
	if !policy.RateLimited() {
		return true, nil
	}
	var cutoff *time.Time
	if policy.ThrottleMinutes > 0 {
		c := now.Add(-minInterval(policy))
		cutoff = &c
	}
	ok, err := t.store.TryIncrementHourBucket(ctx, policy.ID, HourStart(now), policy.MaxAlertsPerHour, cutoff, now)
	if err != nil {
		return false, fmt.Errorf("failed to reserve throttle slot: %w", err)
	}
	return ok, nil
}

// Release gives back a slot taken by Reserve. The recorded last alert time
// is left in place.
func (t *Throttler) Release(ctx context.Context, policy *entities.Policy, now time.Time) error {
	if !policy.RateLimited() {
		return nil
	}
	if err := t.store.DecrementHourBucket(ctx, policy.ID, HourStart(now)); err != nil {
		return fmt.Errorf("failed to release throttle slot: %w", err)
	}
	return nil
}

func minInterval(policy *entities.Policy) time.Duration {
	return time.Duration(policy.ThrottleMinutes) * time.Minute
}
