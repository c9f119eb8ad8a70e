package repository

import (
	"context"
	"time"
)

// ThrottleRepository stores per-policy hourly alert counters. Hour starts
// are normalised to UTC.
type ThrottleRepository interface {
	// LastAlertTime returns the most recent recorded alert time for the
	// policy, or nil when none has been recorded.
	LastAlertTime(ctx context.Context, policyID string) (*time.Time, error)
	// HourBucketCount returns the alert count of one hour bucket, 0 if absent.
	HourBucketCount(ctx context.Context, policyID string, hourStart time.Time) (int, error)
	// TryIncrementHourBucket atomically increments the bucket and records at
	// as the last alert time, but only while the bucket count is below limit
	// (limit <= 0 disables the cap) and, when lastAlertCutoff is set, the
	// bucket's last alert is not later than the cutoff. It reports whether
	// the increment happened.
	TryIncrementHourBucket(ctx context.Context, policyID string, hourStart time.Time, limit int, lastAlertCutoff *time.Time, at time.Time) (bool, error)
	// DecrementHourBucket undoes one increment; counts never go below zero.
	DecrementHourBucket(ctx context.Context, policyID string, hourStart time.Time) error
}
