// Package redisstore keeps throttle counters in Redis so several engine
// instances share one hourly cap and minimum interval per policy.
package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tphakala/alertflow/internal/conf"
	"github.com/tphakala/alertflow/internal/errors"
)

const (
	defaultKeyPrefix = "alertflow:throttle"
	// bucketTTL keeps an hour bucket around long enough for reads made
	// shortly after the hour rolls over.
	bucketTTL = 2 * time.Hour
)

// tryIncrementScript claims one slot in an hour bucket.
//
//	KEYS[1] bucket counter, KEYS[2] last alert time (unix ms)
//	ARGV[1] limit (0 = none), ARGV[2] cutoff ms (-1 = none), ARGV[3] at ms,
//	ARGV[4] bucket ttl ms, ARGV[5] last-alert ttl ms
var tryIncrementScript = redis.NewScript(`
local limit = tonumber(ARGV[1])
local cutoff = tonumber(ARGV[2])
if limit > 0 then
  local count = tonumber(redis.call('GET', KEYS[1]) or '0')
  if count >= limit then return 0 end
end
if cutoff >= 0 then
  local last = redis.call('GET', KEYS[2])
  if last and tonumber(last) > cutoff then return 0 end
end
redis.call('INCR', KEYS[1])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
redis.call('SET', KEYS[2], ARGV[3], 'PX', ARGV[5])
return 1
`)

// decrementScript never takes a counter below zero.
var decrementScript = redis.NewScript(`
local count = tonumber(redis.call('GET', KEYS[1]) or '0')
if count > 0 then return redis.call('DECR', KEYS[1]) end
return 0
`)

// ThrottleStore implements the engine's throttle store on Redis.
type ThrottleStore struct {
	client *redis.Client
	prefix string
}

// Option configures a ThrottleStore.
type Option func(*ThrottleStore)

// WithKeyPrefix namespaces all keys.
func WithKeyPrefix(prefix string) Option {
	return func(s *ThrottleStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// New wraps an existing client.
func New(client *redis.Client, opts ...Option) *ThrottleStore {
	s := &ThrottleStore{client: client, prefix: defaultKeyPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect creates a client from settings and pings it.
func Connect(ctx context.Context, cfg conf.RedisSettings) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Newf("failed to connect to redis at %s: %w", cfg.Addr, err).
			Component("redisstore").
			Category(errors.CategoryNetwork).
			Build()
	}
	return client, nil
}

func (s *ThrottleStore) bucketKey(policyID string, hourStart time.Time) string {
	return fmt.Sprintf("%s:%s:%d", s.prefix, policyID, hourStart.UTC().Unix())
}

func (s *ThrottleStore) lastKey(policyID string) string {
	return fmt.Sprintf("%s:%s:last", s.prefix, policyID)
}

// LastAlertTime returns nil when the policy has not fired recently.
func (s *ThrottleStore) LastAlertTime(ctx context.Context, policyID string) (*time.Time, error) {
	v, err := s.client.Get(ctx, s.lastKey(policyID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read last alert time for policy %s: %w", policyID, err)
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt last alert time for policy %s: %w", policyID, err)
	}
	t := time.UnixMilli(ms).UTC()
	return &t, nil
}

func (s *ThrottleStore) HourBucketCount(ctx context.Context, policyID string, hourStart time.Time) (int, error) {
	n, err := s.client.Get(ctx, s.bucketKey(policyID, hourStart)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read hour bucket for policy %s: %w", policyID, err)
	}
	return n, nil
}

// TryIncrementHourBucket runs the cap and cutoff checks and the increment
// in one script, so concurrent callers cannot overshoot. Unlike the SQL
// store the cutoff is checked against the policy-wide last alert time.
func (s *ThrottleStore) TryIncrementHourBucket(ctx context.Context, policyID string, hourStart time.Time, limit int, lastAlertCutoff *time.Time, at time.Time) (bool, error) {
	cutoff := int64(-1)
	lastTTL := bucketTTL
	if lastAlertCutoff != nil {
		cutoff = lastAlertCutoff.UnixMilli()
		lastTTL += at.Sub(*lastAlertCutoff)
	}

	res, err := tryIncrementScript.Run(ctx, s.client,
		[]string{s.bucketKey(policyID, hourStart), s.lastKey(policyID)},
		limit, cutoff, at.UnixMilli(), bucketTTL.Milliseconds(), lastTTL.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("failed to increment hour bucket for policy %s: %w", policyID, err)
	}
	return res == 1, nil
}

func (s *ThrottleStore) DecrementHourBucket(ctx context.Context, policyID string, hourStart time.Time) error {
	if err := decrementScript.Run(ctx, s.client, []string{s.bucketKey(policyID, hourStart)}).Err(); err != nil {
		return fmt.Errorf("failed to decrement hour bucket for policy %s: %w", policyID, err)
	}
	return nil
}
