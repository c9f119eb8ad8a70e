package alerting

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/tphakala/alertflow/internal/datastore/v2/entities"
	"github.com/tphakala/alertflow/internal/datastore/v2/repository"
	"github.com/tphakala/alertflow/internal/delivery"
)

var errStoreDown = errors.New("store unavailable")

// staticPolicies serves a fixed policy list and counts loads.
type staticPolicies struct {
	mu       sync.Mutex
	policies map[string][]entities.Policy
	loads    int
	err      error
}

func newStaticPolicies(policies ...entities.Policy) *staticPolicies {
	s := &staticPolicies{policies: make(map[string][]entities.Policy)}
	for i := range policies {
		p := policies[i]
		s.policies[p.TenantID] = append(s.policies[p.TenantID], p)
	}
	return s
}

func (s *staticPolicies) GetEnabledPolicies(_ context.Context, tenantID string) ([]entities.Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if s.err != nil {
		return nil, s.err
	}
	var out []entities.Policy
	for _, p := range s.policies[tenantID] {
		if p.Enabled {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *staticPolicies) set(tenantID string, policies ...entities.Policy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies[tenantID] = policies
}

func (s *staticPolicies) loadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads
}

type bucketKey struct {
	policyID  string
	hourStart time.Time
}

type bucket struct {
	count int
	last  *time.Time
}

// memThrottle mirrors the conditional-update semantics of the gorm store.
type memThrottle struct {
	mu      sync.Mutex
	buckets map[bucketKey]*bucket
	err     error
}

func newMemThrottle() *memThrottle {
	return &memThrottle{buckets: make(map[bucketKey]*bucket)}
}

func (m *memThrottle) LastAlertTime(_ context.Context, policyID string) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var latest *time.Time
	for k, b := range m.buckets {
		if k.policyID == policyID && b.last != nil && (latest == nil || b.last.After(*latest)) {
			latest = b.last
		}
	}
	return latest, nil
}

func (m *memThrottle) HourBucketCount(_ context.Context, policyID string, hourStart time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	if b, ok := m.buckets[bucketKey{policyID, hourStart.UTC()}]; ok {
		return b.count, nil
	}
	return 0, nil
}

func (m *memThrottle) TryIncrementHourBucket(_ context.Context, policyID string, hourStart time.Time, limit int, cutoff *time.Time, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	key := bucketKey{policyID, hourStart.UTC()}
	b, ok := m.buckets[key]
	if !ok {
		b = &bucket{}
		m.buckets[key] = b
	}
	if limit > 0 && b.count >= limit {
		return false, nil
	}
	if cutoff != nil && b.last != nil && b.last.After(*cutoff) {
		return false, nil
	}
	b.count++
	at = at.UTC()
	b.last = &at
	return true, nil
}

func (m *memThrottle) DecrementHourBucket(_ context.Context, policyID string, hourStart time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.buckets[bucketKey{policyID, hourStart.UTC()}]; ok && b.count > 0 {
		b.count--
	}
	return nil
}

// memSuppressions holds records keyed by policy and suppression key.
type memSuppressions struct {
	mu      sync.Mutex
	records map[string]entities.SuppressionRecord
	err     error
}

func newMemSuppressions() *memSuppressions {
	return &memSuppressions{records: make(map[string]entities.SuppressionRecord)}
}

func (m *memSuppressions) add(policyID, key string, until time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[policyID+"#"+key] = entities.SuppressionRecord{PolicyID: policyID, SuppressionKey: key, SuppressedUntil: until}
}

func (m *memSuppressions) ActiveSuppression(_ context.Context, policyID, key string, now time.Time) (*entities.SuppressionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	rec, ok := m.records[policyID+"#"+key]
	if !ok || !rec.SuppressedUntil.After(now) {
		return nil, nil
	}
	return &rec, nil
}

// memAlerts is an AlertStore with the repository's lifecycle rules.
type memAlerts struct {
	mu        sync.Mutex
	alerts    map[string]*entities.Alert
	order     []string
	createErr error
}

func newMemAlerts() *memAlerts {
	return &memAlerts{alerts: make(map[string]*entities.Alert)}
}

func (m *memAlerts) CreateAlert(_ context.Context, alert *entities.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	cp := *alert
	cp.DeliveryStatus = maps.Clone(alert.DeliveryStatus)
	m.alerts[alert.ID] = &cp
	m.order = append(m.order, alert.ID)
	return nil
}

func (m *memAlerts) UpdateDeliveryStatus(_ context.Context, id string, status map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[id]
	if !ok {
		return repository.ErrAlertNotFound
	}
	if a.DeliveryStatus == nil {
		a.DeliveryStatus = map[string]string{}
	}
	maps.Copy(a.DeliveryStatus, status)
	return nil
}

func (m *memAlerts) Acknowledge(_ context.Context, id, by string, at time.Time) (*entities.Alert, error) {
	return m.transition(id, []string{entities.AlertStatusActive}, func(a *entities.Alert) {
		a.Status = entities.AlertStatusAcknowledged
		a.AcknowledgedAt = &at
		a.AcknowledgedBy = by
	})
}

func (m *memAlerts) Resolve(_ context.Context, id string, at time.Time) (*entities.Alert, error) {
	return m.transition(id, []string{entities.AlertStatusActive, entities.AlertStatusAcknowledged}, func(a *entities.Alert) {
		a.Status = entities.AlertStatusResolved
		a.ResolvedAt = &at
	})
}

func (m *memAlerts) transition(id string, from []string, apply func(*entities.Alert)) (*entities.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[id]
	if !ok {
		return nil, repository.ErrAlertNotFound
	}
	if !slices.Contains(from, a.Status) {
		return nil, repository.ErrInvalidTransition
	}
	apply(a)
	cp := *a
	return &cp, nil
}

func (m *memAlerts) all() []entities.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]entities.Alert, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *m.alerts[id])
	}
	return out
}

// fakeDeliverer reports every provider as sent unless listed in failing.
type fakeDeliverer struct {
	mu      sync.Mutex
	failing map[string]bool
	calls   int
}

func (f *fakeDeliverer) Deliver(_ context.Context, policy *entities.Policy, alert *entities.Alert) []delivery.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	results := make([]delivery.Result, 0, len(policy.ProviderIDs))
	for _, id := range policy.ProviderIDs {
		if f.failing[id] {
			results = append(results, delivery.Result{ProviderID: id, Success: false, Status: entities.DeliveryFailed, Message: "forced failure"})
			continue
		}
		results = append(results, delivery.Result{ProviderID: id, Success: true, Status: entities.DeliverySent})
	}
	return results
}

func (f *fakeDeliverer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
