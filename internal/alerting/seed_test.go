package alerting

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/alertflow/internal/datastore/v2/entities"
)

type memPolicyWriter struct {
	mu       sync.Mutex
	policies []entities.Policy
}

func (m *memPolicyWriter) CreatePolicy(_ context.Context, p *entities.Policy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policies = append(m.policies, *p)
	return nil
}

func (m *memPolicyWriter) CountPoliciesByName(_ context.Context, tenantID, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, p := range m.policies {
		if p.TenantID == tenantID && p.Name == name {
			n++
		}
	}
	return n, nil
}

func TestSeedDefaultPolicies_Idempotent(t *testing.T) {
	repo := &memPolicyWriter{}

	n, err := SeedDefaultPolicies(t.Context(), repo, "t1", testLogger())
	require.NoError(t, err)
	assert.Equal(t, len(DefaultPolicies("t1")), n)

	n, err = SeedDefaultPolicies(t.Context(), repo, "t1", testLogger())
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = SeedDefaultPolicies(t.Context(), repo, "t2", testLogger())
	require.NoError(t, err)
	assert.Equal(t, len(DefaultPolicies("t2")), n, "seeding is per tenant")
}

func TestDefaultPolicies_ShipDisabled(t *testing.T) {
	for _, p := range DefaultPolicies("t1") {
		assert.False(t, p.Enabled, p.Name)
		assert.Empty(t, p.ProviderIDs, p.Name)
		assert.Equal(t, "t1", p.TenantID)
	}
}

func TestSeedPolicies_RejectsInvalid(t *testing.T) {
	repo := &memPolicyWriter{}
	bad := []entities.Policy{{TenantID: "t1", Name: "broken", Severity: "nope"}}
	_, err := SeedPolicies(t.Context(), repo, bad, testLogger())
	require.Error(t, err)
	assert.Empty(t, repo.policies)
}

const policyYAML = `
policies:
  - name: Deploy failures
    severity: high
    enabled: true
    match_all: true
    throttle_minutes: 10
    conditions:
      - field: event_type
        operator: eq
        value: deploy_failed
      - field: service_name
        operator: in
        value: [billing, auth]
        case_sensitive: false
    message_template: "Deploy of {service_name} failed"
    provider_ids: [chat-ops]
  - name: Other tenant
    tenant_id: t9
    severity: low
    conditions:
      - field: code
        operator: regex
        value: "^E"
`

func TestLoadPolicies(t *testing.T) {
	policies, err := LoadPolicies(strings.NewReader(policyYAML), "t1")
	require.NoError(t, err)
	require.Len(t, policies, 2)

	p := policies[0]
	assert.Equal(t, "t1", p.TenantID)
	assert.Equal(t, "Deploy failures", p.Name)
	assert.True(t, p.Enabled)
	assert.True(t, p.MatchAll)
	assert.Equal(t, 10, p.ThrottleMinutes)
	assert.Equal(t, []string{"chat-ops"}, p.ProviderIDs)
	require.Len(t, p.Conditions, 2)
	assert.True(t, p.Conditions[0].IsCaseSensitive())
	assert.False(t, p.Conditions[1].IsCaseSensitive())
	assert.Equal(t, []any{"billing", "auth"}, p.Conditions[1].Value)
	require.NoError(t, ValidatePolicy(&p))

	assert.Equal(t, "t9", policies[1].TenantID)

	repo := &memPolicyWriter{}
	n, err := SeedPolicies(t.Context(), repo, policies, testLogger())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestLoadPolicies_Malformed(t *testing.T) {
	_, err := LoadPolicies(strings.NewReader("policies: [unterminated"), "t1")
	require.Error(t, err)
}

func TestGetSchema(t *testing.T) {
	s := GetSchema()
	names := make([]string, 0, len(s.Operators))
	for _, op := range s.Operators {
		names = append(names, op.Name)
		assert.NotEmpty(t, op.Label)
	}
	assert.Equal(t, Operators, names)
	assert.Equal(t, entities.Severities, s.Severities)
	assert.Contains(t, s.AlertStatuses, entities.AlertStatusSuppressed)
	assert.ElementsMatch(t, []string{"AND", "OR"}, s.GroupOperators)
	assert.Equal(t, SuppressionKeyFields, s.SuppressionKeyFields)
}
