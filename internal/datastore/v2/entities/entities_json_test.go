package entities

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPolicyJSONKeys verifies policies serialize with snake_case keys, which
// is what API clients and the YAML seed format use.
func TestPolicyJSONKeys(t *testing.T) {
	t.Parallel()

	policy := Policy{
		ID:               "p-1",
		TenantID:         "acme",
		Name:             "Failed logins",
		Enabled:          true,
		Severity:         SeverityHigh,
		MatchAll:         true,
		Conditions:       []Condition{{Field: "event_type", Operator: "eq", Value: "login_failed"}},
		TimeWindow:       &TimeWindow{Days: []int{1, 2}, StartTime: "09:00", EndTime: "17:00", Timezone: "UTC"},
		ThrottleMinutes:  5,
		MaxAlertsPerHour: 10,
		ProviderIDs:      []string{"prov-1"},
		CreatedAt:        time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(policy)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))

	for _, key := range []string{
		"id", "tenant_id", "name", "enabled", "severity", "match_all", "conditions",
		"time_window", "throttle_minutes", "max_alerts_per_hour", "provider_ids",
		"message_template", "summary_template", "created_at",
	} {
		assert.Contains(t, m, key, "JSON should contain snake_case key %q", key)
	}
	for _, key := range []string{"ID", "TenantID", "MatchAll", "ProviderIDs"} {
		assert.NotContains(t, m, key)
	}
	assert.NotContains(t, m, "groups", "empty groups are omitted")
}

func TestConditionValueShapes(t *testing.T) {
	t.Parallel()

	raw := `[
		{"field":"status","operator":"eq","value":500},
		{"field":"country","operator":"in","value":["US","CA"]},
		{"field":"code","operator":"regex","value":"^ERR-\\d+$","case_sensitive":false}
	]`
	var conds []Condition
	require.NoError(t, json.Unmarshal([]byte(raw), &conds))
	require.Len(t, conds, 3)

	assert.InDelta(t, 500, conds[0].Value, 0)
	assert.Equal(t, []any{"US", "CA"}, conds[1].Value)
	assert.Equal(t, `^ERR-\d+$`, conds[2].Value)
	assert.True(t, conds[0].IsCaseSensitive(), "unset defaults to case sensitive")
	require.NotNil(t, conds[2].CaseSensitive)
	assert.False(t, conds[2].IsCaseSensitive())
}

func TestAlertJSONKeys(t *testing.T) {
	t.Parallel()

	eventID := "evt-9"
	alert := Alert{
		ID:             "a-1",
		PolicyID:       "p-1",
		TenantID:       "acme",
		Severity:       SeverityCritical,
		Status:         AlertStatusActive,
		Title:          "Disk full",
		EventID:        &eventID,
		DeliveryStatus: map[string]string{"prov-1": DeliverySent},
	}

	data, err := json.Marshal(alert)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	for _, key := range []string{"id", "policy_id", "tenant_id", "status", "event_id", "delivery_status", "triggered_at"} {
		assert.Contains(t, m, key)
	}
	assert.NotContains(t, m, "acknowledged_at", "nil timestamps are omitted")
}

func TestPolicyHelpers(t *testing.T) {
	t.Parallel()

	p := Policy{}
	assert.False(t, p.IsCompound())
	assert.False(t, p.RateLimited())

	p.Groups = []ConditionGroup{{Operator: GroupOr}}
	p.MaxAlertsPerHour = 1
	assert.True(t, p.IsCompound())
	assert.True(t, p.RateLimited())
}
