package alerting

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/alertflow/internal/datastore/v2/entities"
)

func TestRenderTemplate(t *testing.T) {
	event := map[string]any{
		"user_id":  "alice",
		"attempts": 7.0,
		"ok":       false,
		"user":     map[string]any{"id": "nested"},
	}

	tests := []struct {
		name string
		tmpl string
		want string
	}{
		{"single", "Login failed for {user_id}", "Login failed for alice"},
		{"repeated", "{user_id}/{user_id}", "alice/alice"},
		{"number", "{attempts} attempts", "7 attempts"},
		{"bool", "ok={ok}", "ok=false"},
		{"unknown kept", "host {hostname} user {user_id}", "host {hostname} user alice"},
		{"nested path not resolved", "{user.id}", "{user.id}"},
		{"no placeholders", "static text", "static text"},
		{"empty", "", ""},
		{"unbalanced braces", "{user_id", "{user_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RenderTemplate(tt.tmpl, event))
		})
	}
}

func TestRenderTemplate_ContainsEventValue(t *testing.T) {
	for _, v := range []string{"alice", "10.0.0.1", "{weird}", "ünïcode"} {
		out := RenderTemplate("value: {field} end", map[string]any{"field": v})
		assert.Contains(t, out, v)
	}
}

func TestRenderTemplate_OverlappingKeysStable(t *testing.T) {
	event := map[string]any{"a": "short", "a}": "long"}
	for range 50 {
		assert.Equal(t, "short}", RenderTemplate("{a}}", event))
	}
}

func TestFactory_Build(t *testing.T) {
	f := NewFactory(newMemAlerts())
	policy := &entities.Policy{
		ID:              "p1",
		Name:            "Failed logins",
		Severity:        entities.SeverityHigh,
		MessageTemplate: "\n  Failed login for {user_id}\nFrom {ip_address}",
		SummaryTemplate: "{user_id} failed",
	}
	event := map[string]any{"user_id": "alice", "ip_address": "10.0.0.1", "event_id": "evt-9"}
	now := time.Date(2026, 3, 11, 10, 0, 0, 0, time.FixedZone("X", 3600))

	a := f.Build(policy, event, "tenant-a", now)

	assert.NotEmpty(t, a.ID)
	assert.Equal(t, "p1", a.PolicyID)
	assert.Equal(t, "tenant-a", a.TenantID)
	assert.Equal(t, entities.SeverityHigh, a.Severity)
	assert.Equal(t, entities.AlertStatusActive, a.Status)
	assert.Equal(t, "Failed login for alice", a.Title)
	assert.Equal(t, "\n  Failed login for alice\nFrom 10.0.0.1", a.Message)
	assert.Equal(t, "alice failed", a.Summary)
	assert.Equal(t, time.UTC, a.TriggeredAt.Location())
	require.NotNil(t, a.EventID)
	assert.Equal(t, "evt-9", *a.EventID)
	assert.Empty(t, a.DeliveryStatus)
	assert.NotNil(t, a.DeliveryStatus)

	event["user_id"] = "mutated"
	assert.Equal(t, "alice", a.EventData["user_id"], "event data is a copy")
}

func TestFactory_BuildFallbacks(t *testing.T) {
	f := NewFactory(newMemAlerts())
	policy := &entities.Policy{ID: "p1", Name: "Disk full", Severity: entities.SeverityLow}

	a := f.Build(policy, map[string]any{"id": "up-1"}, "t", time.Now())
	assert.Equal(t, "Disk full", a.Title)
	assert.Equal(t, "Disk full", a.Message)
	assert.Equal(t, "Disk full", a.Summary)
	require.NotNil(t, a.EventID)
	assert.Equal(t, "up-1", *a.EventID)

	a = f.Build(policy, map[string]any{}, "t", time.Now())
	assert.Nil(t, a.EventID)
}

func TestFactory_TitleTruncated(t *testing.T) {
	f := NewFactory(newMemAlerts())
	policy := &entities.Policy{ID: "p1", Name: "n", MessageTemplate: strings.Repeat("é", maxTitleLength+20)}
	a := f.Build(policy, map[string]any{}, "t", time.Now())
	assert.Equal(t, maxTitleLength, len([]rune(a.Title)))
}

func TestFactory_CreatePersists(t *testing.T) {
	store := newMemAlerts()
	f := NewFactory(store)
	policy := &entities.Policy{ID: "p1", Name: "n", Severity: entities.SeverityInfo}

	a, err := f.Create(t.Context(), policy, map[string]any{"k": "v"}, "t", time.Now())
	require.NoError(t, err)
	require.Len(t, store.all(), 1)
	assert.Equal(t, a.ID, store.all()[0].ID)

	store.createErr = errStoreDown
	_, err = f.Create(t.Context(), policy, map[string]any{}, "t", time.Now())
	require.ErrorIs(t, err, errStoreDown)
}
