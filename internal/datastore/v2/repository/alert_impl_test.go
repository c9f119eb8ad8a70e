package repository

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/alertflow/internal/datastore/v2/entities"
)

func newTestAlert(tenantID, policyID string, at time.Time) *entities.Alert {
	return &entities.Alert{
		PolicyID:    policyID,
		TenantID:    tenantID,
		Severity:    entities.SeverityHigh,
		Title:       "Failed login",
		Message:     "Failed login for alice",
		Summary:     "alice",
		EventData:   map[string]any{"user_id": "alice", "attempts": 7},
		TriggeredAt: at,
	}
}

func TestAlertRepository_CreateDefaults(t *testing.T) {
	repo := NewAlertRepository(setupTestDB(t))
	ctx := t.Context()

	alert := newTestAlert("acme", "p-1", time.Now().UTC())
	require.NoError(t, repo.CreateAlert(ctx, alert))
	assert.NotEmpty(t, alert.ID)
	assert.Equal(t, entities.AlertStatusActive, alert.Status)

	got, err := repo.GetAlert(ctx, alert.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.EventData["user_id"])
	assert.NotNil(t, got.DeliveryStatus)
	assert.Empty(t, got.DeliveryStatus)
}

func TestAlertRepository_DeliveryStatus(t *testing.T) {
	repo := NewAlertRepository(setupTestDB(t))
	ctx := t.Context()

	alert := newTestAlert("acme", "p-1", time.Now().UTC())
	require.NoError(t, repo.CreateAlert(ctx, alert))

	require.NoError(t, repo.UpdateDeliveryStatus(ctx, alert.ID, map[string]string{
		"chat":  entities.DeliverySent,
		"email": entities.DeliveryQueued,
	}))
	require.NoError(t, repo.SetProviderStatus(ctx, alert.ID, "email", entities.DeliveryFailed))

	got, err := repo.GetAlert(ctx, alert.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"chat": entities.DeliverySent, "email": entities.DeliveryFailed}, got.DeliveryStatus)

	require.ErrorIs(t, repo.SetProviderStatus(ctx, "missing", "email", "sent"), ErrAlertNotFound)
}

func TestAlertRepository_QueuedNeverOverwritesOutcome(t *testing.T) {
	repo := NewAlertRepository(setupTestDB(t))
	ctx := t.Context()

	alert := newTestAlert("acme", "p-1", time.Now().UTC())
	require.NoError(t, repo.CreateAlert(ctx, alert))

	// The mail worker finished before the engine recorded its results.
	require.NoError(t, repo.SetProviderStatus(ctx, alert.ID, "email", entities.DeliverySent))
	require.NoError(t, repo.UpdateDeliveryStatus(ctx, alert.ID, map[string]string{
		"chat":  entities.DeliveryFailed,
		"email": entities.DeliveryQueued,
	}))

	got, err := repo.GetAlert(ctx, alert.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"chat": entities.DeliveryFailed, "email": entities.DeliverySent}, got.DeliveryStatus)

	require.ErrorIs(t, repo.UpdateDeliveryStatus(ctx, "missing", map[string]string{"chat": "sent"}), ErrAlertNotFound)
}

func TestAlertRepository_SetProviderStatusConcurrent(t *testing.T) {
	repo := NewAlertRepository(setupTestDB(t))
	ctx := t.Context()

	alert := newTestAlert("acme", "p-1", time.Now().UTC())
	require.NoError(t, repo.CreateAlert(ctx, alert))

	providers := []string{"a", "b", "c", "d"}
	var wg sync.WaitGroup
	for _, id := range providers {
		wg.Go(func() {
			assert.NoError(t, repo.SetProviderStatus(ctx, alert.ID, id, entities.DeliverySent))
		})
	}
	wg.Wait()

	got, err := repo.GetAlert(ctx, alert.ID)
	require.NoError(t, err)
	assert.Len(t, got.DeliveryStatus, len(providers))
}

func TestAlertRepository_Lifecycle(t *testing.T) {
	repo := NewAlertRepository(setupTestDB(t))
	ctx := t.Context()
	now := time.Now().UTC()

	t.Run("active to acknowledged to resolved", func(t *testing.T) {
		alert := newTestAlert("acme", "p-1", now)
		require.NoError(t, repo.CreateAlert(ctx, alert))

		acked, err := repo.Acknowledge(ctx, alert.ID, "oncall@acme", now.Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, entities.AlertStatusAcknowledged, acked.Status)
		assert.Equal(t, "oncall@acme", acked.AcknowledgedBy)
		require.NotNil(t, acked.AcknowledgedAt)

		resolved, err := repo.Resolve(ctx, alert.ID, now.Add(2*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, entities.AlertStatusResolved, resolved.Status)
		require.NotNil(t, resolved.ResolvedAt)
	})

	t.Run("active directly to resolved", func(t *testing.T) {
		alert := newTestAlert("acme", "p-1", now)
		require.NoError(t, repo.CreateAlert(ctx, alert))

		resolved, err := repo.Resolve(ctx, alert.ID, now)
		require.NoError(t, err)
		assert.Equal(t, entities.AlertStatusResolved, resolved.Status)
	})

	t.Run("disallowed transitions", func(t *testing.T) {
		alert := newTestAlert("acme", "p-1", now)
		require.NoError(t, repo.CreateAlert(ctx, alert))
		_, err := repo.Resolve(ctx, alert.ID, now)
		require.NoError(t, err)

		_, err = repo.Acknowledge(ctx, alert.ID, "x", now)
		require.ErrorIs(t, err, ErrInvalidTransition)
		_, err = repo.Resolve(ctx, alert.ID, now)
		require.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("missing alert", func(t *testing.T) {
		_, err := repo.Acknowledge(ctx, "missing", "x", now)
		require.ErrorIs(t, err, ErrAlertNotFound)
	})
}

func TestAlertRepository_List(t *testing.T) {
	repo := NewAlertRepository(setupTestDB(t))
	ctx := t.Context()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := range 5 {
		require.NoError(t, repo.CreateAlert(ctx, newTestAlert("acme", "p-1", base.Add(time.Duration(i)*time.Minute))))
	}
	require.NoError(t, repo.CreateAlert(ctx, newTestAlert("globex", "p-2", base)))

	items, total, err := repo.ListAlerts(ctx, AlertFilter{TenantID: "acme", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, items, 2)
	assert.True(t, items[0].TriggeredAt.After(items[1].TriggeredAt), "newest first")

	items, total, err = repo.ListAlerts(ctx, AlertFilter{TenantID: "acme", Status: entities.AlertStatusResolved})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, items)
}
