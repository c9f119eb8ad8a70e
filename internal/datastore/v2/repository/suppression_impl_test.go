package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/alertflow/internal/datastore/v2/entities"
)

func TestSuppressionRepository_ActiveLookup(t *testing.T) {
	repo := NewSuppressionRepository(setupTestDB(t))
	ctx := t.Context()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	rec := &entities.SuppressionRecord{
		PolicyID:        "p-1",
		SuppressionKey:  "p-1|user_id:alice",
		SuppressedUntil: now.Add(time.Hour),
		Reason:          "known noisy user",
	}
	require.NoError(t, repo.CreateSuppression(ctx, rec, now))

	got, err := repo.ActiveSuppression(ctx, "p-1", "p-1|user_id:alice", now)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "known noisy user", got.Reason)

	// Expired at the boundary: active only while suppressed_until > now.
	got, err = repo.ActiveSuppression(ctx, "p-1", "p-1|user_id:alice", now.Add(time.Hour))
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = repo.ActiveSuppression(ctx, "p-1", "p-1|user_id:bob", now)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSuppressionRepository_CreateReplacesActive(t *testing.T) {
	repo := NewSuppressionRepository(setupTestDB(t))
	ctx := t.Context()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	key := "p-1|ip_address:10.0.0.1"

	require.NoError(t, repo.CreateSuppression(ctx, &entities.SuppressionRecord{
		PolicyID: "p-1", SuppressionKey: key, SuppressedUntil: now.Add(time.Hour),
	}, now))
	require.NoError(t, repo.CreateSuppression(ctx, &entities.SuppressionRecord{
		PolicyID: "p-1", SuppressionKey: key, SuppressedUntil: now.Add(3 * time.Hour),
	}, now))

	active, err := repo.ListSuppressions(ctx, SuppressionFilter{PolicyIDs: []string{"p-1"}, ActiveAt: &now})
	require.NoError(t, err)
	require.Len(t, active, 1, "at most one active record per pair")
	assert.True(t, active[0].SuppressedUntil.Equal(now.Add(3*time.Hour)))
}

func TestSuppressionRepository_Delete(t *testing.T) {
	repo := NewSuppressionRepository(setupTestDB(t))
	ctx := t.Context()
	now := time.Now().UTC()

	rec := &entities.SuppressionRecord{PolicyID: "p-1", SuppressionKey: "p-1", SuppressedUntil: now.Add(time.Minute)}
	require.NoError(t, repo.CreateSuppression(ctx, rec, now))
	require.NoError(t, repo.DeleteSuppression(ctx, rec.ID))
	require.ErrorIs(t, repo.DeleteSuppression(ctx, rec.ID), ErrSuppressionNotFound)
}
