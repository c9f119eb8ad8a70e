package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/alertflow/internal/datastore/v2/entities"
)

func TestProviderRepository_CRUD(t *testing.T) {
	repo := NewProviderRepository(setupTestDB(t))
	ctx := t.Context()

	p := &entities.Provider{
		TenantID: "acme",
		Name:     "ops webhook",
		Kind:     entities.ProviderWebhook,
		Enabled:  true,
		Config:   map[string]any{"url": "https://hooks.example.com/x", "retry_count": 2},
	}
	require.NoError(t, repo.CreateProvider(ctx, p))
	require.NotEmpty(t, p.ID)

	got, err := repo.GetProvider(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://hooks.example.com/x", got.Config["url"])
	assert.InDelta(t, 2, got.Config["retry_count"], 0)

	list, err := repo.ListProviders(ctx, "acme")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, repo.DeleteProvider(ctx, p.ID))
	_, err = repo.GetProvider(ctx, p.ID)
	require.ErrorIs(t, err, ErrProviderNotFound)
	require.ErrorIs(t, repo.DeleteProvider(ctx, p.ID), ErrProviderNotFound)
}

func TestProviderRepository_GetProvidersByIDsIsTenantScoped(t *testing.T) {
	repo := NewProviderRepository(setupTestDB(t))
	ctx := t.Context()

	mine := &entities.Provider{TenantID: "acme", Name: "mine", Kind: entities.ProviderChat, Enabled: true}
	theirs := &entities.Provider{TenantID: "globex", Name: "theirs", Kind: entities.ProviderChat, Enabled: true}
	require.NoError(t, repo.CreateProvider(ctx, mine))
	require.NoError(t, repo.CreateProvider(ctx, theirs))

	got, err := repo.GetProvidersByIDs(ctx, "acme", []string{mine.ID, theirs.ID, "unknown"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, mine.ID, got[0].ID)

	empty, err := repo.GetProvidersByIDs(ctx, "acme", nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
