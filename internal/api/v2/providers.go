package api

import (
	"net/http"
	"slices"

	"github.com/labstack/echo/v4"
	"github.com/tphakala/alertflow/internal/datastore/v2/entities"
	"github.com/tphakala/alertflow/internal/datastore/v2/repository"
	"github.com/tphakala/alertflow/internal/delivery"
	"github.com/tphakala/alertflow/internal/errors"
)

func (c *Controller) initProviderRoutes() {
	providers := c.Group.Group("/providers")

	providers.GET("", c.ListProviders)

	protected := providers.Group("", c.authMiddleware)
	protected.POST("", c.CreateProvider)
	protected.DELETE("/:id", c.DeleteProvider)
}

// ListProviders returns the tenant's providers. Secrets in Config are
// returned as stored.
func (c *Controller) ListProviders(ctx echo.Context) error {
	providers, err := c.providers.ListProviders(ctx.Request().Context(), c.tenant(ctx))
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list providers", http.StatusInternalServerError)
	}
	if providers == nil {
		providers = []entities.Provider{}
	}
	return ctx.JSON(http.StatusOK, providers)
}

// CreateProvider validates the kind-specific config and stores the provider.
func (c *Controller) CreateProvider(ctx echo.Context) error {
	var provider entities.Provider
	if err := ctx.Bind(&provider); err != nil {
		return badRequest(ctx, "Invalid request body")
	}
	provider.ID = ""
	if provider.TenantID == "" {
		provider.TenantID = c.tenant(ctx)
	}
	if provider.Name == "" {
		return badRequest(ctx, "name is required")
	}
	if !slices.Contains(entities.ProviderKinds, provider.Kind) {
		return badRequest(ctx, "kind must be one of incident, chat, webhook, email")
	}
	if _, err := delivery.ParseTarget(&provider); err != nil {
		return c.HandleError(ctx, err, "Invalid provider config", http.StatusBadRequest)
	}

	if err := c.providers.CreateProvider(ctx.Request().Context(), &provider); err != nil {
		return c.HandleError(ctx, err, "Failed to create provider", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusCreated, provider)
}

// DeleteProvider removes a provider. Policies still listing its ID skip it
// at delivery time.
func (c *Controller) DeleteProvider(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	provider, err := c.providers.GetProvider(reqCtx, ctx.Param("id"))
	if err == nil && provider.TenantID != c.tenant(ctx) {
		err = repository.ErrProviderNotFound
	}
	if err == nil {
		err = c.providers.DeleteProvider(reqCtx, provider.ID)
	}
	if err != nil {
		if errors.Is(err, repository.ErrProviderNotFound) {
			return notFound(ctx, "Provider")
		}
		return c.HandleError(ctx, err, "Failed to delete provider", http.StatusInternalServerError)
	}
	return ctx.NoContent(http.StatusNoContent)
}
