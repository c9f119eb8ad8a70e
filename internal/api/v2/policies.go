package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/tphakala/alertflow/internal/alerting"
	"github.com/tphakala/alertflow/internal/datastore/v2/entities"
	"github.com/tphakala/alertflow/internal/datastore/v2/repository"
	"github.com/tphakala/alertflow/internal/errors"
	"github.com/tphakala/alertflow/internal/logger"
)

// initPolicyRoutes registers policy CRUD endpoints.
func (c *Controller) initPolicyRoutes() {
	policies := c.Group.Group("/policies")

	policies.GET("", c.ListPolicies)
	// schema is registered before /:id so it is not captured as an ID
	policies.GET("/schema", c.GetPolicySchema)
	policies.GET("/:id", c.GetPolicy)

	protected := policies.Group("", c.authMiddleware)
	protected.POST("", c.CreatePolicy)
	protected.PUT("/:id", c.UpdatePolicy)
	protected.PATCH("/:id/toggle", c.TogglePolicy)
	protected.DELETE("/:id", c.DeletePolicy)
	protected.POST("/:id/test", c.TestPolicy)
}

// ListPolicies returns the tenant's policies, optionally filtered by
// ?enabled=true|false.
func (c *Controller) ListPolicies(ctx echo.Context) error {
	filter := repository.PolicyFilter{TenantID: c.tenant(ctx)}
	if v := ctx.QueryParam("enabled"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return badRequest(ctx, "Invalid enabled value")
		}
		filter.Enabled = &enabled
	}

	policies, err := c.policies.ListPolicies(ctx.Request().Context(), filter)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list policies", http.StatusInternalServerError)
	}
	if policies == nil {
		policies = []entities.Policy{}
	}
	return ctx.JSON(http.StatusOK, policies)
}

// GetPolicySchema describes fields, operators and defaults for UI builders.
func (c *Controller) GetPolicySchema(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, alerting.GetSchema())
}

// GetPolicy returns one policy owned by the request tenant.
func (c *Controller) GetPolicy(ctx echo.Context) error {
	policy, err := c.tenantPolicy(ctx)
	if err != nil {
		return c.policyError(ctx, err, "Failed to get policy")
	}
	return ctx.JSON(http.StatusOK, policy)
}

// CreatePolicy validates and stores a new policy.
func (c *Controller) CreatePolicy(ctx echo.Context) error {
	var policy entities.Policy
	if err := ctx.Bind(&policy); err != nil {
		return badRequest(ctx, "Invalid request body")
	}
	policy.ID = ""
	if policy.TenantID == "" {
		policy.TenantID = c.tenant(ctx)
	}
	if err := alerting.ValidatePolicy(&policy); err != nil {
		return c.HandleError(ctx, err, "Invalid policy", http.StatusBadRequest)
	}

	reqCtx := ctx.Request().Context()
	count, err := c.policies.CountPoliciesByName(reqCtx, policy.TenantID, policy.Name)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to check policy name", http.StatusInternalServerError)
	}
	if count > 0 {
		return ctx.JSON(http.StatusConflict, map[string]string{"error": "A policy with this name already exists"})
	}

	if err := c.policies.CreatePolicy(reqCtx, &policy); err != nil {
		return c.HandleError(ctx, err, "Failed to create policy", http.StatusInternalServerError)
	}
	c.engine.InvalidateTenant(policy.TenantID)

	c.logInfoIfEnabled("policy created",
		logger.String("policy_id", policy.ID),
		logger.String("tenant_id", policy.TenantID),
		logger.String("name", policy.Name))
	return ctx.JSON(http.StatusCreated, policy)
}

// UpdatePolicy replaces a policy. ID and tenant cannot change.
func (c *Controller) UpdatePolicy(ctx echo.Context) error {
	existing, err := c.tenantPolicy(ctx)
	if err != nil {
		return c.policyError(ctx, err, "Failed to get policy")
	}

	var policy entities.Policy
	if err := ctx.Bind(&policy); err != nil {
		return badRequest(ctx, "Invalid request body")
	}
	policy.ID = existing.ID
	policy.TenantID = existing.TenantID
	policy.CreatedAt = existing.CreatedAt
	if err := alerting.ValidatePolicy(&policy); err != nil {
		return c.HandleError(ctx, err, "Invalid policy", http.StatusBadRequest)
	}

	reqCtx := ctx.Request().Context()
	if policy.Name != existing.Name {
		count, err := c.policies.CountPoliciesByName(reqCtx, policy.TenantID, policy.Name)
		if err != nil {
			return c.HandleError(ctx, err, "Failed to check policy name", http.StatusInternalServerError)
		}
		if count > 0 {
			return ctx.JSON(http.StatusConflict, map[string]string{"error": "A policy with this name already exists"})
		}
	}

	if err := c.policies.UpdatePolicy(reqCtx, &policy); err != nil {
		return c.policyError(ctx, err, "Failed to update policy")
	}
	c.engine.InvalidateTenant(policy.TenantID)
	return ctx.JSON(http.StatusOK, policy)
}

// TogglePolicy enables or disables a policy.
func (c *Controller) TogglePolicy(ctx echo.Context) error {
	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if err := ctx.Bind(&body); err != nil || body.Enabled == nil {
		return badRequest(ctx, "enabled is required")
	}

	policy, err := c.tenantPolicy(ctx)
	if err != nil {
		return c.policyError(ctx, err, "Failed to get policy")
	}
	if err := c.policies.TogglePolicy(ctx.Request().Context(), policy.ID, *body.Enabled); err != nil {
		return c.policyError(ctx, err, "Failed to toggle policy")
	}
	c.engine.InvalidateTenant(policy.TenantID)

	policy.Enabled = *body.Enabled
	return ctx.JSON(http.StatusOK, policy)
}

// DeletePolicy removes a policy.
func (c *Controller) DeletePolicy(ctx echo.Context) error {
	policy, err := c.tenantPolicy(ctx)
	if err != nil {
		return c.policyError(ctx, err, "Failed to get policy")
	}
	if err := c.policies.DeletePolicy(ctx.Request().Context(), policy.ID); err != nil {
		return c.policyError(ctx, err, "Failed to delete policy")
	}
	c.engine.InvalidateTenant(policy.TenantID)

	c.logInfoIfEnabled("policy deleted",
		logger.String("policy_id", policy.ID),
		logger.String("tenant_id", policy.TenantID))
	return ctx.NoContent(http.StatusNoContent)
}

// TestPolicy fires a synthetic alert through the policy's providers,
// bypassing matching, throttling and suppression.
func (c *Controller) TestPolicy(ctx echo.Context) error {
	policy, err := c.tenantPolicy(ctx)
	if err != nil {
		return c.policyError(ctx, err, "Failed to get policy")
	}
	result, err := c.engine.TestFirePolicy(ctx.Request().Context(), policy)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to test policy", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, result)
}

// tenantPolicy loads the :id policy and hides policies of other tenants.
func (c *Controller) tenantPolicy(ctx echo.Context) (*entities.Policy, error) {
	policy, err := c.policies.GetPolicy(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return nil, err
	}
	if policy.TenantID != c.tenant(ctx) {
		return nil, repository.ErrPolicyNotFound
	}
	return policy, nil
}

func (c *Controller) policyError(ctx echo.Context, err error, msg string) error {
	if errors.Is(err, repository.ErrPolicyNotFound) {
		return notFound(ctx, "Policy")
	}
	return c.HandleError(ctx, err, msg, http.StatusInternalServerError)
}
