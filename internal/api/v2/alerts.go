package api

import (
	"net/http"
	"slices"

	"github.com/labstack/echo/v4"
	"github.com/tphakala/alertflow/internal/datastore/v2/entities"
	"github.com/tphakala/alertflow/internal/datastore/v2/repository"
	"github.com/tphakala/alertflow/internal/errors"
	"github.com/tphakala/alertflow/internal/logger"
)

// initAlertRoutes registers alert read and lifecycle endpoints.
func (c *Controller) initAlertRoutes() {
	alerts := c.Group.Group("/alerts")

	alerts.GET("", c.ListAlerts)
	alerts.GET("/stream", c.StreamAlerts)
	alerts.GET("/:id", c.GetAlert)

	protected := alerts.Group("", c.authMiddleware)
	protected.POST("/:id/acknowledge", c.AcknowledgeAlert)
	protected.POST("/:id/resolve", c.ResolveAlert)
}

// ListAlerts returns a page of alerts for a tenant.
func (c *Controller) ListAlerts(ctx echo.Context) error {
	filter := repository.AlertFilter{
		TenantID: c.tenant(ctx),
		PolicyID: ctx.QueryParam("policy_id"),
		Status:   ctx.QueryParam("status"),
	}
	if filter.Status != "" && !slices.Contains(entities.AlertStatuses, filter.Status) {
		return badRequest(ctx, "Invalid status")
	}
	filter.Limit, filter.Offset = pagination(ctx)

	items, total, err := c.alerts.ListAlerts(ctx.Request().Context(), filter)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list alerts", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"alerts": items,
		"total":  total,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

// GetAlert returns a single alert.
func (c *Controller) GetAlert(ctx echo.Context) error {
	alert, err := c.alerts.GetAlert(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrAlertNotFound) {
			return notFound(ctx, "Alert")
		}
		return c.HandleError(ctx, err, "Failed to get alert", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, alert)
}

// AcknowledgeAlert moves an active alert to acknowledged.
func (c *Controller) AcknowledgeAlert(ctx echo.Context) error {
	var body struct {
		By string `json:"by"`
	}
	if err := ctx.Bind(&body); err != nil {
		return badRequest(ctx, "Invalid request body")
	}
	if body.By == "" {
		return badRequest(ctx, "by is required")
	}

	alert, err := c.engine.Acknowledge(ctx.Request().Context(), ctx.Param("id"), body.By)
	if err != nil {
		return c.lifecycleError(ctx, err)
	}
	c.logInfoIfEnabled("alert acknowledged via api",
		logger.String("alert_id", alert.ID),
		logger.String("by", body.By))
	return ctx.JSON(http.StatusOK, alert)
}

// ResolveAlert moves an active or acknowledged alert to resolved.
func (c *Controller) ResolveAlert(ctx echo.Context) error {
	alert, err := c.engine.Resolve(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return c.lifecycleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, alert)
}

func (c *Controller) lifecycleError(ctx echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrAlertNotFound):
		return notFound(ctx, "Alert")
	case errors.Is(err, repository.ErrInvalidTransition):
		return ctx.JSON(http.StatusConflict, map[string]string{"error": "Alert cannot make that transition from its current status"})
	default:
		return c.HandleError(ctx, err, "Failed to update alert", http.StatusInternalServerError)
	}
}
