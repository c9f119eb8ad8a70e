package api

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tphakala/alertflow/internal/alerting"
	"github.com/tphakala/alertflow/internal/logger"
)

func (c *Controller) initEventRoutes() {
	c.Group.POST("/events", c.IngestEvent, c.authMiddleware)
}

// IngestEvent evaluates one event synchronously. The body is either the
// bare event object or an envelope {"tenant_id": ..., "event": {...}}.
func (c *Controller) IngestEvent(ctx echo.Context) error {
	dec := json.NewDecoder(ctx.Request().Body)
	dec.UseNumber()
	var body map[string]any
	if err := dec.Decode(&body); err != nil || body == nil {
		return badRequest(ctx, "Invalid request body")
	}

	event := body
	tenantID := c.tenant(ctx)
	if inner, ok := body["event"].(map[string]any); ok {
		event = inner
		if t, ok := body["tenant_id"].(string); ok && t != "" {
			tenantID = t
		}
	}
	if tenantID == "" {
		return badRequest(ctx, "tenant_id is required")
	}

	triggered := c.engine.ProcessEvent(ctx.Request().Context(), event, tenantID)
	if len(triggered) > 0 {
		c.hub.Broadcast(&alerting.TriggeredEnvelope{TenantID: tenantID, Alerts: triggered})
		c.logInfoIfEnabled("event triggered alerts",
			logger.String("tenant_id", tenantID),
			logger.Int("count", len(triggered)))
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"alerts": triggered,
		"count":  len(triggered),
	})
}
