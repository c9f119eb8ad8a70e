// Package api exposes the alert engine over HTTP with echo.
package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"os"
	goruntime "runtime"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/process"
	"github.com/tphakala/alertflow/internal/alerting"
	"github.com/tphakala/alertflow/internal/datastore/v2/entities"
	"github.com/tphakala/alertflow/internal/datastore/v2/repository"
	"github.com/tphakala/alertflow/internal/errors"
	"github.com/tphakala/alertflow/internal/logger"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// AlertEngine is the part of the alert engine the API drives.
type AlertEngine interface {
	ProcessEvent(ctx context.Context, event map[string]any, tenantID string) []alerting.TriggeredAlert
	TestFirePolicy(ctx context.Context, policy *entities.Policy) (*alerting.TriggeredAlert, error)
	Acknowledge(ctx context.Context, alertID, by string) (*entities.Alert, error)
	Resolve(ctx context.Context, alertID string) (*entities.Alert, error)
	InvalidateTenant(tenantID string)
}

// Deps are the collaborators of a Controller. Gatherer may be nil, in
// which case /metrics is not registered.
type Deps struct {
	Engine       AlertEngine
	Policies     repository.PolicyRepository
	Alerts       repository.AlertRepository
	Providers    repository.ProviderRepository
	Suppressions repository.SuppressionRepository
	Gatherer     prometheus.Gatherer
	// Hub receives alerts fired through the API; nil creates a private one.
	Hub           *AlertHub
	DefaultTenant string
	// APIToken, when set, is required as a bearer token on mutating routes.
	APIToken string
	Log      logger.Logger
}

// Controller holds the HTTP handlers.
type Controller struct {
	Echo  *echo.Echo
	Group *echo.Group

	engine        AlertEngine
	policies      repository.PolicyRepository
	alerts        repository.AlertRepository
	providers     repository.ProviderRepository
	suppressions  repository.SuppressionRepository
	hub           *AlertHub
	defaultTenant string
	apiToken      string
	startedAt     time.Time
	log           logger.Logger
}

// New creates the controller and registers every route on e.
func New(e *echo.Echo, deps Deps) *Controller {
	c := &Controller{
		Echo:          e,
		Group:         e.Group("/api/v2"),
		engine:        deps.Engine,
		policies:      deps.Policies,
		alerts:        deps.Alerts,
		providers:     deps.Providers,
		suppressions:  deps.Suppressions,
		hub:           deps.Hub,
		defaultTenant: deps.DefaultTenant,
		apiToken:      deps.APIToken,
		startedAt:     time.Now(),
	}
	if deps.Log != nil {
		c.log = deps.Log.Module("api")
	}
	if c.hub == nil {
		c.hub = NewAlertHub(c.log)
	}

	e.GET("/health", c.Health)
	if deps.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	c.initEventRoutes()
	c.initAlertRoutes()
	c.initPolicyRoutes()
	c.initProviderRoutes()
	c.initSuppressionRoutes()
	return c
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Goroutines    int     `json:"goroutines"`
	RSSBytes      uint64  `json:"rss_bytes,omitempty"`
	CPUPercent    float64 `json:"cpu_percent,omitempty"`
	Subscribers   int     `json:"stream_subscribers"`
}

// Health reports liveness with a few process statistics. Statistics that
// cannot be read are omitted.
func (c *Controller) Health(ctx echo.Context) error {
	resp := HealthResponse{
		Status:        "ok",
		UptimeSeconds: time.Since(c.startedAt).Seconds(),
		Goroutines:    goruntime.NumGoroutine(),
		Subscribers:   c.hub.Subscribers(),
	}
	if proc, err := process.NewProcessWithContext(ctx.Request().Context(), int32(os.Getpid())); err == nil { //nolint:gosec // pid fits in int32
		if mem, err := proc.MemoryInfoWithContext(ctx.Request().Context()); err == nil {
			resp.RSSBytes = mem.RSS
		}
		if cpu, err := proc.CPUPercentWithContext(ctx.Request().Context()); err == nil {
			resp.CPUPercent = cpu
		}
	}
	return ctx.JSON(http.StatusOK, resp)
}

// authMiddleware enforces the bearer token when one is configured.
func (c *Controller) authMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if c.apiToken == "" {
			return next(ctx)
		}
		token, ok := strings.CutPrefix(ctx.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(c.apiToken)) != 1 {
			return ctx.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}
		return next(ctx)
	}
}

// tenant resolves the tenant of a request: query parameter, then header,
// then the configured default.
func (c *Controller) tenant(ctx echo.Context) string {
	if t := ctx.QueryParam("tenant_id"); t != "" {
		return t
	}
	if t := ctx.Request().Header.Get("X-Tenant-ID"); t != "" {
		return t
	}
	return c.defaultTenant
}

// HandleError logs err and writes a JSON error response. Validation
// errors are reported as 400 with their message.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	if errors.IsCategory(err, errors.CategoryValidation) {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if code >= http.StatusInternalServerError {
		c.logErrorIfEnabled(message,
			logger.String("path", ctx.Path()),
			logger.Error(err))
	}
	return ctx.JSON(code, map[string]string{"error": message})
}

func (c *Controller) logErrorIfEnabled(msg string, fields ...logger.Field) {
	if c.log != nil {
		c.log.Error(msg, fields...)
	}
}

func (c *Controller) logInfoIfEnabled(msg string, fields ...logger.Field) {
	if c.log != nil {
		c.log.Info(msg, fields...)
	}
}

// pagination reads limit and offset, clamping limit to maxListLimit.
func pagination(ctx echo.Context) (limit, offset int) {
	limit = defaultListLimit
	if v, err := strconv.Atoi(ctx.QueryParam("limit")); err == nil && v > 0 {
		limit = min(v, maxListLimit)
	}
	if v, err := strconv.Atoi(ctx.QueryParam("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}

func notFound(ctx echo.Context, what string) error {
	return ctx.JSON(http.StatusNotFound, map[string]string{"error": what + " not found"})
}

func badRequest(ctx echo.Context, msg string) error {
	return ctx.JSON(http.StatusBadRequest, map[string]string{"error": msg})
}
