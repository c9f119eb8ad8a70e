package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tphakala/alertflow/internal/alerting"
	"github.com/tphakala/alertflow/internal/datastore/v2/entities"
	"github.com/tphakala/alertflow/internal/datastore/v2/repository"
	"github.com/tphakala/alertflow/internal/errors"
	"github.com/tphakala/alertflow/internal/logger"
)

// maxSuppressionDuration caps how far ahead a suppression may reach.
const maxSuppressionDuration = 30 * 24 * time.Hour

// CreateSuppressionRequest silences a policy for the key derived from
// Event. Exactly one of Duration ("90m") or Until must be given.
type CreateSuppressionRequest struct {
	PolicyID  string         `json:"policy_id"`
	Event     map[string]any `json:"event"`
	Duration  string         `json:"duration,omitempty"`
	Until     *time.Time     `json:"until,omitempty"`
	Reason    string         `json:"reason"`
	CreatedBy string         `json:"created_by"`
}

func (c *Controller) initSuppressionRoutes() {
	suppressions := c.Group.Group("/suppressions")

	suppressions.GET("", c.ListSuppressions)

	protected := suppressions.Group("", c.authMiddleware)
	protected.POST("", c.CreateSuppression)
	protected.DELETE("/:id", c.DeleteSuppression)
}

// CreateSuppression records a suppression, replacing any active one for
// the same policy and key.
func (c *Controller) CreateSuppression(ctx echo.Context) error {
	var req CreateSuppressionRequest
	if err := ctx.Bind(&req); err != nil {
		return badRequest(ctx, "Invalid request body")
	}
	if req.PolicyID == "" {
		return badRequest(ctx, "policy_id is required")
	}

	now := time.Now().UTC()
	until, err := suppressionEnd(&req, now)
	if err != nil {
		return badRequest(ctx, err.Error())
	}

	reqCtx := ctx.Request().Context()
	policy, err := c.policies.GetPolicy(reqCtx, req.PolicyID)
	if err == nil && policy.TenantID != c.tenant(ctx) {
		err = repository.ErrPolicyNotFound
	}
	if err != nil {
		return c.policyError(ctx, err, "Failed to get policy")
	}

	rec := entities.SuppressionRecord{
		PolicyID:        policy.ID,
		SuppressionKey:  alerting.SuppressionKey(policy.ID, req.Event),
		SuppressedUntil: until,
		Reason:          req.Reason,
		CreatedBy:       req.CreatedBy,
	}
	if err := c.suppressions.CreateSuppression(reqCtx, &rec, now); err != nil {
		return c.HandleError(ctx, err, "Failed to create suppression", http.StatusInternalServerError)
	}

	c.logInfoIfEnabled("suppression created",
		logger.String("policy_id", rec.PolicyID),
		logger.String("suppression_key", rec.SuppressionKey),
		logger.Time("until", rec.SuppressedUntil))
	return ctx.JSON(http.StatusCreated, rec)
}

// ListSuppressions returns active suppressions on the tenant's policies.
func (c *Controller) ListSuppressions(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	policies, err := c.policies.ListPolicies(reqCtx, repository.PolicyFilter{TenantID: c.tenant(ctx)})
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list suppressions", http.StatusInternalServerError)
	}
	if len(policies) == 0 {
		return ctx.JSON(http.StatusOK, []entities.SuppressionRecord{})
	}

	ids := make([]string, 0, len(policies))
	for i := range policies {
		ids = append(ids, policies[i].ID)
	}
	now := time.Now().UTC()
	recs, err := c.suppressions.ListSuppressions(reqCtx, repository.SuppressionFilter{PolicyIDs: ids, ActiveAt: &now})
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list suppressions", http.StatusInternalServerError)
	}
	if recs == nil {
		recs = []entities.SuppressionRecord{}
	}
	return ctx.JSON(http.StatusOK, recs)
}

// DeleteSuppression lifts a suppression early.
func (c *Controller) DeleteSuppression(ctx echo.Context) error {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return badRequest(ctx, "Invalid suppression ID")
	}
	if err := c.suppressions.DeleteSuppression(ctx.Request().Context(), uint(id)); err != nil {
		if errors.Is(err, repository.ErrSuppressionNotFound) {
			return notFound(ctx, "Suppression")
		}
		return c.HandleError(ctx, err, "Failed to delete suppression", http.StatusInternalServerError)
	}
	return ctx.NoContent(http.StatusNoContent)
}

func suppressionEnd(req *CreateSuppressionRequest, now time.Time) (time.Time, error) {
	var until time.Time
	switch {
	case req.Duration != "" && req.Until != nil:
		return time.Time{}, errors.NewStd("give either duration or until, not both")
	case req.Duration != "":
		d, err := time.ParseDuration(req.Duration)
		if err != nil || d <= 0 {
			return time.Time{}, errors.NewStd("duration must be a positive Go duration such as 90m")
		}
		until = now.Add(d)
	case req.Until != nil:
		until = req.Until.UTC()
	default:
		return time.Time{}, errors.NewStd("duration or until is required")
	}
	if !until.After(now) {
		return time.Time{}, errors.NewStd("suppression must end in the future")
	}
	if until.Sub(now) > maxSuppressionDuration {
		return time.Time{}, errors.NewStd("suppression may not exceed 30 days")
	}
	return until, nil
}
