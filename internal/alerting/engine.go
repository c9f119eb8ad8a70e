package alerting

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/tphakala/alertflow/internal/datastore/v2/entities"
	"github.com/tphakala/alertflow/internal/delivery"
	"github.com/tphakala/alertflow/internal/logger"
	"github.com/tphakala/alertflow/internal/observability"
	"golang.org/x/sync/semaphore"
)

const (
	// defaultStoreTimeout bounds each durable store call made while
	// evaluating one policy.
	defaultStoreTimeout = 3 * time.Second
	// defaultMaxConcurrency bounds concurrent policy evaluations per event.
	defaultMaxConcurrency = 16
)

// PolicySource loads the enabled policies of a tenant.
type PolicySource interface {
	GetEnabledPolicies(ctx context.Context, tenantID string) ([]entities.Policy, error)
}

// Deliverer dispatches an alert to the policy's providers.
type Deliverer interface {
	Deliver(ctx context.Context, policy *entities.Policy, alert *entities.Alert) []delivery.Result
}

// TriggeredAlert summarises one alert fired for an event.
type TriggeredAlert struct {
	AlertID         string            `json:"alert_id"`
	PolicyID        string            `json:"policy_id"`
	Severity        string            `json:"severity"`
	Title           string            `json:"title"`
	Summary         string            `json:"summary"`
	DeliveryResults map[string]string `json:"delivery_results"`
	Deliveries      []delivery.Result `json:"deliveries,omitempty"`
}

// EngineDeps are the collaborators of an Engine. Metrics may be nil.
type EngineDeps struct {
	Policies     PolicySource
	Alerts       AlertStore
	Throttle     ThrottleStore
	Suppressions SuppressionStore
	Delivery     Deliverer
	Metrics      *observability.Metrics
	Log          logger.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithClock replaces the time source.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithPolicyCacheTTL caches each tenant's enabled policies for ttl. Zero
// disables caching.
func WithPolicyCacheTTL(ttl time.Duration) EngineOption {
	return func(e *Engine) { e.cacheTTL = ttl }
}

// WithMaxConcurrency bounds concurrent policy evaluations per event.
func WithMaxConcurrency(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxConcurrency = n
		}
	}
}

// WithStoreTimeout bounds individual store calls.
func WithStoreTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.storeTimeout = d
		}
	}
}

// Engine runs every enabled policy of a tenant against an inbound event:
// match, throttle check, suppression check, alert creation and delivery.
// Policies are evaluated concurrently and fail independently. All
// coordination between evaluations goes through the stores.
type Engine struct {
	policies   PolicySource
	alerts     AlertStore
	matcher    *Matcher
	throttler  *Throttler
	suppressor *Suppressor
	factory    *Factory
	deliverer  Deliverer
	metrics    *observability.Metrics
	log        logger.Logger

	now            func() time.Time
	cacheTTL       time.Duration
	cache          *cache.Cache
	maxConcurrency int
	sem            *semaphore.Weighted
	storeTimeout   time.Duration
}

// NewEngine creates an Engine.
func NewEngine(deps EngineDeps, opts ...EngineOption) *Engine {
	log := deps.Log.Module("alerting")
	e := &Engine{
		policies:       deps.Policies,
		alerts:         deps.Alerts,
		matcher:        NewMatcher(NewEvaluator(log), log),
		throttler:      NewThrottler(deps.Throttle),
		suppressor:     NewSuppressor(deps.Suppressions),
		factory:        NewFactory(deps.Alerts),
		deliverer:      deps.Delivery,
		metrics:        deps.Metrics,
		log:            log,
		now:            time.Now,
		maxConcurrency: defaultMaxConcurrency,
		storeTimeout:   defaultStoreTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cacheTTL > 0 {
		e.cache = cache.New(e.cacheTTL, 2*e.cacheTTL)
	}
	e.sem = semaphore.NewWeighted(int64(e.maxConcurrency))
	return e
}

// ProcessEvent evaluates the event against the tenant's enabled policies
// and returns the alerts that fired, in policy order. It never fails:
// unmatched, throttled, suppressed and failed policies are simply absent
// from the result.
func (e *Engine) ProcessEvent(ctx context.Context, event map[string]any, tenantID string) []TriggeredAlert {
	start := time.Now()
	defer func() { e.metrics.EventProcessed(tenantID, time.Since(start)) }()

	triggered := []TriggeredAlert{}
	policies, err := e.loadPolicies(ctx, tenantID)
	if err != nil {
		e.log.Error("failed to load policies",
			logger.String("tenant_id", tenantID),
			logger.Error(err))
		return triggered
	}
	if len(policies) == 0 {
		return triggered
	}

	now := e.now().UTC()
	results := make([]*TriggeredAlert, len(policies))
	var wg sync.WaitGroup
	for i := range policies {
		if err := e.sem.Acquire(ctx, 1); err != nil {
			e.log.Warn("event processing cancelled",
				logger.String("tenant_id", tenantID),
				logger.Int("skipped_policies", len(policies)-i),
				logger.Error(err))
			break
		}
		policy := &policies[i]
		wg.Go(func() {
			defer e.sem.Release(1)
			results[i] = e.evaluatePolicy(ctx, policy, event, tenantID, now)
		})
	}
	wg.Wait()

	for _, r := range results {
		if r != nil {
			triggered = append(triggered, *r)
		}
	}
	return triggered
}

// evaluatePolicy runs the pipeline for one policy. A nil result means the
// policy did not fire.
func (e *Engine) evaluatePolicy(ctx context.Context, policy *entities.Policy, event map[string]any, tenantID string, now time.Time) (result *TriggeredAlert) {
	log := e.log.With(logger.String("policy_id", policy.ID), logger.String("tenant_id", tenantID))
	defer func() {
		if r := recover(); r != nil {
			log.Error("policy evaluation panicked",
				logger.Any("panic", r),
				logger.String("stack", string(debug.Stack())))
			e.metrics.PolicyOutcome(observability.OutcomeFailed)
			result = nil
		}
	}()

	if !e.matcher.Matches(policy, event, now) {
		e.metrics.PolicyOutcome(observability.OutcomeUnmatched)
		return nil
	}

	throttled, err := e.withStore(ctx, func(ctx context.Context) (bool, error) {
		return e.throttler.ShouldThrottle(ctx, policy, now)
	})
	if err != nil {
		return e.fail(log, "throttle check failed", err)
	}
	if throttled {
		log.Debug("policy match throttled")
		e.metrics.PolicyOutcome(observability.OutcomeThrottled)
		return nil
	}

	suppressed, err := e.withStore(ctx, func(ctx context.Context) (bool, error) {
		return e.suppressor.IsSuppressed(ctx, policy, event, now)
	})
	if err != nil {
		return e.fail(log, "suppression check failed", err)
	}
	if suppressed {
		log.Info("policy match suppressed",
			logger.String("suppression_key", SuppressionKey(policy.ID, event)))
		e.metrics.PolicyOutcome(observability.OutcomeSuppressed)
		return nil
	}

	reserved, err := e.withStore(ctx, func(ctx context.Context) (bool, error) {
		return e.throttler.Reserve(ctx, policy, now)
	})
	if err != nil {
		return e.fail(log, "throttle reservation failed", err)
	}
	if !reserved {
		log.Debug("policy match throttled at reservation")
		e.metrics.PolicyOutcome(observability.OutcomeThrottled)
		return nil
	}

	// The alert must be persisted and delivered even if the caller goes away.
	persistCtx := context.WithoutCancel(ctx)
	alert, err := e.createAlert(persistCtx, policy, event, tenantID, now)
	if err != nil {
		e.release(persistCtx, log, policy, now)
		return e.fail(log, "failed to create alert", err)
	}

	e.metrics.PolicyOutcome(observability.OutcomeFired)
	log.Info("alert fired",
		logger.String("alert_id", alert.ID),
		logger.String("severity", alert.Severity))
	return e.deliver(persistCtx, policy, alert)
}

func (e *Engine) createAlert(ctx context.Context, policy *entities.Policy, event map[string]any, tenantID string, now time.Time) (*entities.Alert, error) {
	ctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()
	return e.factory.Create(ctx, policy, event, tenantID, now)
}

// deliver dispatches the alert and records the per-provider outcome.
// Delivery failures never undo the alert.
func (e *Engine) deliver(ctx context.Context, policy *entities.Policy, alert *entities.Alert) *TriggeredAlert {
	var results []delivery.Result
	if e.deliverer != nil {
		results = e.deliverer.Deliver(ctx, policy, alert)
	}
	status := delivery.StatusMap(results)
	alert.DeliveryStatus = status

	if len(status) > 0 {
		saveCtx, cancel := context.WithTimeout(ctx, e.storeTimeout)
		defer cancel()
		if err := e.alerts.UpdateDeliveryStatus(saveCtx, alert.ID, status); err != nil {
			e.log.Error("failed to record delivery status",
				logger.String("alert_id", alert.ID),
				logger.Error(err))
		}
	}

	return &TriggeredAlert{
		AlertID:         alert.ID,
		PolicyID:        alert.PolicyID,
		Severity:        alert.Severity,
		Title:           alert.Title,
		Summary:         alert.Summary,
		DeliveryResults: status,
		Deliveries:      results,
	}
}

func (e *Engine) release(ctx context.Context, log logger.Logger, policy *entities.Policy, now time.Time) {
	ctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()
	if err := e.throttler.Release(ctx, policy, now); err != nil {
		log.Warn("failed to release throttle reservation", logger.Error(err))
	}
}

func (e *Engine) fail(log logger.Logger, msg string, err error) *TriggeredAlert {
	log.Error(msg, logger.Error(err))
	e.metrics.PolicyOutcome(observability.OutcomeFailed)
	return nil
}

func (e *Engine) withStore(ctx context.Context, fn func(context.Context) (bool, error)) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()
	return fn(ctx)
}

func (e *Engine) loadPolicies(ctx context.Context, tenantID string) ([]entities.Policy, error) {
	if e.cache != nil {
		if v, ok := e.cache.Get(tenantID); ok {
			return v.([]entities.Policy), nil
		}
	}
	ctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()
	policies, err := e.policies.GetEnabledPolicies(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Set(tenantID, policies, cache.DefaultExpiration)
	}
	return policies, nil
}

// InvalidateTenant drops the cached policies of a tenant so the next event
// sees policy changes immediately.
func (e *Engine) InvalidateTenant(tenantID string) {
	if e.cache != nil {
		e.cache.Delete(tenantID)
	}
}

// TestFirePolicy creates and delivers an alert for policy from a synthetic
// event, bypassing matching, throttling and suppression.
func (e *Engine) TestFirePolicy(ctx context.Context, policy *entities.Policy) (*TriggeredAlert, error) {
	now := e.now().UTC()
	event := map[string]any{
		"test":         true,
		"policy_id":    policy.ID,
		"policy_name":  policy.Name,
		FieldEventType: "policy.test",
		"timestamp":    now.Format(time.RFC3339),
	}
	persistCtx := context.WithoutCancel(ctx)
	alert, err := e.createAlert(persistCtx, policy, event, policy.TenantID, now)
	if err != nil {
		return nil, fmt.Errorf("test fire of policy %s: %w", policy.ID, err)
	}
	e.log.Info("policy test fired",
		logger.String("policy_id", policy.ID),
		logger.String("alert_id", alert.ID))
	return e.deliver(persistCtx, policy, alert), nil
}
