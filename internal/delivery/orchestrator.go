package delivery

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/tphakala/alertflow/internal/datastore/v2/entities"
	"github.com/tphakala/alertflow/internal/logger"
	"github.com/tphakala/alertflow/internal/observability"
	"golang.org/x/time/rate"
)

const (
	defaultProviderTimeout = 10 * time.Second
	// limiterIdleTTL evicts rate limiters of providers that stopped sending.
	limiterIdleTTL = 30 * time.Minute
)

// ProviderSource resolves provider ids to provider records.
type ProviderSource interface {
	GetProvidersByIDs(ctx context.Context, tenantID string, ids []string) ([]entities.Provider, error)
}

// sleepFunc waits between webhook retries.
type sleepFunc func(ctx context.Context, d time.Duration) error

// Orchestrator resolves a policy's providers and dispatches an alert to
// each of them concurrently. One provider's failure never affects another.
type Orchestrator struct {
	providers      ProviderSource
	client         *http.Client
	mailer         *Mailer
	defaultTimeout time.Duration
	metrics        *observability.Metrics
	log            logger.Logger
	sleep          sleepFunc

	rateLimit rate.Limit
	rateBurst int
	limiters  *cache.Cache
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithHTTPClient sets the client used by the HTTP adapters.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Orchestrator) { o.client = c }
}

// WithMailer enables the email adapter.
func WithMailer(m *Mailer) Option {
	return func(o *Orchestrator) { o.mailer = m }
}

// WithDefaultTimeout sets the per-call timeout for providers that do not
// configure one.
func WithDefaultTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.defaultTimeout = d
		}
	}
}

// WithRateLimit applies a token bucket per provider. A zero limit disables it.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(o *Orchestrator) {
		o.rateLimit = rate.Limit(perSecond)
		o.rateBurst = max(burst, 1)
	}
}

// WithMetrics records delivery metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func withSleep(fn sleepFunc) Option {
	return func(o *Orchestrator) { o.sleep = fn }
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(providers ProviderSource, log logger.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		providers:      providers,
		client:         &http.Client{},
		defaultTimeout: defaultProviderTimeout,
		log:            log.Module("delivery"),
		sleep:          sleepContext,
		limiters:       cache.New(limiterIdleTTL, limiterIdleTTL),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Deliver dispatches the alert to every enabled provider of the policy and
// returns one result per provider, in the policy's provider order. Missing
// and disabled providers are skipped.
func (o *Orchestrator) Deliver(ctx context.Context, policy *entities.Policy, alert *entities.Alert) []Result {
	if len(policy.ProviderIDs) == 0 {
		return []Result{}
	}

	providers, err := o.providers.GetProvidersByIDs(ctx, alert.TenantID, policy.ProviderIDs)
	if err != nil {
		o.log.Error("failed to resolve providers",
			logger.String("policy_id", policy.ID),
			logger.String("alert_id", alert.ID),
			logger.Error(err))
		results := make([]Result, 0, len(policy.ProviderIDs))
		for _, id := range dedupe(policy.ProviderIDs) {
			r := failed("provider lookup failed")
			r.ProviderID = id
			results = append(results, r)
		}
		return results
	}

	byID := make(map[string]*entities.Provider, len(providers))
	for i := range providers {
		byID[providers[i].ID] = &providers[i]
	}
	targets := make([]*entities.Provider, 0, len(providers))
	for _, id := range dedupe(policy.ProviderIDs) {
		if p, ok := byID[id]; ok && p.Enabled {
			targets = append(targets, p)
		}
	}

	payload := NewPayload(alert)
	results := make([]Result, len(targets))
	var wg sync.WaitGroup
	for i, p := range targets {
		wg.Go(func() {
			results[i] = o.dispatch(ctx, p, &payload)
		})
	}
	wg.Wait()
	return results
}

func (o *Orchestrator) dispatch(ctx context.Context, p *entities.Provider, payload *Payload) (result Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("provider dispatch panicked",
				logger.String("provider_id", p.ID),
				logger.Any("panic", r))
			result = failed(fmt.Sprintf("panic: %v", r))
		}
		result.ProviderID = p.ID
		result.Kind = p.Kind
		o.metrics.Delivery(p.Kind, result.Status, time.Since(start))
		if !result.Success && result.Status == entities.DeliveryFailed {
			o.log.Warn("provider delivery failed",
				logger.String("provider_id", p.ID),
				logger.String("kind", p.Kind),
				logger.String("alert_id", payload.AlertID),
				logger.String("reason", result.Message))
		}
	}()

	target, err := ParseTarget(p)
	if err != nil {
		return failed(err.Error())
	}
	if err := o.wait(ctx, p.ID); err != nil {
		return failed(fmt.Sprintf("rate limiter: %v", err))
	}

	switch target.Kind {
	case entities.ProviderIncident:
		return o.sendIncident(ctx, target.Incident, payload)
	case entities.ProviderChat:
		return o.sendChat(ctx, target.Chat, payload)
	case entities.ProviderWebhook:
		return o.sendWebhook(ctx, target.Webhook, payload)
	case entities.ProviderEmail:
		return o.enqueueEmail(target.ProviderID, target.Email, payload)
	default:
		return failed("unsupported provider kind " + target.Kind)
	}
}

// wait blocks on the provider's token bucket when rate limiting is enabled.
func (o *Orchestrator) wait(ctx context.Context, providerID string) error {
	if o.rateLimit <= 0 {
		return nil
	}
	var limiter *rate.Limiter
	if v, ok := o.limiters.Get(providerID); ok {
		limiter = v.(*rate.Limiter)
	} else {
		limiter = rate.NewLimiter(o.rateLimit, o.rateBurst)
		if err := o.limiters.Add(providerID, limiter, cache.DefaultExpiration); err != nil {
			// Another dispatch created it first.
			if v, ok := o.limiters.Get(providerID); ok {
				limiter = v.(*rate.Limiter)
			}
		}
	}
	return limiter.Wait(ctx)
}

func (o *Orchestrator) timeout(d time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return o.defaultTimeout
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
