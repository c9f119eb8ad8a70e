package errors

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
)

// SentryConfig controls error reporting.
type SentryConfig struct {
	Enabled     bool
	DSN         string
	Environment string
	Release     string
	SampleRate  float64
}

var sentryEnabled atomic.Bool

// reportable lists the categories forwarded to Sentry. Validation and
// not-found errors are expected in normal operation.
var reportable = map[Category]bool{
	CategoryDatabase:      true,
	CategoryInternal:      true,
	CategoryConfiguration: true,
}

// InitSentry configures the global Sentry client. It is a no-op when
// reporting is disabled.
func InitSentry(cfg SentryConfig) error {
	if !cfg.Enabled {
		sentryEnabled.Store(false)
		return nil
	}
	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = 1.0
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		SampleRate:       sampleRate,
		AttachStacktrace: true,
	}); err != nil {
		return fmt.Errorf("failed to initialize sentry: %w", err)
	}
	sentryEnabled.Store(true)
	return nil
}

// FlushSentry waits for buffered events to be sent.
func FlushSentry(timeout time.Duration) {
	if sentryEnabled.Load() {
		sentry.Flush(timeout)
	}
}

func report(ee *EnhancedError) {
	if !sentryEnabled.Load() || !reportable[ee.category] {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		if ee.component != "" {
			scope.SetTag("component", ee.component)
		}
		scope.SetTag("category", string(ee.category))
		if len(ee.context) > 0 {
			scope.SetContext("error_context", sentry.Context(ee.GetContext()))
		}
		sentry.CaptureException(ee)
	})
}
