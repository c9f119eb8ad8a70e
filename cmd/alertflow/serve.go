package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/tphakala/alertflow/internal/alerting"
	api "github.com/tphakala/alertflow/internal/api/v2"
	"github.com/tphakala/alertflow/internal/datastore/redisstore"
	"github.com/tphakala/alertflow/internal/datastore/v2/repository"
	"github.com/tphakala/alertflow/internal/delivery"
	"github.com/tphakala/alertflow/internal/errors"
	"github.com/tphakala/alertflow/internal/eventbus"
	"github.com/tphakala/alertflow/internal/logger"
	"github.com/tphakala/alertflow/internal/observability"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(setup func() (*app, error)) *cobra.Command {
	var apiToken string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the event bus consumer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := setup()
			if err != nil {
				return err
			}
			defer rt.Close()
			defer errors.FlushSentry(2 * time.Second)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, rt, apiToken)
		},
	}
	cmd.Flags().StringVar(&apiToken, "api-token", os.Getenv("ALERTFLOW_API_TOKEN"), "bearer token required on mutating API routes")
	return cmd
}

func serve(ctx context.Context, rt *app, apiToken string) error {
	settings := rt.settings
	log := rt.log

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := observability.NewMetrics(reg)
	if err != nil {
		return err
	}

	dbCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	db, err := openDatabase(dbCtx, rt)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	policies := repository.NewPolicyRepository(db.DB())
	alerts := repository.NewAlertRepository(db.DB())
	providers := repository.NewProviderRepository(db.DB())
	suppressions := repository.NewSuppressionRepository(db.DB())

	var throttle alerting.ThrottleStore = repository.NewThrottleRepository(db.DB())
	if settings.Redis.Enabled {
		client, err := redisstore.Connect(ctx, settings.Redis)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()
		throttle = redisstore.New(client)
		log.Info("using redis throttle store", logger.String("addr", settings.Redis.Addr))
	}

	mailer := delivery.NewMailer(alerts, settings.Alerting.MailQueueSize, log,
		delivery.WithMailWorkers(settings.Alerting.MailWorkers),
		delivery.WithMailerMetrics(metrics))
	mailer.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := mailer.Stop(stopCtx); err != nil {
			log.Warn("mail queue not drained", logger.Error(err))
		}
	}()

	orchestrator := delivery.NewOrchestrator(providers, log,
		delivery.WithMailer(mailer),
		delivery.WithDefaultTimeout(settings.Alerting.DefaultProviderTimeout.Std()),
		delivery.WithRateLimit(settings.Alerting.ProviderRateLimit, settings.Alerting.ProviderRateBurst),
		delivery.WithMetrics(metrics))

	engine := alerting.NewEngine(alerting.EngineDeps{
		Policies:     policies,
		Alerts:       alerts,
		Throttle:     throttle,
		Suppressions: suppressions,
		Delivery:     orchestrator,
		Metrics:      metrics,
		Log:          log,
	},
		alerting.WithPolicyCacheTTL(settings.Alerting.PolicyCacheTTL.Std()),
		alerting.WithMaxConcurrency(settings.Alerting.MaxConcurrentPolicies),
		alerting.WithStoreTimeout(settings.Alerting.StoreTimeout.Std()))

	bus, err := eventbus.New(&settings.EventBus, log.Module("eventbus"))
	if err != nil {
		return err
	}
	defer func() {
		if err := bus.Close(); err != nil {
			log.Warn("event bus close failed", logger.Error(err))
		}
	}()
	consumer := alerting.NewBusConsumer(bus, engine, alerting.ConsumerConfig{
		IngestTopic:    settings.EventBus.IngestTopic,
		TriggeredTopic: settings.EventBus.TriggeredTopic,
		DefaultTenant:  settings.Alerting.DefaultTenant,
	}, metrics, log)
	if err := consumer.Start(); err != nil {
		return err
	}

	hub := api.NewAlertHub(log.Module("stream"))
	if topic := settings.EventBus.TriggeredTopic; topic != "" {
		if err := bus.Subscribe(topic, hub.HandleBusMessage); err != nil {
			return err
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("1M"))
	api.New(e, api.Deps{
		Engine:        engine,
		Policies:      policies,
		Alerts:        alerts,
		Providers:     providers,
		Suppressions:  suppressions,
		Gatherer:      reg,
		Hub:           hub,
		DefaultTenant: settings.Alerting.DefaultTenant,
		APIToken:      apiToken,
		Log:           log,
	})
	e.Server.ReadTimeout = settings.Server.ReadTimeout.Std()
	e.Server.WriteTimeout = settings.Server.WriteTimeout.Std()

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", logger.String("addr", settings.Server.Listen))
		if err := e.Start(settings.Server.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	return e.Shutdown(shutdownCtx)
}
