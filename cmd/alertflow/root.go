package main

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/tphakala/alertflow/internal/conf"
	datastore "github.com/tphakala/alertflow/internal/datastore/v2"
	"github.com/tphakala/alertflow/internal/errors"
	"github.com/tphakala/alertflow/internal/logger"
)

// app is what every subcommand needs after config is loaded.
type app struct {
	settings *conf.Settings
	log      logger.Logger
	closers  []io.Closer
}

func (r *app) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		_ = r.closers[i].Close()
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "alertflow",
		Short:         "Policy-driven alert evaluation and delivery",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("ALERTFLOW_CONFIG"), "path to YAML config file")

	setup := func() (*app, error) {
		return newRuntime(configPath)
	}
	root.AddCommand(
		newServeCmd(setup),
		newMigrateCmd(setup),
		newSeedCmd(setup),
		newEmitCmd(setup),
	)
	return root
}

// newRuntime loads settings and builds the logger and error reporting.
func newRuntime(configPath string) (*app, error) {
	settings, err := conf.Load(configPath)
	if err != nil {
		return nil, err
	}

	rt := &app{settings: settings}
	rt.log = newLogger(&settings.Logging, rt)

	if err := errors.InitSentry(errors.SentryConfig{
		Enabled:     settings.Sentry.Enabled,
		DSN:         settings.Sentry.DSN,
		Environment: settings.Sentry.Environment,
		SampleRate:  settings.Sentry.SampleRate,
	}); err != nil {
		rt.log.Warn("sentry disabled", logger.Error(err))
	}
	return rt, nil
}

func newLogger(cfg *conf.LoggingSettings, rt *app) logger.Logger {
	level := logger.ParseLevel(cfg.Level)
	if cfg.File != "" {
		l, closer := logger.NewFileLogger(logger.FileConfig{
			Path:       cfg.File,
			MaxSizeMB:  cfg.MaxSizeMB,
			MaxAgeDays: cfg.MaxAgeDays,
			MaxBackups: cfg.MaxBackups,
			Compress:   cfg.Compress,
			Console:    cfg.Console,
		}, level)
		rt.closers = append(rt.closers, closer)
		return l
	}

	var tz *time.Location
	if cfg.Timezone != "" {
		// already checked by Settings.Validate
		tz, _ = time.LoadLocation(cfg.Timezone)
	}
	return logger.NewSlogLogger(os.Stdout, level, tz)
}

// openDatabase opens and migrates the configured database.
func openDatabase(ctx context.Context, rt *app) (*datastore.Manager, error) {
	db, err := datastore.Open(rt.settings.Database, rt.log.Module("datastore"))
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
