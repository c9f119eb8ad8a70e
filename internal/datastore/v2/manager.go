// Package v2 opens the alertflow database and manages its schema.
package v2

import (
	"context"
	"fmt"
	"time"

	"github.com/tphakala/alertflow/internal/conf"
	"github.com/tphakala/alertflow/internal/datastore/v2/entities"
	"github.com/tphakala/alertflow/internal/errors"
	"github.com/tphakala/alertflow/internal/logger"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"
)

const (
	driverSQLite = "sqlite"
	driverMySQL  = "mysql"

	// pingTimeout bounds the connectivity check performed by Open.
	pingTimeout = 5 * time.Second
)

// Manager owns the gorm handle.
type Manager struct {
	db     *gorm.DB
	driver string
	log    logger.Logger
}

// Open connects to the configured database and verifies the connection.
func Open(cfg conf.DatabaseSettings, log logger.Logger) (*Manager, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case driverSQLite:
		// WAL plus a busy timeout lets concurrent policy goroutines share
		// the single sqlite writer without SQLITE_BUSY failures.
		dsn := fmt.Sprintf("file:%s?_foreign_keys=ON&_journal_mode=WAL&_busy_timeout=5000", cfg.Path)
		dialector = sqlite.Open(dsn)
	case driverMySQL:
		dialector = mysql.Open(cfg.DSN)
	default:
		return nil, errors.Newf("unsupported database driver %q", cfg.Driver).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}

	logLevel := gorm_logger.Silent
	if cfg.Debug {
		logLevel = gorm_logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  gorm_logger.Default.LogMode(logLevel),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, errors.Newf("failed to open %s database: %w", cfg.Driver, err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.Driver == driverSQLite {
		sqlDB.SetMaxOpenConns(1)
	} else {
		if cfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		sqlDB.SetConnMaxLifetime(5 * time.Minute)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, errors.Newf("failed to ping %s database: %w", cfg.Driver, err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}

	log.Info("database connected", logger.String("driver", cfg.Driver))
	return &Manager{db: db, driver: cfg.Driver, log: log}, nil
}

// NewManager wraps an existing gorm handle.
func NewManager(db *gorm.DB, log logger.Logger) *Manager {
	return &Manager{db: db, driver: db.Dialector.Name(), log: log}
}

// DB returns the gorm handle.
func (m *Manager) DB() *gorm.DB {
	return m.db
}

// Migrate creates or updates all tables.
func (m *Manager) Migrate(ctx context.Context) error {
	if err := m.db.WithContext(ctx).AutoMigrate(entities.All()...); err != nil {
		return errors.Newf("failed to migrate schema: %w", err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	m.log.Info("database schema migrated", logger.Int("tables", len(entities.All())))
	return nil
}

// Close releases the underlying connection pool.
func (m *Manager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
