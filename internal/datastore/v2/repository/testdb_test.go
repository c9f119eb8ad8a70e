package repository

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tphakala/alertflow/internal/datastore/v2/entities"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"
)

// setupTestDB creates an in-memory SQLite database private to the test.
// Shared-cache mode with a single connection ensures every query sees the
// same database.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=ON", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  gorm_logger.Default.LogMode(gorm_logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err, "failed to open in-memory database")

	sqlDB, err := db.DB()
	require.NoError(t, err, "failed to get sql.DB")
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(entities.All()...), "failed to migrate tables")
	return db
}

func testPolicy(tenantID, name string) *entities.Policy {
	return &entities.Policy{
		TenantID: tenantID,
		Name:     name,
		Enabled:  true,
		Severity: entities.SeverityHigh,
		MatchAll: true,
		Conditions: []entities.Condition{
			{Field: "event_type", Operator: "eq", Value: "login_failed"},
			{Field: "attempts", Operator: "gte", Value: 5.0},
		},
		ThrottleMinutes:  5,
		MaxAlertsPerHour: 10,
		MessageTemplate:  "Failed login for {user_id}",
		ProviderIDs:      []string{"prov-1"},
	}
}
