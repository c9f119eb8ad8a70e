// Package containers provides testcontainer management for integration tests.
//
// It starts the external services alertflow talks to:
//
//   - MySQL 8 for the gorm repositories
//   - Eclipse Mosquitto for the MQTT event bus
//   - Redis for the Redis throttle store
//   - Mailpit as an SMTP sink for the email provider
//
// Containers are typically started in TestMain and shared by the package:
//
//	var mysqlContainer *containers.MySQLContainer
//
//	func TestMain(m *testing.M) {
//	    var err error
//	    mysqlContainer, err = containers.NewMySQLContainer(context.Background(), nil)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    code := m.Run()
//	    _ = mysqlContainer.Terminate(context.Background())
//	    os.Exit(code)
//	}
//
// Tests using this package carry the "integration" build tag:
//
//	//go:build integration
package containers
