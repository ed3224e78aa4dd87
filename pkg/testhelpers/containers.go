package testhelpers

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// MySQLTestImage is the MySQL image used for integration tests.
const MySQLTestImage = "mysql:8.4"

// TestMySQL holds a shared MySQL container hosting both sides of the mirror:
// source_db plays the authoritative database and target_db the replica.
type TestMySQL struct {
	Container testcontainers.Container
	Host      string
	Port      int
}

var (
	sharedMySQL     *TestMySQL
	sharedMySQLOnce sync.Once
	sharedMySQLErr  error
)

// GetTestMySQL returns a shared MySQL container for integration tests.
// The container is created once and reused across all tests in the run.
func GetTestMySQL(t *testing.T) *TestMySQL {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedMySQLOnce.Do(func() {
		sharedMySQL, sharedMySQLErr = setupMySQL()
	})

	if sharedMySQLErr != nil {
		t.Fatalf("Failed to setup test MySQL: %v", sharedMySQLErr)
	}

	return sharedMySQL
}

func setupMySQL() (*TestMySQL, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        MySQLTestImage,
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MYSQL_ROOT_PASSWORD": "test_password",
		},
		// mysqld logs "ready for connections" once during the init run and
		// again when the real server comes up.
		WaitingFor: wait.ForLog("ready for connections").
			WithOccurrence(2).
			WithStartupTimeout(120 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "3306")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	tm := &TestMySQL{Container: container, Host: host, Port: port.Int()}

	if err := tm.createDatabases(ctx); err != nil {
		return nil, err
	}

	return tm, nil
}

func (m *TestMySQL) createDatabases(ctx context.Context) error {
	db, err := sql.Open("mysql", m.RootDSN(""))
	if err != nil {
		return fmt.Errorf("failed to open root connection: %w", err)
	}
	defer db.Close()

	// The wait strategy fires on the log line; the socket may lag briefly.
	for i := 0; i < 10; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	if err != nil {
		return fmt.Errorf("failed to ping mysql: %w", err)
	}

	for _, name := range []string{"source_db", "target_db"} {
		if _, err := db.ExecContext(ctx, "CREATE DATABASE IF NOT EXISTS "+name); err != nil {
			return fmt.Errorf("failed to create %s: %w", name, err)
		}
	}

	return nil
}

// RootDSN renders a root DSN for the given database; empty selects none.
func (m *TestMySQL) RootDSN(database string) string {
	return fmt.Sprintf("root:test_password@tcp(%s:%d)/%s?parseTime=true", m.Host, m.Port, database)
}

// OpenDatabase opens a connection to one of the test databases and registers
// cleanup with the test.
func (m *TestMySQL) OpenDatabase(t *testing.T, database string) *sql.DB {
	t.Helper()

	db, err := sql.Open("mysql", m.RootDSN(database))
	if err != nil {
		t.Fatalf("Failed to open %s: %v", database, err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}
