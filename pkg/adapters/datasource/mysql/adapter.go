package mysql

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql" // MySQL driver

	"github.com/ekaya-inc/mirror-engine/pkg/adapters/datasource"
	"github.com/ekaya-inc/mirror-engine/pkg/retry"
)

// Adapter provides MySQL connectivity for one side of the mirror.
type Adapter struct {
	config *Config
	db     *sql.DB
}

// NewAdapter creates a MySQL adapter with the given config. Connection
// establishment runs under the injected retry policy (nil means
// retry.DefaultConfig); each attempt is bounded by cfg.ConnectTimeout.
func NewAdapter(ctx context.Context, cfg *Config, retryCfg *retry.Config) (*Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open connection: %w", err)
	}

	// One sync run is a linear sequence of statements; a single connection
	// keeps session-scoped settings (FOREIGN_KEY_CHECKS) predictable.
	db.SetMaxOpenConns(2)

	if err := retry.Do(ctx, retryCfg, func() error {
		return db.PingContext(ctx)
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect %s:%d/%s: %w", cfg.Host, cfg.Port, cfg.Database, err)
	}

	return &Adapter{config: cfg, db: db}, nil
}

// TestConnection verifies the database is reachable with valid credentials.
func (a *Adapter) TestConnection(ctx context.Context) error {
	if err := a.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	var result int
	if err := a.db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("test query failed: %w", err)
	}

	return nil
}

// Close releases the database connection.
func (a *Adapter) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// DB returns the underlying *sql.DB for use by the introspector and the
// mirror engine.
func (a *Adapter) DB() *sql.DB {
	return a.db
}

// Database returns the connected schema name, needed for catalog queries.
func (a *Adapter) Database() string {
	return a.config.Database
}

// Ensure Adapter implements ConnectionTester at compile time.
var _ datasource.ConnectionTester = (*Adapter)(nil)
