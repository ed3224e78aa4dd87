package datasource

import "context"

// ConnectionTester tests database connectivity.
// Each implementation owns its connection and must be closed when done.
type ConnectionTester interface {
	// TestConnection verifies the database is reachable with valid credentials.
	// Returns nil if connection is healthy, error otherwise.
	TestConnection(ctx context.Context) error

	// Close releases the database connection.
	Close() error
}

// SchemaIntrospector reads table definitions from a live schema catalog.
// The mirror engine refuses to operate on tables it cannot introspect.
type SchemaIntrospector interface {
	// TableExists reports whether the table is present in the connected database.
	TableExists(ctx context.Context, table string) (bool, error)

	// Columns returns column names in declaration order.
	// Returns apperrors.ErrTableNotFound if the table does not exist.
	Columns(ctx context.Context, table string) ([]string, error)

	// PrimaryKey returns the primary key column names ordered by ordinal
	// position. Returns apperrors.ErrNoPrimaryKey if the table has none.
	PrimaryKey(ctx context.Context, table string) ([]string, error)

	// CreateStatement returns the table's verbatim creation DDL.
	CreateStatement(ctx context.Context, table string) (string, error)
}
