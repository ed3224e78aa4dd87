package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ekaya-inc/mirror-engine/pkg/adapters/datasource"
	"github.com/ekaya-inc/mirror-engine/pkg/apperrors"
)

// Introspector implements datasource.SchemaIntrospector for MySQL.
type Introspector struct {
	db     *sql.DB
	schema string
}

// NewIntrospector wraps an adapter's connection for schema catalog reads.
func NewIntrospector(adapter *Adapter) *Introspector {
	return &Introspector{
		db:     adapter.DB(),
		schema: adapter.Database(),
	}
}

// TableExists reports whether the table is present in the connected database.
func (i *Introspector) TableExists(ctx context.Context, table string) (bool, error) {
	const query = `
	SELECT COUNT(*)
	FROM information_schema.TABLES
	WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
	`

	var count int
	if err := i.db.QueryRowContext(ctx, query, i.schema, table).Scan(&count); err != nil {
		return false, fmt.Errorf("query table existence: %w", err)
	}

	return count > 0, nil
}

// Columns returns column names in declaration order.
func (i *Introspector) Columns(ctx context.Context, table string) ([]string, error) {
	const query = `
	SELECT COLUMN_NAME
	FROM information_schema.COLUMNS
	WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
	ORDER BY ORDINAL_POSITION
	`

	rows, err := i.db.QueryContext(ctx, query, i.schema, table)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan column row: %w", err)
		}
		columns = append(columns, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate column rows: %w", err)
	}

	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: %s.%s", apperrors.ErrTableNotFound, i.schema, table)
	}

	return columns, nil
}

// PrimaryKey returns the primary key column names ordered by ordinal position.
func (i *Introspector) PrimaryKey(ctx context.Context, table string) ([]string, error) {
	const query = `
	SELECT COLUMN_NAME
	FROM information_schema.KEY_COLUMN_USAGE
	WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ? AND CONSTRAINT_NAME = 'PRIMARY'
	ORDER BY ORDINAL_POSITION
	`

	rows, err := i.db.QueryContext(ctx, query, i.schema, table)
	if err != nil {
		return nil, fmt.Errorf("query primary key: %w", err)
	}
	defer rows.Close()

	var pk []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan primary key row: %w", err)
		}
		pk = append(pk, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate primary key rows: %w", err)
	}

	if len(pk) == 0 {
		return nil, fmt.Errorf("%w: %s.%s", apperrors.ErrNoPrimaryKey, i.schema, table)
	}

	return pk, nil
}

// CreateStatement returns the table's verbatim creation DDL via
// SHOW CREATE TABLE. The statement is the byte-faithful source of truth for
// bootstrapping the target: indexes, types and defaults survive exactly as
// declared, which catalog introspection alone would not guarantee.
func (i *Introspector) CreateStatement(ctx context.Context, table string) (string, error) {
	query := fmt.Sprintf("SHOW CREATE TABLE %s", QuoteIdentifier(table))

	var name, ddl string
	if err := i.db.QueryRowContext(ctx, query).Scan(&name, &ddl); err != nil {
		if err == sql.ErrNoRows {
			return "", fmt.Errorf("%w: %s.%s", apperrors.ErrTableNotFound, i.schema, table)
		}
		return "", fmt.Errorf("show create table: %w", err)
	}

	return ddl, nil
}

// Ensure Introspector implements datasource.SchemaIntrospector at compile time.
var _ datasource.SchemaIntrospector = (*Introspector)(nil)
