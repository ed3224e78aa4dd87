package mirror

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	dsmysql "github.com/ekaya-inc/mirror-engine/pkg/adapters/datasource/mysql"
)

// Row is one table row as captured at snapshot time.
type Row struct {
	Key       Key
	KeyValues []any // primary key values, in primary-key column order
	Values    []any // business column values, in shared column-list order
	Deleted   bool  // target side only: row is currently soft-deleted
}

// Snapshot is a full in-memory capture of a table keyed by primary key.
// Built fresh each run and discarded at run end; the whole table must fit in
// memory, which bounds the engine's applicability by design.
type Snapshot map[Key]Row

// Loader materializes table snapshots.
type Loader struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewLoader creates a snapshot loader. If logger is nil, a no-op logger is used.
func NewLoader(db *sql.DB, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{db: db, logger: logger}
}

// Load scans the entire table in one unfiltered pass. Business columns are
// read in columnList order and primary key columns in pk order; the caller
// must pass the same columnList for both sides so tuples compare
// element-wise. When withTracking is set (target side), the operation_type
// column is also read to flag soft-deleted rows; they stay in the snapshot
// so the diff engine, not the loader, owns the soft-delete lifecycle.
func (l *Loader) Load(ctx context.Context, table string, columnList, pk []string, withTracking bool) (Snapshot, error) {
	selectCols := append([]string{}, columnList...)
	selectCols = append(selectCols, pk...)
	if withTracking {
		selectCols = append(selectCols, OperationColumn)
	}

	query := fmt.Sprintf("SELECT %s FROM %s",
		strings.Join(dsmysql.QuoteIdentifiers(selectCols), ", "),
		dsmysql.QuoteIdentifier(table))

	rows, err := l.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("scan table %s: %w", table, err)
	}
	defer rows.Close()

	snapshot := make(Snapshot)
	for rows.Next() {
		values := make([]any, len(selectCols))
		ptrs := make([]any, len(selectCols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row from %s: %w", table, err)
		}

		row := Row{
			Values:    values[:len(columnList):len(columnList)],
			KeyValues: values[len(columnList) : len(columnList)+len(pk)],
		}
		row.Key = NewKey(row.KeyValues)

		if withTracking {
			op, _ := normalizeValue(values[len(columnList)+len(pk)])
			row.Deleted = op == OpDeleted
		}

		snapshot[row.Key] = row
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows from %s: %w", table, err)
	}

	l.logger.Info("Loaded table snapshot",
		zap.String("table", table),
		zap.Int("rows", len(snapshot)),
		zap.Bool("with_tracking", withTracking))

	return snapshot, nil
}
