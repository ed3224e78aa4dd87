package mirror

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	dsmysql "github.com/ekaya-inc/mirror-engine/pkg/adapters/datasource/mysql"
)

// DefaultBatchSize bounds multi-row inserts and update batches.
const DefaultBatchSize = 500

// Counts reports how many rows each apply phase touched.
type Counts struct {
	Inserted int
	Updated  int
	Deleted  int
}

// Applier executes a diff against the target table.
type Applier struct {
	db        *sql.DB
	table     string
	columns   []string // business columns, shared order
	pk        []string
	batchSize int
	logger    *zap.Logger
}

// NewApplier creates an applier. batchSize <= 0 selects DefaultBatchSize;
// if logger is nil, a no-op logger is used.
func NewApplier(db *sql.DB, table string, columns, pk []string, batchSize int, logger *zap.Logger) *Applier {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Applier{
		db:        db,
		table:     table,
		columns:   columns,
		pk:        pk,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Apply writes the diff inside a single transaction on a dedicated
// connection. FOREIGN_KEY_CHECKS is session-scoped, so it is disabled on
// that one connection for the whole apply phase (mirrored rows may reference
// rows that do not exist on the target) and restored before the connection
// returns to the pool. On any failure the transaction rolls back and the
// target is left exactly as it was.
func (a *Applier) Apply(ctx context.Context, diff Result, source, target Snapshot) (Counts, error) {
	conn, err := a.db.Conn(ctx)
	if err != nil {
		return Counts{}, fmt.Errorf("acquire target connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "SET FOREIGN_KEY_CHECKS=0"); err != nil {
		return Counts{}, fmt.Errorf("disable foreign key checks: %w", err)
	}

	counts, applyErr := a.applyTx(ctx, conn, diff, source, target)

	if _, err := conn.ExecContext(ctx, "SET FOREIGN_KEY_CHECKS=1"); err != nil && applyErr == nil {
		applyErr = fmt.Errorf("restore foreign key checks: %w", err)
	}

	return counts, applyErr
}

func (a *Applier) applyTx(ctx context.Context, conn *sql.Conn, diff Result, source, target Snapshot) (Counts, error) {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return Counts{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() // no-op once committed

	var counts Counts

	if counts.Inserted, err = a.applyInserts(ctx, tx, diff.ToInsert, source); err != nil {
		return Counts{}, err
	}
	if counts.Updated, err = a.applyUpdates(ctx, tx, diff.ToUpdate, source); err != nil {
		return Counts{}, err
	}
	if counts.Deleted, err = a.applyDeletes(ctx, tx, diff.ToDelete, target); err != nil {
		return Counts{}, err
	}

	if err := tx.Commit(); err != nil {
		return Counts{}, fmt.Errorf("commit: %w", err)
	}

	return counts, nil
}

// applyInserts issues genuinely multi-row INSERT statements, batchSize rows
// per statement. operation_type is set explicitly; last_updated rides the
// column default.
func (a *Applier) applyInserts(ctx context.Context, tx *sql.Tx, keys []Key, source Snapshot) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}

	insertCols := append(dsmysql.QuoteIdentifiers(a.columns), dsmysql.QuoteIdentifier(OperationColumn))
	rowPlaceholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(insertCols)), ", ") + ")"

	inserted := 0
	for _, batch := range chunkKeys(keys, a.batchSize) {
		placeholders := make([]string, 0, len(batch))
		args := make([]any, 0, len(batch)*len(insertCols))
		for _, key := range batch {
			row := source[key]
			placeholders = append(placeholders, rowPlaceholder)
			args = append(args, row.Values...)
			args = append(args, OpInserted)
		}

		stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
			dsmysql.QuoteIdentifier(a.table),
			strings.Join(insertCols, ", "),
			strings.Join(placeholders, ", "))

		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return 0, fmt.Errorf("insert batch of %d rows: %w", len(batch), err)
		}
		inserted += len(batch)

		a.logger.Debug("Applied insert batch",
			zap.String("table", a.table),
			zap.Int("rows", len(batch)))
	}

	return inserted, nil
}

// applyUpdates rewrites every business column and stamps the tracking
// columns. Each row is a single-row UPDATE keyed by the primary key
// predicate; batching only amortizes statement preparation.
func (a *Applier) applyUpdates(ctx context.Context, tx *sql.Tx, keys []Key, source Snapshot) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}

	setParts := make([]string, 0, len(a.columns)+2)
	for _, col := range a.columns {
		setParts = append(setParts, dsmysql.QuoteIdentifier(col)+" = ?")
	}
	setParts = append(setParts,
		fmt.Sprintf("%s = '%s'", dsmysql.QuoteIdentifier(OperationColumn), OpUpdated),
		dsmysql.QuoteIdentifier(UpdatedColumn)+" = CURRENT_TIMESTAMP")

	stmtSQL := fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		dsmysql.QuoteIdentifier(a.table),
		strings.Join(setParts, ", "),
		pkPredicate(a.pk))

	updated := 0
	for _, batch := range chunkKeys(keys, a.batchSize) {
		stmt, err := tx.PrepareContext(ctx, stmtSQL)
		if err != nil {
			return 0, fmt.Errorf("prepare update: %w", err)
		}

		for _, key := range batch {
			row := source[key]
			args := make([]any, 0, len(row.Values)+len(row.KeyValues))
			args = append(args, row.Values...)
			args = append(args, row.KeyValues...)
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				stmt.Close()
				return 0, fmt.Errorf("update row %s: %w", key, err)
			}
			updated++
		}
		stmt.Close()

		a.logger.Debug("Applied update batch",
			zap.String("table", a.table),
			zap.Int("rows", len(batch)))
	}

	return updated, nil
}

// applyDeletes soft-deletes one row at a time: tracking columns change,
// business columns stay untouched and the row remains physically present.
func (a *Applier) applyDeletes(ctx context.Context, tx *sql.Tx, keys []Key, target Snapshot) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}

	stmtSQL := fmt.Sprintf("UPDATE %s SET %s = '%s', %s = CURRENT_TIMESTAMP WHERE %s",
		dsmysql.QuoteIdentifier(a.table),
		dsmysql.QuoteIdentifier(OperationColumn), OpDeleted,
		dsmysql.QuoteIdentifier(UpdatedColumn),
		pkPredicate(a.pk))

	stmt, err := tx.PrepareContext(ctx, stmtSQL)
	if err != nil {
		return 0, fmt.Errorf("prepare soft delete: %w", err)
	}
	defer stmt.Close()

	deleted := 0
	for _, key := range keys {
		row := target[key]
		if _, err := stmt.ExecContext(ctx, row.KeyValues...); err != nil {
			return 0, fmt.Errorf("soft delete row %s: %w", key, err)
		}
		deleted++
	}

	return deleted, nil
}

// pkPredicate builds "`a` = ? AND `b` = ?" for the primary key columns.
func pkPredicate(pk []string) string {
	parts := make([]string, len(pk))
	for i, col := range pk {
		parts[i] = dsmysql.QuoteIdentifier(col) + " = ?"
	}
	return strings.Join(parts, " AND ")
}

// chunkKeys splits keys into consecutive slices of at most size elements.
func chunkKeys(keys []Key, size int) [][]Key {
	var chunks [][]Key
	for start := 0; start < len(keys); start += size {
		end := start + size
		if end > len(keys) {
			end = len(keys)
		}
		chunks = append(chunks, keys[start:end])
	}
	return chunks
}
