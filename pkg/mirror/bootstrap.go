package mirror

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/mirror-engine/pkg/adapters/datasource"
)

// Bootstrapper creates the target table from the source's live definition.
type Bootstrapper struct {
	source datasource.SchemaIntrospector
	target datasource.SchemaIntrospector
	db     *sql.DB // target handle, DDL executes here
	logger *zap.Logger
}

// NewBootstrapper wires the two introspectors and the target handle.
// If logger is nil, a no-op logger is used.
func NewBootstrapper(source, target datasource.SchemaIntrospector, targetDB *sql.DB, logger *zap.Logger) *Bootstrapper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bootstrapper{source: source, target: target, db: targetDB, logger: logger}
}

// EnsureTargetTable makes the target table exist. If it already does, this
// is a no-op. Otherwise the source's verbatim DDL is fetched, restructured
// (foreign keys dropped, tracking columns injected) and executed against the
// target. FOREIGN_KEY_CHECKS is session-scoped in MySQL, so the DDL runs on
// a dedicated connection with checks disabled and restored before release.
// Any failure is fatal to the run; MySQL DDL auto-commits, so there is no
// partial bootstrap to retry.
func (b *Bootstrapper) EnsureTargetTable(ctx context.Context, table string) error {
	exists, err := b.target.TableExists(ctx, table)
	if err != nil {
		return fmt.Errorf("check target table: %w", err)
	}
	if exists {
		b.logger.Info("Target table already exists", zap.String("table", table))
		return nil
	}

	ddl, err := b.source.CreateStatement(ctx, table)
	if err != nil {
		return fmt.Errorf("fetch source create statement: %w", err)
	}

	def, err := ParseCreateTable(ddl)
	if err != nil {
		return fmt.Errorf("parse source create statement: %w", err)
	}
	stmt := def.RenderMirror()

	conn, err := b.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire target connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "SET FOREIGN_KEY_CHECKS=0"); err != nil {
		return fmt.Errorf("disable foreign key checks: %w", err)
	}

	_, execErr := conn.ExecContext(ctx, stmt)

	if _, err := conn.ExecContext(ctx, "SET FOREIGN_KEY_CHECKS=1"); err != nil && execErr == nil {
		execErr = fmt.Errorf("restore foreign key checks: %w", err)
	}
	if execErr != nil {
		return fmt.Errorf("create target table %s: %w", table, execErr)
	}

	b.logger.Info("Target table created",
		zap.String("table", table),
		zap.Int("dropped_foreign_keys", len(def.ForeignKeys)))

	return nil
}
