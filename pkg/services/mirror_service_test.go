package services_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/mirror-engine/pkg/config"
	"github.com/ekaya-inc/mirror-engine/pkg/services"
	"github.com/ekaya-inc/mirror-engine/pkg/testhelpers"
)

func mirrorConfig(tm *testhelpers.TestMySQL, table string) *config.Config {
	db := func(name string) config.DatabaseConfig {
		return config.DatabaseConfig{
			Host:     tm.Host,
			Port:     tm.Port,
			User:     "root",
			Password: "test_password",
			Database: name,
		}
	}
	return &config.Config{
		Env:            "local",
		Source:         db("source_db"),
		Target:         db("target_db"),
		TableName:      table,
		BatchSize:      2, // small on purpose, forces multiple insert batches
		ConnectTimeout: 10 * time.Second,
		ConnectRetries: 3,
	}
}

func execAll(t *testing.T, db *sql.DB, stmts ...string) {
	t.Helper()
	for _, stmt := range stmts {
		_, err := db.ExecContext(context.Background(), stmt)
		require.NoError(t, err, "statement: %s", stmt)
	}
}

func TestMirrorService_FullLifecycle(t *testing.T) {
	tm := testhelpers.GetTestMySQL(t)
	ctx := context.Background()

	source := tm.OpenDatabase(t, "source_db")
	target := tm.OpenDatabase(t, "target_db")

	execAll(t, source,
		"DROP TABLE IF EXISTS lifecycle_users",
		`CREATE TABLE lifecycle_users (
			id INT NOT NULL AUTO_INCREMENT,
			name VARCHAR(100) NOT NULL,
			email VARCHAR(100) DEFAULT NULL,
			PRIMARY KEY (id)
		) ENGINE=InnoDB`,
		"INSERT INTO lifecycle_users (id, name, email) VALUES (1, 'alice', 'alice@example.com'), (2, 'bob', NULL), (3, 'carol', 'carol@example.com')",
	)
	execAll(t, target, "DROP TABLE IF EXISTS lifecycle_users")

	svc := services.NewMirrorService(mirrorConfig(tm, "lifecycle_users"), zap.NewNop(), nil)

	// First run bootstraps the target and inserts everything.
	report, err := svc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Counts.Inserted)
	assert.Equal(t, 0, report.Counts.Updated)
	assert.Equal(t, 0, report.Counts.Deleted)
	assert.NotEmpty(t, report.RunID)

	var count int
	require.NoError(t, target.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM lifecycle_users WHERE operation_type = 'inserted'").Scan(&count))
	assert.Equal(t, 3, count)

	// Second run over an unchanged source is a no-op. NULL email on bob must
	// not register as a change.
	report, err = svc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Counts.Inserted)
	assert.Equal(t, 0, report.Counts.Updated)
	assert.Equal(t, 0, report.Counts.Deleted)

	// Mutate the source: update one, delete one, insert one.
	execAll(t, source,
		"UPDATE lifecycle_users SET email = 'bob@example.com' WHERE id = 2",
		"DELETE FROM lifecycle_users WHERE id = 3",
		"INSERT INTO lifecycle_users (id, name, email) VALUES (4, 'dave', NULL)",
	)

	report, err = svc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Counts.Inserted)
	assert.Equal(t, 1, report.Counts.Updated)
	assert.Equal(t, 1, report.Counts.Deleted)

	// Soft delete keeps the row physically present with its business data.
	var name, op string
	require.NoError(t, target.QueryRowContext(ctx,
		"SELECT name, operation_type FROM lifecycle_users WHERE id = 3").Scan(&name, &op))
	assert.Equal(t, "carol", name)
	assert.Equal(t, "deleted", op)

	// A further run does not re-delete or re-update anything.
	report, err = svc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Counts.Inserted)
	assert.Equal(t, 0, report.Counts.Updated)
	assert.Equal(t, 0, report.Counts.Deleted)

	// Resurrect id 3 on the source; the mirror flips it back via an update.
	execAll(t, source,
		"INSERT INTO lifecycle_users (id, name, email) VALUES (3, 'carol', 'carol@example.com')")

	report, err = svc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Counts.Inserted)
	assert.Equal(t, 1, report.Counts.Updated)
	assert.Equal(t, 0, report.Counts.Deleted)

	require.NoError(t, target.QueryRowContext(ctx,
		"SELECT operation_type FROM lifecycle_users WHERE id = 3").Scan(&op))
	assert.Equal(t, "updated", op)
}

func TestMirrorService_BootstrapDropsForeignKeys(t *testing.T) {
	tm := testhelpers.GetTestMySQL(t)
	ctx := context.Background()

	source := tm.OpenDatabase(t, "source_db")
	target := tm.OpenDatabase(t, "target_db")

	execAll(t, source,
		"DROP TABLE IF EXISTS fk_orders",
		"DROP TABLE IF EXISTS fk_customers",
		`CREATE TABLE fk_customers (
			id INT NOT NULL,
			PRIMARY KEY (id)
		) ENGINE=InnoDB`,
		`CREATE TABLE fk_orders (
			id INT NOT NULL,
			customer_id INT NOT NULL,
			total DECIMAL(10,2) DEFAULT NULL,
			PRIMARY KEY (id),
			KEY idx_customer (customer_id),
			CONSTRAINT fk_orders_customer FOREIGN KEY (customer_id) REFERENCES fk_customers (id)
		) ENGINE=InnoDB`,
		"INSERT INTO fk_customers (id) VALUES (10)",
		"INSERT INTO fk_orders (id, customer_id, total) VALUES (1, 10, 99.50)",
	)
	execAll(t, target, "DROP TABLE IF EXISTS fk_orders")

	svc := services.NewMirrorService(mirrorConfig(tm, "fk_orders"), zap.NewNop(), nil)

	// fk_customers is never mirrored; the row lands anyway because the
	// target table carries no foreign keys.
	report, err := svc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Counts.Inserted)

	var fkCount int
	require.NoError(t, target.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM information_schema.REFERENTIAL_CONSTRAINTS
		WHERE CONSTRAINT_SCHEMA = 'target_db' AND TABLE_NAME = 'fk_orders'
	`).Scan(&fkCount))
	assert.Equal(t, 0, fkCount)

	// The secondary index survives the rewrite.
	var idxCount int
	require.NoError(t, target.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT INDEX_NAME)
		FROM information_schema.STATISTICS
		WHERE TABLE_SCHEMA = 'target_db' AND TABLE_NAME = 'fk_orders' AND INDEX_NAME = 'idx_customer'
	`).Scan(&idxCount))
	assert.Equal(t, 1, idxCount)
}

func TestMirrorService_CompositePrimaryKey(t *testing.T) {
	tm := testhelpers.GetTestMySQL(t)
	ctx := context.Background()

	source := tm.OpenDatabase(t, "source_db")
	target := tm.OpenDatabase(t, "target_db")

	execAll(t, source,
		"DROP TABLE IF EXISTS composite_inventory",
		`CREATE TABLE composite_inventory (
			region VARCHAR(20) NOT NULL,
			sku INT NOT NULL,
			quantity INT NOT NULL,
			PRIMARY KEY (region, sku)
		) ENGINE=InnoDB`,
		"INSERT INTO composite_inventory VALUES ('eu', 1, 5), ('us', 1, 7), ('us', 2, 0)",
	)
	execAll(t, target, "DROP TABLE IF EXISTS composite_inventory")

	svc := services.NewMirrorService(mirrorConfig(tm, "composite_inventory"), zap.NewNop(), nil)

	report, err := svc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Counts.Inserted)

	execAll(t, source,
		"UPDATE composite_inventory SET quantity = 6 WHERE region = 'eu' AND sku = 1",
		"DELETE FROM composite_inventory WHERE region = 'us' AND sku = 2",
	)

	report, err = svc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Counts.Inserted)
	assert.Equal(t, 1, report.Counts.Updated)
	assert.Equal(t, 1, report.Counts.Deleted)

	var quantity int
	require.NoError(t, target.QueryRowContext(ctx,
		"SELECT quantity FROM composite_inventory WHERE region = 'eu' AND sku = 1").Scan(&quantity))
	assert.Equal(t, 6, quantity)

	var op string
	require.NoError(t, target.QueryRowContext(ctx,
		"SELECT operation_type FROM composite_inventory WHERE region = 'us' AND sku = 2").Scan(&op))
	assert.Equal(t, "deleted", op)
}

func TestMirrorService_MissingSourceTable(t *testing.T) {
	tm := testhelpers.GetTestMySQL(t)

	svc := services.NewMirrorService(mirrorConfig(tm, "no_such_table"), zap.NewNop(), nil)

	_, err := svc.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table not found")
}
