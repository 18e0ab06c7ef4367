package migrations

import (
	"context"
	"database/sql"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	syncengine "github.com/ohjayaxel/syncengine"
)

func TestFilesystems_ReturnsPostgresAndSQLite(t *testing.T) {
	filesystems, err := Filesystems()
	if err != nil {
		t.Fatalf("filesystems: %v", err)
	}
	if len(filesystems) != 2 {
		t.Fatalf("expected 2 filesystems, got %d", len(filesystems))
	}

	var postgresFound bool
	var sqliteFound bool
	for _, entry := range filesystems {
		matches, globErr := fs.Glob(entry.FS, "*.up.sql")
		if globErr != nil {
			t.Fatalf("glob %s: %v", entry.Dialect, globErr)
		}
		if len(matches) == 0 {
			t.Fatalf("expected %s migration files, got none", entry.Dialect)
		}
		switch entry.Dialect {
		case DialectPostgres:
			postgresFound = true
		case DialectSQLite:
			sqliteFound = true
		}
	}

	if !postgresFound {
		t.Fatalf("expected postgres filesystem")
	}
	if !sqliteFound {
		t.Fatalf("expected sqlite filesystem")
	}
}

func TestRegister_UsesValidationTargets(t *testing.T) {
	var calls []string
	_, err := Register(context.Background(), func(_ context.Context, dialect string, _ string, _ fs.FS) error {
		calls = append(calls, dialect)
		return nil
	}, WithValidationTargets(DialectSQLite))
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if len(calls) != 1 {
		t.Fatalf("expected 1 registration call, got %d", len(calls))
	}
	if calls[0] != DialectSQLite {
		t.Fatalf("expected sqlite registration, got %q", calls[0])
	}
}

func TestSchemaMigrationPairs_ExistForBothDialects(t *testing.T) {
	root := syncengine.GetCoreMigrationsFS()
	paths := []string{
		"data/sql/migrations/20250301000000_sync_engine_schema.up.sql",
		"data/sql/migrations/20250301000000_sync_engine_schema.down.sql",
		"data/sql/migrations/20250301000001_seed_geo_targets.up.sql",
		"data/sql/migrations/20250301000001_seed_geo_targets.down.sql",
		"data/sql/migrations/sqlite/20250301000000_sync_engine_schema.up.sql",
		"data/sql/migrations/sqlite/20250301000000_sync_engine_schema.down.sql",
		"data/sql/migrations/sqlite/20250301000001_seed_geo_targets.up.sql",
		"data/sql/migrations/sqlite/20250301000001_seed_geo_targets.down.sql",
	}
	for _, migrationPath := range paths {
		content, err := fs.ReadFile(root, migrationPath)
		if err != nil {
			t.Fatalf("read migration %s: %v", migrationPath, err)
		}
		if strings.TrimSpace(string(content)) == "" {
			t.Fatalf("expected migration %s to have SQL content", migrationPath)
		}
	}
}

func TestSQLiteSchemaMigration_ApplyAndRollback(t *testing.T) {
	db, err := sql.Open("sqlite3", "file:migrations-schema-apply?mode=memory&cache=shared&_foreign_keys=on")
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	defer func() { _ = db.Close() }()

	root := syncengine.GetCoreMigrationsFS()
	sqliteMigrations, err := fs.Sub(root, "data/sql/migrations/sqlite")
	if err != nil {
		t.Fatalf("resolve sqlite migrations: %v", err)
	}

	ups := []string{
		"20250301000000_sync_engine_schema.up.sql",
		"20250301000001_seed_geo_targets.up.sql",
	}
	for _, migration := range ups {
		if err := execSQLMigration(context.Background(), db, sqliteMigrations, migration); err != nil {
			t.Fatalf("apply migration %s: %v", migration, err)
		}
	}

	requiredTables := []string{
		"sync_connections",
		"commerce_orders",
		"commerce_refund_slices",
		"ads_performance",
		"customer_ledger",
		"daily_kpis",
		"daily_sales",
		"sync_runs",
		"geo_targets",
	}
	for _, tableName := range requiredTables {
		var count int
		if err := db.QueryRowContext(
			context.Background(),
			`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`,
			tableName,
		).Scan(&count); err != nil {
			t.Fatalf("query sqlite_master for %s: %v", tableName, err)
		}
		if count != 1 {
			t.Fatalf("expected table %s to exist after up migration", tableName)
		}
	}

	var usCode string
	if err := db.QueryRowContext(
		context.Background(),
		`SELECT country_code FROM geo_targets WHERE criterion_id = ?`,
		2840,
	).Scan(&usCode); err != nil {
		t.Fatalf("query seeded geo target: %v", err)
	}
	if usCode != "US" {
		t.Fatalf("expected seeded US criterion, got %q", usCode)
	}

	downs := []string{
		"20250301000001_seed_geo_targets.down.sql",
		"20250301000000_sync_engine_schema.down.sql",
	}
	for _, migration := range downs {
		if err := execSQLMigration(context.Background(), db, sqliteMigrations, migration); err != nil {
			t.Fatalf("apply down migration %s: %v", migration, err)
		}
	}

	var remaining int
	if err := db.QueryRowContext(
		context.Background(),
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`,
		"sync_connections",
	).Scan(&remaining); err != nil {
		t.Fatalf("query sqlite_master after down: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expected sync_connections to be dropped after down migration")
	}
}

func TestSQLiteLedgerMinMergeUpsert(t *testing.T) {
	db, err := sql.Open("sqlite3", "file:migrations-ledger-merge?mode=memory&cache=shared&_foreign_keys=on")
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	defer func() { _ = db.Close() }()

	root := syncengine.GetCoreMigrationsFS()
	sqliteMigrations, err := fs.Sub(root, "data/sql/migrations/sqlite")
	if err != nil {
		t.Fatalf("resolve sqlite migrations: %v", err)
	}
	if err := execSQLMigration(
		context.Background(),
		db,
		sqliteMigrations,
		"20250301000000_sync_engine_schema.up.sql",
	); err != nil {
		t.Fatalf("apply schema migration: %v", err)
	}

	mergeStatement := `
		INSERT INTO customer_ledger
			(id, tenant_id, customer_external_id, first_order_at, first_order_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, customer_external_id) DO UPDATE SET
			first_order_at = EXCLUDED.first_order_at,
			first_order_id = EXCLUDED.first_order_id,
			updated_at = EXCLUDED.updated_at
		WHERE EXCLUDED.first_order_at < customer_ledger.first_order_at
			OR (EXCLUDED.first_order_at = customer_ledger.first_order_at
				AND EXCLUDED.first_order_id < customer_ledger.first_order_id)
	`
	merges := [][]any{
		{"row-1", "t1", "cust_1", "2024-05-10T00:00:00Z", "order_500", "2024-05-10T00:00:00Z", "2024-05-10T00:00:00Z"},
		{"row-2", "t1", "cust_1", "2024-05-01T00:00:00Z", "order_100", "2024-05-10T00:00:00Z", "2024-05-10T00:00:00Z"},
		{"row-3", "t1", "cust_1", "2024-05-05T00:00:00Z", "order_300", "2024-05-10T00:00:00Z", "2024-05-10T00:00:00Z"},
		{"row-4", "t1", "cust_1", "2024-05-01T00:00:00Z", "order_050", "2024-05-10T00:00:00Z", "2024-05-10T00:00:00Z"},
	}
	for _, args := range merges {
		if _, err := db.ExecContext(context.Background(), mergeStatement, args...); err != nil {
			t.Fatalf("merge row %v: %v", args[0], err)
		}
	}

	var firstOrderID string
	if err := db.QueryRowContext(
		context.Background(),
		`SELECT first_order_id FROM customer_ledger WHERE tenant_id = ? AND customer_external_id = ?`,
		"t1",
		"cust_1",
	).Scan(&firstOrderID); err != nil {
		t.Fatalf("select merged ledger row: %v", err)
	}
	if firstOrderID != "order_050" {
		t.Fatalf("expected earliest timestamp with smallest order id to win, got %q", firstOrderID)
	}
}

func execSQLMigration(ctx context.Context, db *sql.DB, fsys fs.FS, filename string) error {
	content, err := fs.ReadFile(fsys, filepath.Clean(filename))
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, string(content))
	return err
}
