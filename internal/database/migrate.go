package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/sqlite.sql
var sqliteMigrationSQL string

//go:embed migrations/postgres.sql
var postgresMigrationSQL string

// MigrateSQLite creates the certificates table and its indexes. It is safe to
// run against an already initialized database.
func MigrateSQLite(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, sqliteMigrationSQL); err != nil {
		return fmt.Errorf("run sqlite migration: %w", err)
	}
	return nil
}

// MigratePostgres is MigrateSQLite for a PostgreSQL pool.
func MigratePostgres(pool *pgxpool.Pool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := pool.Exec(ctx, postgresMigrationSQL); err != nil {
		return fmt.Errorf("run postgres migration: %w", err)
	}
	return nil
}
