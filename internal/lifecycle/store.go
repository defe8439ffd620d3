package lifecycle

import (
	"context"
	"fmt"

	"github.com/andres10976/certwatch/internal/database"
	"github.com/andres10976/certwatch/internal/repository"
)

// OpenStore connects to dsn and applies the schema. A postgres:// or
// postgresql:// URL selects PostgreSQL, anything else is a SQLite path.
func OpenStore(ctx context.Context, dsn string) (repository.Store, error) {
	if database.IsPostgresURL(dsn) {
		pool, err := database.ConnectPostgres(ctx, dsn)
		if err != nil {
			return nil, err
		}
		if err := database.MigratePostgres(pool); err != nil {
			pool.Close()
			return nil, err
		}
		return repository.NewPostgresCertificateRepository(pool), nil
	}

	db, err := database.ConnectSQLite(dsn)
	if err != nil {
		return nil, err
	}
	if err := database.MigrateSQLite(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return repository.NewSQLiteCertificateRepository(db), nil
}
