package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/andres10976/certwatch/internal/model"
)

// SQLiteCertificateRepository stores certificates in a SQLite database
// opened through database/sql.
type SQLiteCertificateRepository struct {
	db *sql.DB

	closeOnce sync.Once
	closeErr  error
}

func NewSQLiteCertificateRepository(db *sql.DB) *SQLiteCertificateRepository {
	return &SQLiteCertificateRepository{db: db}
}

func (r *SQLiteCertificateRepository) Insert(ctx context.Context, rec *model.CertificateRecord) (InsertOutcome, error) {
	domains, err := encodeDomains(rec.Domains)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("encode domains: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO certificates
			(cert_index, domains, serialnumber, issuer, seen_timestamp, matched_pattern, processed)
		 VALUES (?, ?, ?, ?, ?, ?, 0)
		 ON CONFLICT (cert_index) DO NOTHING`,
		rec.CertIndex, string(domains), rec.SerialNumber, rec.Issuer, rec.SeenAt, rec.MatchedPattern,
	)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("insert certificate %d: %w", rec.CertIndex, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return OutcomeFailed, fmt.Errorf("rows affected for certificate %d: %w", rec.CertIndex, err)
	}
	if n == 0 {
		return OutcomeDuplicate, nil
	}
	return OutcomeStored, nil
}

const sqliteSelectColumns = `SELECT id, cert_index, domains, serialnumber, issuer,
	seen_timestamp, stored_at, matched_pattern, processed
FROM certificates`

func (r *SQLiteCertificateRepository) Recent(ctx context.Context, limit int, matchedOnly bool) ([]model.StoredCertificate, error) {
	query := sqliteSelectColumns
	if matchedOnly {
		query += ` WHERE matched_pattern IS NOT NULL`
	}
	query += ` ORDER BY seen_timestamp DESC LIMIT ?`
	return r.list(ctx, query, limit)
}

func (r *SQLiteCertificateRepository) Unprocessed(ctx context.Context, limit int) ([]model.StoredCertificate, error) {
	return r.list(ctx, sqliteSelectColumns+` WHERE processed = 0 ORDER BY cert_index DESC LIMIT ?`, limit)
}

func (r *SQLiteCertificateRepository) MarkProcessed(ctx context.Context, certIndex int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE certificates SET processed = 1 WHERE cert_index = ?`, certIndex)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteCertificateRepository) Count(ctx context.Context) (Totals, error) {
	var t Totals
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(matched_pattern) FROM certificates`,
	).Scan(&t.Certificates, &t.Matched)
	return t, err
}

// Close releases the database. Calls after the first are no-ops.
func (r *SQLiteCertificateRepository) Close() error {
	r.closeOnce.Do(func() {
		r.closeErr = r.db.Close()
	})
	return r.closeErr
}

func (r *SQLiteCertificateRepository) list(ctx context.Context, query string, args ...any) ([]model.StoredCertificate, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var certs []model.StoredCertificate
	for rows.Next() {
		var (
			c         model.StoredCertificate
			domains   sql.NullString
			storedAt  sqliteTime
			pattern   sql.NullString
			processed int
		)
		if err := rows.Scan(
			&c.ID, &c.CertIndex, &domains, &c.SerialNumber, &c.Issuer,
			&c.SeenAt, &storedAt, &pattern, &processed,
		); err != nil {
			return nil, err
		}
		if c.Domains, err = decodeDomains(domains.String); err != nil {
			return nil, err
		}
		c.StoredAt = storedAt.Time
		if pattern.Valid {
			p := pattern.String
			c.MatchedPattern = &p
		}
		c.Processed = processed != 0
		certs = append(certs, c)
	}
	return certs, rows.Err()
}
