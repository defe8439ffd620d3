package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/andres10976/certwatch/internal/model"
)

// PostgresCertificateRepository is the pgx-backed Store.
type PostgresCertificateRepository struct {
	pool *pgxpool.Pool

	closeOnce sync.Once
}

func NewPostgresCertificateRepository(pool *pgxpool.Pool) *PostgresCertificateRepository {
	return &PostgresCertificateRepository{pool: pool}
}

func (r *PostgresCertificateRepository) Insert(ctx context.Context, rec *model.CertificateRecord) (InsertOutcome, error) {
	domains, err := encodeDomains(rec.Domains)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("encode domains: %w", err)
	}

	tag, err := r.pool.Exec(ctx,
		`INSERT INTO certificates
			(cert_index, domains, serialnumber, issuer, seen_timestamp, matched_pattern, processed)
		 VALUES ($1, $2, $3, $4, $5, $6, 0)
		 ON CONFLICT (cert_index) DO NOTHING`,
		rec.CertIndex, string(domains), rec.SerialNumber, rec.Issuer, rec.SeenAt, rec.MatchedPattern,
	)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("insert certificate %d: %w", rec.CertIndex, err)
	}
	if tag.RowsAffected() == 0 {
		return OutcomeDuplicate, nil
	}
	return OutcomeStored, nil
}

const postgresSelectColumns = `SELECT id, cert_index, domains, serialnumber, issuer,
	seen_timestamp, stored_at, matched_pattern, processed
FROM certificates`

func (r *PostgresCertificateRepository) Recent(ctx context.Context, limit int, matchedOnly bool) ([]model.StoredCertificate, error) {
	query := postgresSelectColumns
	if matchedOnly {
		query += ` WHERE matched_pattern IS NOT NULL`
	}
	query += ` ORDER BY seen_timestamp DESC LIMIT $1`
	return r.list(ctx, query, limit)
}

func (r *PostgresCertificateRepository) Unprocessed(ctx context.Context, limit int) ([]model.StoredCertificate, error) {
	return r.list(ctx, postgresSelectColumns+` WHERE processed = 0 ORDER BY cert_index DESC LIMIT $1`, limit)
}

func (r *PostgresCertificateRepository) MarkProcessed(ctx context.Context, certIndex int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE certificates SET processed = 1 WHERE cert_index = $1`, certIndex)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresCertificateRepository) Count(ctx context.Context) (Totals, error) {
	var t Totals
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(matched_pattern) FROM certificates`,
	).Scan(&t.Certificates, &t.Matched)
	return t, err
}

func (r *PostgresCertificateRepository) Close() error {
	r.closeOnce.Do(r.pool.Close)
	return nil
}

func (r *PostgresCertificateRepository) list(ctx context.Context, query string, args ...any) ([]model.StoredCertificate, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var certs []model.StoredCertificate
	for rows.Next() {
		var (
			c         model.StoredCertificate
			domains   *string
			processed int
		)
		if err := rows.Scan(
			&c.ID, &c.CertIndex, &domains, &c.SerialNumber, &c.Issuer,
			&c.SeenAt, &c.StoredAt, &c.MatchedPattern, &processed,
		); err != nil {
			return nil, err
		}
		raw := ""
		if domains != nil {
			raw = *domains
		}
		if c.Domains, err = decodeDomains(raw); err != nil {
			return nil, err
		}
		c.Processed = processed != 0
		certs = append(certs, c)
	}
	return certs, rows.Err()
}
