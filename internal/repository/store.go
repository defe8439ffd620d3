package repository

import (
	"context"
	"errors"

	"github.com/andres10976/certwatch/internal/model"
)

var ErrNotFound = errors.New("not found")

// InsertOutcome reports what a store insert did with a record.
type InsertOutcome int

const (
	OutcomeFailed InsertOutcome = iota
	OutcomeStored
	OutcomeDuplicate
)

func (o InsertOutcome) String() string {
	switch o {
	case OutcomeStored:
		return "stored"
	case OutcomeDuplicate:
		return "duplicate_ignored"
	default:
		return "failed"
	}
}

// Totals counts stored rows.
type Totals struct {
	Certificates int64 `json:"certificates"`
	Matched      int64 `json:"matched"`
}

// Store is the durable certificate store. Insert is idempotent on CertIndex:
// a second insert for an existing index returns OutcomeDuplicate and a nil
// error. Every other failure returns OutcomeFailed with the cause.
type Store interface {
	Insert(ctx context.Context, rec *model.CertificateRecord) (InsertOutcome, error)
	Recent(ctx context.Context, limit int, matchedOnly bool) ([]model.StoredCertificate, error)
	Unprocessed(ctx context.Context, limit int) ([]model.StoredCertificate, error)
	MarkProcessed(ctx context.Context, certIndex int64) error
	Count(ctx context.Context) (Totals, error)
	Close() error
}
