package repository

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru"

	"github.com/andres10976/certwatch/internal/model"
)

// DedupStore answers redeliveries of recently seen cert indexes from memory.
// Only indexes the underlying store has accepted (stored or already present)
// are remembered, so a failed insert is always retried on redelivery.
type DedupStore struct {
	Store
	seen *lru.Cache
}

func NewDedupStore(store Store, size int) (*DedupStore, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("create dedup cache: %w", err)
	}
	return &DedupStore{Store: store, seen: cache}, nil
}

func (d *DedupStore) Insert(ctx context.Context, rec *model.CertificateRecord) (InsertOutcome, error) {
	if d.seen.Contains(rec.CertIndex) {
		return OutcomeDuplicate, nil
	}

	outcome, err := d.Store.Insert(ctx, rec)
	if err != nil {
		return outcome, err
	}
	d.seen.Add(rec.CertIndex, struct{}{})
	return outcome, nil
}
