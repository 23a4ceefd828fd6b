package core

import (
	"context"

	"github.com/agenthands/clinigraph/internal/store"
)

// FailingStore wraps a store and fails every write to FailOn.
type FailingStore struct {
	*store.MemoryStore
	FailOn string
	Err    error
}

func (f *FailingStore) UpsertDocument(ctx context.Context, collection string, rec store.Record, overwrite bool) error {
	if collection == f.FailOn {
		return &store.StoreUnavailableError{Op: "upsert document", Collection: collection, Err: f.Err}
	}
	return f.MemoryStore.UpsertDocument(ctx, collection, rec, overwrite)
}

func (f *FailingStore) BulkUpsertMerge(ctx context.Context, collection string, recs []store.Record, rule store.MergeRule) error {
	if collection == f.FailOn {
		return &store.StoreUnavailableError{Op: "bulk upsert", Collection: collection, Err: f.Err}
	}
	return f.MemoryStore.BulkUpsertMerge(ctx, collection, recs, rule)
}
