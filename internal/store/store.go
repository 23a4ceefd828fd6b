package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// CountProperty is maintained by MergeIncrementCount.
const CountProperty = "count"

// MergeRule decides what BulkUpsertMerge does with a record whose key
// already exists.
type MergeRule int

const (
	// MergeReplace overwrites the stored properties named by the incoming
	// record and keeps the rest.
	MergeReplace MergeRule = iota
	// MergeIncrementCount behaves like MergeReplace and additionally bumps
	// the count property. New records start with a count of 1.
	MergeIncrementCount
)

func (r MergeRule) String() string {
	switch r {
	case MergeReplace:
		return "replace"
	case MergeIncrementCount:
		return "increment_count"
	default:
		return fmt.Sprintf("MergeRule(%d)", int(r))
	}
}

// Record is one keyed node or edge. Edge records set From and To to
// "collection/key" handles, see Handle.
type Record struct {
	Key   string
	From  string
	To    string
	Props map[string]any
}

// Handle addresses a record in a collection.
func Handle(collection, key string) string {
	return collection + "/" + key
}

// SplitHandle is the inverse of Handle. Keys may contain slashes; the
// collection may not.
func SplitHandle(handle string) (collection, key string, ok bool) {
	collection, key, ok = strings.Cut(handle, "/")
	if !ok || collection == "" || key == "" {
		return "", "", false
	}
	return collection, key, true
}

// GraphStore is the small slice of a document/graph database the ingestion
// pipeline depends on.
type GraphStore interface {
	// EnsureCollection creates the collection if it does not exist.
	EnsureCollection(ctx context.Context, name string, isEdge bool) error
	// UpsertDocument writes a single record. With overwrite the stored
	// record is replaced; without it an existing key is a conflict.
	UpsertDocument(ctx context.Context, collection string, rec Record, overwrite bool) error
	// BulkUpsertMerge inserts absent records and merges present ones by rule.
	BulkUpsertMerge(ctx context.Context, collection string, recs []Record, rule MergeRule) error
	Close(ctx context.Context) error
}

var (
	ErrCollectionNotFound = errors.New("collection not found")
	ErrKeyConflict        = errors.New("key already exists")
	ErrInvalidRecord      = errors.New("invalid record")
)

// StoreUnavailableError wraps every failure of a store operation.
type StoreUnavailableError struct {
	Op         string
	Collection string
	Err        error
}

func (e *StoreUnavailableError) Error() string {
	if e.Collection == "" {
		return fmt.Sprintf("graph store %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("graph store %s on %q failed: %v", e.Op, e.Collection, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error {
	return e.Err
}

func unavailable(op, collection string, err error) error {
	if err == nil {
		return nil
	}
	var sErr *StoreUnavailableError
	if errors.As(err, &sErr) {
		return err
	}
	return &StoreUnavailableError{Op: op, Collection: collection, Err: err}
}

func validateRecord(rec Record, isEdge bool) error {
	if rec.Key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidRecord)
	}
	if !isEdge {
		return nil
	}
	if _, _, ok := SplitHandle(rec.From); !ok {
		return fmt.Errorf("%w: edge %q has bad from handle %q", ErrInvalidRecord, rec.Key, rec.From)
	}
	if _, _, ok := SplitHandle(rec.To); !ok {
		return fmt.Errorf("%w: edge %q has bad to handle %q", ErrInvalidRecord, rec.Key, rec.To)
	}
	return nil
}

func copyProps(props map[string]any) map[string]any {
	out := make(map[string]any, len(props)+1)
	for k, v := range props {
		out[k] = v
	}
	return out
}
