package store

import (
	"context"
	"fmt"
	"sync"
)

type memCollection struct {
	edge    bool
	records map[string]Record
	order   []string
}

// MemoryStore keeps collections in process. It follows the GraphStore
// contract of the database adapters but, unlike Neo4jStore, never creates
// stub endpoint nodes for edges.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]*memCollection
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memCollection)}
}

func (s *MemoryStore) EnsureCollection(_ context.Context, name string, isEdge bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.collections[name]; ok {
		if c.edge != isEdge {
			return unavailable("ensure collection", name, fmt.Errorf("collection exists with edge=%t", c.edge))
		}
		return nil
	}
	s.collections[name] = &memCollection{edge: isEdge, records: make(map[string]Record)}
	return nil
}

func (s *MemoryStore) UpsertDocument(_ context.Context, collection string, rec Record, overwrite bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.collection(collection)
	if err != nil {
		return unavailable("upsert document", collection, err)
	}
	if err := validateRecord(rec, c.edge); err != nil {
		return unavailable("upsert document", collection, err)
	}
	if _, exists := c.records[rec.Key]; exists && !overwrite {
		return unavailable("upsert document", collection, fmt.Errorf("%w: %q", ErrKeyConflict, rec.Key))
	}

	rec.Props = copyProps(rec.Props)
	c.put(rec)
	return nil
}

func (s *MemoryStore) BulkUpsertMerge(_ context.Context, collection string, recs []Record, rule MergeRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.collection(collection)
	if err != nil {
		return unavailable("bulk upsert", collection, err)
	}
	for _, rec := range recs {
		if err := validateRecord(rec, c.edge); err != nil {
			return unavailable("bulk upsert", collection, err)
		}
	}

	for _, rec := range recs {
		existing, exists := c.records[rec.Key]
		if !exists {
			rec.Props = copyProps(rec.Props)
			if rule == MergeIncrementCount {
				rec.Props[CountProperty] = 1
			}
			c.put(rec)
			continue
		}

		merged := copyProps(existing.Props)
		for k, v := range rec.Props {
			merged[k] = v
		}
		if rule == MergeIncrementCount {
			n, _ := existing.Props[CountProperty].(int)
			merged[CountProperty] = n + 1
		}
		if rec.From != "" {
			existing.From = rec.From
		}
		if rec.To != "" {
			existing.To = rec.To
		}
		existing.Props = merged
		c.put(existing)
	}
	return nil
}

func (s *MemoryStore) Close(context.Context) error {
	return nil
}

// Get returns a copy of the stored record.
func (s *MemoryStore) Get(collection, key string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[collection]
	if !ok {
		return Record{}, false
	}
	rec, ok := c.records[key]
	if !ok {
		return Record{}, false
	}
	rec.Props = copyProps(rec.Props)
	return rec, true
}

// Len counts the records of a collection.
func (s *MemoryStore) Len(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.collections[collection]; ok {
		return len(c.records)
	}
	return 0
}

// Records lists a collection in first-insertion order.
func (s *MemoryStore) Records(collection string) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[collection]
	if !ok {
		return nil
	}
	out := make([]Record, 0, len(c.order))
	for _, key := range c.order {
		rec := c.records[key]
		rec.Props = copyProps(rec.Props)
		out = append(out, rec)
	}
	return out
}

func (s *MemoryStore) collection(name string) (*memCollection, error) {
	c, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrCollectionNotFound, name)
	}
	return c, nil
}

func (c *memCollection) put(rec Record) {
	if _, exists := c.records[rec.Key]; !exists {
		c.order = append(c.order, rec.Key)
	}
	if rec.Props == nil {
		rec.Props = map[string]any{}
	}
	rec.Props["key"] = rec.Key
	c.records[rec.Key] = rec
}
