package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/agenthands/clinigraph/internal/config"
	"github.com/agenthands/clinigraph/internal/driver"
)

// Neo4jStore maps collections onto a property graph: node collections
// become labels, edge collections become relationship types, and every
// record is addressed by its key property.
type Neo4jStore struct {
	driver driver.GraphDriver

	mu    sync.Mutex
	kinds map[string]bool
}

func NewNeo4jStore(d driver.GraphDriver) *Neo4jStore {
	return &Neo4jStore{
		driver: d,
		kinds:  make(map[string]bool),
	}
}

func (s *Neo4jStore) EnsureCollection(ctx context.Context, name string, isEdge bool) error {
	if !driver.ValidIdentifier(name) {
		return unavailable("ensure collection", name, fmt.Errorf("invalid collection name"))
	}

	query := driver.CreateNodeKeyConstraintQuery(name)
	if isEdge {
		query = driver.CreateEdgeKeyIndexQuery(name)
	}
	if _, err := s.driver.ExecuteQuery(ctx, query, nil); err != nil {
		return unavailable("ensure collection", name, err)
	}

	s.mu.Lock()
	s.kinds[name] = isEdge
	s.mu.Unlock()
	return nil
}

func (s *Neo4jStore) UpsertDocument(ctx context.Context, collection string, rec Record, overwrite bool) error {
	isEdge, err := s.kind(collection)
	if err != nil {
		return unavailable("upsert document", collection, err)
	}
	if isEdge {
		return unavailable("upsert document", collection, fmt.Errorf("%w: edges are written with BulkUpsertMerge", ErrInvalidRecord))
	}
	if err := validateRecord(rec, false); err != nil {
		return unavailable("upsert document", collection, err)
	}

	props := toProperties(rec.Props)
	props["key"] = rec.Key

	query := driver.CreateNodeQuery(collection)
	if overwrite {
		query = driver.ReplaceNodeQuery(collection)
	}
	_, err = s.driver.ExecuteQuery(ctx, query, map[string]any{
		"key":   rec.Key,
		"props": props,
	})
	return unavailable("upsert document", collection, err)
}

func (s *Neo4jStore) BulkUpsertMerge(ctx context.Context, collection string, recs []Record, rule MergeRule) error {
	isEdge, err := s.kind(collection)
	if err != nil {
		return unavailable("bulk upsert", collection, err)
	}
	if len(recs) == 0 {
		return nil
	}
	for _, rec := range recs {
		if err := validateRecord(rec, isEdge); err != nil {
			return unavailable("bulk upsert", collection, err)
		}
	}

	if !isEdge {
		rows := make([]map[string]any, 0, len(recs))
		for _, rec := range recs {
			rows = append(rows, map[string]any{
				"key":   rec.Key,
				"props": toProperties(rec.Props),
			})
		}
		query := driver.MergeNodesQuery(collection, rule == MergeIncrementCount)
		_, err := s.driver.ExecuteQuery(ctx, query, map[string]any{"rows": rows})
		return unavailable("bulk upsert", collection, err)
	}

	for _, group := range groupByEndpoints(recs) {
		if !driver.ValidIdentifier(group.from) || !driver.ValidIdentifier(group.to) {
			return unavailable("bulk upsert", collection, fmt.Errorf("%w: endpoint collections %q -> %q", ErrInvalidRecord, group.from, group.to))
		}
		query := driver.MergeEdgesQuery(collection, group.from, group.to, rule == MergeIncrementCount)
		if _, err := s.driver.ExecuteQuery(ctx, query, map[string]any{"rows": group.rows}); err != nil {
			return unavailable("bulk upsert", collection, err)
		}
	}
	return nil
}

func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func (s *Neo4jStore) kind(collection string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	isEdge, ok := s.kinds[collection]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrCollectionNotFound, collection)
	}
	return isEdge, nil
}

type endpointGroup struct {
	from, to string
	rows     []map[string]any
}

// groupByEndpoints splits edge records by their endpoint collections, since
// each pair needs its own query. Input order is kept within and across
// groups.
func groupByEndpoints(recs []Record) []*endpointGroup {
	var groups []*endpointGroup
	index := make(map[[2]string]*endpointGroup)
	for _, rec := range recs {
		fromColl, fromKey, _ := SplitHandle(rec.From)
		toColl, toKey, _ := SplitHandle(rec.To)

		g, ok := index[[2]string{fromColl, toColl}]
		if !ok {
			g = &endpointGroup{from: fromColl, to: toColl}
			index[[2]string{fromColl, toColl}] = g
			groups = append(groups, g)
		}
		g.rows = append(g.rows, map[string]any{
			"key":   rec.Key,
			"from":  fromKey,
			"to":    toKey,
			"props": toProperties(rec.Props),
		})
	}
	return groups
}

// toProperties converts values into types Bolt can store as properties.
// Nil values are dropped, times become RFC 3339 strings and anything
// structured is stored as JSON text.
func toProperties(props map[string]any) map[string]any {
	out := make(map[string]any, len(props)+1)
	for k, v := range props {
		if pv, ok := propertyValue(v); ok {
			out[k] = pv
		}
	}
	return out
}

func propertyValue(v any) (any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case string, bool, int, int64, float64, []string, []int64, []float64:
		return t, true
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano), true
	case json.Marshaler:
		b, err := t.MarshalJSON()
		if err != nil {
			return fmt.Sprint(t), true
		}
		return string(b), true
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t), true
		}
		if string(b) == "null" {
			return nil, false
		}
		return string(b), true
	}
}

// OpenNeo4j connects to the configured database and wraps it in a store.
func OpenNeo4j(ctx context.Context, cfg config.GraphConfig) (*Neo4jStore, error) {
	d, err := driver.NewNeo4jDriver(ctx, cfg)
	if err != nil {
		return nil, unavailable("connect", "", err)
	}
	return NewNeo4jStore(d), nil
}
