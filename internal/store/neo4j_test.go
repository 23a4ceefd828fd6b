package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNeo4j(t *testing.T) (*Neo4jStore, *MockDriver) {
	t.Helper()
	ctx := context.Background()
	d := &MockDriver{}
	s := NewNeo4jStore(d)
	require.NoError(t, s.EnsureCollection(ctx, "documents", false))
	require.NoError(t, s.EnsureCollection(ctx, "entities", false))
	require.NoError(t, s.EnsureCollection(ctx, "relationships", true))
	d.Queries = nil
	return s, d
}

func TestNeo4jStore_EnsureCollection(t *testing.T) {
	ctx := context.Background()
	d := &MockDriver{}
	s := NewNeo4jStore(d)

	require.NoError(t, s.EnsureCollection(ctx, "entities", false))
	require.NoError(t, s.EnsureCollection(ctx, "relationships", true))
	require.Len(t, d.Queries, 2)
	assert.Contains(t, d.Queries[0].Query, "CREATE CONSTRAINT entities_key_unique")
	assert.Contains(t, d.Queries[1].Query, "CREATE INDEX relationships_key")

	err := s.EnsureCollection(ctx, "bad name", false)
	var sErr *StoreUnavailableError
	require.True(t, errors.As(err, &sErr))
	assert.Len(t, d.Queries, 2, "invalid names never reach the database")
}

func TestNeo4jStore_UpsertDocument(t *testing.T) {
	s, d := newNeo4j(t)
	analyzed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	err := s.UpsertDocument(context.Background(), "documents", Record{
		Key: "doc1",
		Props: map[string]any{
			"content":     "Patient takes aspirin.",
			"analyzed_at": analyzed,
			"missing":     nil,
		},
	}, true)
	require.NoError(t, err)
	require.Len(t, d.Queries, 1)

	q := d.Queries[0]
	assert.Contains(t, q.Query, "MERGE (n:documents {key: $key})")
	assert.Contains(t, q.Query, "SET n = $props")
	assert.Equal(t, "doc1", q.Params["key"])

	props := q.Params["props"].(map[string]any)
	assert.Equal(t, "doc1", props["key"])
	assert.Equal(t, "2024-05-01T12:00:00Z", props["analyzed_at"])
	assert.NotContains(t, props, "missing")
}

func TestNeo4jStore_UpsertDocumentWithoutOverwrite(t *testing.T) {
	s, d := newNeo4j(t)
	require.NoError(t, s.UpsertDocument(context.Background(), "documents", Record{Key: "doc1"}, false))
	assert.Contains(t, d.Queries[0].Query, "CREATE (n:documents")
}

func TestNeo4jStore_UpsertDocumentRejectsEdges(t *testing.T) {
	s, d := newNeo4j(t)
	err := s.UpsertDocument(context.Background(), "relationships", Record{Key: "x"}, true)
	assert.ErrorIs(t, err, ErrInvalidRecord)
	assert.Empty(t, d.Queries)
}

func TestNeo4jStore_BulkNodes(t *testing.T) {
	s, d := newNeo4j(t)

	err := s.BulkUpsertMerge(context.Background(), "entities", []Record{
		{Key: "aspirin", Props: map[string]any{
			"extraction_text": "aspirin",
			"attributes":      map[string]any{"dose": "81mg"},
		}},
	}, MergeReplace)
	require.NoError(t, err)
	require.Len(t, d.Queries, 1)

	rows := d.Queries[0].Params["rows"].([]map[string]any)
	require.Len(t, rows, 1)
	props := rows[0]["props"].(map[string]any)
	assert.Equal(t, `{"dose":"81mg"}`, props["attributes"], "nested values are stored as JSON text")
}

func TestNeo4jStore_BulkEdgesGroupedByEndpoints(t *testing.T) {
	s, d := newNeo4j(t)

	err := s.BulkUpsertMerge(context.Background(), "relationships", []Record{
		{Key: "doc1__aspirin", From: "documents/doc1", To: "entities/aspirin"},
		{Key: "aspirin_assoc_warfarin", From: "entities/aspirin", To: "entities/warfarin"},
		{Key: "doc1__warfarin", From: "documents/doc1", To: "entities/warfarin"},
	}, MergeReplace)
	require.NoError(t, err)
	require.Len(t, d.Queries, 2)

	assert.Contains(t, d.Queries[0].Query, "MERGE (a:documents {key: row.from})")
	docRows := d.Queries[0].Params["rows"].([]map[string]any)
	require.Len(t, docRows, 2)
	assert.Equal(t, "doc1", docRows[0]["from"])
	assert.Equal(t, "aspirin", docRows[0]["to"])

	assert.Contains(t, d.Queries[1].Query, "MERGE (a:entities {key: row.from})")
}

func TestNeo4jStore_BulkEdgesCounted(t *testing.T) {
	s, d := newNeo4j(t)

	err := s.BulkUpsertMerge(context.Background(), "relationships", []Record{
		{Key: "a_assoc_b", From: "entities/a", To: "entities/b"},
	}, MergeIncrementCount)
	require.NoError(t, err)
	assert.Contains(t, d.Queries[0].Query, "coalesce(r.count, 0) + 1")
}

func TestNeo4jStore_BulkEmpty(t *testing.T) {
	s, d := newNeo4j(t)
	require.NoError(t, s.BulkUpsertMerge(context.Background(), "entities", nil, MergeReplace))
	assert.Empty(t, d.Queries)
}

func TestNeo4jStore_DriverFailure(t *testing.T) {
	s, d := newNeo4j(t)
	d.Err = errors.New("connection refused")

	err := s.BulkUpsertMerge(context.Background(), "entities", []Record{{Key: "a"}}, MergeReplace)
	var sErr *StoreUnavailableError
	require.True(t, errors.As(err, &sErr))
	assert.Equal(t, "bulk upsert", sErr.Op)
	assert.Equal(t, "entities", sErr.Collection)
	assert.ErrorContains(t, err, "connection refused")
}

func TestNeo4jStore_UnknownCollection(t *testing.T) {
	s, _ := newNeo4j(t)
	err := s.BulkUpsertMerge(context.Background(), "nodes", []Record{{Key: "a"}}, MergeReplace)
	assert.ErrorIs(t, err, ErrCollectionNotFound)
}

func TestNeo4jStore_Close(t *testing.T) {
	s, d := newNeo4j(t)
	require.NoError(t, s.Close(context.Background()))
	assert.True(t, d.Closed)
}
