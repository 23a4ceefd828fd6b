package store

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type executedQuery struct {
	Query  string
	Params map[string]any
}

// MockDriver records every query. With Err set, queries fail once FailAfter
// of them have succeeded.
type MockDriver struct {
	Queries   []executedQuery
	Err       error
	FailAfter int
	Closed    bool
}

func (m *MockDriver) ExecuteQuery(ctx context.Context, query string, params map[string]any) (neo4j.EagerResult, error) {
	if m.Err != nil && len(m.Queries) >= m.FailAfter {
		return neo4j.EagerResult{}, m.Err
	}
	m.Queries = append(m.Queries, executedQuery{Query: query, Params: params})
	return neo4j.EagerResult{}, nil
}

func (m *MockDriver) Close(ctx context.Context) error {
	m.Closed = true
	return nil
}
