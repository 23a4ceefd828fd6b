package driver

import (
	"fmt"
	"regexp"
)

// Labels and relationship types cannot be query parameters, so collection
// names are spliced into the templates below after passing this check.
var identifierPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether name can be used as a label or
// relationship type.
func ValidIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

const (
	createNodeKeyConstraint = "CREATE CONSTRAINT %[1]s_key_unique IF NOT EXISTS FOR (n:%[1]s) REQUIRE n.key IS UNIQUE"

	createEdgeKeyIndex = "CREATE INDEX %[1]s_key IF NOT EXISTS FOR ()-[r:%[1]s]-() ON (r.key)"

	replaceNode = `
		MERGE (n:%[1]s {key: $key})
		SET n = $props
		RETURN n.key AS key
	`

	createNode = `
		CREATE (n:%[1]s)
		SET n = $props
		RETURN n.key AS key
	`

	mergeNodes = `
		UNWIND $rows AS row
		MERGE (n:%[1]s {key: row.key})
		SET n += row.props
		RETURN count(n) AS upserted
	`

	mergeCountedNodes = `
		UNWIND $rows AS row
		MERGE (n:%[1]s {key: row.key})
		ON CREATE SET n += row.props, n.count = 1
		ON MATCH SET n += row.props, n.count = coalesce(n.count, 0) + 1
		RETURN count(n) AS upserted
	`

	// Endpoints are merged by key so an edge may name an entity that no
	// extraction created. The relationship pattern is undirected: an edge
	// stored as (b)->(a) is found when merging (a)-(b).
	mergeEdges = `
		UNWIND $rows AS row
		MERGE (a:%[2]s {key: row.from})
		MERGE (b:%[3]s {key: row.to})
		MERGE (a)-[r:%[1]s {key: row.key}]-(b)
		SET r += row.props
		RETURN count(r) AS upserted
	`

	mergeCountedEdges = `
		UNWIND $rows AS row
		MERGE (a:%[2]s {key: row.from})
		MERGE (b:%[3]s {key: row.to})
		MERGE (a)-[r:%[1]s {key: row.key}]-(b)
		ON CREATE SET r += row.props, r.count = 1
		ON MATCH SET r += row.props, r.count = coalesce(r.count, 0) + 1
		RETURN count(r) AS upserted
	`
)

func CreateNodeKeyConstraintQuery(label string) string {
	return fmt.Sprintf(createNodeKeyConstraint, label)
}

func CreateEdgeKeyIndexQuery(relType string) string {
	return fmt.Sprintf(createEdgeKeyIndex, relType)
}

func ReplaceNodeQuery(label string) string {
	return fmt.Sprintf(replaceNode, label)
}

func CreateNodeQuery(label string) string {
	return fmt.Sprintf(createNode, label)
}

func MergeNodesQuery(label string, counted bool) string {
	if counted {
		return fmt.Sprintf(mergeCountedNodes, label)
	}
	return fmt.Sprintf(mergeNodes, label)
}

// MergeEdgesQuery upserts relType edges between fromLabel and toLabel nodes.
// With counted set, repeated upserts of the same key increment r.count.
func MergeEdgesQuery(relType, fromLabel, toLabel string, counted bool) string {
	if counted {
		return fmt.Sprintf(mergeCountedEdges, relType, fromLabel, toLabel)
	}
	return fmt.Sprintf(mergeEdges, relType, fromLabel, toLabel)
}
